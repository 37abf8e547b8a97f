package adsdk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/patrickwarner/openadserve-sdk/internal/middleware"
	"github.com/patrickwarner/openadserve-sdk/models"
)

// maxDrain bounds how much of a tracking response is read before closing it.
const maxDrain = 64 << 10

// FireTrackingURL sends a GET to rawURL and discards the response. The URL may
// be relative to the base URL and may contain macros. Any status below 400
// counts as delivered; redirects are not followed.
func (c *Client) FireTrackingURL(ctx context.Context, rawURL string) error {
	return c.fire(ctx, "custom", rawURL, nil)
}

// FireImpression reports that ad was rendered by firing every impression URL.
func (c *Client) FireImpression(ctx context.Context, ad models.Ad) error {
	return c.fireAll(ctx, models.TrackImpression, ad, "")
}

// FireClick reports a click on ad by firing every click URL. Navigation to
// Creative.DestinationURL is left to the caller.
func (c *Client) FireClick(ctx context.Context, ad models.Ad) error {
	return c.fireAll(ctx, models.TrackClick, ad, "")
}

// FireViewable reports that ad met the viewability threshold.
func (c *Client) FireViewable(ctx context.Context, ad models.Ad) error {
	return c.fireAll(ctx, models.TrackViewable, ad, "")
}

// FireEvent reports a custom event (e.g. "video_complete") for ad. URLs
// registered for the event are used, falling back to the "*" entry. A URL
// without a type parameter or {EVENT_TYPE} macro gets type=eventType appended.
func (c *Client) FireEvent(ctx context.Context, ad models.Ad, eventType string) error {
	if strings.TrimSpace(eventType) == "" {
		return configError("event_type", "required")
	}
	return c.fireAll(ctx, models.TrackEvent, ad, eventType)
}

// fireAll fires every URL of the given kind in order. Failures do not stop
// the remaining URLs; they are joined into the returned error.
func (c *Client) fireAll(ctx context.Context, kind string, ad models.Ad, eventType string) error {
	urls := ad.Tracking.URLsFor(kind, eventType)
	if len(urls) == 0 {
		return nil
	}
	mctx := &MacroContext{
		AdID:         ad.ID,
		CreativeID:   ad.Creative.ID,
		CampaignID:   ad.CampaignID,
		EventType:    eventType,
		CustomParams: ad.CustomParams,
	}
	var errs []error
	for _, raw := range urls {
		if err := c.fire(ctx, kind, raw, mctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Client) fire(ctx context.Context, kind, rawURL string, mctx *MacroContext) (err error) {
	ctx, span := tracer.Start(ctx, "adsdk.Track",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("tracking.kind", kind)))
	defer span.End()

	logger := middleware.LoggerFromContext(ctx, c.logger)
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "failure"
		}
		c.metrics.IncrementTrackingFires(kind, outcome)
	}()

	target, err := c.trackingURL(rawURL, kind, mctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return c.fail(span, logger, &NetworkError{Op: opTrack, URL: target, Err: fmt.Errorf("create request: %w", err)})
	}
	resp, err := c.trackClient.Do(req)
	if err != nil {
		return c.fail(span, logger, &NetworkError{Op: opTrack, URL: target, Err: err})
	}
	defer c.closeBody(resp)
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode >= 400 {
		return c.fail(span, logger, statusError(opTrack, target, resp))
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))

	logger.Debug("tracking url fired",
		zap.String("kind", kind),
		zap.String("url", target),
		zap.Int("status", resp.StatusCode))
	return nil
}

// trackingURL expands macros in rawURL and resolves it against the base URL.
func (c *Client) trackingURL(rawURL, kind string, mctx *MacroContext) (string, error) {
	if strings.TrimSpace(rawURL) == "" {
		return "", configError("tracking_url", "required")
	}
	eventType := ""
	if mctx != nil {
		eventType = mctx.EventType
	}
	hasEventMacro := strings.Contains(rawURL, "{EVENT_TYPE}")

	if c.strict {
		if unknown := c.macros.ValidateURL(rawURL); len(unknown) > 0 {
			return "", configError("tracking_url", "unknown macros %s (registered: %s)",
				strings.Join(unknown, ", "), strings.Join(c.macros.GetRegisteredMacros(), ", "))
		}
	}

	expanded, err := c.macros.ExpandURL(rawURL, mctx)
	if err != nil {
		return "", configError("tracking_url", "%v", err)
	}
	if c.strict && strings.Contains(expanded, "{CUSTOM.") {
		return "", configError("tracking_url", "no custom parameter for a {CUSTOM.key} macro in %q", rawURL)
	}
	u, err := c.resolve(expanded)
	if err != nil {
		return "", configError("tracking_url", "invalid url %q: %v", rawURL, err)
	}

	if kind == models.TrackEvent && eventType != "" && !hasEventMacro {
		q := u.Query()
		if q.Get("type") == "" {
			q.Set("type", eventType)
			u.RawQuery = q.Encode()
		}
	}
	return u.String(), nil
}

// resolve makes ref absolute. A relative ref is appended to the base URL's
// path, so a base of https://host/api and a ref of /track/x give
// https://host/api/track/x.
func (c *Client) resolve(ref string) (*url.URL, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return nil, err
	}
	if u.IsAbs() {
		if u.Scheme != "http" && u.Scheme != "https" {
			return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
		}
		return u, nil
	}
	if u.Host != "" {
		// protocol-relative
		u.Scheme = c.baseURL.Scheme
		return u, nil
	}
	out := c.baseURL.JoinPath(u.Path)
	out.RawQuery = u.RawQuery
	out.Fragment = u.Fragment
	return out, nil
}
