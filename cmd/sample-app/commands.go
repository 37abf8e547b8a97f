package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/patrickwarner/openadserve-sdk/adsdk"
	"github.com/patrickwarner/openadserve-sdk/models"
)

// RequestFlags describe the ad request to build.
type RequestFlags struct {
	Placements []string          `name:"placement" short:"p" required:"" sep:"none" help:"Placement as id or id:format,format (repeatable)"`
	Count      int               `help:"Ads wanted per placement" default:"1"`
	Countries  []string          `name:"country" help:"ISO country code to target (repeatable)"`
	KV         map[string]string `name:"kv" help:"Custom targeting key=value (repeatable)"`
	Keywords   []string          `name:"keyword" help:"Contextual keyword (repeatable)"`
	UserID     string            `name:"user-id" help:"App-scoped user ID"`
	Language   string            `help:"Request language (defaults to ADSDK_LANGUAGE)"`
	Test       bool              `help:"Mark the request as a test request"`
}

// Build turns the flags into a decision request.
func (f RequestFlags) Build(publisherID int) (*models.DecisionRequest, error) {
	b := adsdk.NewRequestBuilder().
		PublisherID(publisherID).
		Language(f.Language).
		Keywords(f.Keywords...).
		UserID(f.UserID).
		Test(f.Test)

	for _, raw := range f.Placements {
		p, err := parsePlacement(raw)
		if err != nil {
			return nil, err
		}
		p.Count = f.Count
		b.AddPlacement(p)
	}
	for _, c := range f.Countries {
		b.Country(c)
	}
	keys := make([]string, 0, len(f.KV))
	for k := range f.KV {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.CustomTargeting(k, f.KV[k])
	}
	return b.Build()
}

// parsePlacement accepts "id" or "id:format,format".
func parsePlacement(raw string) (models.Placement, error) {
	id, formats, _ := strings.Cut(raw, ":")
	id = strings.TrimSpace(id)
	if id == "" {
		return models.Placement{}, fmt.Errorf("invalid placement %q", raw)
	}
	p := models.Placement{ID: id}
	if formats != "" {
		for _, f := range strings.Split(formats, ",") {
			if f = strings.TrimSpace(f); f != "" {
				p.Formats = append(p.Formats, f)
			}
		}
	}
	return p, nil
}

// RequestCmd implements the 'request' command.
type RequestCmd struct {
	RequestFlags `embed:""`
}

func (r *RequestCmd) Run(ctx context.Context, g *Global) error {
	req, err := r.Build(g.PublisherID)
	if err != nil {
		return err
	}
	resp, err := g.Client.RequestAds(ctx, req)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(g.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

// DemoCmd implements the 'demo' command.
type DemoCmd struct {
	RequestFlags `embed:""`

	Viewable bool   `help:"Report each ad as viewable" default:"true" negatable:""`
	Click    bool   `help:"Report a click on each ad"`
	Event    string `help:"Report this custom event on each ad"`
}

func (d *DemoCmd) Run(ctx context.Context, g *Global) error {
	req, err := d.Build(g.PublisherID)
	if err != nil {
		return err
	}
	resp, err := g.Client.RequestAds(ctx, req)
	if err != nil {
		return err
	}
	if resp.Empty() {
		fmt.Fprintf(g.Out, "request %s: no ads (reason %d)\n", resp.RequestID, resp.NoBidReason)
		return nil
	}

	var errs []error
	for _, dec := range resp.Decisions {
		for _, ad := range dec.Ads {
			fmt.Fprintf(g.Out, "%s: ad %s (%s, %.2f)\n", dec.PlacementID, ad.ID, ad.Creative.Format, ad.Price)
			errs = append(errs, g.report(ctx, "impression", ad, g.Client.FireImpression))
			if d.Viewable {
				errs = append(errs, g.report(ctx, "viewable", ad, g.Client.FireViewable))
			}
			if d.Click {
				errs = append(errs, g.report(ctx, "click", ad, g.Client.FireClick))
				if ad.Creative.DestinationURL != "" {
					fmt.Fprintf(g.Out, "  open %s\n", ad.Creative.DestinationURL)
				}
			}
			if d.Event != "" {
				errs = append(errs, g.report(ctx, d.Event, ad, func(ctx context.Context, ad models.Ad) error {
					return g.Client.FireEvent(ctx, ad, d.Event)
				}))
			}
		}
	}
	return errors.Join(errs...)
}

func (g *Global) report(ctx context.Context, what string, ad models.Ad, fire func(context.Context, models.Ad) error) error {
	if err := fire(ctx, ad); err != nil {
		g.Logger.Warn("tracking failed", zap.String("ad_id", ad.ID), zap.String("kind", what), zap.Error(err))
		fmt.Fprintf(g.Out, "  %s failed: %v\n", what, err)
		return err
	}
	fmt.Fprintf(g.Out, "  %s reported\n", what)
	return nil
}

// TrackCmd implements the 'track' command.
type TrackCmd struct {
	URL string `arg:"" help:"Tracking URL, absolute or relative to the base URL"`
}

func (t *TrackCmd) Run(ctx context.Context, g *Global) error {
	if err := g.Client.FireTrackingURL(ctx, t.URL); err != nil {
		return err
	}
	fmt.Fprintln(g.Out, "delivered")
	return nil
}

// HealthCmd implements the 'health' command.
type HealthCmd struct{}

func (h *HealthCmd) Run(ctx context.Context, g *Global) error {
	if err := g.Client.HealthCheck(ctx); err != nil {
		var netErr *adsdk.NetworkError
		if errors.As(err, &netErr) && netErr.HasStatus() {
			return fmt.Errorf("unhealthy: http %d", netErr.StatusCode)
		}
		return err
	}
	fmt.Fprintf(g.Out, "ok %s\n", g.Client.Config().BaseURL)
	return nil
}
