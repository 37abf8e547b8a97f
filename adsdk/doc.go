// Package adsdk is a client for the OpenAdServe ad-decision API. It builds
// typed decision requests, sends them to the service, parses the typed
// responses and fires the tracking callbacks attached to each ad.
//
// # Requesting ads
//
// Build a request with [NewRequestBuilder] and send it with [Client.RequestAds]:
//
//	client, err := adsdk.NewClient(adsdk.Config{BaseURL: "https://ads.example.com"})
//	if err != nil {
//	    return err
//	}
//	req, err := adsdk.NewRequestBuilder().
//	    AddPlacement(models.Placement{ID: "home-banner"}).
//	    CustomTargeting("section", "sports").
//	    Build()
//	if err != nil {
//	    return err
//	}
//	resp, err := client.RequestAds(ctx, req)
//
// # Tracking
//
// Once an ad is rendered, report it with [Client.FireImpression]. Clicks,
// viewability and custom events have matching methods. Tracking URLs may be
// relative to the configured base URL and may contain macros such as
// {TIMESTAMP} or {CACHEBUSTER}, which are expanded before the GET is sent.
//
// # Errors
//
// Two error kinds are returned:
//
//   - [*ConfigurationError]: a required field is missing or invalid. Matches [ErrConfiguration].
//   - [*NetworkError]: the HTTP call failed, returned a non-2xx status or an
//     undecodable body. Matches [ErrNetwork] and unwraps to the cause.
//
// Nothing is retried; failures are returned to the caller.
//
// # Thread Safety
//
// A [Client] is safe for concurrent use. A [RequestBuilder] is not.
package adsdk
