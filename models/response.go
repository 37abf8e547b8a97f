package models

import "encoding/json"

// Tracking kinds understood by TrackingURLs.URLsFor.
const (
	TrackImpression = "impression"
	TrackClick      = "click"
	TrackViewable   = "viewable"
	TrackEvent      = "event"
)

// DecisionResponse is returned by the ad-decision service. It holds one
// Decision per placement that was filled.
type DecisionResponse struct {
	RequestID string     `json:"request_id"` // Mirrors DecisionRequest.RequestID.
	Decisions []Decision `json:"decisions"`
	// NoBidReason is set when nothing was selected for any placement.
	// 0: unknown, 1: technical error, 2: invalid request, 8: no matching inventory.
	NoBidReason int `json:"nbr,omitempty"`
}

// DecisionFor returns the decision for the given placement, if any.
func (r *DecisionResponse) DecisionFor(placementID string) (Decision, bool) {
	if r == nil {
		return Decision{}, false
	}
	for _, d := range r.Decisions {
		if d.PlacementID == placementID {
			return d, true
		}
	}
	return Decision{}, false
}

// Ads returns every ad across all decisions in response order.
func (r *DecisionResponse) Ads() []Ad {
	if r == nil {
		return nil
	}
	var ads []Ad
	for _, d := range r.Decisions {
		ads = append(ads, d.Ads...)
	}
	return ads
}

// Empty reports whether the response contains no ads.
func (r *DecisionResponse) Empty() bool {
	return len(r.Ads()) == 0
}

// Decision is the outcome for a single placement.
type Decision struct {
	PlacementID string `json:"placement_id"` // Mirrors Placement.ID.
	Ads         []Ad   `json:"ads"`
}

// Ad is one selected ad: the creative to render and the URLs to call as the
// user sees and interacts with it.
type Ad struct {
	ID         string       `json:"id"`
	CampaignID string       `json:"campaign_id,omitempty"`
	Price      float64      `json:"price,omitempty"` // eCPM of the selected ad.
	Creative   Creative     `json:"creative"`
	Tracking   TrackingURLs `json:"tracking"`

	// CustomParams holds the custom targeting of the request that returned
	// this ad. It is filled by the client, never sent on the wire, and backs
	// the {CUSTOM.key} tracking macro.
	CustomParams map[string]string `json:"-"`
}

// Creative is the ad content. Which fields are populated depends on Format.
type Creative struct {
	ID     string `json:"id"`
	Format string `json:"format"` // "html", "image", "native" or "video".
	// HTML is complete markup for "html" creatives.
	HTML     string `json:"html,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	Title    string `json:"title,omitempty"`
	Body     string `json:"body,omitempty"`
	// CallToAction is the button label for native creatives (e.g. "Install").
	CallToAction string `json:"cta,omitempty"`
	// DestinationURL is where the user lands after a click. Clicks should still
	// be reported through TrackingURLs.Clicks.
	DestinationURL string `json:"destination_url,omitempty"`
	Width          int    `json:"width,omitempty"`
	Height         int    `json:"height,omitempty"`
	// Native carries free-form native assets, passed through untouched.
	Native json.RawMessage `json:"native,omitempty"`
}

// TrackingURLs lists the callbacks for an ad. URLs may be absolute or
// relative to the service base URL and may contain macros such as
// {TIMESTAMP} or {EVENT_TYPE} that are expanded when fired.
type TrackingURLs struct {
	Impressions []string `json:"impressions,omitempty"`
	Clicks      []string `json:"clicks,omitempty"`
	Viewable    []string `json:"viewable,omitempty"`
	// Events maps custom event names (e.g. "video_complete") to their URLs.
	// The "*" entry, when present, is used for any event without its own URLs.
	Events map[string][]string `json:"events,omitempty"`
}

// URLsFor returns the URLs registered for a tracking kind. For TrackEvent the
// eventType selects the list, falling back to the "*" entry.
func (t TrackingURLs) URLsFor(kind, eventType string) []string {
	switch kind {
	case TrackImpression:
		return t.Impressions
	case TrackClick:
		return t.Clicks
	case TrackViewable:
		return t.Viewable
	case TrackEvent:
		if urls, ok := t.Events[eventType]; ok {
			return urls
		}
		return t.Events["*"]
	}
	return nil
}
