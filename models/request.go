package models

// DecisionRequest is the body POSTed to the ad-decision service. It names one
// or more placements to fill and carries optional context used to narrow ad
// selection. Requests are built once via adsdk.RequestBuilder, serialized and
// discarded after the round trip.
type DecisionRequest struct {
	RequestID  string      `json:"request_id"` // Unique ID of the request, generated by the builder when not supplied. Echoed back in the response.
	Placements []Placement `json:"placements"` // Ad slots to fill. At least one is required.
	// Targeting and User are omitted from the body entirely when they carry no data,
	// so the service can distinguish "no targeting" from "empty targeting".
	Targeting *Targeting `json:"targeting,omitempty"`
	User      *User      `json:"user,omitempty"`
	App       *App       `json:"app,omitempty"`
	Device    *Device    `json:"device,omitempty"`
	// Language is an IETF language tag (e.g. "en", "de-AT") used for creative localisation.
	// When empty the client fills it from its configuration.
	Language    string `json:"language,omitempty"`
	PublisherID int    `json:"publisher_id,omitempty"`
	// Test marks the request as non-billable. Tracking URLs are still returned.
	Test bool `json:"test,omitempty"`
}

// Placement is a named ad slot requested by the client.
type Placement struct {
	// ID identifies the placement on the ad-decision service (e.g. "home-banner", "feed-native").
	ID string `json:"id"`
	// Count is the number of ads wanted for this slot. Zero means the service default of one.
	Count int `json:"count,omitempty"`
	// Width and Height optionally override the placement's configured dimensions for this request.
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`
	// Formats restricts the creative formats accepted for this slot (e.g. ["image", "native"]).
	Formats []string `json:"formats,omitempty"`
}

// User identifies the person the ads are requested for.
type User struct {
	ID        string   `json:"id,omitempty"` // Publisher-managed identifier, never a device advertising ID.
	Age       int      `json:"age,omitempty"`
	Gender    string   `json:"gender,omitempty"` // "m", "f" or "o".
	Interests []string `json:"interests,omitempty"`
}

// IsEmpty reports whether u carries no data worth sending.
func (u *User) IsEmpty() bool {
	return u == nil || (u.ID == "" && u.Age == 0 && u.Gender == "" && len(u.Interests) == 0)
}

// App describes the application showing the ads.
type App struct {
	Name     string `json:"name,omitempty"`
	Bundle   string `json:"bundle,omitempty"` // Package name or bundle identifier, e.g. "com.example.news".
	Version  string `json:"version,omitempty"`
	StoreURL string `json:"store_url,omitempty"`
}

// Device describes the device the ads will be rendered on. Collecting these
// values is left to the host application.
type Device struct {
	UA             string `json:"ua,omitempty"`
	IP             string `json:"ip,omitempty"`
	OS             string `json:"os,omitempty"`
	OSVersion      string `json:"os_version,omitempty"`
	Make           string `json:"make,omitempty"`
	Model          string `json:"model,omitempty"`
	IFA            string `json:"ifa,omitempty"` // Advertising identifier, if the user allows it.
	ScreenWidth    int    `json:"screen_width,omitempty"`
	ScreenHeight   int    `json:"screen_height,omitempty"`
	ConnectionType string `json:"connection_type,omitempty"` // "wifi", "cellular", "ethernet" or "unknown".
}
