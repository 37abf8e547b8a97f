package adsdk

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/patrickwarner/openadserve-sdk/models"
)

// RequestBuilder assembles a models.DecisionRequest. Setters return the
// builder so calls can be chained; Build validates and returns an
// independent copy, so one builder can produce several requests.
//
// A RequestBuilder is not safe for concurrent use.
type RequestBuilder struct {
	requestID   string
	placements  []models.Placement
	geo         []models.GeoTarget
	location    *models.LocationTarget
	custom      models.CustomTargeting
	keywords    []string
	user        models.User
	app         *models.App
	device      *models.Device
	language    string
	publisherID int
	test        bool
}

// NewRequestBuilder returns an empty builder.
func NewRequestBuilder() *RequestBuilder {
	return &RequestBuilder{}
}

// RequestID sets the request ID. When unset Build generates a UUID.
func (b *RequestBuilder) RequestID(id string) *RequestBuilder {
	b.requestID = id
	return b
}

// AddPlacement appends a placement. A placement whose ID was already added
// replaces the earlier one in place.
func (b *RequestBuilder) AddPlacement(p models.Placement) *RequestBuilder {
	p.Formats = append([]string(nil), p.Formats...)
	if p.ID != "" {
		for i := range b.placements {
			if b.placements[i].ID == p.ID {
				b.placements[i] = p
				return b
			}
		}
	}
	b.placements = append(b.placements, p)
	return b
}

// AddPlacements adds each placement in order, as AddPlacement does.
func (b *RequestBuilder) AddPlacements(ps ...models.Placement) *RequestBuilder {
	for _, p := range ps {
		b.AddPlacement(p)
	}
	return b
}

// Placement is shorthand for AddPlacement(models.Placement{ID: id, Formats: formats}).
func (b *RequestBuilder) Placement(id string, formats ...string) *RequestBuilder {
	return b.AddPlacement(models.Placement{ID: id, Formats: formats})
}

// AddGeoTarget adds a geographic target. Duplicates and zero values are ignored.
func (b *RequestBuilder) AddGeoTarget(g models.GeoTarget) *RequestBuilder {
	if g.IsZero() {
		return b
	}
	for _, existing := range b.geo {
		if existing == g {
			return b
		}
	}
	b.geo = append(b.geo, g)
	return b
}

// GeoTargets adds each target in order, as AddGeoTarget does.
func (b *RequestBuilder) GeoTargets(gs ...models.GeoTarget) *RequestBuilder {
	for _, g := range gs {
		b.AddGeoTarget(g)
	}
	return b
}

// Country is shorthand for AddGeoTarget(models.GeoTarget{Country: code}).
func (b *RequestBuilder) Country(code string) *RequestBuilder {
	return b.AddGeoTarget(models.GeoTarget{Country: strings.ToUpper(code)})
}

// Location sets the device location.
func (b *RequestBuilder) Location(lat, lon float64) *RequestBuilder {
	return b.LocationTarget(models.LocationTarget{Latitude: lat, Longitude: lon})
}

// LocationTarget sets the device location including its accuracy.
func (b *RequestBuilder) LocationTarget(loc models.LocationTarget) *RequestBuilder {
	b.location = &loc
	return b
}

// CustomTargeting sets a custom key-value. Setting a key again overwrites its
// value without moving it; other keys keep insertion order. Empty keys are ignored.
func (b *RequestBuilder) CustomTargeting(key, value string) *RequestBuilder {
	if key == "" {
		return b
	}
	b.custom = b.custom.With(key, value)
	return b
}

// MergeCustomTargeting applies every pair of kvs in order, as CustomTargeting does.
func (b *RequestBuilder) MergeCustomTargeting(kvs models.CustomTargeting) *RequestBuilder {
	for _, kv := range kvs {
		b.CustomTargeting(kv.Key, kv.Value)
	}
	return b
}

// Keywords adds contextual keywords. Duplicates and blanks are dropped.
func (b *RequestBuilder) Keywords(keywords ...string) *RequestBuilder {
	b.keywords = appendUnique(b.keywords, keywords...)
	return b
}

// User replaces the user section.
func (b *RequestBuilder) User(u models.User) *RequestBuilder {
	u.Interests = append([]string(nil), u.Interests...)
	b.user = u
	return b
}

// UserID sets the user ID, keeping other user fields.
func (b *RequestBuilder) UserID(id string) *RequestBuilder {
	b.user.ID = id
	return b
}

// App sets the app section.
func (b *RequestBuilder) App(a models.App) *RequestBuilder {
	b.app = &a
	return b
}

// Device sets the device section.
func (b *RequestBuilder) Device(d models.Device) *RequestBuilder {
	b.device = &d
	return b
}

// Language sets the request language, overriding the client default.
func (b *RequestBuilder) Language(lang string) *RequestBuilder {
	b.language = lang
	return b
}

// PublisherID sets the publisher the request is made for.
func (b *RequestBuilder) PublisherID(id int) *RequestBuilder {
	b.publisherID = id
	return b
}

// Test marks the request as a non-billable test request.
func (b *RequestBuilder) Test(test bool) *RequestBuilder {
	b.test = test
	return b
}

// Build validates the accumulated state and returns a new request. It fails
// with a *ConfigurationError when no placement was added or a placement has
// no ID. Empty targeting and user sections are left nil so they are omitted
// from the JSON body.
func (b *RequestBuilder) Build() (*models.DecisionRequest, error) {
	if len(b.placements) == 0 {
		return nil, configError("placements", "at least one placement is required")
	}
	placements := make([]models.Placement, len(b.placements))
	for i, p := range b.placements {
		if strings.TrimSpace(p.ID) == "" {
			return nil, configError(fmt.Sprintf("placements[%d].id", i), "required")
		}
		if p.Count < 0 {
			return nil, configError(fmt.Sprintf("placements[%d].count", i), "must not be negative")
		}
		p.Formats = append([]string(nil), p.Formats...)
		placements[i] = p
	}

	req := &models.DecisionRequest{
		RequestID:   b.requestID,
		Placements:  placements,
		Language:    b.language,
		PublisherID: b.publisherID,
		Test:        b.test,
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	targeting := &models.Targeting{
		Geo:      append([]models.GeoTarget(nil), b.geo...),
		Custom:   append(models.CustomTargeting(nil), b.custom...),
		Keywords: append([]string(nil), b.keywords...),
	}
	if b.location != nil {
		loc := *b.location
		targeting.Location = &loc
	}
	if !targeting.IsEmpty() {
		req.Targeting = targeting
	}

	if !b.user.IsEmpty() {
		user := b.user
		user.Interests = append([]string(nil), b.user.Interests...)
		req.User = &user
	}
	if b.app != nil {
		app := *b.app
		req.App = &app
	}
	if b.device != nil {
		device := *b.device
		req.Device = &device
	}
	return req, nil
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		dup := false
		for _, existing := range dst {
			if existing == v {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, v)
		}
	}
	return dst
}
