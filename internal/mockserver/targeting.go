package mockserver

import (
	"net"
	"net/http"
	"strings"

	"github.com/avct/uasurfer"

	"github.com/patrickwarner/openadserve-sdk/internal/geoip"
	"github.com/patrickwarner/openadserve-sdk/models"
)

// TargetingContext is what the server knows about the requesting user.
type TargetingContext struct {
	Countries  []string
	DeviceType string
	KeyValues  map[string]string
}

// DeviceTypeFromUA maps a User-Agent to "desktop", "mobile", "tablet" or "other".
func DeviceTypeFromUA(ua string) string {
	switch uasurfer.Parse(ua).DeviceType {
	case uasurfer.DeviceComputer:
		return "desktop"
	case uasurfer.DevicePhone:
		return "mobile"
	case uasurfer.DeviceTablet:
		return "tablet"
	default:
		return "other"
	}
}

// ClientIP returns the first X-Forwarded-For address, else the remote address.
func ClientIP(r *http.Request) net.IP {
	ipStr := r.Header.Get("X-Forwarded-For")
	if ipStr != "" {
		if idx := strings.Index(ipStr, ","); idx != -1 {
			ipStr = ipStr[:idx]
		}
		ipStr = strings.TrimSpace(ipStr)
	} else {
		ipStr = r.RemoteAddr
		if host, _, err := net.SplitHostPort(ipStr); err == nil {
			ipStr = host
		}
	}
	return net.ParseIP(ipStr)
}

// ResolveTargeting builds the targeting context for a decision request.
// Countries come from the request's geo targets, else from GeoIP of the
// client address. The device type comes from the request device UA, else the
// User-Agent header.
func ResolveTargeting(r *http.Request, req *models.DecisionRequest, geo *geoip.Resolver) TargetingContext {
	var tc TargetingContext

	if req.Targeting != nil {
		for _, g := range req.Targeting.Geo {
			if g.Country != "" {
				tc.Countries = appendCountry(tc.Countries, g.Country)
			}
		}
		tc.KeyValues = req.Targeting.Custom.Map()
	}
	if len(tc.Countries) == 0 {
		if country := geo.Country(ClientIP(r)); country != "" {
			tc.Countries = []string{strings.ToUpper(country)}
		}
	}

	ua := r.Header.Get("User-Agent")
	if req.Device != nil && req.Device.UA != "" {
		ua = req.Device.UA
	}
	tc.DeviceType = DeviceTypeFromUA(ua)
	return tc
}

func appendCountry(list []string, country string) []string {
	country = strings.ToUpper(country)
	for _, c := range list {
		if c == country {
			return list
		}
	}
	return append(list, country)
}

// Matches reports whether item may be served to tc in placement p.
func (item InventoryItem) Matches(p models.Placement, tc TargetingContext) bool {
	if len(p.Formats) > 0 && !containsFold(p.Formats, item.Creative.Format) {
		return false
	}
	if p.Width > 0 && item.Creative.Width > 0 && p.Width != item.Creative.Width {
		return false
	}
	if p.Height > 0 && item.Creative.Height > 0 && p.Height != item.Creative.Height {
		return false
	}
	if len(item.Countries) > 0 {
		matched := false
		for _, c := range tc.Countries {
			if containsFold(item.Countries, c) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if len(item.DeviceTypes) > 0 && !containsFold(item.DeviceTypes, tc.DeviceType) {
		return false
	}
	for k, v := range item.KeyValues {
		if cv, ok := tc.KeyValues[k]; !ok || cv != v {
			return false
		}
	}
	return true
}

// Select returns up to count matching ads for placement p, in inventory order.
func (inv *Inventory) Select(p models.Placement, tc TargetingContext) []InventoryItem {
	pi, ok := inv.Placement(p.ID)
	if !ok {
		return nil
	}
	count := p.Count
	if count <= 0 {
		count = 1
	}
	var out []InventoryItem
	for _, item := range pi.Ads {
		if len(out) == count {
			break
		}
		if item.Matches(p, tc) {
			out = append(out, item)
		}
	}
	return out
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
