package mockserver

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickwarner/openadserve-sdk/internal/geoip"
	"github.com/patrickwarner/openadserve-sdk/models"
)

func TestDeviceTypeFromUA(t *testing.T) {
	tests := map[string]string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/100.0.4896.75 Safari/537.36":                              "desktop",
		"Mozilla/5.0 (iPhone; CPU iPhone OS 15_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/15.0 Mobile/15E148 Safari/605.1.15":       "mobile",
		"Mozilla/5.0 (Linux; Android 11; SM-G975F) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/100.0.4896.58 Mobile Safari/537.36":                       "mobile",
		"Mozilla/5.0 (iPad; CPU OS 15_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/15.0 Mobile/15E148 Safari/605.1.15":                "tablet",
		"":                                 "other",
		"completely-bogus-ua-string-12345": "other",
	}
	for ua, want := range tests {
		assert.Equal(t, want, DeviceTypeFromUA(ua), ua)
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("POST", "/v1/decisions", nil)
	r.RemoteAddr = "192.0.2.10:5555"
	assert.Equal(t, "192.0.2.10", ClientIP(r).String())

	r.Header.Set("X-Forwarded-For", " 203.0.113.7 , 10.0.0.1")
	assert.Equal(t, "203.0.113.7", ClientIP(r).String())
}

func TestResolveTargeting(t *testing.T) {
	geo, err := geoip.FromRanges(geoip.Range{Net: "203.0.113.0/24", Country: "CA"})
	require.NoError(t, err)

	r := httptest.NewRequest("POST", "/v1/decisions", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.7")
	r.Header.Set("User-Agent", "Mozilla/5.0 (iPad; CPU OS 15_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/15.0 Mobile/15E148 Safari/605.1.15")

	req := &models.DecisionRequest{}
	tc := ResolveTargeting(r, req, geo)
	assert.Equal(t, []string{"CA"}, tc.Countries)
	assert.Equal(t, "tablet", tc.DeviceType)

	req = &models.DecisionRequest{
		Targeting: &models.Targeting{
			Geo:    []models.GeoTarget{{Country: "us"}, {Country: "US", City: "Austin"}, {Region: "TX"}},
			Custom: models.CustomTargeting{}.With("section", "sports"),
		},
		Device: &models.Device{UA: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/100.0.4896.75 Safari/537.36"},
	}
	tc = ResolveTargeting(r, req, geo)
	assert.Equal(t, []string{"US"}, tc.Countries)
	assert.Equal(t, "desktop", tc.DeviceType)
	assert.Equal(t, map[string]string{"section": "sports"}, tc.KeyValues)
}
