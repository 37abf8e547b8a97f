package mockserver

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickwarner/openadserve-sdk/models"
)

func TestDefaultInventory(t *testing.T) {
	inv, err := DefaultInventory()
	require.NoError(t, err)

	p, ok := inv.Placement("home-banner")
	require.True(t, ok)
	assert.Len(t, p.Ads, 2)

	ad, ok := inv.FindAd("ad-native-app")
	require.True(t, ok)
	creative, err := ad.Creative.Model()
	require.NoError(t, err)
	assert.Equal(t, "native", creative.Format)
	assert.Equal(t, "Install", creative.CallToAction)

	var native map[string]any
	require.NoError(t, json.Unmarshal(creative.Native, &native))
	assert.Equal(t, 4.7, native["rating"])
}

func TestParseInventoryErrors(t *testing.T) {
	tests := map[string]string{
		"bad yaml":          "placements: [",
		"missing id":        "placements:\n  - ads: []\n",
		"dup placement":     "placements:\n  - id: a\n  - id: a\n",
		"missing ad id":     "placements:\n  - id: a\n    ads:\n      - creative: {id: c}\n",
		"missing creative":  "placements:\n  - id: a\n    ads:\n      - id: x\n",
		"dup ad across two": "placements:\n  - id: a\n    ads:\n      - {id: x, creative: {id: c}}\n  - id: b\n    ads:\n      - {id: x, creative: {id: d}}\n",
	}
	for name, doc := range tests {
		_, err := ParseInventory([]byte(doc))
		assert.Error(t, err, name)
	}
}

func TestLoadInventory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inv.yaml")
	doc := `
placements:
  - id: top
    ads:
      - id: a1
        price: 1.5
        creative:
          id: c1
          format: image
          image_url: https://cdn.example.com/a.png
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	inv, err := LoadInventory(path)
	require.NoError(t, err)
	ad, ok := inv.FindAd("a1")
	require.True(t, ok)
	assert.Equal(t, 1.5, ad.Price)

	inv, err = LoadInventory("")
	require.NoError(t, err)
	_, ok = inv.Placement("feed-native")
	assert.True(t, ok)

	_, err = LoadInventory(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSelect(t *testing.T) {
	inv, err := DefaultInventory()
	require.NoError(t, err)

	tests := []struct {
		name      string
		placement models.Placement
		tc        TargetingContext
		want      []string
	}{
		{
			name:      "untargeted falls through to generic",
			placement: models.Placement{ID: "home-banner"},
			want:      []string{"ad-banner-generic"},
		},
		{
			name:      "country and key-value match",
			placement: models.Placement{ID: "home-banner", Count: 2},
			tc:        TargetingContext{Countries: []string{"US"}, KeyValues: map[string]string{"section": "sports"}},
			want:      []string{"ad-sports-us", "ad-banner-generic"},
		},
		{
			name:      "wrong country",
			placement: models.Placement{ID: "home-banner", Count: 2},
			tc:        TargetingContext{Countries: []string{"FR"}, KeyValues: map[string]string{"section": "sports"}},
			want:      []string{"ad-banner-generic"},
		},
		{
			name:      "format filter",
			placement: models.Placement{ID: "home-banner", Count: 2, Formats: []string{"image"}},
			tc:        TargetingContext{Countries: []string{"us"}, KeyValues: map[string]string{"section": "sports"}},
			want:      []string{"ad-sports-us"},
		},
		{
			name:      "size filter",
			placement: models.Placement{ID: "home-banner", Width: 300, Height: 250},
		},
		{
			name:      "device filter",
			placement: models.Placement{ID: "feed-native"},
			tc:        TargetingContext{DeviceType: "desktop"},
			want:      []string{"ad-native-shop"},
		},
		{
			name:      "unknown placement",
			placement: models.Placement{ID: "nowhere"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, item := range inv.Select(tt.placement, tt.tc) {
				got = append(got, item.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
