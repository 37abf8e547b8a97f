package mockserver

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/patrickwarner/openadserve-sdk/models"
)

//go:embed default_inventory.yaml
var defaultInventoryYAML []byte

// Inventory is the set of ads the mock server can serve, grouped by placement.
type Inventory struct {
	Placements []PlacementInventory `yaml:"placements"`
}

// PlacementInventory lists candidate ads for one placement, in priority order.
type PlacementInventory struct {
	ID  string          `yaml:"id"`
	Ads []InventoryItem `yaml:"ads"`
}

// InventoryItem is one servable ad and its targeting rules. Empty rule lists
// match everything.
type InventoryItem struct {
	ID          string            `yaml:"id"`
	CampaignID  string            `yaml:"campaign_id"`
	Price       float64           `yaml:"price"`
	Countries   []string          `yaml:"countries"`
	DeviceTypes []string          `yaml:"device_types"`
	KeyValues   map[string]string `yaml:"key_values"`
	Creative    CreativeSpec      `yaml:"creative"`
	// Extra third-party tracking, appended after the server's own URLs.
	ImpressionURLs []string `yaml:"impression_urls"`
	ClickURLs      []string `yaml:"click_urls"`
}

// CreativeSpec is the YAML form of models.Creative.
type CreativeSpec struct {
	ID             string         `yaml:"id"`
	Format         string         `yaml:"format"`
	HTML           string         `yaml:"html"`
	ImageURL       string         `yaml:"image_url"`
	Alt            string         `yaml:"alt"`
	Images         []ImageVariant `yaml:"images"`
	Title          string         `yaml:"title"`
	Body           string         `yaml:"body"`
	CallToAction   string         `yaml:"cta"`
	DestinationURL string         `yaml:"destination_url"`
	Width          int            `yaml:"width"`
	Height         int            `yaml:"height"`
	Native         map[string]any `yaml:"native"`
}

// Model converts the YAML creative to the wire type.
func (c CreativeSpec) Model() (models.Creative, error) {
	out := models.Creative{
		ID:             c.ID,
		Format:         c.Format,
		HTML:           c.HTML,
		ImageURL:       c.ImageURL,
		Title:          c.Title,
		Body:           c.Body,
		CallToAction:   c.CallToAction,
		DestinationURL: c.DestinationURL,
		Width:          c.Width,
		Height:         c.Height,
	}
	if c.Format == "image" && c.HTML == "" {
		out.HTML = composeImageHTML(c)
	}
	if len(c.Native) > 0 {
		raw, err := json.Marshal(c.Native)
		if err != nil {
			return models.Creative{}, fmt.Errorf("creative %s: encode native: %w", c.ID, err)
		}
		out.Native = raw
	}
	return out, nil
}

// DefaultInventory returns the built-in demo inventory.
func DefaultInventory() (*Inventory, error) {
	return ParseInventory(defaultInventoryYAML)
}

// LoadInventory reads an inventory file. An empty path yields the default.
func LoadInventory(path string) (*Inventory, error) {
	if path == "" {
		return DefaultInventory()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read inventory: %w", err)
	}
	return ParseInventory(data)
}

// ParseInventory decodes and validates YAML inventory.
func ParseInventory(data []byte) (*Inventory, error) {
	var inv Inventory
	if err := yaml.Unmarshal(data, &inv); err != nil {
		return nil, fmt.Errorf("parse inventory: %w", err)
	}
	if err := inv.validate(); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (inv *Inventory) validate() error {
	seenPlacements := make(map[string]struct{})
	seenAds := make(map[string]struct{})
	for i, p := range inv.Placements {
		if strings.TrimSpace(p.ID) == "" {
			return fmt.Errorf("inventory: placements[%d]: id required", i)
		}
		if _, dup := seenPlacements[p.ID]; dup {
			return fmt.Errorf("inventory: duplicate placement %q", p.ID)
		}
		seenPlacements[p.ID] = struct{}{}
		for j, ad := range p.Ads {
			if ad.ID == "" || ad.Creative.ID == "" {
				return fmt.Errorf("inventory: placement %q ads[%d]: ad id and creative id required", p.ID, j)
			}
			if _, dup := seenAds[ad.ID]; dup {
				return fmt.Errorf("inventory: duplicate ad %q", ad.ID)
			}
			seenAds[ad.ID] = struct{}{}
			if _, err := ad.Creative.Model(); err != nil {
				return fmt.Errorf("inventory: %w", err)
			}
		}
	}
	return nil
}

// Placement returns the inventory for id.
func (inv *Inventory) Placement(id string) (PlacementInventory, bool) {
	for _, p := range inv.Placements {
		if p.ID == id {
			return p, true
		}
	}
	return PlacementInventory{}, false
}

// FindAd returns the ad with the given ID from any placement.
func (inv *Inventory) FindAd(id string) (InventoryItem, bool) {
	for _, p := range inv.Placements {
		for _, ad := range p.Ads {
			if ad.ID == id {
				return ad, true
			}
		}
	}
	return InventoryItem{}, false
}
