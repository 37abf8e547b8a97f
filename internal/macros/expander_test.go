package macros

import (
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestMacroExpander_ExpandURL(t *testing.T) {
	logger := zaptest.NewLogger(t)
	expander := NewMacroExpanderWithMode(logger, false)

	ctx := &ExpansionContext{
		AdID:       "ad-1",
		CreativeID: "789",
		CampaignID: "202",
		EventType:  "video_complete",
		Timestamp:  time.Date(2024, 1, 15, 10, 30, 45, 0, time.UTC),
		CustomParams: map[string]string{
			"utm_source":   "google",
			"utm_campaign": "summer 2024",
		},
	}

	tests := []struct {
		name          string
		rawURL        string
		expectedURL   string
		expectedError bool
	}{
		{
			name:        "No macros",
			rawURL:      "https://example.com/track",
			expectedURL: "https://example.com/track",
		},
		{
			name:        "Single macro",
			rawURL:      "https://example.com/track?cr={CREATIVE_ID}",
			expectedURL: "https://example.com/track?cr=789",
		},
		{
			name:        "Multiple macros",
			rawURL:      "https://example.com/track?ad={AD_ID}&cr={CREATIVE_ID}&c={CAMPAIGN_ID}&type={EVENT_TYPE}",
			expectedURL: "https://example.com/track?ad=ad-1&cr=789&c=202&type=video_complete",
		},
		{
			name:        "Timestamp macros",
			rawURL:      "https://example.com/track?ts={TIMESTAMP}&ms={TIMESTAMP_MS}&iso={ISO_TIMESTAMP}",
			expectedURL: "https://example.com/track?ts=1705314645&ms=1705314645000&iso=2024-01-15T10%3A30%3A45Z",
		},
		{
			name:        "Custom parameters are query escaped",
			rawURL:      "https://example.com/track?source={CUSTOM.utm_source}&campaign={CUSTOM.utm_campaign}",
			expectedURL: "https://example.com/track?source=google&campaign=summer+2024",
		},
		{
			name:        "Unknown macro left in place",
			rawURL:      "https://example.com/track?x={NOT_A_MACRO}",
			expectedURL: "https://example.com/track?x={NOT_A_MACRO}",
		},
		{
			name:        "Empty URL",
			rawURL:      "",
			expectedURL: "",
		},
		{
			name:          "Invalid URL",
			rawURL:        "://invalid-url",
			expectedURL:   "://invalid-url",
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := expander.ExpandURL(tt.rawURL, ctx)
			if tt.expectedError {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expectedURL {
				t.Errorf("expected %q, got %q", tt.expectedURL, got)
			}
		})
	}
}

func TestMacroExpander_CacheBusterAndUUID(t *testing.T) {
	expander := NewMacroExpander(zaptest.NewLogger(t))

	got, err := expander.ExpandURL("https://example.com/p?cb={CACHEBUSTER}&id={UUID}", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(got, "{") {
		t.Fatalf("macros not expanded: %s", got)
	}
	cb := strings.TrimPrefix(strings.Split(got, "&")[0], "https://example.com/p?cb=")
	if _, err := strconv.ParseInt(cb, 10, 64); err != nil {
		t.Errorf("cachebuster %q is not numeric", cb)
	}
}

func TestMacroExpander_NilContextUsesNow(t *testing.T) {
	expander := NewMacroExpander(zaptest.NewLogger(t))
	before := time.Now().Unix()

	got, err := expander.ExpandURL("https://example.com/p?ts={TIMESTAMP}", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ts, err := strconv.ParseInt(strings.TrimPrefix(got, "https://example.com/p?ts="), 10, 64)
	if err != nil {
		t.Fatalf("timestamp not numeric: %s", got)
	}
	if ts < before {
		t.Errorf("timestamp %d earlier than %d", ts, before)
	}
}

func TestMacroExpander_LenientModeKeepsFailingMacro(t *testing.T) {
	expander := NewMacroExpander(zaptest.NewLogger(t))
	err := expander.RegisterMacro("FAILING", func(ctx *ExpansionContext) (string, error) {
		return "", fmt.Errorf("boom")
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	got, err := expander.ExpandURL("https://example.com/p?good={AD_ID}&bad={FAILING}", &ExpansionContext{AdID: "42"})
	if err != nil {
		t.Fatalf("lenient mode should not fail: %v", err)
	}
	if got != "https://example.com/p?good=42&bad={FAILING}" {
		t.Errorf("unexpected url: %s", got)
	}
}

func TestMacroExpander_StrictModeFails(t *testing.T) {
	expander := NewMacroExpanderWithMode(zaptest.NewLogger(t), true)

	// EVENT_TYPE fails when no event type is present
	if _, err := expander.ExpandURL("https://example.com/p?type={EVENT_TYPE}", &ExpansionContext{}); err == nil {
		t.Fatal("expected strict mode error")
	}

	expander.SetStrictMode(false)
	got, err := expander.ExpandURL("https://example.com/p?type={EVENT_TYPE}", &ExpansionContext{})
	if err != nil {
		t.Fatalf("lenient mode should not fail: %v", err)
	}
	if got != "https://example.com/p?type={EVENT_TYPE}" {
		t.Errorf("unexpected url: %s", got)
	}
}

func TestMacroExpander_RegisterMacro(t *testing.T) {
	expander := NewMacroExpander(zaptest.NewLogger(t))

	if err := expander.RegisterMacro("", func(*ExpansionContext) (string, error) { return "", nil }); err == nil {
		t.Error("expected error for empty name")
	}
	if err := expander.RegisterMacro("X", nil); err == nil {
		t.Error("expected error for nil func")
	}
	if err := expander.RegisterMacro("CUSTOM.x", func(*ExpansionContext) (string, error) { return "", nil }); err == nil {
		t.Error("expected error for reserved name")
	}
	if err := expander.RegisterMacro("APP", func(*ExpansionContext) (string, error) { return "news app", nil }); err != nil {
		t.Fatalf("register: %v", err)
	}

	got, _ := expander.ExpandURL("https://example.com/p?app={APP}", nil)
	if got != "https://example.com/p?app=news+app" {
		t.Errorf("unexpected url: %s", got)
	}

	found := false
	for _, m := range expander.GetRegisteredMacros() {
		if m == "APP" {
			found = true
		}
	}
	if !found {
		t.Error("APP not listed in registered macros")
	}
}

func TestMacroExpander_ValidateURL(t *testing.T) {
	expander := NewMacroExpander(zaptest.NewLogger(t))

	unsupported := expander.ValidateURL("https://example.com/p?a={AD_ID}&b={CUSTOM.k}&c={FOO}&d={BAR}")
	if len(unsupported) != 2 || unsupported[0] != "FOO" || unsupported[1] != "BAR" {
		t.Errorf("expected [FOO BAR], got %v", unsupported)
	}
	if got := expander.ValidateURL("https://example.com/p?a={TIMESTAMP}"); len(got) != 0 {
		t.Errorf("expected no unsupported macros, got %v", got)
	}
}
