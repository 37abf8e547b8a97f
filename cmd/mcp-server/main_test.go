package main

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/patrickwarner/openadserve-sdk/adsdk"
	"github.com/patrickwarner/openadserve-sdk/internal/mockserver"
	"github.com/patrickwarner/openadserve-sdk/models"
)

func newTestAdServer(t *testing.T) (*AdServer, *mockserver.Server) {
	t.Helper()
	inv, err := mockserver.DefaultInventory()
	require.NoError(t, err)
	mock := mockserver.NewServer(zap.NewNop(), inv, nil, nil, []byte("mcp-secret"), time.Minute)
	ts := httptest.NewServer(mock.Routes())
	t.Cleanup(ts.Close)

	client, err := adsdk.NewClient(adsdk.DefaultConfig(ts.URL))
	require.NoError(t, err)
	return NewAdServer(client, 7, zap.NewNop()), mock
}

func TestRequestAdsTool(t *testing.T) {
	s, _ := newTestAdServer(t)

	_, out, err := s.RequestAds(context.Background(), nil, RequestAdsInput{
		Placements: []string{"home-banner:image", "feed-native"},
		Countries:  []string{"CA"},
		Custom:     map[string]string{"section": "sports"},
	})
	require.NoError(t, err)
	require.Len(t, out.Ads, 2)
	assert.Equal(t, "home-banner", out.Ads[0].PlacementID)
	assert.Equal(t, "ad-sports-us", out.Ads[0].AdID)
	assert.Equal(t, "native", out.Ads[1].Format)
	assert.NotEmpty(t, out.RequestID)
}

func TestRequestAdsTool_Invalid(t *testing.T) {
	s, _ := newTestAdServer(t)

	_, _, err := s.RequestAds(context.Background(), nil, RequestAdsInput{})
	assert.ErrorIs(t, err, adsdk.ErrConfiguration)
}

func TestRememberForgetsOldestAds(t *testing.T) {
	s := NewAdServer(nil, 0, zap.NewNop())
	s.maxAds = 2

	for _, id := range []string{"a", "b", "a", "c"} {
		s.remember(models.Ad{ID: id})
	}
	assert.Len(t, s.ads, 2)
	assert.Equal(t, []string{"b", "c"}, s.order)
	_, ok := s.ads["a"]
	assert.False(t, ok)
}

func TestFireTrackingTool(t *testing.T) {
	s, mock := newTestAdServer(t)
	ctx := context.Background()

	_, ads, err := s.RequestAds(ctx, nil, RequestAdsInput{Placements: []string{"feed-native"}})
	require.NoError(t, err)
	require.Len(t, ads.Ads, 1)
	adID := ads.Ads[0].AdID

	_, out, err := s.FireTracking(ctx, nil, FireTrackingInput{AdID: adID})
	require.NoError(t, err)
	assert.Equal(t, "delivered", out.Status)

	_, _, err = s.FireTracking(ctx, nil, FireTrackingInput{AdID: adID, Kind: "event", EventType: "share"})
	require.NoError(t, err)

	_, _, err = s.FireTracking(ctx, nil, FireTrackingInput{AdID: adID, Kind: "event"})
	assert.ErrorIs(t, err, adsdk.ErrConfiguration)

	_, _, err = s.FireTracking(ctx, nil, FireTrackingInput{AdID: "missing"})
	assert.Error(t, err)

	_, _, err = s.FireTracking(ctx, nil, FireTrackingInput{AdID: adID, Kind: "hover"})
	assert.Error(t, err)

	events := mock.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "impression", events[0].Kind)
	assert.Equal(t, "share", events[1].EventType)
}

func TestNewMCPServer(t *testing.T) {
	s, _ := newTestAdServer(t)
	assert.NotNil(t, newMCPServer(s))
}
