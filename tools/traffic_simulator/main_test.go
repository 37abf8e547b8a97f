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
)

func newSimulator(t *testing.T, opts Options) (*Simulator, *mockserver.Server) {
	t.Helper()
	inv, err := mockserver.DefaultInventory()
	require.NoError(t, err)
	mock := mockserver.NewServer(zap.NewNop(), inv, nil, nil, []byte("sim"), time.Minute)
	ts := httptest.NewServer(mock.Routes())
	t.Cleanup(ts.Close)

	client, err := adsdk.NewClient(adsdk.DefaultConfig(ts.URL))
	require.NoError(t, err)
	return &Simulator{Client: client, Logger: zap.NewNop(), Opts: opts}, mock
}

func TestSimulatorRun(t *testing.T) {
	sim, mock := newSimulator(t, Options{
		Users:       5,
		Placements:  []string{"home-banner", "feed-native"},
		Requests:    40,
		Concurrency: 8,
		ClickRate:   1,
	})
	sim.Run(context.Background())

	assert.Equal(t, uint64(40), sim.Stats.Sent.Load())
	assert.Zero(t, sim.Stats.Errors.Load())
	assert.Equal(t, uint64(40), sim.Stats.Filled.Load()+sim.Stats.NoBid.Load())
	assert.Equal(t, sim.Stats.Filled.Load(), sim.Stats.Clicks.Load())
	assert.Len(t, mock.Events(), int(sim.Stats.Tracked.Load()))
}

func TestSimulatorRun_NoFill(t *testing.T) {
	sim, _ := newSimulator(t, Options{
		Placements:  []string{"nowhere"},
		Requests:    5,
		Concurrency: 2,
	})
	sim.Run(context.Background())

	assert.Equal(t, uint64(5), sim.Stats.NoBid.Load())
	assert.Zero(t, sim.Stats.Filled.Load())
}

func TestSimulatorRun_StopsOnCancel(t *testing.T) {
	sim, _ := newSimulator(t, Options{
		Placements:  []string{"home-banner"},
		Concurrency: 1,
		Rate:        1,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	sim.Run(ctx)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.LessOrEqual(t, sim.Stats.Sent.Load(), uint64(1))
}
