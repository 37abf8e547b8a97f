package observability

import (
	"sync"
	"time"
)

// MockMetricsRegistry records calls so tests can assert on them.
type MockMetricsRegistry struct {
	mu            sync.Mutex
	Requests      map[string]int // "endpoint method status"
	Latencies     int
	NoBids        int
	AdsServed     map[string]int
	TrackingFires map[string]int // "kind outcome"
	Events        map[string]int
}

// NewMockMetricsRegistry returns an empty MockMetricsRegistry.
func NewMockMetricsRegistry() *MockMetricsRegistry {
	return &MockMetricsRegistry{
		Requests:      make(map[string]int),
		AdsServed:     make(map[string]int),
		TrackingFires: make(map[string]int),
		Events:        make(map[string]int),
	}
}

func (m *MockMetricsRegistry) IncrementRequests(endpoint, method, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests[endpoint+" "+method+" "+status]++
}

func (m *MockMetricsRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Latencies++
}

func (m *MockMetricsRegistry) IncrementNoBids() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.NoBids++
}

func (m *MockMetricsRegistry) IncrementAdsServed(format string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AdsServed[format]++
}

func (m *MockMetricsRegistry) IncrementTrackingFires(kind, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TrackingFires[kind+" "+outcome]++
}

func (m *MockMetricsRegistry) IncrementEvent(eventType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events[eventType]++
}

// RequestCount returns how often IncrementRequests saw the given labels.
func (m *MockMetricsRegistry) RequestCount(endpoint, method, status string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Requests[endpoint+" "+method+" "+status]
}

// TrackingFireCount returns how often IncrementTrackingFires saw the given labels.
func (m *MockMetricsRegistry) TrackingFireCount(kind, outcome string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.TrackingFires[kind+" "+outcome]
}

// NoBidCount returns the number of IncrementNoBids calls.
func (m *MockMetricsRegistry) NoBidCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.NoBids
}

// EventCount returns how often IncrementEvent saw eventType.
func (m *MockMetricsRegistry) EventCount(eventType string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Events[eventType]
}
