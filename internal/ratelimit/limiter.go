package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// Config holds the configuration for rate limiting.
type Config struct {
	Capacity   int  // burst allowance per client
	RefillRate int  // tokens added per second
	Enabled    bool // when false every request is allowed
}

// ClientLimiter keeps one token bucket per client key (an API key or a client
// IP). Buckets are created lazily on first use.
type ClientLimiter struct {
	buckets map[string]*TokenBucket
	mu      sync.RWMutex
	config  Config
	now     func() time.Time
}

// NewClientLimiter creates a limiter with the given configuration.
func NewClientLimiter(config Config) *ClientLimiter {
	return &ClientLimiter{
		buckets: make(map[string]*TokenBucket),
		config:  config,
		now:     time.Now,
	}
}

// Enabled reports whether the limiter rejects anything at all.
func (cl *ClientLimiter) Enabled() bool {
	return cl != nil && cl.config.Enabled
}

// Allow reports whether a request from key may proceed. When it may not, the
// returned duration hints how long the client should wait.
func (cl *ClientLimiter) Allow(key string) (bool, time.Duration) {
	if !cl.Enabled() {
		return true, 0
	}
	bucket := cl.bucket(key)
	if bucket.Allow() {
		return true, 0
	}
	return false, bucket.RetryAfter()
}

func (cl *ClientLimiter) bucket(key string) *TokenBucket {
	cl.mu.RLock()
	bucket, ok := cl.buckets[key]
	cl.mu.RUnlock()
	if ok {
		return bucket
	}

	cl.mu.Lock()
	defer cl.mu.Unlock()
	if bucket, ok = cl.buckets[key]; !ok {
		bucket = newTokenBucket(cl.config.Capacity, cl.config.RefillRate, cl.now)
		cl.buckets[key] = bucket
	}
	return bucket
}

// Stats returns a snapshot of per-client statistics.
func (cl *ClientLimiter) Stats() map[string]Stats {
	cl.mu.RLock()
	defer cl.mu.RUnlock()

	stats := make(map[string]Stats, len(cl.buckets))
	for key, bucket := range cl.buckets {
		hits, total := bucket.Stats()
		hitRate := 0.0
		if total > 0 {
			hitRate = float64(hits) / float64(total)
		}
		stats[key] = Stats{Client: key, Hits: hits, Total: total, HitRate: hitRate}
	}
	return stats
}

// Stats describes rate limiting activity for one client.
type Stats struct {
	Client  string  `json:"client"`
	Hits    int64   `json:"hits"`
	Total   int64   `json:"total"`
	HitRate float64 `json:"hit_rate"` // 0.0-1.0
}

// String returns a human-readable representation of the statistics.
func (s Stats) String() string {
	return fmt.Sprintf("client %s: %d/%d limited (%.2f%%)", s.Client, s.Hits, s.Total, s.HitRate*100)
}
