// Package ratelimit implements token bucket rate limiting for decision
// requests, keyed by client.
//
// A bucket allows bursts up to its capacity while holding clients to a
// sustained rate over time.
package ratelimit

import (
	"sync"
	"time"
)

// TokenBucket implements a thread-safe token bucket rate limiter.
//
// The bucket has a fixed capacity and refills at a constant rate.
// Each request consumes one token. When the bucket is empty,
// requests are rejected until tokens refill.
//
// Buckets are created by ClientLimiter, one per client.
type TokenBucket struct {
	capacity   int
	tokens     int
	refillRate int // tokens per second
	lastRefill time.Time
	mu         sync.Mutex
	hitCount   int64 // rejected requests
	totalCount int64
	now        func() time.Time
}

// newTokenBucket creates a bucket that starts full. now supplies the clock.
func newTokenBucket(capacity, refillRate int, now func() time.Time) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		tokens:     capacity,
		refillRate: refillRate,
		lastRefill: now(),
		now:        now,
	}
}

// Allow attempts to consume one token. It reports false when the bucket is
// empty.
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.totalCount++

	now := tb.now()
	tokensToAdd := int(now.Sub(tb.lastRefill).Seconds() * float64(tb.refillRate))
	if tokensToAdd > 0 {
		tb.tokens = min(tb.capacity, tb.tokens+tokensToAdd)
		tb.lastRefill = now
	}

	if tb.tokens > 0 {
		tb.tokens--
		return true
	}

	tb.hitCount++
	return false
}

// RetryAfter estimates how long until the next token is available.
func (tb *TokenBucket) RetryAfter() time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	if tb.tokens > 0 || tb.refillRate <= 0 {
		return 0
	}
	perToken := time.Second / time.Duration(tb.refillRate)
	wait := perToken - tb.now().Sub(tb.lastRefill)
	if wait < 0 {
		return 0
	}
	return wait
}

// Stats returns how many requests were rejected and how many were seen.
func (tb *TokenBucket) Stats() (hits, total int64) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.hitCount, tb.totalCount
}
