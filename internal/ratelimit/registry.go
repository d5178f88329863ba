package ratelimit

import (
	"sync"
	"time"
)

// Registry hands out one bucket per key, for example per chat user. Buckets
// that have refilled completely carry no state and are dropped by Prune.
type Registry struct {
	rate  float64
	burst float64

	mu      sync.Mutex
	buckets map[string]*RateLimiter
}

// NewRegistry creates a registry whose buckets refill at tokensPerSecond and
// hold at most burstSize tokens.
func NewRegistry(tokensPerSecond, burstSize float64) *Registry {
	return &Registry{
		rate:    tokensPerSecond,
		burst:   burstSize,
		buckets: make(map[string]*RateLimiter),
	}
}

// Allow takes a token from key's bucket. When none is available it returns
// false and the time until the next token.
func (r *Registry) Allow(key string) (bool, time.Duration) {
	rl := r.bucket(key)
	if rl.Allow() {
		return true, 0
	}
	return false, rl.Delay()
}

func (r *Registry) bucket(key string) *RateLimiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	rl, ok := r.buckets[key]
	if !ok {
		rl = NewRateLimiter(r.rate, r.burst)
		r.buckets[key] = rl
	}
	return rl
}

// Prune drops buckets that are full at now and returns how many were removed.
func (r *Registry) Prune(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for key, rl := range r.buckets {
		if rl.full(now) {
			delete(r.buckets, key)
			n++
		}
	}
	return n
}

// Len returns the number of tracked keys.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buckets)
}
