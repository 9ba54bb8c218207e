package gateway

import (
	"sync"
	"time"
)

// RateLimiter applies a fixed window per (connection, command) pair. Counts
// reset when the window that opened on the first hit elapses.
type RateLimiter struct {
	mu      sync.Mutex
	window  time.Duration
	max     int
	buckets map[bucketKey]*bucket
	now     func() time.Time
}

type bucketKey struct {
	connID  string
	command string
}

type bucket struct {
	windowStart time.Time
	count       int
}

func NewRateLimiter(window time.Duration, max int) *RateLimiter {
	return &RateLimiter{
		window:  window,
		max:     max,
		buckets: make(map[bucketKey]*bucket),
		now:     time.Now,
	}
}

// Allow records one hit and reports whether it stays within the window limit.
func (rl *RateLimiter) Allow(connID, command string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.max < 1 {
		return false
	}

	now := rl.now()
	key := bucketKey{connID: connID, command: command}
	b, ok := rl.buckets[key]
	if !ok || now.Sub(b.windowStart) >= rl.window {
		rl.buckets[key] = &bucket{windowStart: now, count: 1}
		return true
	}
	b.count++
	return b.count <= rl.max
}

// Forget drops all buckets for a connection once it disconnects.
func (rl *RateLimiter) Forget(connID string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key := range rl.buckets {
		if key.connID == connID {
			delete(rl.buckets, key)
		}
	}
}
