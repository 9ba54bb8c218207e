package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterFixedWindow(t *testing.T) {
	now := time.Now()
	rl := NewRateLimiter(time.Minute, 3)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("conn-1", "add_song"))
	assert.True(t, rl.Allow("conn-1", "add_song"))
	assert.True(t, rl.Allow("conn-1", "add_song"))
	assert.False(t, rl.Allow("conn-1", "add_song"))

	// a different command on the same connection has its own bucket
	assert.True(t, rl.Allow("conn-1", "skip_song"))

	// another connection is unaffected
	assert.True(t, rl.Allow("conn-2", "add_song"))

	// the count resets once the window elapses
	now = now.Add(time.Minute)
	assert.True(t, rl.Allow("conn-1", "add_song"))
}

func TestRateLimiterZeroMaxDeniesEverything(t *testing.T) {
	rl := NewRateLimiter(time.Minute, 0)

	assert.False(t, rl.Allow("conn-1", "add_song"), "a zero limit must not admit the first hit")
	assert.False(t, rl.Allow("conn-1", "add_song"))
	assert.False(t, rl.Allow("conn-2", "skip_song"))
}

func TestRateLimiterForget(t *testing.T) {
	rl := NewRateLimiter(time.Minute, 1)

	assert.True(t, rl.Allow("conn-1", "add_song"))
	assert.False(t, rl.Allow("conn-1", "add_song"))

	rl.Forget("conn-1")
	assert.True(t, rl.Allow("conn-1", "add_song"))
}
