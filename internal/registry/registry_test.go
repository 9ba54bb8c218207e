package registry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRoom struct {
	mu           sync.Mutex
	code         string
	lastActivity time.Time
	evicted      bool
}

func (s *stubRoom) LastActivityAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

func (s *stubRoom) Evict() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evicted = true
}

func newStub(code string) *stubRoom {
	return &stubRoom{code: code, lastActivity: time.Now()}
}

func TestAllocateAndGet(t *testing.T) {
	reg := New[*stubRoom](time.Hour, "test")

	room, err := reg.Allocate(newStub)
	require.NoError(t, err)
	require.NotEmpty(t, room.code)

	got, ok := reg.Get(room.code)
	require.True(t, ok)
	assert.Same(t, room, got)

	// lookup is case-insensitive after normalization
	got, ok = reg.Get("  " + room.code + " ")
	require.True(t, ok)
	assert.Same(t, room, got)
}

func TestAllocateUniqueCodes(t *testing.T) {
	reg := New[*stubRoom](time.Hour, "test")

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		room, err := reg.Allocate(newStub)
		require.NoError(t, err)
		assert.False(t, seen[room.code], "code %s allocated twice", room.code)
		seen[room.code] = true
	}
	assert.Equal(t, 50, reg.Len())
}

func TestRemoveIsIdempotent(t *testing.T) {
	reg := New[*stubRoom](time.Hour, "test")
	room, err := reg.Allocate(newStub)
	require.NoError(t, err)

	reg.Remove(room.code)
	reg.Remove(room.code)
	assert.Equal(t, 0, reg.Len())

	_, ok := reg.Get(room.code)
	assert.False(t, ok)
}

func TestSweepEvictsOnlyIdleRooms(t *testing.T) {
	reg := New[*stubRoom](time.Hour, "test")

	fresh, err := reg.Allocate(newStub)
	require.NoError(t, err)
	stale, err := reg.Allocate(newStub)
	require.NoError(t, err)
	stale.lastActivity = time.Now().Add(-2 * time.Hour)

	evicted := reg.Sweep(time.Now())
	assert.Equal(t, 1, evicted)

	assert.True(t, stale.evicted)
	assert.False(t, fresh.evicted)

	_, ok := reg.Get(stale.code)
	assert.False(t, ok)
	_, ok = reg.Get(fresh.code)
	assert.True(t, ok)
}
