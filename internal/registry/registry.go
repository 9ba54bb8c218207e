package registry

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vietparty/room-server/pkg/apperr"
	"github.com/vietparty/room-server/pkg/roomcode"
)

const allocateAttempts = 8

// Room is what the registry stores. Evict must serialize with in-flight
// mutations (take the room's own lock), notify subscribers and stop any
// background work before the registry drops the entry.
type Room interface {
	LastActivityAt() time.Time
	Evict()
}

// Registry maps room codes to live room aggregates. It is the only
// process-wide mutable shared state; per-room serialization is the room's job.
type Registry[T Room] struct {
	mu    sync.RWMutex
	rooms map[string]T
	ttl   time.Duration
	log   *logrus.Entry
}

func New[T Room](ttl time.Duration, component string) *Registry[T] {
	return &Registry[T]{
		rooms: make(map[string]T),
		ttl:   ttl,
		log:   logrus.WithField("component", component),
	}
}

// Allocate generates a candidate code, retries on collision, and installs the
// room built by the factory. Fails with ALLOCATION_EXHAUSTED after a bounded
// number of attempts.
func (r *Registry[T]) Allocate(build func(code string) T) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := 0; i < allocateAttempts; i++ {
		code := roomcode.Generate()
		if _, exists := r.rooms[code]; exists {
			continue
		}
		room := build(code)
		r.rooms[code] = room
		return room, nil
	}

	var zero T
	r.log.Warn("room code allocation exhausted")
	return zero, apperr.ErrAllocationExhausted
}

func (r *Registry[T]) Get(code string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[roomcode.Normalize(code)]
	return room, ok
}

// Remove is idempotent.
func (r *Registry[T]) Remove(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rooms, roomcode.Normalize(code))
}

func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// SweepLoop evicts idle rooms until ctx is cancelled.
func (r *Registry[T]) SweepLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(time.Now())
		}
	}
}

// Sweep removes every room idle past the TTL. Evict is called outside the
// registry lock so per-room serialization cannot deadlock against Get.
func (r *Registry[T]) Sweep(now time.Time) int {
	r.mu.Lock()
	expired := make(map[string]T)
	for code, room := range r.rooms {
		if now.Sub(room.LastActivityAt()) > r.ttl {
			expired[code] = room
			delete(r.rooms, code)
		}
	}
	r.mu.Unlock()

	for code, room := range expired {
		room.Evict()
		r.log.WithField("room_code", code).Info("evicted idle room")
	}
	return len(expired)
}
