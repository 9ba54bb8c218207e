package karaoke

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vietparty/room-server/pkg/apperr"
	"github.com/vietparty/room-server/pkg/models"
)

const (
	// DefaultPendingQuota is how many not-yet-played songs one member may
	// hold in the queue at once.
	DefaultPendingQuota = 2
	// DefaultMaxQueueSize bounds the whole room queue.
	DefaultMaxQueueSize = 10
)

// Notifier receives the room snapshot after every committed mutation. It is
// invoked while the room lock is held, so fanout order matches commit order;
// implementations must not block.
type Notifier interface {
	RoomUpdated(code string, snap models.RoomSnapshot)
	NowPlayingChanged(code string, song *models.QueueSong)
	RoomClosed(code string, message string)
}

// Room is one karaoke room's authoritative state. Every mutation runs under
// mu, so concurrent commands against the same room cannot interleave their
// read-modify-write sequences.
type Room struct {
	mu sync.Mutex

	code         string
	hostUserID   string
	createdAt    time.Time
	lastActivity time.Time
	closed       bool

	maxQueueSize int
	pendingQuota int
	nowPlaying   *models.QueueSong
	queue        []models.QueueSong
	members      map[string]*models.Member

	notifier Notifier
}

// NewRoom creates the room with its host as the only member. The host role is
// fixed at creation; there is no transfer-of-host operation.
func NewRoom(code, hostName, connID string, notifier Notifier) (*Room, *models.Member) {
	now := time.Now()
	host := &models.Member{
		UserID:       uuid.NewString(),
		RoomCode:     code,
		DisplayName:  hostName,
		Role:         models.RoleHost,
		ConnectionID: connID,
		JoinedAt:     now,
	}

	r := &Room{
		code:         code,
		hostUserID:   host.UserID,
		createdAt:    now,
		lastActivity: now,
		maxQueueSize: DefaultMaxQueueSize,
		pendingQuota: DefaultPendingQuota,
		members:      map[string]*models.Member{host.UserID: host},
		notifier:     notifier,
	}
	return r, host
}

func (r *Room) Code() string { return r.code }

func (r *Room) LastActivityAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastActivity
}

func (r *Room) IsHost(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return userID == r.hostUserID
}

// Join adds a guest and broadcasts the updated snapshot.
func (r *Room) Join(displayName, connID string) (*models.Member, models.RoomSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, models.RoomSnapshot{}, apperr.ErrRoomNotFound
	}

	member := &models.Member{
		UserID:       uuid.NewString(),
		RoomCode:     r.code,
		DisplayName:  displayName,
		Role:         models.RoleGuest,
		ConnectionID: connID,
		JoinedAt:     time.Now(),
	}
	r.members[member.UserID] = member
	r.touchLocked()

	snap := r.snapshotLocked()
	r.notifyLocked(snap)
	return member, snap, nil
}

// Restore rebinds an existing membership to a new connection. A stale or
// unknown userId fails without creating a member.
func (r *Room) Restore(userID, connID string) (*models.Member, models.RoomSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, models.RoomSnapshot{}, apperr.ErrRoomNotFound
	}

	member, ok := r.members[userID]
	if !ok {
		return nil, models.RoomSnapshot{}, apperr.ErrSessionExpired
	}
	member.ConnectionID = connID
	r.touchLocked()
	return member, r.snapshotLocked(), nil
}

// Leave detaches the member's connection without dropping membership, so a
// later restore_session with the same userId still succeeds. Queued songs the
// member already added stay in the queue. Unknown members are a no-op.
func (r *Room) Leave(userID string) (models.RoomSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return models.RoomSnapshot{}, apperr.ErrRoomNotFound
	}

	if m, ok := r.members[userID]; ok {
		m.ConnectionID = ""
		r.touchLocked()
		snap := r.snapshotLocked()
		r.notifyLocked(snap)
		return snap, nil
	}
	return r.snapshotLocked(), nil
}

// Enqueue applies the guarded insert: room open, member under pending quota,
// no duplicate media from the same member, room queue under its limit. The
// quota bookkeeping and the insert commit in the same critical section.
// When nothing is playing the song starts immediately instead of queueing;
// a playing song still occupies its owner's quota slot and dedup entry until
// the next pop replaces it.
func (r *Room) Enqueue(member *models.Member, song models.QueueSong, priority bool) (models.QueueSong, models.RoomSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return models.QueueSong{}, models.RoomSnapshot{}, apperr.ErrRoomNotFound
	}

	pending := 0
	if r.nowPlaying != nil && r.nowPlaying.AddedByUserID == member.UserID {
		pending++
		if r.nowPlaying.VideoID == song.VideoID {
			return models.QueueSong{}, models.RoomSnapshot{}, apperr.ErrDuplicateMedia
		}
	}
	for _, item := range r.queue {
		if item.AddedByUserID != member.UserID {
			continue
		}
		pending++
		if item.VideoID == song.VideoID {
			return models.QueueSong{}, models.RoomSnapshot{}, apperr.ErrDuplicateMedia
		}
	}
	if pending >= r.pendingQuota {
		return models.QueueSong{}, models.RoomSnapshot{}, apperr.ErrPendingLimit
	}

	song.ID = uuid.NewString()
	song.RoomCode = r.code
	song.AddedByUserID = member.UserID
	song.AddedByName = member.DisplayName
	song.IsPriority = priority
	song.CreatedAt = time.Now()

	startedPlaying := false
	switch {
	case r.nowPlaying == nil:
		r.nowPlaying = &song
		startedPlaying = true
	case len(r.queue) >= r.maxQueueSize:
		return models.QueueSong{}, models.RoomSnapshot{}, apperr.ErrQueueLimit
	case priority:
		r.queue = append([]models.QueueSong{song}, r.queue...)
	default:
		r.queue = append(r.queue, song)
	}
	r.touchLocked()

	snap := r.snapshotLocked()
	r.notifyLocked(snap)
	if startedPlaying && r.notifier != nil {
		r.notifier.NowPlayingChanged(r.code, snap.NowPlaying)
	}
	return song, snap, nil
}

// PopNext removes the queue head and makes it now-playing, releasing the
// finished song owner's quota slot in the same step. Returns nil when the
// queue was empty (now-playing is cleared).
func (r *Room) PopNext() (*models.QueueSong, models.RoomSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, models.RoomSnapshot{}, apperr.ErrRoomNotFound
	}

	if len(r.queue) == 0 {
		r.nowPlaying = nil
	} else {
		next := r.queue[0]
		r.queue = r.queue[1:]
		r.nowPlaying = &next
	}
	r.touchLocked()

	snap := r.snapshotLocked()
	r.notifyLocked(snap)
	if r.notifier != nil {
		r.notifier.NowPlayingChanged(r.code, snap.NowPlaying)
	}
	return r.nowPlaying, snap, nil
}

// RemoveByID removes at most one matching queued song.
func (r *Room) RemoveByID(songID string) (bool, models.RoomSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false, models.RoomSnapshot{}, apperr.ErrRoomNotFound
	}

	for i, item := range r.queue {
		if item.ID != songID {
			continue
		}
		r.queue = append(r.queue[:i], r.queue[i+1:]...)
		r.touchLocked()
		snap := r.snapshotLocked()
		r.notifyLocked(snap)
		return true, snap, nil
	}
	return false, r.snapshotLocked(), nil
}

// SetQueueLimit rejects limits below the current queue length so no queued
// song is silently dropped.
func (r *Room) SetQueueLimit(limit int) (models.RoomSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return models.RoomSnapshot{}, apperr.ErrRoomNotFound
	}
	if limit < len(r.queue) {
		return models.RoomSnapshot{}, apperr.Validation("Current queue is longer than the requested limit")
	}

	r.maxQueueSize = limit
	r.touchLocked()

	snap := r.snapshotLocked()
	r.notifyLocked(snap)
	return snap, nil
}

// Close marks the room dead and notifies every subscriber. Idempotent.
func (r *Room) Close(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	if r.notifier != nil {
		r.notifier.RoomClosed(r.code, message)
	}
}

// Evict is the sweeper's entry; it serializes against in-flight mutations
// through the same lock Close uses.
func (r *Room) Evict() {
	r.Close("Room expired after inactivity")
}

func (r *Room) Snapshot() models.RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Room) touchLocked() {
	r.lastActivity = time.Now()
}

func (r *Room) notifyLocked(snap models.RoomSnapshot) {
	if r.notifier != nil {
		r.notifier.RoomUpdated(r.code, snap)
	}
}

func (r *Room) snapshotLocked() models.RoomSnapshot {
	queue := make([]models.QueueSong, len(r.queue))
	copy(queue, r.queue)

	var playing *models.QueueSong
	if r.nowPlaying != nil {
		song := *r.nowPlaying
		playing = &song
	}

	return models.RoomSnapshot{
		Room: models.RoomState{
			RoomCode:     r.code,
			HostUserID:   r.hostUserID,
			NowPlaying:   playing,
			QueueLength:  len(r.queue),
			MaxQueueSize: r.maxQueueSize,
			MemberCount:  len(r.members),
			CreatedAt:    r.createdAt,
		},
		NowPlaying: playing,
		Queue:      queue,
	}
}
