package karaoke

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietparty/room-server/pkg/apperr"
	"github.com/vietparty/room-server/pkg/models"
)

type recordingNotifier struct {
	mu         sync.Mutex
	updates    []models.RoomSnapshot
	nowPlaying []*models.QueueSong
	closed     []string
}

func (n *recordingNotifier) RoomUpdated(code string, snap models.RoomSnapshot) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.updates = append(n.updates, snap)
}

func (n *recordingNotifier) NowPlayingChanged(code string, song *models.QueueSong) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nowPlaying = append(n.nowPlaying, song)
}

func (n *recordingNotifier) RoomClosed(code, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = append(n.closed, message)
}

func newTestRoom(t *testing.T) (*Room, *models.Member, *recordingNotifier) {
	t.Helper()
	notifier := &recordingNotifier{}
	room, host := NewRoom("ABC234", "Anh", "conn-1", notifier)
	return room, host, notifier
}

func song(videoID string) models.QueueSong {
	return models.QueueSong{VideoID: videoID, Title: "Song " + videoID, Duration: "3:45"}
}

func TestNewRoomHostMembership(t *testing.T) {
	room, host, _ := newTestRoom(t)

	assert.Equal(t, models.RoleHost, host.Role)
	assert.Equal(t, "ABC234", host.RoomCode)
	assert.True(t, room.IsHost(host.UserID))
	assert.False(t, room.IsHost("someone-else"))

	snap := room.Snapshot()
	assert.Equal(t, 1, snap.Room.MemberCount)
	assert.Equal(t, DefaultMaxQueueSize, snap.Room.MaxQueueSize)
	assert.Nil(t, snap.NowPlaying)
}

func TestEnqueueStartsPlaybackWhenIdle(t *testing.T) {
	room, host, notifier := newTestRoom(t)

	committed, snap, err := room.Enqueue(host, song("aaaaaaaaaaa"), false)
	require.NoError(t, err)

	require.NotNil(t, snap.NowPlaying)
	assert.Equal(t, committed.ID, snap.NowPlaying.ID)
	assert.Empty(t, snap.Queue, "instant play must not also queue")

	require.Len(t, notifier.nowPlaying, 1)
	assert.Equal(t, committed.ID, notifier.nowPlaying[0].ID)
}

func TestEnqueuePendingQuota(t *testing.T) {
	room, host, _ := newTestRoom(t)

	// first song plays instantly but still holds its owner's quota slot
	_, _, err := room.Enqueue(host, song("aaaaaaaaaaa"), false)
	require.NoError(t, err)

	_, snap, err := room.Enqueue(host, song("bbbbbbbbbbb"), false)
	require.NoError(t, err)
	assert.Len(t, snap.Queue, 1)

	_, _, err = room.Enqueue(host, song("ccccccccccc"), false)
	assert.ErrorIs(t, err, apperr.ErrPendingLimit)

	// another member has their own quota
	guest, _, err := room.Join("Linh", "conn-2")
	require.NoError(t, err)
	_, _, err = room.Enqueue(guest, song("ccccccccccc"), false)
	assert.NoError(t, err)
}

func TestEnqueueRejectsDuplicateFromSameMember(t *testing.T) {
	room, host, _ := newTestRoom(t)
	guest, _, err := room.Join("Linh", "conn-2")
	require.NoError(t, err)

	_, _, err = room.Enqueue(host, song("aaaaaaaaaaa"), false)
	require.NoError(t, err)
	_, _, err = room.Enqueue(host, song("bbbbbbbbbbb"), false)
	require.NoError(t, err)

	_, _, err = room.Enqueue(host, song("bbbbbbbbbbb"), false)
	assert.ErrorIs(t, err, apperr.ErrDuplicateMedia)

	// the currently playing song stays in the dedup set too
	_, _, err = room.Enqueue(host, song("aaaaaaaaaaa"), false)
	assert.ErrorIs(t, err, apperr.ErrDuplicateMedia)

	// same media from a different member is allowed
	_, _, err = room.Enqueue(guest, song("bbbbbbbbbbb"), false)
	assert.NoError(t, err)
}

func TestPopNextReleasesQuota(t *testing.T) {
	room, host, _ := newTestRoom(t)

	_, _, err := room.Enqueue(host, song("aaaaaaaaaaa"), false)
	require.NoError(t, err)
	_, _, err = room.Enqueue(host, song("bbbbbbbbbbb"), false)
	require.NoError(t, err)

	_, _, err = room.Enqueue(host, song("ccccccccccc"), false)
	require.ErrorIs(t, err, apperr.ErrPendingLimit)

	next, _, err := room.PopNext()
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, "bbbbbbbbbbb", next.VideoID)

	_, _, err = room.Enqueue(host, song("ccccccccccc"), false)
	assert.NoError(t, err, "the pop must free the finished song's quota slot")
}

func TestPriorityEnqueuePrepends(t *testing.T) {
	room, host, _ := newTestRoom(t)
	guest, _, err := room.Join("Linh", "conn-2")
	require.NoError(t, err)

	_, _, err = room.Enqueue(host, song("aaaaaaaaaaa"), false)
	require.NoError(t, err)
	_, _, err = room.Enqueue(host, song("bbbbbbbbbbb"), false)
	require.NoError(t, err)
	_, snap, err := room.Enqueue(guest, song("ccccccccccc"), true)
	require.NoError(t, err)

	require.Len(t, snap.Queue, 2)
	assert.Equal(t, "ccccccccccc", snap.Queue[0].VideoID)
	assert.Equal(t, "bbbbbbbbbbb", snap.Queue[1].VideoID)
}

func TestQueueLimit(t *testing.T) {
	room, host, _ := newTestRoom(t)

	_, err := room.SetQueueLimit(1)
	require.NoError(t, err)

	_, _, err = room.Enqueue(host, song("aaaaaaaaaaa"), false)
	require.NoError(t, err)
	_, _, err = room.Enqueue(host, song("bbbbbbbbbbb"), false)
	require.NoError(t, err)

	guest, _, err := room.Join("Linh", "conn-2")
	require.NoError(t, err)
	_, _, err = room.Enqueue(guest, song("ccccccccccc"), false)
	assert.ErrorIs(t, err, apperr.ErrQueueLimit)

	// priority insert does not bypass the limit either
	_, _, err = room.Enqueue(guest, song("ccccccccccc"), true)
	assert.ErrorIs(t, err, apperr.ErrQueueLimit)
}

func TestSetQueueLimitBelowCurrentLength(t *testing.T) {
	room, host, _ := newTestRoom(t)
	guest, _, err := room.Join("Linh", "conn-2")
	require.NoError(t, err)

	_, _, err = room.Enqueue(host, song("aaaaaaaaaaa"), false)
	require.NoError(t, err)
	_, _, err = room.Enqueue(host, song("bbbbbbbbbbb"), false)
	require.NoError(t, err)
	_, _, err = room.Enqueue(guest, song("ccccccccccc"), false)
	require.NoError(t, err)

	_, err = room.SetQueueLimit(1)
	require.Error(t, err)
	appErr := apperr.FromError(err)
	assert.Equal(t, apperr.ErrValidation.Code, appErr.Code)

	snap := room.Snapshot()
	assert.Equal(t, DefaultMaxQueueSize, snap.Room.MaxQueueSize)
	assert.Len(t, snap.Queue, 2)
}

func TestPopNextEmptiesPlayback(t *testing.T) {
	room, host, _ := newTestRoom(t)

	_, _, err := room.Enqueue(host, song("aaaaaaaaaaa"), false)
	require.NoError(t, err)

	next, snap, err := room.PopNext()
	require.NoError(t, err)
	assert.Nil(t, next)
	assert.Nil(t, snap.NowPlaying)
}

func TestRemoveByID(t *testing.T) {
	room, host, _ := newTestRoom(t)

	_, _, err := room.Enqueue(host, song("aaaaaaaaaaa"), false)
	require.NoError(t, err)
	queued, _, err := room.Enqueue(host, song("bbbbbbbbbbb"), false)
	require.NoError(t, err)

	removed, snap, err := room.RemoveByID(queued.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Empty(t, snap.Queue)

	removed, _, err = room.RemoveByID(queued.ID)
	require.NoError(t, err)
	assert.False(t, removed, "second removal must report not found")
}

func TestLeaveKeepsMembershipForRestore(t *testing.T) {
	room, _, _ := newTestRoom(t)
	guest, _, err := room.Join("Linh", "conn-2")
	require.NoError(t, err)

	snap, err := room.Leave(guest.UserID)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Room.MemberCount)

	// the same userId can reconnect after leaving
	restored, _, err := room.Restore(guest.UserID, "conn-3")
	require.NoError(t, err)
	assert.Equal(t, "conn-3", restored.ConnectionID)

	// leaving for an unknown user is a no-op
	_, err = room.Leave("unknown-user")
	require.NoError(t, err)
}

func TestCloseIsIdempotentAndRejectsMutations(t *testing.T) {
	room, host, notifier := newTestRoom(t)

	room.Close("Host closed this room")
	room.Close("again")
	require.Len(t, notifier.closed, 1)
	assert.Equal(t, "Host closed this room", notifier.closed[0])

	_, _, err := room.Enqueue(host, song("aaaaaaaaaaa"), false)
	assert.ErrorIs(t, err, apperr.ErrRoomNotFound)
	_, _, err = room.Join("Linh", "conn-2")
	assert.ErrorIs(t, err, apperr.ErrRoomNotFound)
	_, _, err = room.PopNext()
	assert.ErrorIs(t, err, apperr.ErrRoomNotFound)
}

func TestRestore(t *testing.T) {
	room, host, _ := newTestRoom(t)

	member, _, err := room.Restore(host.UserID, "conn-9")
	require.NoError(t, err)
	assert.Equal(t, "conn-9", member.ConnectionID)

	_, _, err = room.Restore("unknown-user", "conn-9")
	assert.ErrorIs(t, err, apperr.ErrSessionExpired)
}

func TestConcurrentEnqueuesRespectLimit(t *testing.T) {
	room, _, _ := newTestRoom(t)
	_, err := room.SetQueueLimit(5)
	require.NoError(t, err)

	// occupy playback so every later enqueue targets the queue
	host, _, err := room.Join("Seed", "conn-seed")
	require.NoError(t, err)
	_, _, err = room.Enqueue(host, song("seedseedsee"), false)
	require.NoError(t, err)

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		member, _, joinErr := room.Join(fmt.Sprintf("Guest %d", i), fmt.Sprintf("conn-%d", i))
		require.NoError(t, joinErr)
		wg.Add(1)
		go func(m *models.Member, n int) {
			defer wg.Done()
			room.Enqueue(m, song(fmt.Sprintf("vid%08d", n)), false)
		}(member, i)
	}
	wg.Wait()

	snap := room.Snapshot()
	assert.Equal(t, 5, len(snap.Queue))
	assert.Equal(t, 5, snap.Room.QueueLength)
}
