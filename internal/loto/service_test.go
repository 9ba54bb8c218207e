package loto

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietparty/room-server/pkg/apperr"
	"github.com/vietparty/room-server/pkg/models"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(time.Hour, &recordingNotifier{}, nil)
}

func TestServiceCreateRoomValidatesConfig(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.CreateRoom(ctx, "Anh", "conn-1", models.LotoConfig{MaxNumber: 75})
	require.Error(t, err)
	assert.Equal(t, apperr.ErrValidation.Code, apperr.FromError(err).Code)

	for _, max := range []int{60, 90} {
		member, snap, createErr := svc.CreateRoom(ctx, "Anh", "conn-1", models.LotoConfig{MaxNumber: max})
		require.NoError(t, createErr)
		assert.Equal(t, models.RoleHost, member.Role)
		assert.NotNil(t, snap.MyBoard, "host ack must carry the host's board")
		assert.NoError(t, ValidateBoard(snap.MyBoard, max))
	}
}

func TestServiceHostOnlyCommands(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	host, snap, err := svc.CreateRoom(ctx, "Anh", "conn-1", models.LotoConfig{MaxNumber: 90})
	require.NoError(t, err)
	code := snap.Room.RoomCode

	guest, _, err := svc.JoinRoom(ctx, code, "Linh", "conn-2")
	require.NoError(t, err)

	_, err = svc.StartGame(ctx, code, guest.UserID)
	assert.ErrorIs(t, err, apperr.ErrNotHost)
	_, err = svc.PauseGame(ctx, code, guest.UserID)
	assert.ErrorIs(t, err, apperr.ErrNotHost)
	_, err = svc.CallNumber(ctx, code, guest.UserID)
	assert.ErrorIs(t, err, apperr.ErrNotHost)
	_, err = svc.ResetRound(ctx, code, guest.UserID)
	assert.ErrorIs(t, err, apperr.ErrNotHost)
	err = svc.CloseRoom(ctx, code, guest.UserID)
	assert.ErrorIs(t, err, apperr.ErrNotHost)

	// non-host commands are open to every member
	_, err = svc.ToggleReady(ctx, code, guest.UserID, true)
	assert.NoError(t, err)
	_, err = svc.RegenerateBoard(ctx, code, guest.UserID)
	assert.NoError(t, err)

	_, err = svc.StartGame(ctx, code, host.UserID)
	assert.NoError(t, err)
	n, err := svc.CallNumber(ctx, code, host.UserID)
	require.NoError(t, err)
	assert.Greater(t, n, 0)
}

func TestServiceCloseRemovesRoom(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	host, snap, err := svc.CreateRoom(ctx, "Anh", "conn-1", models.LotoConfig{MaxNumber: 60})
	require.NoError(t, err)
	code := snap.Room.RoomCode

	require.NoError(t, svc.CloseRoom(ctx, code, host.UserID))

	_, err = svc.Snapshot(code, "")
	assert.ErrorIs(t, err, apperr.ErrRoomNotFound)
	_, _, err = svc.JoinRoom(ctx, code, "Linh", "conn-2")
	assert.ErrorIs(t, err, apperr.ErrRoomNotFound)
}
