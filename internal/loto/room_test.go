package loto

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietparty/room-server/pkg/apperr"
	"github.com/vietparty/room-server/pkg/models"
)

type recordingNotifier struct {
	mu      sync.Mutex
	updates []models.LotoRoomSnapshot
	numbers []int
	winners []string
	closed  []string
}

func (n *recordingNotifier) LotoUpdated(code string, snap models.LotoRoomSnapshot) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.updates = append(n.updates, snap)
}

func (n *recordingNotifier) LotoNumberCalled(code string, number int, called []int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.numbers = append(n.numbers, number)
}

func (n *recordingNotifier) LotoGameWon(code, winnerName string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.winners = append(n.winners, winnerName)
}

func (n *recordingNotifier) LotoRoomClosed(code, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = append(n.closed, message)
}

// manual-call config so no background timer interferes with assertions
func newTestRoom(t *testing.T, maxNumber int) (*Room, *models.Member, *recordingNotifier) {
	t.Helper()
	notifier := &recordingNotifier{}
	board, err := GenerateBoard(maxNumber)
	require.NoError(t, err)
	config := models.LotoConfig{MaxNumber: maxNumber, IntervalSeconds: 0}
	room, host := NewRoom("LOT234", "Anh", "conn-1", config, board, notifier)
	return room, host, notifier
}

func TestStartRequiresReadyMember(t *testing.T) {
	room, host, _ := newTestRoom(t, 90)

	_, err := room.Start()
	assert.ErrorIs(t, err, apperr.ErrReadyRequired)

	_, err = room.ToggleReady(host.UserID, true)
	require.NoError(t, err)

	snap, err := room.Start()
	require.NoError(t, err)
	assert.Equal(t, models.GamePlaying, snap.Room.GameStatus)

	// starting an already running game fails
	_, err = room.Start()
	assert.ErrorIs(t, err, apperr.ErrGameNotWaiting)
}

func TestPauseAndResume(t *testing.T) {
	room, host, _ := newTestRoom(t, 90)

	_, err := room.Pause()
	assert.ErrorIs(t, err, apperr.ErrGameNotPlaying)

	_, err = room.ToggleReady(host.UserID, true)
	require.NoError(t, err)
	_, err = room.Start()
	require.NoError(t, err)

	snap, err := room.Pause()
	require.NoError(t, err)
	assert.Equal(t, models.GamePaused, snap.Room.GameStatus)

	_, err = room.Draw()
	assert.ErrorIs(t, err, apperr.ErrGameNotPlaying)

	snap, err = room.Start()
	require.NoError(t, err)
	assert.Equal(t, models.GamePlaying, snap.Room.GameStatus)
}

func TestDrawWithoutReplacement(t *testing.T) {
	room, host, notifier := newTestRoom(t, 90)
	_, err := room.ToggleReady(host.UserID, true)
	require.NoError(t, err)
	_, err = room.Start()
	require.NoError(t, err)

	seen := make(map[int]bool)
	for i := 0; i < 90; i++ {
		n, drawErr := room.Draw()
		require.NoError(t, drawErr)
		require.GreaterOrEqual(t, n, 1)
		require.LessOrEqual(t, n, 90)
		require.False(t, seen[n], "number %d drawn twice", n)
		seen[n] = true
	}
	assert.Len(t, notifier.numbers, 90)

	// the pool is exhausted: the next draw finishes the round
	n, err := room.Draw()
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, models.GameFinished, room.Status())

	_, err = room.Draw()
	assert.ErrorIs(t, err, apperr.ErrGameNotPlaying)
}

func TestClaimWin(t *testing.T) {
	room, host, notifier := newTestRoom(t, 90)
	guest, _, err := room.Join("Linh", "conn-2")
	require.NoError(t, err)

	_, err = room.ToggleReady(host.UserID, true)
	require.NoError(t, err)
	_, err = room.Start()
	require.NoError(t, err)

	// claiming before any number is on the board fails
	_, err = room.ClaimWin(host.UserID)
	require.Error(t, err)
	assert.Equal(t, apperr.ErrValidation.Code, apperr.FromError(err).Code)

	// a member who never readied cannot win even with a covered row
	coverRow(room, room.Board(guest.UserID), 0)
	_, err = room.ClaimWin(guest.UserID)
	assert.ErrorIs(t, err, apperr.ErrReadyRequired)

	coverRow(room, room.Board(host.UserID), 0)
	winner, err := room.ClaimWin(host.UserID)
	require.NoError(t, err)
	assert.Equal(t, "Anh", winner)
	assert.Equal(t, models.GameFinished, room.Status())
	assert.Equal(t, []string{"Anh"}, notifier.winners)

	// the round is over, a second claim cannot also win
	_, err = room.ClaimWin(host.UserID)
	assert.ErrorIs(t, err, apperr.ErrGameNotPlaying)
}

func TestResetRound(t *testing.T) {
	room, host, _ := newTestRoom(t, 90)
	boardBefore := room.Board(host.UserID)

	_, err := room.ToggleReady(host.UserID, true)
	require.NoError(t, err)
	_, err = room.Start()
	require.NoError(t, err)
	_, err = room.Draw()
	require.NoError(t, err)

	snap, err := room.ResetRound()
	require.NoError(t, err)

	assert.Equal(t, models.GameWaiting, snap.Room.GameStatus)
	assert.Empty(t, snap.Room.CalledNumbers)
	assert.Nil(t, snap.Room.CurrentNumber)
	assert.Empty(t, snap.Room.WinnerName)
	assert.Equal(t, 0, snap.Room.ReadyCount)
	assert.NotEqual(t, boardBefore, room.Board(host.UserID), "reset must deal a fresh board")
}

func TestSubmitBoard(t *testing.T) {
	room, host, _ := newTestRoom(t, 90)

	board, err := GenerateBoard(90)
	require.NoError(t, err)

	snap, err := room.SubmitBoard(host.UserID, board)
	require.NoError(t, err)
	assert.Equal(t, board, snap.MyBoard)

	// shape violations are rejected
	_, err = room.SubmitBoard(host.UserID, board[:3])
	require.Error(t, err)
	assert.Equal(t, apperr.ErrValidation.Code, apperr.FromError(err).Code)

	// boards are frozen once a round runs
	_, err = room.ToggleReady(host.UserID, true)
	require.NoError(t, err)
	_, err = room.Start()
	require.NoError(t, err)
	_, err = room.SubmitBoard(host.UserID, board)
	assert.ErrorIs(t, err, apperr.ErrGameNotWaiting)
}

func TestBoardPrivacy(t *testing.T) {
	room, host, notifier := newTestRoom(t, 90)
	guest, guestSnap, err := room.Join("Linh", "conn-2")
	require.NoError(t, err)

	assert.NotNil(t, guestSnap.MyBoard)
	assert.Equal(t, room.Board(guest.UserID), guestSnap.MyBoard)

	hostSnap := room.Snapshot(host.UserID)
	assert.Equal(t, room.Board(host.UserID), hostSnap.MyBoard)

	// the room-wide projection never carries a board
	public := room.Snapshot("")
	assert.Nil(t, public.MyBoard)
	for _, snap := range notifier.updates {
		assert.Nil(t, snap.MyBoard, "broadcast snapshot leaked a board")
	}
}

func TestNearWinRows(t *testing.T) {
	room, host, _ := newTestRoom(t, 90)
	board := room.Board(host.UserID)

	// cover the first row except a single waiting number
	var waiting int
	room.mu.Lock()
	skipped := false
	for _, cell := range board[0] {
		if cell == 0 {
			continue
		}
		if !skipped {
			skipped = true
			waiting = cell
			continue
		}
		room.called = append(room.called, cell)
		room.calledSet[cell] = true
	}
	room.mu.Unlock()

	snap := room.Snapshot("")
	var hostState *models.LotoMemberState
	for i := range snap.Room.Members {
		if snap.Room.Members[i].UserID == host.UserID {
			hostState = &snap.Room.Members[i]
		}
	}
	require.NotNil(t, hostState)
	require.Len(t, hostState.NearWinRows, 1)
	assert.Equal(t, 0, hostState.NearWinRows[0].Row)
	assert.Equal(t, waiting, hostState.NearWinRows[0].WaitingNumber)
}

func TestAutoCallTimerLifecycle(t *testing.T) {
	notifier := &recordingNotifier{}
	board, err := GenerateBoard(60)
	require.NoError(t, err)
	config := models.LotoConfig{MaxNumber: 60, IntervalSeconds: 30}
	room, host := NewRoom("LOT234", "Anh", "conn-1", config, board, notifier)

	_, err = room.ToggleReady(host.UserID, true)
	require.NoError(t, err)
	_, err = room.Start()
	require.NoError(t, err)

	room.mu.Lock()
	assert.NotNil(t, room.timerStop, "playing room must run the auto-call timer")
	room.mu.Unlock()

	_, err = room.Pause()
	require.NoError(t, err)
	room.mu.Lock()
	assert.Nil(t, room.timerStop, "pause must stop the timer")
	room.mu.Unlock()

	_, err = room.Start()
	require.NoError(t, err)
	room.Close("done")
	room.mu.Lock()
	assert.Nil(t, room.timerStop, "close must stop the timer")
	room.mu.Unlock()
}

func TestManualCallConfigRunsNoTimer(t *testing.T) {
	room, host, _ := newTestRoom(t, 60)
	_, err := room.ToggleReady(host.UserID, true)
	require.NoError(t, err)
	_, err = room.Start()
	require.NoError(t, err)

	room.mu.Lock()
	assert.Nil(t, room.timerStop)
	room.mu.Unlock()
}

func TestCloseRejectsMutations(t *testing.T) {
	room, host, notifier := newTestRoom(t, 60)

	room.Close("Host closed this room")
	room.Close("again")
	require.Len(t, notifier.closed, 1)

	_, err := room.ToggleReady(host.UserID, true)
	assert.ErrorIs(t, err, apperr.ErrRoomNotFound)
	_, _, err = room.Join("Linh", "conn-2")
	assert.ErrorIs(t, err, apperr.ErrRoomNotFound)
	_, err = room.Draw()
	assert.ErrorIs(t, err, apperr.ErrRoomNotFound)
}

// coverRow marks every number of one board row as called, bypassing the draw
// path so the covered-row predicate can be tested deterministically.
func coverRow(room *Room, board models.Board, row int) {
	room.mu.Lock()
	defer room.mu.Unlock()
	for _, cell := range board[row] {
		if cell == 0 || room.calledSet[cell] {
			continue
		}
		room.called = append(room.called, cell)
		room.calledSet[cell] = true
	}
}
