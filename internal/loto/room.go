package loto

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vietparty/room-server/pkg/apperr"
	"github.com/vietparty/room-server/pkg/models"
)

// Notifier pushes committed loto mutations to the room's subscribers. Called
// while the room lock is held so delivery order matches commit order; the
// snapshot passed to LotoUpdated never contains a member's board.
type Notifier interface {
	LotoUpdated(code string, snap models.LotoRoomSnapshot)
	LotoNumberCalled(code string, number int, called []int)
	LotoGameWon(code string, winnerName string)
	LotoRoomClosed(code string, message string)
}

type member struct {
	models.Member
	ready bool
	board models.Board
}

// Room is one lô tô room's authoritative state. All mutations are serialized
// through mu, including the auto-call timer's draws.
type Room struct {
	mu sync.Mutex

	code         string
	hostUserID   string
	config       models.LotoConfig
	createdAt    time.Time
	lastActivity time.Time
	closed       bool

	status     models.GameStatus
	called     []int
	calledSet  map[int]bool
	current    int // 0 means no number called yet
	winnerName string
	members    map[string]*member

	notifier  Notifier
	timerStop chan struct{}
}

// NewRoom builds the room with the host as its only member. The host's board
// is generated by the caller so room construction itself cannot fail.
func NewRoom(code, hostName, connID string, config models.LotoConfig, hostBoard models.Board, notifier Notifier) (*Room, *models.Member) {
	now := time.Now()
	host := &member{
		Member: models.Member{
			UserID:       uuid.NewString(),
			RoomCode:     code,
			DisplayName:  hostName,
			Role:         models.RoleHost,
			ConnectionID: connID,
			JoinedAt:     now,
		},
		board: hostBoard,
	}

	r := &Room{
		code:         code,
		hostUserID:   host.UserID,
		config:       config,
		createdAt:    now,
		lastActivity: now,
		status:       models.GameWaiting,
		calledSet:    make(map[int]bool),
		members:      map[string]*member{host.UserID: host},
		notifier:     notifier,
	}
	m := host.Member
	return r, &m
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

func (r *Room) Join(displayName, connID string) (*models.Member, models.LotoRoomSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, models.LotoRoomSnapshot{}, apperr.ErrRoomNotFound
	}

	board, err := GenerateBoard(r.config.MaxNumber)
	if err != nil {
		return nil, models.LotoRoomSnapshot{}, err
	}

	m := &member{
		Member: models.Member{
			UserID:       uuid.NewString(),
			RoomCode:     r.code,
			DisplayName:  displayName,
			Role:         models.RoleGuest,
			ConnectionID: connID,
			JoinedAt:     time.Now(),
		},
		board: board,
	}
	r.members[m.UserID] = m
	r.touchLocked()

	r.notifyLocked()
	return &m.Member, r.snapshotLocked(m.UserID), nil
}

func (r *Room) Restore(userID, connID string) (*models.Member, models.LotoRoomSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, models.LotoRoomSnapshot{}, apperr.ErrRoomNotFound
	}

	m, ok := r.members[userID]
	if !ok {
		return nil, models.LotoRoomSnapshot{}, apperr.ErrSessionExpired
	}
	m.ConnectionID = connID
	r.touchLocked()

	out := m.Member
	return &out, r.snapshotLocked(userID), nil
}

// SubmitBoard replaces the member's board with a client-generated one.
// Permitted only outside an active round.
func (r *Room) SubmitBoard(userID string, board models.Board) (models.LotoRoomSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return models.LotoRoomSnapshot{}, apperr.ErrRoomNotFound
	}
	m, ok := r.members[userID]
	if !ok {
		return models.LotoRoomSnapshot{}, apperr.ErrUnauthorized
	}
	if r.status != models.GameWaiting && r.status != models.GameFinished {
		return models.LotoRoomSnapshot{}, apperr.ErrGameNotWaiting
	}
	if err := ValidateBoard(board, r.config.MaxNumber); err != nil {
		return models.LotoRoomSnapshot{}, apperr.Validation(err.Error())
	}

	m.board = board
	r.touchLocked()
	return r.snapshotLocked(userID), nil
}

// RegenerateBoard rolls a fresh server-generated board for the member.
func (r *Room) RegenerateBoard(userID string) (models.LotoRoomSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return models.LotoRoomSnapshot{}, apperr.ErrRoomNotFound
	}
	m, ok := r.members[userID]
	if !ok {
		return models.LotoRoomSnapshot{}, apperr.ErrUnauthorized
	}
	if r.status != models.GameWaiting && r.status != models.GameFinished {
		return models.LotoRoomSnapshot{}, apperr.ErrGameNotWaiting
	}

	board, err := GenerateBoard(r.config.MaxNumber)
	if err != nil {
		return models.LotoRoomSnapshot{}, err
	}
	m.board = board
	r.touchLocked()
	return r.snapshotLocked(userID), nil
}

func (r *Room) ToggleReady(userID string, ready bool) (models.LotoRoomSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return models.LotoRoomSnapshot{}, apperr.ErrRoomNotFound
	}
	m, ok := r.members[userID]
	if !ok {
		return models.LotoRoomSnapshot{}, apperr.ErrUnauthorized
	}
	if r.status != models.GameWaiting {
		return models.LotoRoomSnapshot{}, apperr.ErrGameNotWaiting
	}

	m.ready = ready
	r.touchLocked()
	r.notifyLocked()
	return r.snapshotLocked(userID), nil
}

// Start begins a round from waiting (needs at least one ready member) or
// resumes from paused. The auto-call timer runs while playing.
func (r *Room) Start() (models.LotoRoomSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return models.LotoRoomSnapshot{}, apperr.ErrRoomNotFound
	}

	switch r.status {
	case models.GamePaused:
		r.status = models.GamePlaying
	case models.GameWaiting:
		if r.readyCountLocked() == 0 {
			return models.LotoRoomSnapshot{}, apperr.ErrReadyRequired
		}
		r.status = models.GamePlaying
	default:
		return models.LotoRoomSnapshot{}, apperr.ErrGameNotWaiting
	}

	r.startTimerLocked()
	r.touchLocked()
	r.notifyLocked()
	return r.snapshotLocked(""), nil
}

func (r *Room) Pause() (models.LotoRoomSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return models.LotoRoomSnapshot{}, apperr.ErrRoomNotFound
	}
	if r.status != models.GamePlaying {
		return models.LotoRoomSnapshot{}, apperr.ErrGameNotPlaying
	}

	r.status = models.GamePaused
	r.stopTimerLocked()
	r.touchLocked()
	r.notifyLocked()
	return r.snapshotLocked(""), nil
}

// Draw picks uniformly among the uncalled numbers. The read of the uncalled
// set and the append commit under one lock, so concurrent draws can never
// duplicate. Exhaustion finishes the game and returns 0.
func (r *Room) Draw() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, apperr.ErrRoomNotFound
	}
	if r.status != models.GamePlaying {
		return 0, apperr.ErrGameNotPlaying
	}

	uncalled := make([]int, 0, r.config.MaxNumber-len(r.called))
	for n := 1; n <= r.config.MaxNumber; n++ {
		if !r.calledSet[n] {
			uncalled = append(uncalled, n)
		}
	}
	r.touchLocked()

	if len(uncalled) == 0 {
		r.status = models.GameFinished
		r.stopTimerLocked()
		r.notifyLocked()
		return 0, nil
	}

	n := uncalled[rand.Intn(len(uncalled))]
	r.called = append(r.called, n)
	r.calledSet[n] = true
	r.current = n

	if r.notifier != nil {
		r.notifier.LotoNumberCalled(r.code, n, append([]int(nil), r.called...))
	}
	return n, nil
}

// ClaimWin validates and finishes atomically so two overlapping claims cannot
// both win.
func (r *Room) ClaimWin(userID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return "", apperr.ErrRoomNotFound
	}
	m, ok := r.members[userID]
	if !ok {
		return "", apperr.ErrUnauthorized
	}
	if r.status != models.GamePlaying {
		return "", apperr.ErrGameNotPlaying
	}
	if !m.ready {
		return "", apperr.ErrReadyRequired
	}
	if !r.hasCoveredRowLocked(m.board) {
		return "", apperr.Validation("No completed row on your board")
	}

	r.status = models.GameFinished
	r.winnerName = m.DisplayName
	r.stopTimerLocked()
	r.touchLocked()

	if r.notifier != nil {
		r.notifier.LotoGameWon(r.code, m.DisplayName)
	}
	r.notifyLocked()
	return m.DisplayName, nil
}

// ResetRound clears the round and deals fresh boards. Host only (enforced by
// the service).
func (r *Room) ResetRound() (models.LotoRoomSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return models.LotoRoomSnapshot{}, apperr.ErrRoomNotFound
	}

	r.called = nil
	r.calledSet = make(map[int]bool)
	r.current = 0
	r.winnerName = ""
	r.status = models.GameWaiting
	r.stopTimerLocked()

	for _, m := range r.members {
		m.ready = false
		board, err := GenerateBoard(r.config.MaxNumber)
		if err != nil {
			return models.LotoRoomSnapshot{}, err
		}
		m.board = board
	}
	r.touchLocked()
	r.notifyLocked()
	return r.snapshotLocked(""), nil
}

// Close stops background work and notifies subscribers. Idempotent.
func (r *Room) Close(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.stopTimerLocked()
	if r.notifier != nil {
		r.notifier.LotoRoomClosed(r.code, message)
	}
}

func (r *Room) Evict() {
	r.Close("Room expired after inactivity")
}

// Board returns the member's private board for unicast replies.
func (r *Room) Board(userID string) models.Board {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.members[userID]; ok {
		return m.board
	}
	return nil
}

// Snapshot builds the projection for one viewer; an empty viewerID yields the
// public room-wide snapshot.
func (r *Room) Snapshot(viewerID string) models.LotoRoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked(viewerID)
}

func (r *Room) Status() models.GameStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// ── internals (all require r.mu) ──

func (r *Room) startTimerLocked() {
	if r.timerStop != nil || r.config.IntervalSeconds <= 0 {
		return
	}
	stop := make(chan struct{})
	r.timerStop = stop

	go func() {
		ticker := time.NewTicker(time.Duration(r.config.IntervalSeconds) * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if _, err := r.Draw(); err != nil {
					return
				}
			}
		}
	}()
}

func (r *Room) stopTimerLocked() {
	if r.timerStop != nil {
		close(r.timerStop)
		r.timerStop = nil
	}
}

func (r *Room) readyCountLocked() int {
	count := 0
	for _, m := range r.members {
		if m.ready {
			count++
		}
	}
	return count
}

func (r *Room) hasCoveredRowLocked(board models.Board) bool {
	for _, row := range board {
		covered := true
		filled := false
		for _, cell := range row {
			if cell == 0 {
				continue
			}
			filled = true
			if !r.calledSet[cell] {
				covered = false
				break
			}
		}
		if filled && covered {
			return true
		}
	}
	return false
}

func (r *Room) nearWinRowsLocked(board models.Board) []models.NearWinRow {
	var rows []models.NearWinRow
	for i, row := range board {
		waiting := 0
		missing := 0
		for _, cell := range row {
			if cell == 0 || r.calledSet[cell] {
				continue
			}
			missing++
			waiting = cell
		}
		if missing == 1 {
			rows = append(rows, models.NearWinRow{Row: i, WaitingNumber: waiting})
		}
	}
	return rows
}

func (r *Room) touchLocked() {
	r.lastActivity = time.Now()
}

func (r *Room) notifyLocked() {
	if r.notifier != nil {
		r.notifier.LotoUpdated(r.code, r.snapshotLocked(""))
	}
}

func (r *Room) snapshotLocked(viewerID string) models.LotoRoomSnapshot {
	memberStates := make([]models.LotoMemberState, 0, len(r.members))
	readyCount := 0
	for _, m := range r.members {
		if m.ready {
			readyCount++
		}
		memberStates = append(memberStates, models.LotoMemberState{
			UserID:      m.UserID,
			DisplayName: m.DisplayName,
			Ready:       m.ready,
			NearWinRows: r.nearWinRowsLocked(m.board),
		})
	}

	var current *int
	if r.current != 0 {
		n := r.current
		current = &n
	}

	snap := models.LotoRoomSnapshot{
		Room: models.LotoRoomState{
			RoomCode:      r.code,
			HostUserID:    r.hostUserID,
			Config:        r.config,
			CalledNumbers: append([]int(nil), r.called...),
			CurrentNumber: current,
			GameStatus:    r.status,
			MemberCount:   len(r.members),
			ReadyCount:    readyCount,
			WinnerName:    r.winnerName,
			Members:       memberStates,
			CreatedAt:     r.createdAt,
		},
	}
	if viewer, ok := r.members[viewerID]; ok {
		snap.MyBoard = viewer.board
	}
	return snap
}
