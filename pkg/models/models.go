package models

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleHost  Role = "host"
	RoleGuest Role = "guest"
)

// Member is one participant of a room. UserID is permanent for the room's
// lifetime; ConnectionID is rebound on session restore.
type Member struct {
	UserID       string    `json:"userId"`
	RoomCode     string    `json:"roomCode"`
	DisplayName  string    `json:"displayName"`
	Role         Role      `json:"role"`
	ConnectionID string    `json:"-"`
	JoinedAt     time.Time `json:"joinedAt"`
}

type QueueSong struct {
	ID            string    `json:"id"`
	RoomCode      string    `json:"roomCode"`
	VideoID       string    `json:"videoId"`
	Title         string    `json:"title"`
	ThumbnailURL  string    `json:"thumbnailUrl"`
	Duration      string    `json:"duration"`
	AddedByUserID string    `json:"addedByUserId"`
	AddedByName   string    `json:"addedByName"`
	IsPriority    bool      `json:"isPriority"`
	CreatedAt     time.Time `json:"createdAt"`
}

type RoomState struct {
	RoomCode     string     `json:"roomCode"`
	HostUserID   string     `json:"hostUserId"`
	NowPlaying   *QueueSong `json:"nowPlaying"`
	QueueLength  int        `json:"queueLength"`
	MaxQueueSize int        `json:"maxQueueSize"`
	MemberCount  int        `json:"memberCount"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// RoomSnapshot is the externally visible projection of a karaoke room,
// broadcast to every subscriber after each committed mutation.
type RoomSnapshot struct {
	Room       RoomState   `json:"room"`
	NowPlaying *QueueSong  `json:"nowPlaying"`
	Queue      []QueueSong `json:"queue"`
}

// ── Lô tô ──

type GameStatus string

const (
	GameWaiting  GameStatus = "waiting"
	GamePlaying  GameStatus = "playing"
	GamePaused   GameStatus = "paused"
	GameFinished GameStatus = "finished"
)

// LotoConfig is fixed at room creation. MaxNumber is 60 or 90.
type LotoConfig struct {
	MaxNumber       int  `json:"maxNumber"`
	IntervalSeconds int  `json:"intervalSeconds"`
	VoiceEnabled    bool `json:"voiceEnabled"`
}

// Board is a 9-row grid; zero cells are blanks.
type Board [][]int

// NearWinRow marks a board row with exactly one uncalled cell left.
type NearWinRow struct {
	Row           int `json:"row"`
	WaitingNumber int `json:"waitingNumber"`
}

// LotoMemberState is the member projection safe for room-wide broadcast:
// it carries derived fields but never the member's board.
type LotoMemberState struct {
	UserID      string       `json:"userId"`
	DisplayName string       `json:"displayName"`
	Ready       bool         `json:"ready"`
	NearWinRows []NearWinRow `json:"nearWinRows"`
}

type LotoRoomState struct {
	RoomCode      string            `json:"roomCode"`
	HostUserID    string            `json:"hostUserId"`
	Config        LotoConfig        `json:"config"`
	CalledNumbers []int             `json:"calledNumbers"`
	CurrentNumber *int              `json:"currentNumber"`
	GameStatus    GameStatus        `json:"gameStatus"`
	MemberCount   int               `json:"memberCount"`
	ReadyCount    int               `json:"readyCount"`
	WinnerName    string            `json:"winnerName,omitempty"`
	Members       []LotoMemberState `json:"members"`
	CreatedAt     time.Time         `json:"createdAt"`
}

// LotoRoomSnapshot is broadcast to the room. MyBoard is populated only on the
// unicast copy sent to the board's owner.
type LotoRoomSnapshot struct {
	Room    LotoRoomState `json:"room"`
	MyBoard Board         `json:"myBoard,omitempty"`
}

// ── Persisted history (MySQL via gorm) ──

type SongHistory struct {
	ID          uuid.UUID `json:"id" gorm:"primaryKey"`
	RoomCode    string    `json:"room_code" gorm:"index"`
	VideoID     string    `json:"video_id"`
	Title       string    `json:"title"`
	AddedByName string    `json:"added_by_name"`
	PlayedAt    time.Time `json:"played_at"`
}

type RoomAudit struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey"`
	RoomCode  string    `json:"room_code" gorm:"index"`
	Event     string    `json:"event"`
	ActorID   string    `json:"actor_id"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}
