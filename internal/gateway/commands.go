package gateway

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"

	"github.com/vietparty/room-server/pkg/apperr"
	"github.com/vietparty/room-server/pkg/models"
	"github.com/vietparty/room-server/pkg/roomcode"
)

// Command names. Each maps to exactly one payload variant below and one case
// in the gateway dispatch.
const (
	CmdCreateRoom     = "create_room"
	CmdJoinRoom       = "join_room"
	CmdRestoreSession = "restore_session"
	CmdLeaveRoom      = "leave_room"
	CmdAddSong        = "add_song"
	CmdAddPriority    = "add_priority_song"
	CmdSkipSong       = "skip_song"
	CmdRemoveSong     = "remove_song"
	CmdCloseRoom      = "close_room"
	CmdSetQueueLimit  = "set_queue_limit"

	CmdLotoCreateRoom      = "loto_create_room"
	CmdLotoJoinRoom        = "loto_join_room"
	CmdLotoRestoreSession  = "loto_restore_session"
	CmdLotoSubmitBoard     = "loto_submit_board"
	CmdLotoRegenerateBoard = "loto_regenerate_board"
	CmdLotoToggleReady     = "loto_toggle_ready"
	CmdLotoStartGame       = "loto_start_game"
	CmdLotoPauseGame       = "loto_pause_game"
	CmdLotoCallNumber      = "loto_call_number"
	CmdLotoClaimWin        = "loto_claim_win"
	CmdLotoResetRound      = "loto_reset_round"
	CmdLotoCloseRoom       = "loto_close_room"
)

// Command is the inbound envelope: a client-chosen id echoed back in the ack,
// the command name, and the variant payload.
type Command struct {
	ID      int64           `json:"id"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Ack is the unicast reply to the command's sender. Failures carry a stable
// machine-readable code; they are never broadcast.
type Ack struct {
	Type    string `json:"type"`
	ID      int64  `json:"id"`
	OK      bool   `json:"ok"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Push is a server-initiated event fanned out to a room topic.
type Push struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

var validate = validator.New()

// ── payload variants ──

type CreateRoomPayload struct {
	DisplayName string `json:"displayName" validate:"required,min=1,max=80"`
}

type JoinRoomPayload struct {
	RoomCode    string `json:"roomCode" validate:"required"`
	DisplayName string `json:"displayName" validate:"required,min=1,max=80"`
}

type RestoreSessionPayload struct {
	RoomCode    string `json:"roomCode" validate:"required"`
	UserID      string `json:"userId" validate:"required,uuid4"`
	DisplayName string `json:"displayName" validate:"omitempty,max=80"`
}

type AddSongPayload struct {
	RoomCode     string `json:"roomCode" validate:"required"`
	VideoID      string `json:"videoId" validate:"required,len=11"`
	Title        string `json:"title" validate:"required,min=1,max=200"`
	ThumbnailURL string `json:"thumbnailUrl" validate:"required,url"`
	Duration     string `json:"duration" validate:"max=20"`
}

type SkipSongPayload struct {
	RoomCode string `json:"roomCode" validate:"required"`
	Reason   string `json:"reason" validate:"omitempty,oneof=manual ended"`
}

type RemoveSongPayload struct {
	RoomCode string `json:"roomCode" validate:"required"`
	SongID   string `json:"songId" validate:"required,uuid4"`
}

type RoomOnlyPayload struct {
	RoomCode string `json:"roomCode" validate:"required"`
}

type SetQueueLimitPayload struct {
	RoomCode     string `json:"roomCode" validate:"required"`
	MaxQueueSize int    `json:"maxQueueSize" validate:"required,min=1,max=100"`
}

type LotoCreateRoomPayload struct {
	DisplayName string            `json:"displayName" validate:"required,min=1,max=80"`
	Config      models.LotoConfig `json:"config"`
}

type LotoJoinRoomPayload struct {
	RoomCode    string `json:"roomCode" validate:"required"`
	DisplayName string `json:"displayName" validate:"required,min=1,max=80"`
}

type LotoSubmitBoardPayload struct {
	RoomCode string       `json:"roomCode" validate:"required"`
	Board    models.Board `json:"board" validate:"required"`
}

type LotoToggleReadyPayload struct {
	RoomCode string `json:"roomCode" validate:"required"`
	Ready    bool   `json:"ready"`
}

// decodePayload unmarshals and validates one command payload, normalizing any
// roomCode field before the schema check so codes compare case-insensitively.
func decodePayload[T any](raw json.RawMessage, normalizeCode func(*T)) (*T, error) {
	var payload T
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, apperr.Validation("Malformed payload")
	}
	if normalizeCode != nil {
		normalizeCode(&payload)
	}
	if err := validate.Struct(&payload); err != nil {
		return nil, apperr.Validation(err.Error())
	}
	return &payload, nil
}

// checkRoomCode enforces the 6-character unambiguous-alphabet format after
// normalization.
func checkRoomCode(code string) error {
	if !roomcode.Valid(code) {
		return apperr.Validation("Room code must be 6 characters")
	}
	return nil
}
