package apperr

import "errors"

// Error is the structured failure every room command can resolve to.
// Code is stable and machine-readable; Message is what the client shows.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

func New(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

var (
	ErrRoomNotFound        = New("ROOM_NOT_FOUND", "Room not found")
	ErrPendingLimit        = New("PENDING_LIMIT", "You can only have 2 pending songs")
	ErrDuplicateMedia      = New("DUPLICATE_MEDIA", "Duplicate song from same user is not allowed")
	ErrSongNotFound        = New("SONG_NOT_FOUND", "Song not found in queue")
	ErrQueueLimit          = New("QUEUE_LIMIT", "Queue limit reached")
	ErrNotHost             = New("NOT_HOST", "Only host can perform this action")
	ErrUnauthorized        = New("UNAUTHORIZED", "Join room first")
	ErrInvalidRoomContext  = New("INVALID_ROOM_CONTEXT", "Invalid room context")
	ErrSessionExpired      = New("SESSION_EXPIRED", "Session expired")
	ErrGameNotPlaying      = New("GAME_NOT_PLAYING", "Game is not running")
	ErrGameNotWaiting      = New("GAME_NOT_WAITING", "Game already started")
	ErrReadyRequired       = New("ALREADY_READY_REQUIRED", "Mark yourself ready first")
	ErrAllocationExhausted = New("ALLOCATION_EXHAUSTED", "Failed to allocate room code")
	ErrRateLimited         = New("RATE_LIMITED", "Rate limit exceeded")
	ErrValidation          = New("VALIDATION_ERROR", "Invalid payload")
	ErrInternal            = New("INTERNAL_ERROR", "Something went wrong")
)

// Validation wraps a validator failure with a caller-facing message while
// keeping the stable code.
func Validation(message string) *Error {
	return &Error{Code: ErrValidation.Code, Message: message}
}

// FromError maps any error to an *Error, collapsing unexpected ones to
// INTERNAL_ERROR so internals never leak into acknowledgments.
func FromError(err error) *Error {
	var coded *Error
	if errors.As(err, &coded) {
		return coded
	}
	return ErrInternal
}
