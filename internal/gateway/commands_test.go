package gateway

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietparty/room-server/pkg/apperr"
	"github.com/vietparty/room-server/pkg/roomcode"
)

func TestDecodeCreateRoomPayload(t *testing.T) {
	payload, err := decodePayload[CreateRoomPayload](json.RawMessage(`{"displayName":"Anh"}`), nil)
	require.NoError(t, err)
	assert.Equal(t, "Anh", payload.DisplayName)

	_, err = decodePayload[CreateRoomPayload](json.RawMessage(`{"displayName":""}`), nil)
	require.Error(t, err)
	assert.Equal(t, apperr.ErrValidation.Code, apperr.FromError(err).Code)

	long := strings.Repeat("x", 81)
	_, err = decodePayload[CreateRoomPayload](json.RawMessage(`{"displayName":"`+long+`"}`), nil)
	assert.Error(t, err)
}

func TestDecodeNormalizesRoomCode(t *testing.T) {
	raw := json.RawMessage(`{"roomCode":" abc234 ","displayName":"Linh"}`)
	payload, err := decodePayload[JoinRoomPayload](raw, func(p *JoinRoomPayload) {
		p.RoomCode = roomcode.Normalize(p.RoomCode)
	})
	require.NoError(t, err)
	assert.Equal(t, "ABC234", payload.RoomCode)
	assert.NoError(t, checkRoomCode(payload.RoomCode))
}

func TestCheckRoomCode(t *testing.T) {
	assert.NoError(t, checkRoomCode("ABC234"))

	for _, code := range []string{"", "ABC", "abc234", "ABCD2345"} {
		err := checkRoomCode(code)
		require.Error(t, err, "code %q must be rejected", code)
		assert.Equal(t, apperr.ErrValidation.Code, apperr.FromError(err).Code)
	}
}

func TestDecodeAddSongPayload(t *testing.T) {
	valid := `{"roomCode":"ABC234","videoId":"dQw4w9WgXcQ","title":"Song","thumbnailUrl":"https://img.example.com/t.jpg","duration":"3:32"}`
	payload, err := decodePayload[AddSongPayload](json.RawMessage(valid), nil)
	require.NoError(t, err)
	assert.Equal(t, "dQw4w9WgXcQ", payload.VideoID)

	// video ids are exactly 11 characters
	short := `{"roomCode":"ABC234","videoId":"short","title":"Song","thumbnailUrl":"https://img.example.com/t.jpg"}`
	_, err = decodePayload[AddSongPayload](json.RawMessage(short), nil)
	assert.Error(t, err)

	_, err = decodePayload[AddSongPayload](json.RawMessage(`not json`), nil)
	assert.Error(t, err)
}

func TestDecodeSetQueueLimitPayload(t *testing.T) {
	_, err := decodePayload[SetQueueLimitPayload](json.RawMessage(`{"roomCode":"ABC234","maxQueueSize":50}`), nil)
	assert.NoError(t, err)

	_, err = decodePayload[SetQueueLimitPayload](json.RawMessage(`{"roomCode":"ABC234","maxQueueSize":0}`), nil)
	assert.Error(t, err)

	_, err = decodePayload[SetQueueLimitPayload](json.RawMessage(`{"roomCode":"ABC234","maxQueueSize":101}`), nil)
	assert.Error(t, err)
}
