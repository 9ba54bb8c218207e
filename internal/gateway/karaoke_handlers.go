package gateway

import (
	"context"
	"encoding/json"

	"github.com/vietparty/room-server/internal/karaoke"
	"github.com/vietparty/room-server/pkg/apperr"
	"github.com/vietparty/room-server/pkg/models"
	"github.com/vietparty/room-server/pkg/roomcode"
)

// karaokeSession resolves the caller's karaoke membership and checks it
// against the room named in the payload.
func (g *Gateway) karaokeSession(c *Client, code string) (*session, error) {
	if c.karaoke == nil {
		return nil, apperr.ErrUnauthorized
	}
	if c.karaoke.roomCode != code {
		return nil, apperr.ErrInvalidRoomContext
	}
	return c.karaoke, nil
}

func (g *Gateway) handleCreateRoom(c *Client, raw json.RawMessage) (any, error) {
	payload, err := decodePayload[CreateRoomPayload](raw, nil)
	if err != nil {
		return nil, err
	}

	member, snap, err := g.karaoke.CreateRoom(context.Background(), payload.DisplayName, c.id)
	if err != nil {
		return nil, err
	}

	c.karaoke = &session{roomCode: member.RoomCode, userID: member.UserID, displayName: member.DisplayName, role: string(member.Role)}
	g.hub.Subscribe(karaokeTopic(member.RoomCode), c)
	return joinData(member, snap), nil
}

func (g *Gateway) handleJoinRoom(c *Client, raw json.RawMessage) (any, error) {
	payload, err := decodePayload[JoinRoomPayload](raw, func(p *JoinRoomPayload) {
		p.RoomCode = roomcode.Normalize(p.RoomCode)
	})
	if err != nil {
		return nil, err
	}
	if err := checkRoomCode(payload.RoomCode); err != nil {
		return nil, err
	}

	member, snap, err := g.karaoke.JoinRoom(context.Background(), payload.RoomCode, payload.DisplayName, c.id)
	if err != nil {
		return nil, err
	}

	c.karaoke = &session{roomCode: member.RoomCode, userID: member.UserID, displayName: member.DisplayName, role: string(member.Role)}
	g.hub.Subscribe(karaokeTopic(member.RoomCode), c)
	return joinData(member, snap), nil
}

func (g *Gateway) handleRestoreSession(c *Client, raw json.RawMessage) (any, error) {
	payload, err := decodePayload[RestoreSessionPayload](raw, func(p *RestoreSessionPayload) {
		p.RoomCode = roomcode.Normalize(p.RoomCode)
	})
	if err != nil {
		return nil, err
	}
	if err := checkRoomCode(payload.RoomCode); err != nil {
		return nil, err
	}

	member, snap, err := g.karaoke.RestoreSession(context.Background(), payload.RoomCode, payload.UserID, c.id)
	if err != nil {
		return nil, err
	}

	c.karaoke = &session{roomCode: member.RoomCode, userID: member.UserID, displayName: member.DisplayName, role: string(member.Role)}
	g.hub.Subscribe(karaokeTopic(member.RoomCode), c)
	return joinData(member, snap), nil
}

func (g *Gateway) handleLeaveRoom(c *Client, raw json.RawMessage) (any, error) {
	payload, err := decodePayload[RoomOnlyPayload](raw, func(p *RoomOnlyPayload) {
		p.RoomCode = roomcode.Normalize(p.RoomCode)
	})
	if err != nil {
		return nil, err
	}
	sess, err := g.karaokeSession(c, payload.RoomCode)
	if err != nil {
		return nil, err
	}

	if _, err := g.karaoke.LeaveRoom(context.Background(), payload.RoomCode, sess.userID); err != nil {
		return nil, err
	}
	g.hub.Unsubscribe(karaokeTopic(payload.RoomCode), c)
	c.karaoke = nil
	return map[string]string{"roomCode": payload.RoomCode}, nil
}

func (g *Gateway) handleAddSong(c *Client, raw json.RawMessage, priority bool) (any, error) {
	payload, err := decodePayload[AddSongPayload](raw, func(p *AddSongPayload) {
		p.RoomCode = roomcode.Normalize(p.RoomCode)
	})
	if err != nil {
		return nil, err
	}
	sess, err := g.karaokeSession(c, payload.RoomCode)
	if err != nil {
		return nil, err
	}

	input := karaoke.SongInput{
		VideoID:      payload.VideoID,
		Title:        payload.Title,
		ThumbnailURL: payload.ThumbnailURL,
		Duration:     payload.Duration,
	}
	snap, err := g.karaoke.AddSong(context.Background(), payload.RoomCode, sess.userID, sess.displayName, input, priority)
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (g *Gateway) handleSkipSong(c *Client, raw json.RawMessage) (any, error) {
	payload, err := decodePayload[SkipSongPayload](raw, func(p *SkipSongPayload) {
		p.RoomCode = roomcode.Normalize(p.RoomCode)
	})
	if err != nil {
		return nil, err
	}
	sess, err := g.karaokeSession(c, payload.RoomCode)
	if err != nil {
		return nil, err
	}
	return g.karaoke.SkipSong(context.Background(), payload.RoomCode, sess.userID)
}

func (g *Gateway) handleRemoveSong(c *Client, raw json.RawMessage) (any, error) {
	payload, err := decodePayload[RemoveSongPayload](raw, func(p *RemoveSongPayload) {
		p.RoomCode = roomcode.Normalize(p.RoomCode)
	})
	if err != nil {
		return nil, err
	}
	sess, err := g.karaokeSession(c, payload.RoomCode)
	if err != nil {
		return nil, err
	}
	return g.karaoke.RemoveSong(context.Background(), payload.RoomCode, sess.userID, payload.SongID)
}

func (g *Gateway) handleCloseRoom(c *Client, raw json.RawMessage) (any, error) {
	payload, err := decodePayload[RoomOnlyPayload](raw, func(p *RoomOnlyPayload) {
		p.RoomCode = roomcode.Normalize(p.RoomCode)
	})
	if err != nil {
		return nil, err
	}
	sess, err := g.karaokeSession(c, payload.RoomCode)
	if err != nil {
		return nil, err
	}

	if err := g.karaoke.CloseRoom(context.Background(), payload.RoomCode, sess.userID); err != nil {
		return nil, err
	}
	c.karaoke = nil
	return map[string]string{"roomCode": payload.RoomCode}, nil
}

func (g *Gateway) handleSetQueueLimit(c *Client, raw json.RawMessage) (any, error) {
	payload, err := decodePayload[SetQueueLimitPayload](raw, func(p *SetQueueLimitPayload) {
		p.RoomCode = roomcode.Normalize(p.RoomCode)
	})
	if err != nil {
		return nil, err
	}
	sess, err := g.karaokeSession(c, payload.RoomCode)
	if err != nil {
		return nil, err
	}
	return g.karaoke.SetQueueLimit(context.Background(), payload.RoomCode, sess.userID, payload.MaxQueueSize)
}

func joinData(member *models.Member, snap models.RoomSnapshot) map[string]any {
	return map[string]any{
		"roomCode": member.RoomCode,
		"userId":   member.UserID,
		"role":     member.Role,
		"snapshot": snap,
	}
}
