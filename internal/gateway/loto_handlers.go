package gateway

import (
	"context"
	"encoding/json"

	"github.com/vietparty/room-server/pkg/apperr"
	"github.com/vietparty/room-server/pkg/models"
	"github.com/vietparty/room-server/pkg/roomcode"
)

func (g *Gateway) lotoSession(c *Client, code string) (*session, error) {
	if c.loto == nil {
		return nil, apperr.ErrUnauthorized
	}
	if c.loto.roomCode != code {
		return nil, apperr.ErrInvalidRoomContext
	}
	return c.loto, nil
}

func (g *Gateway) handleLotoCreateRoom(c *Client, raw json.RawMessage) (any, error) {
	payload, err := decodePayload[LotoCreateRoomPayload](raw, nil)
	if err != nil {
		return nil, err
	}
	if payload.Config.IntervalSeconds < 0 || payload.Config.IntervalSeconds > 60 {
		return nil, apperr.Validation("intervalSeconds must be between 0 and 60")
	}

	member, snap, err := g.loto.CreateRoom(context.Background(), payload.DisplayName, c.id, payload.Config)
	if err != nil {
		return nil, err
	}

	c.loto = &session{roomCode: member.RoomCode, userID: member.UserID, displayName: member.DisplayName, role: string(member.Role)}
	g.hub.Subscribe(lotoTopic(member.RoomCode), c)
	return lotoJoinData(member, snap), nil
}

func (g *Gateway) handleLotoJoinRoom(c *Client, raw json.RawMessage) (any, error) {
	payload, err := decodePayload[LotoJoinRoomPayload](raw, func(p *LotoJoinRoomPayload) {
		p.RoomCode = roomcode.Normalize(p.RoomCode)
	})
	if err != nil {
		return nil, err
	}
	if err := checkRoomCode(payload.RoomCode); err != nil {
		return nil, err
	}

	member, snap, err := g.loto.JoinRoom(context.Background(), payload.RoomCode, payload.DisplayName, c.id)
	if err != nil {
		return nil, err
	}

	c.loto = &session{roomCode: member.RoomCode, userID: member.UserID, displayName: member.DisplayName, role: string(member.Role)}
	g.hub.Subscribe(lotoTopic(member.RoomCode), c)
	return lotoJoinData(member, snap), nil
}

func (g *Gateway) handleLotoRestoreSession(c *Client, raw json.RawMessage) (any, error) {
	payload, err := decodePayload[RestoreSessionPayload](raw, func(p *RestoreSessionPayload) {
		p.RoomCode = roomcode.Normalize(p.RoomCode)
	})
	if err != nil {
		return nil, err
	}
	if err := checkRoomCode(payload.RoomCode); err != nil {
		return nil, err
	}

	member, snap, err := g.loto.RestoreSession(context.Background(), payload.RoomCode, payload.UserID, c.id)
	if err != nil {
		return nil, err
	}

	c.loto = &session{roomCode: member.RoomCode, userID: member.UserID, displayName: member.DisplayName, role: string(member.Role)}
	g.hub.Subscribe(lotoTopic(member.RoomCode), c)
	return lotoJoinData(member, snap), nil
}

func (g *Gateway) handleLotoSubmitBoard(c *Client, raw json.RawMessage) (any, error) {
	payload, err := decodePayload[LotoSubmitBoardPayload](raw, func(p *LotoSubmitBoardPayload) {
		p.RoomCode = roomcode.Normalize(p.RoomCode)
	})
	if err != nil {
		return nil, err
	}
	sess, err := g.lotoSession(c, payload.RoomCode)
	if err != nil {
		return nil, err
	}
	return g.loto.SubmitBoard(context.Background(), payload.RoomCode, sess.userID, payload.Board)
}

func (g *Gateway) handleLotoRegenerateBoard(c *Client, raw json.RawMessage) (any, error) {
	payload, err := decodePayload[RoomOnlyPayload](raw, func(p *RoomOnlyPayload) {
		p.RoomCode = roomcode.Normalize(p.RoomCode)
	})
	if err != nil {
		return nil, err
	}
	sess, err := g.lotoSession(c, payload.RoomCode)
	if err != nil {
		return nil, err
	}
	return g.loto.RegenerateBoard(context.Background(), payload.RoomCode, sess.userID)
}

func (g *Gateway) handleLotoToggleReady(c *Client, raw json.RawMessage) (any, error) {
	payload, err := decodePayload[LotoToggleReadyPayload](raw, func(p *LotoToggleReadyPayload) {
		p.RoomCode = roomcode.Normalize(p.RoomCode)
	})
	if err != nil {
		return nil, err
	}
	sess, err := g.lotoSession(c, payload.RoomCode)
	if err != nil {
		return nil, err
	}
	return g.loto.ToggleReady(context.Background(), payload.RoomCode, sess.userID, payload.Ready)
}

func (g *Gateway) handleLotoStartGame(c *Client, raw json.RawMessage) (any, error) {
	sess, payload, err := g.lotoRoomCommand(c, raw)
	if err != nil {
		return nil, err
	}
	return g.loto.StartGame(context.Background(), payload.RoomCode, sess.userID)
}

func (g *Gateway) handleLotoPauseGame(c *Client, raw json.RawMessage) (any, error) {
	sess, payload, err := g.lotoRoomCommand(c, raw)
	if err != nil {
		return nil, err
	}
	return g.loto.PauseGame(context.Background(), payload.RoomCode, sess.userID)
}

func (g *Gateway) handleLotoCallNumber(c *Client, raw json.RawMessage) (any, error) {
	sess, payload, err := g.lotoRoomCommand(c, raw)
	if err != nil {
		return nil, err
	}

	n, err := g.loto.CallNumber(context.Background(), payload.RoomCode, sess.userID)
	if err != nil {
		return nil, err
	}
	return map[string]int{"number": n}, nil
}

func (g *Gateway) handleLotoClaimWin(c *Client, raw json.RawMessage) (any, error) {
	sess, payload, err := g.lotoRoomCommand(c, raw)
	if err != nil {
		return nil, err
	}

	winner, err := g.loto.ClaimWin(context.Background(), payload.RoomCode, sess.userID)
	if err != nil {
		return nil, err
	}
	return map[string]string{"winnerName": winner}, nil
}

func (g *Gateway) handleLotoResetRound(c *Client, raw json.RawMessage) (any, error) {
	sess, payload, err := g.lotoRoomCommand(c, raw)
	if err != nil {
		return nil, err
	}
	return g.loto.ResetRound(context.Background(), payload.RoomCode, sess.userID)
}

func (g *Gateway) handleLotoCloseRoom(c *Client, raw json.RawMessage) (any, error) {
	sess, payload, err := g.lotoRoomCommand(c, raw)
	if err != nil {
		return nil, err
	}

	if err := g.loto.CloseRoom(context.Background(), payload.RoomCode, sess.userID); err != nil {
		return nil, err
	}
	c.loto = nil
	return map[string]string{"roomCode": payload.RoomCode}, nil
}

func (g *Gateway) lotoRoomCommand(c *Client, raw json.RawMessage) (*session, *RoomOnlyPayload, error) {
	payload, err := decodePayload[RoomOnlyPayload](raw, func(p *RoomOnlyPayload) {
		p.RoomCode = roomcode.Normalize(p.RoomCode)
	})
	if err != nil {
		return nil, nil, err
	}
	sess, err := g.lotoSession(c, payload.RoomCode)
	if err != nil {
		return nil, nil, err
	}
	return sess, payload, nil
}

// lotoJoinData carries the caller's own board in the unicast ack; broadcast
// snapshots never include boards.
func lotoJoinData(member *models.Member, snap models.LotoRoomSnapshot) map[string]any {
	return map[string]any{
		"roomCode": member.RoomCode,
		"userId":   member.UserID,
		"role":     member.Role,
		"snapshot": snap,
	}
}
