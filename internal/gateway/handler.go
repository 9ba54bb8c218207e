package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/vietparty/room-server/internal/karaoke"
	"github.com/vietparty/room-server/internal/loto"
	"github.com/vietparty/room-server/pkg/apperr"
)

// Gateway upgrades websocket connections and maps each inbound command onto
// exactly one service call, answering with an ack and leaving fanout to the
// room notifiers.
type Gateway struct {
	hub     *Hub
	karaoke *karaoke.Service
	loto    *loto.Service
	limiter *RateLimiter
	log     *logrus.Entry

	upgrader websocket.Upgrader
}

func New(hub *Hub, karaokeSvc *karaoke.Service, lotoSvc *loto.Service, limiter *RateLimiter) *Gateway {
	return &Gateway{
		hub:     hub,
		karaoke: karaokeSvc,
		loto:    lotoSvc,
		limiter: limiter,
		log:     logrus.WithField("component", "gateway"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// HandleWebSocket is the gin endpoint that turns an HTTP request into a
// long-lived client connection.
func (g *Gateway) HandleWebSocket(c *gin.Context) {
	conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		g.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := newClient(uuid.NewString(), conn, g)
	g.log.WithField("conn_id", client.id).Debug("client connected")

	go client.writePump()
	client.readPump()
}

// disconnect tears down everything attached to a closed connection.
func (g *Gateway) disconnect(c *Client) {
	g.hub.DropClient(c)
	g.limiter.Forget(c.id)
	close(c.send)
	g.log.WithField("conn_id", c.id).Debug("client disconnected")
}

// dispatch routes one raw frame. Every path ends in exactly one ack.
func (g *Gateway) dispatch(c *Client, raw []byte) {
	var cmd Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		c.reply(Ack{OK: false, Code: apperr.ErrValidation.Code, Message: "Malformed command envelope"})
		return
	}

	if !g.limiter.Allow(c.id, cmd.Type) {
		c.reply(Ack{ID: cmd.ID, OK: false, Code: apperr.ErrRateLimited.Code, Message: apperr.ErrRateLimited.Message})
		return
	}

	var (
		data any
		err  error
	)
	switch cmd.Type {
	case CmdCreateRoom:
		data, err = g.handleCreateRoom(c, cmd.Payload)
	case CmdJoinRoom:
		data, err = g.handleJoinRoom(c, cmd.Payload)
	case CmdRestoreSession:
		data, err = g.handleRestoreSession(c, cmd.Payload)
	case CmdLeaveRoom:
		data, err = g.handleLeaveRoom(c, cmd.Payload)
	case CmdAddSong:
		data, err = g.handleAddSong(c, cmd.Payload, false)
	case CmdAddPriority:
		data, err = g.handleAddSong(c, cmd.Payload, true)
	case CmdSkipSong:
		data, err = g.handleSkipSong(c, cmd.Payload)
	case CmdRemoveSong:
		data, err = g.handleRemoveSong(c, cmd.Payload)
	case CmdCloseRoom:
		data, err = g.handleCloseRoom(c, cmd.Payload)
	case CmdSetQueueLimit:
		data, err = g.handleSetQueueLimit(c, cmd.Payload)

	case CmdLotoCreateRoom:
		data, err = g.handleLotoCreateRoom(c, cmd.Payload)
	case CmdLotoJoinRoom:
		data, err = g.handleLotoJoinRoom(c, cmd.Payload)
	case CmdLotoRestoreSession:
		data, err = g.handleLotoRestoreSession(c, cmd.Payload)
	case CmdLotoSubmitBoard:
		data, err = g.handleLotoSubmitBoard(c, cmd.Payload)
	case CmdLotoRegenerateBoard:
		data, err = g.handleLotoRegenerateBoard(c, cmd.Payload)
	case CmdLotoToggleReady:
		data, err = g.handleLotoToggleReady(c, cmd.Payload)
	case CmdLotoStartGame:
		data, err = g.handleLotoStartGame(c, cmd.Payload)
	case CmdLotoPauseGame:
		data, err = g.handleLotoPauseGame(c, cmd.Payload)
	case CmdLotoCallNumber:
		data, err = g.handleLotoCallNumber(c, cmd.Payload)
	case CmdLotoClaimWin:
		data, err = g.handleLotoClaimWin(c, cmd.Payload)
	case CmdLotoResetRound:
		data, err = g.handleLotoResetRound(c, cmd.Payload)
	case CmdLotoCloseRoom:
		data, err = g.handleLotoCloseRoom(c, cmd.Payload)

	default:
		err = apperr.Validation("Unknown command: " + cmd.Type)
	}

	if err != nil {
		appErr := apperr.FromError(err)
		if appErr == apperr.ErrInternal {
			g.log.WithError(err).WithField("command", cmd.Type).Error("command failed")
		}
		c.reply(Ack{ID: cmd.ID, OK: false, Code: appErr.Code, Message: appErr.Message})
		return
	}
	c.reply(Ack{ID: cmd.ID, OK: true, Data: data})
}
