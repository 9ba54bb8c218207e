package gateway

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 * 1024
	sendBuffer     = 256
)

// session binds one connection to one room membership. A connection can hold
// a karaoke session and a lô tô session at the same time.
type session struct {
	roomCode    string
	userID      string
	displayName string
	role        string
}

// Client is one websocket connection. The read pump dispatches commands
// serially; pushes and acks go through the buffered send channel so the
// single writer goroutine owns the connection for writes.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	gw   *Gateway
	log  *logrus.Entry

	// sessions are only touched from the read pump, no lock needed.
	karaoke *session
	loto    *session

	// topics is guarded by the hub mutex.
	topics map[string]bool
}

func newClient(id string, conn *websocket.Conn, gw *Gateway) *Client {
	return &Client{
		id:     id,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		gw:     gw,
		log:    gw.log.WithField("conn_id", id),
		topics: make(map[string]bool),
	}
}

// enqueue pushes a marshaled frame onto the send queue without blocking.
func (c *Client) enqueue(raw []byte) {
	select {
	case c.send <- raw:
	default:
		c.log.Warn("send buffer full, dropping frame")
	}
}

func (c *Client) reply(ack Ack) {
	ack.Type = "ack"
	raw, err := json.Marshal(ack)
	if err != nil {
		c.log.WithError(err).Warn("failed to marshal ack")
		return
	}
	c.enqueue(raw)
}

func (c *Client) readPump() {
	defer func() {
		c.gw.disconnect(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.WithError(err).Debug("connection closed unexpectedly")
			}
			return
		}
		c.gw.dispatch(c, raw)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case raw, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
