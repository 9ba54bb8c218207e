package gateway

import (
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/vietparty/room-server/pkg/models"
)

// Hub tracks which clients are subscribed to which room topic and fans
// pushes out to them. Sends are non-blocking: a client whose outbound buffer
// is full misses the push and resyncs from its next snapshot.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*Client]bool
	log    *logrus.Entry
}

func NewHub() *Hub {
	return &Hub{
		topics: make(map[string]map[*Client]bool),
		log:    logrus.WithField("component", "hub"),
	}
}

func karaokeTopic(code string) string { return "karaoke:" + code }
func lotoTopic(code string) string    { return "loto:" + code }

func (h *Hub) Subscribe(topic string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*Client]bool)
	}
	h.topics[topic][c] = true
	c.topics[topic] = true
}

func (h *Hub) Unsubscribe(topic string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(topic, c)
}

// DropClient removes a disconnected client from every topic it joined.
func (h *Hub) DropClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for topic := range c.topics {
		h.removeLocked(topic, c)
	}
}

// DropTopic tears down a topic after its room closes.
func (h *Hub) DropTopic(topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.topics[topic] {
		delete(c.topics, topic)
	}
	delete(h.topics, topic)
}

func (h *Hub) removeLocked(topic string, c *Client) {
	if subs, ok := h.topics[topic]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.topics, topic)
		}
	}
	delete(c.topics, topic)
}

// Broadcast marshals the push once and hands it to every subscriber's send
// queue without blocking.
func (h *Hub) Broadcast(topic, event string, data any) {
	raw, err := json.Marshal(Push{Type: event, Data: data})
	if err != nil {
		h.log.WithError(err).WithField("event", event).Warn("failed to marshal push")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.topics[topic] {
		select {
		case c.send <- raw:
		default:
			h.log.WithFields(logrus.Fields{"client": c.id, "event": event}).
				Warn("dropping push for slow client")
		}
	}
}

// Fanout adapts the hub to the room notifier interfaces. Rooms invoke these
// while holding their own mutex, so pushes reach the hub in commit order.
type Fanout struct {
	hub *Hub
}

func NewFanout(hub *Hub) *Fanout {
	return &Fanout{hub: hub}
}

func (f *Fanout) RoomUpdated(code string, snap models.RoomSnapshot) {
	f.hub.Broadcast(karaokeTopic(code), "queue_updated", snap)
}

func (f *Fanout) NowPlayingChanged(code string, song *models.QueueSong) {
	f.hub.Broadcast(karaokeTopic(code), "now_playing", map[string]any{
		"roomCode": code,
		"song":     song,
	})
}

func (f *Fanout) RoomClosed(code, message string) {
	topic := karaokeTopic(code)
	f.hub.Broadcast(topic, "room_closed", map[string]string{
		"roomCode": code,
		"message":  message,
	})
	f.hub.DropTopic(topic)
}

func (f *Fanout) LotoUpdated(code string, snap models.LotoRoomSnapshot) {
	f.hub.Broadcast(lotoTopic(code), "loto_state_updated", snap)
}

func (f *Fanout) LotoNumberCalled(code string, number int, called []int) {
	f.hub.Broadcast(lotoTopic(code), "loto_number_called", map[string]any{
		"roomCode":      code,
		"number":        number,
		"calledNumbers": called,
	})
}

func (f *Fanout) LotoGameWon(code, winnerName string) {
	f.hub.Broadcast(lotoTopic(code), "loto_game_won", map[string]string{
		"roomCode":   code,
		"winnerName": winnerName,
	})
}

func (f *Fanout) LotoRoomClosed(code, message string) {
	topic := lotoTopic(code)
	f.hub.Broadcast(topic, "loto_room_closed", map[string]string{
		"roomCode": code,
		"message":  message,
	})
	f.hub.DropTopic(topic)
}
