package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/vietparty/room-server/pkg/models"
)

type EventType string

const (
	EventRoomCreated  EventType = "room_created"
	EventMemberJoined EventType = "member_joined"
	EventSongAdded    EventType = "song_added"
	EventSongPlayed   EventType = "song_played"
	EventRoomClosed   EventType = "room_closed"
	EventNumberCalled EventType = "number_called"
	EventGameWon      EventType = "game_won"
	EventRoundReset   EventType = "round_reset"
)

// Event is one committed room mutation, published for audit and history.
type Event struct {
	Type      EventType         `json:"type"`
	RoomCode  string            `json:"room_code"`
	UserID    string            `json:"user_id"`
	Timestamp time.Time         `json:"timestamp"`
	Song      *models.QueueSong `json:"song,omitempty"`
	Number    int               `json:"number,omitempty"`
	Winner    string            `json:"winner,omitempty"`
}

// Publisher is what the room services depend on; nil disables publishing.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

type KafkaClient struct {
	writer *kafka.Writer
	reader *kafka.Reader
}

func NewKafkaClient(brokers []string, topic string, groupID string) *KafkaClient {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     groupID,
		StartOffset: kafka.LastOffset,
	})

	return &KafkaClient{
		writer: writer,
		reader: reader,
	}
}

func (k *KafkaClient) Publish(ctx context.Context, evt Event) error {
	messageJSON, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(evt.RoomCode),
		Value: messageJSON,
	}

	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}

// Consume reads events until ctx is cancelled, handing each to the handler.
func (k *KafkaClient) Consume(ctx context.Context, handler func(Event) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			msg, err := k.reader.ReadMessage(ctx)
			if err != nil {
				return fmt.Errorf("failed to read message: %w", err)
			}

			var event Event
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal event: %w", err)
			}

			if err := handler(event); err != nil {
				return fmt.Errorf("failed to handle event: %w", err)
			}
		}
	}
}

func (k *KafkaClient) Close() error {
	if err := k.writer.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}
	if err := k.reader.Close(); err != nil {
		return fmt.Errorf("failed to close reader: %w", err)
	}
	return nil
}
