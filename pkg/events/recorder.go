package events

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vietparty/room-server/pkg/models"
)

// HistoryStore persists the event stream; pkg/database implements it.
type HistoryStore interface {
	SaveSongHistory(entry *models.SongHistory) error
	SaveRoomAudit(entry *models.RoomAudit) error
}

// Recorder tails the Kafka event stream and writes song history plus a room
// audit trail to MySQL. It is best-effort: a failed write is logged, never
// retried, and never blocks the room services.
type Recorder struct {
	client *KafkaClient
	store  HistoryStore
	log    *logrus.Entry
}

func NewRecorder(client *KafkaClient, store HistoryStore) *Recorder {
	return &Recorder{
		client: client,
		store:  store,
		log:    logrus.WithField("component", "history-recorder"),
	}
}

// Run blocks until ctx is cancelled.
func (r *Recorder) Run(ctx context.Context) {
	err := r.client.Consume(ctx, func(evt Event) error {
		r.record(evt)
		return nil
	})
	if err != nil && ctx.Err() == nil {
		r.log.WithError(err).Error("event consumer stopped")
	}
}

func (r *Recorder) record(evt Event) {
	if evt.Type == EventSongPlayed && evt.Song != nil {
		entry := &models.SongHistory{
			ID:          uuid.New(),
			RoomCode:    evt.RoomCode,
			VideoID:     evt.Song.VideoID,
			Title:       evt.Song.Title,
			AddedByName: evt.Song.AddedByName,
			PlayedAt:    evt.Timestamp,
		}
		if err := r.store.SaveSongHistory(entry); err != nil {
			r.log.WithError(err).Warn("failed to save song history")
		}
	}

	audit := &models.RoomAudit{
		ID:        uuid.New(),
		RoomCode:  evt.RoomCode,
		Event:     string(evt.Type),
		ActorID:   evt.UserID,
		Detail:    auditDetail(evt),
		CreatedAt: evt.Timestamp,
	}
	if err := r.store.SaveRoomAudit(audit); err != nil {
		r.log.WithError(err).Warn("failed to save room audit")
	}
}

func auditDetail(evt Event) string {
	switch {
	case evt.Song != nil:
		return evt.Song.Title
	case evt.Winner != "":
		return evt.Winner
	default:
		return ""
	}
}
