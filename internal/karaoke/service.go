package karaoke

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vietparty/room-server/internal/registry"
	"github.com/vietparty/room-server/pkg/apperr"
	"github.com/vietparty/room-server/pkg/events"
	"github.com/vietparty/room-server/pkg/models"
)

// QueueStore is the optional durable backend: atomic scripted queue
// operations against a shared key-value store. All writes are best-effort
// mirrors of the in-memory state; the in-memory aggregate stays authoritative.
type QueueStore interface {
	SaveRoomMeta(ctx context.Context, state models.RoomState) error
	Enqueue(ctx context.Context, song models.QueueSong, priority bool) error
	SaveNowPlaying(ctx context.Context, song models.QueueSong) error
	PopNext(ctx context.Context, roomCode string) (*models.QueueSong, error)
	RemoveSong(ctx context.Context, roomCode, songID string) (bool, error)
	DeleteRoom(ctx context.Context, roomCode string) error
}

// SongInput is the validated payload of an enqueue command.
type SongInput struct {
	VideoID      string
	Title        string
	ThumbnailURL string
	Duration     string
}

// Service owns the karaoke room registry and applies commands to rooms,
// mirroring committed mutations to the durable store and the event stream.
type Service struct {
	registry *registry.Registry[*Room]
	store    QueueStore
	events   events.Publisher
	notifier Notifier
	log      *logrus.Entry
}

func NewService(ttl time.Duration, notifier Notifier, store QueueStore, publisher events.Publisher) *Service {
	return &Service{
		registry: registry.New[*Room](ttl, "karaoke-registry"),
		store:    store,
		events:   publisher,
		notifier: notifier,
		log:      logrus.WithField("component", "karaoke"),
	}
}

func (s *Service) Registry() *registry.Registry[*Room] { return s.registry }

func (s *Service) CreateRoom(ctx context.Context, displayName, connID string) (*models.Member, models.RoomSnapshot, error) {
	var host *models.Member
	room, err := s.registry.Allocate(func(code string) *Room {
		r, h := NewRoom(code, displayName, connID, s.notifier)
		host = h
		return r
	})
	if err != nil {
		return nil, models.RoomSnapshot{}, err
	}

	snap := room.Snapshot()
	s.mirror(ctx, func(ctx context.Context) error { return s.store.SaveRoomMeta(ctx, snap.Room) })
	s.publish(ctx, events.Event{Type: events.EventRoomCreated, RoomCode: room.Code(), UserID: host.UserID})
	s.log.WithFields(logrus.Fields{"room_code": room.Code(), "host": displayName}).Info("room created")
	return host, snap, nil
}

func (s *Service) JoinRoom(ctx context.Context, code, displayName, connID string) (*models.Member, models.RoomSnapshot, error) {
	room, ok := s.registry.Get(code)
	if !ok {
		return nil, models.RoomSnapshot{}, apperr.ErrRoomNotFound
	}

	member, snap, err := room.Join(displayName, connID)
	if err != nil {
		return nil, models.RoomSnapshot{}, err
	}

	s.publish(ctx, events.Event{Type: events.EventMemberJoined, RoomCode: room.Code(), UserID: member.UserID})
	return member, snap, nil
}

func (s *Service) RestoreSession(ctx context.Context, code, userID, connID string) (*models.Member, models.RoomSnapshot, error) {
	room, ok := s.registry.Get(code)
	if !ok {
		return nil, models.RoomSnapshot{}, apperr.ErrRoomNotFound
	}
	return room.Restore(userID, connID)
}

func (s *Service) LeaveRoom(ctx context.Context, code, userID string) (models.RoomSnapshot, error) {
	room, ok := s.registry.Get(code)
	if !ok {
		return models.RoomSnapshot{}, apperr.ErrRoomNotFound
	}
	return room.Leave(userID)
}

func (s *Service) AddSong(ctx context.Context, code, userID, displayName string, input SongInput, priority bool) (models.RoomSnapshot, error) {
	room, ok := s.registry.Get(code)
	if !ok {
		return models.RoomSnapshot{}, apperr.ErrRoomNotFound
	}

	member := &models.Member{UserID: userID, DisplayName: displayName}
	song := models.QueueSong{
		VideoID:      input.VideoID,
		Title:        input.Title,
		ThumbnailURL: input.ThumbnailURL,
		Duration:     input.Duration,
	}

	committed, snap, err := room.Enqueue(member, song, priority)
	if err != nil {
		return models.RoomSnapshot{}, err
	}

	// An instant-play commit never touched the queue; mirroring it as a queue
	// push would leave the store out of step with the aggregate.
	if snap.NowPlaying != nil && snap.NowPlaying.ID == committed.ID {
		s.mirror(ctx, func(ctx context.Context) error { return s.store.SaveNowPlaying(ctx, committed) })
	} else {
		s.mirror(ctx, func(ctx context.Context) error { return s.store.Enqueue(ctx, committed, priority) })
	}
	s.publish(ctx, events.Event{
		Type:     events.EventSongAdded,
		RoomCode: code,
		UserID:   userID,
		Song:     &committed,
	})
	return snap, nil
}

func (s *Service) SkipSong(ctx context.Context, code, userID string) (models.RoomSnapshot, error) {
	room, err := s.hostRoom(code, userID)
	if err != nil {
		return models.RoomSnapshot{}, err
	}

	next, snap, err := room.PopNext()
	if err != nil {
		return models.RoomSnapshot{}, err
	}

	s.mirror(ctx, func(ctx context.Context) error {
		_, storeErr := s.store.PopNext(ctx, code)
		return storeErr
	})
	if next != nil {
		s.publish(ctx, events.Event{Type: events.EventSongPlayed, RoomCode: code, UserID: userID, Song: next})
	}
	return snap, nil
}

func (s *Service) RemoveSong(ctx context.Context, code, userID, songID string) (models.RoomSnapshot, error) {
	room, err := s.hostRoom(code, userID)
	if err != nil {
		return models.RoomSnapshot{}, err
	}

	removed, snap, err := room.RemoveByID(songID)
	if err != nil {
		return models.RoomSnapshot{}, err
	}
	if !removed {
		return models.RoomSnapshot{}, apperr.ErrSongNotFound
	}

	s.mirror(ctx, func(ctx context.Context) error {
		_, storeErr := s.store.RemoveSong(ctx, code, songID)
		return storeErr
	})
	return snap, nil
}

func (s *Service) SetQueueLimit(ctx context.Context, code, userID string, limit int) (models.RoomSnapshot, error) {
	room, err := s.hostRoom(code, userID)
	if err != nil {
		return models.RoomSnapshot{}, err
	}
	return room.SetQueueLimit(limit)
}

// CloseRoom notifies subscribers before the registry entry disappears.
func (s *Service) CloseRoom(ctx context.Context, code, userID string) error {
	room, err := s.hostRoom(code, userID)
	if err != nil {
		return err
	}

	room.Close("Host closed this room")
	s.registry.Remove(code)
	s.mirror(ctx, func(ctx context.Context) error { return s.store.DeleteRoom(ctx, code) })
	s.publish(ctx, events.Event{Type: events.EventRoomClosed, RoomCode: code, UserID: userID})
	return nil
}

func (s *Service) Snapshot(code string) (models.RoomSnapshot, error) {
	room, ok := s.registry.Get(code)
	if !ok {
		return models.RoomSnapshot{}, apperr.ErrRoomNotFound
	}
	return room.Snapshot(), nil
}

func (s *Service) hostRoom(code, userID string) (*Room, error) {
	room, ok := s.registry.Get(code)
	if !ok {
		return nil, apperr.ErrRoomNotFound
	}
	if !room.IsHost(userID) {
		return nil, apperr.ErrNotHost
	}
	return room, nil
}

func (s *Service) mirror(ctx context.Context, fn func(context.Context) error) {
	if s.store == nil {
		return
	}
	if err := fn(ctx); err != nil {
		s.log.WithError(err).Warn("failed to mirror mutation to redis")
	}
}

func (s *Service) publish(ctx context.Context, evt events.Event) {
	if s.events == nil {
		return
	}
	evt.Timestamp = time.Now()
	if err := s.events.Publish(ctx, evt); err != nil {
		s.log.WithError(err).Warn("failed to publish room event")
	}
}
