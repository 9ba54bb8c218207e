package loto

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vietparty/room-server/internal/registry"
	"github.com/vietparty/room-server/pkg/apperr"
	"github.com/vietparty/room-server/pkg/events"
	"github.com/vietparty/room-server/pkg/models"
)

// Service owns the lô tô room registry and maps commands onto room mutations.
type Service struct {
	registry *registry.Registry[*Room]
	events   events.Publisher
	notifier Notifier
	log      *logrus.Entry
}

func NewService(ttl time.Duration, notifier Notifier, publisher events.Publisher) *Service {
	return &Service{
		registry: registry.New[*Room](ttl, "loto-registry"),
		events:   publisher,
		notifier: notifier,
		log:      logrus.WithField("component", "loto"),
	}
}

func (s *Service) Registry() *registry.Registry[*Room] { return s.registry }

func (s *Service) CreateRoom(ctx context.Context, displayName, connID string, config models.LotoConfig) (*models.Member, models.LotoRoomSnapshot, error) {
	if config.MaxNumber != 60 && config.MaxNumber != 90 {
		return nil, models.LotoRoomSnapshot{}, apperr.Validation("maxNumber must be 60 or 90")
	}

	hostBoard, err := GenerateBoard(config.MaxNumber)
	if err != nil {
		return nil, models.LotoRoomSnapshot{}, err
	}

	var host *models.Member
	room, err := s.registry.Allocate(func(code string) *Room {
		r, h := NewRoom(code, displayName, connID, config, hostBoard, s.notifier)
		host = h
		return r
	})
	if err != nil {
		return nil, models.LotoRoomSnapshot{}, err
	}

	s.publish(ctx, events.Event{Type: events.EventRoomCreated, RoomCode: room.Code(), UserID: host.UserID})
	s.log.WithFields(logrus.Fields{"room_code": room.Code(), "max_number": config.MaxNumber}).Info("loto room created")
	return host, room.Snapshot(host.UserID), nil
}

func (s *Service) JoinRoom(ctx context.Context, code, displayName, connID string) (*models.Member, models.LotoRoomSnapshot, error) {
	room, ok := s.registry.Get(code)
	if !ok {
		return nil, models.LotoRoomSnapshot{}, apperr.ErrRoomNotFound
	}

	member, snap, err := room.Join(displayName, connID)
	if err != nil {
		return nil, models.LotoRoomSnapshot{}, err
	}

	s.publish(ctx, events.Event{Type: events.EventMemberJoined, RoomCode: code, UserID: member.UserID})
	return member, snap, nil
}

func (s *Service) RestoreSession(ctx context.Context, code, userID, connID string) (*models.Member, models.LotoRoomSnapshot, error) {
	room, ok := s.registry.Get(code)
	if !ok {
		return nil, models.LotoRoomSnapshot{}, apperr.ErrRoomNotFound
	}
	return room.Restore(userID, connID)
}

func (s *Service) SubmitBoard(ctx context.Context, code, userID string, board models.Board) (models.LotoRoomSnapshot, error) {
	room, ok := s.registry.Get(code)
	if !ok {
		return models.LotoRoomSnapshot{}, apperr.ErrRoomNotFound
	}
	return room.SubmitBoard(userID, board)
}

func (s *Service) RegenerateBoard(ctx context.Context, code, userID string) (models.LotoRoomSnapshot, error) {
	room, ok := s.registry.Get(code)
	if !ok {
		return models.LotoRoomSnapshot{}, apperr.ErrRoomNotFound
	}
	return room.RegenerateBoard(userID)
}

func (s *Service) ToggleReady(ctx context.Context, code, userID string, ready bool) (models.LotoRoomSnapshot, error) {
	room, ok := s.registry.Get(code)
	if !ok {
		return models.LotoRoomSnapshot{}, apperr.ErrRoomNotFound
	}
	return room.ToggleReady(userID, ready)
}

func (s *Service) StartGame(ctx context.Context, code, userID string) (models.LotoRoomSnapshot, error) {
	room, err := s.hostRoom(code, userID)
	if err != nil {
		return models.LotoRoomSnapshot{}, err
	}
	return room.Start()
}

func (s *Service) PauseGame(ctx context.Context, code, userID string) (models.LotoRoomSnapshot, error) {
	room, err := s.hostRoom(code, userID)
	if err != nil {
		return models.LotoRoomSnapshot{}, err
	}
	return room.Pause()
}

// CallNumber is the host's manual draw; the auto-call timer shares the same
// mutation path.
func (s *Service) CallNumber(ctx context.Context, code, userID string) (int, error) {
	room, err := s.hostRoom(code, userID)
	if err != nil {
		return 0, err
	}

	n, err := room.Draw()
	if err != nil {
		return 0, err
	}
	if n != 0 {
		s.publish(ctx, events.Event{Type: events.EventNumberCalled, RoomCode: code, UserID: userID, Number: n})
	}
	return n, nil
}

func (s *Service) ClaimWin(ctx context.Context, code, userID string) (string, error) {
	room, ok := s.registry.Get(code)
	if !ok {
		return "", apperr.ErrRoomNotFound
	}

	winner, err := room.ClaimWin(userID)
	if err != nil {
		return "", err
	}

	s.publish(ctx, events.Event{Type: events.EventGameWon, RoomCode: code, UserID: userID, Winner: winner})
	return winner, nil
}

func (s *Service) ResetRound(ctx context.Context, code, userID string) (models.LotoRoomSnapshot, error) {
	room, err := s.hostRoom(code, userID)
	if err != nil {
		return models.LotoRoomSnapshot{}, err
	}

	snap, err := room.ResetRound()
	if err != nil {
		return models.LotoRoomSnapshot{}, err
	}

	s.publish(ctx, events.Event{Type: events.EventRoundReset, RoomCode: code, UserID: userID})
	return snap, nil
}

func (s *Service) CloseRoom(ctx context.Context, code, userID string) error {
	room, err := s.hostRoom(code, userID)
	if err != nil {
		return err
	}

	room.Close("Host closed this room")
	s.registry.Remove(code)
	s.publish(ctx, events.Event{Type: events.EventRoomClosed, RoomCode: code, UserID: userID})
	return nil
}

func (s *Service) Snapshot(code, viewerID string) (models.LotoRoomSnapshot, error) {
	room, ok := s.registry.Get(code)
	if !ok {
		return models.LotoRoomSnapshot{}, apperr.ErrRoomNotFound
	}
	return room.Snapshot(viewerID), nil
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

func (s *Service) publish(ctx context.Context, evt events.Event) {
	if s.events == nil {
		return
	}
	evt.Timestamp = time.Now()
	if err := s.events.Publish(ctx, evt); err != nil {
		s.log.WithError(err).Warn("failed to publish room event")
	}
}
