package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sritampatnaik/Magic-Canvas/internal/domain"
	"github.com/sritampatnaik/Magic-Canvas/internal/repository"
	"github.com/sritampatnaik/Magic-Canvas/lib/logger/sl"
)

const maxSlugAttempts = 5

var (
	ErrInvalidSlug   = errors.New("invalid room slug")
	ErrSlugExhausted = errors.New("could not allocate a free room slug")
)

type RoomService struct {
	rooms    repository.RoomRepository
	presence PresenceCounter
	log      *slog.Logger
	newRoom  func() (*domain.Room, error)

	mu          sync.RWMutex
	activeRooms map[string]*domain.Room
}

func NewRoomService(rooms repository.RoomRepository, presence PresenceCounter, log *slog.Logger) *RoomService {
	if log == nil {
		log = slog.Default()
	}
	return &RoomService{
		rooms:       rooms,
		presence:    presence,
		log:         log,
		newRoom:     domain.NewRoom,
		activeRooms: make(map[string]*domain.Room),
	}
}

// CreateRoom provisions a room under a fresh slug, retrying on collisions.
func (s *RoomService) CreateRoom(ctx context.Context) (*domain.Room, error) {
	const op = "service.room.create"
	log := s.log.With(slog.String("op", op))

	for attempt := 1; attempt <= maxSlugAttempts; attempt++ {
		room, err := s.newRoom()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if err := s.rooms.Create(ctx, room); err != nil {
			if errors.Is(err, repository.ErrRoomSlugExists) {
				log.Debug("slug collision", slog.String("slug", room.Slug), slog.Int("attempt", attempt))
				continue
			}
			log.Error("failed to create room", sl.Err(err))
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		s.mu.Lock()
		s.activeRooms[room.Slug] = room
		s.mu.Unlock()

		log.Info("room created", slog.String("room_id", room.ID.String()), slog.String("slug", room.Slug))
		return room, nil
	}
	return nil, fmt.Errorf("%s: %w", op, ErrSlugExhausted)
}

// GetRoom returns the provisioned room behind slug and its live presence
// count.
func (s *RoomService) GetRoom(ctx context.Context, slug string) (*RoomInfo, error) {
	const op = "service.room.get"
	log := s.log.With(slog.String("op", op), slog.String("slug", slug))

	if !domain.ValidSlug(slug) {
		return nil, ErrInvalidSlug
	}

	room := s.getActiveRoom(slug)
	if room == nil {
		fromDB, err := s.rooms.GetBySlug(ctx, slug)
		if err != nil {
			if !errors.Is(err, repository.ErrRoomNotFound) {
				log.Error("failed to load room", sl.Err(err))
			}
			return nil, err
		}
		room = s.activateRoom(fromDB)
	}

	info := &RoomInfo{Room: room}
	if s.presence != nil {
		online, err := s.presence.PresenceCount(ctx, slug)
		if err != nil {
			log.Warn("presence count unavailable", sl.Err(err))
		}
		info.Online = online
	}
	return info, nil
}

func (s *RoomService) getActiveRoom(slug string) *domain.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeRooms[slug]
}

func (s *RoomService) activateRoom(room *domain.Room) *domain.Room {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing := s.activeRooms[room.Slug]; existing != nil {
		return existing
	}
	s.activeRooms[room.Slug] = room
	return room
}
