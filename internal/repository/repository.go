package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/sritampatnaik/Magic-Canvas/internal/domain"
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrRoomSlugExists = errors.New("room slug already exists")
)

type RoomRepository interface {
	Create(ctx context.Context, room *domain.Room) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Room, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Room, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]*domain.Room, error)
}
