package service

import (
	"context"

	"github.com/sritampatnaik/Magic-Canvas/internal/domain"
)

// RoomInfo is a provisioned room together with its live presence.
type RoomInfo struct {
	Room   *domain.Room
	Online int
}

type RoomInteractor interface {
	CreateRoom(ctx context.Context) (*domain.Room, error)
	GetRoom(ctx context.Context, slug string) (*RoomInfo, error)
}

type MediaInteractor interface {
	Upload(ctx context.Context, dataURL, contentType string) (string, error)
	Generate(ctx context.Context, prompt, imageURL string) (string, error)
	GenerationEnabled() bool
}

// PresenceCounter reports how many connection keys are present in a room.
type PresenceCounter interface {
	PresenceCount(ctx context.Context, slug string) (int, error)
}
