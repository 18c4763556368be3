package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/sritampatnaik/Magic-Canvas/internal/domain"
)

type InMemoryRoomRepository struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID]*domain.Room
	slugs map[string]uuid.UUID
}

func NewInMemoryRoomRepository() *InMemoryRoomRepository {
	return &InMemoryRoomRepository{
		rooms: make(map[uuid.UUID]*domain.Room),
		slugs: make(map[string]uuid.UUID),
	}
}

func (r *InMemoryRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.slugs[room.Slug]; ok {
		return ErrRoomSlugExists
	}

	stored := *room
	r.rooms[room.ID] = &stored
	r.slugs[room.Slug] = room.ID
	return nil
}

func (r *InMemoryRoomRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}

	out := *room
	return &out, nil
}

func (r *InMemoryRoomRepository) GetBySlug(ctx context.Context, slug string) (*domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.slugs[slug]
	if !ok {
		return nil, ErrRoomNotFound
	}

	room, ok := r.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}

	out := *room
	return &out, nil
}

func (r *InMemoryRoomRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[id]
	if !ok {
		return ErrRoomNotFound
	}

	delete(r.slugs, room.Slug)
	delete(r.rooms, id)
	return nil
}

// List returns rooms oldest first.
func (r *InMemoryRoomRepository) List(ctx context.Context) ([]*domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		out := *room
		result = append(result, &out)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}
