package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sritampatnaik/Magic-Canvas/internal/domain"
)

func TestInMemoryRoomRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRoomRepository()

	first := &domain.Room{ID: uuid.New(), Slug: "AbC34678", CreatedAt: time.Unix(100, 0)}
	second := &domain.Room{ID: uuid.New(), Slug: "xyk34678", CreatedAt: time.Unix(200, 0)}
	require.NoError(t, repo.Create(ctx, second))
	require.NoError(t, repo.Create(ctx, first))

	dup := &domain.Room{ID: uuid.New(), Slug: "AbC34678"}
	assert.ErrorIs(t, repo.Create(ctx, dup), ErrRoomSlugExists)

	got, err := repo.GetBySlug(ctx, "AbC34678")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	got, err = repo.GetByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, "xyk34678", got.Slug)

	_, err = repo.GetBySlug(ctx, "abc34678")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	rooms, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, first.ID, rooms[0].ID)

	require.NoError(t, repo.Delete(ctx, first.ID))
	assert.ErrorIs(t, repo.Delete(ctx, first.ID), ErrRoomNotFound)
	_, err = repo.GetBySlug(ctx, "AbC34678")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = repo.List(cancelled)
	assert.ErrorIs(t, err, context.Canceled)
}
