package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"ecoregen/internal/domain/entity"
)

func TestMemoryUserRepository_GetCreatesUser(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	u, err := repo.Get(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateMainMenu, u.State)

	u.SetState(entity.StateProcessing)
	again, err := repo.Get(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateMainMenu, again.State)

	require.NoError(t, repo.Save(ctx, u))
	again, err = repo.Get(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateProcessing, again.State)
}

func TestMemoryUserRepository_Modify(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	u, err := repo.Modify(ctx, 2, 20, func(user *entity.User) {
		user.SelectTask(7)
		user.SetState(entity.StateAwaitingPhoto)
	})
	require.NoError(t, err)
	require.Equal(t, int64(7), u.ActiveTaskID)

	got, err := repo.Get(ctx, 2, 20)
	require.NoError(t, err)
	require.Equal(t, entity.StateAwaitingPhoto, got.State)
	require.Equal(t, int64(20), got.ChatID)
}
