package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gitlab.com/yelinaung/budgetly-bot/internal/database"
)

func TestStateRepository(t *testing.T) {
	tx := database.TestTx(t)
	ctx := context.Background()
	repo := NewStateRepository(tx)
	now := time.Now()

	_, err := repo.Get(ctx, 7, now)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.Put(ctx, 7, "awaiting_code", now.Add(5*time.Minute)))
	state, err := repo.Get(ctx, 7, now)
	require.NoError(t, err)
	require.Equal(t, "awaiting_code", state)

	_, err = repo.Get(ctx, 7, now.Add(6*time.Minute))
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.Put(ctx, 7, "awaiting_code", now.Add(10*time.Minute)))
	_, err = repo.Get(ctx, 7, now.Add(6*time.Minute))
	require.NoError(t, err)

	require.NoError(t, repo.Put(ctx, 8, "awaiting_code", now.Add(-time.Second)))
	n, err := repo.DeleteExpired(ctx, now)
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, int64(1))

	require.NoError(t, repo.Delete(ctx, 7))
	_, err = repo.Get(ctx, 7, now)
	require.ErrorIs(t, err, ErrNotFound)
}
