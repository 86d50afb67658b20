package convstate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gitlab.com/yelinaung/budgetly-bot/internal/database"
	"gitlab.com/yelinaung/budgetly-bot/internal/repository"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
	store := NewMemoryStore(5*time.Minute, clock.Now)

	t.Run("unknown chat is idle", func(t *testing.T) {
		state, err := store.Get(ctx, 1)
		require.NoError(t, err)
		require.Equal(t, StateIdle, state)
	})

	t.Run("set then get", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, 1, StateAwaitingCode))
		state, err := store.Get(ctx, 1)
		require.NoError(t, err)
		require.Equal(t, StateAwaitingCode, state)
	})

	t.Run("expires after ttl", func(t *testing.T) {
		clock.Advance(5 * time.Minute)
		state, err := store.Get(ctx, 1)
		require.NoError(t, err)
		require.Equal(t, StateIdle, state)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, 2, StateAwaitingCode))
		require.NoError(t, store.Delete(ctx, 2))
		require.NoError(t, store.Delete(ctx, 2))
		state, err := store.Get(ctx, 2)
		require.NoError(t, err)
		require.Equal(t, StateIdle, state)
	})

	t.Run("setting idle clears", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, 3, StateAwaitingCode))
		require.NoError(t, store.Set(ctx, 3, StateIdle))
		state, err := store.Get(ctx, 3)
		require.NoError(t, err)
		require.Equal(t, StateIdle, state)
	})

	t.Run("sweep", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, 4, StateAwaitingCode))
		clock.Advance(10 * time.Minute)
		n, err := store.Sweep(ctx)
		require.NoError(t, err)
		require.Equal(t, int64(1), n)
	})
}

type failingRepo struct{}

func (failingRepo) Get(context.Context, int64, time.Time) (string, error) {
	return "", errors.New("connection reset")
}

func (failingRepo) Put(context.Context, int64, string, time.Time) error {
	return errors.New("connection reset")
}

func (failingRepo) Delete(context.Context, int64) error { return errors.New("connection reset") }

func (failingRepo) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, errors.New("connection reset")
}

func TestPostgresStore_WrapsErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewPostgresStore(failingRepo{}, time.Minute, nil)

	_, err := store.Get(ctx, 1)
	require.ErrorContains(t, err, "failed to load conversation state")
	require.ErrorContains(t, store.Set(ctx, 1, StateAwaitingCode), "failed to save conversation state")
	require.ErrorContains(t, store.Set(ctx, 1, StateIdle), "failed to clear conversation state")
	_, err = store.Sweep(ctx)
	require.Error(t, err)
}

func TestPostgresStore(t *testing.T) {
	tx := database.TestTx(t)
	ctx := context.Background()
	clock := &fakeClock{now: time.Now()}
	store := NewPostgresStore(repository.NewStateRepository(tx), 5*time.Minute, clock.Now)

	state, err := store.Get(ctx, 99)
	require.NoError(t, err)
	require.Equal(t, StateIdle, state)

	require.NoError(t, store.Set(ctx, 99, StateAwaitingCode))
	state, err = store.Get(ctx, 99)
	require.NoError(t, err)
	require.Equal(t, StateAwaitingCode, state)

	clock.Advance(6 * time.Minute)
	state, err = store.Get(ctx, 99)
	require.NoError(t, err)
	require.Equal(t, StateIdle, state)

	n, err := store.Sweep(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, int64(1))
}
