// Package convstate stores short-lived per-chat conversation state.
package convstate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gitlab.com/yelinaung/budgetly-bot/internal/repository"
)

// State is the conversation state of a chat.
type State string

// Conversation states.
const (
	StateIdle         State = ""
	StateAwaitingCode State = "awaiting_code"
)

// Store keeps a State per chat id. Entries expire after the store's TTL and
// read back as StateIdle.
type Store interface {
	Get(ctx context.Context, chatID int64) (State, error)
	Set(ctx context.Context, chatID int64, state State) error
	Delete(ctx context.Context, chatID int64) error
}

type entry struct {
	state     State
	expiresAt time.Time
}

// MemoryStore is a Store backed by a map. Suitable for a single process.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[int64]entry
}

// NewMemoryStore creates a MemoryStore. A nil now uses time.Now.
func NewMemoryStore(ttl time.Duration, now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		ttl:     ttl,
		now:     now,
		entries: make(map[int64]entry),
	}
}

// Get returns the state of chatID.
func (s *MemoryStore) Get(_ context.Context, chatID int64) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[chatID]
	if !ok {
		return StateIdle, nil
	}
	if !e.expiresAt.After(s.now()) {
		delete(s.entries, chatID)
		return StateIdle, nil
	}
	return e.state, nil
}

// Set stores state for chatID with a fresh TTL. Setting StateIdle deletes the entry.
func (s *MemoryStore) Set(_ context.Context, chatID int64, state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if state == StateIdle {
		delete(s.entries, chatID)
		return nil
	}
	s.entries[chatID] = entry{state: state, expiresAt: s.now().Add(s.ttl)}
	return nil
}

// Delete removes the state of chatID.
func (s *MemoryStore) Delete(_ context.Context, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, chatID)
	return nil
}

// Sweep drops expired entries and returns how many were removed.
func (s *MemoryStore) Sweep(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var n int64
	for chatID, e := range s.entries {
		if !e.expiresAt.After(now) {
			delete(s.entries, chatID)
			n++
		}
	}
	return n, nil
}

// StateRepository is the persistence used by PostgresStore.
type StateRepository interface {
	Get(ctx context.Context, chatID int64, now time.Time) (string, error)
	Put(ctx context.Context, chatID int64, state string, expiresAt time.Time) error
	Delete(ctx context.Context, chatID int64) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// PostgresStore is a Store shared across processes through the
// conversation_states table.
type PostgresStore struct {
	repo StateRepository
	ttl  time.Duration
	now  func() time.Time
}

// NewPostgresStore creates a PostgresStore. A nil now uses time.Now.
func NewPostgresStore(repo StateRepository, ttl time.Duration, now func() time.Time) *PostgresStore {
	if now == nil {
		now = time.Now
	}
	return &PostgresStore{repo: repo, ttl: ttl, now: now}
}

// Get returns the state of chatID.
func (s *PostgresStore) Get(ctx context.Context, chatID int64) (State, error) {
	state, err := s.repo.Get(ctx, chatID, s.now())
	if errors.Is(err, repository.ErrNotFound) {
		return StateIdle, nil
	}
	if err != nil {
		return StateIdle, fmt.Errorf("failed to load conversation state: %w", err)
	}
	return State(state), nil
}

// Set stores state for chatID with a fresh TTL. Setting StateIdle deletes the row.
func (s *PostgresStore) Set(ctx context.Context, chatID int64, state State) error {
	if state == StateIdle {
		return s.Delete(ctx, chatID)
	}
	if err := s.repo.Put(ctx, chatID, string(state), s.now().Add(s.ttl)); err != nil {
		return fmt.Errorf("failed to save conversation state: %w", err)
	}
	return nil
}

// Delete removes the state of chatID.
func (s *PostgresStore) Delete(ctx context.Context, chatID int64) error {
	if err := s.repo.Delete(ctx, chatID); err != nil {
		return fmt.Errorf("failed to clear conversation state: %w", err)
	}
	return nil
}

// Sweep deletes expired rows.
func (s *PostgresStore) Sweep(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep conversation states: %w", err)
	}
	return n, nil
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
