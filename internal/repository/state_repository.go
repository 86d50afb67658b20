package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"gitlab.com/yelinaung/budgetly-bot/internal/database"
)

// StateRepository stores per-chat conversation state in conversation_states.
type StateRepository struct {
	db database.PGXDB
}

// NewStateRepository creates a new StateRepository.
func NewStateRepository(db database.PGXDB) *StateRepository {
	return &StateRepository{db: db}
}

// Get returns the state for chatID if it has not expired at now.
func (r *StateRepository) Get(ctx context.Context, chatID int64, now time.Time) (string, error) {
	var state string
	err := r.db.QueryRow(ctx, `
		SELECT state FROM conversation_states
		WHERE chat_id = $1 AND expires_at > $2
	`, chatID, now).Scan(&state)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get conversation state: %w", err)
	}
	return state, nil
}

// Put upserts the state for chatID.
func (r *StateRepository) Put(ctx context.Context, chatID int64, state string, expiresAt time.Time) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO conversation_states (chat_id, state, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (chat_id) DO UPDATE SET
			state = EXCLUDED.state,
			expires_at = EXCLUDED.expires_at
	`, chatID, state, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to put conversation state: %w", err)
	}
	return nil
}

// Delete removes the state for chatID.
func (r *StateRepository) Delete(ctx context.Context, chatID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM conversation_states WHERE chat_id = $1`, chatID)
	if err != nil {
		return fmt.Errorf("failed to delete conversation state: %w", err)
	}
	return nil
}

// DeleteExpired removes states that expired at or before now.
func (r *StateRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM conversation_states WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired conversation states: %w", err)
	}
	return tag.RowsAffected(), nil
}
