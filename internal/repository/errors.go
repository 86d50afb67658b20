// Package repository provides PostgreSQL persistence for accounts, expenses
// and conversation state.
package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when no row matches the lookup or conditional update.
	ErrNotFound = errors.New("not found")
	// ErrChatAlreadyBound is returned when a chat is already bound to another account.
	ErrChatAlreadyBound = errors.New("chat already bound to an account")
	// ErrCodeCollision is returned when a linking code is already held by another account.
	ErrCodeCollision = errors.New("linking code already in use")
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
