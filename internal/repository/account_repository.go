package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"gitlab.com/yelinaung/budgetly-bot/internal/database"
	"gitlab.com/yelinaung/budgetly-bot/internal/models"
)

const accountColumns = `id, name, monthly_budget, currency, chat_id, chat_display_name,
	linking_code, linking_code_expiry, created_at, updated_at`

// AccountRepository handles account database operations.
type AccountRepository struct {
	db database.PGXDB
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(db database.PGXDB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create inserts an account. Accounts normally come from the web app; this is
// used by seeding and tests.
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	if account.Currency == "" {
		account.Currency = models.DefaultCurrency
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO accounts (id, name, monthly_budget, currency)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`, account.ID, account.Name, account.MonthlyBudget, account.Currency,
	).Scan(&account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	account, err := scanAccount(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// GetByChatID retrieves the account bound to a chat.
func (r *AccountRepository) GetByChatID(ctx context.Context, chatID int64) (*models.Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE chat_id = $1`, chatID)
	account, err := scanAccount(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get account by chat: %w", err)
	}
	return account, nil
}

// GetByActiveCode retrieves the account holding code, provided it has not expired at now.
func (r *AccountRepository) GetByActiveCode(ctx context.Context, code string, now time.Time) (*models.Account, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+accountColumns+` FROM accounts
		WHERE linking_code = $1 AND linking_code_expiry > $2
	`, code, now)
	account, err := scanAccount(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get account by code: %w", err)
	}
	return account, nil
}

// SetLinkingCode stores code and expiry together, replacing any previous code.
func (r *AccountRepository) SetLinkingCode(ctx context.Context, id uuid.UUID, code string, expiry time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE accounts
		SET linking_code = $2, linking_code_expiry = $3, updated_at = NOW()
		WHERE id = $1
	`, id, code, expiry)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrCodeCollision
		}
		return fmt.Errorf("failed to set linking code: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to set linking code: %w", ErrNotFound)
	}
	return nil
}

// BindChat binds chatID to the account and clears its linking code in one
// statement. The update only applies while the account still holds code and
// the code is unexpired at now; otherwise ErrNotFound is returned.
func (r *AccountRepository) BindChat(
	ctx context.Context,
	id uuid.UUID,
	code string,
	chatID int64,
	displayName string,
	now time.Time,
) (*models.Account, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE accounts
		SET chat_id = $3, chat_display_name = $4,
		    linking_code = NULL, linking_code_expiry = NULL, updated_at = NOW()
		WHERE id = $1 AND linking_code = $2 AND linking_code_expiry > $5
		RETURNING `+accountColumns,
		id, code, chatID, displayName, now)
	account, err := scanAccount(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrChatAlreadyBound
		}
		return nil, fmt.Errorf("failed to bind chat: %w", err)
	}
	return account, nil
}

// UnbindAccount clears the chat binding of an account. Unbinding an unlinked
// account is not an error.
func (r *AccountRepository) UnbindAccount(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `
		UPDATE accounts
		SET chat_id = NULL, chat_display_name = NULL, updated_at = NOW()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("failed to unbind account: %w", err)
	}
	return nil
}

// UnbindChat clears whichever account is bound to chatID and reports whether one was.
func (r *AccountRepository) UnbindChat(ctx context.Context, chatID int64) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE accounts
		SET chat_id = NULL, chat_display_name = NULL, updated_at = NOW()
		WHERE chat_id = $1
	`, chatID)
	if err != nil {
		return false, fmt.Errorf("failed to unbind chat: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ClearExpiredCodes removes code/expiry pairs that expired at or before now.
func (r *AccountRepository) ClearExpiredCodes(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE accounts
		SET linking_code = NULL, linking_code_expiry = NULL, updated_at = NOW()
		WHERE linking_code IS NOT NULL AND linking_code_expiry <= $1
	`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to clear expired codes: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanAccount(row pgx.Row) (*models.Account, error) {
	var (
		account     models.Account
		displayName *string
		code        *string
	)
	err := row.Scan(
		&account.ID, &account.Name, &account.MonthlyBudget, &account.Currency,
		&account.ChatID, &displayName, &code, &account.LinkingCodeExpiry,
		&account.CreatedAt, &account.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if displayName != nil {
		account.ChatDisplayName = *displayName
	}
	if code != nil {
		account.LinkingCode = *code
	}
	return &account, nil
}
