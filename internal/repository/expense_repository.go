package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/budgetly-bot/internal/database"
	"gitlab.com/yelinaung/budgetly-bot/internal/models"
)

// ExpenseRepository handles expense database operations.
type ExpenseRepository struct {
	db database.PGXDB
}

// NewExpenseRepository creates a new ExpenseRepository.
func NewExpenseRepository(db database.PGXDB) *ExpenseRepository {
	return &ExpenseRepository{db: db}
}

// Create adds a new expense. A zero ID or Date is filled in.
func (r *ExpenseRepository) Create(ctx context.Context, expense *models.Expense) error {
	if expense.ID == uuid.Nil {
		expense.ID = uuid.New()
	}
	if expense.Date.IsZero() {
		expense.Date = time.Now()
	}
	if expense.Source == "" {
		expense.Source = models.SourceWeb
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO expenses (id, account_id, amount, description, category, date, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, expense.ID, expense.AccountID, expense.Amount, expense.Description,
		string(expense.Category), expense.Date, string(expense.Source),
	).Scan(&expense.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create expense: %w", err)
	}
	return nil
}

// GetByID retrieves an expense by ID.
func (r *ExpenseRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Expense, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, account_id, amount, description, category, date, source, created_at
		FROM expenses WHERE id = $1
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	defer rows.Close()

	expenses, err := scanExpenses(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	if len(expenses) == 0 {
		return nil, fmt.Errorf("failed to get expense: %w", ErrNotFound)
	}
	return &expenses[0], nil
}

// DeleteForAccount deletes an expense owned by accountID.
func (r *ExpenseRepository) DeleteForAccount(ctx context.Context, accountID, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM expenses WHERE id = $1 AND account_id = $2`, id, accountID)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to delete expense: %w", ErrNotFound)
	}
	return nil
}

// ListByAccountAndRange returns expenses dated in [start, end), newest first.
func (r *ExpenseRepository) ListByAccountAndRange(
	ctx context.Context,
	accountID uuid.UUID,
	start, end time.Time,
) ([]models.Expense, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, account_id, amount, description, category, date, source, created_at
		FROM expenses
		WHERE account_id = $1 AND date >= $2 AND date < $3
		ORDER BY date DESC, created_at DESC
	`, accountID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses by date range: %w", err)
	}
	defer rows.Close()

	return scanExpenses(rows)
}

// Summarize returns total, count and average for expenses dated in [start, end).
func (r *ExpenseRepository) Summarize(
	ctx context.Context,
	accountID uuid.UUID,
	start, end time.Time,
) (models.Summary, error) {
	var summary models.Summary
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0), COUNT(*)
		FROM expenses
		WHERE account_id = $1 AND date >= $2 AND date < $3
	`, accountID, start, end).Scan(&summary.Total, &summary.Count)
	if err != nil {
		return models.Summary{}, fmt.Errorf("failed to summarize expenses: %w", err)
	}
	summary.Average = average(summary.Total, summary.Count)
	return summary, nil
}

// CategoryBreakdown returns per-category totals for [start, end), largest first.
func (r *ExpenseRepository) CategoryBreakdown(
	ctx context.Context,
	accountID uuid.UUID,
	start, end time.Time,
) ([]models.CategoryTotal, error) {
	rows, err := r.db.Query(ctx, `
		SELECT category, SUM(amount) AS total, COUNT(*)
		FROM expenses
		WHERE account_id = $1 AND date >= $2 AND date < $3
		GROUP BY category
		ORDER BY total DESC, category
	`, accountID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query category breakdown: %w", err)
	}
	defer rows.Close()

	var totals []models.CategoryTotal
	for rows.Next() {
		var (
			ct       models.CategoryTotal
			category string
		)
		if err := rows.Scan(&category, &ct.Total, &ct.Count); err != nil {
			return nil, fmt.Errorf("failed to scan category total: %w", err)
		}
		ct.Category = models.Category(category)
		totals = append(totals, ct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating category totals: %w", err)
	}
	return totals, nil
}

func average(total decimal.Decimal, count int) decimal.Decimal {
	if count == 0 {
		return decimal.Zero
	}
	return total.Div(decimal.NewFromInt(int64(count))).Round(2)
}

func scanExpenses(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
},
) ([]models.Expense, error) {
	var expenses []models.Expense
	for rows.Next() {
		var (
			exp      models.Expense
			category string
			source   string
		)
		if err := rows.Scan(&exp.ID, &exp.AccountID, &exp.Amount, &exp.Description,
			&category, &exp.Date, &source, &exp.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		exp.Category = models.Category(category)
		exp.Source = models.Source(source)
		expenses = append(expenses, exp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating expenses: %w", err)
	}
	return expenses, nil
}
