package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gitlab.com/yelinaung/budgetly-bot/internal/database"
	"gitlab.com/yelinaung/budgetly-bot/internal/models"
)

func setupExpenseTest(t *testing.T) (*ExpenseRepository, *models.Account, context.Context) {
	t.Helper()

	tx := database.TestTx(t)
	account := createTestAccount(t, NewAccountRepository(tx))
	return NewExpenseRepository(tx), account, context.Background()
}

func TestExpenseRepository_Create(t *testing.T) {
	repo, account, ctx := setupExpenseTest(t)

	expense := &models.Expense{
		AccountID:   account.ID,
		Amount:      decimal.RequireFromString("12.50"),
		Description: "Coffee with friends",
		Category:    models.CategoryFood,
		Source:      models.SourceChat,
	}
	require.NoError(t, repo.Create(ctx, expense))
	require.NotEqual(t, uuid.Nil, expense.ID)
	require.False(t, expense.CreatedAt.IsZero())

	fetched, err := repo.GetByID(ctx, expense.ID)
	require.NoError(t, err)
	require.True(t, expense.Amount.Equal(fetched.Amount))
	require.Equal(t, "Coffee with friends", fetched.Description)
	require.Equal(t, models.CategoryFood, fetched.Category)
	require.Equal(t, models.SourceChat, fetched.Source)

	_, err = repo.GetByID(ctx, uuid.New())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestExpenseRepository_Create_DefaultsSource(t *testing.T) {
	repo, account, ctx := setupExpenseTest(t)

	expense := &models.Expense{
		AccountID:   account.ID,
		Amount:      decimal.NewFromInt(3),
		Description: "Stamps",
		Category:    models.CategoryOther,
	}
	require.NoError(t, repo.Create(ctx, expense))
	require.Equal(t, models.SourceWeb, expense.Source)
}

func TestExpenseRepository_RangeQueries(t *testing.T) {
	repo, account, ctx := setupExpenseTest(t)

	monthStart := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	seed := []struct {
		amount   string
		category models.Category
		date     time.Time
	}{
		{"10.00", models.CategoryFood, monthStart.Add(24 * time.Hour)},
		{"5.50", models.CategoryFood, monthStart.Add(48 * time.Hour)},
		{"30.00", models.CategoryTransport, monthStart.Add(72 * time.Hour)},
		{"99.00", models.CategoryShopping, monthStart.Add(-time.Hour)},
	}
	for _, s := range seed {
		require.NoError(t, repo.Create(ctx, &models.Expense{
			AccountID:   account.ID,
			Amount:      decimal.RequireFromString(s.amount),
			Description: "seeded",
			Category:    s.category,
			Date:        s.date,
		}))
	}
	end := monthStart.AddDate(0, 1, 0)

	t.Run("list excludes out of range", func(t *testing.T) {
		expenses, err := repo.ListByAccountAndRange(ctx, account.ID, monthStart, end)
		require.NoError(t, err)
		require.Len(t, expenses, 3)
		require.True(t, expenses[0].Date.After(expenses[2].Date))
	})

	t.Run("summarize", func(t *testing.T) {
		summary, err := repo.Summarize(ctx, account.ID, monthStart, end)
		require.NoError(t, err)
		require.Equal(t, "45.5", summary.Total.String())
		require.Equal(t, 3, summary.Count)
		require.Equal(t, "15.17", summary.Average.StringFixed(2))
	})

	t.Run("summarize empty range", func(t *testing.T) {
		summary, err := repo.Summarize(ctx, account.ID, end, end.AddDate(0, 1, 0))
		require.NoError(t, err)
		require.True(t, summary.Total.IsZero())
		require.Zero(t, summary.Count)
		require.True(t, summary.Average.IsZero())
	})

	t.Run("category breakdown", func(t *testing.T) {
		totals, err := repo.CategoryBreakdown(ctx, account.ID, monthStart, end)
		require.NoError(t, err)
		require.Len(t, totals, 2)
		require.Equal(t, models.CategoryTransport, totals[0].Category)
		require.Equal(t, models.CategoryFood, totals[1].Category)
		require.Equal(t, "15.5", totals[1].Total.String())
		require.Equal(t, 2, totals[1].Count)
	})
}

func TestExpenseRepository_DeleteForAccount(t *testing.T) {
	repo, account, ctx := setupExpenseTest(t)

	expense := &models.Expense{
		AccountID:   account.ID,
		Amount:      decimal.NewFromInt(8),
		Description: "Lunch",
		Category:    models.CategoryFood,
	}
	require.NoError(t, repo.Create(ctx, expense))

	err := repo.DeleteForAccount(ctx, uuid.New(), expense.ID)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.DeleteForAccount(ctx, account.ID, expense.ID))

	_, err = repo.GetByID(ctx, expense.ID)
	require.ErrorIs(t, err, ErrNotFound)
}
