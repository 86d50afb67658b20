// Package budget reports spending against an account's monthly budget.
package budget

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/budgetly-bot/internal/expense"
	"gitlab.com/yelinaung/budgetly-bot/internal/models"
)

// Window selects the aggregation period.
type Window int

// Aggregation windows.
const (
	WindowMonth Window = iota
	WindowDay
)

// Tier classifies how much of the budget has been used.
type Tier string

// Budget tiers, from least to most used.
const (
	TierOnTrack  Tier = "on-track"
	TierMidway   Tier = "midway"
	TierWarning  Tier = "warning"
	TierCritical Tier = "critical"
)

var (
	criticalThreshold = decimal.NewFromInt(90)
	warningThreshold  = decimal.NewFromInt(70)
	midwayThreshold   = decimal.NewFromInt(50)
	hundred           = decimal.NewFromInt(100)
)

// Store aggregates expenses.
type Store interface {
	ListByAccountAndRange(ctx context.Context, accountID uuid.UUID, start, end time.Time) ([]models.Expense, error)
	Summarize(ctx context.Context, accountID uuid.UUID, start, end time.Time) (models.Summary, error)
	CategoryBreakdown(ctx context.Context, accountID uuid.UUID, start, end time.Time) ([]models.CategoryTotal, error)
}

// AccountResolver turns an AccountRef into an account.
type AccountResolver interface {
	ResolveAccount(ctx context.Context, ref expense.AccountRef) (*models.Account, error)
}

// Status is the spending position for a window.
//
// Remaining, Percentage, Tier and DailyAllowance measure the month against
// the monthly budget and are left zero for WindowDay.
type Status struct {
	Window     Window
	Currency   string
	Spent      decimal.Decimal
	Budget     decimal.Decimal
	Remaining  decimal.Decimal
	Count      int
	Average    decimal.Decimal
	Percentage decimal.Decimal
	Tier       Tier
	// DaysLeft counts the remaining days of the month including today.
	DaysLeft       int
	DailyAllowance decimal.Decimal
	// Expenses is only populated for WindowDay.
	Expenses []models.Expense
}

// Breakdown is the month's spending grouped by category.
type Breakdown struct {
	Currency   string
	Month      time.Time
	Total      decimal.Decimal
	Categories []models.CategoryTotal
}

// Service answers budget queries.
type Service struct {
	accounts        AccountResolver
	expenses        Store
	location        *time.Location
	now             func() time.Time
	defaultCurrency string
}

// NewService creates a Service. A nil now uses time.Now and a nil loc uses UTC.
func NewService(accounts AccountResolver, expenses Store, loc *time.Location, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		accounts:        accounts,
		expenses:        expenses,
		location:        loc,
		now:             now,
		defaultCurrency: models.DefaultCurrency,
	}
}

// GetStatus aggregates expenses in [windowStart, now).
func (s *Service) GetStatus(ctx context.Context, ref expense.AccountRef, window Window) (*Status, error) {
	account, err := s.accounts.ResolveAccount(ctx, ref)
	if err != nil {
		return nil, err
	}

	now := s.now()
	start := expense.MonthStart(now, s.location)
	if window == WindowDay {
		start = expense.DayStart(now, s.location)
	}

	summary, err := s.expenses.Summarize(ctx, account.ID, start, now)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize expenses: %w", err)
	}

	st := &Status{
		Window:   window,
		Currency: s.currency(account),
		Spent:    summary.Total,
		Budget:   account.MonthlyBudget,
		Count:    summary.Count,
		Average:  summary.Average,
		DaysLeft: DaysLeftInMonth(now, s.location),
	}

	if window == WindowDay {
		st.Expenses, err = s.expenses.ListByAccountAndRange(ctx, account.ID, start, now)
		if err != nil {
			return nil, fmt.Errorf("failed to list expenses: %w", err)
		}
		return st, nil
	}

	st.Remaining = account.MonthlyBudget.Sub(summary.Total)
	st.Percentage = Percentage(summary.Total, account.MonthlyBudget)
	st.Tier = TierFor(usage(summary.Total, account.MonthlyBudget))
	if st.Remaining.IsPositive() && st.DaysLeft > 0 {
		st.DailyAllowance = st.Remaining.Div(decimal.NewFromInt(int64(st.DaysLeft))).Round(2)
	}
	return st, nil
}

// GetBreakdown returns this month's spending grouped by category.
func (s *Service) GetBreakdown(ctx context.Context, ref expense.AccountRef) (*Breakdown, error) {
	account, err := s.accounts.ResolveAccount(ctx, ref)
	if err != nil {
		return nil, err
	}

	now := s.now()
	start := expense.MonthStart(now, s.location)
	totals, err := s.expenses.CategoryBreakdown(ctx, account.ID, start, now)
	if err != nil {
		return nil, fmt.Errorf("failed to get category breakdown: %w", err)
	}

	b := &Breakdown{
		Currency:   s.currency(account),
		Month:      start,
		Total:      decimal.Zero,
		Categories: totals,
	}
	for _, ct := range totals {
		b.Total = b.Total.Add(ct.Total)
	}
	return b, nil
}

func (s *Service) currency(account *models.Account) string {
	if account.Currency != "" {
		return account.Currency
	}
	return s.defaultCurrency
}

// Percentage returns spent as a percentage of budget, rounded to one decimal
// place for display. A budget of zero or less yields zero.
func Percentage(spent, budget decimal.Decimal) decimal.Decimal {
	return usage(spent, budget).Round(1)
}

// usage is the unrounded percentage the tiers are computed from.
func usage(spent, budget decimal.Decimal) decimal.Decimal {
	if !budget.IsPositive() {
		return decimal.Zero
	}
	return spent.Div(budget).Mul(hundred)
}

// TierFor maps an unrounded usage percentage to its tier.
func TierFor(percentage decimal.Decimal) Tier {
	switch {
	case percentage.GreaterThanOrEqual(criticalThreshold):
		return TierCritical
	case percentage.GreaterThanOrEqual(warningThreshold):
		return TierWarning
	case percentage.GreaterThanOrEqual(midwayThreshold):
		return TierMidway
	default:
		return TierOnTrack
	}
}

// DaysLeftInMonth counts the days from t's day to the end of its month, inclusive.
func DaysLeftInMonth(t time.Time, loc *time.Location) int {
	t = t.In(loc)
	lastDay := time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, loc).Day()
	return lastDay - t.Day() + 1
}
