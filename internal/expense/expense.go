// Package expense validates and records expenses entered through chat.
package expense

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/budgetly-bot/internal/category"
	"gitlab.com/yelinaung/budgetly-bot/internal/logger"
	"gitlab.com/yelinaung/budgetly-bot/internal/models"
	"gitlab.com/yelinaung/budgetly-bot/internal/repository"
	"gitlab.com/yelinaung/budgetly-bot/internal/telemetry"
)

// Validation errors, checked in this order.
var (
	ErrNotLinked          = errors.New("chat is not linked to an account")
	ErrInvalidAmount      = errors.New("amount must be a number greater than 0")
	ErrAmountTooLarge     = errors.New("amount exceeds the maximum allowed")
	ErrInvalidDescription = errors.New("description is required")
	ErrDescriptionTooLong = errors.New("description is too long")
)

// maxAmountScale is the number of decimal places an amount may carry.
const maxAmountScale = 2

var htmlTagRe = regexp.MustCompile(`<[^>]*>`)

// AccountRef identifies an account directly or through its bound chat.
// AccountID takes precedence when set.
type AccountRef struct {
	AccountID uuid.UUID
	ChatID    int64
}

// AccountReader resolves accounts.
type AccountReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	GetByChatID(ctx context.Context, chatID int64) (*models.Account, error)
}

// Store persists and aggregates expenses.
type Store interface {
	Create(ctx context.Context, expense *models.Expense) error
	DeleteForAccount(ctx context.Context, accountID, id uuid.UUID) error
	Summarize(ctx context.Context, accountID uuid.UUID, start, end time.Time) (models.Summary, error)
}

// Receipt describes a recorded expense and the month-to-date position after it.
type Receipt struct {
	ExpenseID      uuid.UUID
	Amount         decimal.Decimal
	Currency       string
	Category       models.Category
	Description    string
	Date           time.Time
	MonthlyBudget  decimal.Decimal
	MonthSpent     decimal.Decimal
	MonthRemaining decimal.Decimal
}

// Service records expenses.
type Service struct {
	accounts        AccountReader
	expenses        Store
	classifier      *category.Classifier
	maxAmount       decimal.Decimal
	defaultCurrency string
	location        *time.Location
	now             func() time.Time
	metrics         *telemetry.Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithMaxAmount sets the largest accepted amount.
func WithMaxAmount(limit decimal.Decimal) Option {
	return func(s *Service) { s.maxAmount = limit }
}

// WithDefaultCurrency sets the currency reported for accounts without one.
func WithDefaultCurrency(code string) Option {
	return func(s *Service) { s.defaultCurrency = code }
}

// WithClassifier replaces category.Default.
func WithClassifier(c *category.Classifier) Option {
	return func(s *Service) { s.classifier = c }
}

// WithLocation sets the timezone used for the month window.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.location = loc }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMetrics records created expenses on m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a Service.
func NewService(accounts AccountReader, expenses Store, opts ...Option) *Service {
	s := &Service{
		accounts:        accounts,
		expenses:        expenses,
		classifier:      category.Default,
		maxAmount:       decimal.NewFromInt(1_000_000),
		defaultCurrency: models.DefaultCurrency,
		location:        time.UTC,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ResolveAccount returns the account ref points at, or ErrNotLinked.
func (s *Service) ResolveAccount(ctx context.Context, ref AccountRef) (*models.Account, error) {
	var (
		account *models.Account
		err     error
	)
	if ref.AccountID != uuid.Nil {
		account, err = s.accounts.GetByID(ctx, ref.AccountID)
	} else {
		account, err = s.accounts.GetByChatID(ctx, ref.ChatID)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotLinked
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve account: %w", err)
	}
	return account, nil
}

// ParseAmount parses a positive amount with at most two decimal places. A
// leading currency symbol is ignored.
func ParseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimLeft(raw, "£$€")
	if raw == "" {
		return decimal.Zero, ErrInvalidAmount
	}

	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if !amount.IsPositive() || !amount.Equal(amount.Truncate(maxAmountScale)) {
		return decimal.Zero, ErrInvalidAmount
	}
	return amount, nil
}

// ParseAddArgs splits "<amount> <description>" at the first whitespace.
func ParseAddArgs(args string) (amount, description string) {
	args = strings.TrimSpace(args)
	i := strings.IndexFunc(args, unicode.IsSpace)
	if i < 0 {
		return args, ""
	}
	return args[:i], strings.TrimSpace(args[i:])
}

// CleanDescription trims and length-checks a description, then strips HTML tags.
func CleanDescription(raw string) (string, error) {
	desc := strings.TrimSpace(raw)
	if desc == "" {
		return "", ErrInvalidDescription
	}
	if utf8.RuneCountInString(desc) > models.MaxDescriptionLength {
		return "", ErrDescriptionTooLong
	}

	desc = strings.TrimSpace(htmlTagRe.ReplaceAllString(desc, ""))
	if desc == "" {
		return "", ErrInvalidDescription
	}
	return desc, nil
}

// AddExpense validates and records an expense for the account ref resolves to.
func (s *Service) AddExpense(
	ctx context.Context,
	ref AccountRef,
	rawAmount, rawDescription string,
	source models.Source,
) (*Receipt, error) {
	account, err := s.ResolveAccount(ctx, ref)
	if err != nil {
		return nil, err
	}

	amount, err := ParseAmount(rawAmount)
	if err != nil {
		return nil, err
	}
	if amount.GreaterThan(s.maxAmount) {
		return nil, ErrAmountTooLarge
	}

	desc, err := CleanDescription(rawDescription)
	if err != nil {
		return nil, err
	}

	now := s.now()
	expense := &models.Expense{
		AccountID:   account.ID,
		Amount:      amount,
		Description: desc,
		Category:    s.classifier.Classify(desc),
		Date:        now,
		Source:      source,
	}
	if err := s.expenses.Create(ctx, expense); err != nil {
		return nil, fmt.Errorf("failed to save expense: %w", err)
	}
	s.metrics.ExpenseCreated(ctx, string(source), string(expense.Category))

	logger.Log.Info().
		Str("account_hash", logger.HashAccountID(account.ID)).
		Str("amount", amount.StringFixed(2)).
		Str("category", string(expense.Category)).
		Str("source", string(source)).
		Str("description", logger.SanitizeDescription(desc)).
		Msg("Expense created")

	receipt := &Receipt{
		ExpenseID:     expense.ID,
		Amount:        amount,
		Currency:      s.currency(account),
		Category:      expense.Category,
		Description:   desc,
		Date:          expense.Date,
		MonthlyBudget: account.MonthlyBudget,
	}

	monthStart := MonthStart(now, s.location)
	summary, err := s.expenses.Summarize(ctx, account.ID, monthStart, monthStart.AddDate(0, 1, 0))
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Failed to summarize month after adding expense")
		return receipt, nil
	}
	receipt.MonthSpent = summary.Total
	receipt.MonthRemaining = account.MonthlyBudget.Sub(summary.Total)
	return receipt, nil
}

// Delete removes an expense owned by accountID.
func (s *Service) Delete(ctx context.Context, accountID, expenseID uuid.UUID) error {
	if err := s.expenses.DeleteForAccount(ctx, accountID, expenseID); err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	return nil
}

func (s *Service) currency(account *models.Account) string {
	if account.Currency != "" {
		return account.Currency
	}
	return s.defaultCurrency
}

// MonthStart returns the first instant of t's month in loc.
func MonthStart(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
}

// DayStart returns the first instant of t's day in loc.
func DayStart(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
