// Package memory provides in-memory account and expense stores with the same
// semantics as the PostgreSQL repositories. Used by service and bot tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/budgetly-bot/internal/models"
	"gitlab.com/yelinaung/budgetly-bot/internal/repository"
)

// Accounts is an in-memory account store.
type Accounts struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*models.Account
}

// NewAccounts creates an empty Accounts store.
func NewAccounts() *Accounts {
	return &Accounts{accounts: make(map[uuid.UUID]*models.Account)}
}

// Create adds an account.
func (s *Accounts) Create(_ context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	if account.Currency == "" {
		account.Currency = models.DefaultCurrency
	}
	now := time.Now()
	account.CreatedAt, account.UpdatedAt = now, now
	s.accounts[account.ID] = clone(account)
	return nil
}

// GetByID returns a copy of the account with id.
func (s *Accounts) GetByID(_ context.Context, id uuid.UUID) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(a), nil
}

// GetByChatID returns the account bound to chatID.
func (s *Accounts) GetByChatID(_ context.Context, chatID int64) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a := s.byChat(chatID); a != nil {
		return clone(a), nil
	}
	return nil, repository.ErrNotFound
}

// GetByActiveCode returns the account holding code if unexpired at now.
func (s *Accounts) GetByActiveCode(_ context.Context, code string, now time.Time) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.accounts {
		if a.LinkingCode == code && a.LinkingCodeExpiry != nil && a.LinkingCodeExpiry.After(now) {
			return clone(a), nil
		}
	}
	return nil, repository.ErrNotFound
}

// SetLinkingCode stores code and expiry together.
func (s *Accounts) SetLinkingCode(_ context.Context, id uuid.UUID, code string, expiry time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	for otherID, other := range s.accounts {
		if otherID != id && other.LinkingCode == code {
			return repository.ErrCodeCollision
		}
	}
	a.LinkingCode = code
	a.LinkingCodeExpiry = &expiry
	a.UpdatedAt = time.Now()
	return nil
}

// BindChat binds chatID if the account still holds an unexpired code.
func (s *Accounts) BindChat(
	_ context.Context,
	id uuid.UUID,
	code string,
	chatID int64,
	displayName string,
	now time.Time,
) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok || a.LinkingCode != code || a.LinkingCodeExpiry == nil || !a.LinkingCodeExpiry.After(now) {
		return nil, repository.ErrNotFound
	}
	if other := s.byChat(chatID); other != nil && other.ID != id {
		return nil, repository.ErrChatAlreadyBound
	}
	a.ChatID = &chatID
	a.ChatDisplayName = displayName
	a.LinkingCode = ""
	a.LinkingCodeExpiry = nil
	a.UpdatedAt = time.Now()
	return clone(a), nil
}

// UnbindAccount clears the chat binding of an account.
func (s *Accounts) UnbindAccount(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a, ok := s.accounts[id]; ok {
		a.ChatID = nil
		a.ChatDisplayName = ""
	}
	return nil
}

// UnbindChat clears the account bound to chatID.
func (s *Accounts) UnbindChat(_ context.Context, chatID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.byChat(chatID)
	if a == nil {
		return false, nil
	}
	a.ChatID = nil
	a.ChatDisplayName = ""
	return true, nil
}

// ClearExpiredCodes removes code/expiry pairs that expired at or before now.
func (s *Accounts) ClearExpiredCodes(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, a := range s.accounts {
		if a.LinkingCodeExpiry != nil && !a.LinkingCodeExpiry.After(now) {
			a.LinkingCode = ""
			a.LinkingCodeExpiry = nil
			n++
		}
	}
	return n, nil
}

func (s *Accounts) byChat(chatID int64) *models.Account {
	for _, a := range s.accounts {
		if a.ChatID != nil && *a.ChatID == chatID {
			return a
		}
	}
	return nil
}

func clone(a *models.Account) *models.Account {
	c := *a
	if a.ChatID != nil {
		id := *a.ChatID
		c.ChatID = &id
	}
	if a.LinkingCodeExpiry != nil {
		exp := *a.LinkingCodeExpiry
		c.LinkingCodeExpiry = &exp
	}
	return &c
}

// Expenses is an in-memory expense store.
type Expenses struct {
	mu       sync.Mutex
	expenses []models.Expense
}

// NewExpenses creates an empty Expenses store.
func NewExpenses() *Expenses {
	return &Expenses{}
}

// Create adds an expense.
func (s *Expenses) Create(_ context.Context, expense *models.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if expense.ID == uuid.Nil {
		expense.ID = uuid.New()
	}
	if expense.Date.IsZero() {
		expense.Date = time.Now()
	}
	if expense.Source == "" {
		expense.Source = models.SourceWeb
	}
	expense.CreatedAt = time.Now()
	s.expenses = append(s.expenses, *expense)
	return nil
}

// All returns every stored expense in insertion order.
func (s *Expenses) All() []models.Expense {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Expense, len(s.expenses))
	copy(out, s.expenses)
	return out
}

// DeleteForAccount deletes an expense owned by accountID.
func (s *Expenses) DeleteForAccount(_ context.Context, accountID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range s.expenses {
		if e.ID == id && e.AccountID == accountID {
			s.expenses = append(s.expenses[:i], s.expenses[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

// ListByAccountAndRange returns expenses dated in [start, end), newest first.
func (s *Expenses) ListByAccountAndRange(
	_ context.Context,
	accountID uuid.UUID,
	start, end time.Time,
) ([]models.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Expense
	for _, e := range s.expenses {
		if e.AccountID == accountID && !e.Date.Before(start) && e.Date.Before(end) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

// Summarize returns total, count and average for [start, end).
func (s *Expenses) Summarize(ctx context.Context, accountID uuid.UUID, start, end time.Time) (models.Summary, error) {
	expenses, _ := s.ListByAccountAndRange(ctx, accountID, start, end)

	summary := models.Summary{Total: decimal.Zero, Average: decimal.Zero, Count: len(expenses)}
	for _, e := range expenses {
		summary.Total = summary.Total.Add(e.Amount)
	}
	if summary.Count > 0 {
		summary.Average = summary.Total.Div(decimal.NewFromInt(int64(summary.Count))).Round(2)
	}
	return summary, nil
}

// CategoryBreakdown returns per-category totals for [start, end), largest first.
func (s *Expenses) CategoryBreakdown(
	ctx context.Context,
	accountID uuid.UUID,
	start, end time.Time,
) ([]models.CategoryTotal, error) {
	expenses, _ := s.ListByAccountAndRange(ctx, accountID, start, end)

	index := make(map[models.Category]int)
	var totals []models.CategoryTotal
	for _, e := range expenses {
		i, ok := index[e.Category]
		if !ok {
			i = len(totals)
			index[e.Category] = i
			totals = append(totals, models.CategoryTotal{Category: e.Category, Total: decimal.Zero})
		}
		totals[i].Total = totals[i].Total.Add(e.Amount)
		totals[i].Count++
	}
	sort.SliceStable(totals, func(i, j int) bool {
		if c := totals[i].Total.Cmp(totals[j].Total); c != 0 {
			return c > 0
		}
		return totals[i].Category < totals[j].Category
	})
	return totals, nil
}
