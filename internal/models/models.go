// Package models defines the domain entities for the budget tracker.
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is the currency assumed when an account has none set.
const DefaultCurrency = "GBP"

// MaxDescriptionLength is the maximum allowed length of an expense description.
const MaxDescriptionLength = 200

// LinkingCodeLength is the length of an account linking code.
const LinkingCodeLength = 6

// SupportedCurrencies maps the accepted currency codes to their symbols.
var SupportedCurrencies = map[string]string{
	"GBP": "£",
	"USD": "$",
	"EUR": "€",
}

// CurrencySymbol returns the symbol for a currency code, or the code itself.
func CurrencySymbol(code string) string {
	if symbol, ok := SupportedCurrencies[code]; ok {
		return symbol
	}
	return code
}

// Category is one of the fixed expense categories.
type Category string

// Expense categories.
const (
	CategoryFood          Category = "Food"
	CategoryTransport     Category = "Transport"
	CategoryEntertainment Category = "Entertainment"
	CategoryShopping      Category = "Shopping"
	CategoryBills         Category = "Bills"
	CategoryOther         Category = "Other"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryFood,
	CategoryTransport,
	CategoryEntertainment,
	CategoryShopping,
	CategoryBills,
	CategoryOther,
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Source records where an expense was entered.
type Source string

// Expense sources.
const (
	SourceWeb  Source = "web"
	SourceChat Source = "chat"
)

// Account is a budget owner. Accounts are created by the web app; this
// service only reads them and maintains the chat binding fields.
type Account struct {
	ID                uuid.UUID
	Name              string
	MonthlyBudget     decimal.Decimal
	Currency          string
	ChatID            *int64
	ChatDisplayName   string
	LinkingCode       string
	LinkingCodeExpiry *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsLinked reports whether the account is bound to a chat.
func (a *Account) IsLinked() bool {
	return a.ChatID != nil
}

// CurrencyOrDefault returns the account currency, falling back to DefaultCurrency.
func (a *Account) CurrencyOrDefault() string {
	if a.Currency == "" {
		return DefaultCurrency
	}
	return a.Currency
}

// Expense is a single recorded expense.
type Expense struct {
	ID          uuid.UUID
	AccountID   uuid.UUID
	Amount      decimal.Decimal
	Description string
	Category    Category
	Date        time.Time
	Source      Source
	CreatedAt   time.Time
}

// Summary aggregates expenses over a date range.
type Summary struct {
	Total   decimal.Decimal
	Count   int
	Average decimal.Decimal
}

// CategoryTotal is the spend in one category over a date range.
type CategoryTotal struct {
	Category Category
	Total    decimal.Decimal
	Count    int
}
