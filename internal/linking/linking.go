// Package linking binds chat identities to budget accounts with short-lived codes.
package linking

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"gitlab.com/yelinaung/budgetly-bot/internal/logger"
	"gitlab.com/yelinaung/budgetly-bot/internal/models"
	"gitlab.com/yelinaung/budgetly-bot/internal/repository"
	"gitlab.com/yelinaung/budgetly-bot/internal/telemetry"
)

var (
	// ErrInvalidFormat is returned for codes that are not six characters of [A-Z0-9].
	ErrInvalidFormat = errors.New("invalid linking code format")
	// ErrInvalidOrExpired is returned when no account holds the code or it has expired.
	ErrInvalidOrExpired = errors.New("invalid or expired linking code")
	// ErrAlreadyLinked is returned when the chat is bound to a different account.
	ErrAlreadyLinked = errors.New("chat already linked to another account")
)

const (
	codeAlphabet        = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	maxGenerateAttempts = 5
)

// Link attempt outcomes recorded in metrics.
const (
	outcomeSuccess        = "success"
	outcomeInvalidFormat  = "invalid_format"
	outcomeInvalidExpired = "invalid_or_expired"
	outcomeAlreadyLinked  = "already_linked"
	outcomeError          = "error"
)

// AccountStore is the account persistence the service needs.
type AccountStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	GetByChatID(ctx context.Context, chatID int64) (*models.Account, error)
	GetByActiveCode(ctx context.Context, code string, now time.Time) (*models.Account, error)
	SetLinkingCode(ctx context.Context, id uuid.UUID, code string, expiry time.Time) error
	BindChat(ctx context.Context, id uuid.UUID, code string, chatID int64, displayName string, now time.Time) (*models.Account, error)
	UnbindAccount(ctx context.Context, id uuid.UUID) error
	UnbindChat(ctx context.Context, chatID int64) (bool, error)
	ClearExpiredCodes(ctx context.Context, now time.Time) (int64, error)
}

// Code is an issued linking code.
type Code struct {
	Value  string
	Expiry time.Time
}

// Status describes the link state of an account.
type Status struct {
	Linked      bool
	DisplayName string
	CodeExpiry  *time.Time
}

// Service issues and consumes linking codes.
type Service struct {
	store    AccountStore
	ttl      time.Duration
	now      func() time.Time
	generate func() (string, error)
	metrics  *telemetry.Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithCodeGenerator overrides the random code source.
func WithCodeGenerator(gen func() (string, error)) Option {
	return func(s *Service) { s.generate = gen }
}

// WithMetrics records link attempts on m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a Service whose codes stay valid for ttl.
func NewService(store AccountStore, ttl time.Duration, opts ...Option) *Service {
	s := &Service{
		store:    store,
		ttl:      ttl,
		now:      time.Now,
		generate: GenerateCodeValue,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateCodeValue returns a random code of models.LinkingCodeLength
// characters drawn from [A-Z0-9] using crypto/rand.
func GenerateCodeValue() (string, error) {
	limit := big.NewInt(int64(len(codeAlphabet)))
	var b strings.Builder
	b.Grow(models.LinkingCodeLength)
	for range models.LinkingCodeLength {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("failed to read random: %w", err)
		}
		b.WriteByte(codeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// ValidFormat reports whether code is exactly six characters of [A-Z0-9].
func ValidFormat(code string) bool {
	if len(code) != models.LinkingCodeLength {
		return false
	}
	for i := range len(code) {
		if !strings.ContainsRune(codeAlphabet, rune(code[i])) {
			return false
		}
	}
	return true
}

// GenerateCode issues a fresh code for accountID, replacing any previous one.
func (s *Service) GenerateCode(ctx context.Context, accountID uuid.UUID) (Code, error) {
	expiry := s.now().Add(s.ttl)

	for attempt := 1; attempt <= maxGenerateAttempts; attempt++ {
		value, err := s.generate()
		if err != nil {
			return Code{}, fmt.Errorf("failed to generate linking code: %w", err)
		}
		value = strings.ToUpper(value)

		err = s.store.SetLinkingCode(ctx, accountID, value, expiry)
		if errors.Is(err, repository.ErrCodeCollision) {
			logger.Log.Debug().
				Str("account_hash", logger.HashAccountID(accountID)).
				Int("attempt", attempt).
				Msg("Linking code collision, regenerating")
			continue
		}
		if err != nil {
			return Code{}, fmt.Errorf("failed to store linking code: %w", err)
		}

		logger.Log.Info().
			Str("account_hash", logger.HashAccountID(accountID)).
			Time("expiry", expiry).
			Msg("Linking code issued")
		return Code{Value: value, Expiry: expiry}, nil
	}

	return Code{}, fmt.Errorf("failed to generate linking code after %d attempts: %w",
		maxGenerateAttempts, repository.ErrCodeCollision)
}

// ConsumeCode binds chatID to the account holding rawCode. Checks run in
// order: format, code validity, existing binding of the chat. Re-linking a
// chat to the account it is already bound to succeeds and consumes the code.
func (s *Service) ConsumeCode(ctx context.Context, rawCode string, chatID int64, displayName string) (*models.Account, error) {
	account, err := s.consume(ctx, rawCode, chatID, displayName)
	s.metrics.LinkAttempt(ctx, outcome(err))
	return account, err
}

func (s *Service) consume(ctx context.Context, rawCode string, chatID int64, displayName string) (*models.Account, error) {
	code := strings.ToUpper(strings.TrimSpace(rawCode))
	if !ValidFormat(code) {
		return nil, ErrInvalidFormat
	}

	now := s.now()
	account, err := s.store.GetByActiveCode(ctx, code, now)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidOrExpired
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up linking code: %w", err)
	}

	bound, err := s.store.GetByChatID(ctx, chatID)
	switch {
	case err == nil && bound.ID != account.ID:
		return nil, ErrAlreadyLinked
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("failed to look up chat binding: %w", err)
	}

	linked, err := s.store.BindChat(ctx, account.ID, code, chatID, displayName, now)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, ErrInvalidOrExpired
	case errors.Is(err, repository.ErrChatAlreadyBound):
		return nil, ErrAlreadyLinked
	case err != nil:
		return nil, fmt.Errorf("failed to bind chat: %w", err)
	}

	logger.Log.Info().
		Str("account_hash", logger.HashAccountID(linked.ID)).
		Str("chat_hash", logger.HashChatID(chatID)).
		Msg("Chat linked to account")
	return linked, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return outcomeSuccess
	case errors.Is(err, ErrInvalidFormat):
		return outcomeInvalidFormat
	case errors.Is(err, ErrInvalidOrExpired):
		return outcomeInvalidExpired
	case errors.Is(err, ErrAlreadyLinked):
		return outcomeAlreadyLinked
	default:
		return outcomeError
	}
}

// Disconnect clears the chat binding of accountID. Disconnecting an unlinked
// account succeeds.
func (s *Service) Disconnect(ctx context.Context, accountID uuid.UUID) error {
	if err := s.store.UnbindAccount(ctx, accountID); err != nil {
		return fmt.Errorf("failed to disconnect account: %w", err)
	}
	logger.Log.Info().Str("account_hash", logger.HashAccountID(accountID)).Msg("Account disconnected")
	return nil
}

// DisconnectChat clears whichever account is bound to chatID and reports
// whether one was.
func (s *Service) DisconnectChat(ctx context.Context, chatID int64) (bool, error) {
	unbound, err := s.store.UnbindChat(ctx, chatID)
	if err != nil {
		return false, fmt.Errorf("failed to disconnect chat: %w", err)
	}
	return unbound, nil
}

// Status reports whether accountID is linked and whether it holds an unexpired code.
func (s *Service) Status(ctx context.Context, accountID uuid.UUID) (*Status, error) {
	account, err := s.store.GetByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	st := &Status{
		Linked:      account.IsLinked(),
		DisplayName: account.ChatDisplayName,
	}
	if account.LinkingCodeExpiry != nil && account.LinkingCodeExpiry.After(s.now()) {
		exp := *account.LinkingCodeExpiry
		st.CodeExpiry = &exp
	}
	return st, nil
}

// SweepExpired clears expired codes and returns how many were cleared.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.store.ClearExpiredCodes(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired codes: %w", err)
	}
	if n > 0 {
		logger.Log.Debug().Int64("cleared", n).Msg("Expired linking codes cleared")
	}
	return n, nil
}
