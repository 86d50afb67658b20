// Package config provides application configuration loading from environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Delivery modes.
const (
	DeliveryPolling = "polling"
	DeliveryWebhook = "webhook"
)

// Conversation state backends.
const (
	StateBackendMemory   = "memory"
	StateBackendPostgres = "postgres"
)

// Linking codes must stay valid for at least MinLinkCodeTTL and at most MaxLinkCodeTTL.
const (
	MinLinkCodeTTL = 10 * time.Minute
	MaxLinkCodeTTL = 15 * time.Minute
)

// MinCredentialSecretLength is the minimum length of CREDENTIAL_SECRET.
const MinCredentialSecretLength = 32

// Config holds all configuration for the application.
type Config struct {
	TelegramBotToken  string
	TelegramBotName   string
	DatabaseURL       string
	LogLevel          string
	LogFormat         string
	DeliveryMode      string
	WebhookURL        string
	WebhookSecret     string
	HTTPAddr          string
	CredentialSecret  string
	LinkCodeTTL       time.Duration
	MaxExpenseAmount  decimal.Decimal
	DefaultCurrency   string
	StateBackend      string
	StateTTL          time.Duration
	WitAIToken        string
	GeminiAPIKey      string
	FFmpegPath        string
	VoiceTimeout      time.Duration
	VoiceConcurrency  int64
	CodeSweepSchedule string
	OTelExporter      string
	OTelServiceName   string
	DisplayTimezone   string
	CORSAllowOrigins  []string
	EnablePprof       bool
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		TelegramBotToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramBotName:   envOrDefault("TELEGRAM_BOT_USERNAME", "BudgetlyBot"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		LogLevel:          os.Getenv("LOG_LEVEL"),
		LogFormat:         envOrDefault("LOG_FORMAT", "console"),
		DeliveryMode:      strings.ToLower(envOrDefault("DELIVERY_MODE", DeliveryPolling)),
		WebhookURL:        os.Getenv("WEBHOOK_URL"),
		WebhookSecret:     os.Getenv("WEBHOOK_SECRET"),
		HTTPAddr:          envOrDefault("HTTP_ADDR", ":8080"),
		CredentialSecret:  os.Getenv("CREDENTIAL_SECRET"),
		DefaultCurrency:   strings.ToUpper(envOrDefault("DEFAULT_CURRENCY", "GBP")),
		StateBackend:      strings.ToLower(envOrDefault("STATE_BACKEND", StateBackendMemory)),
		WitAIToken:        os.Getenv("WIT_AI_TOKEN"),
		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		FFmpegPath:        envOrDefault("FFMPEG_PATH", "ffmpeg"),
		CodeSweepSchedule: envOrDefault("CODE_SWEEP_SCHEDULE", "*/10 * * * *"),
		OTelExporter:      strings.ToLower(envOrDefault("OTEL_EXPORTER", "none")),
		OTelServiceName:   envOrDefault("OTEL_SERVICE_NAME", "budgetly-bot"),
		DisplayTimezone:   envOrDefault("DISPLAY_TIMEZONE", "Europe/London"),
		CORSAllowOrigins:  strings.Fields(os.Getenv("CORS_ALLOW_ORIGINS")),
		EnablePprof:       os.Getenv("ENABLE_PPROF") == "true",
	}

	cfg.LinkCodeTTL = clampDuration(parseDuration("LINK_CODE_TTL", MaxLinkCodeTTL), MinLinkCodeTTL, MaxLinkCodeTTL)
	cfg.StateTTL = parseDuration("CONVERSATION_STATE_TTL", 5*time.Minute)
	cfg.VoiceTimeout = parseDuration("VOICE_TIMEOUT", 30*time.Second)

	cfg.VoiceConcurrency = 4
	if v := os.Getenv("VOICE_MAX_CONCURRENCY"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.VoiceConcurrency = n
		}
	}

	cfg.MaxExpenseAmount = decimal.NewFromInt(1_000_000)
	if v := os.Getenv("MAX_EXPENSE_AMOUNT"); v != "" {
		if d, err := decimal.NewFromString(strings.TrimSpace(v)); err == nil && d.IsPositive() {
			cfg.MaxExpenseAmount = d
		}
	}

	if _, err := time.LoadLocation(cfg.DisplayTimezone); err != nil {
		cfg.DisplayTimezone = "UTC"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks that all required configuration is present.
func (c *Config) validate() error {
	var errs []string

	if c.TelegramBotToken == "" {
		errs = append(errs, "TELEGRAM_BOT_TOKEN is required")
	}
	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if len(c.CredentialSecret) < MinCredentialSecretLength {
		errs = append(errs, fmt.Sprintf("CREDENTIAL_SECRET must be at least %d characters", MinCredentialSecretLength))
	}

	switch c.DeliveryMode {
	case DeliveryPolling:
	case DeliveryWebhook:
		if c.WebhookURL == "" {
			errs = append(errs, "WEBHOOK_URL is required when DELIVERY_MODE=webhook")
		}
		if c.WebhookSecret == "" {
			errs = append(errs, "WEBHOOK_SECRET is required when DELIVERY_MODE=webhook")
		}
	default:
		errs = append(errs, fmt.Sprintf("DELIVERY_MODE must be %q or %q", DeliveryPolling, DeliveryWebhook))
	}

	switch c.StateBackend {
	case StateBackendMemory, StateBackendPostgres:
	default:
		errs = append(errs, fmt.Sprintf("STATE_BACKEND must be %q or %q", StateBackendMemory, StateBackendPostgres))
	}

	switch c.DefaultCurrency {
	case "GBP", "USD", "EUR":
	default:
		errs = append(errs, "DEFAULT_CURRENCY must be one of GBP, USD, EUR")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// VoiceEnabled reports whether any transcription provider is configured.
func (c *Config) VoiceEnabled() bool {
	return c.WitAIToken != "" || c.GeminiAPIKey != ""
}

// Location returns the timezone used for day and month windows.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.DisplayTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func parseDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func clampDuration(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}
