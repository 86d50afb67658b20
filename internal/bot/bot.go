// Package bot connects Telegram to the budget pipeline. Polling and webhook
// delivery both end in HandleUpdate.
package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"gitlab.com/yelinaung/budgetly-bot/internal/budget"
	"gitlab.com/yelinaung/budgetly-bot/internal/command"
	"gitlab.com/yelinaung/budgetly-bot/internal/convstate"
	"gitlab.com/yelinaung/budgetly-bot/internal/expense"
	"gitlab.com/yelinaung/budgetly-bot/internal/linking"
	"gitlab.com/yelinaung/budgetly-bot/internal/logger"
	"gitlab.com/yelinaung/budgetly-bot/internal/telemetry"
	"golang.org/x/sync/semaphore"
)

const (
	defaultVoiceTimeout     = 30 * time.Second
	defaultVoiceConcurrency = 4
)

// VoiceProcessor turns a voice note into text.
type VoiceProcessor interface {
	Available() bool
	Process(ctx context.Context, fileID string) (string, error)
}

// Deps are the services the bot dispatches to.
type Deps struct {
	Router   *command.Router
	States   convstate.Store
	Linking  *linking.Service
	Expenses *expense.Service
	Budget   *budget.Service
	// Voice may be nil when no transcription provider is configured.
	Voice            VoiceProcessor
	VoiceTimeout     time.Duration
	VoiceConcurrency int64
	Metrics          *telemetry.Metrics
	Location         *time.Location
}

// Bot wraps the Telegram client with application dependencies.
type Bot struct {
	bot  *bot.Bot
	api  TelegramAPI
	deps Deps

	voiceSem *semaphore.Weighted
	voiceWG  sync.WaitGroup
}

// New creates a Bot backed by the Telegram Bot API.
func New(token string, deps Deps, opts ...bot.Option) (*Bot, error) {
	b := newBot(nil, deps)

	opts = append([]bot.Option{
		bot.WithDefaultHandler(b.defaultHandler),
		bot.WithNotAsyncHandlers(),
	}, opts...)

	telegramBot, err := bot.New(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b.bot = telegramBot
	b.api = telegramBot
	return b, nil
}

// NewWithAPI creates a Bot on top of an existing Telegram client.
func NewWithAPI(api TelegramAPI, deps Deps) *Bot {
	return newBot(api, deps)
}

func newBot(api TelegramAPI, deps Deps) *Bot {
	if deps.VoiceTimeout <= 0 {
		deps.VoiceTimeout = defaultVoiceTimeout
	}
	if deps.VoiceConcurrency <= 0 {
		deps.VoiceConcurrency = defaultVoiceConcurrency
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	return &Bot{
		api:      api,
		deps:     deps,
		voiceSem: semaphore.NewWeighted(deps.VoiceConcurrency),
	}
}

// SetVoice installs the voice processor. The pipeline downloads through the
// bot's own client, so it can only be built after New.
func (b *Bot) SetVoice(v VoiceProcessor) {
	b.deps.Voice = v
}

// API returns the Telegram client the bot replies through.
func (b *Bot) API() TelegramAPI {
	return b.api
}

// StartPolling removes any registered webhook and long-polls until ctx is done.
func (b *Bot) StartPolling(ctx context.Context) error {
	if _, err := b.api.DeleteWebhook(ctx, &bot.DeleteWebhookParams{}); err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}
	logger.Log.Info().Msg("Bot started polling")
	b.bot.Start(ctx)
	b.Wait()
	return nil
}

// RegisterWebhook points Telegram at url, signing deliveries with secret.
func (b *Bot) RegisterWebhook(ctx context.Context, url, secret string) error {
	if _, err := b.api.SetWebhook(ctx, &bot.SetWebhookParams{
		URL:         url,
		SecretToken: secret,
	}); err != nil {
		return fmt.Errorf("failed to set webhook: %w", err)
	}
	logger.Log.Info().Msg("Webhook registered")
	return nil
}

// Wait blocks until in-flight voice jobs finish.
func (b *Bot) Wait() {
	b.voiceWG.Wait()
}

// defaultHandler receives every polled update.
func (b *Bot) defaultHandler(ctx context.Context, tgBot *bot.Bot, update *tgmodels.Update) {
	b.handleUpdateCore(ctx, tgBot, update)
}

// HandleUpdate processes one update delivered by the webhook.
func (b *Bot) HandleUpdate(ctx context.Context, update *tgmodels.Update) {
	b.handleUpdateCore(ctx, b.api, update)
}
