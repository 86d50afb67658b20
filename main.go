// Package main is the entry point for the Budgetly Telegram bot.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"gitlab.com/yelinaung/budgetly-bot/internal/bot"
	"gitlab.com/yelinaung/budgetly-bot/internal/budget"
	"gitlab.com/yelinaung/budgetly-bot/internal/command"
	"gitlab.com/yelinaung/budgetly-bot/internal/config"
	"gitlab.com/yelinaung/budgetly-bot/internal/convstate"
	"gitlab.com/yelinaung/budgetly-bot/internal/credential"
	"gitlab.com/yelinaung/budgetly-bot/internal/database"
	"gitlab.com/yelinaung/budgetly-bot/internal/expense"
	"gitlab.com/yelinaung/budgetly-bot/internal/linking"
	"gitlab.com/yelinaung/budgetly-bot/internal/logger"
	"gitlab.com/yelinaung/budgetly-bot/internal/repository"
	"gitlab.com/yelinaung/budgetly-bot/internal/scheduler"
	"gitlab.com/yelinaung/budgetly-bot/internal/server"
	"gitlab.com/yelinaung/budgetly-bot/internal/telemetry"
	"gitlab.com/yelinaung/budgetly-bot/internal/voice"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("budgetly-bot %s (commit: %s, built: %s)\n", version, commit, date)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to load config")
	}

	logger.SetLevel(cfg.LogLevel)
	logger.SetFormat(cfg.LogFormat)
	logger.InitHashSalt()
	gin.SetMode(gin.ReleaseMode)

	providers, err := telemetry.Setup(ctx, cfg.OTelExporter, cfg.OTelServiceName, nil)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to set up telemetry")
	}
	defer func() {
		if err := providers.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Log.Warn().Err(err).Msg("Failed to flush telemetry")
		}
	}()

	metrics, err := telemetry.NewMetrics(providers.Meter)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to create metrics")
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool); err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	logger.Log.Info().Msg("Database initialized successfully")

	accounts := repository.NewAccountRepository(pool)
	expenses := repository.NewExpenseRepository(pool)
	loc := cfg.Location()

	var states interface {
		convstate.Store
		Sweep(ctx context.Context) (int64, error)
	}
	switch cfg.StateBackend {
	case config.StateBackendPostgres:
		states = convstate.NewPostgresStore(repository.NewStateRepository(pool), cfg.StateTTL, nil)
	default:
		states = convstate.NewMemoryStore(cfg.StateTTL, nil)
	}

	linkingService := linking.NewService(accounts, cfg.LinkCodeTTL, linking.WithMetrics(metrics))
	expenseService := expense.NewService(accounts, expenses,
		expense.WithMaxAmount(cfg.MaxExpenseAmount),
		expense.WithDefaultCurrency(cfg.DefaultCurrency),
		expense.WithLocation(loc),
		expense.WithMetrics(metrics),
	)

	telegramBot, err := bot.New(cfg.TelegramBotToken, bot.Deps{
		Router:           command.NewRouter(states, cfg.TelegramBotName),
		States:           states,
		Linking:          linkingService,
		Expenses:         expenseService,
		Budget:           budget.NewService(expenseService, expenses, loc, nil),
		VoiceTimeout:     cfg.VoiceTimeout,
		VoiceConcurrency: cfg.VoiceConcurrency,
		Metrics:          metrics,
		Location:         loc,
	})
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to create bot")
	}
	telegramBot.SetVoice(newVoicePipeline(ctx, cfg, telegramBot.API()))

	sweeper, err := scheduler.New(ctx, cfg.CodeSweepSchedule,
		scheduler.Job{Name: "expired_link_codes", Run: linkingService.SweepExpired},
		scheduler.Job{Name: "conversation_states", Run: states.Sweep},
	)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to create scheduler")
	}
	sweeper.Start()
	defer sweeper.Stop()

	opts := server.Options{
		BotUsername:      cfg.TelegramBotName,
		CORSAllowOrigins: cfg.CORSAllowOrigins,
		EnablePprof:      cfg.EnablePprof,
	}
	if cfg.DeliveryMode == config.DeliveryWebhook {
		opts.WebhookSecret = cfg.WebhookSecret
	}
	srv := server.New(opts, server.Deps{
		Updates:  telegramBot,
		Tokens:   credential.NewService(cfg.CredentialSecret, nil),
		Linking:  linkingService,
		Expenses: expenseService,
		DB:       pool,
	})

	if cfg.DeliveryMode == config.DeliveryWebhook {
		if err := telegramBot.RegisterWebhook(ctx, cfg.WebhookURL, cfg.WebhookSecret); err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to register webhook")
		}
		if err := srv.Run(ctx, cfg.HTTPAddr); err != nil {
			logger.Log.Error().Err(err).Msg("HTTP server stopped")
		}
		telegramBot.Wait()
		logger.Log.Info().Msg("Shutting down...")
		return
	}

	go func() {
		if err := srv.Run(ctx, cfg.HTTPAddr); err != nil {
			logger.Log.Error().Err(err).Msg("HTTP server stopped")
			stop()
		}
	}()

	if err := telegramBot.StartPolling(ctx); err != nil {
		logger.Log.Error().Err(err).Msg("Polling stopped")
	}
	logger.Log.Info().Msg("Shutting down...")
}

// newVoicePipeline picks Wit.ai when configured, then Gemini. Without either
// the pipeline reports itself unavailable.
func newVoicePipeline(ctx context.Context, cfg *config.Config, files voice.FileGetter) *voice.Pipeline {
	var transcriber voice.Transcriber
	switch {
	case cfg.WitAIToken != "":
		transcriber = voice.NewWitTranscriber(cfg.WitAIToken)
		logger.Log.Info().Msg("Voice transcription via Wit.ai")
	case cfg.GeminiAPIKey != "":
		gemini, err := voice.NewGeminiTranscriber(ctx, cfg.GeminiAPIKey)
		if err != nil {
			logger.Log.Warn().Err(err).Msg("Failed to create Gemini transcriber, voice disabled")
			break
		}
		transcriber = gemini
		logger.Log.Info().Msg("Voice transcription via Gemini")
	default:
		logger.Log.Info().Msg("No transcription provider configured, voice disabled")
	}
	return voice.NewPipeline(files, voice.FFmpeg{Path: cfg.FFmpegPath}, transcriber)
}
