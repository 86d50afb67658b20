package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-telegram/bot/models"
	"gitlab.com/yelinaung/budgetly-bot/internal/logger"
	"gitlab.com/yelinaung/budgetly-bot/internal/voice"
)

const (
	msgVoiceFailed      = "❌ Sorry, I couldn't process your voice message. Please try again or type your command."
	msgVoiceUnavailable = "🎙️ Voice input is not configured. Please type your command instead, e.g. <code>/add 5 coffee</code>"
	msgVoiceBusy        = "⏳ I'm busy with other voice messages. Please try again in a moment."
)

// voiceDispatchTimeout bounds handling of a transcript once transcription is done.
const voiceDispatchTimeout = 10 * time.Second

// handleVoiceCore starts a voice job for the message. The job runs on its own
// goroutine with its own deadline, so a slow transcription never holds up
// other chats. Its transcript is routed like typed text.
func (b *Bot) handleVoiceCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	msg := update.Message
	chatID := msg.Chat.ID

	if b.deps.Voice == nil || !b.deps.Voice.Available() {
		reply(ctx, tg, chatID, msgVoiceUnavailable)
		return
	}

	if !b.voiceSem.TryAcquire(1) {
		logger.Log.Warn().Str("chat_hash", logger.HashChatID(chatID)).Msg("Voice job rejected, limit reached")
		reply(ctx, tg, chatID, msgVoiceBusy)
		return
	}

	logger.Log.Info().
		Str("chat_hash", logger.HashChatID(chatID)).
		Int("duration", msg.Voice.Duration).
		Msg("Received voice message")

	// Webhook request contexts end when the handler returns.
	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.deps.VoiceTimeout)

	b.voiceWG.Add(1)
	go func() {
		defer b.voiceWG.Done()
		defer b.voiceSem.Release(1)
		defer cancel()
		b.runVoiceJob(jobCtx, tg, msg)
	}()
}

func (b *Bot) runVoiceJob(ctx context.Context, tg TelegramAPI, msg *models.Message) {
	chatID := msg.Chat.ID
	start := time.Now()

	text, err := b.deps.Voice.Process(ctx, msg.Voice.FileID)
	b.deps.Metrics.VoiceProcessed(ctx, time.Since(start), voiceOutcome(err))
	if err != nil {
		logger.Log.Error().Err(err).
			Str("chat_hash", logger.HashChatID(chatID)).
			Str("outcome", voiceOutcome(err)).
			Msg("Failed to process voice message")
		// ctx may already be past its deadline.
		reply(context.WithoutCancel(ctx), tg, chatID, msgVoiceFailed)
		return
	}

	logger.Log.Info().
		Str("chat_hash", logger.HashChatID(chatID)).
		Str("text", logger.SanitizeText(text)).
		Msg("Voice message transcribed")

	// Transcription may have used up most of the job deadline.
	dispatchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), voiceDispatchTimeout)
	defer cancel()

	reply(dispatchCtx, tg, chatID, fmt.Sprintf("🎙️ Heard: \"%s\"", escapeHTML(text)))
	b.dispatch(dispatchCtx, tg, msg, text)
}

func voiceOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, voice.ErrTranscriptionTimeout):
		return "timeout"
	case errors.Is(err, voice.ErrEmptyTranscript):
		return "empty"
	case errors.Is(err, voice.ErrTranscriptionUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
