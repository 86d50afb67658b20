package bot

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"gitlab.com/yelinaung/budgetly-bot/internal/command"
	"gitlab.com/yelinaung/budgetly-bot/internal/logger"
)

const (
	msgGenericError = "❌ Something went wrong. Please try again."
	msgNotLinked    = "⚠️ Account not linked. Please use /link first."
	msgTypeHelp     = "Type /help for available commands."
)

// handleUpdateCore is the testable implementation of HandleUpdate.
func (b *Bot) handleUpdateCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if update == nil || update.Message == nil {
		return
	}
	msg := update.Message

	if msg.Voice != nil {
		b.handleVoiceCore(ctx, tg, update)
		return
	}
	if msg.Text == "" {
		return
	}

	logger.Log.Debug().
		Str("chat_hash", logger.HashChatID(msg.Chat.ID)).
		Str("text", logger.SanitizeText(msg.Text)).
		Msg("User input")

	b.dispatch(ctx, tg, msg, msg.Text)
}

// dispatch routes text from msg's chat and runs the resulting action.
func (b *Bot) dispatch(ctx context.Context, tg TelegramAPI, msg *models.Message, text string) {
	chatID := msg.Chat.ID
	action := b.deps.Router.Route(ctx, chatID, text)
	b.deps.Metrics.UpdateHandled(ctx, action.Kind.String())

	switch action.Kind {
	case command.KindStart:
		b.handleStart(ctx, tg, msg)
	case command.KindLink:
		b.handleLink(ctx, tg, msg, action.Arg)
	case command.KindAdd, command.KindImplicitAdd:
		b.handleAdd(ctx, tg, chatID, action.Arg)
	case command.KindBudget:
		b.handleBudget(ctx, tg, chatID)
	case command.KindToday:
		b.handleToday(ctx, tg, chatID)
	case command.KindBreakdown:
		b.handleBreakdown(ctx, tg, chatID)
	case command.KindDisconnect:
		b.handleDisconnect(ctx, tg, chatID)
	case command.KindHelp:
		b.handleHelp(ctx, tg, chatID)
	case command.KindUnrecognized:
		b.handleUnrecognized(ctx, tg, chatID, action.Suggestion)
	default:
		logger.Log.Warn().Str("action", action.Kind.String()).Msg("Unhandled action")
		b.handleUnrecognized(ctx, tg, chatID, "")
	}
}

func (b *Bot) handleHelp(ctx context.Context, tg TelegramAPI, chatID int64) {
	text := `🤖 <b>Budgetly Bot Commands</b>

<b>Expenses:</b>
• <code>/add &lt;amount&gt; &lt;description&gt;</code> - Add an expense
• Or just send <code>5.50 coffee</code>
• Or say it: <code>add five pounds for coffee</code>

<b>Budget:</b>
• /budget - Check this month's status
• /today - View today's expenses
• /breakdown - Spending by category

<b>Account:</b>
• <code>/link &lt;code&gt;</code> - Link your Budgetly account
• /unlink - Disconnect this chat
• /help - Show this help message`

	reply(ctx, tg, chatID, text)
}

func (b *Bot) handleUnrecognized(ctx context.Context, tg TelegramAPI, chatID int64, suggestion string) {
	if suggestion != "" {
		reply(ctx, tg, chatID, "❓ Unknown command. Did you mean "+escapeHTML(suggestion)+"?")
		return
	}
	reply(ctx, tg, chatID, msgTypeHelp)
}

// reply sends an HTML message and logs delivery failures.
func reply(ctx context.Context, tg TelegramAPI, chatID int64, text string) {
	_, err := tg.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		logger.Log.Error().Err(err).
			Str("chat_hash", logger.HashChatID(chatID)).
			Msg("Failed to send reply")
	}
}

// replyError logs an unexpected failure and answers with a generic message.
func replyError(ctx context.Context, tg TelegramAPI, chatID int64, err error, msg string) {
	logger.Log.Error().Err(err).
		Str("chat_hash", logger.HashChatID(chatID)).
		Msg(msg)
	reply(ctx, tg, chatID, msgGenericError)
}

func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

// displayName picks the name recorded on a chat binding: @username when
// set, else the sender's full name.
func displayName(msg *models.Message) string {
	if msg.From == nil {
		return strings.TrimSpace(msg.Chat.Title)
	}
	if msg.From.Username != "" {
		return "@" + msg.From.Username
	}
	return strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName)
}
