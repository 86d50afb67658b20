package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-telegram/bot/models"
	"gitlab.com/yelinaung/budgetly-bot/internal/convstate"
	"gitlab.com/yelinaung/budgetly-bot/internal/expense"
	"gitlab.com/yelinaung/budgetly-bot/internal/linking"
	"gitlab.com/yelinaung/budgetly-bot/internal/logger"
)

const msgLinkInstructions = `Welcome to Budgetly! 👋

To start tracking expenses, please link your account:
1. Log in to the web app
2. Go to Profile → Link Telegram
3. Get your 6-character code
4. Send it here, or type <code>/link &lt;your-code&gt;</code>`

// handleStart greets linked chats and puts unlinked ones in the awaiting-code state.
func (b *Bot) handleStart(ctx context.Context, tg TelegramAPI, msg *models.Message) {
	chatID := msg.Chat.ID

	account, err := b.deps.Expenses.ResolveAccount(ctx, expense.AccountRef{ChatID: chatID})
	switch {
	case errors.Is(err, expense.ErrNotLinked):
		if err := b.deps.States.Set(ctx, chatID, convstate.StateAwaitingCode); err != nil {
			logger.Log.Warn().Err(err).Str("chat_hash", logger.HashChatID(chatID)).Msg("Failed to set conversation state")
		}
		reply(ctx, tg, chatID, msgLinkInstructions)
		return
	case err != nil:
		replyError(ctx, tg, chatID, err, "Failed to resolve account for /start")
		return
	}

	b.clearState(ctx, chatID)
	reply(ctx, tg, chatID, fmt.Sprintf(`👋 Welcome back%s! 🚀

Type <code>/add &lt;amount&gt; &lt;description&gt;</code> to track an expense.
Type /budget to see your status.`, formatGreeting(account.Name)))
}

// handleLink consumes a linking code for the sender's chat. A rejected code
// leaves the conversation state untouched.
func (b *Bot) handleLink(ctx context.Context, tg TelegramAPI, msg *models.Message, code string) {
	chatID := msg.Chat.ID
	if code == "" {
		reply(ctx, tg, chatID, "Please provide the code. Example: <code>/link ABC123</code>")
		return
	}

	account, err := b.deps.Linking.ConsumeCode(ctx, code, chatID, displayName(msg))
	switch {
	case errors.Is(err, linking.ErrInvalidFormat):
		reply(ctx, tg, chatID, "❌ Codes are 6 letters or digits. Example: <code>/link ABC123</code>")
		return
	case errors.Is(err, linking.ErrInvalidOrExpired):
		reply(ctx, tg, chatID, "❌ Invalid or expired code. Please generate a new one on the web app.")
		return
	case errors.Is(err, linking.ErrAlreadyLinked):
		reply(ctx, tg, chatID, "⚠️ This Telegram account is already linked to another Budgetly account. Use /unlink first.")
		return
	case err != nil:
		replyError(ctx, tg, chatID, err, "Failed to consume linking code")
		return
	}

	b.clearState(ctx, chatID)

	name := "your account"
	if account.Name != "" {
		name = escapeHTML(account.Name)
	}
	reply(ctx, tg, chatID, fmt.Sprintf("✅ Successfully linked to %s! You can now start tracking expenses.", name))
}

func (b *Bot) handleDisconnect(ctx context.Context, tg TelegramAPI, chatID int64) {
	unbound, err := b.deps.Linking.DisconnectChat(ctx, chatID)
	if err != nil {
		replyError(ctx, tg, chatID, err, "Failed to disconnect chat")
		return
	}
	b.clearState(ctx, chatID)

	if !unbound {
		reply(ctx, tg, chatID, "This chat isn't linked to any account.")
		return
	}
	logger.Log.Info().Str("chat_hash", logger.HashChatID(chatID)).Msg("Chat disconnected")
	reply(ctx, tg, chatID, "👋 Disconnected. This chat will no longer record expenses.")
}

// clearState returns the chat to idle. A failure is logged and otherwise
// ignored; the state expires on its own.
func (b *Bot) clearState(ctx context.Context, chatID int64) {
	if err := b.deps.States.Delete(ctx, chatID); err != nil {
		logger.Log.Warn().Err(err).Str("chat_hash", logger.HashChatID(chatID)).Msg("Failed to clear conversation state")
	}
}

// formatGreeting returns a greeting suffix with the user's name.
func formatGreeting(name string) string {
	if name == "" {
		return ""
	}
	return ", " + escapeHTML(name)
}
