package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/budgetly-bot/internal/budget"
	"gitlab.com/yelinaung/budgetly-bot/internal/expense"
	"gitlab.com/yelinaung/budgetly-bot/internal/logger"
	appmodels "gitlab.com/yelinaung/budgetly-bot/internal/models"
)

const msgAddUsage = "⚠️ Format: <code>/add &lt;amount&gt; &lt;description&gt;</code>\nExample: <code>/add 5 coffee</code>"

// handleAdd records an expense from "<amount> <description>".
func (b *Bot) handleAdd(ctx context.Context, tg TelegramAPI, chatID int64, args string) {
	rawAmount, rawDescription := expense.ParseAddArgs(args)

	receipt, err := b.deps.Expenses.AddExpense(ctx, expense.AccountRef{ChatID: chatID}, rawAmount, rawDescription, appmodels.SourceChat)
	if err != nil {
		b.replyAddError(ctx, tg, chatID, rawAmount, err)
		return
	}

	reply(ctx, tg, chatID, formatReceipt(receipt))
}

func (b *Bot) replyAddError(ctx context.Context, tg TelegramAPI, chatID int64, rawAmount string, err error) {
	switch {
	case errors.Is(err, expense.ErrNotLinked):
		reply(ctx, tg, chatID, msgNotLinked)
	case errors.Is(err, expense.ErrInvalidAmount) && rawAmount == "":
		reply(ctx, tg, chatID, msgAddUsage)
	case errors.Is(err, expense.ErrInvalidAmount):
		reply(ctx, tg, chatID, "⚠️ Invalid amount. Must be a number greater than 0 with at most 2 decimal places.")
	case errors.Is(err, expense.ErrAmountTooLarge):
		reply(ctx, tg, chatID, "⚠️ That amount is too large.")
	case errors.Is(err, expense.ErrInvalidDescription):
		reply(ctx, tg, chatID, "⚠️ Description cannot be empty.\n"+msgAddUsage)
	case errors.Is(err, expense.ErrDescriptionTooLong):
		reply(ctx, tg, chatID, fmt.Sprintf("⚠️ Description too long (max %d characters).", appmodels.MaxDescriptionLength))
	default:
		replyError(ctx, tg, chatID, err, "Failed to add expense")
	}
}

func formatReceipt(r *expense.Receipt) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "✅ Added: %s for \"%s\"\n📂 Category: %s",
		formatMoney(r.Currency, r.Amount),
		escapeHTML(r.Description),
		r.Category)

	// A zero month total means the summary was unavailable.
	if !r.MonthSpent.IsZero() {
		fmt.Fprintf(&sb, "\n📊 This month: %s of %s", formatMoney(r.Currency, r.MonthSpent), formatMoney(r.Currency, r.MonthlyBudget))
		if r.MonthRemaining.IsNegative() {
			fmt.Fprintf(&sb, " (%s over budget)", formatMoney(r.Currency, r.MonthRemaining.Abs()))
		} else {
			fmt.Fprintf(&sb, " (%s left)", formatMoney(r.Currency, r.MonthRemaining))
		}
	}
	return sb.String()
}

func (b *Bot) handleBudget(ctx context.Context, tg TelegramAPI, chatID int64) {
	st, err := b.deps.Budget.GetStatus(ctx, expense.AccountRef{ChatID: chatID}, budget.WindowMonth)
	if errors.Is(err, expense.ErrNotLinked) {
		reply(ctx, tg, chatID, msgNotLinked)
		return
	}
	if err != nil {
		replyError(ctx, tg, chatID, err, "Failed to get budget status")
		return
	}
	reply(ctx, tg, chatID, formatBudgetStatus(st))
}

func formatBudgetStatus(st *budget.Status) string {
	var sb strings.Builder
	sb.WriteString("📊 <b>Monthly Budget</b>\n\n")
	fmt.Fprintf(&sb, "Limit: %s\n", formatMoney(st.Currency, st.Budget))
	fmt.Fprintf(&sb, "Spent: %s (%s%%)\n", formatMoney(st.Currency, st.Spent), st.Percentage.StringFixed(1))
	if st.Remaining.IsNegative() {
		fmt.Fprintf(&sb, "Over budget by: %s\n", formatMoney(st.Currency, st.Remaining.Abs()))
	} else {
		fmt.Fprintf(&sb, "Remaining: %s\n", formatMoney(st.Currency, st.Remaining))
	}
	if st.Count > 0 {
		fmt.Fprintf(&sb, "Expenses: %d (avg %s)\n", st.Count, formatMoney(st.Currency, st.Average))
	}
	sb.WriteString("\n")

	switch st.Tier {
	case budget.TierCritical:
		sb.WriteString("🚨 You've used almost all of your budget this month.")
	case budget.TierWarning:
		sb.WriteString("⚠️ Careful, more than 70% of your budget is gone.")
	case budget.TierMidway:
		sb.WriteString("📈 You're past the halfway mark.")
	case budget.TierOnTrack:
		sb.WriteString("✅ You're on track.")
	}
	if st.DailyAllowance.IsPositive() {
		fmt.Fprintf(&sb, "\n💡 %s/day for the next %s.", formatMoney(st.Currency, st.DailyAllowance), pluralDays(st.DaysLeft))
	}
	return sb.String()
}

func (b *Bot) handleToday(ctx context.Context, tg TelegramAPI, chatID int64) {
	st, err := b.deps.Budget.GetStatus(ctx, expense.AccountRef{ChatID: chatID}, budget.WindowDay)
	if errors.Is(err, expense.ErrNotLinked) {
		reply(ctx, tg, chatID, msgNotLinked)
		return
	}
	if err != nil {
		replyError(ctx, tg, chatID, err, "Failed to get today's expenses")
		return
	}

	if len(st.Expenses) == 0 {
		reply(ctx, tg, chatID, "No expenses tracked today.")
		return
	}

	var sb strings.Builder
	sb.WriteString("📅 <b>Today's Expenses</b>\n\n")
	for _, e := range st.Expenses {
		fmt.Fprintf(&sb, "• %s - %s (%s)\n", formatMoney(st.Currency, e.Amount), escapeHTML(e.Description), e.Category)
	}
	fmt.Fprintf(&sb, "\nTotal: %s", formatMoney(st.Currency, st.Spent))
	reply(ctx, tg, chatID, sb.String())
}

// handleBreakdown sends this month's spending per category as a pie chart,
// falling back to text when the chart cannot be produced or sent.
func (b *Bot) handleBreakdown(ctx context.Context, tg TelegramAPI, chatID int64) {
	bd, err := b.deps.Budget.GetBreakdown(ctx, expense.AccountRef{ChatID: chatID})
	if errors.Is(err, expense.ErrNotLinked) {
		reply(ctx, tg, chatID, msgNotLinked)
		return
	}
	if err != nil {
		replyError(ctx, tg, chatID, err, "Failed to get category breakdown")
		return
	}

	if len(bd.Categories) == 0 {
		reply(ctx, tg, chatID, "No expenses this month yet.")
		return
	}

	caption := formatBreakdown(bd)

	chart, err := GenerateBreakdownChart(bd)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Failed to generate breakdown chart")
		reply(ctx, tg, chatID, caption)
		return
	}

	_, err = tg.SendPhoto(ctx, &bot.SendPhotoParams{
		ChatID: chatID,
		Photo: &models.InputFileUpload{
			Filename: generateChartFilename(bd.Month),
			Data:     bytes.NewReader(chart),
		},
		Caption:   caption,
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Failed to send breakdown chart")
		reply(ctx, tg, chatID, caption)
	}
}

func formatBreakdown(bd *budget.Breakdown) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📂 <b>%s by Category</b>\n\n", bd.Month.Format("January 2006"))
	for _, ct := range bd.Categories {
		share := decimal.Zero
		if bd.Total.IsPositive() {
			share = ct.Total.Div(bd.Total).Mul(decimal.NewFromInt(100)).Round(0)
		}
		fmt.Fprintf(&sb, "• %s: %s (%s%%)\n", ct.Category, formatMoney(bd.Currency, ct.Total), share.String())
	}
	fmt.Fprintf(&sb, "\nTotal: %s", formatMoney(bd.Currency, bd.Total))
	return sb.String()
}

// formatMoney renders an amount with its currency symbol, or the code for
// currencies without one.
func formatMoney(currency string, amount decimal.Decimal) string {
	symbol := appmodels.CurrencySymbol(currency)
	if symbol == currency {
		return currency + " " + amount.StringFixed(2)
	}
	return symbol + amount.StringFixed(2)
}

func pluralDays(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}
