//go:build ignore
// +build ignore

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/budgetly-bot/internal/bot"
	"gitlab.com/yelinaung/budgetly-bot/internal/budget"
	"gitlab.com/yelinaung/budgetly-bot/internal/models"
)

// Renders a sample /breakdown chart to breakdown.png for eyeballing chart changes.
func main() {
	bd := &budget.Breakdown{
		Currency: "GBP",
		Month:    time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
		Categories: []models.CategoryTotal{
			{Category: models.CategoryFood, Total: decimal.NewFromFloat(281.00), Count: 24},
			{Category: models.CategoryTransport, Total: decimal.NewFromFloat(60.00), Count: 8},
			{Category: models.CategoryEntertainment, Total: decimal.NewFromFloat(25.00), Count: 2},
			{Category: models.CategoryBills, Total: decimal.NewFromFloat(120.00), Count: 3},
			{Category: models.CategoryOther, Total: decimal.NewFromFloat(14.50), Count: 1},
		},
	}

	chartData, err := bot.GenerateBreakdownChart(bd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile("breakdown.png", chartData, 0600); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Chart saved to breakdown.png")
}
