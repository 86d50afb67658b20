package bot

import (
	"fmt"
	"time"

	"github.com/go-analyze/charts"
	"gitlab.com/yelinaung/budgetly-bot/internal/budget"
)

// GenerateBreakdownChart renders a month's category totals as a PNG pie chart.
func GenerateBreakdownChart(bd *budget.Breakdown) ([]byte, error) {
	if bd == nil || len(bd.Categories) == 0 {
		return nil, fmt.Errorf("no expenses to chart")
	}

	values := make([]float64, 0, len(bd.Categories))
	names := make([]string, 0, len(bd.Categories))
	for _, ct := range bd.Categories {
		if !ct.Total.IsPositive() {
			continue
		}
		values = append(values, ct.Total.InexactFloat64())
		names = append(names, string(ct.Category))
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("no expenses to chart")
	}

	p, err := charts.PieRender(
		values,
		charts.TitleOptionFunc(charts.TitleOption{
			Text: fmt.Sprintf("Spending by Category - %s", bd.Month.Format("Jan 2006")),
		}),
		charts.LegendLabelsOptionFunc(names),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create chart: %w", err)
	}

	buf, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}
	return buf, nil
}

// generateChartFilename creates a filename like "breakdown_2026-01.png".
func generateChartFilename(month time.Time) string {
	return fmt.Sprintf("breakdown_%s.png", month.Format("2006-01"))
}
