package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records application counters. A nil *Metrics records nothing.
type Metrics struct {
	updates       metric.Int64Counter
	expenses      metric.Int64Counter
	linkAttempts  metric.Int64Counter
	voiceDuration metric.Float64Histogram
}

// NewMetrics creates the application instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	updates, err := meter.Int64Counter("bot.updates",
		metric.WithDescription("Chat updates handled, by action"))
	if err != nil {
		return nil, fmt.Errorf("failed to create bot.updates counter: %w", err)
	}
	expenses, err := meter.Int64Counter("expense.created",
		metric.WithDescription("Expenses created, by source and category"))
	if err != nil {
		return nil, fmt.Errorf("failed to create expense.created counter: %w", err)
	}
	linkAttempts, err := meter.Int64Counter("linking.attempts",
		metric.WithDescription("Linking code consumption attempts, by outcome"))
	if err != nil {
		return nil, fmt.Errorf("failed to create linking.attempts counter: %w", err)
	}
	voiceDuration, err := meter.Float64Histogram("voice.duration",
		metric.WithDescription("Voice message processing time"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("failed to create voice.duration histogram: %w", err)
	}

	return &Metrics{
		updates:       updates,
		expenses:      expenses,
		linkAttempts:  linkAttempts,
		voiceDuration: voiceDuration,
	}, nil
}

// UpdateHandled counts one chat update routed to action.
func (m *Metrics) UpdateHandled(ctx context.Context, action string) {
	if m == nil {
		return
	}
	m.updates.Add(ctx, 1, metric.WithAttributes(attribute.String("action", action)))
}

// ExpenseCreated counts one persisted expense.
func (m *Metrics) ExpenseCreated(ctx context.Context, source, category string) {
	if m == nil {
		return
	}
	m.expenses.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", source),
		attribute.String("category", category),
	))
}

// LinkAttempt counts one linking code consumption with its outcome.
func (m *Metrics) LinkAttempt(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.linkAttempts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// VoiceProcessed records how long a voice job took.
func (m *Metrics) VoiceProcessed(ctx context.Context, d time.Duration, outcome string) {
	if m == nil {
		return
	}
	m.voiceDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("outcome", outcome)))
}
