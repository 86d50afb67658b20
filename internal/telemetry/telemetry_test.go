package telemetry

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestSetup(t *testing.T) {
	ctx := context.Background()

	t.Run("none keeps no-op providers", func(t *testing.T) {
		p, err := Setup(ctx, ExporterNone, "test", nil)
		require.NoError(t, err)
		require.NotNil(t, p.Tracer)
		require.NotNil(t, p.Meter)
		require.NoError(t, p.Shutdown(ctx))
	})

	t.Run("stdout writes spans on shutdown", func(t *testing.T) {
		var buf bytes.Buffer
		p, err := Setup(ctx, ExporterStdout, "budgetly-test", &buf)
		require.NoError(t, err)

		_, span := p.Tracer.Start(ctx, "unit-test-span")
		span.End()

		require.NoError(t, p.Shutdown(ctx))
		require.Contains(t, buf.String(), "unit-test-span")
	})

	t.Run("unknown exporter", func(t *testing.T) {
		_, err := Setup(ctx, "carrier-pigeon", "test", nil)
		require.ErrorContains(t, err, "unknown OTEL_EXPORTER")
	})
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func TestMetrics(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(provider.Meter("test"))
	require.NoError(t, err)

	m.UpdateHandled(ctx, "add")
	m.UpdateHandled(ctx, "add")
	m.ExpenseCreated(ctx, "chat", "Food")
	m.LinkAttempt(ctx, "success")
	m.VoiceProcessed(ctx, 1500*time.Millisecond, "ok")

	data := collect(t, reader)

	updates, ok := data["bot.updates"].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, updates.DataPoints, 1)
	require.Equal(t, int64(2), updates.DataPoints[0].Value)
	action, _ := updates.DataPoints[0].Attributes.Value(attribute.Key("action"))
	require.Equal(t, "add", action.AsString())

	require.Contains(t, data, "expense.created")
	require.Contains(t, data, "linking.attempts")

	hist, ok := data["voice.duration"].(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Equal(t, uint64(1), hist.DataPoints[0].Count)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	require.NotPanics(t, func() {
		m.UpdateHandled(context.Background(), "help")
		m.ExpenseCreated(context.Background(), "chat", "Food")
		m.LinkAttempt(context.Background(), "success")
		m.VoiceProcessed(context.Background(), time.Second, "ok")
	})
}
