package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestSetLevel(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"trace", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"WARN", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{" error ", zerolog.ErrorLevel},
		{"unknown", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run("level "+tt.level, func(t *testing.T) {
			SetLevel(tt.level)
			require.Equal(t, tt.want, zerolog.GlobalLevel())
		})
	}

	// Reset to debug for other tests.
	SetLevel("debug")
}

func TestSetOutput(t *testing.T) {
	t.Cleanup(func() { SetOutput(os.Stdout, "console") })

	t.Run("json lines carry the service name", func(t *testing.T) {
		var buf bytes.Buffer
		SetOutput(&buf, "json")
		Log.Info().Str("chat_hash", "abc").Msg("json test message")

		var line map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		require.Equal(t, "budgetly-bot", line["service"])
		require.Equal(t, "json test message", line["message"])
		require.Equal(t, "abc", line["chat_hash"])
	})

	t.Run("console is not json", func(t *testing.T) {
		var buf bytes.Buffer
		SetOutput(&buf, "console")
		Log.Info().Int("count", 42).Msg("console test message")

		require.Contains(t, buf.String(), "console test message")
		require.False(t, json.Valid(buf.Bytes()))
	})
}
