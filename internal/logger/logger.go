// Package logger provides structured logging using zerolog.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Log is the global logger instance.
var Log zerolog.Logger

var output io.Writer = os.Stdout

func init() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	Log = newConsole(output)
}

func newConsole(w io.Writer) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).
		With().
		Timestamp().
		Caller().
		Logger()
}

func newJSON(w io.Writer) zerolog.Logger {
	return zerolog.New(w).
		With().
		Timestamp().
		Str("service", "budgetly-bot").
		Logger()
}

// SetLevel sets the global log level. Unknown levels fall back to info.
func SetLevel(level string) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace", "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// SetFormat switches between console and JSON output.
// Anything other than "json" uses the human readable console writer.
func SetFormat(format string) {
	if strings.EqualFold(format, "json") {
		Log = newJSON(output)
		return
	}
	Log = newConsole(output)
}

// SetOutput redirects the global logger, keeping the current format.
func SetOutput(w io.Writer, format string) {
	output = w
	SetFormat(format)
}
