package cli

import (
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/leapstack-labs/checkkey/internal/cli/config"
	"golang.org/x/term"
)

// NewLogger builds the diagnostics logger writing to w.
// Every record carries an invocation id.
func NewLogger(w io.Writer, settings *config.Settings) *slog.Logger {
	opts := &slog.HandlerOptions{Level: settings.Level()}

	var handler slog.Handler
	if useJSON(w, settings.LogFormat) {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler).With("invocation", uuid.NewString())
}

// useJSON resolves the log format. Auto means text on a terminal, JSON when
// stderr is redirected to a file or collector.
func useJSON(w io.Writer, format string) bool {
	switch format {
	case config.FormatJSON:
		return true
	case config.FormatText:
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return !term.IsTerminal(int(f.Fd())) //nolint:gosec // G115: fd fits in int
}
