package logging

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"golang.org/x/term"
)

// New creates a configured application logger.
// It writes to Stderr (to separate from Stdout run reports/JSON-RPC).
// It standardizes common keys (e.g., "error" -> "err").
func New(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, handlerOptions(level)))
}

// NewJSON creates a JSON logger writing to w, for the long-running server.
func NewJSON(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, handlerOptions(level)))
}

// NewPretty creates a colored console logger. Colors are disabled when w is
// not a terminal.
func NewPretty(w io.Writer, level slog.Level) *slog.Logger {
	noColor := true
	if f, ok := w.(*os.File); ok {
		noColor = !term.IsTerminal(int(f.Fd()))
	}
	opts := handlerOptions(level)
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
		NoColor:    noColor,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			a = opts.ReplaceAttr(groups, a)
			if _, ok := a.Value.Any().(error); ok && a.Value.Kind() == slog.KindAny {
				return tint.Attr(9, a)
			}
			return a
		},
	}))
}

// NewWithFormat returns a logger on Stderr: JSON for "json", colored for
// "pretty" and plain text otherwise.
func NewWithFormat(format string, level slog.Level) *slog.Logger {
	switch format {
	case "json":
		return NewJSON(os.Stderr, level)
	case "pretty":
		return NewPretty(os.Stderr, level)
	default:
		return New(level)
	}
}

// NewNop returns a no-op logger.
func NewNop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func handlerOptions(level slog.Level) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Standardize 'error' key to 'err'
			if a.Key == "error" {
				a.Key = "err"
			}
			return a
		},
	}
}
