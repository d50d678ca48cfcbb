// Package logging builds the application logger and adapts raw process
// output into structured log records.
package logging

import (
	"io"
	"log/slog"
)

// New creates a text logger writing to w at the given level.
// The "error" key is standardised to "err".
func New(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == "error" {
				a.Key = "err"
			}
			return a
		},
	}))
}

// NewNop returns a logger that discards everything.
func NewNop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// LevelForVerbosity maps a -v count to a level: WARN by default,
// INFO for -v and DEBUG for -vv or more.
func LevelForVerbosity(verbose int) slog.Level {
	switch {
	case verbose >= 2:
		return slog.LevelDebug
	case verbose == 1:
		return slog.LevelInfo
	default:
		return slog.LevelWarn
	}
}
