package observability

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger returns the process logger: JSON lines on stdout at the given
// level.
func NewLogger(level string) *slog.Logger {
	return NewLoggerTo(os.Stdout, level)
}

func NewLoggerTo(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})).
		With("service", "projectdesk-console")
}

// ParseLevel maps debug|info|warn|error to a slog level. Anything else is
// info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
