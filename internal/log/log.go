// Package log wires up the process logger: JSON slog output, secret
// redaction, optional size-based file rotation.
package log

import (
	"io"
	"log/slog"
	"os"

	"github.com/snipermjy/password-manager/internal/config"
)

// Setup builds the logger from config. The returned closer flushes the
// rotating writer when file logging is enabled.
func Setup(cfg config.LoggingConfig) (*slog.Logger, func() error, error) {
	var (
		writer io.Writer = os.Stderr
		closer           = func() error { return nil }
	)

	if cfg.File != "" {
		rotating, err := NewRotatingWriter(cfg)
		if err != nil {
			return nil, nil, err
		}
		writer = rotating
		closer = rotating.Close
	}

	handler := slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: parseLevel(cfg.Level)})
	return slog.New(NewRedactingHandler(handler)), closer, nil
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
