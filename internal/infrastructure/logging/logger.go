package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/jtjart/enocean-bridge/internal/infrastructure/config"
)

// Logger is a slog.Logger carrying the bridge's service identity on
// every record. The embedded methods satisfy the narrow Logger
// interfaces declared by the packages that log through it.
//
// Thread Safety: safe for concurrent use, as slog is.
type Logger struct {
	*slog.Logger
}

// New builds a logger from the logging section of the config. Format
// "text" is for terminals; anything else gets JSON. An unknown level
// falls back to info rather than failing startup over a typo.
func New(cfg config.LoggingConfig, version string) *Logger {
	return NewWriter(cfg, version, writerFor(cfg.Output))
}

// NewWriter is New with the destination injected. Tests use it to
// capture output.
func NewWriter(cfg config.LoggingConfig, version string, w io.Writer) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return &Logger{Logger: slog.New(handler).With(
		"service", "enocean-bridge",
		"version", version,
	)}
}

// Default is the startup logger used before the config file is read:
// JSON to stdout at info level.
func Default() *Logger {
	return NewWriter(config.LoggingConfig{}, "dev", os.Stdout)
}

// With returns a child logger with extra default attributes, typically
// a component name:
//
//	gwLog := log.With("component", "gateway", "gateway_id", id)
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

func writerFor(output string) io.Writer {
	if strings.EqualFold(output, "stderr") {
		return os.Stderr
	}
	return os.Stdout
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
