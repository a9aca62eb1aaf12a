package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nerrad567/hotas-relay-core/internal/infrastructure/config"
)

// serviceName tags every log line so the relay's output is filterable
// when it shares a broker host with the polling and driver agents.
const serviceName = "hotasrelay"

// Logger wraps slog.Logger. All methods are safe for concurrent use;
// the tick loop, MQTT callbacks, and HTTP handlers share one instance.
type Logger struct {
	*slog.Logger
}

// New builds a Logger from the loaded configuration.
//
// Format selects the handler (json unless "text"), Output selects the
// destination (stdout unless "stderr"), and Level filters records.
// Every record carries the service name and build version.
//
// Parameters:
//   - cfg: Logging section of config.yaml
//   - version: Build version for the default attrs
//
// Returns:
//   - *Logger: Configured logger ready for use
func New(cfg config.LoggingConfig, version string) *Logger {
	handler := newHandler(cfg.Format, outputWriter(cfg.Output), parseLevel(cfg.Level))

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", serviceName),
		slog.String("version", version),
	})

	return &Logger{Logger: slog.New(handler)}
}

// outputWriter maps the configured destination name to a writer.
func outputWriter(name string) io.Writer {
	if strings.EqualFold(name, "stderr") {
		return os.Stderr
	}
	return os.Stdout
}

// newHandler picks the slog handler for the configured format. Text is
// for development consoles; anything else gets JSON for log shippers.
func newHandler(format string, w io.Writer, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "text") {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

// parseLevel converts a configured level string to slog.Level.
// Unrecognised or empty values fall back to info.
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

// With returns a child Logger carrying additional default attributes.
//
// Example:
//
//	tickLog := logger.With("component", "runtime")
//	tickLog.Info("tick loop started", "rate_hz", 250)
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Default is the bootstrap logger used before config is loaded: JSON to
// stdout at info level, version "dev".
func Default() *Logger {
	return New(config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"}, "dev")
}
