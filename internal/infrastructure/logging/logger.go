package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nerrad567/vantage-sync/internal/infrastructure/config"
)

// ServiceName is attached to every log entry.
const ServiceName = "vantagesync"

// Fields are the attributes stamped on every entry of a process.
type Fields struct {
	Version string
	// Station is the configured station name. Several syncers often
	// share one log sink, one per console.
	Station string
}

// Logger is the process logger. Components receive a child from
// Component, so every entry names the station and the part of the sync
// pipeline that wrote it.
//
// Safe for concurrent use.
type Logger struct {
	*slog.Logger
}

// New builds the logger described by the logging section of config.yaml.
// Output "none" discards everything.
func New(cfg config.LoggingConfig, fields Fields) *Logger {
	return NewWithWriter(cfg, fields, outputFor(cfg.Output))
}

// NewWithWriter is New with an explicit destination; cfg.Output is ignored.
func NewWithWriter(cfg config.LoggingConfig, fields Fields, w io.Writer) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	version := fields.Version
	if version == "" {
		version = "dev"
	}
	attrs := []slog.Attr{
		slog.String("service", ServiceName),
		slog.String("version", version),
	}
	if fields.Station != "" {
		attrs = append(attrs, slog.String("station", fields.Station))
	}

	return &Logger{Logger: slog.New(handler.WithAttrs(attrs))}
}

func outputFor(name string) io.Writer {
	switch strings.ToLower(name) {
	case "stderr":
		return os.Stderr
	case "none":
		return io.Discard
	default:
		return os.Stdout
	}
}

// parseLevel maps a config level to slog; unknown values mean info.
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

// With returns a child logger with additional default attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Component returns a child logger tagged component=name.
//
//	storeLog := log.Component("store")
//	storeLog.Warn("write failed", "error", err) // component=store
func (l *Logger) Component(name string) *Logger {
	return l.With("component", name)
}

// Default is the bootstrap logger used until config.yaml is loaded:
// JSON on stdout at info level.
func Default() *Logger {
	return New(config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"}, Fields{})
}
