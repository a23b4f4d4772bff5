package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps zerolog.Logger with scheduler-specific context helpers
type Logger struct {
	zerolog.Logger
}

// Config holds logger configuration
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json or console
	Output string // stdout or file path
}

// New creates a new logger with the given configuration.
// File outputs are rotated by lumberjack.
func New(cfg Config) *Logger {
	var output io.Writer = os.Stdout

	if cfg.Output != "" && cfg.Output != "stdout" {
		output = &lumberjack.Logger{
			Filename:   cfg.Output,
			MaxSize:    50, // MB
			MaxBackups: 7,
			MaxAge:     14, // days
			Compress:   true,
		}
	}

	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	logger := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Caller().
		Logger()

	return &Logger{Logger: logger}
}

// Default creates a default console logger
func Default() *Logger {
	return New(Config{
		Level:  "info",
		Format: "console",
		Output: "stdout",
	})
}

// Nop returns a logger that discards everything (tests)
func Nop() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}

// WithComponent adds a component field to the logger
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger: l.With().Str("component", component).Logger(),
	}
}

// WithSource adds source kind/name fields (for source providers)
func (l *Logger) WithSource(sourceKind, sourceName string) *Logger {
	return &Logger{
		Logger: l.With().
			Str("source_kind", sourceKind).
			Str("source_name", sourceName).
			Logger(),
	}
}

// WithSite adds a site (tenant) ID to the logger
func (l *Logger) WithSite(siteID string) *Logger {
	return &Logger{
		Logger: l.With().Str("site_id", siteID).Logger(),
	}
}

// WithChannel adds an automation channel to the logger
func (l *Logger) WithChannel(channel string) *Logger {
	return &Logger{
		Logger: l.With().Str("channel", channel).Logger(),
	}
}
