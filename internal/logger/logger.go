// Package logger configures the process-wide structured logger.
//
// Output goes to the console as JSON or text and, when a file is configured,
// to a size-rotated log file as well. Components ask for a module-scoped
// logger:
//
//	log := logger.Module("workflow")
//	log.Info("analysis finished", "label", label)
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls log level, format and optional file output.
type Config struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // "json" or "text"
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

var (
	mu       sync.RWMutex
	base     = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	rotating *lumberjack.Logger
)

// Init builds the global logger from cfg and installs it as the slog default.
func Init(cfg Config) *slog.Logger {
	mu.Lock()
	defer mu.Unlock()

	if rotating != nil {
		_ = rotating.Close()
		rotating = nil
	}

	var out io.Writer = os.Stderr
	if cfg.File != "" {
		rotating = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		out = io.MultiWriter(os.Stderr, rotating)
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	base = slog.New(handler)
	slog.SetDefault(base)
	return base
}

// Close flushes and closes the rotated log file, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if rotating == nil {
		return nil
	}
	err := rotating.Close()
	rotating = nil
	return err
}

// Global returns the process logger.
func Global() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// Module returns the process logger tagged with module=name.
func Module(name string) *slog.Logger {
	return Global().With("module", name)
}

// ParseLevel maps a config string to a slog level; unknown values are info.
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

// Discard returns a logger that drops everything, for tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
