package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// base is the process-wide root logger. Components derive their own
// logger from it via Component so every line carries a component field.
var base = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
	With().Timestamp().Logger()

// Config controls log level, destination directory, and rotation.
type Config struct {
	Level      string // trace, debug, info, warn, error
	LogDir     string // empty disables the file sink
	MaxSizeMB  int    // max size of a single log file before rotation
	MaxBackups int    // rotated files kept
	MaxAgeDays int    // retention in days
	Compress   bool
}

func DefaultConfig() Config {
	return Config{
		Level:      "info",
		LogDir:     "",
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 28,
		Compress:   true,
	}
}

// Init configures the root logger: a console writer always, plus a
// rotating file sink when LogDir is set.
func Init(cfg Config) error {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	writers := []io.Writer{
		zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339},
	}

	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
			return err
		}
		writers = append(writers, &lumberjack.Logger{
			Filename:   filepath.Join(cfg.LogDir, "lore-crawler.log"),
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		})
	}

	base = zerolog.New(io.MultiWriter(writers...)).
		Level(level).
		With().Timestamp().Logger()
	return nil
}

// Component returns a child logger tagged with the component name.
func Component(name string) zerolog.Logger {
	return base.With().Str("component", name).Logger()
}

// Nop returns a disabled logger for tests.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
