// Package logging builds the slog logger shared by both binaries.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config describes log output
type Config struct {
	// Level is debug, info, warn or error
	Level string `mapstructure:"level"`
	// Format is text or json
	Format string `mapstructure:"format"`
	// File enables a rotated log file instead of the fallback writer
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// Validate checks level and format
func (c Config) Validate() error {
	if _, err := parseLevel(c.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Format) {
	case "", "text", "json":
		return nil
	default:
		return fmt.Errorf("unknown log format %q (want text or json)", c.Format)
	}
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log level %q: %w", s, err)
	}
	return level, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New creates a logger writing to the rotated file from cfg, or to fallback
// when no file is configured. The returned closer flushes the file.
func New(cfg Config, fallback io.Writer) (*slog.Logger, io.Closer, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	var (
		out    = fallback
		closer io.Closer = nopCloser{}
	)
	if cfg.File != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		out = file
		closer = file
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(out, opts)
	case "", "text":
		handler = slog.NewTextHandler(out, opts)
	default:
		return nil, nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	return slog.New(handler), closer, nil
}
