// Package config provides settings management for the check-key CLI.
//
// These are the tool's own settings (logging and execution limits), not the
// configuration files that check-key extracts values from.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Settings holds all CLI settings.
type Settings struct {
	LogLevel  string        `koanf:"log_level"`
	LogFormat string        `koanf:"log_format"`
	Timeout   time.Duration `koanf:"timeout"`
	MaxSteps  uint64        `koanf:"max_steps"`
	Verbose   bool          `koanf:"verbose"`
}

// Default settings values.
const (
	DefaultLogLevel  = "warn"
	DefaultLogFormat = FormatAuto
	DefaultTimeout   = 10 * time.Second
	DefaultMaxSteps  = 0
)

// Log formats.
const (
	FormatAuto = "auto" // text on a terminal, json otherwise
	FormatText = "text"
	FormatJSON = "json"
)

// Defaults returns settings with every field at its default value.
func Defaults() *Settings {
	return &Settings{
		LogLevel:  DefaultLogLevel,
		LogFormat: DefaultLogFormat,
		Timeout:   DefaultTimeout,
		MaxSteps:  DefaultMaxSteps,
	}
}

// Level returns the slog level for the settings.
// Verbose forces debug regardless of LogLevel.
func (s *Settings) Level() slog.Level {
	if s.Verbose {
		return slog.LevelDebug
	}
	level, err := ParseLevel(s.LogLevel)
	if err != nil {
		return slog.LevelWarn
	}
	return level
}

// Validate checks if the settings are valid.
func (s *Settings) Validate() error {
	if _, err := ParseLevel(s.LogLevel); err != nil {
		return err
	}
	switch s.LogFormat {
	case FormatAuto, FormatText, FormatJSON:
	default:
		return fmt.Errorf("unknown log format %q (want auto, text or json)", s.LogFormat)
	}
	if s.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative: %s", s.Timeout)
	}
	return nil
}

// ParseLevel parses a level name such as "debug" or "WARN".
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return 0, fmt.Errorf("unknown log level %q: %w", name, err)
	}
	return level, nil
}
