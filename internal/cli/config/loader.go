package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix is the prefix for settings environment variables.
const EnvPrefix = "CHECKKEY_"

// settingsFileName is looked up in the user config directory.
const settingsFileName = "settings.yaml"

// appDirName is the directory under the user config directory.
const appDirName = "check-key"

// loggerKey is used to store the logger in context.
type loggerKey struct{}

// DefaultSettingsFile returns the settings path under the user config
// directory, or "" if the directory cannot be determined.
func DefaultSettingsFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, appDirName, settingsFileName)
}

// findSettingsFile finds the settings file to use.
// Priority: explicit path > default file if it exists.
func findSettingsFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if def := DefaultSettingsFile(); def != "" {
		if _, err := os.Stat(def); err == nil {
			return def
		}
	}
	return ""
}

// Load loads settings from defaults, a settings file, environment variables,
// and flags.
// Precedence (highest to lowest): flags > env vars > settings file > defaults
//
// The returned string is the settings file that was read, if any.
func Load(settingsFile string, flags *pflag.FlagSet) (*Settings, string, error) {
	k := koanf.New(".")

	// 1. Defaults
	def := Defaults()
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"log_level":  def.LogLevel,
		"log_format": def.LogFormat,
		"timeout":    def.Timeout.String(),
		"max_steps":  def.MaxSteps,
		"verbose":    false,
	}, "."), nil); err != nil {
		return nil, "", fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Settings file
	used := findSettingsFile(settingsFile)
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, used, fmt.Errorf("error reading settings file %s: %w", used, err)
		}
	}

	// 3. Environment variables (CHECKKEY_ prefix)
	// Transform: CHECKKEY_LOG_LEVEL -> log_level
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, used, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags (only those explicitly set)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed || f.Name == "settings" {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, used, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var s Settings
	if err := k.Unmarshal("", &s); err != nil {
		return nil, used, fmt.Errorf("unable to decode settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, used, fmt.Errorf("invalid settings: %w", err)
	}

	return &s, used, nil
}

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	// Return discard logger as safe fallback
	return slog.New(slog.DiscardHandler)
}
