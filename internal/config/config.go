// Package config assembles the runtime configuration from flags, an optional
// YAML file and HANZI_SRS_ environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/danieldreier/hanzi-srs/internal/srs"
	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "HANZI_SRS_"

// ConfigFlag names the flag that points at an optional config file.
const ConfigFlag = "config"

// Config is the complete runtime configuration.
type Config struct {
	Storage   StorageConfig       `koanf:"storage"`
	Lessons   LessonsConfig       `koanf:"lessons"`
	Scheduler srs.SchedulerConfig `koanf:"scheduler"`
	Log       LogConfig           `koanf:"log"`
}

// StorageConfig selects the deck store.
type StorageConfig struct {
	Driver string `koanf:"driver" validate:"oneof=json sqlite"`
	Path   string `koanf:"path" validate:"required"`
}

// LessonsConfig locates the lesson file.
type LessonsConfig struct {
	Path string `koanf:"path" validate:"required"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=console json"`
}

// RegisterFlags adds every configuration key to fs, with its default.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(ConfigFlag, "", "Path to a YAML config file")
	fs.String("storage.driver", "json", "Deck store backend: json or sqlite")
	fs.String("storage.path", "./decks.json", "Path to the deck store file")
	fs.String("lessons.path", "./lessons.yaml", "Path to the lesson file")
	fs.Int("scheduler.max_interval", srs.DefaultMaxInterval, "Longest review interval in days")
	fs.Float64("scheduler.ease_penalty", srs.DefaultEasePenalty, "Ease factor penalty for a failed review")
	fs.String("log.level", "info", "Log level: debug, info, warn or error")
	fs.String("log.format", "console", "Log format: console or json")
}

// Load merges the config file, the environment and fs, in increasing order of
// precedence for explicitly set flags. Flag defaults only fill keys nothing
// else provided.
func Load(fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path, _ := fs.GetString(ConfigFlag); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("error loading environment: %w", err)
	}

	if err := k.Load(posflag.Provider(fs, ".", k), nil); err != nil {
		return nil, fmt.Errorf("error loading flags: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cfg against its field constraints.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// envKey maps HANZI_SRS_SCHEDULER_MAX_INTERVAL to scheduler.max_interval.
// Only the first underscore separates the section from the key.
func envKey(s string) string {
	return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".", 1)
}
