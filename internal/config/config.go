// Package config loads whiskeybar configuration in layers:
//
//  1. Defaults: built into defaultConfig
//  2. Config file: optional YAML, from $WHISKEYBAR_CONFIG or ./whiskeybar.yaml
//  3. Environment: WHISKEYBAR_ prefixed variables, "__" separating sections
//     (WHISKEYBAR_SEARCH__TIER_TIMEOUT=500ms sets search.tier_timeout)
//
// A .env file in the working directory is read into the environment first.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "WHISKEYBAR_"

	// ConfigPathEnvVar names the config file to load.
	ConfigPathEnvVar = EnvPrefix + "CONFIG"

	// DefaultConfigPath is used when ConfigPathEnvVar is unset.
	DefaultConfigPath = "whiskeybar.yaml"
)

// Config is the full application configuration.
type Config struct {
	Store   StoreConfig   `koanf:"store"`
	Search  SearchConfig  `koanf:"search"`
	Ranking RankingConfig `koanf:"ranking"`
	Breaker BreakerConfig `koanf:"breaker"`
	Server  ServerConfig  `koanf:"server"`
	Log     LogConfig     `koanf:"log"`
	Watch   WatchConfig   `koanf:"watch"`
}

// StoreConfig locates the bbolt database.
type StoreConfig struct {
	Path        string        `koanf:"path" validate:"required"`
	OpenTimeout time.Duration `koanf:"open_timeout" validate:"gt=0"`
}

// SearchConfig tunes the search engine.
type SearchConfig struct {
	TierTimeout time.Duration `koanf:"tier_timeout" validate:"gte=0"`
}

// RankingConfig tunes the ranking engine.
type RankingConfig struct {
	CallTimeout time.Duration `koanf:"call_timeout" validate:"gte=0"`
}

// BreakerConfig tunes the circuit breaker in front of the store.
type BreakerConfig struct {
	Enabled          bool          `koanf:"enabled"`
	MaxRequests      uint32        `koanf:"max_requests" validate:"min=1"`
	Interval         time.Duration `koanf:"interval" validate:"gte=0"`
	Timeout          time.Duration `koanf:"timeout" validate:"gt=0"`
	FailureThreshold uint32        `koanf:"failure_threshold" validate:"min=1"`
	CallTimeout      time.Duration `koanf:"call_timeout" validate:"gte=0"`
}

// ServerConfig configures the HTTP adapter.
type ServerConfig struct {
	Addr            string        `koanf:"addr" validate:"required"`
	AllowedOrigins  []string      `koanf:"allowed_origins" validate:"dive,url"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// LogConfig configures the global logger.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// WatchConfig configures seed file watching.
type WatchConfig struct {
	Debounce time.Duration `koanf:"debounce" validate:"gte=0"`
}

func defaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Path:        "whiskeybar.db",
			OpenTimeout: time.Second,
		},
		Search: SearchConfig{
			TierTimeout: 2 * time.Second,
		},
		Ranking: RankingConfig{
			CallTimeout: 5 * time.Second,
		},
		Breaker: BreakerConfig{
			Enabled:          true,
			MaxRequests:      3,
			Interval:         time.Minute,
			Timeout:          30 * time.Second,
			FailureThreshold: 5,
			CallTimeout:      5 * time.Second,
		},
		Server: ServerConfig{
			Addr: ":8080",
			AllowedOrigins: []string{
				"https://whiskeybar.site",
				"https://dev.whiskeybar.site",
				"http://localhost:3000",
			},
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Watch: WatchConfig{
			Debounce: 200 * time.Millisecond,
		},
	}
}

// Default returns the built-in configuration without reading files or the
// environment.
func Default() *Config {
	return defaultConfig()
}

// Load builds the configuration from defaults, the optional config file and
// the environment, then validates it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks every field constraint.
func (c *Config) Validate() error {
	return validator.New(validator.WithRequiredStructEnabled()).Struct(c)
}

// findConfigFile returns the config file to load, or "" when none exists.
// An explicitly configured path that does not exist is still returned so
// the load fails loudly.
func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		return p
	}
	if _, err := os.Stat(DefaultConfigPath); err == nil {
		return DefaultConfigPath
	}
	return ""
}

// envTransformFunc maps WHISKEYBAR_SEARCH__TIER_TIMEOUT to search.tier_timeout.
// Returning "" drops the variable.
func envTransformFunc(key string) string {
	if key == ConfigPathEnvVar {
		return ""
	}
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

// sliceConfigPaths are parsed from comma-separated strings when they come
// from the environment.
var sliceConfigPaths = []string{
	"server.allowed_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}
