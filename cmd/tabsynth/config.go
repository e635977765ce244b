package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
)

// Config holds the CLI configuration: where the platform lives, how to
// authenticate, and where local state goes.
type Config struct {
	BaseURL         string `json:"base_url"`
	APIKey          string `json:"api_key"`
	CacheDBPath     string `json:"cache_db_path"`
	PollIntervalSec int    `json:"poll_interval_sec"`
	LogLevel        string `json:"log_level"`
}

// DefaultConfig creates a configuration with default values. The API key is
// deliberately left empty; it comes from the config file or TABSYNTH_API_KEY.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:         "https://app.tabsynth.io",
		APIKey:          "",
		CacheDBPath:     filepath.Join(configDir(), ".tabsynth_cache.db"),
		PollIntervalSec: 2,
		LogLevel:        "info",
	}
}

// configDir returns the directory for CLI state, preferring the user's home
// directory and falling back to the working directory.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

// defaultConfigPath is where the CLI looks for its config file unless
// --config-file is given.
func defaultConfigPath() string {
	return filepath.Join(configDir(), ".tabsynth.json")
}

// loadConfig reads the configuration from a JSON file at the given path. If
// the file doesn't exist, it creates one with default values. The API key
// may always be overridden through the TABSYNTH_API_KEY environment
// variable.
func loadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	file, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			var data []byte
			data, err = json.MarshalIndent(config, "", "  ")
			if err != nil {
				return nil, fmt.Errorf("failed to marshal default config: %w", err)
			}
			if err = atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
				// Log a warning instead of failing, as the CLI can still run with defaults.
				fmt.Printf("warning: failed to write default config file: %v\n", err)
			}
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if err = json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if key := os.Getenv("TABSYNTH_API_KEY"); key != "" {
		config.APIKey = key
	}
	return config, nil
}

// parseLogLevel maps the config's log level string onto a slog.Level,
// defaulting to info.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
