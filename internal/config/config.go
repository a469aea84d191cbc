// Package config loads StyleCopilot settings: the custom action/command
// templates plus provider, telemetry, and logging options.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/stylecopilot/stylecopilot/internal/action"
)

// Environment variable constants
const (
	EnvConfig = "STYLECOPILOT_CONFIG" // path to custom config file
)

// Config holds all configuration for stylecopilot.
type Config struct {
	// --- Templates ---
	CustomActions  []action.ActionTemplate  `mapstructure:"custom_actions" json:"custom_actions,omitempty"`
	CustomCommands []action.CommandTemplate `mapstructure:"custom_commands" json:"custom_commands,omitempty"`

	// --- Model selection ---
	Provider    string  `mapstructure:"provider" json:"provider"` // selector vendor
	Family      string  `mapstructure:"family" json:"family"`     // selector family
	MaxTokens   int     `mapstructure:"max_tokens" json:"max_tokens"`
	Temperature float64 `mapstructure:"temperature" json:"temperature"`

	// --- Provider credentials ---
	OpenAIAPIKey  string `mapstructure:"openai_api_key" json:"openai_api_key,omitempty"`
	OpenAIBaseURL string `mapstructure:"openai_base_url" json:"openai_base_url,omitempty"`

	// --- Behavior ---
	// FallbackEditOnStreamError appends the text of a mid-stream failure
	// into the live document so the interruption is visible.
	FallbackEditOnStreamError bool `mapstructure:"fallback_edit_on_stream_error" json:"fallback_edit_on_stream_error"`

	// --- Telemetry ---
	Telemetry TelemetryConfig `mapstructure:"telemetry" json:"telemetry,omitempty"`

	// --- Logging ---
	Log LogConfig `mapstructure:"log" json:"log,omitempty"`
}

// TelemetryConfig controls the usage/feedback sink.
type TelemetryConfig struct {
	Enabled  bool   `mapstructure:"enabled" json:"enabled"`
	Endpoint string `mapstructure:"endpoint" json:"endpoint,omitempty"`
}

// LogConfig controls the logrus setup.
type LogConfig struct {
	Level      string `mapstructure:"level" json:"level,omitempty"` // DEBUG | INFO | WARN | ERROR
	File       string `mapstructure:"file" json:"file,omitempty"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" json:"max_size_mb,omitempty"`
	MaxBackups int    `mapstructure:"max_backups" json:"max_backups,omitempty"`
}

// Load loads configuration with precedence:
// defaults → ~/.stylecopilot → project .stylecopilot.{yaml,json} → env → explicit path.
func Load(explicitPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("provider", "copilot")
	v.SetDefault("family", "gpt-4o")
	v.SetDefault("max_tokens", 0)
	v.SetDefault("temperature", 0.0)
	v.SetDefault("fallback_edit_on_stream_error", true)
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("log.level", "WARN")

	if explicitPath == "" {
		explicitPath = os.Getenv(EnvConfig)
	}

	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".stylecopilot"))
		}
		v.AddConfigPath(".")
		v.SetConfigName(".stylecopilot")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("STYLECOPILOT")
	v.AutomaticEnv()
	_ = v.BindEnv("openai_api_key", "OPENAI_API_KEY")
	_ = v.BindEnv("openai_base_url", "OPENAI_BASE_URL")

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; a malformed one is not,
		// discovered or not: silently falling back to defaults would
		// wipe the user's custom actions without a diagnostic.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the registries cannot serve.
func (c *Config) Validate() error {
	seen := make(map[string]bool)
	for _, a := range c.CustomActions {
		if a.ID == "" {
			return fmt.Errorf("custom action with empty id")
		}
		if seen[a.ID] {
			return fmt.Errorf("duplicate custom action id %q", a.ID)
		}
		seen[a.ID] = true
	}

	seen = make(map[string]bool)
	for _, cmd := range c.CustomCommands {
		if cmd.ID == "" {
			return fmt.Errorf("custom command with empty id")
		}
		if seen[cmd.ID] {
			return fmt.Errorf("duplicate custom command id %q", cmd.ID)
		}
		seen[cmd.ID] = true
	}
	return nil
}

// Registry builds the immutable template registry for this session.
func (c *Config) Registry() *action.Registry {
	return action.NewRegistry(c.CustomActions, c.CustomCommands)
}
