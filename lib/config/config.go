// Copyright 2026 The Tripchat Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for tripchat binaries.
//
// Configuration is loaded from a single YAML file specified by:
//   - TRIPCHAT_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. The config file may
// contain environment-specific sections (development, production) that
// override base values when the environment matches.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment identifies the deployment type.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Production is for released builds talking to the live backend.
	Production Environment = "production"
)

// Config is the master configuration for tripchat.
type Config struct {
	// Environment identifies the deployment type (development, production).
	Environment Environment `yaml:"environment"`

	// Server configures the chat backend endpoints.
	Server ServerConfig `yaml:"server"`

	// Chat configures the synchronization engine's tunables.
	Chat ChatConfig `yaml:"chat"`

	// Drafts configures local draft persistence.
	Drafts DraftsConfig `yaml:"drafts"`

	// Per-environment overrides, applied after the base config loads.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains the fields that can be overridden per
// environment.
type ConfigOverrides struct {
	Server *ServerConfig `yaml:"server,omitempty"`
	Chat   *ChatConfig   `yaml:"chat,omitempty"`
	Drafts *DraftsConfig `yaml:"drafts,omitempty"`
}

// ServerConfig configures the chat backend endpoints. The REST API and
// the event channel share one base URL; the channel URL is derived
// (ws:// scheme, /socket path) unless set explicitly.
type ServerConfig struct {
	// BaseURL is the backend base URL (e.g., "https://api.example.travel").
	// This is the single backend configuration value every component
	// consumes.
	BaseURL string `yaml:"base_url"`

	// ChannelURL overrides the derived websocket endpoint. Empty means
	// derive from BaseURL.
	ChannelURL string `yaml:"channel_url"`

	// Token is the bearer token for authenticated sessions. Empty for
	// anonymous support-widget use.
	Token string `yaml:"token"`
}

// ChatConfig holds the synchronization engine's tunables. Zero values
// are replaced by defaults at load time.
type ChatConfig struct {
	// HistoryPageSize is the number of messages fetched per history page.
	HistoryPageSize int `yaml:"history_page_size"`

	// TypingExpiry is how long a remote typing signal survives without
	// a refresh before it is cleared.
	TypingExpiry time.Duration `yaml:"typing_expiry"`

	// TypingDebounce is the quiet interval after which the composer
	// emits a typing-stop signal.
	TypingDebounce time.Duration `yaml:"typing_debounce"`

	// ReconnectAttempts is the channel's retry budget.
	ReconnectAttempts int `yaml:"reconnect_attempts"`

	// ReconnectBackoff is the fixed delay between reconnect attempts.
	ReconnectBackoff time.Duration `yaml:"reconnect_backoff"`
}

// DraftsConfig configures on-disk persistence of composer drafts.
type DraftsConfig struct {
	// Dir is where draft files are stored. Supports ${HOME} expansion.
	// Empty disables persistence (drafts are in-memory only).
	Dir string `yaml:"dir"`
}

// Default returns the default configuration. These exist so every
// field has a sensible zero-value base before the config file is
// merged in, not as a substitute for the file.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Environment: Development,
		Server: ServerConfig{
			BaseURL: "http://localhost:8080",
		},
		Chat: ChatConfig{
			HistoryPageSize:   50,
			TypingExpiry:      5 * time.Second,
			TypingDebounce:    time.Second,
			ReconnectAttempts: 5,
			ReconnectBackoff:  2 * time.Second,
		},
		Drafts: DraftsConfig{
			Dir: filepath.Join(homeDir, ".cache", "tripchat", "drafts"),
		},
	}
}

// Load loads configuration from the TRIPCHAT_CONFIG environment
// variable. If it is not set, Load fails; there is no discovery.
func Load() (*Config, error) {
	path := os.Getenv("TRIPCHAT_CONFIG")
	if path == "" {
		return nil, fmt.Errorf("config: TRIPCHAT_CONFIG environment variable not set; " +
			"set it to the path of your tripchat.yaml, or use the --config flag")
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file path. The file is
// the single source of truth; environment variables do not override
// values. The only expansion performed is ${HOME} in paths.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.applyDefaults()
	cfg.expandVariables()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvironmentOverrides merges the section matching c.Environment.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Production:
		overrides = c.Production
	}
	if overrides == nil {
		return
	}
	if overrides.Server != nil {
		mergeServer(&c.Server, overrides.Server)
	}
	if overrides.Chat != nil {
		mergeChat(&c.Chat, overrides.Chat)
	}
	if overrides.Drafts != nil && overrides.Drafts.Dir != "" {
		c.Drafts.Dir = overrides.Drafts.Dir
	}
}

func mergeServer(dst, src *ServerConfig) {
	if src.BaseURL != "" {
		dst.BaseURL = src.BaseURL
	}
	if src.ChannelURL != "" {
		dst.ChannelURL = src.ChannelURL
	}
	if src.Token != "" {
		dst.Token = src.Token
	}
}

func mergeChat(dst, src *ChatConfig) {
	if src.HistoryPageSize > 0 {
		dst.HistoryPageSize = src.HistoryPageSize
	}
	if src.TypingExpiry > 0 {
		dst.TypingExpiry = src.TypingExpiry
	}
	if src.TypingDebounce > 0 {
		dst.TypingDebounce = src.TypingDebounce
	}
	if src.ReconnectAttempts > 0 {
		dst.ReconnectAttempts = src.ReconnectAttempts
	}
	if src.ReconnectBackoff > 0 {
		dst.ReconnectBackoff = src.ReconnectBackoff
	}
}

// applyDefaults replaces zeroed tunables with the defaults, so a
// config file that sets only base_url still gets a working engine.
func (c *Config) applyDefaults() {
	defaults := Default()
	if c.Chat.HistoryPageSize <= 0 {
		c.Chat.HistoryPageSize = defaults.Chat.HistoryPageSize
	}
	if c.Chat.TypingExpiry <= 0 {
		c.Chat.TypingExpiry = defaults.Chat.TypingExpiry
	}
	if c.Chat.TypingDebounce <= 0 {
		c.Chat.TypingDebounce = defaults.Chat.TypingDebounce
	}
	if c.Chat.ReconnectAttempts <= 0 {
		c.Chat.ReconnectAttempts = defaults.Chat.ReconnectAttempts
	}
	if c.Chat.ReconnectBackoff <= 0 {
		c.Chat.ReconnectBackoff = defaults.Chat.ReconnectBackoff
	}
}

// expandVariables expands ${HOME} in path fields for portability.
func (c *Config) expandVariables() {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return
	}
	c.Drafts.Dir = strings.ReplaceAll(c.Drafts.Dir, "${HOME}", homeDir)
}

func (c *Config) validate() error {
	if c.Server.BaseURL == "" {
		return fmt.Errorf("config: server.base_url is required")
	}
	switch c.Environment {
	case Development, Production:
	default:
		return fmt.Errorf("config: unknown environment %q", c.Environment)
	}
	return nil
}

// ChannelURL returns the websocket endpoint: the explicit override if
// set, otherwise derived from BaseURL by swapping the scheme and
// appending /socket.
func (c *Config) ChannelURL() string {
	if c.Server.ChannelURL != "" {
		return c.Server.ChannelURL
	}
	derived := c.Server.BaseURL
	switch {
	case strings.HasPrefix(derived, "https://"):
		derived = "wss://" + strings.TrimPrefix(derived, "https://")
	case strings.HasPrefix(derived, "http://"):
		derived = "ws://" + strings.TrimPrefix(derived, "http://")
	}
	return strings.TrimRight(derived, "/") + "/socket"
}
