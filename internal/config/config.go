// Copyright (c) 2025 VodaCare Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads and validates the support-chat configuration from
// ~/.vodacare/config.toml, with environment overrides for deployment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// =============================================================================
// TYPES
// =============================================================================

// Config is the root configuration.
type Config struct {
	// Provider is the carrier brand surfaced in prompts and greetings.
	Provider string `toml:"provider"`

	// Mode is the assistant mode: "open" or "strict".
	Mode string `toml:"mode"`

	Server   ServerConfig   `toml:"server"`
	LLM      LLMConfig      `toml:"llm"`
	Storage  StorageConfig  `toml:"storage"`
	Sessions SessionsConfig `toml:"sessions"`
	Client   ClientConfig   `toml:"client"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	// Addr is the listen address, e.g. "127.0.0.1:8090".
	Addr string `toml:"addr"`

	// AllowedOrigins for CORS; "*" allows any origin.
	AllowedOrigins []string `toml:"allowed_origins"`

	// RateLimitPerMin is the per-IP request budget per minute.
	RateLimitPerMin int `toml:"rate_limit_per_min"`

	// StreamTimeoutSecs bounds a single live-model stream.
	StreamTimeoutSecs int `toml:"stream_timeout_secs"`
}

// LLMConfig configures the optional live model. An empty APIKey keeps the
// server in rule-based mode.
type LLMConfig struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
}

// StorageConfig configures SQLite persistence. An empty Path disables the
// persistence endpoints' backing store.
type StorageConfig struct {
	Path string `toml:"path"`
}

// SessionsConfig configures in-memory session history.
type SessionsConfig struct {
	// TTLMinutes is how long an idle session survives before eviction.
	TTLMinutes int `toml:"ttl_minutes"`
}

// ClientConfig configures the terminal chat client.
type ClientConfig struct {
	ServerURL        string `toml:"server_url"`
	ParticipantID    string `toml:"participant_id"`
	ParticipantGroup string `toml:"participant_group"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Provider: "VodaCare",
		Mode:     "strict",
		Server: ServerConfig{
			Addr:              "127.0.0.1:8090",
			AllowedOrigins:    []string{"*"},
			RateLimitPerMin:   120,
			StreamTimeoutSecs: 45,
		},
		LLM: LLMConfig{
			Model: "gpt-4o-mini",
		},
		Storage: StorageConfig{
			Path: filepath.Join(configDir(), "chat.db"),
		},
		Sessions: SessionsConfig{
			TTLMinutes: 120,
		},
		Client: ClientConfig{
			ServerURL: "http://127.0.0.1:8090",
		},
	}
}

// fillDefaults replaces zero values with defaults after a partial file load.
func (c *Config) fillDefaults() {
	def := Default()
	if c.Provider == "" {
		c.Provider = def.Provider
	}
	if c.Mode == "" {
		c.Mode = def.Mode
	}
	if c.Server.Addr == "" {
		c.Server.Addr = def.Server.Addr
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = def.Server.AllowedOrigins
	}
	if c.Server.RateLimitPerMin <= 0 {
		c.Server.RateLimitPerMin = def.Server.RateLimitPerMin
	}
	if c.Server.StreamTimeoutSecs <= 0 {
		c.Server.StreamTimeoutSecs = def.Server.StreamTimeoutSecs
	}
	if c.LLM.Model == "" {
		c.LLM.Model = def.LLM.Model
	}
	if c.Sessions.TTLMinutes <= 0 {
		c.Sessions.TTLMinutes = def.Sessions.TTLMinutes
	}
	if c.Client.ServerURL == "" {
		c.Client.ServerURL = def.Client.ServerURL
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError describes one invalid field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Mode != "open" && c.Mode != "strict" {
		return &ValidationError{Field: "mode", Message: `must be "open" or "strict"`}
	}
	if c.Server.Addr == "" {
		return &ValidationError{Field: "server.addr", Message: "must not be empty"}
	}
	if c.Server.RateLimitPerMin < 1 {
		return &ValidationError{Field: "server.rate_limit_per_min", Message: "must be at least 1"}
	}
	if c.Server.StreamTimeoutSecs < 1 {
		return &ValidationError{Field: "server.stream_timeout_secs", Message: "must be at least 1"}
	}
	switch c.Client.ParticipantGroup {
	case "", "A", "B":
	default:
		return &ValidationError{Field: "client.participant_group", Message: `must be "A" or "B"`}
	}
	return nil
}

// =============================================================================
// LOADING
// =============================================================================

// configDir returns ~/.vodacare, falling back to a relative directory when
// the home directory cannot be resolved.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".vodacare"
	}
	return filepath.Join(home, ".vodacare")
}

// ConfigPath returns the default config file location.
func ConfigPath() string {
	return filepath.Join(configDir(), "config.toml")
}

// Load reads the default config file, applies defaults, environment
// overrides, and validation. A missing file is not an error: defaults apply.
func Load() (*Config, error) {
	return LoadFromPath(ConfigPath())
}

// LoadFromPath reads a specific config file.
func LoadFromPath(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Defaults only.
	default:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg.fillDefaults()
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides applies VODACARE_* environment variables on top of the
// loaded values. OPENAI_API_KEY is honored as a fallback for the LLM key.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("VODACARE_PROVIDER"); v != "" {
		c.Provider = v
	}
	if v := os.Getenv("VODACARE_MODE"); v != "" {
		c.Mode = v
	}
	if v := os.Getenv("VODACARE_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("VODACARE_ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = splitAndTrim(v)
	}
	if v := os.Getenv("VODACARE_RATE_LIMIT_PER_MIN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Server.RateLimitPerMin = n
		}
	}
	if v := os.Getenv("VODACARE_LLM_API_KEY"); v != "" {
		c.LLM.APIKey = v
	} else if v := os.Getenv("OPENAI_API_KEY"); v != "" && c.LLM.APIKey == "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("VODACARE_LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("VODACARE_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("VODACARE_DB_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("VODACARE_SERVER_URL"); v != "" {
		c.Client.ServerURL = v
	}
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// =============================================================================
// SAVING
// =============================================================================

// Save writes the configuration to the default path with owner-only
// permissions, since it may hold an API key.
func (c *Config) Save() error {
	return c.SaveToPath(ConfigPath())
}

// SaveToPath writes the configuration to a specific path.
func (c *Config) SaveToPath(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}

	var b strings.Builder
	b.WriteString("# VodaCare support-chat configuration\n\n")
	if err := toml.NewEncoder(&b).Encode(c); err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
