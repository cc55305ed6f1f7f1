// Package config loads service configuration from the environment with an
// optional YAML overlay.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"
)

// Config holds the runtime configuration for the history service.
type Config struct {
	// Port is the preferred listen port. When taken, the server probes
	// upward; 0 asks the OS for an ephemeral port.
	Port int `env:"API_PORT,default=8502" yaml:"port"`

	// SupabaseURL and SupabaseAnonKey select the remote backend. Both must
	// be set or the service falls back to in-memory storage.
	SupabaseURL     string `env:"SUPABASE_URL" yaml:"supabase_url"`
	SupabaseAnonKey string `env:"SUPABASE_ANON_KEY" yaml:"supabase_anon_key"`

	// RateLimit is requests per second per client; 0 disables limiting.
	RateLimit int `env:"RATE_LIMIT_RPS,default=0" yaml:"rate_limit"`
	RateBurst int `env:"RATE_LIMIT_BURST,default=20" yaml:"rate_burst"`

	// AllowedOrigins restricts CORS; empty means every origin.
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" yaml:"allowed_origins"`

	LogLevel string `env:"LOG_LEVEL,default=info" yaml:"log_level"`
}

// Load reads configuration from the environment. When path is non-empty the
// YAML file at path is applied on top of the environment values.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		// envdecode reports an error when no field is set at all; defaults
		// still apply, so only strict decode failures matter.
		if err != envdecode.ErrNoTargetFieldsAreSet {
			return nil, fmt.Errorf("failed to decode environment: %w", err)
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d", cfg.Port)
	}
	return &cfg, nil
}

// UseRemote reports whether both Supabase credentials are present, which
// selects the remote backend. The choice is made once at startup.
func (c *Config) UseRemote() bool {
	return strings.TrimSpace(c.SupabaseURL) != "" && strings.TrimSpace(c.SupabaseAnonKey) != ""
}
