package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8502, cfg.Port)
	assert.Equal(t, 0, cfg.RateLimit)
	assert.Equal(t, 20, cfg.RateBurst)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.UseRemote())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("API_PORT", "8600")
	t.Setenv("SUPABASE_URL", "https://example.supabase.co")
	t.Setenv("SUPABASE_ANON_KEY", "anon-key")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8600, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.UseRemote())
}

func TestLoadYAMLOverlay(t *testing.T) {
	t.Setenv("API_PORT", "8600")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 8700\nrate_limit: 50\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	// File values win over the environment.
	assert.Equal(t, 8700, cfg.Port)
	assert.Equal(t, 50, cfg.RateLimit)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadInvalidPort(t *testing.T) {
	t.Setenv("API_PORT", "99999")

	_, err := Load("")
	assert.Error(t, err)
}

func TestUseRemoteIgnoresWhitespace(t *testing.T) {
	cfg := &Config{SupabaseURL: "   ", SupabaseAnonKey: "key"}
	assert.False(t, cfg.UseRemote())

	cfg = &Config{SupabaseURL: "https://example.supabase.co", SupabaseAnonKey: "key"}
	assert.True(t, cfg.UseRemote())
}
