package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"PORT", "DATASETS_FILE", "CACHE_DIR", "REGISTRY_PATH", "VARIABLE_DEFAULTS_CSV", "MAX_WIDTH",
	"MAX_HEIGHT", "RENDER_TIMEOUT", "TOPOLOGY_MEMORY_ENTRIES", "CORS_ALLOWED_ORIGINS", "LOG_LEVEL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "9000"
cache_dir: /var/cache/wms
max_width: 2048
render_timeout: 5s
cors_allowed_origins: [https://a.example]
log_level: debug
`), 0o600))

	t.Setenv("PORT", "9100")
	t.Setenv("MAX_HEIGHT", "1024")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://b.example, https://c.example")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9100", cfg.Port)
	assert.Equal(t, "/var/cache/wms", cfg.CacheDir)
	assert.Equal(t, 2048, cfg.MaxWidth)
	assert.Equal(t, 1024, cfg.MaxHeight)
	assert.Equal(t, 5*time.Second, cfg.RenderTimeout)
	assert.Equal(t, []string{"https://b.example", "https://c.example"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, "./data/registry.db", cfg.RegistryPath)

	level, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", level.String())
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]map[string]string{
		"bad width":   {"MAX_WIDTH": "wide"},
		"zero height": {"MAX_HEIGHT": "0"},
		"bad timeout": {"RENDER_TIMEOUT": "soon"},
		"bad level":   {"LOG_LEVEL": "loud"},
		"missing csv": {"VARIABLE_DEFAULTS_CSV": "/nonexistent/defaults.csv"},
		"no memo":     {"TOPOLOGY_MEMORY_ENTRIES": "-1"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			assert.Error(t, err)
		})
	}

	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
