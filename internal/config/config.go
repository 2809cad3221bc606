// Package config loads server settings from defaults, an optional YAML file and the
// environment, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds server settings.
type Config struct {
	Port                  string        `yaml:"port"`
	DatasetsFile          string        `yaml:"datasets_file"`
	CacheDir              string        `yaml:"cache_dir"`
	RegistryPath          string        `yaml:"registry_path"`
	VariableDefaultsCSV   string        `yaml:"variable_defaults_csv"`
	MaxWidth              int           `yaml:"max_width"`
	MaxHeight             int           `yaml:"max_height"`
	RenderTimeout         time.Duration `yaml:"render_timeout"`
	TopologyMemoryEntries int           `yaml:"topology_memory_entries"`
	CORSAllowedOrigins    []string      `yaml:"cors_allowed_origins"`
	LogLevel              string        `yaml:"log_level"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Port:                  "8080",
		DatasetsFile:          "./data/datasets.yaml",
		CacheDir:              "./data/cache",
		RegistryPath:          "./data/registry.db",
		MaxWidth:              4096,
		MaxHeight:             4096,
		RenderTimeout:         30 * time.Second,
		TopologyMemoryEntries: 16,
		LogLevel:              "info",
	}
}

// Load reads settings. An empty path skips the file; a named file must exist.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) error {
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.DatasetsFile = getEnv("DATASETS_FILE", cfg.DatasetsFile)
	cfg.CacheDir = getEnv("CACHE_DIR", cfg.CacheDir)
	cfg.RegistryPath = getEnv("REGISTRY_PATH", cfg.RegistryPath)
	cfg.VariableDefaultsCSV = getEnv("VARIABLE_DEFAULTS_CSV", cfg.VariableDefaultsCSV)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	if v := getEnv("CORS_ALLOWED_ORIGINS", ""); v != "" {
		cfg.CORSAllowedOrigins = nil
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, origin)
			}
		}
	}

	for _, setting := range []struct {
		key string
		dst *int
	}{
		{"MAX_WIDTH", &cfg.MaxWidth},
		{"MAX_HEIGHT", &cfg.MaxHeight},
		{"TOPOLOGY_MEMORY_ENTRIES", &cfg.TopologyMemoryEntries},
	} {
		if v := getEnv(setting.key, ""); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s %q: %w", setting.key, v, err)
			}
			*setting.dst = n
		}
	}
	if v := getEnv("RENDER_TIMEOUT", ""); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid RENDER_TIMEOUT %q: %w", v, err)
		}
		cfg.RenderTimeout = d
	}
	return nil
}

// Validate checks that settings are usable.
func (c Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("port is required"))
	}
	if c.CacheDir == "" {
		errs = append(errs, errors.New("cache_dir is required"))
	}
	if c.RegistryPath == "" {
		errs = append(errs, errors.New("registry_path is required"))
	}
	if c.MaxWidth <= 0 || c.MaxHeight <= 0 {
		errs = append(errs, fmt.Errorf("max image size must be positive, got %dx%d", c.MaxWidth, c.MaxHeight))
	}
	if c.RenderTimeout <= 0 {
		errs = append(errs, fmt.Errorf("render_timeout must be positive, got %s", c.RenderTimeout))
	}
	if c.TopologyMemoryEntries <= 0 {
		errs = append(errs, fmt.Errorf("topology_memory_entries must be positive, got %d", c.TopologyMemoryEntries))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.VariableDefaultsCSV != "" {
		if _, err := os.Stat(c.VariableDefaultsCSV); errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("variable_defaults_csv %s does not exist", c.VariableDefaultsCSV))
		}
	}
	return errors.Join(errs...)
}

// SlogLevel converts LogLevel to a slog level.
func (c Config) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log_level %q", c.LogLevel)
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
