// Package config loads the buildboard configuration: a YAML file merged over
// DefaultConfig, then environment overrides.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/buildboard/analytics"
	"github.com/hazyhaar/buildboard/horosafe"
	"github.com/hazyhaar/buildboard/observability"
)

// Config holds the full buildboard configuration.
type Config struct {
	Listen    string                        `yaml:"listen"`
	DBPath    string                        `yaml:"db_path"`
	APIBase   string                        `yaml:"api_base"` // empty = same origin
	LogLevel  string                        `yaml:"log_level"`
	EnableMCP bool                          `yaml:"enable_mcp"`
	CORS      []string                      `yaml:"cors_origins"` // empty = any http(s) origin
	Analytics analytics.Config              `yaml:"analytics"`
	Retention observability.RetentionConfig `yaml:"retention"`
}

// DefaultConfig returns sane defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen:   ":8001",
		DBPath:   "data/buildboard.db",
		LogLevel: "info",
		Analytics: analytics.Config{
			Subject: analytics.DefaultSubject,
			Buffer:  256,
		},
		Retention: observability.RetentionConfig{
			EventLogsDays: 365,
			AuditDays:     90,
		},
	}
}

// Load returns DefaultConfig merged with the file at path (skipped when path
// is empty) and the environment, validated.
func Load(path string) (*Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.ApplyEnv(lookup)
	return cfg, cfg.Validate()
}

// ApplyEnv overrides fields from the environment. lookup is os.LookupEnv
// outside tests.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	for key, dst := range map[string]*string{
		"BUILDBOARD_LISTEN":   &c.Listen,
		"BUILDBOARD_DB":       &c.DBPath,
		"BUILDBOARD_API_BASE": &c.APIBase,
		"BUILDBOARD_NATS_URL": &c.Analytics.NATSURL,
		"LOG_LEVEL":           &c.LogLevel,
	} {
		if v, ok := lookup(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
}

// Validate checks that required fields are present and values are sane.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen is required")
	}
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if err := horosafe.ValidateBaseURL(c.APIBase); err != nil {
		return fmt.Errorf("api_base: %w", err)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.Analytics.NATSURL != "" && c.Analytics.Subject == "" {
		return fmt.Errorf("analytics.subject is required with analytics.nats_url")
	}
	if c.Analytics.Buffer < 0 {
		return fmt.Errorf("analytics.buffer must be >= 0")
	}
	if c.Retention.EventLogsDays < 0 || c.Retention.AuditDays < 0 {
		return fmt.Errorf("retention days must be >= 0")
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unsupported log_level %q (use debug, info, warn or error)", c.LogLevel)
}
