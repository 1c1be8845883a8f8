// Package config loads server configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the top-level smartbudget.yaml configuration.
type Config struct {
	ListenAddr       string           `yaml:"listen_addr"`
	DatabasePath     string           `yaml:"database_path"`
	UploadDir        string           `yaml:"upload_dir"`
	CanonicalMapPath string           `yaml:"canonical_map_path,omitempty"`
	Jobs             JobsConfig       `yaml:"jobs"`
	Normalizer       NormalizerConfig `yaml:"normalizer"`
}

// JobsConfig controls the background worker.
type JobsConfig struct {
	PollIntervalSeconds int `yaml:"poll_interval_seconds"`
	JobTimeoutMinutes   int `yaml:"job_timeout_minutes"`
}

// NormalizerConfig controls merchant name normalization.
type NormalizerConfig struct {
	UseDatabase bool `yaml:"use_database"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		ListenAddr:   ":8080",
		DatabasePath: "data/smartbudget.db",
		UploadDir:    "data/uploads",
		Jobs: JobsConfig{
			PollIntervalSeconds: 2,
			JobTimeoutMinutes:   10,
		},
		Normalizer: NormalizerConfig{
			UseDatabase: true,
		},
	}
}

// Load reads the config file at path, falling back to defaults when
// the path is empty or the file does not exist. Environment variables
// override file values.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	applyEnv(cfg)

	if cfg.Jobs.PollIntervalSeconds <= 0 {
		cfg.Jobs.PollIntervalSeconds = 2
	}
	if cfg.Jobs.JobTimeoutMinutes <= 0 {
		cfg.Jobs.JobTimeoutMinutes = 10
	}
	return cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// PollInterval returns the worker poll interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Jobs.PollIntervalSeconds) * time.Second
}

// JobTimeout returns the per-job execution timeout.
func (c *Config) JobTimeout() time.Duration {
	return time.Duration(c.Jobs.JobTimeoutMinutes) * time.Minute
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("SMARTBUDGET_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("SMARTBUDGET_DB_PATH"); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv("SMARTBUDGET_UPLOAD_DIR"); v != "" {
		cfg.UploadDir = v
	}
	if v := os.Getenv("SMARTBUDGET_CANONICAL_MAP"); v != "" {
		cfg.CanonicalMapPath = v
	}
	if v := os.Getenv("SMARTBUDGET_POLL_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Jobs.PollIntervalSeconds = n
		}
	}
}
