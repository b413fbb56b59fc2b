package runner

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all batch-run configuration.
type Config struct {
	DBPath      string        `yaml:"db_path"`
	DataDir     string        `yaml:"data_dir"`
	Concurrency int           `yaml:"concurrency"`
	PacingDelay time.Duration `yaml:"pacing_delay"`
	MinTextLen  int           `yaml:"min_text_len"`
	Fetch       FetchConfig   `yaml:"fetch"`
}

// FetchConfig mirrors the fetcher knobs exposed through the config file.
type FetchConfig struct {
	Timeout    time.Duration `yaml:"timeout"`
	MaxBytes   int64         `yaml:"max_bytes"`
	MaxRetries int           `yaml:"max_retries"`
	UserAgent  string        `yaml:"user_agent"`
}

func (c *Config) defaults() {
	if c.DBPath == "" {
		c.DBPath = "moisson.db"
	}
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 5
	}
	if c.PacingDelay <= 0 {
		c.PacingDelay = 500 * time.Millisecond
	}
	if c.MinTextLen <= 0 {
		c.MinTextLen = 100
	}
}

// Default returns a Config with every field at its default.
func Default() *Config {
	cfg := &Config{}
	cfg.defaults()
	return cfg
}

// LoadConfigFile reads a YAML config file and applies defaults.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.defaults()
	return cfg, nil
}
