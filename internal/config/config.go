// Package config handles reading screencheck.yaml and environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the top-level structure for screencheck.yaml.
type Config struct {
	Port          int             `yaml:"port"`
	StoreDir      string          `yaml:"store_dir"`
	StaticDir     string          `yaml:"static_dir"`
	PersistTickMS int             `yaml:"persist_tick_ms"`
	FrameEvery    int             `yaml:"frame_every"`
	SummaryPollMS int             `yaml:"summary_poll_ms"`
	Synthetic     SyntheticConfig `yaml:"synthetic"`
}

// SyntheticConfig describes the built-in test-pattern capture source.
type SyntheticConfig struct {
	Width     int     `yaml:"width"`
	Height    int     `yaml:"height"`
	FrameRate float64 `yaml:"frame_rate"`
	Surface   string  `yaml:"surface"`
	Label     string  `yaml:"label"`
}

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		Port:          8430,
		StoreDir:      "./screencheck-store",
		PersistTickMS: 1000,
		FrameEvery:    3,
		SummaryPollMS: 500,
		Synthetic: SyntheticConfig{
			Width:     1920,
			Height:    1080,
			FrameRate: 30,
			Surface:   "monitor",
			Label:     "Synthetic Screen",
		},
	}
}

// Load reads a YAML config file. A missing file yields the defaults;
// a malformed file is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overlays environment variables onto the config.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Port = n
		}
	}
	if v := os.Getenv("STORE_DIR"); v != "" {
		c.StoreDir = v
	}
	if v := os.Getenv("STATIC_DIR"); v != "" {
		c.StaticDir = v
	}
}
