package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.pigeon/config.toml plus environment
// overrides. The backend URL and anon key identify the hosted service the
// client talks to; they carry no user credentials.
type Config struct {
	BackendURL     string `toml:"backend_url"`
	BackendKey     string `toml:"backend_key"`
	DefaultProfile string `toml:"default_profile"`
}

// Load reads config from the given path and applies environment overrides.
// A missing file is not an error as long as the environment supplies the
// backend coordinates.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyEnv()
	return &cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// Validate checks that the backend coordinates are present.
func (c *Config) Validate() error {
	if c.BackendURL == "" {
		return fmt.Errorf("backend_url is not set (config.toml or PIGEON_BACKEND_URL)")
	}
	if c.BackendKey == "" {
		return fmt.Errorf("backend_key is not set (config.toml or PIGEON_BACKEND_KEY)")
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PIGEON_BACKEND_URL"); v != "" {
		c.BackendURL = v
	}
	if v := os.Getenv("PIGEON_BACKEND_KEY"); v != "" {
		c.BackendKey = v
	}
	if v := os.Getenv("PIGEON_PROFILE"); v != "" {
		c.DefaultProfile = v
	}
}
