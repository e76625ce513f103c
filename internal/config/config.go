// Package config handles reading and writing .sitewright/config.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level structure for .sitewright/config.yaml.
type Config struct {
	Version   int             `yaml:"version"`
	Endpoints EndpointsConfig `yaml:"endpoints"`
	Log       LogConfig       `yaml:"log"`
	History   HistoryConfig   `yaml:"history"`
}

// EndpointsConfig holds the backend addresses. Both can be overridden by
// environment variables, which win over the file.
type EndpointsConfig struct {
	API    string `yaml:"api"`    // request/response base, e.g. http://localhost:8000
	Stream string `yaml:"stream"` // websocket base, e.g. ws://localhost:8000
}

// LogConfig controls runtime logging.
type LogConfig struct {
	Mode string `yaml:"mode"` // "dev" | "prod"
}

// HistoryConfig controls the local generation history cache.
type HistoryConfig struct {
	MaxAgeDays int `yaml:"max_age_days"` // 0 disables pruning
}

const configDir = ".sitewright"
const configFile = "config.yaml"

// Env override names.
const (
	EnvHome      = "SITEWRIGHT_HOME"
	EnvAPIURL    = "SITEWRIGHT_API_URL"
	EnvStreamURL = "SITEWRIGHT_WS_URL"
)

// Dir resolves the sitewright data directory: $SITEWRIGHT_HOME if set,
// otherwise .sitewright under the user home directory.
func Dir() (string, error) {
	if override := os.Getenv(EnvHome); override != "" {
		return override, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, configDir), nil
}

// ReadConfig reads config.yaml from dir. A missing file is not an error: the
// defaults are returned so the client works against a local dev backend out
// of the box. Env overrides are applied last.
func ReadConfig(dir string) (*Config, error) {
	cfg := DefaultConfig()

	path := filepath.Join(dir, configFile)
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	applyEnv(cfg)
	return cfg, nil
}

// WriteConfig writes cfg to config.yaml in dir, creating dir if needed.
func WriteConfig(dir string, cfg *Config) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}

	path := filepath.Join(dir, configFile)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// DefaultConfig returns a Config pointed at a local development backend.
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Endpoints: EndpointsConfig{
			API:    "http://localhost:8000",
			Stream: "ws://localhost:8000",
		},
		Log: LogConfig{
			Mode: "dev",
		},
		History: HistoryConfig{
			MaxAgeDays: 90,
		},
	}
}

// applyEnv overlays environment overrides onto cfg.
func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvAPIURL); v != "" {
		cfg.Endpoints.API = v
	}
	if v := os.Getenv(EnvStreamURL); v != "" {
		cfg.Endpoints.Stream = v
	}
}
