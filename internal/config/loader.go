package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from file and environment variables.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configPath := getConfigPath()
	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			// Config file is optional, don't fail if it doesn't exist
			if !os.IsNotExist(err) {
				return nil, err
			}
		}
	}

	loadFromEnv(cfg)

	return cfg, nil
}

// Dir returns the forge configuration directory, creating it if needed.
func Dir() (string, error) {
	var base string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		base = xdg
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}

	dir := filepath.Join(base, "forge")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	return dir, nil
}

// getConfigPath returns the path to the config file.
func getConfigPath() string {
	dir, err := Dir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	// Expand environment variables in the config file
	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return nil
}

// loadFromEnv loads configuration overrides from environment variables.
func loadFromEnv(cfg *Config) {
	if key := os.Getenv("FORGE_GEMINI_KEY"); key != "" {
		cfg.API.GeminiKey = key
		if cfg.API.Provider == "" {
			cfg.API.Provider = "gemini"
		}
	} else if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.API.GeminiKey = key
	}

	if provider := os.Getenv("FORGE_PROVIDER"); provider != "" {
		cfg.API.Provider = provider
	}

	if url := os.Getenv("FORGE_OLLAMA_URL"); url != "" {
		cfg.API.OllamaBaseURL = url
	}

	if model := os.Getenv("FORGE_MODEL"); model != "" {
		cfg.API.PlannerModel = model
		cfg.API.CoderModel = model
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.API.Provider {
	case "ollama":
		// Local server, no key required.
	case "gemini":
		if c.API.GeminiKey == "" {
			return ErrMissingAuth
		}
	default:
		return fmt.Errorf("unknown provider %q", c.API.Provider)
	}

	if c.Build.Concurrency < 1 {
		return fmt.Errorf("build concurrency must be at least 1, got %d", c.Build.Concurrency)
	}

	return nil
}

// ConfigError is a configuration validation error.
type ConfigError string

func (e ConfigError) Error() string {
	return string(e)
}

const (
	ErrMissingAuth ConfigError = "missing authentication: set GEMINI_API_KEY or switch provider to ollama"
)
