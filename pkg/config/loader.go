package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// configFileName is the YAML file looked up inside the config directory.
const configFileName = "wwise-mcp.yaml"

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load wwise-mcp.yaml from configDir (optional; defaults apply when absent)
//  2. Expand environment variables
//  3. Merge user values over built-in defaults
//  4. Validate the result
func Initialize(configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg, err := load(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info("Configuration initialized successfully",
		"endpoint_url", cfg.EndpointURL,
		"call_timeout", cfg.CallTimeout,
		"max_queue_size", cfg.MaxQueueSize)

	return cfg, nil
}

// load is the internal loader (not exported)
func load(configDir string) (*Config, error) {
	cfg := DefaultConfig()

	path := filepath.Join(configDir, configFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// No file is fine: run on defaults.
			slog.Debug("No configuration file found, using defaults", "path", path)
			return cfg, nil
		}
		return nil, NewLoadError(configFileName, err)
	}

	// Expand environment variables using {{.VAR}} template syntax.
	// Note: ExpandEnv passes through original data on parse/execution errors,
	// allowing the YAML parser to handle the content (or fail with a clearer
	// error message).
	data = ExpandEnv(data)

	var user Config
	if err := yaml.Unmarshal(data, &user); err != nil {
		return nil, NewLoadError(configFileName, fmt.Errorf("%w: %v", ErrInvalidYAML, err))
	}

	// Merge user-provided config into defaults (non-zero values override).
	if err := mergo.Merge(cfg, &user, mergo.WithOverride); err != nil {
		return nil, NewLoadError(configFileName, fmt.Errorf("failed to merge config: %w", err))
	}

	return cfg, nil
}

// validate performs sanity checks on resolved configuration.
func validate(cfg *Config) error {
	if cfg.EndpointURL == "" {
		return NewValidationError("endpoint_url", nil, ErrMissingRequiredField)
	}
	if cfg.CallTimeout <= 0 {
		return NewValidationError("call_timeout", cfg.CallTimeout, ErrInvalidValue)
	}
	if cfg.RPCTimeout <= 0 {
		return NewValidationError("rpc_timeout", cfg.RPCTimeout, ErrInvalidValue)
	}
	if cfg.ShutdownTimeout <= 0 {
		return NewValidationError("shutdown_timeout", cfg.ShutdownTimeout, ErrInvalidValue)
	}
	if cfg.PollInterval <= 0 {
		return NewValidationError("poll_interval", cfg.PollInterval, ErrInvalidValue)
	}
	if cfg.MaxQueueSize <= 0 {
		return NewValidationError("max_queue_size", cfg.MaxQueueSize, ErrInvalidValue)
	}
	if cfg.MaxSubscriptionEvents <= 0 {
		return NewValidationError("max_subscription_events", cfg.MaxSubscriptionEvents, ErrInvalidValue)
	}
	return nil
}
