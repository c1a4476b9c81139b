// Copyright 2026 The Termkeep Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for termkeep.
//
// Configuration is loaded from a single file specified by either the
// TERMKEEP_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There are no fallbacks, no ~/.config
// discovery, and no automatic file search. Environment variables do
// not override config values — this keeps configuration deterministic
// and auditable. The only expansion performed is ${VAR} and
// ${VAR:-default} patterns in path fields, for portability.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Config is the termkeep bot configuration.
type Config struct {
	// Matrix configures the homeserver connection.
	Matrix MatrixConfig `yaml:"matrix"`

	// Storage configures the glossary database.
	Storage StorageConfig `yaml:"storage"`

	// Admin configures the operator socket.
	Admin AdminConfig `yaml:"admin"`

	// LogLevel is the slog level name: debug, info, warn, or error.
	// Default: info.
	LogLevel string `yaml:"log_level"`
}

// MatrixConfig configures the homeserver connection.
type MatrixConfig struct {
	// HomeserverURL is the base URL of the Matrix homeserver
	// (e.g., "https://matrix.example.org"). Required.
	HomeserverURL string `yaml:"homeserver_url"`

	// UserID is the bot's fully-qualified Matrix user ID
	// (e.g., "@termkeep:example.org"). Required.
	UserID string `yaml:"user_id"`

	// TokenFile is the path to a file holding the access token, or
	// "-" to read it from stdin. Required. The token never appears
	// in the config file itself.
	TokenFile string `yaml:"token_file"`
}

// StorageConfig configures the glossary database.
type StorageConfig struct {
	// DatabasePath is the SQLite database file. The parent directory
	// must exist. Default: ${HOME}/.local/share/termkeep/glossary.db.
	DatabasePath string `yaml:"database_path"`

	// PoolSize is the SQLite connection pool size. Default: 4.
	PoolSize int `yaml:"pool_size"`
}

// AdminConfig configures the operator socket.
type AdminConfig struct {
	// SocketPath is the Unix socket path for the admin protocol.
	// Empty disables the admin surface.
	SocketPath string `yaml:"socket_path"`
}

// Default returns a Config with development defaults. Load and
// LoadFile start from these and overlay the file's values.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			DatabasePath: "${HOME}/.local/share/termkeep/glossary.db",
			PoolSize:     4,
		},
		LogLevel: "info",
	}
}

// Load loads configuration from the file named by the
// TERMKEEP_CONFIG environment variable. Fails if the variable is not
// set — there is no default path.
func Load() (*Config, error) {
	configPath := os.Getenv("TERMKEEP_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("TERMKEEP_CONFIG environment variable not set; " +
			"set it to the path of your termkeep.yaml config file, or use --config")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path, expands
// path variables, and validates the result.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.expandVariables()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in
// path fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.Matrix.TokenFile = expandVars(c.Matrix.TokenFile, vars)
	c.Storage.DatabasePath = expandVars(c.Storage.DatabasePath, vars)
	c.Admin.SocketPath = expandVars(c.Admin.SocketPath, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Matrix.HomeserverURL == "" {
		errs = append(errs, fmt.Errorf("matrix.homeserver_url is required"))
	}
	if c.Matrix.UserID == "" {
		errs = append(errs, fmt.Errorf("matrix.user_id is required"))
	}
	if c.Matrix.TokenFile == "" {
		errs = append(errs, fmt.Errorf("matrix.token_file is required"))
	}
	if c.Storage.DatabasePath == "" {
		errs = append(errs, fmt.Errorf("storage.database_path is required"))
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level must be one of: debug, info, warn, error"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
