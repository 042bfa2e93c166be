package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, ENGRAM_CONFIG env, ./config.yaml, /etc/engram/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Path derivation and validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	cfg.resolvePaths()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. ENGRAM_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/engram/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv("ENGRAM_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"config.yaml",
		"/etc/engram/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile parses a YAML file over the current config values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps ENGRAM_* environment variables onto config
// fields, overriding file values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ENGRAM_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("ENGRAM_DATA_DIR"); v != "" {
		cfg.Data.BaseDir = v
	}
	if v := os.Getenv("ENGRAM_STORAGE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("ENGRAM_PG_DSN"); v != "" {
		cfg.Storage.Postgres.DSN = v
	}
	if v := os.Getenv("ENGRAM_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("ENGRAM_LOG_FILE"); v != "" {
		cfg.Log.File = v
	}
	if v := os.Getenv("ENGRAM_AUTH_REALM"); v != "" {
		cfg.Auth.Realm = v
	}
	if v := os.Getenv("ENGRAM_JWT_SECRET"); v != "" {
		cfg.Auth.JWT.Enabled = true
		cfg.Auth.JWT.Secret = v
	}
	if v := os.Getenv("ENGRAM_METRICS_ENABLED"); v != "" {
		cfg.Observability.Metrics.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
}

// resolveFileReferences reads _file variant fields into their primary
// counterparts. The primary value wins when both are set.
func resolveFileReferences(cfg *Config) error {
	if cfg.Storage.Postgres.DSN == "" && cfg.Storage.Postgres.DSNFile != "" {
		v, err := readTrimmed(cfg.Storage.Postgres.DSNFile)
		if err != nil {
			return fmt.Errorf("storage.postgres.dsn_file: %w", err)
		}
		cfg.Storage.Postgres.DSN = v
	}
	if cfg.Auth.JWT.Secret == "" && cfg.Auth.JWT.SecretFile != "" {
		v, err := readTrimmed(cfg.Auth.JWT.SecretFile)
		if err != nil {
			return fmt.Errorf("auth.jwt.secret_file: %w", err)
		}
		cfg.Auth.JWT.Secret = v
	}
	return nil
}

func readTrimmed(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
