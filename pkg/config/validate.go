package config

import (
	"errors"
	"fmt"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0, got %d", c.Server.Port))
	}

	if c.Data.BaseDir == "" {
		errs = append(errs, fmt.Errorf("data.base_dir is required"))
	}

	switch c.Storage.Type {
	case "fs", "postgres":
		// valid
	default:
		errs = append(errs, fmt.Errorf("storage.type must be \"fs\" or \"postgres\", got %q", c.Storage.Type))
	}

	if c.Storage.Type == "postgres" {
		if c.Storage.Postgres.DSN == "" && c.Storage.Postgres.DSNFile == "" {
			errs = append(errs, fmt.Errorf("storage.postgres.dsn or storage.postgres.dsn_file is required when storage.type is \"postgres\""))
		}
	}

	if c.Auth.Realm == "" {
		errs = append(errs, fmt.Errorf("auth.realm is required"))
	}

	if c.Auth.JWT.Enabled {
		hasSecret := c.Auth.JWT.Secret != "" || c.Auth.JWT.SecretFile != ""
		hasKey := c.Auth.JWT.PublicKey != ""
		if hasSecret == hasKey {
			errs = append(errs, fmt.Errorf("auth.jwt requires exactly one of secret/secret_file and public_key"))
		}
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level))
	}

	return errors.Join(errs...)
}
