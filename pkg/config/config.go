// Package config provides unified configuration for the engram memory
// service.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (ENGRAM_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
//
// The resulting Config is constructed once at startup and passed
// explicitly to every component that needs it; nothing re-reads
// configuration ambiently.
package config

import (
	"path/filepath"
	"time"
)

// Config holds all configuration for the engram service.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Data          DataConfig          `yaml:"data"`
	Backup        BackupConfig        `yaml:"backup"`
	Auth          AuthConfig          `yaml:"auth"`
	Storage       StorageConfig       `yaml:"storage"`
	Log           LogConfig           `yaml:"log"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int           `yaml:"port"`          // default: 3000
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"` // default: 60s
	MaxBodySize  int64         `yaml:"max_body_size"` // default: 10 MB
}

// DataConfig holds the on-disk layout of tenant data and the two
// registry documents. Empty subpaths are derived from BaseDir.
type DataConfig struct {
	BaseDir         string `yaml:"base_dir"`         // default: "./data"
	MemoryDir       string `yaml:"memory_dir"`       // default: <base>/memory
	FilesDir        string `yaml:"files_dir"`        // default: <base>/files
	RegistryFile    string `yaml:"registry_file"`    // default: <base>/gpts.json
	CredentialsFile string `yaml:"credentials_file"` // default: <base>/auth.json
}

// BackupConfig holds the pre-mutation snapshot destinations.
type BackupConfig struct {
	MemoryBackupDir string `yaml:"memory_backup_dir"` // default: <base>/backups/memory
	FilesBackupDir  string `yaml:"files_backup_dir"`  // default: <base>/backups/files
	MemoryPrefix    string `yaml:"memory_prefix"`     // default: "memory_"
	FilesPrefix     string `yaml:"files_prefix"`      // default: "files_"
}

// AuthConfig holds authentication settings. Basic auth against the
// credential store is always on; JWT is an optional additional
// authenticator for service callers.
type AuthConfig struct {
	Realm string    `yaml:"realm"` // default: "Memory API"
	JWT   JWTConfig `yaml:"jwt"`
}

// JWTConfig holds the optional bearer-token authenticator settings.
type JWTConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Secret     string `yaml:"secret"`
	SecretFile string `yaml:"secret_file"` // _file variant for secret
	PublicKey  string `yaml:"public_key"`  // PEM-encoded RSA public key
	Issuer     string `yaml:"issuer"`
	Audience   string `yaml:"audience"`
	UserClaim  string `yaml:"user_claim"` // default: "sub"
}

// StorageConfig selects the registry/credential backend.
type StorageConfig struct {
	Type     string         `yaml:"type"` // "fs" or "postgres", default: "fs"
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`        // default: 25
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: false
}

// LogConfig holds structured logging settings.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error; default: "info"
	File  string `yaml:"file"`  // optional log file; empty logs to stderr
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:         3000,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			MaxBodySize:  10 << 20,
		},
		Data: DataConfig{
			BaseDir: "./data",
		},
		Backup: BackupConfig{
			MemoryPrefix: "memory_",
			FilesPrefix:  "files_",
		},
		Auth: AuthConfig{
			Realm: "Memory API",
			JWT: JWTConfig{
				UserClaim: "sub",
			},
		},
		Storage: StorageConfig{
			Type: "fs",
			Postgres: PostgresConfig{
				MaxConns: 25,
			},
		},
		Log: LogConfig{
			Level: "info",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}

// resolvePaths derives unset data and backup locations from the base
// directory.
func (c *Config) resolvePaths() {
	base := c.Data.BaseDir
	if c.Data.MemoryDir == "" {
		c.Data.MemoryDir = filepath.Join(base, "memory")
	}
	if c.Data.FilesDir == "" {
		c.Data.FilesDir = filepath.Join(base, "files")
	}
	if c.Data.RegistryFile == "" {
		c.Data.RegistryFile = filepath.Join(base, "gpts.json")
	}
	if c.Data.CredentialsFile == "" {
		c.Data.CredentialsFile = filepath.Join(base, "auth.json")
	}
	if c.Backup.MemoryBackupDir == "" {
		c.Backup.MemoryBackupDir = filepath.Join(base, "backups", "memory")
	}
	if c.Backup.FilesBackupDir == "" {
		c.Backup.FilesBackupDir = filepath.Join(base, "backups", "files")
	}
}
