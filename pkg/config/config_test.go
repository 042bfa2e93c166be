package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 3000 {
		t.Errorf("port = %d, want 3000", cfg.Server.Port)
	}
	if cfg.Storage.Type != "fs" {
		t.Errorf("storage.type = %q, want fs", cfg.Storage.Type)
	}
	if cfg.Auth.Realm != "Memory API" {
		t.Errorf("realm = %q", cfg.Auth.Realm)
	}
	if !cfg.Observability.Metrics.Enabled {
		t.Error("metrics disabled by default")
	}
}

func TestLoad_DerivesPathsFromBaseDir(t *testing.T) {
	cfg, err := Load(writeConfig(t, "data:\n  base_dir: /srv/engram\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	want := map[string]string{
		cfg.Data.MemoryDir:       filepath.Join("/srv/engram", "memory"),
		cfg.Data.FilesDir:        filepath.Join("/srv/engram", "files"),
		cfg.Data.RegistryFile:    filepath.Join("/srv/engram", "gpts.json"),
		cfg.Data.CredentialsFile: filepath.Join("/srv/engram", "auth.json"),
		cfg.Backup.MemoryBackupDir: filepath.Join("/srv/engram", "backups", "memory"),
		cfg.Backup.FilesBackupDir:  filepath.Join("/srv/engram", "backups", "files"),
	}
	for got, expected := range want {
		if got != expected {
			t.Errorf("derived path = %q, want %q", got, expected)
		}
	}
}

func TestLoad_YAMLValuesOverrideDefaults(t *testing.T) {
	yaml := `
server:
  port: 8088
log:
  level: debug
backup:
  memory_prefix: mem_
`
	cfg, err := Load(writeConfig(t, yaml))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8088 {
		t.Errorf("port = %d, want 8088", cfg.Server.Port)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log.level = %q", cfg.Log.Level)
	}
	if cfg.Backup.MemoryPrefix != "mem_" {
		t.Errorf("memory_prefix = %q", cfg.Backup.MemoryPrefix)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("ENGRAM_PORT", "9000")
	t.Setenv("ENGRAM_STORAGE", "fs")

	cfg, err := Load(writeConfig(t, "server:\n  port: 8088\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d, want env override 9000", cfg.Server.Port)
	}
}

func TestLoad_DSNFileReference(t *testing.T) {
	dsnFile := filepath.Join(t.TempDir(), "dsn")
	if err := os.WriteFile(dsnFile, []byte("postgres://u:p@db/engram\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	yaml := "storage:\n  type: postgres\n  postgres:\n    dsn_file: " + dsnFile + "\n"
	cfg, err := Load(writeConfig(t, yaml))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Postgres.DSN != "postgres://u:p@db/engram" {
		t.Errorf("dsn = %q", cfg.Storage.Postgres.DSN)
	}
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"bad storage type", func(c *Config) { c.Storage.Type = "bolt" }, "storage.type"},
		{"postgres without dsn", func(c *Config) { c.Storage.Type = "postgres" }, "storage.postgres.dsn"},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }, "log.level"},
		{"jwt without key", func(c *Config) { c.Auth.JWT.Enabled = true }, "auth.jwt"},
		{"jwt with both keys", func(c *Config) {
			c.Auth.JWT.Enabled = true
			c.Auth.JWT.Secret = "s"
			c.Auth.JWT.PublicKey = "k"
		}, "auth.jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

// writeConfig writes a YAML config file and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}
