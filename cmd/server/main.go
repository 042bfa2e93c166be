// Command server runs the engram per-tenant memory service.
//
// Configuration is layered: built-in defaults, an optional YAML config
// file (-config flag, ENGRAM_CONFIG, ./config.yaml, or
// /etc/engram/config.yaml), then ENGRAM_* environment overrides. See
// pkg/config for the full reference.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/engram-dev/engram/pkg/auth"
	"github.com/engram-dev/engram/pkg/auth/basic"
	authjwt "github.com/engram-dev/engram/pkg/auth/jwt"
	"github.com/engram-dev/engram/pkg/authz"
	"github.com/engram-dev/engram/pkg/backup"
	"github.com/engram-dev/engram/pkg/config"
	"github.com/engram-dev/engram/pkg/datastore"
	"github.com/engram-dev/engram/pkg/observability"
	"github.com/engram-dev/engram/pkg/storage"
	"github.com/engram-dev/engram/pkg/storage/fsstore"
	"github.com/engram-dev/engram/pkg/storage/postgres"
	"github.com/engram-dev/engram/pkg/transport"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, closeLog, err := newLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}
	defer closeLog()
	slog.SetDefault(logger)

	ctx := context.Background()

	// Registry and credential backend.
	var (
		creds    storage.CredentialStore
		registry storage.Registry
	)
	switch cfg.Storage.Type {
	case "postgres":
		store, err := postgres.New(ctx, postgres.Config{
			DSN:            cfg.Storage.Postgres.DSN,
			MaxConns:       cfg.Storage.Postgres.MaxConns,
			MigrateOnStart: cfg.Storage.Postgres.MigrateOnStart,
		})
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer store.Close()
		creds, registry = store, store
		logger.Info("storage backend ready", "type", "postgres")
	default:
		store := fsstore.New(cfg.Data.CredentialsFile, cfg.Data.RegistryFile, logger)
		creds, registry = store, store
		logger.Info("storage backend ready", "type", "fs",
			"registry", cfg.Data.RegistryFile, "credentials", cfg.Data.CredentialsFile)
	}

	// Tenant data on disk.
	data := datastore.New(cfg.Data.MemoryDir, cfg.Data.FilesDir, logger)
	if err := data.EnsureDirectories(); err != nil {
		return fmt.Errorf("preparing data directories: %w", err)
	}

	guard := backup.New(backup.Config{
		MemorySourceDir:  cfg.Data.MemoryDir,
		FilesSourceDir:   cfg.Data.FilesDir,
		MemoryBackupRoot: cfg.Backup.MemoryBackupDir,
		FilesBackupRoot:  cfg.Backup.FilesBackupDir,
		MemoryPrefix:     cfg.Backup.MemoryPrefix,
		FilesPrefix:      cfg.Backup.FilesPrefix,
	}, logger)

	// Authentication chain: basic auth against the credential store is
	// always on, JWT is an optional addition for service callers.
	authenticators := []auth.Authenticator{basic.New(creds, logger)}
	if cfg.Auth.JWT.Enabled {
		jwtAuthn, err := authjwt.New(authjwt.Config{
			Secret:       cfg.Auth.JWT.Secret,
			PublicKeyPEM: cfg.Auth.JWT.PublicKey,
			Issuer:       cfg.Auth.JWT.Issuer,
			Audience:     cfg.Auth.JWT.Audience,
			UserClaim:    cfg.Auth.JWT.UserClaim,
		}, logger)
		if err != nil {
			return fmt.Errorf("configuring JWT authentication: %w", err)
		}
		authenticators = append(authenticators, jwtAuthn)
		logger.Info("JWT authentication enabled")
	}
	chain := &auth.Chain{Authenticators: authenticators}

	engine := authz.New(registry, logger)
	handler := transport.NewHandler(registry, creds, data, guard, logger)

	bypass := []string{"/healthz"}
	if cfg.Observability.Metrics.Enabled {
		bypass = append(bypass, cfg.Observability.Metrics.Path)
	}

	mux := http.NewServeMux()
	mux.Handle("/", auth.Middleware(chain, engine, cfg.Auth.Realm, bypass, logger)(handler.Routes()))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	if cfg.Observability.Metrics.Enabled {
		mux.Handle("GET "+cfg.Observability.Metrics.Path, promhttp.Handler())
	}

	srv := transport.NewServer(observability.MetricsMiddleware(mux),
		transport.WithAddr(fmt.Sprintf(":%d", cfg.Server.Port)),
		transport.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		transport.WithMaxBodySize(cfg.Server.MaxBodySize),
		transport.WithLogger(logger),
	)

	return srv.ListenAndServe()
}

// newLogger builds the structured logger from the log configuration.
// An empty file means stderr; otherwise the log file is opened for
// appending and the returned close function releases it.
func newLogger(cfg config.LogConfig) (*slog.Logger, func(), error) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var sink io.Writer = os.Stderr
	closeLog := func() {}
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file %s: %w", cfg.File, err)
		}
		sink = f
		closeLog = func() { f.Close() }
	}

	return slog.New(slog.NewJSONHandler(sink, &slog.HandlerOptions{Level: level})), closeLog, nil
}
