// Package fsstore persists the credential store and the tenant registry
// as JSON documents on disk — the service's native format. The
// credential document is {"users":["user:secret",...]}; the registry
// document maps tenant ids to profiles.
//
// Documents are read fresh on every load and must already exist before
// they can be saved: a save against an absent document reports
// storage.ErrNotFound instead of creating it, so a misconfigured path
// cannot silently spawn an empty store. Read-modify-write cycles go
// through the Update methods, which hold a per-document mutex.
package fsstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"github.com/engram-dev/engram/pkg/api"
	"github.com/engram-dev/engram/pkg/storage"
)

// Store is a file-backed credential store and tenant registry.
type Store struct {
	credsPath    string
	registryPath string
	logger       *slog.Logger

	credsMu    sync.Mutex
	registryMu sync.Mutex
}

// Compile-time interface checks.
var (
	_ storage.CredentialStore = (*Store)(nil)
	_ storage.Registry        = (*Store)(nil)
)

// New creates a store reading credentials from credsPath and the tenant
// registry from registryPath.
func New(credsPath, registryPath string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{credsPath: credsPath, registryPath: registryPath, logger: logger}
}

// credentialsDoc is the on-disk shape of the credential store.
type credentialsDoc struct {
	Users []string `json:"users"`
}

// Credentials returns the current credential set, read fresh from disk.
func (s *Store) Credentials(ctx context.Context) ([]string, error) {
	var doc credentialsDoc
	if err := readJSON(s.credsPath, &doc); err != nil {
		return nil, err
	}
	return doc.Users, nil
}

// SaveCredentials replaces the credential document.
func (s *Store) SaveCredentials(ctx context.Context, users []string) error {
	if !exists(s.credsPath) {
		return fmt.Errorf("credential store %s: %w", s.credsPath, storage.ErrNotFound)
	}
	return writeJSON(s.credsPath, credentialsDoc{Users: users})
}

// UpdateCredentials applies mutate to the credential set under the
// document mutex.
func (s *Store) UpdateCredentials(ctx context.Context, mutate func(users []string) ([]string, error)) error {
	s.credsMu.Lock()
	defer s.credsMu.Unlock()

	users, err := s.Credentials(ctx)
	if err != nil {
		return err
	}
	users, err = mutate(users)
	if err != nil {
		return err
	}
	return s.SaveCredentials(ctx, users)
}

// Tenants returns the full registry, read fresh from disk.
func (s *Store) Tenants(ctx context.Context) (map[string]api.Tenant, error) {
	s.logger.Debug("loading tenant registry", "path", s.registryPath)

	tenants := map[string]api.Tenant{}
	if err := readJSON(s.registryPath, &tenants); err != nil {
		return nil, err
	}
	return tenants, nil
}

// SaveTenants replaces the registry document.
func (s *Store) SaveTenants(ctx context.Context, tenants map[string]api.Tenant) error {
	s.logger.Debug("saving tenant registry", "path", s.registryPath)

	if !exists(s.registryPath) {
		return fmt.Errorf("tenant registry %s: %w", s.registryPath, storage.ErrNotFound)
	}
	return writeJSON(s.registryPath, tenants)
}

// UpdateTenants applies mutate to the registry under the document mutex.
func (s *Store) UpdateTenants(ctx context.Context, mutate func(tenants map[string]api.Tenant) error) error {
	s.registryMu.Lock()
	defer s.registryMu.Unlock()

	tenants, err := s.Tenants(ctx)
	if err != nil {
		return err
	}
	if err := mutate(tenants); err != nil {
		return err
	}
	return s.SaveTenants(ctx, tenants)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s: %w", path, storage.ErrNotFound)
		}
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
