package storage

import (
	"context"

	"github.com/engram-dev/engram/pkg/api"
)

// CredentialStore holds the set of valid credentials as literal
// user:secret strings. There is no hashing layer beneath this interface;
// entries are matched verbatim.
type CredentialStore interface {
	// Credentials returns the current credential set.
	// Returns ErrNotFound if the store's backing document is absent.
	Credentials(ctx context.Context) ([]string, error)

	// SaveCredentials replaces the credential set.
	// Returns ErrNotFound if the store's backing document is absent.
	SaveCredentials(ctx context.Context, users []string) error

	// UpdateCredentials applies mutate to the current set and saves the
	// result under mutual exclusion, so concurrent read-modify-write
	// cycles cannot lose entries.
	UpdateCredentials(ctx context.Context, mutate func(users []string) ([]string, error)) error
}

// Registry maps tenant ids to their profiles.
type Registry interface {
	// Tenants returns the full registry.
	// Returns ErrNotFound if the registry document is absent.
	Tenants(ctx context.Context) (map[string]api.Tenant, error)

	// SaveTenants replaces the full registry.
	// Returns ErrNotFound if the registry document is absent.
	SaveTenants(ctx context.Context, tenants map[string]api.Tenant) error

	// UpdateTenants applies mutate to the current registry and saves the
	// result under mutual exclusion. The mutate callback may return an
	// error to abort the update; that error is returned unchanged.
	UpdateTenants(ctx context.Context, mutate func(tenants map[string]api.Tenant) error) error
}
