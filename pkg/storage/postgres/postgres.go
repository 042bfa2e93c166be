// Package postgres provides a PostgreSQL implementation of the
// credential store and tenant registry, for deployments that want
// transactional registry updates instead of JSON documents on disk.
// It uses pgx/v5 for connection pooling and JSONB for the
// shared-memory grants.
//
// Tenant memory and files stay on the filesystem regardless of this
// backend: the backup guard's whole-category snapshots are defined over
// directories.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/engram-dev/engram/pkg/api"
	"github.com/engram-dev/engram/pkg/storage"
)

// Store is a PostgreSQL-backed credential store and tenant registry.
type Store struct {
	pool *pgxpool.Pool
}

// Compile-time interface checks.
var (
	_ storage.CredentialStore = (*Store)(nil)
	_ storage.Registry        = (*Store)(nil)
)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connectivity.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Credentials returns the current credential set.
func (s *Store) Credentials(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, "SELECT pair FROM credentials ORDER BY pair")
	if err != nil {
		return nil, fmt.Errorf("querying credentials: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var pair string
		if err := rows.Scan(&pair); err != nil {
			return nil, fmt.Errorf("scanning credential: %w", err)
		}
		users = append(users, pair)
	}
	return users, rows.Err()
}

// SaveCredentials replaces the credential set.
func (s *Store) SaveCredentials(ctx context.Context, users []string) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		return saveCredentialsTx(ctx, tx, users)
	})
}

// UpdateCredentials applies mutate to the credential set inside a single
// transaction holding an exclusive lock on the table.
func (s *Store) UpdateCredentials(ctx context.Context, mutate func(users []string) ([]string, error)) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "LOCK TABLE credentials IN ACCESS EXCLUSIVE MODE"); err != nil {
			return fmt.Errorf("locking credentials: %w", err)
		}

		rows, err := tx.Query(ctx, "SELECT pair FROM credentials ORDER BY pair")
		if err != nil {
			return fmt.Errorf("querying credentials: %w", err)
		}
		var users []string
		for rows.Next() {
			var pair string
			if err := rows.Scan(&pair); err != nil {
				rows.Close()
				return fmt.Errorf("scanning credential: %w", err)
			}
			users = append(users, pair)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		users, err = mutate(users)
		if err != nil {
			return err
		}
		return saveCredentialsTx(ctx, tx, users)
	})
}

func saveCredentialsTx(ctx context.Context, tx pgx.Tx, users []string) error {
	if _, err := tx.Exec(ctx, "DELETE FROM credentials"); err != nil {
		return fmt.Errorf("clearing credentials: %w", err)
	}
	for _, pair := range users {
		if _, err := tx.Exec(ctx,
			"INSERT INTO credentials (pair) VALUES ($1) ON CONFLICT DO NOTHING", pair,
		); err != nil {
			return fmt.Errorf("inserting credential: %w", err)
		}
	}
	return nil
}

// Tenants returns the full registry.
func (s *Store) Tenants(ctx context.Context) (map[string]api.Tenant, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT id, name, description, role, shared_memories FROM tenants")
	if err != nil {
		return nil, fmt.Errorf("querying tenants: %w", err)
	}
	defer rows.Close()

	return scanTenants(rows)
}

// SaveTenants replaces the full registry.
func (s *Store) SaveTenants(ctx context.Context, tenants map[string]api.Tenant) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		return saveTenantsTx(ctx, tx, tenants)
	})
}

// UpdateTenants applies mutate to the registry inside a single
// transaction holding an exclusive lock on the table.
func (s *Store) UpdateTenants(ctx context.Context, mutate func(tenants map[string]api.Tenant) error) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "LOCK TABLE tenants IN ACCESS EXCLUSIVE MODE"); err != nil {
			return fmt.Errorf("locking tenants: %w", err)
		}

		rows, err := tx.Query(ctx,
			"SELECT id, name, description, role, shared_memories FROM tenants")
		if err != nil {
			return fmt.Errorf("querying tenants: %w", err)
		}
		tenants, err := scanTenants(rows)
		if err != nil {
			return err
		}

		if err := mutate(tenants); err != nil {
			return err
		}
		return saveTenantsTx(ctx, tx, tenants)
	})
}

func scanTenants(rows pgx.Rows) (map[string]api.Tenant, error) {
	defer rows.Close()

	tenants := make(map[string]api.Tenant)
	for rows.Next() {
		var (
			id, name, description, role string
			sharedJSON                  []byte
		)
		if err := rows.Scan(&id, &name, &description, &role, &sharedJSON); err != nil {
			return nil, fmt.Errorf("scanning tenant: %w", err)
		}

		var shared []string
		if len(sharedJSON) > 0 {
			if err := json.Unmarshal(sharedJSON, &shared); err != nil {
				return nil, fmt.Errorf("parsing shared memories for %s: %w", id, err)
			}
		}

		tenants[id] = api.Tenant{
			Name:           name,
			Description:    description,
			Role:           api.Role(role),
			SharedMemories: shared,
		}
	}
	return tenants, rows.Err()
}

func saveTenantsTx(ctx context.Context, tx pgx.Tx, tenants map[string]api.Tenant) error {
	if _, err := tx.Exec(ctx, "DELETE FROM tenants"); err != nil {
		return fmt.Errorf("clearing tenants: %w", err)
	}

	for id, tenant := range tenants {
		sharedJSON, err := json.Marshal(tenant.SharedMemories)
		if err != nil {
			return fmt.Errorf("marshaling shared memories for %s: %w", id, err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO tenants (id, name, description, role, shared_memories)
			VALUES ($1, $2, $3, $4, $5)
		`, id, tenant.Name, tenant.Description, string(tenant.EffectiveRole()), sharedJSON); err != nil {
			return fmt.Errorf("inserting tenant %s: %w", id, err)
		}
	}
	return nil
}

// inTx runs fn in a transaction, committing on success and rolling back
// on error.
func (s *Store) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
