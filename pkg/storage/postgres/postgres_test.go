package postgres

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	pgmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/engram-dev/engram/pkg/api"
)

func init() {
	// Configure testcontainers to use podman.
	// Detect the podman socket from `podman machine inspect`.
	if os.Getenv("DOCKER_HOST") == "" {
		out, err := exec.Command("podman", "machine", "inspect", "--format", "{{.ConnectionInfo.PodmanSocket.Path}}").Output()
		if err == nil {
			sock := strings.TrimSpace(string(out))
			if sock != "" {
				os.Setenv("DOCKER_HOST", "unix://"+sock)
			}
		}
	}
	// Ryuk needs privileged mode with podman.
	if os.Getenv("TESTCONTAINERS_RYUK_CONTAINER_PRIVILEGED") == "" {
		os.Setenv("TESTCONTAINERS_RYUK_CONTAINER_PRIVILEGED", "true")
	}
}

// setupTestDB starts a PostgreSQL container and returns a connected Store.
// Tests are skipped if no container runtime is available.
func setupTestDB(t *testing.T) *Store {
	t.Helper()

	if os.Getenv("SKIP_INTEGRATION") == "true" {
		t.Skip("SKIP_INTEGRATION=true, skipping PostgreSQL integration tests")
	}

	if _, err := exec.LookPath("podman"); err != nil {
		t.Skip("podman not found, skipping integration tests")
	}

	ctx := context.Background()

	container, err := pgmodule.Run(ctx,
		"postgres:16-alpine",
		pgmodule.WithDatabase("engram_test"),
		pgmodule.WithUsername("test"),
		pgmodule.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Skipf("skipping: could not start PostgreSQL container (is podman running?): %v", err)
	}

	t.Cleanup(func() {
		container.Terminate(context.Background())
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("getting connection string: %v", err)
	}

	store, err := New(ctx, Config{
		DSN:            connStr,
		MigrateOnStart: true,
	})
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(store.Close)

	return store
}

func TestStore_CredentialsRoundTrip(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	users, err := store.Credentials(ctx)
	if err != nil {
		t.Fatalf("Credentials on empty store: %v", err)
	}
	if len(users) != 0 {
		t.Fatalf("fresh store has %d credentials", len(users))
	}

	if err := store.SaveCredentials(ctx, []string{"alice:pw1", "root:admin"}); err != nil {
		t.Fatalf("SaveCredentials: %v", err)
	}

	users, err = store.Credentials(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 2 {
		t.Fatalf("got %d credentials, want 2", len(users))
	}

	err = store.UpdateCredentials(ctx, func(users []string) ([]string, error) {
		return append(users, "charlie:pw3"), nil
	})
	if err != nil {
		t.Fatalf("UpdateCredentials: %v", err)
	}

	users, err = store.Credentials(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 3 {
		t.Errorf("after update: %v", users)
	}
}

func TestStore_TenantsRoundTrip(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	tenants := map[string]api.Tenant{
		"alice": {Name: "Alice", Description: "research gpt", SharedMemories: []string{"bob"}},
		"root":  {Name: "Root", Role: api.RoleAdmin},
	}
	if err := store.SaveTenants(ctx, tenants); err != nil {
		t.Fatalf("SaveTenants: %v", err)
	}

	got, err := store.Tenants(ctx)
	if err != nil {
		t.Fatalf("Tenants: %v", err)
	}
	if got["root"].EffectiveRole() != api.RoleAdmin {
		t.Error("role not persisted")
	}
	if !got["alice"].SharesWith("bob") {
		t.Error("shared memories not persisted")
	}

	abort := errors.New("abort")
	err = store.UpdateTenants(ctx, func(tenants map[string]api.Tenant) error {
		tenants["charlie"] = api.Tenant{Name: "Charlie"}
		return abort
	})
	if !errors.Is(err, abort) {
		t.Fatalf("UpdateTenants error = %v, want abort", err)
	}

	got, err = store.Tenants(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := got["charlie"]; ok {
		t.Error("aborted mutation was committed")
	}

	err = store.UpdateTenants(ctx, func(tenants map[string]api.Tenant) error {
		tenants["charlie"] = api.Tenant{Name: "Charlie"}
		return nil
	})
	if err != nil {
		t.Fatalf("UpdateTenants: %v", err)
	}
	got, err = store.Tenants(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got["charlie"].Name != "Charlie" {
		t.Error("committed mutation missing")
	}
}
