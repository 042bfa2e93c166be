package fsstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/engram-dev/engram/pkg/api"
	"github.com/engram-dev/engram/pkg/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	base := t.TempDir()
	credsPath := filepath.Join(base, "auth.json")
	registryPath := filepath.Join(base, "gpts.json")

	if err := os.WriteFile(credsPath, []byte(`{"users":["alice:pw1","root:admin"]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	registry := `{
		"alice": {"name":"Alice","shared_memories":["bob"]},
		"root": {"name":"Root","access_level":"admin"}
	}`
	if err := os.WriteFile(registryPath, []byte(registry), 0o644); err != nil {
		t.Fatal(err)
	}
	return New(credsPath, registryPath, nil)
}

func TestCredentials_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	users, err := s.Credentials(ctx)
	if err != nil {
		t.Fatalf("Credentials: %v", err)
	}
	if len(users) != 2 || users[0] != "alice:pw1" {
		t.Fatalf("Credentials = %v", users)
	}

	if err := s.SaveCredentials(ctx, append(users, "charlie:pw3")); err != nil {
		t.Fatalf("SaveCredentials: %v", err)
	}

	users, err = s.Credentials(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 3 || users[2] != "charlie:pw3" {
		t.Errorf("after save: %v", users)
	}
}

func TestCredentials_MissingDocument(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "nope.json"), "also-nope.json", nil)
	ctx := context.Background()

	if _, err := s.Credentials(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Credentials error = %v, want ErrNotFound", err)
	}
	// Saving must not create an absent document.
	if err := s.SaveCredentials(ctx, []string{"a:b"}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("SaveCredentials error = %v, want ErrNotFound", err)
	}
}

func TestTenants_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tenants, err := s.Tenants(ctx)
	if err != nil {
		t.Fatalf("Tenants: %v", err)
	}
	if tenants["root"].EffectiveRole() != api.RoleAdmin {
		t.Error("root role not loaded")
	}
	if !tenants["alice"].SharesWith("bob") {
		t.Error("alice's shared memories not loaded")
	}

	tenants["charlie"] = api.Tenant{Name: "Charlie", Role: api.RoleUser}
	if err := s.SaveTenants(ctx, tenants); err != nil {
		t.Fatalf("SaveTenants: %v", err)
	}

	tenants, err = s.Tenants(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if tenants["charlie"].Name != "Charlie" {
		t.Errorf("after save: %+v", tenants)
	}
}

func TestTenants_MissingDocument(t *testing.T) {
	s := New("nope.json", filepath.Join(t.TempDir(), "nope.json"), nil)

	if _, err := s.Tenants(context.Background()); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Tenants error = %v, want ErrNotFound", err)
	}
}

func TestUpdateTenants_MutateErrorAborts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	abort := errors.New("abort")
	err := s.UpdateTenants(ctx, func(tenants map[string]api.Tenant) error {
		tenants["charlie"] = api.Tenant{Name: "Charlie"}
		return abort
	})
	if !errors.Is(err, abort) {
		t.Fatalf("UpdateTenants error = %v, want abort", err)
	}

	tenants, err := s.Tenants(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := tenants["charlie"]; ok {
		t.Error("aborted mutation was persisted")
	}
}

func TestUpdateCredentials_ConcurrentAppendsDoNotLoseEntries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			err := s.UpdateCredentials(ctx, func(users []string) ([]string, error) {
				return append(users, "user"+string(rune('a'+n))+":pw"), nil
			})
			if err != nil {
				t.Errorf("UpdateCredentials: %v", err)
			}
		}(i)
	}
	wg.Wait()

	users, err := s.Credentials(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 2+writers {
		t.Errorf("got %d credential entries, want %d", len(users), 2+writers)
	}
}
