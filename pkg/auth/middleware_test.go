package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/engram-dev/engram/pkg/api"
	"github.com/engram-dev/engram/pkg/authz"
	"github.com/engram-dev/engram/pkg/routes"
)

// stubAuthn returns a fixed result.
type stubAuthn struct {
	result Result
}

func (s *stubAuthn) Authenticate(_ context.Context, _ *http.Request) Result {
	return s.result
}

// stubRegistry serves a fixed tenant map.
type stubRegistry struct {
	tenants map[string]api.Tenant
}

func (s *stubRegistry) Tenants(_ context.Context) (map[string]api.Tenant, error) {
	return s.tenants, nil
}

func (s *stubRegistry) SaveTenants(_ context.Context, tenants map[string]api.Tenant) error {
	s.tenants = tenants
	return nil
}

func (s *stubRegistry) UpdateTenants(_ context.Context, mutate func(map[string]api.Tenant) error) error {
	return mutate(s.tenants)
}

func testEngine() *authz.Engine {
	return authz.New(&stubRegistry{tenants: map[string]api.Tenant{
		"alice": {Name: "Alice", SharedMemories: []string{"bob"}},
		"bob":   {Name: "Bob"},
		"root":  {Name: "Root", Role: api.RoleAdmin},
	}}, nil)
}

func okHandler(t *testing.T, sawIdentity *string, sawMatch *routes.Match) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := IdentityFromContext(r.Context()); id != nil {
			*sawIdentity = id.Subject
		}
		*sawMatch = routes.MatchFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddleware_NoCredentials_Challenges(t *testing.T) {
	chain := &Chain{Authenticators: []Authenticator{&stubAuthn{Result{Decision: Abstain}}}}
	mw := Middleware(chain, testEngine(), "Memory API", nil, nil)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler reached without credentials")
	}))

	req := httptest.NewRequest("GET", "/memory/alice", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if got := rec.Header().Get("WWW-Authenticate"); got != `Basic realm="Memory API"` {
		t.Errorf("WWW-Authenticate = %q", got)
	}
	if !strings.Contains(rec.Body.String(), `"success":false`) {
		t.Errorf("body = %s, want failure envelope", rec.Body.String())
	}
}

func TestMiddleware_RejectedCredentials_Forbidden(t *testing.T) {
	chain := &Chain{Authenticators: []Authenticator{
		&stubAuthn{Result{Decision: No, Err: ErrInvalidCredentials}},
	}}
	mw := Middleware(chain, testEngine(), "Memory API", nil, nil)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler reached with rejected credentials")
	}))

	req := httptest.NewRequest("GET", "/memory/alice", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
	// A rejected credential is a denial, never a challenge.
	if rec.Header().Get("WWW-Authenticate") != "" {
		t.Error("WWW-Authenticate set on rejected credential")
	}
}

func TestMiddleware_AuthorizedRequest_Passes(t *testing.T) {
	chain := &Chain{Authenticators: []Authenticator{
		&stubAuthn{Result{Decision: Yes, Identity: &Identity{Subject: "alice", Method: "basic"}}},
	}}
	mw := Middleware(chain, testEngine(), "Memory API", nil, nil)

	var sawIdentity string
	var sawMatch routes.Match
	handler := mw(okHandler(t, &sawIdentity, &sawMatch))

	req := httptest.NewRequest("GET", "/memory/bob", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if sawIdentity != "alice" {
		t.Errorf("identity in context = %q, want alice", sawIdentity)
	}
	if sawMatch.Category != routes.CategoryMemory || sawMatch.GPTID != "bob" {
		t.Errorf("match in context = %+v", sawMatch)
	}
}

func TestMiddleware_UnauthorizedOperation_Forbidden(t *testing.T) {
	chain := &Chain{Authenticators: []Authenticator{
		&stubAuthn{Result{Decision: Yes, Identity: &Identity{Subject: "alice", Method: "basic"}}},
	}}
	mw := Middleware(chain, testEngine(), "Memory API", nil, nil)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler reached without authorization")
	}))

	// Non-owner delete is always denied, sharing notwithstanding.
	req := httptest.NewRequest("DELETE", "/memory/bob", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestMiddleware_NonAdminOnAdminPath_Forbidden(t *testing.T) {
	chain := &Chain{Authenticators: []Authenticator{
		&stubAuthn{Result{Decision: Yes, Identity: &Identity{Subject: "alice", Method: "basic"}}},
	}}
	mw := Middleware(chain, testEngine(), "Memory API", nil, nil)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler reached without authorization")
	}))

	req := httptest.NewRequest("GET", "/admin/gpts", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestMiddleware_BypassEndpoint(t *testing.T) {
	chain := &Chain{Authenticators: []Authenticator{&stubAuthn{Result{Decision: Abstain}}}}
	mw := Middleware(chain, testEngine(), "Memory API", DefaultBypassEndpoints, nil)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("bypass endpoint: status = %d, want 200", rec.Code)
	}
}
