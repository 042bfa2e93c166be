package basic

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/engram-dev/engram/pkg/auth"
)

// fakeCredStore serves a fixed credential set or a fixed error, and
// counts loads to prove the set is read fresh per request.
type fakeCredStore struct {
	users []string
	err   error
	loads int
}

func (f *fakeCredStore) Credentials(ctx context.Context) ([]string, error) {
	f.loads++
	if f.err != nil {
		return nil, f.err
	}
	return f.users, nil
}

func (f *fakeCredStore) SaveCredentials(ctx context.Context, users []string) error {
	f.users = users
	return nil
}

func (f *fakeCredStore) UpdateCredentials(ctx context.Context, mutate func([]string) ([]string, error)) error {
	users, err := mutate(f.users)
	if err != nil {
		return err
	}
	f.users = users
	return nil
}

func basicHeader(pair string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(pair))
}

func request(authHeader string) *http.Request {
	r := httptest.NewRequest("GET", "/memory/alice", nil)
	if authHeader != "" {
		r.Header.Set("Authorization", authHeader)
	}
	return r
}

func TestAuthenticate_ValidCredential(t *testing.T) {
	a := New(&fakeCredStore{users: []string{"alice:pw1", "bob:pw2"}}, nil)

	result := a.Authenticate(context.Background(), request(basicHeader("alice:pw1")))

	if result.Decision != auth.Yes {
		t.Fatalf("decision = %v, want Yes", result.Decision)
	}
	if result.Identity.Subject != "alice" {
		t.Errorf("subject = %q, want alice", result.Identity.Subject)
	}
	if result.Identity.Method != "basic" {
		t.Errorf("method = %q, want basic", result.Identity.Method)
	}
}

func TestAuthenticate_UnknownCredentialRejected(t *testing.T) {
	a := New(&fakeCredStore{users: []string{"bob:pw2"}}, nil)

	result := a.Authenticate(context.Background(), request(basicHeader("alice:pw1")))

	if result.Decision != auth.No {
		t.Fatalf("decision = %v, want No", result.Decision)
	}
	if result.Err == nil {
		t.Error("expected error on rejected credential")
	}
}

func TestAuthenticate_VerbatimMatchOnly(t *testing.T) {
	a := New(&fakeCredStore{users: []string{"alice:pw1"}}, nil)

	// Right user, wrong secret.
	if res := a.Authenticate(context.Background(), request(basicHeader("alice:pw2"))); res.Decision != auth.No {
		t.Errorf("wrong secret: decision = %v, want No", res.Decision)
	}
	// Secrets containing colons must match the full remainder.
	a2 := New(&fakeCredStore{users: []string{"alice:pw:extra"}}, nil)
	if res := a2.Authenticate(context.Background(), request(basicHeader("alice:pw:extra"))); res.Decision != auth.Yes {
		t.Errorf("colon secret: decision = %v, want Yes", res.Decision)
	}
}

func TestAuthenticate_AbstainCases(t *testing.T) {
	a := New(&fakeCredStore{users: []string{"alice:pw1"}}, nil)
	ctx := context.Background()

	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"bearer scheme", "Bearer sometoken"},
		{"undecodable payload", "Basic %%%not-base64%%%"},
		{"no colon in pair", "Basic " + base64.StdEncoding.EncodeToString([]byte("justuser"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if res := a.Authenticate(ctx, request(tt.header)); res.Decision != auth.Abstain {
				t.Errorf("decision = %v, want Abstain", res.Decision)
			}
		})
	}
}

func TestAuthenticate_StoreFailureRejects(t *testing.T) {
	a := New(&fakeCredStore{err: errors.New("store gone")}, nil)

	result := a.Authenticate(context.Background(), request(basicHeader("alice:pw1")))
	if result.Decision != auth.No {
		t.Fatalf("decision = %v, want No", result.Decision)
	}
}

func TestAuthenticate_LoadsFreshPerRequest(t *testing.T) {
	store := &fakeCredStore{users: []string{"alice:old"}}
	a := New(store, nil)
	ctx := context.Background()

	if res := a.Authenticate(ctx, request(basicHeader("alice:old"))); res.Decision != auth.Yes {
		t.Fatal("initial credential not accepted")
	}

	// Rotate the credential; the very next request must see it.
	store.users = []string{"alice:new"}

	if res := a.Authenticate(ctx, request(basicHeader("alice:old"))); res.Decision != auth.No {
		t.Error("rotated-out credential still accepted")
	}
	if res := a.Authenticate(ctx, request(basicHeader("alice:new"))); res.Decision != auth.Yes {
		t.Error("rotated-in credential not accepted")
	}
	if store.loads != 3 {
		t.Errorf("store loaded %d times, want once per request (3)", store.loads)
	}
}
