// Package basic provides the Basic-auth credential verifier. Presented
// credentials are decoded into a user:secret pair and matched verbatim
// against the credential store's current set, loaded fresh on every
// request so rotation takes effect immediately.
//
// There is no lockout, throttling, or attempt counting; callers must
// not assume brute-force protection.
package basic

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"

	"github.com/engram-dev/engram/pkg/auth"
	"github.com/engram-dev/engram/pkg/storage"
)

// Authenticator validates Basic credentials against a credential store.
type Authenticator struct {
	creds  storage.CredentialStore
	logger *slog.Logger
}

// New creates a Basic-auth authenticator backed by the given store.
func New(creds storage.CredentialStore, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{creds: creds, logger: logger}
}

// Authenticate decodes the Authorization header and checks membership
// in the credential set.
//
// Decision outcomes:
//   - Abstain: no Authorization header, not the Basic scheme, or
//     undecodable payload — the caller must be challenged, not denied
//   - No: decodable user:secret pair that is not in the store
//   - Yes: verbatim match, identity subject set to the username
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) auth.Result {
	header := r.Header.Get("Authorization")
	if header == "" || !strings.HasPrefix(header, "Basic ") {
		return auth.Result{Decision: auth.Abstain}
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(header, "Basic "))
	if err != nil {
		return auth.Result{Decision: auth.Abstain}
	}

	pair := string(decoded)
	user, _, ok := strings.Cut(pair, ":")
	if !ok {
		return auth.Result{Decision: auth.Abstain}
	}

	users, err := a.creds.Credentials(ctx)
	if err != nil {
		// A missing or unreadable credential store rejects everyone;
		// it does not grant a challenge.
		a.logger.Error("credential store unavailable", "error", err)
		return auth.Result{Decision: auth.No, Err: auth.ErrInvalidCredentials}
	}

	for _, entry := range users {
		if entry == pair {
			return auth.Result{
				Decision: auth.Yes,
				Identity: &auth.Identity{Subject: user, Method: "basic"},
			}
		}
	}

	a.logger.Info("no matching credential found", "user", user)
	return auth.Result{Decision: auth.No, Err: auth.ErrInvalidCredentials}
}
