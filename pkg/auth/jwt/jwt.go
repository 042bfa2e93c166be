// Package jwt provides a bearer-token authenticator for
// service-to-service callers that cannot hold a tenant credential.
//
// Tokens are validated against a static HMAC secret or RSA public key
// with configurable issuer and audience. The authenticator abstains on
// requests without a Bearer Authorization header, so tenant Basic-auth
// traffic is untouched when both authenticators are chained.
package jwt

import (
	"context"
	"crypto/rsa"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/engram-dev/engram/pkg/auth"
)

// Config holds the JWT authenticator configuration.
type Config struct {
	// Secret is the HMAC signing secret. Set exactly one of Secret and
	// PublicKeyPEM.
	Secret string

	// PublicKeyPEM is a PEM-encoded RSA public key for RS256 tokens.
	PublicKeyPEM string

	// Issuer is the expected iss claim. If empty, issuer is not validated.
	Issuer string

	// Audience is the expected aud claim. If empty, audience is not validated.
	Audience string

	// UserClaim is the claim used as the identity subject. Default: "sub".
	UserClaim string
}

func (c *Config) applyDefaults() {
	if c.UserClaim == "" {
		c.UserClaim = "sub"
	}
}

// Authenticator validates JWT bearer tokens.
type Authenticator struct {
	config Config
	rsaKey *rsa.PublicKey
	logger *slog.Logger
}

// New creates a JWT authenticator with the given configuration.
func New(cfg Config, logger *slog.Logger) (*Authenticator, error) {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	if (cfg.Secret == "") == (cfg.PublicKeyPEM == "") {
		return nil, fmt.Errorf("jwt: exactly one of secret and public key must be configured")
	}

	a := &Authenticator{config: cfg, logger: logger}

	if cfg.PublicKeyPEM != "" {
		key, err := jwtlib.ParseRSAPublicKeyFromPEM([]byte(cfg.PublicKeyPEM))
		if err != nil {
			return nil, fmt.Errorf("jwt: parsing public key: %w", err)
		}
		a.rsaKey = key
	}

	return a, nil
}

// Authenticate extracts a bearer token from the Authorization header
// and validates it.
//
// Decision outcomes:
//   - Abstain: no Authorization header or not a Bearer scheme
//   - No: bearer token present but invalid (expired, wrong issuer, bad signature)
//   - Yes: valid token with the identity subject taken from the user claim
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.Result {
	header := r.Header.Get("Authorization")
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return auth.Result{Decision: auth.Abstain}
	}
	raw := strings.TrimPrefix(header, "Bearer ")

	var opts []jwtlib.ParserOption
	if a.config.Issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(a.config.Issuer))
	}
	if a.config.Audience != "" {
		opts = append(opts, jwtlib.WithAudience(a.config.Audience))
	}
	if a.rsaKey != nil {
		opts = append(opts, jwtlib.WithValidMethods([]string{"RS256"}))
	} else {
		opts = append(opts, jwtlib.WithValidMethods([]string{"HS256"}))
	}

	claims := jwtlib.MapClaims{}
	_, err := jwtlib.ParseWithClaims(raw, claims, a.keyFunc, opts...)
	if err != nil {
		a.logger.Info("jwt validation failed", "error", err)
		return auth.Result{Decision: auth.No, Err: auth.ErrInvalidCredentials}
	}

	subject, _ := claims[a.config.UserClaim].(string)
	if subject == "" {
		return auth.Result{Decision: auth.No, Err: auth.ErrInvalidCredentials}
	}

	return auth.Result{
		Decision: auth.Yes,
		Identity: &auth.Identity{Subject: subject, Method: "jwt"},
	}
}

func (a *Authenticator) keyFunc(_ *jwtlib.Token) (any, error) {
	if a.rsaKey != nil {
		return a.rsaKey, nil
	}
	return []byte(a.config.Secret), nil
}
