// Package auth provides credential verification for the engram memory
// service.
//
// Authentication uses a chain-of-responsibility pattern with
// three-outcome voting: each authenticator returns Yes (identity
// verified), No (credentials presented but invalid), or Abstain (cannot
// handle the credential type). When every authenticator abstains, no
// usable credentials were presented and the caller receives an
// authentication challenge — a signal deliberately kept distinct from
// the denial that follows a recognized-but-rejected credential.
//
// Auth is implemented as HTTP middleware, which also runs the
// authorization decision engine against the classified request path
// before the request reaches a handler.
package auth
