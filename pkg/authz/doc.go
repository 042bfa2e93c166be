// Package authz implements the authorization decision engine of the
// engram memory service.
//
// A decision is a pure function of the request path category, the
// operation, the requester's identity, the resource owner, and the
// requester's registry profile (role and shared-memory grants). No state
// is kept between decisions: the engine re-derives everything from its
// inputs on every call, which makes decisions idempotent and immune to
// partial-update ordering bugs.
package authz
