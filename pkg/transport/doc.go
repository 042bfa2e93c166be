// Package transport wires the engram memory service onto HTTP: route
// handlers for the tenant, memory, file, and admin endpoints, the
// response envelope, HTTP-level middleware (recovery, request id,
// logging), and the server lifecycle with graceful shutdown.
//
// Handlers assume the auth middleware has already run: the verified
// identity and the classified route match arrive through the request
// context, and every request reaching a handler has passed both the
// credential verifier and the authorization decision engine.
package transport
