// Package api defines the wire types of the engram memory service: the
// response envelope, the tenant profile stored in the registry, request
// payloads, and the error taxonomy used by the HTTP surface.
//
// All types here are transport-agnostic data carriers. Validation of
// request payloads lives in validation.go; the mapping of APIError types
// to HTTP status codes lives in errors.go.
package api
