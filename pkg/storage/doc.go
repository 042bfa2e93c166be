// Package storage defines the persistence contracts of the engram
// memory service: the credential store (the set of valid user:secret
// pairs) and the tenant registry (the map of tenant id to profile).
//
// Implementations live in subpackages: fsstore persists both as JSON
// documents on disk (the service's native format), postgres keeps them
// in a database for deployments that want transactional registry
// updates. Both contracts are read fresh on every request by design —
// callers must not cache results, so credential rotation and sharing
// changes take effect immediately.
package storage
