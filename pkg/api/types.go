package api

import "encoding/json"

// Role is the access level of a tenant.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Tenant is a registry entry describing one GPT: its display name,
// description, access level, and the set of other tenant ids whose
// memory it may read. SharedMemories entries need not resolve to
// existing tenants; dangling references are filtered at read time.
type Tenant struct {
	Name           string   `json:"name"`
	Description    string   `json:"description,omitempty"`
	Role           Role     `json:"access_level,omitempty"`
	SharedMemories []string `json:"shared_memories,omitempty"`
}

// EffectiveRole returns the tenant's role, defaulting to user when the
// registry entry carries no access level.
func (t Tenant) EffectiveRole() Role {
	if t.Role == RoleAdmin {
		return RoleAdmin
	}
	return RoleUser
}

// SharesWith reports whether ownerID appears in the tenant's shared
// memories. The list is treated as a set; duplicates are harmless.
func (t Tenant) SharesWith(ownerID string) bool {
	for _, id := range t.SharedMemories {
		if id == ownerID {
			return true
		}
	}
	return false
}

// Envelope is the uniform response body: {"success":true,"data":...} on
// success, {"success":false,"message":"..."} on failure.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// SharedMemoryRef is one resolved shared-memory grant in a tenant's
// self view.
type SharedMemoryRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TenantSelfView is what a tenant sees when inspecting its own registry
// entry: dangling shared-memory ids are dropped, resolvable ones are
// expanded to id/name pairs.
type TenantSelfView struct {
	Name           string            `json:"name"`
	Description    string            `json:"description,omitempty"`
	SharedMemories []SharedMemoryRef `json:"shared_memories"`
}

// TenantAdminView is one row of the admin tenant listing. Shared memory
// ids are replaced by the referenced tenant's name where it resolves,
// and kept verbatim where it does not.
type TenantAdminView struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Description    string   `json:"description,omitempty"`
	SharedMemories []string `json:"shared_memories"`
}

// MemoryUpdateRequest carries a memory document update. The payload may
// be a JSON object or a string containing JSON; validation normalizes
// both into an object.
type MemoryUpdateRequest struct {
	Memory json.RawMessage `json:"memory"`
}

// FileUploadRequest carries the content of a tenant file upload.
type FileUploadRequest struct {
	Content string `json:"content"`
}

// TenantUpdateRequest is the admin payload for updating an existing
// tenant's sharing grants and description.
type TenantUpdateRequest struct {
	SharedMemories []string `json:"shared_memories"`
	Description    string   `json:"description"`
}

// TenantCreateRequest is the admin payload for creating a new tenant.
type TenantCreateRequest struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	SharedMemories []string `json:"shared_memories"`
}

// CredentialResponse returns a base64-encoded user:secret pair, ready
// for use in a Basic Authorization header.
type CredentialResponse struct {
	AuthString string `json:"authString"`
}
