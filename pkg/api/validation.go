package api

import (
	"encoding/json"
)

// NormalizeMemory validates a memory update payload and returns it as a
// raw JSON document. The payload may arrive as a JSON value directly or
// as a string containing serialized JSON; the latter is unwrapped. An
// absent or unparsable payload is rejected.
func (r *MemoryUpdateRequest) NormalizeMemory() (json.RawMessage, *APIError) {
	if len(r.Memory) == 0 {
		return nil, NewInvalidRequestError("Invalid or malformed memory data received")
	}

	// A string payload must itself parse as JSON.
	var asString string
	if err := json.Unmarshal(r.Memory, &asString); err == nil {
		if !json.Valid([]byte(asString)) {
			return nil, NewInvalidRequestError("Invalid or malformed memory data received")
		}
		return json.RawMessage(asString), nil
	}

	if !json.Valid(r.Memory) {
		return nil, NewInvalidRequestError("Invalid or malformed memory data received")
	}
	return r.Memory, nil
}

// Validate checks that a file upload carries content.
func (r *FileUploadRequest) Validate() *APIError {
	if r.Content == "" {
		return NewInvalidRequestError("Missing file content in request.")
	}
	return nil
}

// Validate checks the admin tenant-update payload: the shared memories
// list must be present (an explicit array, possibly empty) and the
// description must be set.
func (r *TenantUpdateRequest) Validate() *APIError {
	if r.SharedMemories == nil || r.Description == "" {
		return NewInvalidRequestError("shared_memories must be an array or the description must be set.")
	}
	return nil
}

// Validate checks the admin tenant-create payload: id and name are required.
func (r *TenantCreateRequest) Validate() *APIError {
	if r.ID == "" || r.Name == "" {
		return NewInvalidRequestError("ID and name are required.")
	}
	return nil
}
