package transport

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/engram-dev/engram/pkg/api"
	"github.com/engram-dev/engram/pkg/auth"
	"github.com/engram-dev/engram/pkg/backup"
	"github.com/engram-dev/engram/pkg/datastore"
	"github.com/engram-dev/engram/pkg/routes"
	"github.com/engram-dev/engram/pkg/storage"
)

// Handler serves the memory service's routes. Authentication and
// authorization have already happened by the time a handler runs.
type Handler struct {
	registry storage.Registry
	creds    storage.CredentialStore
	data     *datastore.Store
	guard    *backup.Guard
	logger   *slog.Logger
}

// NewHandler creates the route handler.
func NewHandler(registry storage.Registry, creds storage.CredentialStore, data *datastore.Store, guard *backup.Guard, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		registry: registry,
		creds:    creds,
		data:     data,
		guard:    guard,
		logger:   logger,
	}
}

// Routes returns the service mux.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /gpts/{gptId}", h.getTenantSelf)

	mux.HandleFunc("GET /memory/{gptId}", h.getMemory)
	mux.HandleFunc("POST /memory/{gptId}", h.updateMemory)
	mux.HandleFunc("DELETE /memory/{gptId}", h.clearMemory)

	mux.HandleFunc("GET /files/{gptId}/{filename}", h.getFile)
	mux.HandleFunc("POST /files/{gptId}/{filename}", h.uploadFile)
	mux.HandleFunc("DELETE /files/{gptId}/{filename}", h.deleteFile)

	mux.HandleFunc("GET /admin/gpts", h.listTenants)
	mux.HandleFunc("POST /admin/gpts", h.createTenant)
	mux.HandleFunc("POST /admin/gpts/{gptId}", h.updateTenant)
	mux.HandleFunc("GET /admin/credentials/{gptId}", h.getCredential)

	return mux
}

// actor returns the authenticated subject for audit lines.
func actor(r *http.Request) string {
	if id := auth.IdentityFromContext(r.Context()); id != nil {
		return id.Subject
	}
	return "unknown"
}

// ownerID returns the tenant id the request targets, preferring the
// match the auth middleware classified.
func ownerID(r *http.Request) string {
	if m := routes.MatchFromContext(r.Context()); m.GPTID != "" {
		return m.GPTID
	}
	return r.PathValue("gptId")
}

// getTenantSelf serves a tenant's own registry entry with shared-memory
// grants expanded to id/name pairs. Dangling ids are filtered out.
func (h *Handler) getTenantSelf(w http.ResponseWriter, r *http.Request) {
	gptID := ownerID(r)

	tenants, err := h.registry.Tenants(r.Context())
	if err != nil {
		h.serverError(w, "listing tenant", err)
		return
	}

	tenant, ok := tenants[gptID]
	if !ok {
		writeError(w, api.NewNotFoundError("GPT ID '"+gptID+"' not found."))
		return
	}

	view := api.TenantSelfView{
		Name:           tenant.Name,
		Description:    tenant.Description,
		SharedMemories: []api.SharedMemoryRef{},
	}
	for _, id := range tenant.SharedMemories {
		if ref, ok := tenants[id]; ok {
			view.SharedMemories = append(view.SharedMemories, api.SharedMemoryRef{ID: id, Name: ref.Name})
		}
	}

	writeSuccess(w, view)
}

// getMemory serves a tenant's memory document, or an empty object when
// none has been written yet.
func (h *Handler) getMemory(w http.ResponseWriter, r *http.Request) {
	path := h.data.MemoryPath(ownerID(r))

	if !datastore.Exists(path) {
		writeSuccess(w, json.RawMessage("{}"))
		return
	}

	doc, err := h.data.ReadMemory(path)
	if err != nil {
		h.serverError(w, "reading memory", err)
		return
	}
	writeSuccess(w, doc)
}

func (h *Handler) updateMemory(w http.ResponseWriter, r *http.Request) {
	gptID := ownerID(r)
	path := h.data.MemoryPath(gptID)

	var req api.MemoryUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, api.NewInvalidRequestError("Invalid or malformed memory data received"))
		return
	}
	doc, apiErr := req.NormalizeMemory()
	if apiErr != nil {
		h.logger.Error("invalid memory data received", "path", path, "user", actor(r))
		writeError(w, apiErr)
		return
	}

	h.guard.Backup(r.Context(), backup.DataMemory, path, doc, actor(r))

	if err := h.data.WriteMemory(path, doc); err != nil {
		h.serverError(w, "updating memory", err)
		return
	}

	h.logger.Info("memory updated", "gpt", gptID, "user", actor(r))
	writeSuccess(w, map[string]string{"message": "Memory saved."})
}

// clearMemory resets a memory document to an empty object; the file is
// retained so subsequent reads keep working.
func (h *Handler) clearMemory(w http.ResponseWriter, r *http.Request) {
	path := h.data.MemoryPath(ownerID(r))

	if !datastore.Exists(path) {
		writeError(w, api.NewNotFoundError("File not found."))
		return
	}

	h.guard.Backup(r.Context(), backup.DataMemory, path, []byte("{}"), actor(r))

	if err := h.data.ClearMemory(path); err != nil {
		h.serverError(w, "clearing memory", err)
		return
	}
	writeSuccess(w, map[string]string{"message": "Memory cleared (file retained)."})
}

func (h *Handler) getFile(w http.ResponseWriter, r *http.Request) {
	m := routes.MatchFromContext(r.Context())
	filename := m.Filename
	if filename == "" {
		filename = r.PathValue("filename")
	}
	path := h.data.FilePath(ownerID(r), filename)

	if !datastore.Exists(path) {
		writeError(w, api.NewNotFoundError("File not found."))
		return
	}
	http.ServeFile(w, r, path)
}

func (h *Handler) uploadFile(w http.ResponseWriter, r *http.Request) {
	m := routes.MatchFromContext(r.Context())
	filename := m.Filename
	if filename == "" {
		filename = r.PathValue("filename")
	}
	path := h.data.FilePath(ownerID(r), filename)

	var req api.FileUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, api.NewInvalidRequestError("Missing file content in request."))
		return
	}
	if apiErr := req.Validate(); apiErr != nil {
		h.logger.Info("file upload rejected, missing content", "path", path, "user", actor(r))
		writeError(w, apiErr)
		return
	}

	h.guard.Backup(r.Context(), backup.DataFiles, path, []byte(req.Content), actor(r))

	if err := h.data.WriteFile(path, []byte(req.Content)); err != nil {
		h.serverError(w, "uploading file", err)
		return
	}
	writeSuccess(w, map[string]string{"message": "File uploaded successfully."})
}

func (h *Handler) deleteFile(w http.ResponseWriter, r *http.Request) {
	m := routes.MatchFromContext(r.Context())
	filename := m.Filename
	if filename == "" {
		filename = r.PathValue("filename")
	}
	path := h.data.FilePath(ownerID(r), filename)

	if !datastore.Exists(path) {
		writeError(w, api.NewNotFoundError("File not found."))
		return
	}

	h.guard.Backup(r.Context(), backup.DataFiles, path, nil, actor(r))

	if err := h.data.DeleteFile(path); err != nil {
		h.serverError(w, "deleting file", err)
		return
	}
	writeSuccess(w, map[string]string{"message": "File deleted successfully."})
}

// listTenants serves the admin view of all tenants. Shared-memory ids
// are replaced by the referenced tenant's name where it resolves and
// kept verbatim where it does not.
func (h *Handler) listTenants(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.registry.Tenants(r.Context())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, api.NewNotFoundError("Getting GPT list > GPT list not found."))
			return
		}
		h.serverError(w, "listing tenants", err)
		return
	}

	result := make([]api.TenantAdminView, 0, len(tenants))
	for id, tenant := range tenants {
		names := make([]string, 0, len(tenant.SharedMemories))
		for _, memID := range tenant.SharedMemories {
			if ref, ok := tenants[memID]; ok {
				names = append(names, ref.Name)
			} else {
				names = append(names, memID)
			}
		}
		result = append(result, api.TenantAdminView{
			ID:             id,
			Name:           tenant.Name,
			Description:    tenant.Description,
			SharedMemories: names,
		})
	}

	writeSuccess(w, result)
}

func (h *Handler) updateTenant(w http.ResponseWriter, r *http.Request) {
	gptID := ownerID(r)

	var req api.TenantUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, api.NewInvalidRequestError("shared_memories must be an array or the description must be set."))
		return
	}
	if apiErr := req.Validate(); apiErr != nil {
		writeError(w, apiErr)
		return
	}

	errTenantMissing := errors.New("tenant missing")
	err := h.registry.UpdateTenants(r.Context(), func(tenants map[string]api.Tenant) error {
		tenant, ok := tenants[gptID]
		if !ok {
			return errTenantMissing
		}
		tenant.SharedMemories = req.SharedMemories
		tenant.Description = req.Description
		tenants[gptID] = tenant
		return nil
	})

	switch {
	case err == nil:
		writeSuccess(w, map[string]string{"message": "GPT updated successfully"})
	case errors.Is(err, errTenantMissing):
		writeError(w, api.NewNotFoundError("GPT not found."))
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, api.NewNotFoundError("Getting GPT list > GPT list not found."))
	default:
		h.serverError(w, "updating tenant", err)
	}
}

// createTenant provisions a new tenant: a registry entry with role
// user, a freshly generated credential appended to the credential
// store, and the encoded credential returned to the admin.
func (h *Handler) createTenant(w http.ResponseWriter, r *http.Request) {
	var req api.TenantCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, api.NewInvalidRequestError("ID and name are required."))
		return
	}
	if apiErr := req.Validate(); apiErr != nil {
		writeError(w, apiErr)
		return
	}

	errDuplicate := errors.New("duplicate tenant")
	err := h.registry.UpdateTenants(r.Context(), func(tenants map[string]api.Tenant) error {
		if _, exists := tenants[req.ID]; exists {
			return errDuplicate
		}
		tenants[req.ID] = api.Tenant{
			Name:           req.Name,
			Description:    req.Description,
			Role:           api.RoleUser,
			SharedMemories: req.SharedMemories,
		}
		return nil
	})

	switch {
	case err == nil:
	case errors.Is(err, errDuplicate):
		writeError(w, api.NewInvalidRequestError("GPT ID already exists."))
		return
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, api.NewNotFoundError("GPTs list not found"))
		return
	default:
		h.serverError(w, "creating tenant", err)
		return
	}

	password := auth.GeneratePassword(auth.DefaultPasswordLength)
	pair := req.ID + ":" + password

	err = h.creds.UpdateCredentials(r.Context(), func(users []string) ([]string, error) {
		return append(users, pair), nil
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.logger.Error("credential store not found while creating tenant", "gpt", req.ID)
			writeError(w, api.NewNotFoundError("Updating auth conf > Auth conf not found."))
			return
		}
		h.serverError(w, "storing credential", err)
		return
	}

	h.logger.Info("new tenant created", "gpt", req.ID, "admin", actor(r))
	writeSuccess(w, api.CredentialResponse{AuthString: auth.EncodeCredential(pair)})
}

// getCredential returns the encoded credential of one tenant for admins
// re-issuing access.
func (h *Handler) getCredential(w http.ResponseWriter, r *http.Request) {
	gptID := ownerID(r)

	users, err := h.creds.Credentials(r.Context())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, api.NewNotFoundError("Getting auth conf > Auth conf not found."))
			return
		}
		h.serverError(w, "loading credentials", err)
		return
	}

	for _, entry := range users {
		if strings.HasPrefix(entry, gptID+":") {
			writeSuccess(w, api.CredentialResponse{AuthString: auth.EncodeCredential(entry)})
			return
		}
	}
	writeError(w, api.NewNotFoundError("GPT ID not found in auth config."))
}

// serverError logs the failure with full detail and answers with a
// generic message; internals never leak to the client.
func (h *Handler) serverError(w http.ResponseWriter, opName string, err error) {
	h.logger.Error(opName+" failed", "error", err)
	writeError(w, api.NewServerError("Internal server error"))
}
