package transport

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/engram-dev/engram/pkg/api"
)

// writeSuccess emits the success envelope with the given data.
func writeSuccess(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(api.Envelope{Success: true, Data: data}); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

// writeError emits the failure envelope for an APIError.
func writeError(w http.ResponseWriter, apiErr *api.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.StatusCode())
	if err := json.NewEncoder(w).Encode(api.Envelope{Success: false, Message: apiErr.Message}); err != nil {
		slog.Error("encoding error response", "error", err)
	}
}
