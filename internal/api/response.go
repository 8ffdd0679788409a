package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/MikeSquared-Agency/Sadhana/internal/catalog"
	"github.com/MikeSquared-Agency/Sadhana/internal/embeddings"
	"github.com/MikeSquared-Agency/Sadhana/internal/recommend"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
		"meta": map[string]any{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// writeSuccess writes a standard success response.
func writeSuccess(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, map[string]any{
		"data": data,
		"meta": map[string]any{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// writeDomainError maps core failure kinds onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, recommend.ErrInvalidInput):
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, embeddings.ErrModelUnavailable):
		writeError(w, http.StatusServiceUnavailable, "MODEL_UNAVAILABLE", "The embedding model is unavailable. Try again later.")
	case errors.Is(err, catalog.ErrCatalogUnavailable):
		writeError(w, http.StatusServiceUnavailable, "CATALOG_UNAVAILABLE", "The asana catalog is unavailable. Try again later.")
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}

// outcome is the {success, message} body the web form expects.
type outcome struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
	Poses     int    `json:"poses,omitempty"`
}
