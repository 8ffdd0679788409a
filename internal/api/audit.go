package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/MikeSquared-Agency/Sadhana/internal/store"
)

// Auditor records operator-visible actions.
type Auditor interface {
	Log(ctx context.Context, e store.AuditEntry) error
}

// AuditReader lists recorded actions.
type AuditReader interface {
	Query(ctx context.Context, action *store.AuditAction, limit int) ([]store.AuditEntry, error)
}

// audit writes an entry when an auditor is configured. Failures are logged
// and never affect the response.
func audit(ctx context.Context, a Auditor, logger *slog.Logger, r *http.Request, action store.AuditAction, requestID string, success bool, meta map[string]any) {
	if a == nil {
		return
	}
	e := store.AuditEntry{Action: action, Success: success, Metadata: meta}
	if requestID != "" {
		e.RequestID = &requestID
	}
	if ip := clientIP(r); ip != "" {
		e.IPAddress = &ip
	}
	if err := a.Log(ctx, e); err != nil {
		logger.Warn("audit log write failed", "action", action, "error", err)
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// AuditHandler serves the audit trail to operators.
type AuditHandler struct {
	reader AuditReader
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(reader AuditReader) *AuditHandler {
	return &AuditHandler{reader: reader}
}

// List handles GET /admin/audit?action=&limit=.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	var action *store.AuditAction
	if v := r.URL.Query().Get("action"); v != "" {
		a := store.AuditAction(v)
		action = &a
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be a number")
			return
		}
		limit = n
	}

	entries, err := h.reader.Query(r.Context(), action, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to read audit log")
		return
	}
	writeSuccess(w, http.StatusOK, entries)
}
