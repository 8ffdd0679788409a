package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/MikeSquared-Agency/Sadhana/internal/catalog"
	"github.com/MikeSquared-Agency/Sadhana/internal/store"
)

// CatalogRefresher reloads the catalog from its store.
type CatalogRefresher interface {
	Current() *catalog.Catalog
	Refresh(ctx context.Context) (*catalog.Catalog, error)
}

// CatalogHandler serves the benefit vocabulary and catalog administration.
type CatalogHandler struct {
	catalogs CatalogRefresher
	auditor  Auditor
	logger   *slog.Logger
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(catalogs CatalogRefresher, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{catalogs: catalogs, logger: logger}
}

// SetAuditor enables audit records for catalog refreshes.
func (h *CatalogHandler) SetAuditor(a Auditor) {
	h.auditor = a
}

// Benefits handles GET /benefits.
func (h *CatalogHandler) Benefits(w http.ResponseWriter, r *http.Request) {
	cat := h.catalogs.Current()
	if cat == nil {
		writeDomainError(w, catalog.ErrCatalogUnavailable)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"benefits": cat.Vocabulary(),
		"count":    len(cat.Vocabulary()),
	})
}

// Refresh handles POST /admin/catalog/refresh.
func (h *CatalogHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	cat, err := h.catalogs.Refresh(r.Context())
	if err != nil {
		h.logger.Error("catalog refresh failed", "error", err)
		audit(r.Context(), h.auditor, h.logger, r, store.ActionCatalogRefresh, "", false, nil)
		writeDomainError(w, err)
		return
	}
	audit(r.Context(), h.auditor, h.logger, r, store.ActionCatalogRefresh, "", true,
		map[string]any{"poses": cat.Len(), "benefits": len(cat.Vocabulary())})
	writeSuccess(w, http.StatusOK, map[string]any{
		"poses":       cat.Len(),
		"benefits":    len(cat.Vocabulary()),
		"fingerprint": cat.Fingerprint(),
	})
}
