// Package api provides HTTP handlers for the Sadhana REST API.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/MikeSquared-Agency/Sadhana/internal/catalog"
)

// Pinger checks database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Readiness reports whether a lazily built component has initialised.
type Readiness interface {
	Ready() bool
}

// ConnState reports message bus connectivity.
type ConnState interface {
	IsConnected() bool
}

// HealthHandler provides health and stats endpoints.
type HealthHandler struct {
	db        Pinger
	catalogs  recommendCatalogs
	model     Readiness
	index     Readiness
	bus       ConnState
	startTime time.Time
}

type recommendCatalogs interface {
	Current() *catalog.Catalog
}

// NewHealthHandler creates a new HealthHandler. bus may be nil.
func NewHealthHandler(db Pinger, catalogs recommendCatalogs, model, index Readiness, bus ConnState) *HealthHandler {
	return &HealthHandler{
		db:        db,
		catalogs:  catalogs,
		model:     model,
		index:     index,
		bus:       bus,
		startTime: time.Now(),
	}
}

// Health returns the service health status.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	dbStatus := "connected"
	if err := h.db.Ping(r.Context()); err != nil {
		dbStatus = "disconnected"
	}

	hermesStatus := "disconnected"
	if h.bus != nil && h.bus.IsConnected() {
		hermesStatus = "connected"
	}

	poses := 0
	if cat := h.catalogs.Current(); cat != nil {
		poses = cat.Len()
	}

	resp := map[string]any{
		"status":         "healthy",
		"database":       dbStatus,
		"hermes":         hermesStatus,
		"catalog_poses":  poses,
		"uptime_seconds": int(time.Since(h.startTime).Seconds()),
	}

	if dbStatus == "disconnected" || poses == 0 {
		resp["status"] = "degraded"
	}

	writeJSON(w, http.StatusOK, resp)
}

// Stats returns catalog and model statistics.
func (h *HealthHandler) Stats(w http.ResponseWriter, r *http.Request) {
	poses, benefits := 0, 0
	if cat := h.catalogs.Current(); cat != nil {
		poses = cat.Len()
		benefits = len(cat.Vocabulary())
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"catalog_poses":  poses,
		"benefit_labels": benefits,
		"model_ready":    h.model.Ready(),
		"index_ready":    h.index.Ready(),
		"uptime_seconds": int(time.Since(h.startTime).Seconds()),
	})
}
