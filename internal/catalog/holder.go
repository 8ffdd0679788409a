package catalog

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MikeSquared-Agency/Sadhana/internal/metrics"
)

// ReloadNotifier is told about every successful refresh.
type ReloadNotifier interface {
	CatalogReloaded(ctx context.Context, poses, benefits int) error
}

// Holder owns the current catalog snapshot. Requests take a snapshot with
// Current and keep using it even if a refresh swaps in a new catalog.
type Holder struct {
	src      Source
	notifier ReloadNotifier
	logger   *slog.Logger

	current   atomic.Pointer[Catalog]
	refreshMu sync.Mutex
}

// NewHolder creates a Holder around an already loaded catalog.
func NewHolder(initial *Catalog, src Source, logger *slog.Logger) *Holder {
	h := &Holder{src: src, logger: logger}
	h.current.Store(initial)
	if initial != nil {
		metrics.CatalogPoses.Set(float64(initial.Len()))
	}
	return h
}

// SetNotifier registers a notifier for successful refreshes.
func (h *Holder) SetNotifier(n ReloadNotifier) {
	h.notifier = n
}

// Current returns the catalog snapshot in use.
func (h *Holder) Current() *Catalog {
	return h.current.Load()
}

// Refresh reloads the catalog from the source. The snapshot is swapped only if
// the load succeeds; on failure the previous catalog stays in service.
func (h *Holder) Refresh(ctx context.Context) (*Catalog, error) {
	if h.src == nil {
		return nil, errors.New("catalog has no source to refresh from")
	}

	h.refreshMu.Lock()
	defer h.refreshMu.Unlock()

	next, err := Load(ctx, h.src)
	if err != nil {
		return nil, err
	}

	prev := h.current.Swap(next)
	metrics.CatalogPoses.Set(float64(next.Len()))
	h.logger.Info("catalog refreshed",
		"poses", next.Len(),
		"benefits", len(next.Vocabulary()),
		"vocabulary_changed", prev == nil || prev.Fingerprint() != next.Fingerprint(),
	)

	if h.notifier != nil {
		if err := h.notifier.CatalogReloaded(ctx, next.Len(), len(next.Vocabulary())); err != nil {
			h.logger.Warn("catalog reload notification failed", "error", err)
		}
	}
	return next, nil
}

// RunRefreshLoop refreshes the catalog every interval until ctx is cancelled.
func (h *Holder) RunRefreshLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("catalog refresher shutting down")
			return
		case <-ticker.C:
			if _, err := h.Refresh(ctx); err != nil {
				h.logger.Warn("catalog refresh failed", "error", err)
			}
		}
	}
}
