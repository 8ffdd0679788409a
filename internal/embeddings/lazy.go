package embeddings

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	pgvector "github.com/pgvector/pgvector-go"
	"golang.org/x/sync/singleflight"

	"github.com/MikeSquared-Agency/Sadhana/internal/metrics"
)

// LoadTimeout bounds a single model load.
var LoadTimeout = 2 * time.Minute

// Factory constructs and loads a provider. It runs on first use, not at startup.
type Factory func(ctx context.Context) (Provider, error)

// Lazy defers model loading until the first Embed call.
//
// Concurrent first callers block on a single shared load. A successful load is
// kept for the life of the process; a failed load is not cached, so the next
// request tries again.
type Lazy struct {
	name    string
	model   string
	factory Factory
	logger  *slog.Logger

	group singleflight.Group
	mu    sync.RWMutex
	inner Provider
	loads int
}

// NewLazy wraps factory. name and model describe the provider before it is loaded.
func NewLazy(name, model string, factory Factory, logger *slog.Logger) *Lazy {
	return &Lazy{name: name, model: model, factory: factory, logger: logger}
}

// Name returns the provider name.
func (l *Lazy) Name() string { return l.name }

// Model returns the model identifier.
func (l *Lazy) Model() string { return l.model }

// Ready reports whether the model has been loaded.
func (l *Lazy) Ready() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.inner != nil
}

// Loads returns how many times the factory has run.
func (l *Lazy) Loads() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.loads
}

// Embed loads the model if needed and embeds texts.
func (l *Lazy) Embed(ctx context.Context, texts []string) ([]pgvector.Vector, error) {
	if len(texts) == 0 {
		return []pgvector.Vector{}, nil
	}

	p, err := l.provider(ctx)
	if err != nil {
		return nil, err
	}

	vecs, err := p.Embed(ctx, texts)
	if err != nil {
		metrics.EmbeddingRequests.WithLabelValues(l.name, "error").Inc()
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}
	metrics.EmbeddingRequests.WithLabelValues(l.name, "ok").Inc()
	return vecs, nil
}

func (l *Lazy) provider(ctx context.Context) (Provider, error) {
	l.mu.RLock()
	p := l.inner
	l.mu.RUnlock()
	if p != nil {
		return p, nil
	}

	// The load outlives any single caller: a cancelled request stops waiting
	// but does not abort the load the other callers share.
	ch := l.group.DoChan("load", func() (any, error) {
		l.mu.RLock()
		existing := l.inner
		l.mu.RUnlock()
		if existing != nil {
			return existing, nil
		}

		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), LoadTimeout)
		defer cancel()

		l.logger.Info("loading embedding model", "provider", l.name, "model", l.model)
		loaded, err := l.factory(loadCtx)

		l.mu.Lock()
		l.loads++
		if err == nil {
			l.inner = loaded
		}
		l.mu.Unlock()

		if err != nil {
			metrics.ModelLoads.WithLabelValues(l.name, "error").Inc()
			l.logger.Warn("embedding model load failed", "provider", l.name, "model", l.model, "error", err)
			return nil, err
		}
		metrics.ModelLoads.WithLabelValues(l.name, "ok").Inc()
		l.logger.Info("embedding model loaded", "provider", l.name, "model", l.model)
		return loaded, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, res.Err)
		}
		return res.Val.(Provider), nil
	}
}
