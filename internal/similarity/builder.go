package similarity

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

// Backend selects the index implementation.
type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendPGVector Backend = "pgvector"
)

// Vocabulary is the label set an index is built over.
type Vocabulary interface {
	Vocabulary() []string
	Fingerprint() string
}

// BuildTimeout bounds a single index build, including vocabulary embedding.
var BuildTimeout = 5 * time.Minute

// EmbedFunc returns one embedding per label, in label order.
type EmbedFunc func(ctx context.Context, labels []string) ([]pgvector.Vector, error)

// Builder builds the index lazily and caches it per vocabulary fingerprint.
// Concurrent callers during the first build wait for that build; a failed build
// is not cached.
type Builder struct {
	backend Backend
	embed   EmbedFunc
	nearest NearestStore
	model   string
	logger  *slog.Logger

	group       singleflight.Group
	mu          sync.RWMutex
	fingerprint string
	index       Index
	builds      int
}

// NewBuilder creates an in-memory index builder.
func NewBuilder(embed EmbedFunc, logger *slog.Logger) *Builder {
	return &Builder{backend: BackendMemory, embed: embed, logger: logger}
}

// NewPGVectorBuilder creates a builder whose indexes query pgvector.
func NewPGVectorBuilder(embed EmbedFunc, nearest NearestStore, model string, logger *slog.Logger) *Builder {
	return &Builder{backend: BackendPGVector, embed: embed, nearest: nearest, model: model, logger: logger}
}

// Backend returns the configured backend.
func (b *Builder) Backend() Backend { return b.backend }

// Ready reports whether an index has been built.
func (b *Builder) Ready() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.index != nil
}

// Builds returns how many indexes have been built successfully.
func (b *Builder) Builds() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.builds
}

// Get returns the index for vocab, building it if the vocabulary changed since
// the last build.
func (b *Builder) Get(ctx context.Context, vocab Vocabulary) (Index, error) {
	fp := vocab.Fingerprint()
	if idx := b.cached(fp); idx != nil {
		return idx, nil
	}

	// The build outlives any single caller so one cancelled request cannot
	// fail the others waiting on it.
	ch := b.group.DoChan(fp, func() (any, error) {
		if idx := b.cached(fp); idx != nil {
			return idx, nil
		}

		buildCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), BuildTimeout)
		defer cancel()

		idx, err := b.build(buildCtx, vocab.Vocabulary())
		if err != nil {
			metrics.IndexBuilds.WithLabelValues(string(b.backend), "error").Inc()
			return nil, err
		}
		metrics.IndexBuilds.WithLabelValues(string(b.backend), "ok").Inc()
		metrics.IndexSize.Set(float64(idx.Len()))

		b.mu.Lock()
		b.fingerprint = fp
		b.index = idx
		b.builds++
		b.mu.Unlock()

		b.logger.Info("similarity index built", "backend", b.backend, "labels", idx.Len())
		return idx, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Index), nil
	}
}

func (b *Builder) cached(fp string) Index {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.index != nil && b.fingerprint == fp {
		return b.index
	}
	return nil
}

func (b *Builder) build(ctx context.Context, labels []string) (Index, error) {
	var vectors []pgvector.Vector
	if len(labels) > 0 {
		var err error
		vectors, err = b.embed(ctx, labels)
		if err != nil {
			return nil, fmt.Errorf("embedding vocabulary: %w", err)
		}
	}

	switch b.backend {
	case BackendPGVector:
		if len(vectors) != len(labels) {
			return nil, fmt.Errorf("%w: %d labels, %d embeddings", ErrLengthMismatch, len(labels), len(vectors))
		}
		return NewPGIndex(b.nearest, b.model, labels), nil
	default:
		return NewFlatL2(labels, vectors)
	}
}
