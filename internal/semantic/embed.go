package semantic

import (
	"context"
	"fmt"
	"log/slog"

	pgvector "github.com/pgvector/pgvector-go"

	"github.com/MikeSquared-Agency/Sadhana/internal/embeddings"
	"github.com/MikeSquared-Agency/Sadhana/internal/store"
)

// EmbeddingCache persists label embeddings per model.
type EmbeddingCache interface {
	Get(ctx context.Context, model string, labels []string) (map[string]*store.BenefitEmbedding, error)
	Upsert(ctx context.Context, embeddings []*store.BenefitEmbedding) error
}

// VocabularyEmbedder produces embeddings for benefit labels, reusing cached
// vectors when a cache is configured.
type VocabularyEmbedder struct {
	provider  embeddings.Provider
	cache     EmbeddingCache
	batchSize int
	strict    bool
	logger    *slog.Logger
}

// NewVocabularyEmbedder creates an embedder. cache may be nil.
func NewVocabularyEmbedder(provider embeddings.Provider, cache EmbeddingCache, batchSize int, logger *slog.Logger) *VocabularyEmbedder {
	return &VocabularyEmbedder{provider: provider, cache: cache, batchSize: batchSize, logger: logger}
}

// RequirePersist makes a failed cache write an error. The pgvector index reads
// label vectors back from the database, so it cannot work without them.
func (v *VocabularyEmbedder) RequirePersist() *VocabularyEmbedder {
	v.strict = true
	return v
}

// Embed returns one vector per label in label order. Labels whose cached vector
// is missing or stale are embedded and written back to the cache.
func (v *VocabularyEmbedder) Embed(ctx context.Context, labels []string) ([]pgvector.Vector, error) {
	if v.cache == nil {
		return embedInBatches(ctx, v.provider, labelTexts(labels), v.batchSize)
	}

	model := v.provider.Model()
	cached, err := v.cache.Get(ctx, model, labels)
	if err != nil {
		v.logger.Warn("benefit embedding cache read failed, embedding everything", "error", err)
		cached = nil
	}

	out := make([]pgvector.Vector, len(labels))
	var missing []string
	var missingPos []int
	for i, label := range labels {
		if e, ok := cached[label]; ok && e.TextHash == TextHash(LabelText(label)) {
			out[i] = e.Embedding
			continue
		}
		missing = append(missing, label)
		missingPos = append(missingPos, i)
	}

	if len(missing) == 0 {
		v.logger.Debug("benefit embeddings served from cache", "count", len(labels))
		return out, nil
	}

	v.logger.Info("embedding benefit labels", "count", len(missing), "cached", len(labels)-len(missing))
	vecs, err := embedInBatches(ctx, v.provider, labelTexts(missing), v.batchSize)
	if err != nil {
		return nil, err
	}

	fresh := make([]*store.BenefitEmbedding, len(missing))
	for i, label := range missing {
		out[missingPos[i]] = vecs[i]
		fresh[i] = &store.BenefitEmbedding{
			Label:     label,
			Model:     model,
			Embedding: vecs[i],
			TextHash:  TextHash(LabelText(label)),
		}
	}

	if err := v.cache.Upsert(ctx, fresh); err != nil {
		if v.strict {
			return nil, fmt.Errorf("storing benefit embeddings: %w", err)
		}
		// The vectors are still valid for this process.
		v.logger.Warn("benefit embedding cache write failed", "error", err)
	}
	return out, nil
}

func labelTexts(labels []string) []string {
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = LabelText(l)
	}
	return out
}
