package semantic

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MikeSquared-Agency/Sadhana/internal/embeddings"
	"github.com/MikeSquared-Agency/Sadhana/internal/similarity"
)

// IndexSource hands out the similarity index for a vocabulary.
type IndexSource interface {
	Get(ctx context.Context, vocab similarity.Vocabulary) (similarity.Index, error)
}

// Matcher finds the benefit labels closest to a free-text query.
type Matcher struct {
	provider  embeddings.Provider
	indexes   IndexSource
	threshold float64
	logger    *slog.Logger
}

// NewMatcher creates a matcher using threshold as the default cut-off.
func NewMatcher(provider embeddings.Provider, indexes IndexSource, threshold float64, logger *slog.Logger) *Matcher {
	return &Matcher{provider: provider, indexes: indexes, threshold: threshold, logger: logger}
}

// Threshold returns the default distance cut-off.
func (m *Matcher) Threshold() float64 { return m.threshold }

// Match returns the labels within the default threshold of query.
func (m *Matcher) Match(ctx context.Context, vocab similarity.Vocabulary, query string) ([]string, error) {
	return m.MatchWithThreshold(ctx, vocab, query, m.threshold)
}

// MatchWithThreshold returns every label whose distance to query is strictly
// below threshold, nearest first. No match is an empty slice, not an error.
func (m *Matcher) MatchWithThreshold(ctx context.Context, vocab similarity.Vocabulary, query string, threshold float64) ([]string, error) {
	neighbors, err := m.Neighbors(ctx, vocab, query, threshold)
	if err != nil {
		return nil, err
	}
	labels := make([]string, len(neighbors))
	for i, n := range neighbors {
		labels[i] = n.Label
	}
	return labels, nil
}

// Neighbors is MatchWithThreshold with distances kept.
func (m *Matcher) Neighbors(ctx context.Context, vocab similarity.Vocabulary, query string, threshold float64) ([]similarity.Neighbor, error) {
	size := len(vocab.Vocabulary())
	if size == 0 {
		return []similarity.Neighbor{}, nil
	}

	idx, err := m.indexes.Get(ctx, vocab)
	if err != nil {
		return nil, fmt.Errorf("building similarity index: %w", err)
	}

	vecs, err := m.provider.Embed(ctx, []string{NormalizeQuery(query)})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedding query: provider returned %d vectors", len(vecs))
	}

	all, err := idx.Query(ctx, vecs[0], size)
	if err != nil {
		return nil, fmt.Errorf("querying similarity index: %w", err)
	}

	matched := make([]similarity.Neighbor, 0, len(all))
	for _, n := range all {
		if n.Distance < threshold {
			matched = append(matched, n)
		}
	}

	m.logger.Debug("benefit match", "candidates", len(all), "matched", len(matched), "threshold", threshold)
	return matched, nil
}
