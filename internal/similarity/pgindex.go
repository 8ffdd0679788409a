package similarity

import (
	"context"

	pgvector "github.com/pgvector/pgvector-go"

	"github.com/MikeSquared-Agency/Sadhana/internal/store"
)

// NearestStore runs nearest-neighbor queries against stored label embeddings.
type NearestStore interface {
	Nearest(ctx context.Context, model string, labels []string, vec pgvector.Vector, k int) ([]store.NearestBenefit, error)
}

// PGIndex delegates search to pgvector. The label embeddings must already be
// stored for model; Builder guarantees that before handing one out.
type PGIndex struct {
	store  NearestStore
	model  string
	labels []string
}

// NewPGIndex creates an index over labels whose embeddings live in the database.
func NewPGIndex(s NearestStore, model string, labels []string) *PGIndex {
	return &PGIndex{store: s, model: model, labels: append([]string(nil), labels...)}
}

// Len returns the number of indexed labels.
func (p *PGIndex) Len() int { return len(p.labels) }

// Query returns the k nearest labels by squared L2 distance.
func (p *PGIndex) Query(ctx context.Context, vec pgvector.Vector, k int) ([]Neighbor, error) {
	if k > len(p.labels) {
		k = len(p.labels)
	}
	if k <= 0 {
		return []Neighbor{}, nil
	}

	rows, err := p.store.Nearest(ctx, p.model, p.labels, vec, k)
	if err != nil {
		return nil, err
	}
	out := make([]Neighbor, len(rows))
	for i, r := range rows {
		out[i] = Neighbor{Label: r.Label, Distance: r.Distance}
	}
	return out, nil
}
