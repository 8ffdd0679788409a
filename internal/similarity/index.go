// Package similarity provides nearest-neighbor search over benefit label
// embeddings.
//
// The benefit vocabulary of a curated catalog is small (tens to low hundreds of
// labels), so the default index is an exact brute-force L2 scan. Callers only
// see the Index interface, so an approximate or database-backed index can be
// swapped in without touching them.
package similarity

import (
	"context"
	"errors"
	"fmt"
	"sort"

	pgvector "github.com/pgvector/pgvector-go"
	"gonum.org/v1/gonum/floats"
)

var (
	// ErrLengthMismatch is returned when labels and vectors differ in count.
	ErrLengthMismatch = errors.New("labels and embeddings differ in length")

	// ErrDimensionMismatch is returned when vectors do not share one dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Neighbor is a vocabulary entry and its squared Euclidean distance to a query.
type Neighbor struct {
	Label    string  `json:"label"`
	Distance float64 `json:"distance"`
}

// Index answers k-nearest-neighbor queries over a fixed label set.
type Index interface {
	// Query returns at most k neighbors of vec ascending by distance. k is
	// clamped to Len().
	Query(ctx context.Context, vec pgvector.Vector, k int) ([]Neighbor, error)

	// Len returns the number of indexed labels.
	Len() int
}

// FlatL2 is an exact in-memory index using squared L2 distance.
type FlatL2 struct {
	labels []string
	rows   [][]float64
	dim    int
}

// NewFlatL2 indexes vectors[i] under labels[i].
func NewFlatL2(labels []string, vectors []pgvector.Vector) (*FlatL2, error) {
	if len(labels) != len(vectors) {
		return nil, fmt.Errorf("%w: %d labels, %d embeddings", ErrLengthMismatch, len(labels), len(vectors))
	}

	idx := &FlatL2{
		labels: append([]string(nil), labels...),
		rows:   make([][]float64, len(vectors)),
	}
	for i, v := range vectors {
		row := toFloat64(v.Slice())
		if i == 0 {
			idx.dim = len(row)
		} else if len(row) != idx.dim {
			return nil, fmt.Errorf("%w: label %q has %d dimensions, want %d", ErrDimensionMismatch, labels[i], len(row), idx.dim)
		}
		idx.rows[i] = row
	}
	return idx, nil
}

// Len returns the number of indexed labels.
func (f *FlatL2) Len() int { return len(f.labels) }

// Dimensions returns the vector size, or 0 for an empty index.
func (f *FlatL2) Dimensions() int { return f.dim }

// Query scans every row. Ties keep vocabulary order.
func (f *FlatL2) Query(_ context.Context, vec pgvector.Vector, k int) ([]Neighbor, error) {
	if k > len(f.labels) {
		k = len(f.labels)
	}
	if k <= 0 {
		return []Neighbor{}, nil
	}

	q := toFloat64(vec.Slice())
	if len(q) != f.dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d", ErrDimensionMismatch, len(q), f.dim)
	}

	neighbors := make([]Neighbor, len(f.rows))
	diff := make([]float64, f.dim)
	for i, row := range f.rows {
		floats.SubTo(diff, row, q)
		neighbors[i] = Neighbor{Label: f.labels[i], Distance: floats.Dot(diff, diff)}
	}

	sort.SliceStable(neighbors, func(i, j int) bool {
		return neighbors[i].Distance < neighbors[j].Distance
	})
	return neighbors[:k], nil
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
