// Package embeddings provides a swappable interface for text embedding generation.
package embeddings

import (
	"context"
	"errors"

	pgvector "github.com/pgvector/pgvector-go"
)

// Dimensions is the embedding vector size (384 = all-MiniLM-L6-v2 family).
// OpenAI text-embedding-3-small also supports 384 via the dimensions parameter.
const Dimensions = 384

// DefaultModel is the sentence-transformers model fine-tuned on asana benefits.
const DefaultModel = "jashwanthakula26/yoga-asana-model"

// ErrModelUnavailable is returned when the model cannot be loaded or reached.
var ErrModelUnavailable = errors.New("embedding model unavailable")

// Provider generates text embeddings.
type Provider interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([]pgvector.Vector, error)

	// Name returns the provider name for logging.
	Name() string

	// Model returns the model identifier the vectors belong to.
	Model() string
}
