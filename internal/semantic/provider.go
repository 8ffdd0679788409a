package semantic

import (
	"context"
	"fmt"

	pgvector "github.com/pgvector/pgvector-go"

	"github.com/MikeSquared-Agency/Sadhana/internal/embeddings"
)

// embedInBatches splits texts into chunks of at most size and embeds them in
// order. The result has one vector per text.
func embedInBatches(ctx context.Context, p embeddings.Provider, texts []string, size int) ([]pgvector.Vector, error) {
	if size <= 0 {
		size = len(texts)
	}
	out := make([]pgvector.Vector, 0, len(texts))
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		vecs, err := p.Embed(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("provider %s returned %d vectors for %d texts", p.Name(), len(vecs), end-start)
		}
		out = append(out, vecs...)
	}
	return out, nil
}
