package embeddings

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	pgvector "github.com/pgvector/pgvector-go"
)

// SimpleProvider generates embeddings using a simple keyword hashing approach.
// Not semantically meaningful, but deterministic and offline, which is enough
// for development and for matching queries that share words with a label.
type SimpleProvider struct{}

// NewSimpleProvider creates a new SimpleProvider.
func NewSimpleProvider() *SimpleProvider {
	return &SimpleProvider{}
}

// Name returns the provider name.
func (p *SimpleProvider) Name() string {
	return "simple"
}

// Model returns the model identifier.
func (p *SimpleProvider) Model() string {
	return "simple-fnv-384"
}

// Embed generates a pseudo-embedding for every text.
func (p *SimpleProvider) Embed(_ context.Context, texts []string) ([]pgvector.Vector, error) {
	out := make([]pgvector.Vector, len(texts))
	for i, text := range texts {
		out[i] = pgvector.NewVector(hashEmbed(text))
	}
	return out, nil
}

// hashEmbed hashes words and bigrams into vector dimensions, then L2-normalizes.
func hashEmbed(text string) []float32 {
	vec := make([]float32, Dimensions)
	words := tokenize(text)

	for _, word := range words {
		vec[bucket(word)] += 1.0
	}
	for i := 0; i < len(words)-1; i++ {
		vec[bucket(words[i]+" "+words[i+1])] += 0.5
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
	return vec
}

func bucket(token string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(token))
	return h.Sum64() % uint64(Dimensions)
}

// tokenize splits text into lowercase word tokens.
func tokenize(text string) []string {
	text = strings.ToLower(text)
	for _, c := range ".,;:!?()[]{}\"'`~@#$%^&*+=|\\/<>" {
		text = strings.ReplaceAll(text, string(c), " ")
	}
	fields := strings.Fields(text)
	var result []string
	for _, f := range fields {
		if len(f) >= 2 {
			result = append(result, f)
		}
	}
	return result
}
