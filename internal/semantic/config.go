// Package semantic maps a free-text health concern onto the catalog's benefit
// vocabulary using embeddings and a similarity index.
package semantic

import (
	"os"
	"strconv"
	"time"

	"github.com/MikeSquared-Agency/Sadhana/internal/similarity"
)

// DefaultMatchThreshold is the squared L2 distance below which a benefit label
// counts as a match. It was tuned for the default sentence-transformers model;
// a different model needs a different value.
const DefaultMatchThreshold = 0.6

// Config holds semantic layer configuration loaded from environment variables.
type Config struct {
	// MatchThreshold is the strict upper bound on query-to-label distance.
	MatchThreshold float64

	// IndexBackend selects the similarity index implementation.
	IndexBackend similarity.Backend

	// EmbedBatchSize caps the number of labels sent per embedding call.
	EmbedBatchSize int

	// CatalogRefreshInterval reloads the catalog periodically; 0 disables it.
	CatalogRefreshInterval time.Duration
}

// ConfigFromEnv loads semantic configuration from environment variables.
func ConfigFromEnv() Config {
	backend := similarity.Backend(envOrDefault("INDEX_BACKEND", string(similarity.BackendMemory)))
	if backend != similarity.BackendPGVector {
		backend = similarity.BackendMemory
	}
	batch := envIntOrDefault("EMBED_BATCH_SIZE", 50)
	if batch <= 0 {
		batch = 50
	}
	return Config{
		MatchThreshold:         envFloatOrDefault("MATCH_THRESHOLD", DefaultMatchThreshold),
		IndexBackend:           backend,
		EmbedBatchSize:         batch,
		CatalogRefreshInterval: envDurationOrDefault("CATALOG_REFRESH_INTERVAL", 0),
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloatOrDefault(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOrDefault(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
