package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

// BenefitEmbedding is a cached vector for one benefit label under one model.
type BenefitEmbedding struct {
	Label     string          `json:"label"`
	Model     string          `json:"model"`
	Embedding pgvector.Vector `json:"-"`
	TextHash  string          `json:"text_hash"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NearestBenefit is returned by nearest-neighbor queries over benefit labels.
type NearestBenefit struct {
	Label    string  `json:"label"`
	Distance float64 `json:"distance"`
}

// BenefitEmbeddingStore persists label embeddings so a restart does not have to
// re-embed the whole vocabulary.
type BenefitEmbeddingStore struct {
	db *DB
}

// NewBenefitEmbeddingStore creates a new BenefitEmbeddingStore.
func NewBenefitEmbeddingStore(db *DB) *BenefitEmbeddingStore {
	return &BenefitEmbeddingStore{db: db}
}

// Get returns the cached embeddings for labels under model, keyed by label.
func (s *BenefitEmbeddingStore) Get(ctx context.Context, model string, labels []string) (map[string]*BenefitEmbedding, error) {
	return GetBenefitEmbeddings(ctx, s.db.DBTX(), model, labels)
}

// Upsert stores embeddings in a single transaction.
func (s *BenefitEmbeddingStore) Upsert(ctx context.Context, embeddings []*BenefitEmbedding) error {
	if len(embeddings) == 0 {
		return nil
	}
	return s.db.WithTx(ctx, func(tx pgx.Tx) error {
		return UpsertBenefitEmbeddings(ctx, tx, embeddings)
	})
}

// UpsertBenefitEmbeddings upserts each embedding, stopping at the first failure.
func UpsertBenefitEmbeddings(ctx context.Context, db DBTX, embeddings []*BenefitEmbedding) error {
	for _, e := range embeddings {
		if err := UpsertBenefitEmbedding(ctx, db, e); err != nil {
			return err
		}
	}
	return nil
}

// Nearest returns the k labels nearest to vec by squared L2 distance.
func (s *BenefitEmbeddingStore) Nearest(ctx context.Context, model string, labels []string, vec pgvector.Vector, k int) ([]NearestBenefit, error) {
	return NearestBenefits(ctx, s.db.DBTX(), model, labels, vec, k)
}

// UpsertBenefitEmbedding inserts or updates the embedding for a label.
func UpsertBenefitEmbedding(ctx context.Context, db DBTX, e *BenefitEmbedding) error {
	err := db.QueryRow(ctx, `
		INSERT INTO benefit_embeddings (label, model, embedding, text_hash)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (label, model) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			text_hash = EXCLUDED.text_hash,
			updated_at = now()
		RETURNING created_at, updated_at
	`, e.Label, e.Model, e.Embedding, e.TextHash).
		Scan(&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert benefit embedding %q: %w", e.Label, err)
	}
	return nil
}

// GetBenefitEmbeddings fetches cached embeddings for the given labels.
func GetBenefitEmbeddings(ctx context.Context, db DBTX, model string, labels []string) (map[string]*BenefitEmbedding, error) {
	rows, err := db.Query(ctx, `
		SELECT label, model, embedding, text_hash, created_at, updated_at
		FROM benefit_embeddings
		WHERE model = $1 AND label = ANY($2)
	`, model, labels)
	if err != nil {
		return nil, fmt.Errorf("get benefit embeddings: %w", err)
	}
	defer rows.Close()

	result := make(map[string]*BenefitEmbedding, len(labels))
	for rows.Next() {
		e := &BenefitEmbedding{}
		if err := rows.Scan(&e.Label, &e.Model, &e.Embedding, &e.TextHash, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan benefit embedding: %w", err)
		}
		result[e.Label] = e
	}
	return result, rows.Err()
}

// NearestBenefits runs an exact L2 search over the cached embeddings of labels.
// pgvector's <-> yields the Euclidean distance; it is squared here so callers
// see the same scale as the in-memory index.
func NearestBenefits(ctx context.Context, db DBTX, model string, labels []string, vec pgvector.Vector, k int) ([]NearestBenefit, error) {
	rows, err := db.Query(ctx, `
		SELECT label, power(embedding <-> $1, 2) AS distance
		FROM benefit_embeddings
		WHERE model = $2 AND label = ANY($3)
		ORDER BY embedding <-> $1, label
		LIMIT $4
	`, vec, model, labels, k)
	if err != nil {
		return nil, fmt.Errorf("nearest benefits: %w", err)
	}
	defer rows.Close()

	var result []NearestBenefit
	for rows.Next() {
		var n NearestBenefit
		if err := rows.Scan(&n.Label, &n.Distance); err != nil {
			return nil, fmt.Errorf("scan nearest benefit: %w", err)
		}
		result = append(result, n)
	}
	return result, rows.Err()
}
