package store

import (
	"context"
	"fmt"
)

// Asana is a raw catalog record from the asana_list table. Fields are stored
// best-effort: age is free text ("12", "All", ""), gender may be empty.
type Asana struct {
	ID                string   `json:"id"`
	Asana             string   `json:"asana"`
	Age               string   `json:"age"`
	Gender            string   `json:"gender"`
	HealthBenefits    []string `json:"health_benefits"`
	PoseDirection     []string `json:"pose_direction"`
	Contraindications []string `json:"contraindications"`
	ImageURL          string   `json:"image_url"`
}

// AsanaStore reads the pose catalog.
type AsanaStore struct {
	db *DB
}

// NewAsanaStore creates a new AsanaStore.
func NewAsanaStore(db *DB) *AsanaStore {
	return &AsanaStore{db: db}
}

// ListAsanas returns every catalog record in catalog order.
func (s *AsanaStore) ListAsanas(ctx context.Context) ([]Asana, error) {
	return ListAsanas(ctx, s.db.DBTX())
}

// Count returns the number of catalog records.
func (s *AsanaStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM asana_list`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting asanas: %w", err)
	}
	return n, nil
}

// ListAsanas reads all catalog records ordered by their catalog position.
func ListAsanas(ctx context.Context, db DBTX) ([]Asana, error) {
	rows, err := db.Query(ctx, `
		SELECT id::text,
		       COALESCE(asana, ''),
		       COALESCE(age, ''),
		       COALESCE(gender, ''),
		       COALESCE(health_benefits, '{}'),
		       COALESCE(pose_direction, '{}'),
		       COALESCE(contraindications, '{}'),
		       COALESCE(image_url, '')
		FROM asana_list
		ORDER BY position, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list asanas: %w", err)
	}
	defer rows.Close()

	var result []Asana
	for rows.Next() {
		var a Asana
		if err := rows.Scan(&a.ID, &a.Asana, &a.Age, &a.Gender,
			&a.HealthBenefits, &a.PoseDirection, &a.Contraindications, &a.ImageURL); err != nil {
			return nil, fmt.Errorf("scan asana: %w", err)
		}
		result = append(result, a)
	}
	return result, rows.Err()
}
