package store

import (
	"context"
	"fmt"
)

// QuoteStore serves the yoga quotes shown on the home page.
type QuoteStore struct {
	db *DB
}

// NewQuoteStore creates a new QuoteStore.
func NewQuoteStore(db *DB) *QuoteStore {
	return &QuoteStore{db: db}
}

// Random returns up to n quotes in random order.
func (s *QuoteStore) Random(ctx context.Context, n int) ([]string, error) {
	return RandomQuotes(ctx, s.db.DBTX(), n)
}

// RandomQuotes samples up to n quotes without replacement.
func RandomQuotes(ctx context.Context, db DBTX, n int) ([]string, error) {
	if n <= 0 {
		return []string{}, nil
	}
	rows, err := db.Query(ctx, `SELECT quote FROM yoga_quotes ORDER BY random() LIMIT $1`, n)
	if err != nil {
		return nil, fmt.Errorf("random quotes: %w", err)
	}
	defer rows.Close()

	quotes := make([]string, 0, n)
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, fmt.Errorf("scan quote: %w", err)
		}
		quotes = append(quotes, q)
	}
	return quotes, rows.Err()
}
