package store

import (
	"context"
	"fmt"
	"time"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	ActionRecommendPreview AuditAction = "recommendation.preview"
	ActionRecommendSend    AuditAction = "recommendation.send"
	ActionCatalogRefresh   AuditAction = "catalog.refresh"
)

// AuditEntry represents an audit log record. Metadata holds counts and
// outcome codes only, never the user's health concern or address.
type AuditEntry struct {
	ID        string         `json:"id"`
	Action    AuditAction    `json:"action"`
	RequestID *string        `json:"request_id,omitempty"`
	IPAddress *string        `json:"ip_address,omitempty"`
	Success   bool           `json:"success"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditStore provides audit logging operations.
type AuditStore struct {
	db *DB
}

// NewAuditStore creates a new AuditStore.
func NewAuditStore(db *DB) *AuditStore {
	return &AuditStore{db: db}
}

// Log writes an audit log entry.
func (s *AuditStore) Log(ctx context.Context, e AuditEntry) error {
	return InsertAuditEntry(ctx, s.db.DBTX(), e)
}

// Query returns recent entries, newest first, optionally filtered by action.
func (s *AuditStore) Query(ctx context.Context, action *AuditAction, limit int) ([]AuditEntry, error) {
	return QueryAuditEntries(ctx, s.db.DBTX(), action, limit)
}

// InsertAuditEntry writes e using the given DBTX.
func InsertAuditEntry(ctx context.Context, db DBTX, e AuditEntry) error {
	_, err := db.Exec(ctx,
		`INSERT INTO audit_log (action, request_id, ip_address, success, metadata)
		 VALUES ($1, $2, $3, $4, $5)`,
		e.Action, e.RequestID, e.IPAddress, e.Success, e.Metadata,
	)
	if err != nil {
		return fmt.Errorf("writing audit log: %w", err)
	}
	return nil
}

// QueryAuditEntries reads audit entries using the given DBTX.
func QueryAuditEntries(ctx context.Context, db DBTX, action *AuditAction, limit int) ([]AuditEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := `SELECT id::text, action, request_id, ip_address, success, metadata, created_at
		FROM audit_log WHERE 1=1`
	var args []any
	argN := 1

	if action != nil {
		query += fmt.Sprintf(" AND action = $%d", argN)
		args = append(args, *action)
		argN++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", argN)
	args = append(args, limit)

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer rows.Close()

	entries := []AuditEntry{}
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.Action, &e.RequestID, &e.IPAddress,
			&e.Success, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
