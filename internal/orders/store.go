// Package orders persists submission records so fulfillment can find
// every sale, including those whose upload only produced a placeholder.
package orders

import (
	"context"
	"database/sql"
	"fmt"
)

// Submission statuses.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Record is one submission outcome.
type Record struct {
	ID                string
	ModelName         string
	Material          string
	Quantity          int
	FinalPrice        float64
	SessionID         string
	Status            string
	StoragePath       string
	DownloadURL       string
	UploadPlaceholder bool
}

// Summary is the back-office listing row.
type Summary struct {
	ID         string
	CreatedAt  string
	ModelName  string
	Material   string
	Quantity   int
	FinalPrice float64
	Status     string
	NeedsFile  bool
}

// Store reads and writes submission records in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore returns a Store backed by db.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Insert writes a new submission record.
func (s *Store) Insert(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO orders (id, model_name, material, quantity, final_price, session_id, status, storage_path, download_url, upload_placeholder)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.ModelName, rec.Material, rec.Quantity, rec.FinalPrice,
		rec.SessionID, rec.Status, rec.StoragePath, rec.DownloadURL, rec.UploadPlaceholder)
	if err != nil {
		return fmt.Errorf("insert order %s: %w", rec.ID, err)
	}
	return nil
}

// RecordUploadOutcome updates the file reference of an existing
// submission once its upload settles. A placeholder leaves the order
// flagged for reconciliation.
func (s *Store) RecordUploadOutcome(ctx context.Context, id, storagePath, downloadURL string, placeholder bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET
			storage_path = ?,
			download_url = ?,
			upload_placeholder = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, storagePath, downloadURL, placeholder, id)
	if err != nil {
		return fmt.Errorf("record upload outcome for %s: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("record upload outcome for %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("record upload outcome: order %s not found", id)
	}
	return nil
}

// List returns submissions newest first, optionally filtered by model
// name or material.
func (s *Store) List(ctx context.Context, query string) ([]Summary, error) {
	search := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, model_name, material, quantity, final_price, status, upload_placeholder
		FROM orders
		WHERE (? = '' OR model_name LIKE ? OR material LIKE ?)
		ORDER BY datetime(created_at) DESC, id DESC
	`, query, search, search)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	summaries := make([]Summary, 0)
	for rows.Next() {
		var item Summary
		if err := rows.Scan(&item.ID, &item.CreatedAt, &item.ModelName, &item.Material,
			&item.Quantity, &item.FinalPrice, &item.Status, &item.NeedsFile); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		summaries = append(summaries, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}

	return summaries, nil
}
