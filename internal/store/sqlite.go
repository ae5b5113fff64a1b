package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLite is a Store backed by the card_slots table.
//
// Each card is one row, written whole via upsert; SQLite's journalling
// gives the per-record durability the Store contract requires. The
// connection is owned by the caller (shared with the audit mirror) and is
// not closed by this store.
type SQLite struct {
	db *sql.DB
}

// NewSQLite creates a SQLite-backed store on an open connection.
// The card_slots table must exist (created by migrations).
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

// Put durably writes data under id, replacing any previous value.
func (s *SQLite) Put(ctx context.Context, id string, data []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO card_slots (id, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		id, data, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("%w: upserting %s: %w", ErrWriteFailed, id, err)
	}
	return nil
}

// Get returns the data stored under id.
func (s *SQLite) Get(ctx context.Context, id string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT data FROM card_slots WHERE id = ?", id,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying %s: %w", id, err)
	}
	return data, nil
}

// Delete removes the record stored under id.
func (s *SQLite) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM card_slots WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("%w: deleting %s: %w", ErrWriteFailed, id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting %s: %w", id, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Enumerate returns all stored records in insertion order.
func (s *SQLite) Enumerate(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, data FROM card_slots ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("enumerating card slots: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Data); err != nil {
			return nil, fmt.Errorf("scanning card slot: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating card slots: %w", err)
	}
	return records, nil
}

// Close is a no-op; the database connection is owned by the caller.
func (s *SQLite) Close() error {
	return nil
}
