package auditlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQLiteMirror persists ring positions to the audit_ring table so the
// buffer survives restarts. Each arena slot maps to one row keyed by
// position; the head and count cursor lives in audit_cursor.
type SQLiteMirror struct {
	db       *sql.DB
	capacity int
}

// NewSQLiteMirror creates a mirror over an opened database.
// capacity must match the ring it mirrors.
func NewSQLiteMirror(db *sql.DB, capacity int) *SQLiteMirror {
	return &SQLiteMirror{db: db, capacity: capacity}
}

// Record writes one ring slot and the cursor in a single transaction.
func (m *SQLiteMirror) Record(pos int, e Entry, head, count int) error {
	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrMirrorWrite, err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO audit_ring (pos, entry_id, at, kind, subject, mask)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(pos) DO UPDATE SET
			entry_id = excluded.entry_id,
			at = excluded.at,
			kind = excluded.kind,
			subject = excluded.subject,
			mask = excluded.mask
	`, pos, e.ID, e.At.UTC().Format(time.RFC3339Nano), string(e.Kind), e.Subject, e.Mask)
	if err != nil {
		return fmt.Errorf("%w: slot %d: %v", ErrMirrorWrite, pos, err)
	}

	_, err = tx.Exec(`
		INSERT INTO audit_cursor (id, head, count) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET head = excluded.head, count = excluded.count
	`, head, count)
	if err != nil {
		return fmt.Errorf("%w: cursor: %v", ErrMirrorWrite, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrMirrorWrite, err)
	}
	return nil
}

// Load reads the mirrored ring state back, returning slot-indexed
// entries plus the cursor. A mirror written against a different ring
// capacity is discarded and an empty state returned.
func (m *SQLiteMirror) Load(ctx context.Context) ([]Entry, int, int, error) {
	entries := make([]Entry, m.capacity)

	var head, count int
	err := m.db.QueryRowContext(ctx,
		`SELECT head, count FROM audit_cursor WHERE id = 1`,
	).Scan(&head, &count)
	if err == sql.ErrNoRows {
		return entries, 0, 0, nil
	}
	if err != nil {
		return nil, 0, 0, fmt.Errorf("auditlog: loading cursor: %w", err)
	}
	if head < 0 || head >= m.capacity || count < 0 || count > m.capacity {
		return entries, 0, 0, nil
	}

	rows, err := m.db.QueryContext(ctx,
		`SELECT pos, entry_id, at, kind, subject, mask FROM audit_ring WHERE pos < ?`,
		m.capacity,
	)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("auditlog: loading entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			pos  int
			at   string
			e    Entry
			kind string
		)
		if err := rows.Scan(&pos, &e.ID, &at, &kind, &e.Subject, &e.Mask); err != nil {
			return nil, 0, 0, fmt.Errorf("auditlog: scanning entry: %w", err)
		}
		stamp, err := time.Parse(time.RFC3339Nano, at)
		if err != nil {
			continue
		}
		e.At = stamp
		e.Kind = Kind(kind)
		entries[pos] = e
	}
	if err := rows.Err(); err != nil {
		return nil, 0, 0, fmt.Errorf("auditlog: reading entries: %w", err)
	}

	return entries, head, count, nil
}
