package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Record is one served prediction.
type Record struct {
	ID         int64     `json:"id"`
	RequestID  string    `json:"request_id"`
	Operator   string    `json:"OPERA"`
	FlightType string    `json:"TIPOVUELO"`
	Month      int       `json:"MES"`
	Label      int       `json:"predict"`
	Fallback   bool      `json:"fallback"`
	CreatedAt  time.Time `json:"created_at"`
}

// History is a SQLite-backed log of served predictions.
type History struct {
	db  *sql.DB
	now func() time.Time
}

// OpenHistory opens (creating if needed) the database at path.
func OpenHistory(path string) (*History, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %q: %w", path, err)
	}
	// SQLite serialises writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	h := &History{db: db, now: time.Now}
	if err := h.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: init schema: %w", err)
	}
	return h, nil
}

// Close closes the database.
func (h *History) Close() error {
	return h.db.Close()
}

func (h *History) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS predictions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			request_id TEXT NOT NULL,
			opera TEXT NOT NULL,
			tipovuelo TEXT NOT NULL,
			mes INTEGER NOT NULL,
			label INTEGER NOT NULL,
			fallback INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_predictions_created_at ON predictions(created_at)`,
	}
	for _, q := range queries {
		if _, err := h.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// Append stores records in one transaction. CreatedAt is set to the current
// time when zero.
func (h *History) Append(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO predictions
		(request_id, opera, tipovuelo, mes, label, fallback, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare insert: %w", err)
	}
	defer stmt.Close()

	now := h.now()
	for _, r := range records {
		at := r.CreatedAt
		if at.IsZero() {
			at = now
		}
		if _, err := stmt.ExecContext(ctx, r.RequestID, r.Operator, r.FlightType, r.Month,
			r.Label, r.Fallback, at.UnixNano()); err != nil {
			return fmt.Errorf("store: insert: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (h *History) Recent(ctx context.Context, limit int) ([]Record, error) {
	rows, err := h.db.QueryContext(ctx, `SELECT id, request_id, opera, tipovuelo, mes, label, fallback, created_at
		FROM predictions ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: query recent: %w", err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		var r Record
		var at int64
		if err := rows.Scan(&r.ID, &r.RequestID, &r.Operator, &r.FlightType, &r.Month,
			&r.Label, &r.Fallback, &at); err != nil {
			return nil, fmt.Errorf("store: scan: %w", err)
		}
		r.CreatedAt = time.Unix(0, at).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// Prune deletes records created before cutoff and returns how many were removed.
func (h *History) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := h.db.ExecContext(ctx, `DELETE FROM predictions WHERE created_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("store: prune: %w", err)
	}
	return res.RowsAffected()
}
