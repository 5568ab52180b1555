// Package drafts persists in-progress schedule edits so a screen can restore
// its working copy after a crash or reload. One draft per doctor.
package drafts

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"medsched/internal/flow"
)

// ErrNoDraft is returned when a doctor has no saved draft.
var ErrNoDraft = errors.New("no draft saved")

// DB wraps sql.DB for draft storage.
type DB struct {
	*sql.DB
}

// NewDB opens the draft database at path and runs migrations.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if err := createTables(db); err != nil {
		return nil, err
	}
	return &DB{db}, nil
}

func createTables(db *sql.DB) error {
	query := `CREATE TABLE IF NOT EXISTS schedule_drafts (
		doctor_id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		snapshot TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	)`
	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("create schedule_drafts: %w", err)
	}
	return nil
}

// SaveDraft upserts the doctor's draft.
func (db *DB) SaveDraft(ctx context.Context, snap flow.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO schedule_drafts (doctor_id, session_id, snapshot, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(doctor_id) DO UPDATE SET
			session_id = excluded.session_id,
			snapshot = excluded.snapshot,
			updated_at = excluded.updated_at`,
		snap.DoctorID, snap.ID, string(data), time.Now(),
	)
	return err
}

// LoadDraft returns the doctor's saved draft.
func (db *DB) LoadDraft(ctx context.Context, doctorID string) (flow.Snapshot, error) {
	var data string
	err := db.QueryRowContext(ctx,
		"SELECT snapshot FROM schedule_drafts WHERE doctor_id = ?",
		doctorID,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return flow.Snapshot{}, ErrNoDraft
	}
	if err != nil {
		return flow.Snapshot{}, err
	}

	var snap flow.Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return flow.Snapshot{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return snap, nil
}

// DeleteDraft removes the doctor's draft, if any.
func (db *DB) DeleteDraft(ctx context.Context, doctorID string) error {
	_, err := db.ExecContext(ctx,
		"DELETE FROM schedule_drafts WHERE doctor_id = ?", doctorID)
	return err
}

// CleanupStale removes drafts idle longer than maxAge and returns how many
// were removed.
func (db *DB) CleanupStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	res, err := db.ExecContext(ctx,
		"DELETE FROM schedule_drafts WHERE updated_at < ?",
		time.Now().Add(-maxAge),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
