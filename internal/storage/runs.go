package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"librarydesk/internal/domain"
)

// RunStore persists import and export runs.
type RunStore struct {
	db *DB
}

// NewRunStore creates a new RunStore.
func NewRunStore(db *DB) *RunStore {
	return &RunStore{db: db}
}

// ErrRunNotFound is returned by GetRun for an unknown id.
var ErrRunNotFound = errors.New("run not found")

// SaveRun inserts a finished run together with its row errors. An empty ID
// is filled with a new uuid.
func (s *RunStore) SaveRun(run *domain.Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	tx, err := s.db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs (id, kind, trigger_type, source, target, started_at, finished_at,
		 status, rows_read, rows_written, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Kind), run.Trigger, run.Source, run.Target, run.StartedAt.UTC(), run.FinishedAt.UTC(),
		run.Status, run.RowsRead, run.RowsWritten, run.Error,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for i, msg := range run.Errors {
		if _, err := tx.Exec(`INSERT INTO run_errors (run_id, position, message) VALUES (?, ?, ?)`, run.ID, i, msg); err != nil {
			return fmt.Errorf("insert run error: %w", err)
		}
	}
	return tx.Commit()
}

const runColumns = `id, kind, trigger_type, source, target, started_at, finished_at,
	status, rows_read, rows_written, error`

func scanRun(row interface{ Scan(...any) error }) (domain.Run, error) {
	var r domain.Run
	err := row.Scan(&r.ID, &r.Kind, &r.Trigger, &r.Source, &r.Target, &r.StartedAt, &r.FinishedAt,
		&r.Status, &r.RowsRead, &r.RowsWritten, &r.Error)
	return r, err
}

// GetRun returns a run with its row errors.
func (s *RunStore) GetRun(id string) (*domain.Run, error) {
	r, err := scanRun(s.db.conn.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.conn.Query(`SELECT message FROM run_errors WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var msg string
		if err := rows.Scan(&msg); err != nil {
			return nil, err
		}
		r.Errors = append(r.Errors, msg)
	}
	return &r, rows.Err()
}

// ListRuns returns the most recent runs first. An empty kind lists both.
// Row errors are not loaded; use GetRun for those.
func (s *RunStore) ListRuns(kind domain.RunKind, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.conn.Query(
		`SELECT `+runColumns+` FROM runs
		 WHERE ? = '' OR kind = ?
		 ORDER BY started_at DESC LIMIT ?`,
		string(kind), string(kind), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []domain.Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// PruneRuns keeps the newest keep runs and deletes the rest.
func (s *RunStore) PruneRuns(keep int) (int, error) {
	tx, err := s.db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	const stale = `SELECT id FROM runs ORDER BY started_at DESC LIMIT -1 OFFSET ?`
	if _, err := tx.Exec(`DELETE FROM run_errors WHERE run_id IN (`+stale+`)`, keep); err != nil {
		return 0, err
	}
	res, err := tx.Exec(`DELETE FROM runs WHERE id IN (`+stale+`)`, keep)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), tx.Commit()
}

// LatestRunID returns the id of the most recent run, or "" when there are
// none. The console polls it to notice runs made by other processes.
func (s *RunStore) LatestRunID() (string, error) {
	var id string
	err := s.db.conn.QueryRow(`SELECT id FROM runs ORDER BY started_at DESC, rowid DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return id, err
}
