package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// RunRow represents a row in the runs table.
type RunRow struct {
	ID             int64      `json:"id"`
	Source         string     `json:"source"`
	Output         string     `json:"output"`
	SourceChecksum string     `json:"source_checksum"`
	Status         string     `json:"status"`
	Count          int        `json:"count"`
	Error          string     `json:"error,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
}

// EntryRow represents one converted recipe of a run.
type EntryRow struct {
	RunID    int64  `json:"run_id"`
	Entry    string `json:"entry"`
	Ordinal  int    `json:"ordinal"`
	Title    string `json:"title"`
	SourceID string `json:"source_id"`
	Target   string `json:"target"`
	Hash     string `json:"hash"`
}

// BeginRun inserts a running run and returns its id.
func (db *DB) BeginRun(r RunRow) (int64, error) {
	res, err := db.conn.Exec(`
		INSERT INTO runs (source, output, source_checksum, status, started_at)
		VALUES (?, ?, ?, ?, ?)
	`, r.Source, r.Output, r.SourceChecksum, StatusRunning, r.StartedAt)
	if err != nil {
		return 0, fmt.Errorf("ledger: begin run: %w", err)
	}
	return res.LastInsertId()
}

// RecordEntry appends a converted entry to a run.
func (db *DB) RecordEntry(e EntryRow) error {
	_, err := db.conn.Exec(`
		INSERT INTO entries (run_id, entry, ordinal, title, source_id, target, hash)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.RunID, e.Entry, e.Ordinal, e.Title, e.SourceID, e.Target, e.Hash)
	if err != nil {
		return fmt.Errorf("ledger: record entry: %w", err)
	}
	return nil
}

// FinishRun marks a run succeeded, or failed when runErr is non-nil.
// Entries of a failed run are removed since its archive was discarded.
func (db *DB) FinishRun(id int64, count int, runErr error, finished time.Time) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("ledger: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	status, msg := StatusSucceeded, ""
	if runErr != nil {
		status, msg = StatusFailed, runErr.Error()
		if _, err := tx.Exec(`DELETE FROM entries WHERE run_id = ?`, id); err != nil {
			return fmt.Errorf("ledger: clear entries: %w", err)
		}
	}
	if _, err := tx.Exec(`
		UPDATE runs SET status = ?, count = ?, error = ?, finished_at = ? WHERE id = ?
	`, status, count, msg, finished, id); err != nil {
		return fmt.Errorf("ledger: finish run: %w", err)
	}
	return tx.Commit()
}

// ListRuns returns the most recent runs first.
func (db *DB) ListRuns(limit int) ([]RunRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.conn.Query(`
		SELECT id, source, output, source_checksum, status, count, error, started_at, finished_at
		FROM runs ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: list runs: %w", err)
	}
	defer rows.Close()

	var out []RunRow
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRun returns one run, or sql.ErrNoRows wrapped when absent.
func (db *DB) GetRun(id int64) (*RunRow, error) {
	row := db.conn.QueryRow(`
		SELECT id, source, output, source_checksum, status, count, error, started_at, finished_at
		FROM runs WHERE id = ?
	`, id)
	r, err := scanRun(row)
	if err != nil {
		return nil, fmt.Errorf("ledger: get run %d: %w", id, err)
	}
	return &r, nil
}

// Entries returns the entries of a run in conversion order.
func (db *DB) Entries(runID int64) ([]EntryRow, error) {
	rows, err := db.conn.Query(`
		SELECT run_id, entry, ordinal, title, source_id, target, hash
		FROM entries WHERE run_id = ? ORDER BY rowid
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("ledger: entries: %w", err)
	}
	defer rows.Close()

	var out []EntryRow
	for rows.Next() {
		var e EntryRow
		if err := rows.Scan(&e.RunID, &e.Entry, &e.Ordinal, &e.Title, &e.SourceID, &e.Target, &e.Hash); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// LastChecksum returns the source checksum of the latest successful run that
// converted source into output, or empty string if there is none.
func (db *DB) LastChecksum(source, output string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`
		SELECT source_checksum FROM runs
		WHERE source = ? AND output = ? AND status = ?
		ORDER BY id DESC LIMIT 1
	`, source, output, StatusSucceeded).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("ledger: last checksum: %w", err)
	}
	return cs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (RunRow, error) {
	var r RunRow
	var finished sql.NullTime
	if err := s.Scan(&r.ID, &r.Source, &r.Output, &r.SourceChecksum, &r.Status, &r.Count, &r.Error, &r.StartedAt, &finished); err != nil {
		return RunRow{}, err
	}
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	return r, nil
}
