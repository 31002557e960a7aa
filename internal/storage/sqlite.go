// Package storage persists run history to SQLite so `testforge report`
// and `testforge compare` can look back across runs without rerunning
// any tests.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNoRuns is returned by GetLatestRun when the store is empty.
var ErrNoRuns = errors.New("storage: no runs recorded")

// SQLiteStore implements Store on top of a single SQLite file.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (creating if necessary) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("storage: opening database: %w", err)
	}
	return &SQLiteStore{db: db, path: path}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at DATETIME NOT NULL,
	duration_ns INTEGER NOT NULL,
	profile_id TEXT NOT NULL,
	passed INTEGER NOT NULL,
	failed INTEGER NOT NULL,
	skipped INTEGER NOT NULL,
	flaky INTEGER NOT NULL,
	leaky INTEGER NOT NULL,
	timed_out INTEGER NOT NULL,
	exec_fail INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);

CREATE TABLE IF NOT EXISTS attempts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id INTEGER NOT NULL,
	test_key TEXT NOT NULL,
	binary_id TEXT NOT NULL,
	test_name TEXT NOT NULL,
	attempt_index INTEGER NOT NULL,
	outcome TEXT NOT NULL,
	exit_code INTEGER NOT NULL,
	elapsed_ns INTEGER NOT NULL,
	started_at DATETIME NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_attempts_run_id ON attempts(run_id);
CREATE INDEX IF NOT EXISTS idx_attempts_test_key ON attempts(test_key);
`

// Init creates the schema if it doesn't already exist.
func (s *SQLiteStore) Init() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("storage: creating schema: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveRun inserts run and its attempts inside one transaction.
func (s *SQLiteStore) SaveRun(run RunRecord) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("storage: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO runs (started_at, duration_ns, profile_id, passed, failed, skipped, flaky, leaky, timed_out, exec_fail)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.StartedAt, run.Duration.Nanoseconds(), run.ProfileID,
		run.Stats.Passed, run.Stats.Failed, run.Stats.Skipped, run.Stats.Flaky,
		run.Stats.Leaky, run.Stats.TimedOut, run.Stats.ExecFail,
	)
	if err != nil {
		return 0, fmt.Errorf("storage: inserting run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.Prepare(
		`INSERT INTO attempts (run_id, test_key, binary_id, test_name, attempt_index, outcome, exit_code, elapsed_ns, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, fmt.Errorf("storage: preparing attempt insert: %w", err)
	}
	defer stmt.Close()

	for _, a := range run.Attempts {
		if _, err := stmt.Exec(runID, a.TestKey, a.BinaryID, a.TestName, a.Index, a.Outcome, a.ExitCode, a.Elapsed.Nanoseconds(), a.StartedAt); err != nil {
			return 0, fmt.Errorf("storage: inserting attempt for %q: %w", a.TestKey, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("storage: committing run: %w", err)
	}
	return runID, nil
}

// GetLatestRun returns the most recently started run, with attempts.
func (s *SQLiteStore) GetLatestRun() (RunRecord, error) {
	row := s.db.QueryRow(`SELECT id FROM runs ORDER BY started_at DESC LIMIT 1`)
	var id int64
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RunRecord{}, ErrNoRuns
		}
		return RunRecord{}, fmt.Errorf("storage: finding latest run: %w", err)
	}
	return s.GetRun(id)
}

// GetRun loads one run and all of its attempts.
func (s *SQLiteStore) GetRun(id int64) (RunRecord, error) {
	row := s.db.QueryRow(
		`SELECT id, started_at, duration_ns, profile_id, passed, failed, skipped, flaky, leaky, timed_out, exec_fail
		 FROM runs WHERE id = ?`, id,
	)
	var run RunRecord
	var durationNs int64
	if err := row.Scan(&run.ID, &run.StartedAt, &durationNs, &run.ProfileID,
		&run.Stats.Passed, &run.Stats.Failed, &run.Stats.Skipped, &run.Stats.Flaky,
		&run.Stats.Leaky, &run.Stats.TimedOut, &run.Stats.ExecFail); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RunRecord{}, fmt.Errorf("storage: run %d: %w", id, ErrNoRuns)
		}
		return RunRecord{}, fmt.Errorf("storage: loading run %d: %w", id, err)
	}
	run.Duration = time.Duration(durationNs)

	rows, err := s.db.Query(
		`SELECT test_key, binary_id, test_name, attempt_index, outcome, exit_code, elapsed_ns, started_at
		 FROM attempts WHERE run_id = ? ORDER BY id ASC`, id,
	)
	if err != nil {
		return RunRecord{}, fmt.Errorf("storage: loading attempts for run %d: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var a AttemptRecord
		var elapsedNs int64
		a.RunID = id
		if err := rows.Scan(&a.TestKey, &a.BinaryID, &a.TestName, &a.Index, &a.Outcome, &a.ExitCode, &elapsedNs, &a.StartedAt); err != nil {
			return RunRecord{}, fmt.Errorf("storage: scanning attempt: %w", err)
		}
		a.Elapsed = time.Duration(elapsedNs)
		run.Attempts = append(run.Attempts, a)
	}
	return run, rows.Err()
}

// GetHistory returns the attempts for testKey, oldest first; a
// positive limit keeps only the oldest limit attempts.
func (s *SQLiteStore) GetHistory(testKey string, limit int) ([]AttemptRecord, error) {
	query := `SELECT run_id, test_key, binary_id, test_name, attempt_index, outcome, exit_code, elapsed_ns, started_at
	          FROM attempts WHERE test_key = ? ORDER BY started_at ASC`
	args := []interface{}{testKey}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: querying history for %q: %w", testKey, err)
	}
	defer rows.Close()

	var out []AttemptRecord
	for rows.Next() {
		var a AttemptRecord
		var elapsedNs int64
		if err := rows.Scan(&a.RunID, &a.TestKey, &a.BinaryID, &a.TestName, &a.Index, &a.Outcome, &a.ExitCode, &elapsedNs, &a.StartedAt); err != nil {
			return nil, fmt.Errorf("storage: scanning history row: %w", err)
		}
		a.Elapsed = time.Duration(elapsedNs)
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListRuns returns run summaries, most recent first.
func (s *SQLiteStore) ListRuns(limit int) ([]RunSummary, error) {
	query := `SELECT id, started_at, duration_ns, profile_id, passed, failed FROM runs ORDER BY started_at DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: listing runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var durationNs int64
		if err := rows.Scan(&r.ID, &r.StartedAt, &durationNs, &r.ProfileID, &r.Passed, &r.Failed); err != nil {
			return nil, fmt.Errorf("storage: scanning run summary: %w", err)
		}
		r.Duration = time.Duration(durationNs)
		r.Total = r.Passed + r.Failed
		out = append(out, r)
	}
	return out, rows.Err()
}

// Archive writes a consistent snapshot of the database to destPath
// using SQLite's VACUUM INTO, which the documentation recommends over
// a raw file copy because it doesn't require exclusive access for the
// duration of the copy.
func (s *SQLiteStore) Archive(destPath string) error {
	if _, err := s.db.Exec(`VACUUM INTO ?`, destPath); err != nil {
		return fmt.Errorf("storage: archiving to %q: %w", destPath, err)
	}
	return nil
}

// Cleanup deletes runs older than retentionDays.
func (s *SQLiteStore) Cleanup(retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	if _, err := s.db.Exec(`DELETE FROM runs WHERE started_at < ?`, cutoff); err != nil {
		return fmt.Errorf("storage: cleaning up runs older than %d days: %w", retentionDays, err)
	}
	return nil
}
