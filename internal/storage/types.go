package storage

import (
	"time"

	"github.com/jpequegn/testforge/internal/testspec"
)

// Store persists completed runs and their attempts so later `report`
// and `compare` invocations can look back at history without rerunning
// anything.
type Store interface {
	Init() error
	Close() error

	// SaveRun records one completed run and every attempt that made it
	// up, returning the row id the run was stored under.
	SaveRun(run RunRecord) (int64, error)

	// GetLatestRun returns the most recently stored run, or
	// ErrNoRuns if the store is empty.
	GetLatestRun() (RunRecord, error)

	// GetRun returns the run stored under id.
	GetRun(id int64) (RunRecord, error)

	// GetHistory returns the attempts recorded for testKey, oldest
	// first, at most limit attempts (0 means unlimited).
	GetHistory(testKey string, limit int) ([]AttemptRecord, error)

	// ListRuns returns run metadata, most recent first.
	ListRuns(limit int) ([]RunSummary, error)

	// Archive copies the live database to destPath using SQLite's
	// VACUUM INTO, producing a consistent point-in-time snapshot
	// without holding a long-lived lock on the live file.
	Archive(destPath string) error

	// Cleanup removes runs older than retentionDays.
	Cleanup(retentionDays int) error
}

// RunRecord is one complete run: its stats and every attempt.
type RunRecord struct {
	ID        int64
	StartedAt time.Time
	Duration  time.Duration
	ProfileID string
	Stats     testspec.RunStats
	Attempts  []AttemptRecord
}

// AttemptRecord is one stored attempt, denormalized for query
// convenience (testKey instead of a join on binary+name).
type AttemptRecord struct {
	RunID     int64
	TestKey   string
	BinaryID  string
	TestName  string
	Index     int
	Outcome   string
	ExitCode  int
	Elapsed   time.Duration
	StartedAt time.Time
}

// RunSummary is the lightweight projection ListRuns returns.
type RunSummary struct {
	ID        int64
	StartedAt time.Time
	Duration  time.Duration
	ProfileID string
	Passed    int
	Failed    int
	Total     int
}
