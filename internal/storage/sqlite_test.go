package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/jpequegn/testforge/internal/testspec"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "testforge.db")
	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	if err := s.Init(); err != nil {
		t.Fatalf("initializing schema: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRun(started time.Time) RunRecord {
	return RunRecord{
		StartedAt: started,
		Duration:  2 * time.Second,
		ProfileID: "default",
		Stats:     testspec.RunStats{Passed: 2, Failed: 1},
		Attempts: []AttemptRecord{
			{TestKey: "bin::a", BinaryID: "bin", TestName: "a", Index: 1, Outcome: "pass", Elapsed: time.Second, StartedAt: started},
			{TestKey: "bin::b", BinaryID: "bin", TestName: "b", Index: 1, Outcome: "fail", Elapsed: time.Second, StartedAt: started},
		},
	}
}

func TestSaveAndGetLatestRun(t *testing.T) {
	s := newTestStore(t)

	id, err := s.SaveRun(sampleRun(time.Now()))
	if err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	got, err := s.GetLatestRun()
	if err != nil {
		t.Fatalf("GetLatestRun failed: %v", err)
	}
	if got.ID != id || len(got.Attempts) != 2 {
		t.Fatalf("unexpected run: %+v", got)
	}
}

func TestGetLatestRunErrorsWhenEmpty(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetLatestRun(); err != ErrNoRuns {
		t.Fatalf("expected ErrNoRuns, got %v", err)
	}
}

func TestGetHistoryReturnsOldestFirstAcrossRuns(t *testing.T) {
	s := newTestStore(t)
	base := time.Now().Add(-time.Hour)
	if _, err := s.SaveRun(sampleRun(base)); err != nil {
		t.Fatalf("save 1: %v", err)
	}
	if _, err := s.SaveRun(sampleRun(base.Add(time.Minute))); err != nil {
		t.Fatalf("save 2: %v", err)
	}

	hist, err := s.GetHistory("bin::a", 0)
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}
	if len(hist) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(hist))
	}
	if !hist[0].StartedAt.Before(hist[1].StartedAt) {
		t.Error("expected oldest-first ordering")
	}
}

func TestListRunsRespectsLimit(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 3; i++ {
		if _, err := s.SaveRun(sampleRun(time.Now().Add(time.Duration(i) * time.Minute))); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}
	runs, err := s.ListRuns(2)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
}

func TestArchiveCreatesSnapshotFile(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.SaveRun(sampleRun(time.Now())); err != nil {
		t.Fatalf("save: %v", err)
	}
	dest := filepath.Join(t.TempDir(), "archive.db")
	if err := s.Archive(dest); err != nil {
		t.Fatalf("Archive failed: %v", err)
	}
}

func TestCleanupRemovesOldRuns(t *testing.T) {
	s := newTestStore(t)
	old := time.Now().AddDate(0, 0, -30)
	if _, err := s.SaveRun(sampleRun(old)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := s.SaveRun(sampleRun(time.Now())); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Cleanup(7); err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	runs, err := s.ListRuns(0)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run remaining after cleanup, got %d", len(runs))
	}
}
