package cmd

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jpequegn/testforge/internal/storage"
	"github.com/jpequegn/testforge/internal/testspec"
)

func seedRun(t *testing.T, dbPath string) int64 {
	t.Helper()
	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer store.Close()
	if err := store.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	started := time.Now()
	id, err := store.SaveRun(storage.RunRecord{
		StartedAt: started,
		Duration:  2 * time.Second,
		ProfileID: "default",
		Stats:     testspec.RunStats{Passed: 1, Failed: 1},
		Attempts: []storage.AttemptRecord{
			{TestKey: "bin::a", BinaryID: "bin", TestName: "a", Index: 1, Outcome: "pass", Elapsed: 100 * time.Millisecond, StartedAt: started},
			{TestKey: "bin::b", BinaryID: "bin", TestName: "b", Index: 1, Outcome: "fail", Elapsed: 50 * time.Millisecond, StartedAt: started},
		},
	})
	if err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}
	return id
}

func TestReportRendersMarkdownFromLatestRun(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "state.db")
	seedRun(t, dbPath)

	buf := new(bytes.Buffer)
	reportCmd.SetOut(buf)
	reportCmd.SetErr(buf)
	reportCmd.SetArgs([]string{"--db", dbPath, "--format", "markdown"})
	defer reportCmd.SetArgs(nil)

	if err := reportCmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
}

func TestReportFailsWithoutAnyRuns(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "state.db")

	reportCmd.SetArgs([]string{"--db", dbPath})
	defer reportCmd.SetArgs(nil)

	if err := reportCmd.Execute(); err == nil {
		t.Fatal("expected an error when no runs are recorded")
	}
}

func TestReportWritesToOutputFile(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "state.db")
	seedRun(t, dbPath)
	outPath := filepath.Join(t.TempDir(), "out.json")

	reportCmd.SetArgs([]string{"--db", dbPath, "--format", "json", "--output", outPath})
	defer reportCmd.SetArgs(nil)

	if err := reportCmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
}

func TestReportRejectsUnsupportedFormat(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "state.db")
	seedRun(t, dbPath)

	reportCmd.SetArgs([]string{"--db", dbPath, "--format", "xml"})
	defer reportCmd.SetArgs(nil)

	err := reportCmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "unsupported format") {
		t.Fatalf("expected unsupported format error, got %v", err)
	}
}
