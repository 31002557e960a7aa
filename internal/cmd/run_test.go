package cmd

import (
	"os"
	"path/filepath"
	"testing"
)

// fakeTestBinary writes a shell script that answers "--list --format
// terse" with two test names and otherwise exits 0, mimicking a
// harness that implements the listing protocol.
func fakeTestBinary(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake_tests.sh")
	script := "#!/bin/sh\n" +
		"if [ \"$1\" = \"--list\" ]; then\n" +
		"  printf 'alpha: test\\nbeta: test\\n'\n" +
		"  exit 0\n" +
		"fi\n" +
		"exit 0\n"
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatalf("writing fake binary: %v", err)
	}
	return path
}

func TestRunExecutesEveryListedTestAndPersists(t *testing.T) {
	bin := fakeTestBinary(t)
	dbPath := filepath.Join(t.TempDir(), "state.db")

	runCmd.SetArgs([]string{"--db", dbPath, bin})
	defer runCmd.SetArgs(nil)

	if err := runCmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
}

func TestRunAppliesNameFilter(t *testing.T) {
	bin := fakeTestBinary(t)
	dbPath := filepath.Join(t.TempDir(), "state.db")

	runCmd.SetArgs([]string{"--db", dbPath, "--filter", "alpha", bin})
	defer runCmd.SetArgs(nil)

	if err := runCmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
}

func TestRunFailsWithoutAnyBinaries(t *testing.T) {
	runCmd.SetArgs([]string{})
	defer runCmd.SetArgs(nil)

	if err := runCmd.Execute(); err == nil {
		t.Fatal("expected an error when no binaries are given")
	}
}
