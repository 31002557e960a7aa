package process

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jpequegn/testforge/internal/testspec"
)

func TestSpawnCapturesStdoutAndExitCode(t *testing.T) {
	req := SpawnRequest{
		Instance: testspec.TestInstance{
			BinaryID:   "bin",
			TestName:   "t",
			BinaryPath: "/bin/sh",
			CWD:        ".",
		},
		Args: []string{"-c", "echo hello; exit 0"},
		Env:  os.Environ(),
	}
	h, err := Spawn(req)
	if err != nil {
		t.Fatalf("spawn failed: %v", err)
	}
	res := h.Wait()
	if res.ExitCode != 0 {
		t.Errorf("expected exit 0, got %d (spawn err %v)", res.ExitCode, res.SpawnErr)
	}
	if !strings.Contains(string(res.Stdout), "hello") {
		t.Errorf("expected stdout to contain %q, got %q", "hello", res.Stdout)
	}
}

func TestSpawnCapturesNonZeroExit(t *testing.T) {
	req := SpawnRequest{
		Instance: testspec.TestInstance{BinaryPath: "/bin/sh", CWD: "."},
		Args:     []string{"-c", "exit 7"},
		Env:      os.Environ(),
	}
	h, err := Spawn(req)
	if err != nil {
		t.Fatalf("spawn failed: %v", err)
	}
	res := h.Wait()
	if res.ExitCode != 7 {
		t.Errorf("expected exit 7, got %d", res.ExitCode)
	}
}

func TestTerminateKillsLongRunningChild(t *testing.T) {
	req := SpawnRequest{
		Instance: testspec.TestInstance{BinaryPath: "/bin/sh", CWD: "."},
		Args:     []string{"-c", "trap '' TERM; sleep 30"},
		Env:      os.Environ(),
	}
	h, err := Spawn(req)
	if err != nil {
		t.Fatalf("spawn failed: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if err := h.Terminate(); err != nil {
		t.Fatalf("terminate failed: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if err := h.Kill(); err != nil {
		t.Fatalf("kill failed: %v", err)
	}

	done := make(chan Result, 1)
	go func() { done <- h.Wait() }()

	select {
	case res := <-done:
		if res.KilledBy != KillForce {
			t.Errorf("expected KillForce recorded, got %v", res.KilledBy)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("child was not reaped after Kill")
	}
}

func TestCapturedStreamSpillsPastMemLimit(t *testing.T) {
	cs := newCapturedStream(8)
	if _, err := cs.Write([]byte("0123456789abcdef")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	out, err := cs.Bytes()
	if err != nil {
		t.Fatalf("bytes failed: %v", err)
	}
	if string(out) != "0123456789abcdef" {
		t.Errorf("expected full content preserved across spill, got %q", out)
	}
	if err := cs.Close(); err != nil {
		t.Errorf("close failed: %v", err)
	}
}
