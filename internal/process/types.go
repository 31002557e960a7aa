// Package process supervises individual test-binary child processes:
// spawning them into their own process group (or Windows Job Object),
// capturing stdout/stderr concurrently with execution, and escalating
// through a kill sequence when a deadline fires.
package process

import (
	"time"

	"github.com/jpequegn/testforge/internal/testspec"
)

// KillReason names why a running attempt was terminated before it
// exited on its own.
type KillReason int

const (
	// KillNone means the process exited on its own.
	KillNone KillReason = iota
	// KillTerminate is a graceful kill (SIGTERM / CTRL_BREAK_EVENT).
	KillTerminate
	// KillForce is the forceful follow-up (SIGKILL / TerminateJobObject).
	KillForce
)

func (k KillReason) String() string {
	switch k {
	case KillTerminate:
		return "terminate"
	case KillForce:
		return "force"
	default:
		return "none"
	}
}

// SpawnRequest describes a single attempt to launch.
type SpawnRequest struct {
	Instance testspec.TestInstance
	// Path overrides Instance.BinaryPath as the executable to invoke;
	// empty selects Instance.BinaryPath. Set when a target-runner or
	// run-wrapper prefixes the binary, in which case Instance.BinaryPath
	// itself appears as one of Args instead.
	Path string
	// Args are appended to Path's invocation, e.g. the exact test-name
	// filter the harness needs to run only this test.
	Args []string
	// Env is the full environment to apply, already merged from the
	// process environment, profile overrides, and setup-script output.
	Env []string
	// OutputMemLimit bounds in-memory capture per stream before
	// spillover; zero selects the package default.
	OutputMemLimit int
}

// Result is what came back from a completed (or killed) attempt.
type Result struct {
	ExitCode   int
	Signaled   bool
	KilledBy   KillReason
	Stdout     []byte
	Stderr     []byte
	StartTime  time.Time
	EndTime    time.Time
	LeakedPIDs []int
	SpawnErr   error
}

// Elapsed is the wall-clock duration of the attempt.
func (r Result) Elapsed() time.Duration {
	if r.EndTime.IsZero() || r.StartTime.IsZero() {
		return 0
	}
	return r.EndTime.Sub(r.StartTime)
}
