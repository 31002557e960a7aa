// Package testspec defines the data model shared across the scheduler:
// test instances, resolved run plans, attempts, and run-level statistics.
package testspec

import "time"

// Platform identifies which toolchain triple a TestInstance was built for.
type Platform string

const (
	PlatformHost   Platform = "host"
	PlatformTarget Platform = "target"
)

// GlobalGroup is the sentinel test-group name meaning "counts only
// against the global concurrency limit".
const GlobalGroup = "@global"

// NumTestThreads is the sentinel threads-required value that resolves
// to the global maximum thread count.
const NumTestThreads = "num-test-threads"

// TestInstance identifies a single test case inside a built binary.
// Instances are created once during plan construction and are
// immutable for the lifetime of a run.
type TestInstance struct {
	BinaryID   string            // stable identifier: package, kind, binary name
	TestName   string            // fully qualified test name
	BinaryPath string            // path to the executable
	CWD        string            // working directory for execution
	Platform   Platform          // host or target
	EnvOverlay map[string]string // per-test environment overrides
	Ignored    bool
}

// Key returns the stable (BinaryID, TestName) identity used for
// ordering, hashing, and map lookups.
func (t TestInstance) Key() string {
	return t.BinaryID + "::" + t.TestName
}

// Backoff selects the retry delay growth function.
type Backoff string

const (
	BackoffFixed       Backoff = "fixed"
	BackoffExponential Backoff = "exponential"
)

// RetrySettings is the resolved retry policy for one test.
type RetrySettings struct {
	MaxRetries int
	Backoff    Backoff
	Delay      time.Duration
	Jitter     bool
}

// LeakResult is the final status a leaked attempt is assigned.
type LeakResult string

const (
	LeakResultPass LeakResult = "pass"
	LeakResultFail LeakResult = "fail"
)

// SlowTimeoutSettings governs the slow/terminate escalation timers.
type SlowTimeoutSettings struct {
	Period         time.Duration
	TerminateAfter int // number of periods after which termination begins; 0 = never
}

// LeakTimeoutSettings governs post-exit leak detection.
type LeakTimeoutSettings struct {
	Period time.Duration
	Result LeakResult
}

// ResolvedSettings is the fully-merged (profile + overrides) execution
// policy applying to one test.
type ResolvedSettings struct {
	Retries         RetrySettings
	SlowTimeout     SlowTimeoutSettings
	LeakTimeout     LeakTimeoutSettings
	ThreadsRequired int
	Priority        int
	TestGroup       string
	RunWrapper      []string
	TargetRunner    []string
	ListWrapper     []string
}

// PlannedTest pairs a TestInstance with the settings resolved for it.
type PlannedTest struct {
	Instance TestInstance
	Settings ResolvedSettings
}

// TestGroup is a user-defined concurrency domain.
type TestGroup struct {
	Name       string
	MaxThreads int
}

// RunPlan is the immutable, ordered, filtered, and partitioned set of
// tests a run will execute, plus the test-group definitions in play.
type RunPlan struct {
	Tests  []*PlannedTest
	Groups map[string]TestGroup
}

// Outcome is the terminal state of one Attempt.
type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomePass
	OutcomeFail
	OutcomeLeak
	OutcomeTimeout
	OutcomeExecFail
	OutcomeSkip
)

func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomePass:
		return "pass"
	case OutcomeFail:
		return "fail"
	case OutcomeLeak:
		return "leak"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeExecFail:
		return "exec-fail"
	case OutcomeSkip:
		return "skip"
	default:
		return "unknown"
	}
}

// Retryable reports whether an attempt ending in this outcome may be
// followed by another attempt. A leaked attempt is retryable only
// when its leak-timeout policy resolves to "fail".
func (o Outcome) Retryable(leakResult LeakResult) bool {
	switch o {
	case OutcomeFail, OutcomeTimeout, OutcomeExecFail:
		return true
	case OutcomeLeak:
		return leakResult == LeakResultFail
	default:
		return false
	}
}

// Attempt is one execution of a test's child process.
type Attempt struct {
	BinaryID    string
	TestName    string
	Index       int // 1..=max
	StartTime   time.Time
	EndTime     time.Time
	Outcome     Outcome
	LeakResult  LeakResult // set only when Outcome == OutcomeLeak
	ExitCode    int
	Stdout      []byte
	Stderr      []byte
	Elapsed     time.Duration
	RetryDelay  time.Duration // delay consumed before this attempt started, if any
	SkipReason  string        // set only when Outcome == OutcomeSkip
}

// Key identifies the test this attempt belongs to.
func (a Attempt) Key() string {
	return a.BinaryID + "::" + a.TestName
}

// RunStats accumulates monotonically from the event stream.
type RunStats struct {
	Passed    int
	Failed    int
	Skipped   int
	Flaky     int
	Leaky     int
	TimedOut  int
	ExecFail  int
	WallTime  time.Duration
}

// Total returns the number of terminal tests counted so far.
func (s RunStats) Total() int {
	return s.Passed + s.Failed + s.Skipped + s.Leaky + s.TimedOut + s.ExecFail
}
