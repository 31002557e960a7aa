package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jpequegn/testforge/internal/cancelbus"
	"github.com/jpequegn/testforge/internal/event"
	"github.com/jpequegn/testforge/internal/testspec"
)

// scriptedRunner returns a fixed outcome per test key, counting how
// many times each key was attempted.
type scriptedRunner struct {
	mu       sync.Mutex
	outcomes map[string][]testspec.Outcome // queue of outcomes per key, last one repeats
	calls    map[string]int
}

func newScriptedRunner() *scriptedRunner {
	return &scriptedRunner{outcomes: map[string][]testspec.Outcome{}, calls: map[string]int{}}
}

func (r *scriptedRunner) script(key string, outcomes ...testspec.Outcome) {
	r.outcomes[key] = outcomes
}

func (r *scriptedRunner) Run(test *testspec.PlannedTest, attemptIndex int, env []string) testspec.Attempt {
	key := test.Instance.Key()
	r.mu.Lock()
	r.calls[key]++
	seq := r.outcomes[key]
	outcome := testspec.OutcomePass
	if len(seq) > 0 {
		idx := attemptIndex - 1
		if idx >= len(seq) {
			idx = len(seq) - 1
		}
		outcome = seq[idx]
	}
	r.mu.Unlock()

	return testspec.Attempt{
		BinaryID:  test.Instance.BinaryID,
		TestName:  test.Instance.TestName,
		Index:     attemptIndex,
		StartTime: time.Now(),
		EndTime:   time.Now(),
		Outcome:   outcome,
	}
}

func (r *scriptedRunner) callCount(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[key]
}

func plannedTest(binary, name string, settings testspec.ResolvedSettings) *testspec.PlannedTest {
	return &testspec.PlannedTest{
		Instance: testspec.TestInstance{BinaryID: binary, TestName: name, BinaryPath: "/fake", CWD: "."},
		Settings: settings,
	}
}

func TestSchedulerRunsAllTestsToPassing(t *testing.T) {
	plan := &testspec.RunPlan{
		Tests: []*testspec.PlannedTest{
			plannedTest("bin", "a", testspec.ResolvedSettings{}),
			plannedTest("bin", "b", testspec.ResolvedSettings{}),
		},
		Groups: map[string]testspec.TestGroup{},
	}
	runner := newScriptedRunner()
	sched := New(plan, event.NewBus(), cancelbus.New(), runner, Options{GlobalMax: 4})

	stats := sched.Run(context.Background())
	if stats.Passed != 2 {
		t.Fatalf("expected 2 passes, got %+v", stats)
	}
}

func TestSchedulerRetriesRetryableOutcome(t *testing.T) {
	plan := &testspec.RunPlan{
		Tests: []*testspec.PlannedTest{
			plannedTest("bin", "flaky", testspec.ResolvedSettings{
				Retries: testspec.RetrySettings{MaxRetries: 2, Backoff: testspec.BackoffFixed, Delay: time.Millisecond},
			}),
		},
	}
	runner := newScriptedRunner()
	runner.script("bin::flaky", testspec.OutcomeFail, testspec.OutcomeFail, testspec.OutcomePass)

	sched := New(plan, event.NewBus(), cancelbus.New(), runner, Options{GlobalMax: 2})
	stats := sched.Run(context.Background())

	if stats.Passed != 1 || stats.Flaky != 1 {
		t.Fatalf("expected a flaky pass, got %+v", stats)
	}
	if runner.callCount("bin::flaky") != 3 {
		t.Fatalf("expected 3 attempts, got %d", runner.callCount("bin::flaky"))
	}
}

func TestSchedulerRespectsGlobalConcurrencyLimit(t *testing.T) {
	plan := &testspec.RunPlan{}
	var inFlight, maxObserved int32
	for i := 0; i < 10; i++ {
		plan.Tests = append(plan.Tests, plannedTest("bin", "t", testspec.ResolvedSettings{}))
	}
	runner := blockingCounterRunner{inFlight: &inFlight, maxObserved: &maxObserved, hold: 20 * time.Millisecond}
	sched := New(plan, event.NewBus(), cancelbus.New(), &runner, Options{GlobalMax: 3})

	sched.Run(context.Background())

	if atomic.LoadInt32(&maxObserved) > 3 {
		t.Errorf("expected at most 3 concurrent attempts, observed %d", maxObserved)
	}
}

type blockingCounterRunner struct {
	inFlight    *int32
	maxObserved *int32
	hold        time.Duration
}

func (r *blockingCounterRunner) Run(test *testspec.PlannedTest, attemptIndex int, env []string) testspec.Attempt {
	n := atomic.AddInt32(r.inFlight, 1)
	for {
		max := atomic.LoadInt32(r.maxObserved)
		if n <= max || atomic.CompareAndSwapInt32(r.maxObserved, max, n) {
			break
		}
	}
	time.Sleep(r.hold)
	atomic.AddInt32(r.inFlight, -1)
	return testspec.Attempt{Outcome: testspec.OutcomePass, StartTime: time.Now(), EndTime: time.Now()}
}

func TestSchedulerFailFastSkipsRemainingQueuedTests(t *testing.T) {
	plan := &testspec.RunPlan{
		Tests: []*testspec.PlannedTest{
			plannedTest("bin", "fails", testspec.ResolvedSettings{}),
			plannedTest("bin", "never-runs", testspec.ResolvedSettings{}),
		},
	}
	runner := newScriptedRunner()
	runner.script("bin::fails", testspec.OutcomeFail)

	// Global capacity of 1 forces serialization so "fails" always
	// finishes (and cancels) before "never-runs" gets a chance.
	sched := New(plan, event.NewBus(), cancelbus.New(), runner, Options{GlobalMax: 1, FailFast: true})
	stats := sched.Run(context.Background())

	if stats.Failed != 1 {
		t.Errorf("expected 1 failure, got %+v", stats)
	}
	if stats.Skipped != 1 {
		t.Errorf("expected the queued test to be skipped after fail-fast, got %+v", stats)
	}
}

func TestSchedulerIgnoredTestsAreSkippedWithoutRunning(t *testing.T) {
	plan := &testspec.RunPlan{
		Tests: []*testspec.PlannedTest{
			{Instance: testspec.TestInstance{BinaryID: "bin", TestName: "skip-me", Ignored: true}},
		},
	}
	runner := newScriptedRunner()
	sched := New(plan, event.NewBus(), cancelbus.New(), runner, Options{GlobalMax: 1})
	stats := sched.Run(context.Background())

	if stats.Skipped != 1 {
		t.Errorf("expected ignored test skipped, got %+v", stats)
	}
	if runner.callCount("bin::skip-me") != 0 {
		t.Error("expected ignored test never to run")
	}
}
