package scheduler

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/jpequegn/testforge/internal/cancelbus"
	"github.com/jpequegn/testforge/internal/event"
	"github.com/jpequegn/testforge/internal/governor"
	"github.com/jpequegn/testforge/internal/retry"
	"github.com/jpequegn/testforge/internal/setupscript"
	"github.com/jpequegn/testforge/internal/testspec"
)

// Options configures a Scheduler run.
type Options struct {
	GlobalMax int
	FailFast  bool
	BaseEnv   []string
	Setup     *setupscript.Coordinator // may be nil
}

// Scheduler runs a resolved plan to completion, admitting tests as
// governor capacity allows and emitting the run's event stream.
type Scheduler struct {
	plan     *testspec.RunPlan
	gov      *governor.Governor
	queue    *governor.ReadyQueue
	events   *event.Bus
	cancel   *cancelbus.Bus
	runner   AttemptRunner
	setup    *setupscript.Coordinator
	failFast bool
	baseEnv  []string

	mu     sync.Mutex
	states map[string]State
	stats  testspec.RunStats

	wg       sync.WaitGroup
	wake     chan struct{}
	rngMu    sync.Mutex
	rng      *rand.Rand
	runStart time.Time
}

// New builds a Scheduler for plan, ready to Run.
func New(plan *testspec.RunPlan, events *event.Bus, cancel *cancelbus.Bus, runner AttemptRunner, opts Options) *Scheduler {
	gov := governor.New(opts.GlobalMax, plan.Groups)
	queue := governor.NewReadyQueue(plan.Groups)

	return &Scheduler{
		plan:     plan,
		gov:      gov,
		queue:    queue,
		events:   events,
		cancel:   cancel,
		runner:   runner,
		setup:    opts.Setup,
		failFast: opts.FailFast,
		baseEnv:  opts.BaseEnv,
		states:   make(map[string]State, len(plan.Tests)),
		wake:     make(chan struct{}, 1),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *Scheduler) nudge() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run drives every queued test to a terminal state and returns the
// accumulated run statistics. It returns early, skipping whatever
// remains queued, once fail-fast cancellation latches (or the caller
// cancels ctx), but always waits for in-flight attempts to finish.
func (s *Scheduler) Run(ctx context.Context) testspec.RunStats {
	s.runStart = time.Now()
	s.events.Publish(event.Event{Kind: event.KindRunStarted})

	s.mu.Lock()
	for _, t := range s.plan.Tests {
		key := t.Instance.Key()
		if t.Instance.Ignored {
			s.states[key] = StateSkipped
			s.stats.Skipped++
			s.mu.Unlock()
			s.events.Publish(event.Event{Kind: event.KindTestSkipped, BinaryID: t.Instance.BinaryID, TestName: t.Instance.TestName, Message: "ignored"})
			s.mu.Lock()
			continue
		}
		s.states[key] = StateQueued
		s.queue.Push(t)
	}
	s.mu.Unlock()

	for {
		s.admit(ctx)

		s.mu.Lock()
		remaining := s.queue.Len()
		s.mu.Unlock()

		if remaining == 0 {
			break
		}

		select {
		case <-s.wake:
		case <-ctx.Done():
		case <-s.cancel.Notify():
		}

		// Regardless of which case woke us, re-check cancellation: a
		// nudge from a just-finished attempt can race the cancel bus's
		// own notification, and Cancelled() latches permanently once
		// true, so polling it here never misses a cancellation that a
		// lost select race would otherwise swallow.
		if ctx.Err() != nil || s.cancel.Cancelled() {
			s.drainCancelled()
		}

		s.mu.Lock()
		remaining = s.queue.Len()
		s.mu.Unlock()
		if remaining == 0 {
			break
		}
	}

	s.wg.Wait()

	s.mu.Lock()
	s.stats.WallTime = time.Since(s.runStart)
	stats := s.stats
	s.mu.Unlock()

	s.events.Publish(event.Event{Kind: event.KindRunFinished})
	return stats
}

// admit scans the ready queue in priority/group-fit order, admitting
// every test that currently fits rather than blocking on the first
// one that doesn't, so a lower-priority test that fits can run ahead
// of a higher-priority one still waiting on capacity.
func (s *Scheduler) admit(ctx context.Context) {
	if s.cancel.Cancelled() {
		return
	}

	s.mu.Lock()
	snapshot := s.queue.Snapshot()
	s.mu.Unlock()

	for _, t := range snapshot {
		if s.cancel.Cancelled() {
			return
		}
		weight := s.gov.Weight(t.Settings.ThreadsRequired)
		if !s.gov.TryAcquire(weight, t.Settings.TestGroup) {
			continue
		}

		s.mu.Lock()
		s.queue.Remove(t.Instance.Key())
		s.states[t.Instance.Key()] = StateAdmitted
		s.mu.Unlock()

		s.wg.Add(1)
		go s.runTest(ctx, t, weight)
	}
}

// drainCancelled marks every still-queued test SKIPPED(cancelled), the
// only state from which a test can reach SKIPPED directly.
func (s *Scheduler) drainCancelled() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.queue.Len() > 0 {
		snapshot := s.queue.Snapshot()
		t := snapshot[0]
		s.queue.Remove(t.Instance.Key())
		s.states[t.Instance.Key()] = StateSkipped
		s.stats.Skipped++
		s.mu.Unlock()
		s.events.Publish(event.Event{Kind: event.KindTestSkipped, BinaryID: t.Instance.BinaryID, TestName: t.Instance.TestName, Message: "cancelled"})
		s.mu.Lock()
	}
}

func (s *Scheduler) runTest(ctx context.Context, test *testspec.PlannedTest, weight int) {
	defer s.wg.Done()
	defer func() {
		s.gov.Release(weight, test.Settings.TestGroup)
		s.nudge()
	}()

	key := test.Instance.Key()
	s.setState(key, StateRunning)

	env := s.envFor(test.Instance, key)

	var attempt testspec.Attempt
	attemptIndex := 1
	var retryDelay time.Duration

	for {
		s.events.Publish(event.Event{Kind: event.KindAttemptStarted, BinaryID: test.Instance.BinaryID, TestName: test.Instance.TestName, Attempt: attemptIndex})

		attempt = s.runner.Run(test, attemptIndex, env)
		attempt.RetryDelay = retryDelay

		s.events.Publish(event.Event{
			Kind: event.KindAttemptFinished, BinaryID: test.Instance.BinaryID, TestName: test.Instance.TestName,
			Attempt: attemptIndex, Outcome: attempt.Outcome.String(),
		})

		if !retry.ShouldRetry(test.Settings.Retries, attemptIndex, attempt.Outcome, attempt.LeakResult) {
			break
		}
		if s.cancel.Cancelled() {
			break
		}

		s.rngMu.Lock()
		delay := retry.DelayFor(test.Settings.Retries, attemptIndex, s.rng)
		s.rngMu.Unlock()
		retryDelay = delay

		s.events.Publish(event.Event{Kind: event.KindRetryScheduled, BinaryID: test.Instance.BinaryID, TestName: test.Instance.TestName, Attempt: attemptIndex, Delay: delay})

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		case <-s.cancel.Notify():
			timer.Stop()
		}
		attemptIndex++
	}

	finalState := s.finalize(key, attempt)

	if s.failFast && (finalState == StateFailed || finalState == StateTimedOut || finalState == StateExecFail) {
		s.cancel.Publish(cancelbus.TestFailure)
	}
}

func (s *Scheduler) envFor(inst testspec.TestInstance, key string) []string {
	env := append([]string(nil), s.baseEnv...)
	if s.setup != nil {
		for k, v := range s.setup.EnvFor(key) {
			env = append(env, k+"="+v)
		}
	}
	for k, v := range inst.EnvOverlay {
		env = append(env, k+"="+v)
	}
	return env
}

func (s *Scheduler) setState(key string, st State) {
	s.mu.Lock()
	s.states[key] = st
	s.mu.Unlock()
}

func (s *Scheduler) finalize(key string, attempt testspec.Attempt) State {
	var st State
	switch attempt.Outcome {
	case testspec.OutcomePass:
		st = StatePassed
	case testspec.OutcomeFail:
		st = StateFailed
	case testspec.OutcomeLeak:
		st = StateLeaked
	case testspec.OutcomeTimeout:
		st = StateTimedOut
	case testspec.OutcomeExecFail:
		st = StateExecFail
	default:
		st = StateFailed
	}

	s.mu.Lock()
	s.states[key] = st
	switch st {
	case StatePassed:
		s.stats.Passed++
		if attempt.Index > 1 {
			s.stats.Flaky++
		}
	case StateFailed:
		s.stats.Failed++
	case StateLeaked:
		s.stats.Leaky++
	case StateTimedOut:
		s.stats.TimedOut++
	case StateExecFail:
		s.stats.ExecFail++
	}
	s.mu.Unlock()
	return st
}

// State returns a test's current lifecycle state.
func (s *Scheduler) State(key string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[key]
}

// Stats returns the run statistics accumulated so far.
func (s *Scheduler) Stats() testspec.RunStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
