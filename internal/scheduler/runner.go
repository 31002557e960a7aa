package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jpequegn/testforge/internal/cancelbus"
	"github.com/jpequegn/testforge/internal/event"
	"github.com/jpequegn/testforge/internal/pretimeout"
	"github.com/jpequegn/testforge/internal/process"
	"github.com/jpequegn/testforge/internal/testspec"
	"github.com/jpequegn/testforge/internal/timeoutengine"
)

// maxGrace is the ceiling on how long a terminated child is given to
// exit on its own before being force-killed.
const maxGrace = 10 * time.Second

// AttemptRunner executes a single attempt of a test and returns its
// outcome. Implementations own whatever process supervision or
// simulation they need; the scheduler only depends on this interface,
// which keeps admission/retry logic testable without spawning real
// child processes.
type AttemptRunner interface {
	Run(test *testspec.PlannedTest, attemptIndex int, env []string) testspec.Attempt
}

// ProcessRunner is the production AttemptRunner: it spawns the test
// binary as a supervised child process, drives the slow/terminate
// timers and their kill escalation, dispatches pre-timeout scripts,
// reacts to cancellation, and checks for leaked descendants after
// exit.
type ProcessRunner struct {
	// Args builds the harness invocation arguments for one test, e.g.
	// [testName, "--nocapture", "--exact"]. A nil Args uses that
	// default.
	Args func(inst testspec.TestInstance) []string
	// Cancel, if set, is watched for Interrupt/SecondInterrupt while an
	// attempt is running: Interrupt escalates through the same
	// SIGTERM-then-grace-then-SIGKILL sequence as a terminate deadline;
	// SecondInterrupt kills immediately.
	Cancel *cancelbus.Bus
	// Events, if set, receives SlowTick/PreTimeoutStarted/
	// PreTimeoutFinished/TerminationRequested as they occur.
	Events *event.Bus
	// PreTimeout, if set, is consulted for scripts to run (serially,
	// before the graceful kill signal) once an attempt's terminate
	// deadline fires.
	PreTimeout *pretimeout.Coordinator
}

func (r *ProcessRunner) Run(test *testspec.PlannedTest, attemptIndex int, env []string) testspec.Attempt {
	inst := test.Instance
	settings := test.Settings

	attempt := testspec.Attempt{
		BinaryID:  inst.BinaryID,
		TestName:  inst.TestName,
		Index:     attemptIndex,
		StartTime: time.Now(),
	}

	path, args := buildCommand(inst, settings, r.resolveArgs(inst))

	h, err := process.Spawn(process.SpawnRequest{Instance: inst, Path: path, Args: args, Env: env})
	if err != nil {
		attempt.EndTime = time.Now()
		attempt.Elapsed = attempt.EndTime.Sub(attempt.StartTime)
		attempt.Outcome = testspec.OutcomeExecFail
		attempt.Stderr = []byte(fmt.Sprintf("failed to start: %v", err))
		return attempt
	}

	waitCh := make(chan process.Result, 1)
	go func() { waitCh <- h.Wait() }()

	timerEvents := make(chan timeoutengine.Event, 4)
	stopSlow := timeoutengine.MonitorSlow(settings.SlowTimeout, func() {
		r.dispatchPreTimeout(h, inst, attemptIndex)
	}, timerEvents)

	res := r.await(h, waitCh, timerEvents, settings, inst, attemptIndex)
	stopSlow()

	attempt.EndTime = time.Now()
	attempt.Elapsed = attempt.EndTime.Sub(attempt.StartTime)
	attempt.ExitCode = res.ExitCode
	attempt.Stdout = res.Stdout
	attempt.Stderr = res.Stderr

	switch {
	case res.SpawnErr != nil:
		attempt.Outcome = testspec.OutcomeExecFail
	case res.KilledBy != process.KillNone:
		attempt.Outcome = testspec.OutcomeTimeout
	case res.ExitCode != 0:
		attempt.Outcome = testspec.OutcomeFail
	default:
		leaked, leakResult := timeoutengine.CheckLeak(settings.LeakTimeout, func() bool { return len(res.LeakedPIDs) > 0 })
		if leaked {
			attempt.Outcome = testspec.OutcomeLeak
			attempt.LeakResult = leakResult
		} else {
			attempt.Outcome = testspec.OutcomePass
		}
	}

	return attempt
}

// await owns the single select loop that decides when a running child
// exits on its own versus gets escalated toward a kill: a terminate
// deadline from the timeout engine, an Interrupt, or a SecondInterrupt
// all funnel through here so a child is never simultaneously raced by
// two independent kill paths.
func (r *ProcessRunner) await(
	h *process.Handle,
	waitCh <-chan process.Result,
	timerEvents <-chan timeoutengine.Event,
	settings testspec.ResolvedSettings,
	inst testspec.TestInstance,
	attemptIndex int,
) process.Result {
	terminating := false
	var graceCh <-chan time.Time

	startGrace := func() {
		if terminating {
			return
		}
		terminating = true
		_ = h.Terminate()
		grace := settings.SlowTimeout.Period
		if grace <= 0 || grace > maxGrace {
			grace = maxGrace
		}
		graceCh = time.After(grace)
	}

	var notify <-chan struct{}
	if r.Cancel != nil {
		notify = r.Cancel.Notify()
		if r.Cancel.ForcefulCancel() {
			_ = h.Kill()
		} else if r.Cancel.Cancelled() {
			startGrace()
		}
	}

	for {
		select {
		case res := <-waitCh:
			return res

		case ev, ok := <-timerEvents:
			if !ok {
				timerEvents = nil
				continue
			}
			switch ev.Kind {
			case timeoutengine.Slow:
				r.publish(event.KindSlowTick, inst, attemptIndex)
			case timeoutengine.Terminate:
				r.publish(event.KindTerminationRequested, inst, attemptIndex)
				startGrace()
			}

		case <-graceCh:
			_ = h.Kill()
			graceCh = nil

		case <-notify:
			if r.Cancel == nil {
				continue
			}
			notify = r.Cancel.Notify()
			if r.Cancel.ForcefulCancel() {
				_ = h.Kill()
			} else if r.Cancel.Cancelled() {
				startGrace()
			}
		}
	}
}

// dispatchPreTimeout runs every applicable pre-timeout script serially
// and returns only once they have all finished, honoring the contract
// that forceful termination follows, never precedes, pre-timeout
// script completion. It is invoked synchronously from the timeout
// engine's terminate-deadline hook, so the Terminate event it gates
// cannot be observed by await until this returns.
func (r *ProcessRunner) dispatchPreTimeout(h *process.Handle, inst testspec.TestInstance, attemptIndex int) {
	if r.PreTimeout == nil || !r.PreTimeout.Applicable(inst.Key()) {
		return
	}

	r.publish(event.KindPreTimeoutStarted, inst, attemptIndex)
	results := r.PreTimeout.Dispatch(context.Background(), pretimeout.Attempt{
		TestKey:  inst.Key(),
		TestName: inst.TestName,
		BinaryID: inst.BinaryID,
		CWD:      inst.CWD,
		PID:      h.Pid(),
	})
	for _, res := range results {
		switch {
		case res.Err != nil:
			slog.Warn("pre-timeout script failed to start", "script", res.Name, "error", res.Err)
		case res.ExitCode != 0:
			slog.Warn("pre-timeout script exited non-zero", "script", res.Name, "exit_code", res.ExitCode)
		}
	}
	r.publish(event.KindPreTimeoutFinished, inst, attemptIndex)
}

func (r *ProcessRunner) publish(kind event.Kind, inst testspec.TestInstance, attemptIndex int) {
	if r.Events == nil {
		return
	}
	r.Events.Publish(event.Event{Kind: kind, BinaryID: inst.BinaryID, TestName: inst.TestName, Attempt: attemptIndex})
}

func (r *ProcessRunner) resolveArgs(inst testspec.TestInstance) []string {
	if r.Args != nil {
		return r.Args(inst)
	}
	return []string{inst.TestName, "--nocapture", "--exact"}
}

// buildCommand resolves the full invocation for one attempt: an
// optional target-runner prefix, then an optional run-wrapper prefix,
// then the binary path and its test arguments. Either prefix, if
// present, becomes the actual executable invoked, with everything
// after it (including the binary path) passed as arguments.
func buildCommand(inst testspec.TestInstance, settings testspec.ResolvedSettings, testArgs []string) (path string, args []string) {
	argv := make([]string, 0, len(settings.TargetRunner)+len(settings.RunWrapper)+1+len(testArgs))
	argv = append(argv, settings.TargetRunner...)
	argv = append(argv, settings.RunWrapper...)
	argv = append(argv, inst.BinaryPath)
	argv = append(argv, testArgs...)
	return argv[0], argv[1:]
}
