package scheduler

import (
	"os"
	"testing"
	"time"

	"github.com/jpequegn/testforge/internal/cancelbus"
	"github.com/jpequegn/testforge/internal/event"
	"github.com/jpequegn/testforge/internal/pretimeout"
	"github.com/jpequegn/testforge/internal/testspec"
)

func TestProcessRunnerReportsPass(t *testing.T) {
	r := &ProcessRunner{Args: func(testspec.TestInstance) []string { return []string{"-c", "exit 0"} }}
	test := &testspec.PlannedTest{
		Instance: testspec.TestInstance{BinaryID: "bin", TestName: "t", BinaryPath: "/bin/sh", CWD: "."},
	}
	attempt := r.Run(test, 1, os.Environ())
	if attempt.Outcome != testspec.OutcomePass {
		t.Fatalf("expected pass, got %v (stderr=%s)", attempt.Outcome, attempt.Stderr)
	}
}

func TestProcessRunnerReportsFailOnNonZeroExit(t *testing.T) {
	r := &ProcessRunner{Args: func(testspec.TestInstance) []string { return []string{"-c", "exit 1"} }}
	test := &testspec.PlannedTest{
		Instance: testspec.TestInstance{BinaryID: "bin", TestName: "t", BinaryPath: "/bin/sh", CWD: "."},
	}
	attempt := r.Run(test, 1, os.Environ())
	if attempt.Outcome != testspec.OutcomeFail {
		t.Fatalf("expected fail, got %v", attempt.Outcome)
	}
}

func TestProcessRunnerReportsTimeoutWhenSlowTimerTerminates(t *testing.T) {
	r := &ProcessRunner{Args: func(testspec.TestInstance) []string { return []string{"-c", "sleep 5"} }}
	test := &testspec.PlannedTest{
		Instance: testspec.TestInstance{BinaryID: "bin", TestName: "t", BinaryPath: "/bin/sh", CWD: "."},
		Settings: testspec.ResolvedSettings{
			SlowTimeout: testspec.SlowTimeoutSettings{Period: 20 * time.Millisecond, TerminateAfter: 1},
		},
	}
	attempt := r.Run(test, 1, os.Environ())
	if attempt.Outcome != testspec.OutcomeTimeout {
		t.Fatalf("expected timeout, got %v", attempt.Outcome)
	}
}

func TestProcessRunnerExecFailOnMissingBinary(t *testing.T) {
	r := &ProcessRunner{}
	test := &testspec.PlannedTest{
		Instance: testspec.TestInstance{BinaryID: "bin", TestName: "t", BinaryPath: "/nonexistent/binary", CWD: "."},
	}
	attempt := r.Run(test, 1, os.Environ())
	if attempt.Outcome != testspec.OutcomeExecFail {
		t.Fatalf("expected exec-fail, got %v", attempt.Outcome)
	}
}

func TestProcessRunnerDefaultArgsIncludeNocaptureAndExact(t *testing.T) {
	r := &ProcessRunner{}
	inst := testspec.TestInstance{TestName: "my::test"}
	got := r.resolveArgs(inst)
	want := []string{"my::test", "--nocapture", "--exact"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestBuildCommandPrependsTargetRunnerAndRunWrapper(t *testing.T) {
	inst := testspec.TestInstance{BinaryPath: "/bin/tests"}
	settings := testspec.ResolvedSettings{
		TargetRunner: []string{"qemu-runner", "--board=x"},
		RunWrapper:   []string{"ld-wrapper"},
	}
	path, args := buildCommand(inst, settings, []string{"t", "--nocapture", "--exact"})
	if path != "qemu-runner" {
		t.Fatalf("expected target-runner to become the executable, got %q", path)
	}
	want := []string{"--board=x", "ld-wrapper", "/bin/tests", "t", "--nocapture", "--exact"}
	if len(args) != len(want) {
		t.Fatalf("expected %v, got %v", want, args)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, args)
		}
	}
}

func TestBuildCommandWithNoWrapperRunsBinaryDirectly(t *testing.T) {
	inst := testspec.TestInstance{BinaryPath: "/bin/tests"}
	path, args := buildCommand(inst, testspec.ResolvedSettings{}, []string{"t", "--exact"})
	if path != "/bin/tests" {
		t.Fatalf("expected bare binary path, got %q", path)
	}
	if len(args) != 2 || args[0] != "t" || args[1] != "--exact" {
		t.Fatalf("expected test args unchanged, got %v", args)
	}
}

func TestProcessRunnerEscalatesToSigkillWhenTermIsIgnored(t *testing.T) {
	r := &ProcessRunner{Args: func(testspec.TestInstance) []string {
		return []string{"-c", "trap '' TERM; sleep 30"}
	}}
	test := &testspec.PlannedTest{
		Instance: testspec.TestInstance{BinaryID: "bin", TestName: "t", BinaryPath: "/bin/sh", CWD: "."},
		Settings: testspec.ResolvedSettings{
			SlowTimeout: testspec.SlowTimeoutSettings{Period: 20 * time.Millisecond, TerminateAfter: 1},
		},
	}

	done := make(chan testspec.Attempt, 1)
	go func() { done <- r.Run(test, 1, os.Environ()) }()

	select {
	case attempt := <-done:
		if attempt.Outcome != testspec.OutcomeTimeout {
			t.Fatalf("expected timeout outcome, got %v", attempt.Outcome)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not escalate to SIGKILL and reap the child in time")
	}
}

func TestProcessRunnerForwardsSlowAndTerminationEvents(t *testing.T) {
	bus := event.NewBus()
	ch := bus.Subscribe(16)

	r := &ProcessRunner{
		Args:   func(testspec.TestInstance) []string { return []string{"-c", "sleep 5"} },
		Events: bus,
	}
	test := &testspec.PlannedTest{
		Instance: testspec.TestInstance{BinaryID: "bin", TestName: "t", BinaryPath: "/bin/sh", CWD: "."},
		Settings: testspec.ResolvedSettings{
			SlowTimeout: testspec.SlowTimeoutSettings{Period: 20 * time.Millisecond, TerminateAfter: 2},
		},
	}

	attempt := r.Run(test, 1, os.Environ())
	bus.Close()
	if attempt.Outcome != testspec.OutcomeTimeout {
		t.Fatalf("expected timeout outcome, got %v", attempt.Outcome)
	}

	var sawSlow, sawTermination bool
	for ev := range ch {
		switch ev.Kind {
		case event.KindSlowTick:
			sawSlow = true
		case event.KindTerminationRequested:
			if !sawSlow {
				t.Fatal("expected at least one SlowTick before TerminationRequested")
			}
			sawTermination = true
		}
	}
	if !sawSlow || !sawTermination {
		t.Fatalf("expected both SlowTick and TerminationRequested, got slow=%v termination=%v", sawSlow, sawTermination)
	}
}

func TestProcessRunnerKillsImmediatelyOnSecondInterrupt(t *testing.T) {
	cancel := cancelbus.New()
	r := &ProcessRunner{
		Args:   func(testspec.TestInstance) []string { return []string{"-c", "trap '' TERM; sleep 30"} },
		Cancel: cancel,
	}
	test := &testspec.PlannedTest{
		Instance: testspec.TestInstance{BinaryID: "bin", TestName: "t", BinaryPath: "/bin/sh", CWD: "."},
	}

	done := make(chan testspec.Attempt, 1)
	go func() { done <- r.Run(test, 1, os.Environ()) }()

	time.Sleep(30 * time.Millisecond)
	cancel.Publish(cancelbus.Interrupt)
	cancel.Publish(cancelbus.SecondInterrupt)

	select {
	case attempt := <-done:
		if attempt.Outcome != testspec.OutcomeTimeout {
			t.Fatalf("expected timeout outcome from forced kill, got %v", attempt.Outcome)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("second interrupt did not force-kill the child in time")
	}
}

func TestProcessRunnerTerminatesThenForceKillsOnInterrupt(t *testing.T) {
	cancel := cancelbus.New()
	r := &ProcessRunner{
		Args:   func(testspec.TestInstance) []string { return []string{"-c", "trap '' TERM; sleep 30"} },
		Cancel: cancel,
	}
	test := &testspec.PlannedTest{
		Instance: testspec.TestInstance{BinaryID: "bin", TestName: "t", BinaryPath: "/bin/sh", CWD: "."},
		Settings: testspec.ResolvedSettings{
			SlowTimeout: testspec.SlowTimeoutSettings{Period: 20 * time.Millisecond},
		},
	}

	done := make(chan testspec.Attempt, 1)
	go func() { done <- r.Run(test, 1, os.Environ()) }()

	time.Sleep(30 * time.Millisecond)
	cancel.Publish(cancelbus.Interrupt)

	select {
	case attempt := <-done:
		if attempt.Outcome != testspec.OutcomeTimeout {
			t.Fatalf("expected timeout outcome from grace-then-kill escalation, got %v", attempt.Outcome)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("interrupt did not escalate to a forced kill in time")
	}
}

func TestProcessRunnerDispatchesPreTimeoutScriptsBeforeTermination(t *testing.T) {
	bus := event.NewBus()
	ch := bus.Subscribe(16)

	coordinator := pretimeout.New([]pretimeout.ScriptDef{
		{Name: "dump-stacks", Command: []string{"/bin/sh", "-c", "exit 0"}},
	})

	r := &ProcessRunner{
		Args:       func(testspec.TestInstance) []string { return []string{"-c", "sleep 5"} },
		Events:     bus,
		PreTimeout: coordinator,
	}
	test := &testspec.PlannedTest{
		Instance: testspec.TestInstance{BinaryID: "bin", TestName: "t", BinaryPath: "/bin/sh", CWD: "."},
		Settings: testspec.ResolvedSettings{
			SlowTimeout: testspec.SlowTimeoutSettings{Period: 20 * time.Millisecond, TerminateAfter: 1},
		},
	}

	attempt := r.Run(test, 1, os.Environ())
	bus.Close()
	if attempt.Outcome != testspec.OutcomeTimeout {
		t.Fatalf("expected timeout outcome, got %v", attempt.Outcome)
	}

	var order []event.Kind
	for ev := range ch {
		order = append(order, ev.Kind)
	}

	var startedIdx, finishedIdx, terminationIdx = -1, -1, -1
	for i, k := range order {
		switch k {
		case event.KindPreTimeoutStarted:
			startedIdx = i
		case event.KindPreTimeoutFinished:
			finishedIdx = i
		case event.KindTerminationRequested:
			terminationIdx = i
		}
	}
	if startedIdx == -1 || finishedIdx == -1 || terminationIdx == -1 {
		t.Fatalf("expected pre-timeout start/finish and termination events, got %v", order)
	}
	if !(startedIdx < finishedIdx && finishedIdx < terminationIdx) {
		t.Fatalf("expected pre-timeout scripts to finish before termination, got order %v", order)
	}
}
