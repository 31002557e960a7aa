package timeoutengine

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/jpequegn/testforge/internal/testspec"
)

func TestMonitorSlowEmitsPeriodically(t *testing.T) {
	events := make(chan Event, 16)
	settings := testspec.SlowTimeoutSettings{Period: 10 * time.Millisecond}
	stop := MonitorSlow(settings, nil, events)
	defer stop()

	select {
	case ev := <-events:
		if ev.Kind != Slow || ev.SlowCount != 1 {
			t.Fatalf("expected first Slow event with count 1, got %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for slow event")
	}
}

func TestMonitorSlowTerminatesAfterThreshold(t *testing.T) {
	events := make(chan Event, 16)
	var preCalled int32
	settings := testspec.SlowTimeoutSettings{Period: 5 * time.Millisecond, TerminateAfter: 2}
	stop := MonitorSlow(settings, func() { atomic.StoreInt32(&preCalled, 1) }, events)
	defer stop()

	var gotTerminate bool
	deadline := time.After(time.Second)
	for !gotTerminate {
		select {
		case ev := <-events:
			if ev.Kind == Terminate {
				gotTerminate = true
				if ev.SlowCount != 2 {
					t.Errorf("expected terminate at count 2, got %d", ev.SlowCount)
				}
			}
		case <-deadline:
			t.Fatal("timed out waiting for terminate event")
		}
	}
	if atomic.LoadInt32(&preCalled) != 1 {
		t.Error("expected preTerminate hook to run before Terminate event")
	}
}

func TestMonitorSlowZeroPeriodDisabled(t *testing.T) {
	events := make(chan Event, 1)
	stop := MonitorSlow(testspec.SlowTimeoutSettings{}, nil, events)
	stop()
	select {
	case ev := <-events:
		t.Fatalf("expected no events with zero period, got %+v", ev)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestCheckLeakReportsNoLeakWhenGroupGone(t *testing.T) {
	settings := testspec.LeakTimeoutSettings{Period: 5 * time.Millisecond, Result: testspec.LeakResultFail}
	leaked, _ := CheckLeak(settings, func() bool { return false })
	if leaked {
		t.Error("expected no leak when group already exited")
	}
}

func TestCheckLeakReportsConfiguredResultWhenStillAlive(t *testing.T) {
	settings := testspec.LeakTimeoutSettings{Period: 5 * time.Millisecond, Result: testspec.LeakResultPass}
	leaked, result := CheckLeak(settings, func() bool { return true })
	if !leaked {
		t.Fatal("expected leak detected when group still alive")
	}
	if result != testspec.LeakResultPass {
		t.Errorf("expected configured result to pass through, got %v", result)
	}
}

func TestCheckLeakDefaultsToFailWhenResultUnset(t *testing.T) {
	settings := testspec.LeakTimeoutSettings{Period: 5 * time.Millisecond}
	leaked, result := CheckLeak(settings, func() bool { return true })
	if !leaked || result != testspec.LeakResultFail {
		t.Errorf("expected default fail result, got leaked=%v result=%v", leaked, result)
	}
}

func TestCheckLeakDisabledWithZeroPeriod(t *testing.T) {
	leaked, _ := CheckLeak(testspec.LeakTimeoutSettings{}, func() bool { return true })
	if leaked {
		t.Error("expected leak detection disabled with zero period")
	}
}
