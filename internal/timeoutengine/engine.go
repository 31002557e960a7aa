package timeoutengine

import (
	"sync"
	"time"

	"github.com/jpequegn/testforge/internal/testspec"
)

// Event describes one timer firing during an attempt's lifetime.
type Event struct {
	Kind        EventKind
	SlowCount   int           // how many slow periods have elapsed, for Kind == Slow or Terminate
	SlowElapsed time.Duration // wall time since the attempt started, for Kind == Slow
}

// EventKind distinguishes the timer firings an Engine can emit.
type EventKind int

const (
	// Slow fires every time a slow period elapses. The attempt keeps
	// running; this is purely informational (and scheduler-reportable).
	Slow EventKind = iota
	// Terminate fires once SlowCount reaches TerminateAfter: the
	// caller must send a graceful kill to the attempt.
	Terminate
)

// MonitorSlow starts a timer that emits a Slow event once per
// settings.Period and a Terminate event once settings.TerminateAfter
// periods have elapsed (if TerminateAfter > 0; zero means never force
// a termination from slowness alone). preTerminate, if non-nil, is
// invoked synchronously right before the Terminate event is sent,
// giving the caller a chance to run a pre-timeout script first.
//
// The returned stop function must be called once the attempt finishes
// on its own, to release the timer goroutine; it is safe to call more
// than once.
func MonitorSlow(settings testspec.SlowTimeoutSettings, preTerminate func(), events chan<- Event) (stop func()) {
	if settings.Period <= 0 {
		return func() {}
	}

	cancel := make(chan struct{})
	var once sync.Once
	stop = func() { once.Do(func() { close(cancel) }) }

	go func() {
		ticker := time.NewTicker(settings.Period)
		defer ticker.Stop()
		count := 0
		start := time.Now()
		for {
			select {
			case <-cancel:
				return
			case <-ticker.C:
				count++
				select {
				case events <- Event{Kind: Slow, SlowCount: count, SlowElapsed: time.Since(start)}:
				case <-cancel:
					return
				}
				if settings.TerminateAfter > 0 && count >= settings.TerminateAfter {
					if preTerminate != nil {
						preTerminate()
					}
					select {
					case events <- Event{Kind: Terminate, SlowCount: count}:
					case <-cancel:
					}
					return
				}
			}
		}
	}()

	return stop
}

// CheckLeak waits settings.Period after an attempt's process has
// exited and then reports whether its process group is still alive.
// alive is polled once after the wait; callers that need finer-grained
// polling can loop this themselves. The returned bool is false (no
// leak) whenever settings.Period is zero or the group has already
// gone; the LeakResult is only meaningful when it is true, and is the
// status that attempt should be assigned per its leak-timeout policy.
func CheckLeak(settings testspec.LeakTimeoutSettings, alive func() bool) (leaked bool, result testspec.LeakResult) {
	if settings.Period <= 0 {
		return false, ""
	}
	time.Sleep(settings.Period)
	if !alive() {
		return false, ""
	}
	result = settings.Result
	if result == "" {
		result = testspec.LeakResultFail
	}
	return true, result
}
