// Package retry computes whether a failed Attempt leads to another
// one, and how long to wait first.
package retry

import (
	"math/rand"
	"time"

	"github.com/jpequegn/testforge/internal/testspec"
)

// maxBackoffDelay is the clamp applied to exponential backoff.
const maxBackoffDelay = time.Hour

// ShouldRetry reports whether attemptIndex (1-based, the attempt that
// just finished) may be followed by attemptIndex+1, given its
// outcome and, when the outcome is a leak, the leak-result policy
// that applied to it.
func ShouldRetry(settings testspec.RetrySettings, attemptIndex int, outcome testspec.Outcome, leakResult testspec.LeakResult) bool {
	if attemptIndex >= settings.MaxRetries+1 {
		return false
	}
	return outcome.Retryable(leakResult)
}

// DelayFor computes the delay before attemptIndex+1 starts, given that
// attemptIndex just finished with a retryable outcome. rng supplies
// the jitter source; pass a *rand.Rand seeded per-run for
// reproducible tests, or nil to use the package-level source.
func DelayFor(settings testspec.RetrySettings, attemptIndex int, rng *rand.Rand) time.Duration {
	var delay time.Duration
	switch settings.Backoff {
	case testspec.BackoffExponential:
		// delay_i = delay * 2^(i-1), clamped to <= 1h
		shift := attemptIndex - 1
		if shift > 62 {
			shift = 62
		}
		delay = settings.Delay * time.Duration(int64(1)<<uint(shift))
		if delay > maxBackoffDelay || delay < 0 {
			delay = maxBackoffDelay
		}
	default: // fixed
		delay = settings.Delay
	}

	if settings.Jitter {
		f := 0.5
		if rng != nil {
			f = 0.5 + rng.Float64()*0.5
		} else {
			f = 0.5 + rand.Float64()*0.5
		}
		delay = time.Duration(float64(delay) * f)
	}

	return delay
}
