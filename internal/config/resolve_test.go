package config

import (
	"strings"
	"testing"
	"time"

	"github.com/jpequegn/testforge/internal/testspec"
)

func TestResolveAppliesBaseThenOverridesInOrder(t *testing.T) {
	profile := Profile{
		Retries:  CountOrRetry{Count: 1, Backoff: "fixed"},
		Priority: 0,
		Overrides: []Override{
			{Filter: "slow", Retries: CountOrRetry{Count: 3, Backoff: "exponential"}},
			{Filter: "slow", Priority: intPtr(5)},
		},
	}
	match := func(expr string, inst testspec.TestInstance) bool {
		return expr == "slow" && strings.Contains(inst.TestName, "slow")
	}
	r := NewResolver(profile, match)

	fast := r.Resolve(testspec.TestInstance{TestName: "fast_case"})
	if fast.Retries.MaxRetries != 1 {
		t.Errorf("expected base retry count for non-matching test, got %d", fast.Retries.MaxRetries)
	}

	slow := r.Resolve(testspec.TestInstance{TestName: "slow_case"})
	if slow.Retries.MaxRetries != 3 || slow.Retries.Backoff != testspec.BackoffExponential {
		t.Errorf("expected overridden retries, got %+v", slow.Retries)
	}
	if slow.Priority != 5 {
		t.Errorf("expected overridden priority 5, got %d", slow.Priority)
	}
}

func TestRetrySettingsFromDefaultsToFixedBackoff(t *testing.T) {
	got := retrySettingsFrom(CountOrRetry{Count: 2})
	if got.Backoff != testspec.BackoffFixed {
		t.Errorf("expected fixed backoff default, got %v", got.Backoff)
	}
}

func TestLeakTimeoutFromDefaultsToFail(t *testing.T) {
	got := leakTimeoutFrom(CountOrLeakTimeout{Period: 5 * time.Second})
	if got.Result != testspec.LeakResultFail {
		t.Errorf("expected default leak result fail, got %v", got.Result)
	}
}

func TestResolveGroupsAppliesGlobalMaxDefault(t *testing.T) {
	groups := map[string]Group{
		"serial":  {MaxThreads: "1"},
		"default": {},
	}
	out := ResolveGroups(groups, 8)
	if out["serial"].MaxThreads != 1 {
		t.Errorf("expected explicit max-threads preserved, got %d", out["serial"].MaxThreads)
	}
	if out["default"].MaxThreads != 8 {
		t.Errorf("expected unset max-threads to default to global max, got %d", out["default"].MaxThreads)
	}
}

func intPtr(n int) *int { return &n }
