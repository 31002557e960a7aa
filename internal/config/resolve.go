package config

import (
	"fmt"

	"github.com/jpequegn/testforge/internal/testspec"
)

// FilterFunc decides whether an override's filter expression matches
// a given test. Expression parsing lives outside this package; the
// resolver only needs to evaluate one against one test.
type FilterFunc func(filterExpr string, inst testspec.TestInstance) bool

// Resolver merges a profile's base settings with its overrides, in
// definition order (later overrides win), producing the
// testspec.ResolvedSettings for a single test instance.
type Resolver struct {
	profile Profile
	match   FilterFunc
}

// NewResolver builds a resolver for one profile.
func NewResolver(profile Profile, match FilterFunc) *Resolver {
	return &Resolver{profile: profile, match: match}
}

// Resolve computes the settings that apply to inst: the profile's
// base settings with every matching override applied on top, in the
// order overrides were declared.
func (r *Resolver) Resolve(inst testspec.TestInstance) testspec.ResolvedSettings {
	settings := baseSettings(r.profile)

	for _, ov := range r.profile.Overrides {
		if r.match != nil && !r.match(ov.Filter, inst) {
			continue
		}
		applyOverride(&settings, ov)
	}
	return settings
}

func baseSettings(p Profile) testspec.ResolvedSettings {
	return testspec.ResolvedSettings{
		Retries:     retrySettingsFrom(p.Retries),
		SlowTimeout: slowTimeoutFrom(p.SlowTimeout),
		LeakTimeout: leakTimeoutFrom(p.LeakTimeout),
		Priority:    p.Priority,
		TestGroup:   p.TestGroup,
	}
}

func applyOverride(settings *testspec.ResolvedSettings, ov Override) {
	if ov.Retries.Count != 0 || ov.Retries.Backoff != "" {
		settings.Retries = retrySettingsFrom(ov.Retries)
	}
	if ov.SlowTimeout.Period != 0 {
		settings.SlowTimeout = slowTimeoutFrom(ov.SlowTimeout)
	}
	if ov.LeakTimeout.Period != 0 {
		settings.LeakTimeout = leakTimeoutFrom(ov.LeakTimeout)
	}
	if ov.Priority != nil {
		settings.Priority = *ov.Priority
	}
	if ov.TestGroup != "" {
		settings.TestGroup = ov.TestGroup
	}
}

func retrySettingsFrom(c CountOrRetry) testspec.RetrySettings {
	backoff := testspec.BackoffFixed
	if c.Backoff == string(testspec.BackoffExponential) {
		backoff = testspec.BackoffExponential
	}
	return testspec.RetrySettings{
		MaxRetries: c.Count,
		Backoff:    backoff,
		Delay:      c.Delay,
		Jitter:     c.Jitter,
	}
}

func slowTimeoutFrom(c CountOrSlowTimeout) testspec.SlowTimeoutSettings {
	return testspec.SlowTimeoutSettings{
		Period:         c.Period,
		TerminateAfter: c.TerminateAfter,
	}
}

func leakTimeoutFrom(c CountOrLeakTimeout) testspec.LeakTimeoutSettings {
	result := testspec.LeakResultFail
	if c.Result == string(testspec.LeakResultPass) {
		result = testspec.LeakResultPass
	}
	return testspec.LeakTimeoutSettings{
		Period: c.Period,
		Result: result,
	}
}

// ResolveGroups converts the configuration's test-groups into the
// testspec representation, resolving the "num-test-threads" sentinel
// against globalMax.
func ResolveGroups(groups map[string]Group, globalMax int) map[string]testspec.TestGroup {
	out := make(map[string]testspec.TestGroup, len(groups))
	for name, g := range groups {
		max := globalMax
		if g.MaxThreads != "" && g.MaxThreads != testspec.NumTestThreads {
			n, err := parsePositiveInt(g.MaxThreads)
			if err == nil {
				max = n
			}
		}
		out[name] = testspec.TestGroup{Name: name, MaxThreads: max}
	}
	return out
}

func parsePositiveInt(s string) (int, error) {
	var n int
	_, err := fmt.Sscanf(s, "%d", &n)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("config: invalid thread count %q", s)
	}
	return n, nil
}
