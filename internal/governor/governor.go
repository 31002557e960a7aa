// Package governor implements the concurrency governor: a global
// semaphore, per-test-group semaphores, and the priority ready queue
// that feeds the scheduler's admission loop.
package governor

import (
	"sync"

	"github.com/jpequegn/testforge/internal/testspec"
)

// Governor tracks available global and per-group capacity and admits
// tests atomically: a reservation is taken against both the global
// pool and (if applicable) the test's group pool simultaneously, or
// not at all.
type Governor struct {
	mu          sync.Mutex
	globalMax   int
	globalAvail int
	groups      map[string]*groupSlots
}

type groupSlots struct {
	max   int
	avail int
}

// New creates a Governor with the given global thread ceiling and
// named group ceilings. Groups not present in the map are treated as
// unbounded aside from the global ceiling (only the sentinel
// testspec.GlobalGroup behaves this way in practice; any group named
// in config must be passed here).
func New(globalMax int, groups map[string]testspec.TestGroup) *Governor {
	if globalMax <= 0 {
		globalMax = 1
	}
	g := &Governor{
		globalMax:   globalMax,
		globalAvail: globalMax,
		groups:      make(map[string]*groupSlots, len(groups)),
	}
	for name, tg := range groups {
		if name == testspec.GlobalGroup {
			continue
		}
		max := tg.MaxThreads
		if max <= 0 {
			max = globalMax
		}
		g.groups[name] = &groupSlots{max: max, avail: max}
	}
	return g
}

// Weight clamps a test's threads-required to [1, globalMax].
func (g *Governor) Weight(threadsRequired int) int {
	g.mu.Lock()
	max := g.globalMax
	g.mu.Unlock()
	if threadsRequired <= 0 {
		threadsRequired = 1
	}
	if threadsRequired > max {
		threadsRequired = max
	}
	return threadsRequired
}

// TryAcquire attempts to atomically reserve weight slots globally and,
// if group is not the global sentinel, weight slots in that group
// too. On failure neither reservation is made.
func (g *Governor) TryAcquire(weight int, group string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if weight > g.globalAvail {
		return false
	}

	var gs *groupSlots
	if group != "" && group != testspec.GlobalGroup {
		gs = g.groups[group]
		if gs != nil && weight > gs.avail {
			return false
		}
	}

	g.globalAvail -= weight
	if gs != nil {
		gs.avail -= weight
	}
	return true
}

// Release returns weight slots to the global pool and, if applicable,
// the named group's pool.
func (g *Governor) Release(weight int, group string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.globalAvail += weight
	if g.globalAvail > g.globalMax {
		g.globalAvail = g.globalMax
	}
	if group != "" && group != testspec.GlobalGroup {
		if gs := g.groups[group]; gs != nil {
			gs.avail += weight
			if gs.avail > gs.max {
				gs.avail = gs.max
			}
		}
	}
}

// GlobalAvailable returns the current global free slot count, for
// diagnostics and tests.
func (g *Governor) GlobalAvailable() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.globalAvail
}

// InFlightWeight returns the amount of global capacity currently
// reserved, used by property tests asserting the invariant
// in_flight_weight <= global_max.
func (g *Governor) InFlightWeight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.globalMax - g.globalAvail
}

// PinSingleThreaded forces global capacity to one slot, used for
// --no-capture passthrough mode, which pins global_max = 1 for the
// entire run so child output can stream live without interleaving.
func (g *Governor) PinSingleThreaded() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.globalMax = 1
	if g.globalAvail > 1 {
		g.globalAvail = 1
	}
}
