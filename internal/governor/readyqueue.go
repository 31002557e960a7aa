package governor

import (
	"container/heap"

	"github.com/jpequegn/testforge/internal/testspec"
)

// ReadyQueue orders queued tests per the admission rule:
//  1. priority (higher wins)
//  2. tests belonging to an explicit serial group (max-threads == 1)
//     sort ahead of non-serial tests of equal priority, since a
//     serial test can block its own group's progress
//  3. stable tie-break on (binary id, test name)
//
// The admission loop does not simply pop in this order and block: it
// scans from the front and skips tests that currently fail to acquire
// capacity, trying the next one, so a lower-priority test that fits
// can be admitted ahead of a higher-priority one that doesn't.
type ReadyQueue struct {
	groups map[string]testspec.TestGroup
	items  pqueue
}

// NewReadyQueue creates an empty queue aware of the run's group
// definitions, needed to tell serial groups (max-threads == 1) apart
// from ordinary ones.
func NewReadyQueue(groups map[string]testspec.TestGroup) *ReadyQueue {
	q := &ReadyQueue{groups: groups}
	heap.Init(&q.items)
	return q
}

// Push enqueues a test.
func (q *ReadyQueue) Push(t *testspec.PlannedTest) {
	heap.Push(&q.items, &pqItem{test: t, serial: q.isSerial(t.Settings.TestGroup)})
}

func (q *ReadyQueue) isSerial(group string) bool {
	if group == "" || group == testspec.GlobalGroup {
		return false
	}
	g, ok := q.groups[group]
	return ok && g.MaxThreads == 1
}

// Len returns the number of queued tests.
func (q *ReadyQueue) Len() int { return q.items.Len() }

// Snapshot returns the queue contents in admission-scan order without
// removing them.
func (q *ReadyQueue) Snapshot() []*testspec.PlannedTest {
	cp := make(pqueue, len(q.items))
	copy(cp, q.items)
	heap.Init(&cp)
	out := make([]*testspec.PlannedTest, 0, len(cp))
	for cp.Len() > 0 {
		it := heap.Pop(&cp).(*pqItem)
		out = append(out, it.test)
	}
	return out
}

// Remove deletes the first queued test matching key (BinaryID::TestName).
// It reports whether a match was found.
func (q *ReadyQueue) Remove(key string) bool {
	for i, it := range q.items {
		if it.test.Instance.Key() == key {
			heap.Remove(&q.items, i)
			return true
		}
	}
	return false
}

type pqItem struct {
	test   *testspec.PlannedTest
	serial bool
	index  int
}

type pqueue []*pqItem

func (p pqueue) Len() int { return len(p) }

func (p pqueue) Less(i, j int) bool {
	a, b := p[i], p[j]
	if a.test.Settings.Priority != b.test.Settings.Priority {
		return a.test.Settings.Priority > b.test.Settings.Priority
	}
	if a.serial != b.serial {
		return a.serial // serial tests sort first among equal priority
	}
	if a.test.Instance.BinaryID != b.test.Instance.BinaryID {
		return a.test.Instance.BinaryID < b.test.Instance.BinaryID
	}
	return a.test.Instance.TestName < b.test.Instance.TestName
}

func (p pqueue) Swap(i, j int) {
	p[i], p[j] = p[j], p[i]
	p[i].index = i
	p[j].index = j
}

func (p *pqueue) Push(x any) {
	it := x.(*pqItem)
	it.index = len(*p)
	*p = append(*p, it)
}

func (p *pqueue) Pop() any {
	old := *p
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*p = old[:n-1]
	return it
}
