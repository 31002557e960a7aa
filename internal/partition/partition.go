// Package partition implements slice/hash/count bucket selection, the
// final filter stage before admission.
package partition

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"

	"github.com/jpequegn/testforge/internal/testspec"
)

// Kind identifies which partitioning algorithm a Spec selects.
type Kind string

const (
	KindSlice Kind = "slice"
	KindHash  Kind = "hash"
	KindCount Kind = "count" // deprecated, kept for compatibility
)

// Spec is a parsed "kind:m/n" partition expression.
type Spec struct {
	Kind Kind
	M, N int
}

// Parse parses strings of the form "slice:2/4", "hash:1/3", or
// "count:3/8".
func Parse(s string) (Spec, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return Spec{}, fmt.Errorf("invalid partition expression %q: expected kind:m/n", s)
	}
	kind := Kind(parts[0])
	switch kind {
	case KindSlice, KindHash, KindCount:
	default:
		return Spec{}, fmt.Errorf("invalid partition expression %q: unknown kind %q", s, parts[0])
	}

	mn := strings.SplitN(parts[1], "/", 2)
	if len(mn) != 2 {
		return Spec{}, fmt.Errorf("invalid partition expression %q: expected m/n", s)
	}
	m, err := strconv.Atoi(mn[0])
	if err != nil {
		return Spec{}, fmt.Errorf("invalid partition expression %q: bad m: %w", s, err)
	}
	n, err := strconv.Atoi(mn[1])
	if err != nil {
		return Spec{}, fmt.Errorf("invalid partition expression %q: bad n: %w", s, err)
	}
	if n <= 0 || m < 1 || m > n {
		return Spec{}, fmt.Errorf("invalid partition expression %q: require 1 <= m <= n and n > 0", s)
	}
	return Spec{Kind: kind, M: m, N: n}, nil
}

// Apply selects the tests belonging to bucket Spec.M out of Spec.N,
// in the given canonical (already filtered) order. It returns the
// selected tests and, separately, the ones that were filtered out.
// The planner drops the filtered-out tests from the run plan; they are
// not reported as SKIPPED.
func Apply(spec Spec, tests []testspec.TestInstance) (selected, skipped []testspec.TestInstance) {
	bucketOf := make([]int, len(tests))

	switch spec.Kind {
	case KindHash:
		for i, t := range tests {
			bucketOf[i] = stableHashBucket(t, spec.N)
		}
	case KindCount:
		// Deprecated: enumeration restarts per binary.
		counters := make(map[string]int)
		for i, t := range tests {
			idx := counters[t.BinaryID]
			bucketOf[i] = (idx % spec.N) + 1
			counters[t.BinaryID] = idx + 1
		}
	default: // slice
		for i := range tests {
			bucketOf[i] = (i % spec.N) + 1
		}
	}

	for i, t := range tests {
		if bucketOf[i] == spec.M {
			selected = append(selected, t)
		} else {
			skipped = append(skipped, t)
		}
	}
	return selected, skipped
}

// stableHashBucket computes the bucket for hash:m/n. The hash
// function (FNV-1a over "binary_id::test_name") is fixed within a
// major version, and depends only on the test's own identity and n,
// never on the rest of the run's composition.
func stableHashBucket(t testspec.TestInstance, n int) int {
	h := fnv.New64a()
	_, _ = h.Write([]byte(t.Key()))
	return int(h.Sum64()%uint64(n)) + 1
}
