package partition

import (
	"testing"

	"github.com/jpequegn/testforge/internal/testspec"
)

func makeTests(n int) []testspec.TestInstance {
	out := make([]testspec.TestInstance, n)
	for i := range out {
		out[i] = testspec.TestInstance{BinaryID: "bin", TestName: "t" + string(rune('a'+i))}
	}
	return out
}

func TestParseValidAndInvalid(t *testing.T) {
	if _, err := Parse("slice:1/4"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, bad := range []string{"bogus:1/4", "slice:5/4", "slice:0/4", "slice:1", "slice:1/0"} {
		if _, err := Parse(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestSlicePartitionCoversAllBucketsDisjointly(t *testing.T) {
	tests := makeTests(10)
	n := 3
	seen := make(map[string]bool)
	for m := 1; m <= n; m++ {
		spec := Spec{Kind: KindSlice, M: m, N: n}
		selected, _ := Apply(spec, tests)
		for _, s := range selected {
			if seen[s.Key()] {
				t.Fatalf("test %s assigned to more than one bucket", s.Key())
			}
			seen[s.Key()] = true
		}
	}
	if len(seen) != len(tests) {
		t.Fatalf("expected union of all buckets to cover all tests, got %d of %d", len(seen), len(tests))
	}
}

func TestHashPartitionStableRegardlessOfOtherTests(t *testing.T) {
	full := makeTests(20)
	partial := full[:5]

	specN := 4
	for m := 1; m <= specN; m++ {
		spec := Spec{Kind: KindHash, M: m, N: specN}
		selFull, _ := Apply(spec, full)
		selPartial, _ := Apply(spec, partial)

		fullSet := make(map[string]bool)
		for _, s := range selFull {
			fullSet[s.Key()] = true
		}
		for _, s := range selPartial {
			if !fullSet[s.Key()] {
				t.Fatalf("test %s bucket depends on run composition", s.Key())
			}
		}
	}
}

func TestCountPartitionRestartsPerBinary(t *testing.T) {
	tests := []testspec.TestInstance{
		{BinaryID: "a", TestName: "1"},
		{BinaryID: "a", TestName: "2"},
		{BinaryID: "b", TestName: "1"},
		{BinaryID: "b", TestName: "2"},
	}
	spec := Spec{Kind: KindCount, M: 1, N: 2}
	selected, _ := Apply(spec, tests)
	if len(selected) != 2 {
		t.Fatalf("expected 2 selected (one per binary), got %d", len(selected))
	}
	if selected[0].BinaryID != "a" || selected[1].BinaryID != "b" {
		t.Fatalf("expected first test of each binary selected, got %+v", selected)
	}
}
