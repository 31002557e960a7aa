// Package planner turns a set of configured test binaries into a
// resolved, filtered, partitioned RunPlan: it invokes each binary in
// listing mode, parses the result with internal/listing, resolves
// per-test settings with internal/config, and applies name filters
// and partitioning before handing the plan to the scheduler.
package planner

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/jpequegn/testforge/internal/config"
	"github.com/jpequegn/testforge/internal/listing"
	"github.com/jpequegn/testforge/internal/partition"
	"github.com/jpequegn/testforge/internal/testspec"
)

// BinarySpec identifies one test binary to list and plan.
type BinarySpec struct {
	BinaryID   string
	Path       string
	CWD        string
	Platform   testspec.Platform
	Dialect    listing.Dialect
	ListArgs   []string // extra args appended after the binary's own list flag
}

// Options controls plan construction beyond what each BinarySpec supplies.
type Options struct {
	Profile     config.Profile
	Groups      map[string]config.Group
	GlobalMax   int
	Filter      config.FilterFunc
	NameMatch   string // substring filter applied to test names, empty = no filter
	Partition   partition.Spec
	HasPartition bool
}

// Build lists every binary, resolves settings, filters by name and
// partition, and returns the immutable plan the scheduler will run.
func Build(ctx context.Context, specs []BinarySpec, registry *listing.Registry, opts Options) (*testspec.RunPlan, error) {
	var all []testspec.TestInstance
	for _, spec := range specs {
		instances, err := list(ctx, spec, registry)
		if err != nil {
			return nil, fmt.Errorf("planner: listing %s: %w", spec.BinaryID, err)
		}
		all = append(all, instances...)
	}

	if opts.NameMatch != "" {
		filtered := all[:0]
		for _, inst := range all {
			if strings.Contains(inst.TestName, opts.NameMatch) {
				filtered = append(filtered, inst)
			}
		}
		all = filtered
	}

	if opts.HasPartition {
		selected, _ := partition.Apply(opts.Partition, all)
		all = selected
	}

	resolver := config.NewResolver(opts.Profile, opts.Filter)
	plan := &testspec.RunPlan{
		Groups: config.ResolveGroups(opts.Groups, opts.GlobalMax),
	}
	for _, inst := range all {
		plan.Tests = append(plan.Tests, &testspec.PlannedTest{
			Instance: inst,
			Settings: resolver.Resolve(inst),
		})
	}
	return plan, nil
}

func list(ctx context.Context, spec BinarySpec, registry *listing.Registry) ([]testspec.TestInstance, error) {
	dialect := spec.Dialect
	if dialect == "" {
		dialect = listing.DialectTerse
	}
	lister, err := registry.Get(dialect)
	if err != nil {
		return nil, err
	}

	args := append([]string{"--list", "--format", string(dialect)}, spec.ListArgs...)
	cmd := exec.CommandContext(ctx, spec.Path, args...)
	cmd.Dir = spec.CWD

	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("invoking %s in listing mode: %w", spec.Path, err)
	}

	src := listing.Source{
		BinaryID:   spec.BinaryID,
		BinaryPath: spec.Path,
		CWD:        spec.CWD,
		Platform:   spec.Platform,
	}
	return lister.Parse(stdout.Bytes(), src)
}
