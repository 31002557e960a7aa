package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/jpequegn/testforge/internal/config"
	"github.com/jpequegn/testforge/internal/listing"
	"github.com/jpequegn/testforge/internal/partition"
	"github.com/jpequegn/testforge/internal/planner"
	"github.com/spf13/cobra"
)

// listCmd is the read-only counterpart to run: it materializes the
// same plan run would, without executing anything.
var listCmd = &cobra.Command{
	Use:   "list [binary...]",
	Short: "Print the resolved test plan without running anything",
	Long: `List applies the same profile, filter, and partition resolution as
run, then prints each test's key alongside its resolved retry count,
priority, and test group, without spawning a single process.`,
	Args: cobra.MinimumNArgs(1),
	RunE: listTests,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().String("profile", "default", "execution profile to apply")
	listCmd.Flags().String("filter", "", "only list tests whose name contains this substring")
	listCmd.Flags().String("partition", "", "partition expression, e.g. slice:1/4, hash:2/4, count:1/2")
	listCmd.Flags().Int("global-max", 0, "global thread budget (default: logical CPU count)")
}

func listTests(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		cfg = &config.Config{}
	}

	profileName, _ := cmd.Flags().GetString("profile")
	filter, _ := cmd.Flags().GetString("filter")
	globalMax, _ := cmd.Flags().GetInt("global-max")

	planOpts := planner.Options{
		Profile:   cfg.Profiles[profileName],
		Groups:    cfg.Groups,
		GlobalMax: globalMax,
		NameMatch: filter,
	}
	if expr, _ := cmd.Flags().GetString("partition"); expr != "" {
		spec, err := partition.Parse(expr)
		if err != nil {
			return fmt.Errorf("list: %w", err)
		}
		planOpts.HasPartition = true
		planOpts.Partition = spec
	}

	specs := make([]planner.BinarySpec, 0, len(args))
	for _, path := range args {
		specs = append(specs, planner.BinarySpec{
			BinaryID: path,
			Path:     path,
			CWD:      ".",
			Dialect:  listing.DialectTerse,
		})
	}

	plan, err := planner.Build(ctx, specs, listing.NewRegistry(), planOpts)
	if err != nil {
		return fmt.Errorf("list: %w", err)
	}

	sort.Slice(plan.Tests, func(i, j int) bool {
		return plan.Tests[i].Instance.Key() < plan.Tests[j].Instance.Key()
	})

	for _, t := range plan.Tests {
		suffix := ""
		if t.Instance.Ignored {
			suffix = " (ignored)"
		}
		fmt.Printf("%s\tretries=%d priority=%d group=%q%s\n",
			t.Instance.Key(), t.Settings.Retries.MaxRetries, t.Settings.Priority, groupOrDefault(t.Settings.TestGroup), suffix)
	}
	fmt.Printf("\n%d test(s)\n", len(plan.Tests))
	return nil
}

func groupOrDefault(g string) string {
	if g == "" {
		return "@global"
	}
	return g
}
