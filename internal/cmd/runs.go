package cmd

import (
	"fmt"
	"time"

	"github.com/jpequegn/testforge/internal/storage"
	"github.com/spf13/cobra"
)

// runsCmd prints the run history recorded in the state database.
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded runs from the state database",
	Long: `Runs prints every run saved to the state database, most recent
first, with its profile, outcome counts, and duration.`,
	Args: cobra.NoArgs,
	RunE: listRuns,
}

func init() {
	rootCmd.AddCommand(runsCmd)

	runsCmd.Flags().String("db", ".testforge/state.db", "path to the SQLite state database")
	runsCmd.Flags().Int("limit", 20, "maximum number of runs to list (0 = all)")
}

func listRuns(cmd *cobra.Command, args []string) error {
	dbPath, _ := cmd.Flags().GetString("db")
	limit, _ := cmd.Flags().GetInt("limit")

	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		return fmt.Errorf("runs: %w", err)
	}
	defer store.Close()
	if err := store.Init(); err != nil {
		return fmt.Errorf("runs: %w", err)
	}

	summaries, err := store.ListRuns(limit)
	if err != nil {
		return fmt.Errorf("runs: %w", err)
	}
	if len(summaries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no runs recorded")
		return nil
	}

	for _, r := range summaries {
		fmt.Fprintf(cmd.OutOrStdout(), "run %d\t%s\tprofile=%s\tpassed=%d failed=%d total=%d\tduration=%s\n",
			r.ID, r.StartedAt.Format("2006-01-02T15:04:05"), r.ProfileID, r.Passed, r.Failed, r.Total, r.Duration.Round(time.Millisecond))
	}
	return nil
}
