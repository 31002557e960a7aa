package cmd

import (
	"fmt"

	"github.com/jpequegn/testforge/internal/storage"
	"github.com/spf13/cobra"
)

// archiveCmd snapshots the state database for long-term retention,
// optionally pruning old runs from the live database afterward.
var archiveCmd = &cobra.Command{
	Use:   "archive <dest>",
	Short: "Snapshot the state database to dest via VACUUM INTO",
	Long: `Archive writes a consistent, compacted copy of the state database
to dest. Use --prune-days to delete runs older than the given number
of days from the live database once the snapshot is written.`,
	Args: cobra.ExactArgs(1),
	RunE: archiveState,
}

func init() {
	rootCmd.AddCommand(archiveCmd)

	archiveCmd.Flags().String("db", ".testforge/state.db", "path to the SQLite state database")
	archiveCmd.Flags().Int("prune-days", 0, "delete runs older than this many days from the live database after archiving (0 = keep everything)")
}

func archiveState(cmd *cobra.Command, args []string) error {
	dbPath, _ := cmd.Flags().GetString("db")
	pruneDays, _ := cmd.Flags().GetInt("prune-days")
	dest := args[0]

	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		return fmt.Errorf("archive: %w", err)
	}
	defer store.Close()
	if err := store.Init(); err != nil {
		return fmt.Errorf("archive: %w", err)
	}

	if err := store.Archive(dest); err != nil {
		return fmt.Errorf("archive: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "archived %s to %s\n", dbPath, dest)

	if pruneDays > 0 {
		if err := store.Cleanup(pruneDays); err != nil {
			return fmt.Errorf("archive: pruning: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "pruned runs older than %d day(s) from %s\n", pruneDays, dbPath)
	}
	return nil
}
