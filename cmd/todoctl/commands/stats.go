package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/cyans/todo-app-sub000/internal/models"
	"github.com/spf13/cobra"
)

// NewStatsCmd creates the stats command
func NewStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show todo counts by status and priority",
		RunE: func(cmd *cobra.Command, args []string) error {
			wf, closeDB, err := openWorkflow()
			if err != nil {
				return err
			}
			defer closeDB()

			stats, err := wf.Statistics(context.Background())
			if err != nil {
				return fmt.Errorf("failed to load statistics: %w", err)
			}
			printStats(cmd.OutOrStdout(), stats)
			return nil
		},
	}

	return cmd
}

func printStats(w io.Writer, stats *models.TodoStatistics) {
	fmt.Fprintf(w, "Total todos: %d\n", stats.Total)
	fmt.Fprintf(w, "Completed:   %d (%d%%)\n", stats.Completed, stats.CompletionRate)

	fmt.Fprintln(w, "\nBy status:")
	for _, status := range models.ValidStatuses() {
		fmt.Fprintf(w, "  %-12s %d\n", status, stats.ByStatus[status])
	}

	fmt.Fprintln(w, "\nBy priority:")
	for _, priority := range models.ValidPriorities() {
		fmt.Fprintf(w, "  %-12s %d\n", priority, stats.ByPriority[priority])
	}
}
