package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/cyans/todo-app-sub000/internal/models"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// NewHistoryCmd creates the history command
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <todo-id>",
		Short: "Show the status history of a todo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid todo id %q: %w", args[0], err)
			}

			wf, closeDB, err := openWorkflow()
			if err != nil {
				return err
			}
			defer closeDB()

			view, err := wf.StatusHistory(context.Background(), id)
			if err != nil {
				return fmt.Errorf("failed to load history: %w", err)
			}
			printHistory(cmd.OutOrStdout(), view)
			return nil
		},
	}

	return cmd
}

func printHistory(w io.Writer, view *models.StatusHistoryView) {
	fmt.Fprintf(w, "Todo:           %s\n", view.TodoID)
	fmt.Fprintf(w, "Current status: %s\n", view.CurrentStatus)
	if view.CompletedAt != nil {
		fmt.Fprintf(w, "Completed at:   %s\n", view.CompletedAt.Format(time.RFC3339))
	}

	fmt.Fprintln(w, "\nHistory:")
	for _, entry := range view.StatusHistory {
		line := fmt.Sprintf("  %s  %-12s", entry.ChangedAt.Format(time.RFC3339), entry.Status)
		if entry.ChangedBy != nil {
			line += " by " + entry.ChangedBy.String()
		}
		if entry.Reason != "" {
			line += " (" + entry.Reason + ")"
		}
		fmt.Fprintln(w, line)
	}

	fmt.Fprintf(w, "\nNext: %s\n", joinStatuses(view.ValidTransitions))
}
