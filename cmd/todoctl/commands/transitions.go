package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/cyans/todo-app-sub000/internal/models"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// NewTransitionsCmd creates the transitions command. It needs no database.
func NewTransitionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transitions [status]",
		Short: "Print the status transition table",
		Long:  "Print the statuses reachable from each status, or from the given one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses := models.ValidStatuses()
			if len(args) == 1 {
				status := models.Status(args[0])
				if !status.IsValid() {
					return models.NewInvalidStatusError(args[0])
				}
				statuses = []models.Status{status}
			}
			printTransitions(cmd.OutOrStdout(), statuses)
			return nil
		},
	}

	return cmd
}

// NewTransitionCmd creates the transition command
func NewTransitionCmd() *cobra.Command {
	var reason string
	var changedBy string

	cmd := &cobra.Command{
		Use:   "transition <todo-id> <status>",
		Short: "Move a todo to a new status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid todo id %q: %w", args[0], err)
			}
			status := models.Status(args[1])
			if !status.IsValid() {
				return models.NewInvalidStatusError(args[1])
			}
			var actor *uuid.UUID
			if changedBy != "" {
				parsed, err := uuid.Parse(changedBy)
				if err != nil {
					return fmt.Errorf("invalid --changed-by %q: %w", changedBy, err)
				}
				actor = &parsed
			}

			wf, closeDB, err := openWorkflow()
			if err != nil {
				return err
			}
			defer closeDB()

			todo, err := wf.RequestTransition(context.Background(), id, status, actor, reason)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Todo %s is now %s\n", todo.ID, todo.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Reason recorded in the status history")
	cmd.Flags().StringVar(&changedBy, "changed-by", "", "UUID of the user making the change")

	return cmd
}

func printTransitions(w io.Writer, statuses []models.Status) {
	for _, status := range statuses {
		fmt.Fprintf(w, "%-12s -> %s\n", status, joinStatuses(models.ValidTransitionsFrom(status)))
	}
}

func joinStatuses(statuses []models.Status) string {
	if len(statuses) == 0 {
		return "(none)"
	}
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}
