package main

import (
	"fmt"
	"os"

	"github.com/cyans/todo-app-sub000/cmd/todoctl/commands"
	"github.com/spf13/cobra"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "todoctl",
		Short: "Administration tool for the Todo API",
		Long:  "CLI tool for schema setup, todo statistics and status workflow maintenance",
	}

	rootCmd.AddCommand(commands.NewMigrateCmd())
	rootCmd.AddCommand(commands.NewStatsCmd())
	rootCmd.AddCommand(commands.NewHistoryCmd())
	rootCmd.AddCommand(commands.NewTransitionsCmd())
	rootCmd.AddCommand(commands.NewTransitionCmd())
	rootCmd.AddCommand(commands.NewPurgeDLQCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
