package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cyans/todo-app-sub000/internal/config"
	"github.com/cyans/todo-app-sub000/internal/queue"
	"github.com/spf13/cobra"
)

// NewPurgeDLQCmd creates the purge-dlq command
func NewPurgeDLQCmd() *cobra.Command {
	var retention time.Duration

	cmd := &cobra.Command{
		Use:   "purge-dlq",
		Short: "Drop dead-lettered archive jobs",
		Long:  "Remove dead-lettered jobs older than the retention period. Defaults to DLQ_RETENTION.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if cfg.RabbitMQURL == "" {
				return fmt.Errorf("RABBITMQ_URL is required")
			}
			if !cmd.Flags().Changed("retention") {
				retention = cfg.DLQRetention
			}

			q, err := queue.NewRabbitMQQueue(cfg.RabbitMQURL, nil)
			if err != nil {
				return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
			}
			defer func() {
				if err := q.Close(); err != nil {
					fmt.Fprintf(os.Stderr, "Warning: failed to close RabbitMQ connection: %v\n", err)
				}
			}()

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()

			n, err := q.PurgeOlderThan(ctx, retention)
			if err != nil {
				return fmt.Errorf("failed to purge dead letters: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Purged %d dead-lettered jobs older than %s\n", n, retention)
			return nil
		},
	}

	cmd.Flags().DurationVar(&retention, "retention", 0, "Age after which dead-lettered jobs are dropped")

	return cmd
}
