package commands

import (
	"fmt"
	"os"

	"github.com/cyans/todo-app-sub000/internal/config"
	"github.com/cyans/todo-app-sub000/internal/database"
	"github.com/cyans/todo-app-sub000/internal/services/workflow"
	"go.uber.org/zap"
)

// openDatabase loads configuration and connects to Postgres. The returned
// function closes the connection.
func openDatabase() (*database.DB, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.StorageDriver != config.StorageDriverPostgres {
		return nil, nil, fmt.Errorf("todoctl needs the %s storage driver, got %s", config.StorageDriverPostgres, cfg.StorageDriver)
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
		}
	}
	return db, closeDB, nil
}

// openWorkflow builds a workflow service over the configured database
func openWorkflow() (*workflow.Service, func(), error) {
	db, closeDB, err := openDatabase()
	if err != nil {
		return nil, nil, err
	}
	return workflow.NewService(database.NewPostgresTodoStore(db), zap.NewNop()), closeDB, nil
}
