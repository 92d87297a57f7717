package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"filepanel/internal/logging"
)

type migrationStep struct {
	Name string
	SQL  string
}

var steps = []migrationStep{
	{
		Name: "create_table_file_list_snapshots",
		SQL: `CREATE TABLE IF NOT EXISTS file_list_snapshots (
  cache_key    TEXT        PRIMARY KEY,
  filter_query TEXT        NOT NULL,
  payload      BYTEA       NOT NULL,
  record_count INTEGER     NOT NULL CHECK (record_count >= 0),
  fetched_at   TIMESTAMPTZ NOT NULL
);`,
	},
	{
		Name: "create_index_file_list_snapshots_fetched_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_file_list_snapshots_fetched_at ON file_list_snapshots (fetched_at);`,
	},
}

// EnsureMigrated creates the snapshot table when its sentinel is missing.
func EnsureMigrated(ctx context.Context, db *sql.DB, logger *logging.Logger, dbHost string) error {
	if logger == nil {
		logger = logging.Nop()
	}
	logger = logger.With("database")
	start := time.Now()

	logger.Log(map[string]any{
		"event":   "db_migration_check",
		"status":  "starting",
		"db_host": dbHost,
	})

	var exists bool
	query := "SELECT to_regclass('public.file_list_snapshots') IS NOT NULL"
	if err := db.QueryRowContext(ctx, query).Scan(&exists); err != nil {
		logger.Log(map[string]any{
			"event":         "db_migration_failed",
			"status":        "error",
			"error_message": fmt.Sprintf("failed to check sentinel table: %v", err),
			"db_host":       dbHost,
			"duration_ms":   time.Since(start).Milliseconds(),
		})
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		logger.Log(map[string]any{
			"event":       "db_migration_skip",
			"status":      "success",
			"msg":         "schema already exists, skipping migration",
			"db_host":     dbHost,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		return nil
	}

	for _, step := range steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			logger.Log(map[string]any{
				"event":            "db_migration_failed",
				"status":           "error",
				"migration_step":   step.Name,
				"error_message":    err.Error(),
				"db_host":          dbHost,
				"step_duration_ms": time.Since(stepStart).Milliseconds(),
			})
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		logger.Log(map[string]any{
			"event":            "db_migration_step",
			"status":           "success",
			"migration_step":   step.Name,
			"db_host":          dbHost,
			"step_duration_ms": time.Since(stepStart).Milliseconds(),
		})
	}

	logger.Log(map[string]any{
		"event":       "db_migration_success",
		"status":      "success",
		"db_host":     dbHost,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return nil
}
