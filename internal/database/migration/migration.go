package migration

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

type migrationStep struct {
	Name string
	SQL  string
}

var steps = []migrationStep{
	{
		Name: "create_table_profiles",
		SQL: `CREATE TABLE IF NOT EXISTS profiles (
  user_id      TEXT PRIMARY KEY,
  display_name TEXT NOT NULL,
  avatar_url   TEXT NOT NULL DEFAULT ''
);`,
	},
	{
		Name: "create_table_stories",
		SQL: `CREATE TABLE IF NOT EXISTS stories (
  id           UUID        PRIMARY KEY,
  author_id    TEXT        NOT NULL REFERENCES profiles (user_id) ON DELETE CASCADE,
  content_url  TEXT        NOT NULL,
  storage_path TEXT        NOT NULL UNIQUE,
  content_type TEXT        NOT NULL CHECK (content_type IN ('image', 'video')),
  caption      TEXT        NOT NULL DEFAULT '' CHECK (char_length(caption) <= 200),
  created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
  expires_at   TIMESTAMPTZ NOT NULL,
  view_count   BIGINT      NOT NULL DEFAULT 0 CHECK (view_count >= 0)
);`,
	},
	{
		Name: "create_index_stories_expires_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_stories_expires_at ON stories (expires_at);`,
	},
	{
		Name: "create_index_stories_created_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_stories_created_at ON stories (created_at DESC);`,
	},
	{
		Name: "create_table_story_views",
		SQL: `CREATE TABLE IF NOT EXISTS story_views (
  story_id   UUID        NOT NULL REFERENCES stories (id) ON DELETE CASCADE,
  viewer_id  TEXT        NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  UNIQUE (story_id, viewer_id)
);`,
	},
	{
		Name: "create_index_story_views_viewer_id",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_story_views_viewer_id ON story_views (viewer_id);`,
	},
}

// EnsureMigrated checks if the 'story_views' table exists and runs migrations if it doesn't.
func EnsureMigrated(ctx context.Context, db *sql.DB, logger *slog.Logger, dbHost string) error {
	start := time.Now()
	log := logger.With("component", "database", "db_host", dbHost)

	log.Info("db_migration_check", "status", "starting")

	var exists bool
	query := "SELECT to_regclass('public.story_views') IS NOT NULL"
	err := db.QueryRowContext(ctx, query).Scan(&exists)
	if err != nil {
		log.Error("db_migration_failed",
			"status", "error",
			"error_message", fmt.Sprintf("failed to check sentinel table: %v", err),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		log.Info("db_migration_skip",
			"status", "success",
			"msg", "schema already exists, skipping migration",
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil
	}

	log.Info("db_migration_start", "status", "in_progress")

	for _, step := range steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			log.Error("db_migration_failed",
				"status", "error",
				"migration_step", step.Name,
				"error_message", err.Error(),
				"duration_ms", time.Since(start).Milliseconds(),
				"step_duration_ms", time.Since(stepStart).Milliseconds(),
			)
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		log.Info("db_migration_step",
			"status", "success",
			"migration_step", step.Name,
			"step_duration_ms", time.Since(stepStart).Milliseconds(),
		)
	}

	log.Info("db_migration_success",
		"status", "success",
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}
