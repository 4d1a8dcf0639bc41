package db

import (
	"database/sql"
	"fmt"
)

// schema is applied once to each fresh in-memory database
var schema = []string{
	`CREATE TABLE operations (
		id TEXT PRIMARY KEY,
		mode TEXT NOT NULL DEFAULT 'build',
		target_name TEXT NOT NULL,
		board_name TEXT NOT NULL,
		target_version TEXT NOT NULL,
		current_release TEXT DEFAULT '',
		current_revision TEXT DEFAULT '',
		packages TEXT DEFAULT '',
		install_packages TEXT DEFAULT '',
		status TEXT NOT NULL DEFAULT 'running',
		state TEXT NOT NULL DEFAULT 'created',
		error_message TEXT DEFAULT '',
		error_state TEXT DEFAULT '',
		image_name TEXT DEFAULT '',
		image_size INTEGER DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		started_at DATETIME,
		completed_at DATETIME
	)`,
	`CREATE INDEX idx_operations_status ON operations(status)`,
	`CREATE INDEX idx_operations_created ON operations(created_at)`,
}

func applySchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range schema {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return tx.Commit()
}
