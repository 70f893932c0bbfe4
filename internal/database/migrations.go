package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema returns the DDL for a dialect. Both unique position indexes make
// gaps impossible to hide and duplicates impossible to commit.
func schema(dialect Dialect) []string {
	autoID := "INTEGER PRIMARY KEY AUTOINCREMENT"
	text := "TEXT"
	if dialect == DialectMySQL {
		autoID = "BIGINT PRIMARY KEY AUTO_INCREMENT"
		text = "VARCHAR(255)"
	}

	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS boards (
			id %s,
			project_id BIGINT NOT NULL,
			title %s NOT NULL,
			created_at DATETIME NOT NULL
		)`, autoID, text),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS columns (
			id %s,
			board_id BIGINT NOT NULL,
			title %s NOT NULL,
			wip_limit INTEGER NOT NULL DEFAULT 0,
			position INTEGER NOT NULL,
			UNIQUE (board_id, position),
			FOREIGN KEY (board_id) REFERENCES boards(id) ON DELETE CASCADE
		)`, autoID, text),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS cards (
			id %s,
			column_id BIGINT NOT NULL,
			title %s NOT NULL,
			description TEXT,
			priority INTEGER NOT NULL DEFAULT 2,
			due_date DATETIME NULL,
			milestone_id BIGINT NULL,
			position INTEGER NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			UNIQUE (column_id, position),
			FOREIGN KEY (column_id) REFERENCES columns(id)
		)`, autoID, text),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS card_assignees (
			card_id BIGINT NOT NULL,
			user_id %s NOT NULL,
			PRIMARY KEY (card_id, user_id),
			FOREIGN KEY (card_id) REFERENCES cards(id) ON DELETE CASCADE
		)`, text),

		`CREATE TABLE IF NOT EXISTS card_labels (
			card_id BIGINT NOT NULL,
			label_id BIGINT NOT NULL,
			PRIMARY KEY (card_id, label_id),
			FOREIGN KEY (card_id) REFERENCES cards(id) ON DELETE CASCADE
		)`,
	}
}

// runMigrations creates the schema if it does not exist yet
func runMigrations(ctx context.Context, db *sql.DB, dialect Dialect) error {
	for _, stmt := range schema(dialect) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
