// Package database provides schema migrations for the Aegis database.
package database

import (
	"log"
)

// migrate runs all database migrations to create the schema.
// Creates the healing action history table.
//
// Returns an error if any migration fails.
func migrate() error {
	migrations := []struct {
		name string
		sql  string
	}{
		{
			name: "create_healing_actions_table",
			sql: `
CREATE TABLE IF NOT EXISTS healing_actions (
    id TEXT PRIMARY KEY,
    action_type TEXT NOT NULL,
    fix TEXT NOT NULL,
    component TEXT NOT NULL,
    description TEXT NOT NULL,
    status TEXT NOT NULL,
    result TEXT,
    created_at TIMESTAMP NOT NULL,
    completed_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_healing_actions_component ON healing_actions(component);
CREATE INDEX IF NOT EXISTS idx_healing_actions_status ON healing_actions(status);
CREATE INDEX IF NOT EXISTS idx_healing_actions_created_at ON healing_actions(created_at);
			`,
		},
	}

	for _, migration := range migrations {
		log.Printf("Running migration: %s", migration.name)
		if _, err := db.Exec(migration.sql); err != nil {
			log.Printf("Migration failed for %s: %v", migration.name, err)
			return err
		}
		log.Printf("Migration completed: %s", migration.name)
	}

	return nil
}
