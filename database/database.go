// Package database provides database initialization and connection management.
package database

import (
	"database/sql"
	"log"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// MemoryDSN is the default data source: a shared in-memory SQLite database
// that lives for the process lifetime. Healing history is not persisted
// across restarts unless an operator points AEGIS_DB_PATH at a file.
const MemoryDSN = "file:aegis?mode=memory&cache=shared"

var db *sql.DB

// Initialize opens the SQLite database and runs migrations. An empty dsn
// selects the in-memory default.
func Initialize(dsn string) error {
	if dsn == "" {
		dsn = MemoryDSN
	}
	log.Printf("Initializing database: %s", dsn)

	var err error
	db, err = sql.Open("sqlite3", dsn)
	if err != nil {
		log.Printf("Failed to open database: %v", err)
		return err
	}

	if strings.Contains(dsn, "mode=memory") {
		// A shared-cache in-memory database must be reached through a
		// single connection or new connections see an empty schema.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
	}

	if err := db.Ping(); err != nil {
		log.Printf("Failed to ping database: %v", err)
		return err
	}

	if err := migrate(); err != nil {
		log.Printf("Failed to run migrations: %v", err)
		return err
	}

	log.Println("Database initialized successfully")
	return nil
}

// GetDB returns the active database connection.
// Initialize() must be called before using this function.
func GetDB() *sql.DB {
	return db
}

// Close closes the database connection.
// This should be called during application shutdown.
func Close() error {
	if db != nil {
		log.Println("Closing database connection")
		return db.Close()
	}
	return nil
}
