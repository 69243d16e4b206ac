package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// InitSQLite initializes the local SQLite database and creates the schemas
// for server sessions, the diagnostics log and payload dumps.
func InitSQLite(dbPath string) (*sql.DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// database/sql would otherwise open concurrent writers on one file
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	// Create tables
	if err := createSchemas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schemas: %w", err)
	}

	return db, nil
}

func createSchemas(db *sql.DB) error {
	schemas := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			started_at DATETIME NOT NULL,
			config TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS hint_events (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			timestamp DATETIME NOT NULL,
			event_type TEXT NOT NULL,
			actor_id TEXT NOT NULL,
			target_id TEXT NOT NULL,
			payload TEXT NOT NULL,
			frame INTEGER NOT NULL DEFAULT 0,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id)
		);`,
		`CREATE TABLE IF NOT EXISTS payload_dumps (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			player_id TEXT NOT NULL,
			frame INTEGER NOT NULL,
			text TEXT NOT NULL,
			length INTEGER NOT NULL,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_hint_events_session ON hint_events(session_id);`,
		`CREATE INDEX IF NOT EXISTS idx_hint_events_target ON hint_events(target_id);`,
		`CREATE INDEX IF NOT EXISTS idx_hint_events_type ON hint_events(event_type);`,
		`CREATE INDEX IF NOT EXISTS idx_payload_dumps_player ON payload_dumps(player_id, created_at);`,
	}

	for _, query := range schemas {
		if _, err := db.Exec(query); err != nil {
			return err
		}
	}

	return nil
}

// StartSession records a server run so events and dumps can be grouped by it.
func StartSession(ctx context.Context, db *sql.DB, sessionID, config string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, started_at, config) VALUES (?, ?, ?)`,
		sessionID, time.Now().UTC(), config)
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	return nil
}
