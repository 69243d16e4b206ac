// Package storage provides the persistence layer for the hint server.
// This package implements the repository pattern to keep the hint core pure.
package storage

import (
	"context"
	"time"
)

// HintEvent mirrors the diagnostics event structure for persistence.
// The hint core should NOT import this; use interfaces instead.
type HintEvent struct {
	ID        string                 `json:"id" db:"id"`
	SessionID string                 `json:"session_id" db:"session_id"`
	Timestamp time.Time              `json:"timestamp" db:"timestamp"`
	EventType string                 `json:"event_type" db:"event_type"`
	ActorID   string                 `json:"actor_id" db:"actor_id"`
	TargetID  string                 `json:"target_id" db:"target_id"`
	Payload   map[string]interface{} `json:"payload" db:"payload"`
	Frame     int64                  `json:"frame" db:"frame"`
}

// EventRepository defines the interface for diagnostics persistence.
type EventRepository interface {
	// Append adds a new event to the ledger.
	Append(ctx context.Context, event HintEvent) error

	// GetBySession retrieves all events of one server run.
	GetBySession(ctx context.Context, sessionID string) ([]HintEvent, error)

	// GetByTarget retrieves all events affecting a player.
	GetByTarget(ctx context.Context, sessionID, targetID string) ([]HintEvent, error)

	// GetByEventType retrieves all events of a specific type.
	GetByEventType(ctx context.Context, sessionID string, eventType string) ([]HintEvent, error)

	// Prune deletes events older than the given time and reports how many.
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// PayloadDump is one compiled payload captured for inspection.
type PayloadDump struct {
	ID        string    `json:"id" db:"id"`
	SessionID string    `json:"session_id" db:"session_id"`
	PlayerID  string    `json:"player_id" db:"player_id"`
	Frame     int64     `json:"frame" db:"frame"`
	Text      string    `json:"text" db:"text"`
	Length    int       `json:"length" db:"length"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// DumpRepository defines the interface for payload dumps.
type DumpRepository interface {
	// Save stores a dump.
	Save(ctx context.Context, dump PayloadDump) error

	// Latest returns the newest dumps for a player, newest first.
	Latest(ctx context.Context, playerID string, limit int) ([]PayloadDump, error)
}
