package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// SQLiteEventRepository implements EventRepository for SQLite.
type SQLiteEventRepository struct {
	db *sql.DB
}

func NewSQLiteEventRepository(db *sql.DB) *SQLiteEventRepository {
	return &SQLiteEventRepository{db: db}
}

func (r *SQLiteEventRepository) Append(ctx context.Context, event HintEvent) error {
	payloadBytes, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	query := `
		INSERT INTO hint_events (id, session_id, timestamp, event_type, actor_id, target_id, payload, frame)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		event.ID, event.SessionID, event.Timestamp.UTC(), event.EventType, event.ActorID,
		event.TargetID, string(payloadBytes), event.Frame,
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

const eventColumns = `id, session_id, timestamp, event_type, actor_id, target_id, payload, frame`

func (r *SQLiteEventRepository) getMany(ctx context.Context, query string, args ...interface{}) ([]HintEvent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []HintEvent
	for rows.Next() {
		var e HintEvent
		var payloadStr string
		err := rows.Scan(
			&e.ID, &e.SessionID, &e.Timestamp, &e.EventType, &e.ActorID,
			&e.TargetID, &payloadStr, &e.Frame,
		)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(payloadStr), &e.Payload); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *SQLiteEventRepository) GetBySession(ctx context.Context, sessionID string) ([]HintEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM hint_events WHERE session_id = ? ORDER BY timestamp ASC`
	return r.getMany(ctx, query, sessionID)
}

func (r *SQLiteEventRepository) GetByTarget(ctx context.Context, sessionID, targetID string) ([]HintEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM hint_events WHERE session_id = ? AND target_id = ? ORDER BY timestamp ASC`
	return r.getMany(ctx, query, sessionID, targetID)
}

func (r *SQLiteEventRepository) GetByEventType(ctx context.Context, sessionID string, eventType string) ([]HintEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM hint_events WHERE session_id = ? AND event_type = ? ORDER BY timestamp ASC`
	return r.getMany(ctx, query, sessionID, eventType)
}

func (r *SQLiteEventRepository) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM hint_events WHERE timestamp < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune events: %w", err)
	}
	return res.RowsAffected()
}

// ---------------------------------------------------------
// SQLiteDumpRepository
// ---------------------------------------------------------

type SQLiteDumpRepository struct {
	db *sql.DB
}

func NewSQLiteDumpRepository(db *sql.DB) *SQLiteDumpRepository {
	return &SQLiteDumpRepository{db: db}
}

func (r *SQLiteDumpRepository) Save(ctx context.Context, dump PayloadDump) error {
	query := `
		INSERT INTO payload_dumps (id, session_id, player_id, frame, text, length, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		dump.ID, dump.SessionID, dump.PlayerID, dump.Frame, dump.Text, dump.Length, dump.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save dump: %w", err)
	}
	return nil
}

func (r *SQLiteDumpRepository) Latest(ctx context.Context, playerID string, limit int) ([]PayloadDump, error) {
	query := `SELECT id, session_id, player_id, frame, text, length, created_at FROM payload_dumps WHERE player_id = ? ORDER BY created_at DESC, frame DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, playerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dumps []PayloadDump
	for rows.Next() {
		var d PayloadDump
		if err := rows.Scan(&d.ID, &d.SessionID, &d.PlayerID, &d.Frame, &d.Text, &d.Length, &d.CreatedAt); err != nil {
			return nil, err
		}
		dumps = append(dumps, d)
	}
	return dumps, rows.Err()
}
