package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// Recapper summarizes stored diagnostics for one player, for operators
// looking into why a player's overlay misbehaved.
type Recapper struct {
	eventRepo EventRepository
}

// NewRecapper creates a new recap builder.
func NewRecapper(eventRepo EventRepository) *Recapper {
	return &Recapper{eventRepo: eventRepo}
}

// RecapEvent is a simplified event for the recap view.
type RecapEvent struct {
	Timestamp string `json:"timestamp"`
	EventType string `json:"event_type"`
	Summary   string `json:"summary"`  // Human-readable description
	Severity  string `json:"severity"` // "ERROR", "WARN", "INFO"
}

// Recap is the per-player summary.
type Recap struct {
	PlayerID        string         `json:"player_id"`
	Counts          map[string]int `json:"counts"`
	LargestRejected string         `json:"largest_rejected,omitempty"`
	Events          []RecapEvent   `json:"events"`
}

// GenerateRecap builds the recap of a player's diagnostics since a given time.
func (r *Recapper) GenerateRecap(ctx context.Context, sessionID, playerID string, since time.Time) (*Recap, error) {
	events, err := r.eventRepo.GetByTarget(ctx, sessionID, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get events for player: %w", err)
	}

	recap := &Recap{PlayerID: playerID, Counts: make(map[string]int)}
	largest := 0
	for _, e := range events {
		if e.Timestamp.Before(since) {
			continue
		}
		recap.Counts[e.EventType]++
		if size := payloadInt(e, "size"); size > largest {
			largest = size
		}
		recap.Events = append(recap.Events, RecapEvent{
			Timestamp: e.Timestamp.Format(time.RFC3339),
			EventType: e.EventType,
			Summary:   summarizeEvent(e),
			Severity:  determineSeverity(e),
		})
	}
	if largest > 0 {
		recap.LargestRejected = humanize.Comma(int64(largest)) + " units"
	}
	return recap, nil
}

func payloadInt(e HintEvent, key string) int {
	if v, ok := e.Payload[key].(float64); ok {
		return int(v)
	}
	return 0
}

// summarizeEvent creates a human-readable summary.
func summarizeEvent(e HintEvent) string {
	switch e.EventType {
	case "OVERFLOW":
		return fmt.Sprintf("%s was dropped: payload would reach %s units", e.ActorID, humanize.Comma(int64(payloadInt(e, "size"))))
	case "ELEMENT_FAULT":
		if d, ok := e.Payload["detail"].(string); ok {
			return d
		}
		return e.ActorID + " failed"
	case "PLAYER_JOINED":
		return "Player connected"
	case "PLAYER_LEFT":
		return "Player disconnected"
	case "TEMPORARY_QUEUED":
		return "Temporary message queued"
	default:
		return e.EventType
	}
}

// determineSeverity classifies the event impact.
func determineSeverity(e HintEvent) string {
	switch e.EventType {
	case "ELEMENT_FAULT":
		return "ERROR"
	case "OVERFLOW", "STALE_ELEMENT":
		return "WARN"
	default:
		return "INFO"
	}
}
