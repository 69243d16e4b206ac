package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MRamiBalles/hintserver/internal/events"
)

// EventPersister writes diagnostics log events to an EventRepository.
type EventPersister struct {
	repo      EventRepository
	sessionID string
}

// NewEventPersister creates a persister tagging rows with sessionID.
func NewEventPersister(repo EventRepository, sessionID string) *EventPersister {
	return &EventPersister{repo: repo, sessionID: sessionID}
}

// Append implements events.EventPersister.
func (p *EventPersister) Append(ctx context.Context, e events.HintEvent) error {
	payload, err := toMap(e.Payload)
	if err != nil {
		return fmt.Errorf("failed to convert payload of %s: %w", e.ID, err)
	}
	return p.repo.Append(ctx, HintEvent{
		ID:        e.ID,
		SessionID: p.sessionID,
		Timestamp: e.Timestamp,
		EventType: string(e.Type),
		ActorID:   e.ActorID,
		TargetID:  e.TargetID,
		Payload:   payload,
		Frame:     int64(e.Frame),
	})
}

func toMap(v interface{}) (map[string]interface{}, error) {
	switch m := v.(type) {
	case nil:
		return map[string]interface{}{}, nil
	case map[string]interface{}:
		return m, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := map[string]interface{}{}
	if err := json.Unmarshal(b, &out); err != nil {
		// Scalars and slices are kept under a single key.
		return map[string]interface{}{"value": v}, nil
	}
	return out, nil
}
