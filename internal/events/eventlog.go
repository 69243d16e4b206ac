// Package events keeps the append-only diagnostics log of the hint server:
// dropped contributions, faulty elements, removed elements and operator
// actions. It is what the diagnostics endpoint replays.
package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// EventType defines the category of a hint event.
type EventType string

const (
	EventTypeOverflow        EventType = "OVERFLOW"
	EventTypeElementFault    EventType = "ELEMENT_FAULT"
	EventTypeStaleElement    EventType = "STALE_ELEMENT"
	EventTypeDebugDump       EventType = "DEBUG_DUMP"
	EventTypePlayerJoined    EventType = "PLAYER_JOINED"
	EventTypePlayerLeft      EventType = "PLAYER_LEFT"
	EventTypeTemporaryQueued EventType = "TEMPORARY_QUEUED"
	EventTypeAnnouncement    EventType = "ANNOUNCEMENT"
	EventTypePollCreated     EventType = "POLL_CREATED"
	EventTypePollResolved    EventType = "POLL_RESOLVED"
)

// ActorSystem marks events raised by the server itself.
const ActorSystem = "SYSTEM"

// DefaultCapacity bounds the in-memory log.
const DefaultCapacity = 10000

// HintEvent is an immutable record of something that happened to the overlay.
type HintEvent struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	Type      EventType   `json:"type"`
	ActorID   string      `json:"actor_id"`  // element type or SYSTEM
	TargetID  string      `json:"target_id"` // affected player (optional)
	Payload   interface{} `json:"payload"`
	Frame     uint64      `json:"frame"`
}

// EventPersister defines how an event is durably stored.
type EventPersister interface {
	Append(ctx context.Context, event HintEvent) error
}

// EventLog is the in-memory append-only log of hint events. When a
// persister is set, events are also queued for Run to write through.
type EventLog struct {
	mu       sync.RWMutex
	events   []HintEvent
	capacity int

	persister EventPersister
	pending   chan HintEvent
	dropped   atomic.Int64
}

// NewEventLog creates a new event log with an optional persister.
func NewEventLog(persister EventPersister) *EventLog {
	el := &EventLog{
		events:    make([]HintEvent, 0),
		capacity:  DefaultCapacity,
		persister: persister,
	}
	if persister != nil {
		el.pending = make(chan HintEvent, 1024)
	}
	return el
}

// SetCapacity changes how many events are kept in memory.
func (el *EventLog) SetCapacity(n int) {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.capacity = n
	el.trim()
}

// Append adds a new event to the log. Missing ids and timestamps are filled in.
func (el *EventLog) Append(event HintEvent) HintEvent {
	if event.ID == "" {
		event.ID = GenerateEventID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	el.mu.Lock()
	el.events = append(el.events, event)
	el.trim()
	el.mu.Unlock()

	if el.pending != nil {
		select {
		case el.pending <- event:
		default:
			el.dropped.Add(1)
		}
	}
	return event
}

func (el *EventLog) trim() {
	if el.capacity <= 0 || len(el.events) <= el.capacity {
		return
	}
	n := len(el.events) - el.capacity
	clear(el.events[:n])
	el.events = append(el.events[:0], el.events[n:]...)
}

// Run writes queued events through the persister until ctx is done, then
// flushes what is left. It returns immediately without a persister.
func (el *EventLog) Run(ctx context.Context) error {
	if el.pending == nil {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			el.flush()
			return nil
		case e := <-el.pending:
			el.persist(ctx, e)
		}
	}
}

func (el *EventLog) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case e := <-el.pending:
			el.persist(ctx, e)
		default:
			return
		}
	}
}

func (el *EventLog) persist(ctx context.Context, e HintEvent) {
	if err := el.persister.Append(ctx, e); err != nil {
		el.dropped.Add(1)
	}
}

// Dropped returns how many events could not be persisted.
func (el *EventLog) Dropped() int64 {
	return el.dropped.Load()
}

// Len returns the number of events in memory.
func (el *EventLog) Len() int {
	el.mu.RLock()
	defer el.mu.RUnlock()
	return len(el.events)
}

// Filter returns the events matching the given type and target. Empty
// arguments match everything.
func (el *EventLog) Filter(eventType EventType, targetID string) []HintEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var result []HintEvent
	for _, e := range el.events {
		if eventType != "" && e.Type != eventType {
			continue
		}
		if targetID != "" && e.TargetID != targetID {
			continue
		}
		result = append(result, e)
	}
	return result
}

// GetByActor returns all events raised by a specific actor.
func (el *EventLog) GetByActor(actorID string) []HintEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var result []HintEvent
	for _, e := range el.events {
		if e.ActorID == actorID {
			result = append(result, e)
		}
	}
	return result
}

// Replay returns a copy of the full history in memory.
func (el *EventLog) Replay() []HintEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()
	out := make([]HintEvent, len(el.events))
	copy(out, el.events)
	return out
}

// GenerateEventID creates a unique event identifier.
func GenerateEventID() string {
	return uuid.NewString()
}
