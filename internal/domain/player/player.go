// Package player defines the connected player session.
// This package is PURE and must NOT import any infrastructure packages (network, events, platform).
package player

import (
	"errors"
	"math"
	"sync/atomic"
	"time"
)

// DefaultAspectRatio is assumed until the client reports its own.
const DefaultAspectRatio = 16.0 / 9.0

// Aspect ratios outside this range are rejected as client bugs.
const (
	MinAspectRatio = 0.5
	MaxAspectRatio = 5.0
)

var ErrInvalidAspectRatio = errors.New("aspect ratio out of range")

// Session is one connected player. Identity is fixed at creation; the
// display state is written by the connection goroutine and read by the
// hint scheduler, so it is stored atomically.
type Session struct {
	id       string
	name     string
	joinedAt time.Time

	aspect atomic.Uint64 // math.Float64bits
	paused atomic.Bool
}

// NewSession creates a session with the default aspect ratio.
func NewSession(id, name string, joinedAt time.Time) *Session {
	s := &Session{id: id, name: name, joinedAt: joinedAt}
	s.aspect.Store(math.Float64bits(DefaultAspectRatio))
	return s
}

// ID returns the player id.
func (s *Session) ID() string { return s.id }

// Name returns the display name.
func (s *Session) Name() string { return s.name }

// JoinedAt returns when the session was created.
func (s *Session) JoinedAt() time.Time { return s.joinedAt }

// AspectRatio returns the last reported screen aspect ratio.
func (s *Session) AspectRatio() float64 {
	return math.Float64frombits(s.aspect.Load())
}

// SetAspectRatio records the client's screen aspect ratio.
func (s *Session) SetAspectRatio(r float64) error {
	if math.IsNaN(r) || r < MinAspectRatio || r > MaxAspectRatio {
		return ErrInvalidAspectRatio
	}
	s.aspect.Store(math.Float64bits(r))
	return nil
}

// Paused reports whether the client asked to stop receiving hints.
func (s *Session) Paused() bool {
	return s.paused.Load()
}

// SetPaused pauses or resumes hint delivery.
func (s *Session) SetPaused(p bool) {
	s.paused.Store(p)
}

// Snapshot is a JSON-friendly copy of the session state.
type Snapshot struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	JoinedAt    time.Time `json:"joined_at"`
	AspectRatio float64   `json:"aspect_ratio"`
	Paused      bool      `json:"paused"`
}

// Snapshot returns the current state of the session.
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		ID:          s.id,
		Name:        s.name,
		JoinedAt:    s.joinedAt,
		AspectRatio: s.AspectRatio(),
		Paused:      s.Paused(),
	}
}
