package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/MRamiBalles/hintserver/internal/events"
	"github.com/MRamiBalles/hintserver/internal/hint"
	"github.com/MRamiBalles/hintserver/internal/hint/elements"
)

var ErrUnknownPoll = errors.New("unknown poll")

// leaveTimeout bounds how long PlayerLeft waits for a full command queue.
const leaveTimeout = 2 * time.Second

// TemporaryPayload is the data for EventTypeTemporaryQueued.
type TemporaryPayload struct {
	Text        string  `json:"text"`
	DurationSec float64 `json:"duration_sec"`
	Priority    bool    `json:"priority"`
	Delivered   int     `json:"delivered"`
}

// AnnouncementPayload is the data for EventTypeAnnouncement.
type AnnouncementPayload struct {
	Text        string  `json:"text"`
	DurationSec float64 `json:"duration_sec"`
	Raw         bool    `json:"raw"`
}

// PollPayload is the data for EventTypePollCreated.
type PollPayload struct {
	PollID      string   `json:"poll_id"`
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	DurationSec float64  `json:"duration_sec"`
}

// Status is a snapshot of the scheduler for the admin API.
type Status struct {
	Frame      uint64              `json:"frame"`
	IntervalMS int64               `json:"interval_ms"`
	Elements   int                 `json:"elements"`
	Players    []hint.PlayerStatus `json:"players"`
}

// ShowTemporary queues a temporary message for one player, or for every
// player when playerID is empty. It returns how many players got it.
func (e *Engine) ShowTemporary(ctx context.Context, playerID, text string, d time.Duration, priority bool) (int, error) {
	m := hint.TemporaryMessage{Content: text, Duration: d}
	delivered := 0
	err := e.Call(ctx, func(s *hint.Scheduler) error {
		if playerID == "" {
			delivered = s.BroadcastTemporary(m, priority)
			return nil
		}
		if err := s.ShowTemporary(playerID, m, priority); err != nil {
			return err
		}
		delivered = 1
		return nil
	})
	if err != nil {
		return 0, err
	}
	e.eventLog.Append(events.HintEvent{
		Type:     events.EventTypeTemporaryQueued,
		ActorID:  events.ActorSystem,
		TargetID: playerID,
		Payload: TemporaryPayload{
			Text:        text,
			DurationSec: d.Seconds(),
			Priority:    priority,
			Delivered:   delivered,
		},
	})
	return delivered, nil
}

// Announce shows text to every player, hiding everything else, for d.
func (e *Engine) Announce(ctx context.Context, text string, d time.Duration, raw bool) error {
	a := elements.NewAnnouncement(text, d, raw, e.clock)
	err := e.Call(ctx, func(s *hint.Scheduler) error {
		if err := s.Register(a); err != nil {
			return err
		}
		s.ForceSend()
		return nil
	})
	if err != nil {
		return err
	}
	e.eventLog.Append(events.HintEvent{
		Type:    events.EventTypeAnnouncement,
		ActorID: events.ActorSystem,
		Payload: AnnouncementPayload{Text: text, DurationSec: d.Seconds(), Raw: raw},
	})
	e.logger.Event(string(events.EventTypeAnnouncement), events.ActorSystem, text)
	return nil
}

// StartCountdown shows a countdown to now+d. onExpire, if set, runs on the
// frame goroutine when it reaches zero.
func (e *Engine) StartCountdown(ctx context.Context, label string, d time.Duration, onExpire func()) error {
	c := elements.NewCountdown(label, e.clock.Now().Add(d), e.clock)
	c.CustomID = "countdown"
	c.OnExpire = onExpire
	return e.Call(ctx, func(s *hint.Scheduler) error {
		return s.Register(c)
	})
}

// CreatePoll starts an audience poll and returns its id. An empty id gets a
// generated one.
func (e *Engine) CreatePoll(ctx context.Context, id, question string, options []string, d time.Duration) (string, error) {
	if len(options) < 2 {
		return "", errors.New("a poll needs at least two options")
	}
	if id == "" {
		id = uuid.NewString()[:8]
	}
	p := elements.NewPoll(id, question, options, d, e.clock)
	p.OnResolved = func(r elements.PollResult) {
		e.eventLog.Append(events.HintEvent{
			Type:    events.EventTypePollResolved,
			ActorID: events.ActorSystem,
			Payload: r,
		})
		e.logger.Info("poll resolved", "poll", r.PollID, "winner", r.Winner, "results", r.Results)
	}
	if err := e.Call(ctx, func(s *hint.Scheduler) error { return s.Register(p) }); err != nil {
		return "", err
	}
	e.eventLog.Append(events.HintEvent{
		Type:    events.EventTypePollCreated,
		ActorID: events.ActorSystem,
		Payload: PollPayload{PollID: id, Question: question, Options: options, DurationSec: d.Seconds()},
	})
	return id, nil
}

// Vote counts one vote in a running poll.
func (e *Engine) Vote(ctx context.Context, pollID, option string) error {
	return e.Call(ctx, func(s *hint.Scheduler) error {
		el, ok := s.Find("poll:" + pollID)
		if !ok {
			return errors.Wrapf(ErrUnknownPoll, "%q", pollID)
		}
		p, ok := el.(*elements.Poll)
		if !ok {
			return errors.Wrapf(ErrUnknownPoll, "%q", pollID)
		}
		return p.CastVote(option)
	})
}

// ForceSend makes the next frame run a pass.
func (e *Engine) ForceSend(ctx context.Context) error {
	return e.Call(ctx, func(s *hint.Scheduler) error {
		s.ForceSend()
		return nil
	})
}

// Status reads a snapshot of the scheduler.
func (e *Engine) Status(ctx context.Context) (Status, error) {
	var st Status
	err := e.Call(ctx, func(s *hint.Scheduler) error {
		st = Status{
			Frame:      s.Frame(),
			IntervalMS: s.Interval().Milliseconds(),
			Elements:   s.Elements(),
			Players:    s.Status(),
		}
		return nil
	})
	return st, err
}

// PlayerJoined registers the player's personal elements.
func (e *Engine) PlayerJoined(p hint.Player, nameplate bool) {
	e.eventLog.Append(events.HintEvent{
		Type:     events.EventTypePlayerJoined,
		ActorID:  events.ActorSystem,
		TargetID: p.ID(),
	})
	if !nameplate {
		return
	}
	id := p.ID()
	err := e.Submit(func(s *hint.Scheduler) {
		if err := s.Register(elements.NewNameplate(id)); err != nil {
			e.logger.Warn("nameplate not registered", "player", id, "error", err)
		}
	})
	if err != nil {
		e.logger.Warn("player join not queued", "player", id, "error", err)
	}
}

// PlayerLeft drops the player's scheduler state and personal elements.
func (e *Engine) PlayerLeft(playerID string) {
	e.eventLog.Append(events.HintEvent{
		Type:     events.EventTypePlayerLeft,
		ActorID:  events.ActorSystem,
		TargetID: playerID,
	})
	// Leaves must not be dropped; wait for room in the queue.
	ctx, cancel := context.WithTimeout(context.Background(), leaveTimeout)
	defer cancel()
	if err := e.SubmitWait(ctx, func(s *hint.Scheduler) { s.RemovePlayer(playerID) }); err != nil {
		e.logger.Error("player leave not queued", "player", playerID, "error", err)
	}
}
