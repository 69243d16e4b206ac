package hint

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/MRamiBalles/hintserver/internal/platform/logger"
	"github.com/MRamiBalles/hintserver/internal/platform/metrics"
)

// DefaultInterval is the wait between passes when nothing asks for less.
const DefaultInterval = 500 * time.Millisecond

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time {
	return f()
}

// Options configures a Scheduler. Zero values get working defaults.
type Options struct {
	DefaultInterval time.Duration
	Clock           Clock
	Logger          *logger.Logger
	Metrics         *metrics.Collector
	Reporter        Reporter
	// Dumper, when set, receives every non-empty payload.
	Dumper Dumper
}

// Scheduler owns every registered element and per-player state, and
// composites one payload per player on each pass.
//
// A Scheduler is not safe for concurrent use. Exactly one goroutine calls
// Tick and every other method.
type Scheduler struct {
	players PlayerSource
	sink    Sink
	clock   Clock
	log     *logger.Logger
	metrics *metrics.Collector
	report  Reporter
	dumper  Dumper

	defaultInterval time.Duration
	interval        time.Duration
	lastPass        time.Time
	passed          bool
	force           bool

	globals   []Element
	personals map[string][]Element
	custom    map[string]Element
	states    map[string]*PlayerState

	scratch TickScratch
}

// NewScheduler creates a scheduler reading players from players and
// delivering payloads to sink.
func NewScheduler(players PlayerSource, sink Sink, opts Options) *Scheduler {
	if opts.DefaultInterval <= 0 {
		opts.DefaultInterval = DefaultInterval
	}
	if opts.Clock == nil {
		opts.Clock = ClockFunc(time.Now)
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewCollector()
	}
	return &Scheduler{
		players:         players,
		sink:            sink,
		clock:           opts.Clock,
		log:             opts.Logger,
		metrics:         opts.Metrics,
		report:          opts.Reporter,
		dumper:          opts.Dumper,
		defaultInterval: opts.DefaultInterval,
		interval:        opts.DefaultInterval,
		personals:       make(map[string][]Element),
		custom:          make(map[string]Element),
		states:          make(map[string]*PlayerState),
	}
}

// Register enables e and adds it after every element of the same variant.
func (s *Scheduler) Register(e Element) error {
	b := e.Core()
	if b.active || b.stale {
		return ErrRegistered
	}
	if b.Variant == Personal && b.Owner == "" {
		return ErrNoOwner
	}
	if b.CustomID != "" {
		if held, dup := s.custom[b.CustomID]; dup {
			hb := held.Core()
			if hb.active && !hb.stale {
				return errors.Wrapf(ErrDuplicateID, "%q", b.CustomID)
			}
			// The holder is already on its way out; free the id now.
			s.evict(held)
		}
	}
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}

	b.buf = getBuilder()
	b.active = true
	b.stale = false
	b.lastFrame = 0
	b.faulted = 0
	b.lines.Reset()

	if b.CustomID != "" {
		s.custom[b.CustomID] = e
	}
	if b.Variant == Personal {
		s.personals[b.Owner] = append(s.personals[b.Owner], e)
	} else {
		s.globals = append(s.globals, e)
	}
	if lc, ok := e.(Lifecycle); ok {
		lc.OnEnabled()
	}
	s.log.Debug("element registered", "element", elementName(e), "id", b.ID, "variant", b.Variant)
	return nil
}

// Remove deactivates e. It is unregistered at the start of the next pass.
func (s *Scheduler) Remove(e Element) {
	b := e.Core()
	if b.buf == nil {
		return
	}
	b.active = false
	s.deferRemoval(e)
}

// Find returns the element registered with customID.
func (s *Scheduler) Find(customID string) (Element, bool) {
	e, ok := s.custom[customID]
	return e, ok
}

// Elements returns the number of registered elements.
func (s *Scheduler) Elements() int {
	n := len(s.globals)
	for _, list := range s.personals {
		n += len(list)
	}
	return n
}

// ForceSend makes the next Tick run a pass regardless of the interval.
func (s *Scheduler) ForceSend() {
	s.force = true
}

// Interval returns the wait negotiated by the last pass.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Frame returns the number of passes run so far.
func (s *Scheduler) Frame() uint64 {
	return s.scratch.frame
}

// ShowTemporary queues a temporary message for a connected player. With
// priority it interrupts the message on screen, which resumes afterwards.
func (s *Scheduler) ShowTemporary(playerID string, m TemporaryMessage, priority bool) error {
	if _, ok := s.players.Lookup(playerID); !ok {
		return errors.Wrapf(ErrUnknownPlayer, "%q", playerID)
	}
	st := s.state(playerID)
	if priority {
		st.queue.PushPriority(m, s.clock.Now())
	} else {
		st.queue.Push(m)
	}
	return nil
}

// BroadcastTemporary queues m for every eligible player.
func (s *Scheduler) BroadcastTemporary(m TemporaryMessage, priority bool) int {
	n := 0
	for _, p := range s.players.Players() {
		if err := s.ShowTemporary(p.ID(), m, priority); err == nil {
			n++
		}
	}
	return n
}

// RemovePlayer drops a player's state and schedules its personal elements
// for removal.
func (s *Scheduler) RemovePlayer(playerID string) {
	for _, e := range s.personals[playerID] {
		s.Remove(e)
	}
	delete(s.states, playerID)
}

// Status summarizes the state of every known player.
func (s *Scheduler) Status() []PlayerStatus {
	out := make([]PlayerStatus, 0, len(s.states))
	for id, st := range s.states {
		_, showing := st.queue.Current()
		out = append(out, PlayerStatus{
			PlayerID:  id,
			Paused:    st.paused,
			Showing:   showing,
			Queued:    st.queue.Len(),
			LastEmpty: st.lastEmpty,
			HOffset:   st.hOffset,
		})
	}
	slices.SortFunc(out, func(a, b PlayerStatus) int {
		switch {
		case a.PlayerID < b.PlayerID:
			return -1
		case a.PlayerID > b.PlayerID:
			return 1
		}
		return 0
	})
	return out
}

// Tick is the host frame callback. It runs a composite pass when the
// negotiated interval has elapsed since the last one or a send was forced,
// and does nothing otherwise.
func (s *Scheduler) Tick() {
	now := s.clock.Now()
	if !s.force && s.passed && now.Sub(s.lastPass) < s.interval {
		return
	}
	s.force = false

	s.scratch.resetFrame(s.defaultInterval)
	for _, p := range s.players.Players() {
		s.composePlayer(p, now)
	}
	s.processRemovals()

	s.interval = s.scratch.next
	s.lastPass = now
	s.passed = true
	s.metrics.RecordPass(s.interval)
}

func (s *Scheduler) state(playerID string) *PlayerState {
	st, ok := s.states[playerID]
	if !ok {
		st = newPlayerState()
		s.states[playerID] = st
	}
	return st
}

func (s *Scheduler) deferRemoval(e Element) {
	b := e.Core()
	if b.stale {
		return
	}
	b.stale = true
	s.scratch.deferred = append(s.scratch.deferred, e)
}

// processRemovals unregisters the elements deferred during earlier frames.
func (s *Scheduler) processRemovals() {
	if len(s.scratch.removing) == 0 {
		return
	}
	for _, e := range s.scratch.removing {
		s.unregister(e)
	}
	clear(s.scratch.removing)
	s.scratch.removing = s.scratch.removing[:0]
}

// evict unregisters e immediately, taking it off the removal lists.
func (s *Scheduler) evict(e Element) {
	isE := func(x Element) bool { return x == e }
	s.scratch.deferred = slices.DeleteFunc(s.scratch.deferred, isE)
	s.scratch.removing = slices.DeleteFunc(s.scratch.removing, isE)
	s.unregister(e)
}

func (s *Scheduler) unregister(e Element) {
	b := e.Core()
	if b.Variant == Personal {
		list := slices.DeleteFunc(s.personals[b.Owner], func(x Element) bool { return x == e })
		if len(list) == 0 {
			delete(s.personals, b.Owner)
		} else {
			s.personals[b.Owner] = list
		}
	} else {
		s.globals = slices.DeleteFunc(s.globals, func(x Element) bool { return x == e })
	}
	if b.CustomID != "" && s.custom[b.CustomID] == e {
		delete(s.custom, b.CustomID)
	}

	if lc, ok := e.(Lifecycle); ok {
		lc.OnDisabled()
	}
	if b.buf != nil {
		putBuilder(b.buf)
		b.buf = nil
	}
	b.active = false
	b.stale = false
	b.lines.Reset()
	b.ClearParams()

	s.metrics.RecordStaleRemoval()
	s.diagnose(Diagnostic{Kind: DiagStale, Element: elementName(e), ElementID: b.ID.String(), Frame: s.scratch.frame})
	s.log.Debug("element removed", "element", elementName(e), "id", b.ID)
}

func (s *Scheduler) diagnose(d Diagnostic) {
	if s.report != nil {
		s.report.Report(d)
	}
}
