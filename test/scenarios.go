// Package test holds end-to-end scenarios that drive the hint scheduler
// through the engine frame loop with a manual clock and an in-memory sink.
// cmd/test-runner runs them outside of go test.
package test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MRamiBalles/hintserver/internal/domain/player"
	"github.com/MRamiBalles/hintserver/internal/engine"
	"github.com/MRamiBalles/hintserver/internal/events"
	"github.com/MRamiBalles/hintserver/internal/hint"
	"github.com/MRamiBalles/hintserver/internal/hint/elements"
	"github.com/MRamiBalles/hintserver/internal/platform/logger"
	"github.com/MRamiBalles/hintserver/internal/platform/metrics"
)

// TestResult captures the outcome of each scenario.
type TestResult struct {
	ScenarioName string
	Expected     string
	Actual       string
	Passed       bool
}

// Scenario is one end-to-end check.
type Scenario struct {
	Name string
	Run  func(ctx context.Context, h *Harness) TestResult
}

// ManualClock only moves when told to.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// Now implements hint.Clock.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type roster struct {
	sessions []*player.Session
}

func (r *roster) Players() []hint.Player {
	out := make([]hint.Player, len(r.sessions))
	for i, s := range r.sessions {
		out[i] = s
	}
	return out
}

func (r *roster) Lookup(id string) (hint.Player, bool) {
	for _, s := range r.sessions {
		if s.ID() == id {
			return s, true
		}
	}
	return nil, false
}

func (r *roster) IsPaused(p hint.Player) bool {
	s, ok := p.(*player.Session)
	return ok && s.Paused()
}

type recorder struct {
	last map[string]hint.Payload
	sent map[string][]hint.Payload
}

func (r *recorder) Send(id string, p hint.Payload) error {
	r.last[id] = p
	r.sent[id] = append(r.sent[id], p)
	return nil
}

// Harness wires a scheduler and engine for one scenario.
type Harness struct {
	Clock   *ManualClock
	Engine  *engine.Engine
	Sched   *hint.Scheduler
	Metrics *metrics.Collector
	Events  *events.EventLog
	players *roster
	out     *recorder
}

// NewHarness creates a harness with the given connected players.
func NewHarness(log *logger.Logger, playerIDs ...string) *Harness {
	clock := &ManualClock{now: time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC)}
	r := &roster{}
	for _, id := range playerIDs {
		r.sessions = append(r.sessions, player.NewSession(id, "Player "+id, clock.Now()))
	}
	out := &recorder{last: make(map[string]hint.Payload), sent: make(map[string][]hint.Payload)}
	m := metrics.NewCollector()
	el := events.NewEventLog(nil)
	sched := hint.NewScheduler(r, out, hint.Options{Clock: clock, Logger: log, Metrics: m, Reporter: el})
	eng := engine.NewEngine(sched, engine.Options{Clock: clock, Logger: log, Metrics: m, EventLog: el})
	return &Harness{Clock: clock, Engine: eng, Sched: sched, Metrics: m, Events: el, players: r, out: out}
}

// Do runs fn on the next frame.
func (h *Harness) Do(fn func(s *hint.Scheduler)) {
	_ = h.Engine.Submit(fn)
	h.Engine.Step()
}

// Frame forces a pass and runs one frame.
func (h *Harness) Frame() {
	h.Do(func(s *hint.Scheduler) { s.ForceSend() })
}

// Last returns the last payload sent to a player.
func (h *Harness) Last(id string) hint.Payload {
	return h.out.last[id]
}

// Session returns a connected player's session.
func (h *Harness) Session(id string) *player.Session {
	p, _ := h.players.Lookup(id)
	s, _ := p.(*player.Session)
	return s
}

type staticElement struct {
	hint.Base
	text string
}

func (e *staticElement) OnUpdate(*strings.Builder) error { return nil }

func (e *staticElement) OnDraw(_ hint.Player, buf *strings.Builder) (bool, error) {
	buf.WriteString(e.text)
	return true, nil
}

func newStatic(text string, offset float64) *staticElement {
	return &staticElement{Base: hint.Base{Flags: hint.DefaultFlags, Offset: offset}, text: text}
}

// Scenarios returns every end-to-end scenario.
func Scenarios() []Scenario {
	return []Scenario{
		{Name: "Hello World end to end", Run: helloWorld},
		{Name: "Priority message resumes the interrupted one", Run: priorityQueue},
		{Name: "Oversized contribution is dropped whole", Run: overflow},
		{Name: "Countdown negotiates a faster pass rate", Run: rateNegotiation},
		{Name: "Announcement overrides every element", Run: announcement},
		{Name: "Paused player receives nothing", Run: pausedPlayer},
	}
}

func helloWorld(_ context.Context, h *Harness) TestResult {
	h.Do(func(s *hint.Scheduler) { _ = s.Register(newStatic("Hello\nWorld", 0)) })
	want := "<line-height=0>\n" +
		"<voffset=0em><align=center>Hello</align></voffset>\n" +
		"<voffset=-1em><align=center>World</align></voffset>\n" +
		"</line-height>"
	got := h.Last("P1").Text
	return TestResult{Expected: fmt.Sprintf("%q", want), Actual: fmt.Sprintf("%q", got), Passed: got == want}
}

func priorityQueue(_ context.Context, h *Harness) TestResult {
	h.Do(func(s *hint.Scheduler) {
		_ = s.ShowTemporary("P1", hint.TemporaryMessage{Content: "A", Duration: 5 * time.Second}, false)
		_ = s.ShowTemporary("P1", hint.TemporaryMessage{Content: "B", Duration: 5 * time.Second}, false)
	})
	h.Clock.Advance(2 * time.Second)
	h.Do(func(s *hint.Scheduler) {
		_ = s.ShowTemporary("P1", hint.TemporaryMessage{Content: "C", Duration: 3 * time.Second}, true)
	})

	var shown []string
	seen := ""
	for i := 0; i < 40; i++ {
		h.Clock.Advance(500 * time.Millisecond)
		h.Frame()
		text := h.Last("P1").Text
		for _, c := range []string{"A", "B", "C"} {
			if strings.Contains(text, ">"+c+"<") && c != seen {
				shown = append(shown, c)
				seen = c
			}
		}
	}
	got := strings.Join(shown, ",")
	return TestResult{Expected: "C,A,B", Actual: got, Passed: got == "C,A,B"}
}

func overflow(_ context.Context, h *Harness) TestResult {
	h.Do(func(s *hint.Scheduler) {
		_ = s.Register(newStatic(strings.Repeat("a ", 12000), 0))
		_ = s.Register(newStatic(strings.Repeat("b ", 12000), 10))
		_ = s.Register(newStatic("tail", 20))
	})
	text := h.Last("P1").Text
	ok := strings.Contains(text, "tail") && strings.Contains(text, "a a") && !strings.Contains(text, "b b") && len(text) < hint.MaxPayloadLength
	return TestResult{
		Expected: "first and last kept, second dropped",
		Actual:   fmt.Sprintf("len=%d drops=%d", len(text), h.Metrics.OverflowDrops),
		Passed:   ok && h.Metrics.OverflowDrops == 1,
	}
}

func rateNegotiation(_ context.Context, h *Harness) TestResult {
	var c *elements.Countdown
	h.Do(func(s *hint.Scheduler) {
		c = elements.NewCountdown("Round ends in", h.Clock.Now().Add(12*time.Second), h.Clock)
		_ = s.Register(c)
	})
	before := h.Sched.Interval()
	h.Clock.Advance(5 * time.Second)
	h.Frame()
	during := h.Sched.Interval()
	h.Clock.Advance(10 * time.Second)
	h.Frame()
	h.Frame()
	after := h.Sched.Interval()

	got := fmt.Sprintf("%v,%v,%v", before, during, after)
	return TestResult{Expected: "500ms,100ms,500ms", Actual: got, Passed: got == "500ms,100ms,500ms"}
}

func announcement(_ context.Context, h *Harness) TestResult {
	h.Do(func(s *hint.Scheduler) {
		_ = s.Register(newStatic("scoreboard", 5))
		_ = s.Register(elements.NewAnnouncement("Server restart", time.Minute, false, h.Clock))
	})
	text := h.Last("P1").Text
	ok := strings.Contains(text, "Server restart") && !strings.Contains(text, "scoreboard")
	return TestResult{Expected: "only the announcement", Actual: fmt.Sprintf("%q", text), Passed: ok}
}

func pausedPlayer(_ context.Context, h *Harness) TestResult {
	h.Session("P1").SetPaused(true)
	h.Do(func(s *hint.Scheduler) { _ = s.Register(newStatic("visible", 0)) })
	h.Frame()
	n := len(h.out.sent["P1"])
	return TestResult{Expected: "0 payloads", Actual: fmt.Sprintf("%d payloads", n), Passed: n == 0}
}

// RunAll runs every scenario on a fresh harness.
func RunAll(ctx context.Context, log *logger.Logger) []TestResult {
	var results []TestResult
	for _, sc := range Scenarios() {
		h := NewHarness(log, "P1")
		r := sc.Run(ctx, h)
		r.ScenarioName = sc.Name
		results = append(results, r)
	}
	return results
}
