package hint

import (
	"strings"
	"testing"
	"time"

	"github.com/MRamiBalles/hintserver/internal/platform/metrics"
)

type testPlayer struct {
	id     string
	aspect float64
}

func (p *testPlayer) ID() string           { return p.id }
func (p *testPlayer) Name() string         { return "player " + p.id }
func (p *testPlayer) AspectRatio() float64 { return p.aspect }

type testPlayers struct {
	list   []Player
	paused map[string]bool
}

func newTestPlayers(ids ...string) *testPlayers {
	tp := &testPlayers{paused: make(map[string]bool)}
	for _, id := range ids {
		tp.list = append(tp.list, &testPlayer{id: id, aspect: 16.0 / 9.0})
	}
	return tp
}

func (tp *testPlayers) Players() []Player { return tp.list }

func (tp *testPlayers) Lookup(id string) (Player, bool) {
	for _, p := range tp.list {
		if p.ID() == id {
			return p, true
		}
	}
	return nil, false
}

func (tp *testPlayers) IsPaused(p Player) bool { return tp.paused[p.ID()] }

type memSink struct {
	sent map[string][]Payload
}

func newMemSink() *memSink {
	return &memSink{sent: make(map[string][]Payload)}
}

func (m *memSink) Send(id string, p Payload) error {
	m.sent[id] = append(m.sent[id], p)
	return nil
}

func (m *memSink) last(t *testing.T, id string) Payload {
	t.Helper()
	list := m.sent[id]
	if len(list) == 0 {
		t.Fatalf("no payload sent to %s", id)
	}
	return list[len(list)-1]
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type memReporter struct {
	got []Diagnostic
}

func (r *memReporter) Report(d Diagnostic) { r.got = append(r.got, d) }

func (r *memReporter) kinds() []DiagnosticKind {
	out := make([]DiagnosticKind, 0, len(r.got))
	for _, d := range r.got {
		out = append(out, d.Kind)
	}
	return out
}

// textElement writes a fixed text on every draw.
type textElement struct {
	Base
	text      string
	updates   int
	draws     int
	updateErr error
	drawPanic bool
	onUpdate  func(b *Base)
}

func newText(text string, flags Flags) *textElement {
	return &textElement{Base: Base{Flags: flags}, text: text}
}

func (e *textElement) OnUpdate(buf *strings.Builder) error {
	e.updates++
	if e.onUpdate != nil {
		e.onUpdate(&e.Base)
	}
	return e.updateErr
}

func (e *textElement) OnDraw(p Player, buf *strings.Builder) (bool, error) {
	e.draws++
	if e.drawPanic {
		panic("draw exploded")
	}
	if e.text == "" {
		return false, nil
	}
	buf.WriteString(e.text)
	return true, nil
}

type rateElement struct {
	textElement
	want    time.Duration
	enabled bool
}

func (e *rateElement) DesiredInterval(def time.Duration) (time.Duration, bool) {
	return e.want, e.enabled
}

type lifecycleElement struct {
	textElement
	enabled  int
	disabled int
}

func (e *lifecycleElement) OnEnabled()  { e.enabled++ }
func (e *lifecycleElement) OnDisabled() { e.disabled++ }

type fixture struct {
	s        *Scheduler
	players  *testPlayers
	sink     *memSink
	clock    *fakeClock
	metrics  *metrics.Collector
	reporter *memReporter
}

func newFixture(ids ...string) *fixture {
	f := &fixture{
		players:  newTestPlayers(ids...),
		sink:     newMemSink(),
		clock:    &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)},
		metrics:  metrics.NewCollector(),
		reporter: &memReporter{},
	}
	f.s = NewScheduler(f.players, f.sink, Options{
		DefaultInterval: 500 * time.Millisecond,
		Clock:           f.clock,
		Metrics:         f.metrics,
		Reporter:        f.reporter,
	})
	return f
}

// pass forces a composite pass at the current time.
func (f *fixture) pass() {
	f.s.ForceSend()
	f.s.Tick()
}

func framed(body string) string {
	return frameHeader + body + frameFooter
}
