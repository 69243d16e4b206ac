package elements

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MRamiBalles/hintserver/internal/hint"
)

type player struct{ id, name string }

func (p player) ID() string           { return p.id }
func (p player) Name() string         { return p.name }
func (p player) AspectRatio() float64 { return 16.0 / 9.0 }

type players []hint.Player

func (ps players) Players() []hint.Player { return ps }

func (ps players) Lookup(id string) (hint.Player, bool) {
	for _, p := range ps {
		if p.ID() == id {
			return p, true
		}
	}
	return nil, false
}

func (ps players) IsPaused(hint.Player) bool { return false }

type sink map[string]hint.Payload

func (s sink) Send(id string, p hint.Payload) error {
	s[id] = p
	return nil
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

type harness struct {
	s     *hint.Scheduler
	out   sink
	clock *fakeClock
}

func newHarness(ps ...hint.Player) *harness {
	h := &harness{
		out:   make(sink),
		clock: &fakeClock{now: time.Date(2024, 3, 1, 12, 34, 56, 0, time.UTC)},
	}
	h.s = hint.NewScheduler(players(ps), h.out, hint.Options{Clock: h.clock})
	return h
}

func (h *harness) pass() {
	h.s.ForceSend()
	h.s.Tick()
}

func (h *harness) advance(d time.Duration) {
	h.clock.now = h.clock.now.Add(d)
}

func TestServerClock(t *testing.T) {
	h := newHarness(player{"p1", "Ana"})
	require.NoError(t, h.s.Register(NewServerClock(h.clock)))

	h.pass()
	assert.Contains(t, h.out["p1"].Text, "<align=right><size=60%><color=#c0c0c0>12:34:56</color></size></align>")
	assert.Equal(t, []string{"12:34:56"}, h.out["p1"].Params)

	h.advance(time.Second)
	h.pass()
	assert.Contains(t, h.out["p1"].Text, "12:34:57")
}

func TestAnnouncementOverridesUntilExpiry(t *testing.T) {
	h := newHarness(player{"p1", "Ana"})
	require.NoError(t, h.s.Register(NewServerClock(h.clock)))
	a := NewAnnouncement("Server restart soon", 5*time.Second, false, h.clock)
	require.NoError(t, h.s.Register(a))

	h.pass()
	text := h.out["p1"].Text
	assert.Contains(t, text, "Server restart soon")
	assert.NotContains(t, text, "12:34:56")

	h.advance(5 * time.Second)
	h.pass()
	assert.False(t, a.Active())
	assert.Contains(t, h.out["p1"].Text, "12:35:01")

	h.pass()
	h.pass()
	_, ok := h.s.Find("announcement")
	assert.False(t, ok)
}

func TestRawAnnouncement(t *testing.T) {
	h := newHarness(player{"p1", "Ana"})
	require.NoError(t, h.s.Register(NewAnnouncement("<mark>raw</mark>", time.Minute, true, h.clock)))

	h.pass()
	assert.Equal(t, "<mark>raw</mark>", h.out["p1"].Text)
}

func TestCountdownSpeedsUpNearDeadline(t *testing.T) {
	h := newHarness(player{"p1", "Ana"})
	c := NewCountdown("Lockdown in", h.clock.now.Add(30*time.Second), h.clock)
	expired := 0
	c.OnExpire = func() { expired++ }
	require.NoError(t, h.s.Register(c))

	h.pass()
	assert.Equal(t, 500*time.Millisecond, h.s.Interval())
	assert.Contains(t, h.out["p1"].Text, "Lockdown in</color> 00:30")

	h.advance(25 * time.Second)
	h.pass()
	assert.Equal(t, 100*time.Millisecond, h.s.Interval())
	assert.Contains(t, h.out["p1"].Text, "5.0s")

	h.advance(5 * time.Second)
	h.pass()
	h.pass()
	assert.Equal(t, 1, expired)
	assert.Equal(t, 500*time.Millisecond, h.s.Interval())
	assert.True(t, h.out["p1"].Empty())
}

func TestPollLifecycle(t *testing.T) {
	h := newHarness(player{"p1", "Ana"})
	p := NewPoll("42", "Best map?", []string{"dust", "mirage"}, 10*time.Second, h.clock)
	var resolved []PollResult
	p.OnResolved = func(r PollResult) { resolved = append(resolved, r) }
	require.NoError(t, h.s.Register(p))

	require.NoError(t, p.CastVote("mirage"))
	require.NoError(t, p.CastVote("mirage"))
	require.NoError(t, p.CastVote("dust"))
	assert.ErrorIs(t, p.CastVote("nuke"), ErrUnknownOption)

	h.pass()
	text := h.out["p1"].Text
	assert.Contains(t, text, "Best map?")
	assert.Contains(t, text, "1. dust: 1")
	assert.Contains(t, text, "2. mirage: 2")

	h.advance(10 * time.Second)
	h.pass()
	require.Len(t, resolved, 1)
	assert.Equal(t, "mirage", resolved[0].Winner)
	assert.Equal(t, "42", resolved[0].PollID)
	assert.Contains(t, h.out["p1"].Text, "Winner: <color=#7fff7f>mirage</color>")
	assert.ErrorIs(t, p.CastVote("dust"), ErrPollClosed)

	h.advance(resultLinger)
	h.pass()
	assert.False(t, p.Active())
	assert.Len(t, resolved, 1)
}

func TestPollTieGoesToFirstOption(t *testing.T) {
	h := newHarness()
	p := NewPoll("t", "Tie?", []string{"a", "b"}, time.Second, h.clock)
	require.NoError(t, h.s.Register(p))

	h.advance(time.Second)
	require.NoError(t, p.OnUpdate(nil))

	r, closed := p.Result()
	require.True(t, closed)
	assert.Equal(t, "a", r.Winner)
}

func TestNameplateIsPersonal(t *testing.T) {
	h := newHarness(player{"p1", "Ana"}, player{"p2", "Bo"})
	require.NoError(t, h.s.Register(NewNameplate("p1")))

	h.pass()
	assert.Contains(t, h.out["p1"].Text, "<size=70%>Ana</size>")
	assert.True(t, h.out["p2"].Empty())
}

func TestFormatRemaining(t *testing.T) {
	assert.Equal(t, "01:05", formatRemaining(65*time.Second))
	assert.Equal(t, "00:10", formatRemaining(10*time.Second))
	assert.Equal(t, "9.5s", formatRemaining(9500*time.Millisecond))
}
