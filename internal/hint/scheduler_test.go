package hint

import (
	"strings"
	"testing"
	"time"
	"unicode/utf16"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickHelloWorld(t *testing.T) {
	f := newFixture("p1")
	require.NoError(t, f.s.Register(newText("Hello\nWorld", DefaultFlags)))

	f.s.Tick()

	p := f.sink.last(t, "p1")
	assert.Equal(t, PayloadDuration, p.Duration)
	assert.Equal(t, framed(
		"<voffset=0em><align=center>Hello</align></voffset>\n"+
			"<voffset=-1em><align=center>World</align></voffset>\n"), p.Text)
}

func TestUpdateRunsOncePerFrame(t *testing.T) {
	f := newFixture("p1", "p2", "p3")
	e := newText("shared", DefaultFlags)
	require.NoError(t, f.s.Register(e))

	f.s.Tick()
	assert.Equal(t, 1, e.updates)
	assert.Equal(t, 3, e.draws)

	f.pass()
	assert.Equal(t, 2, e.updates)
	assert.Equal(t, 6, e.draws)
}

func TestTickWaitsForInterval(t *testing.T) {
	f := newFixture("p1")
	require.NoError(t, f.s.Register(newText("x", DefaultFlags)))

	f.s.Tick()
	assert.Equal(t, uint64(1), f.s.Frame())

	f.clock.Advance(100 * time.Millisecond)
	f.s.Tick()
	assert.Equal(t, uint64(1), f.s.Frame())

	f.clock.Advance(400 * time.Millisecond)
	f.s.Tick()
	assert.Equal(t, uint64(2), f.s.Frame())

	f.s.ForceSend()
	f.s.Tick()
	assert.Equal(t, uint64(3), f.s.Frame())
	assert.Len(t, f.sink.sent["p1"], 3)
}

func TestRateNegotiation(t *testing.T) {
	f := newFixture("p1")
	e := &rateElement{textElement: *newText("fast", DefaultFlags), want: 100 * time.Millisecond, enabled: true}
	require.NoError(t, f.s.Register(e))

	f.s.Tick()
	assert.Equal(t, 100*time.Millisecond, f.s.Interval())

	f.clock.Advance(100 * time.Millisecond)
	e.enabled = false
	f.s.Tick()
	assert.Equal(t, uint64(2), f.s.Frame())
	assert.Equal(t, 500*time.Millisecond, f.s.Interval())
}

func TestRateNegotiationNeverExceedsDefault(t *testing.T) {
	f := newFixture("p1")
	slow := &rateElement{textElement: *newText("slow", DefaultFlags), want: 2 * time.Second, enabled: true}
	fast := &rateElement{textElement: *newText("fast", DefaultFlags), want: 50 * time.Millisecond, enabled: true}
	require.NoError(t, f.s.Register(slow))
	f.s.Tick()
	assert.Equal(t, 500*time.Millisecond, f.s.Interval())

	require.NoError(t, f.s.Register(fast))
	f.pass()
	assert.Equal(t, 50*time.Millisecond, f.s.Interval())
}

func TestOverrideDiscardsEarlierOutput(t *testing.T) {
	f := newFixture("p1")
	first := newText("first", DefaultFlags)
	over := newText("OVR", DefaultFlags|OverridesOthers)
	third := newText("third", DefaultFlags)
	personal := newText("mine", DefaultFlags)
	personal.Variant = Personal
	personal.Owner = "p1"
	for _, e := range []Element{first, over, third, personal} {
		require.NoError(t, f.s.Register(e))
	}
	require.NoError(t, f.s.ShowTemporary("p1", TemporaryMessage{Content: "temp", Duration: time.Second}, false))

	f.s.Tick()

	text := f.sink.last(t, "p1").Text
	assert.Equal(t, framed("<voffset=0em><align=center>OVR</align></voffset>\n"), text)
	assert.Equal(t, 1, first.draws)
	assert.Equal(t, 0, third.draws)
	assert.Equal(t, 0, personal.draws)
}

func TestRawOverrideSkipsFraming(t *testing.T) {
	f := newFixture("p1")
	require.NoError(t, f.s.Register(newText("below", DefaultFlags)))
	require.NoError(t, f.s.Register(newText("<b>RAW</b>", OverridesOthers)))

	f.s.Tick()

	assert.Equal(t, "<b>RAW</b>", f.sink.last(t, "p1").Text)
}

func TestRawElementIsAppendedVerbatim(t *testing.T) {
	f := newFixture("p1")
	require.NoError(t, f.s.Register(newText("parsed", DefaultFlags)))
	require.NoError(t, f.s.Register(newText("<pre>raw</pre>", 0)))

	f.s.Tick()

	assert.Equal(t, framed("<voffset=0em><align=center>parsed</align></voffset>\n<pre>raw</pre>"), f.sink.last(t, "p1").Text)
}

func TestOverflowDropsWholeContribution(t *testing.T) {
	f := newFixture("p1")
	big := newText(strings.Repeat("a", 40000), 0)
	tooBig := newText(strings.Repeat("b", 30000), 0)
	small := newText("c", 0)
	for _, e := range []Element{big, tooBig, small} {
		require.NoError(t, f.s.Register(e))
	}

	f.s.Tick()

	text := f.sink.last(t, "p1").Text
	assert.Equal(t, framed(big.text+"c"), text)
	assert.NotContains(t, text, "b")
	assert.Less(t, len(utf16.Encode([]rune(text))), MaxPayloadLength)
	assert.Equal(t, []DiagnosticKind{DiagOverflow}, f.reporter.kinds())
	assert.Equal(t, int64(1), f.metrics.OverflowDrops)
}

func TestOverflowCountsUTF16Units(t *testing.T) {
	f := newFixture("p1")
	// 20000 runes but 40000 UTF-16 units.
	emoji := newText(strings.Repeat("😀", 20000), 0)
	filler := newText(strings.Repeat("x", 25534), 0)
	require.NoError(t, f.s.Register(emoji))
	require.NoError(t, f.s.Register(filler))

	f.s.Tick()

	text := f.sink.last(t, "p1").Text
	assert.Equal(t, framed(emoji.text), text)
	assert.Less(t, len(utf16.Encode([]rune(text))), MaxPayloadLength)
}

func TestElementFaultsAreIsolated(t *testing.T) {
	f := newFixture("p1", "p2")
	failing := newText("never", DefaultFlags)
	failing.updateErr = errors.New("no data")
	panicking := newText("never", DefaultFlags)
	panicking.drawPanic = true
	healthy := newText("ok", DefaultFlags)
	for _, e := range []Element{failing, panicking, healthy} {
		require.NoError(t, f.s.Register(e))
	}

	require.NotPanics(t, f.s.Tick)

	for _, id := range []string{"p1", "p2"} {
		assert.Equal(t, framed("<voffset=0em><align=center>ok</align></voffset>\n"), f.sink.last(t, id).Text)
	}
	// The failed update blocks drawing for the whole frame.
	assert.Equal(t, 0, failing.draws)
	assert.Equal(t, 2, panicking.draws)
	assert.Equal(t, int64(3), f.metrics.ElementFaults)
	assert.Equal(t, []DiagnosticKind{DiagFault, DiagFault, DiagFault}, f.reporter.kinds())
	assert.Contains(t, f.reporter.got[1].Detail, "draw exploded")
}

func TestElementErrorUnwrapsToSentinel(t *testing.T) {
	cause := errors.New("boom")
	err := error(&ElementError{Element: "*hint.textElement", Op: "OnDraw", PlayerID: "p1", Err: cause})
	assert.True(t, errors.Is(err, ErrElementFault))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "*hint.textElement OnDraw for p1: boom", err.Error())
}

func TestDeactivatedElementIsRemovedNextPass(t *testing.T) {
	f := newFixture("p1")
	e := &lifecycleElement{textElement: *newText("bye", DefaultFlags)}
	require.NoError(t, f.s.Register(e))
	assert.Equal(t, 1, e.enabled)

	f.pass()
	e.Deactivate()

	f.pass()
	assert.Equal(t, 1, f.s.Elements(), "found stale during the pass, removed on the next one")
	assert.Equal(t, 1, e.draws)

	f.pass()
	assert.Equal(t, 0, f.s.Elements())
	assert.Equal(t, 1, e.disabled)
	assert.Equal(t, []DiagnosticKind{DiagStale}, f.reporter.kinds())
	assert.Equal(t, int64(1), f.metrics.StaleRemovals)

	// It can come back after removal.
	require.NoError(t, f.s.Register(e))
	assert.Equal(t, 2, e.enabled)
}

func TestRemoveUnregistersOnNextPass(t *testing.T) {
	f := newFixture("p1")
	e := &lifecycleElement{textElement: *newText("x", DefaultFlags)}
	e.CustomID = "banner"
	require.NoError(t, f.s.Register(e))

	f.s.Remove(e)
	f.pass()

	assert.Equal(t, 0, e.draws)
	assert.Equal(t, 1, e.disabled)
	_, ok := f.s.Find("banner")
	assert.False(t, ok)
}

func TestEmptySendsAreNotRepeated(t *testing.T) {
	f := newFixture("p1")

	f.pass()
	f.pass()
	require.Len(t, f.sink.sent["p1"], 1)
	assert.True(t, f.sink.sent["p1"][0].Empty())
	assert.Equal(t, 0.0, f.sink.sent["p1"][0].Duration)

	e := newText("x", DefaultFlags)
	require.NoError(t, f.s.Register(e))
	f.pass()
	require.Len(t, f.sink.sent["p1"], 2)
	assert.False(t, f.sink.last(t, "p1").Empty())

	f.s.Remove(e)
	f.pass()
	f.pass()
	require.Len(t, f.sink.sent["p1"], 3)
	assert.True(t, f.sink.last(t, "p1").Empty())
	assert.Equal(t, int64(2), f.metrics.SkippedSends)
}

func TestPausedPlayerIsSkipped(t *testing.T) {
	f := newFixture("p1", "p2")
	require.NoError(t, f.s.Register(newText("x", DefaultFlags)))
	f.players.paused["p2"] = true

	f.s.Tick()

	assert.Len(t, f.sink.sent["p1"], 1)
	assert.Empty(t, f.sink.sent["p2"])
}

func TestPauseFreezesTemporaryMessage(t *testing.T) {
	f := newFixture("p1")
	require.NoError(t, f.s.ShowTemporary("p1", TemporaryMessage{Content: "wait", Duration: 2 * time.Second}, false))

	f.pass()
	assert.Contains(t, f.sink.last(t, "p1").Text, "wait")

	f.clock.Advance(time.Second)
	f.players.paused["p1"] = true
	f.pass()
	f.clock.Advance(10 * time.Second)
	f.pass()

	f.players.paused["p1"] = false
	f.pass()
	assert.Contains(t, f.sink.last(t, "p1").Text, "wait")

	f.clock.Advance(time.Second)
	f.pass()
	assert.True(t, f.sink.last(t, "p1").Empty())
}

func TestPriorityAfterExpiryDoesNotReviveMessage(t *testing.T) {
	f := newFixture("p1")
	require.NoError(t, f.s.ShowTemporary("p1", TemporaryMessage{Content: "AAA", Duration: 5 * time.Second}, false))
	f.pass()
	assert.Contains(t, f.sink.last(t, "p1").Text, ">AAA<")

	f.clock.Advance(5200 * time.Millisecond)
	require.NoError(t, f.s.ShowTemporary("p1", TemporaryMessage{Content: "CCC", Duration: 3 * time.Second}, true))
	f.pass()
	assert.Contains(t, f.sink.last(t, "p1").Text, ">CCC<")

	f.clock.Advance(3400 * time.Millisecond)
	f.pass()
	assert.True(t, f.sink.last(t, "p1").Empty())
}

func TestTemporaryMessageLayout(t *testing.T) {
	f := newFixture("p1")
	require.NoError(t, f.s.ShowTemporary("p1", TemporaryMessage{Content: "Hi\nthere", Duration: 3 * time.Second}, false))

	f.s.Tick()

	assert.Equal(t, framed(
		"<voffset=-5em><align=center>Hi</align></voffset>\n"+
			"<voffset=-6em><align=center>there</align></voffset>\n"), f.sink.last(t, "p1").Text)
	assert.Equal(t, int64(1), f.metrics.TemporaryShown)

	f.clock.Advance(3 * time.Second)
	f.s.Tick()
	assert.True(t, f.sink.last(t, "p1").Empty())
}

func TestShowTemporaryUnknownPlayer(t *testing.T) {
	f := newFixture("p1")
	err := f.s.ShowTemporary("ghost", TemporaryMessage{Content: "x", Duration: time.Second}, false)
	assert.True(t, errors.Is(err, ErrUnknownPlayer))

	assert.Equal(t, 1, f.s.BroadcastTemporary(TemporaryMessage{Content: "all", Duration: time.Second}, true))
}

func TestPersonalElementsOnlyReachTheirOwner(t *testing.T) {
	f := newFixture("p1", "p2")
	mine := newText("only p1", DefaultFlags)
	mine.Variant = Personal
	mine.Owner = "p1"
	require.NoError(t, f.s.Register(mine))

	f.s.Tick()

	assert.Contains(t, f.sink.last(t, "p1").Text, "only p1")
	assert.True(t, f.sink.last(t, "p2").Empty())

	f.s.RemovePlayer("p1")
	f.pass()
	assert.Equal(t, 0, f.s.Elements())
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture()

	orphan := newText("x", DefaultFlags)
	orphan.Variant = Personal
	assert.ErrorIs(t, f.s.Register(orphan), ErrNoOwner)

	a := newText("a", DefaultFlags)
	a.CustomID = "clock"
	require.NoError(t, f.s.Register(a))
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", a.ID.String())
	assert.ErrorIs(t, f.s.Register(a), ErrRegistered)

	b := newText("b", DefaultFlags)
	b.CustomID = "clock"
	assert.ErrorIs(t, f.s.Register(b), ErrDuplicateID)

	found, ok := f.s.Find("clock")
	require.True(t, ok)
	assert.Same(t, Element(a), found)
}

func TestParametersAreSubstituted(t *testing.T) {
	f := newFixture("p1")
	e := newText("HP {hp} / {max} {unknown}", DefaultFlags)
	e.onUpdate = func(b *Base) {
		b.SetParam("hp", "75")
		b.SetParam("max", "100")
	}
	require.NoError(t, f.s.Register(e))

	f.s.Tick()

	p := f.sink.last(t, "p1")
	assert.Contains(t, p.Text, "HP 75 / 100 {unknown}")
	assert.Equal(t, []string{"75", "100"}, p.Params)
}

func TestLeftAlignUsesAspectOffset(t *testing.T) {
	f := newFixture("p1")
	f.players.list[0].(*testPlayer).aspect = 2.0
	e := newText("left", DefaultFlags)
	e.Align = AlignLeft
	e.Offset = 3
	require.NoError(t, f.s.Register(e))

	f.s.Tick()

	assert.Equal(t, framed("<voffset=3em><pos=-6.25%><align=left>left</align></voffset>\n"), f.sink.last(t, "p1").Text)
}

func TestLeftAlignAtWidescreenHasNoPosTag(t *testing.T) {
	f := newFixture("p1")
	e := newText("left", DefaultFlags)
	e.Align = AlignLeft
	require.NoError(t, f.s.Register(e))

	f.s.Tick()

	assert.Equal(t, framed("<voffset=0em><align=left>left</align></voffset>\n"), f.sink.last(t, "p1").Text)
}

func TestParametersClearedEachFrame(t *testing.T) {
	tests := []struct {
		name  string
		flags Flags
		want  string
	}{
		{"cleared", ShouldParse | ClearBuilderOnUpdate | ClearParametersEachFrame, ">HP {hp}<"},
		{"kept", ShouldParse | ClearBuilderOnUpdate, ">HP 75<"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture("p1")
			e := newText("HP {hp}", tt.flags)
			e.onUpdate = func(b *Base) {
				if e.updates == 1 {
					b.SetParam("hp", "75")
				}
			}
			require.NoError(t, f.s.Register(e))

			f.pass()
			assert.Contains(t, f.sink.last(t, "p1").Text, ">HP 75<")

			f.pass()
			assert.Equal(t, 2, e.updates)
			assert.Contains(t, f.sink.last(t, "p1").Text, tt.want)
		})
	}
}

func TestCustomIDFreedByRemovedElement(t *testing.T) {
	f := newFixture("p1")
	old := newText("old", DefaultFlags)
	old.CustomID = "banner"
	require.NoError(t, f.s.Register(old))
	f.pass()

	again := newText("new", DefaultFlags)
	again.CustomID = "banner"
	assert.ErrorIs(t, f.s.Register(again), ErrDuplicateID)

	old.Deactivate()
	require.NoError(t, f.s.Register(again))
	found, ok := f.s.Find("banner")
	require.True(t, ok)
	assert.Same(t, Element(again), found)
	assert.Equal(t, 1, f.s.Elements())

	f.pass()
	f.pass()
	assert.Equal(t, 1, f.s.Elements())
	assert.Contains(t, f.sink.last(t, "p1").Text, ">new<")
	assert.NotContains(t, f.sink.last(t, "p1").Text, ">old<")
}

func TestCachedLinesAreReused(t *testing.T) {
	f := newFixture("p1")
	e := newText("same text", DefaultFlags)
	require.NoError(t, f.s.Register(e))

	f.pass()
	f.pass()

	_, hit := e.lines.Layout("same text", e.Offset, true, e.LineSpacing)
	assert.True(t, hit)
}

func TestBuilderKeptWithoutClearFlag(t *testing.T) {
	f := newFixture("p1")
	e := newText("x", ShouldParse)
	require.NoError(t, f.s.Register(e))

	f.pass()
	f.pass()

	assert.Contains(t, f.sink.last(t, "p1").Text, ">xx<")
}

func TestHorizontalOffset(t *testing.T) {
	assert.Equal(t, 0.0, HorizontalOffset(0))
	assert.Equal(t, 0.0, HorizontalOffset(4.0/3.0))
	assert.InDelta(t, 0.0, HorizontalOffset(16.0/9.0), 1e-9)
	assert.Equal(t, 6.25, HorizontalOffset(2.0))
	assert.InDelta(t, 15.625, HorizontalOffset(21.0/9.0), 1e-9)
}
