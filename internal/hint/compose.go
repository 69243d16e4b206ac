package hint

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/MRamiBalles/hintserver/internal/hint/layout"
)

// composePlayer builds and sends one player's payload for this pass.
func (s *Scheduler) composePlayer(p Player, now time.Time) {
	st := s.state(p.ID())
	if s.players.IsPaused(p) {
		if !st.paused {
			st.paused = true
			st.queue.Pause(now)
		}
		return
	}
	if st.paused {
		st.paused = false
		st.queue.Resume(now)
	}

	sc := &s.scratch
	sc.resetPlayer()

	st.refreshAspect(p.AspectRatio())

	if m, ok, fresh := st.queue.Advance(now); ok {
		if fresh {
			s.metrics.RecordTemporary()
		}
		s.appendTemporary(p, st, m)
	}

	s.processRemovals()

	for _, e := range s.globals {
		if s.drawElement(p, st, e) {
			break
		}
	}
	if !sc.anyOverrideAll {
		for _, e := range s.personals[p.ID()] {
			if s.drawElement(p, st, e) {
				break
			}
		}
	}

	s.send(p, st)
}

func (s *Scheduler) appendTemporary(p Player, st *PlayerState, m TemporaryMessage) {
	lines, _ := st.tempLines.Layout(m.Content, TemporaryOffset, true, 0)
	c := &s.scratch.contrib
	c.Reset()
	writeLines(c, lines, TemporaryAlign, st.hOffset)

	n := utf16Len(c.String())
	if !s.fits(n) {
		s.overflow(p, "temporary message", "", n)
		return
	}
	s.scratch.appendBody(c.String(), n)
}

// drawElement adds one element's output for p. It reports whether the
// element overrode everything else, which ends the player's iteration.
func (s *Scheduler) drawElement(p Player, st *PlayerState, e Element) bool {
	b := e.Core()
	sc := &s.scratch
	if !b.active || b.buf == nil {
		s.deferRemoval(e)
		return false
	}

	if b.lastFrame != sc.frame {
		b.lastFrame = sc.frame
		s.update(e)
	}
	if b.faulted == sc.frame {
		return false
	}

	if b.Flags.Has(ClearBuilderOnUpdate) {
		b.buf.Reset()
	}
	produced, err := callDraw(e, p, b.buf)
	if err != nil {
		s.fault(e, p.ID(), "OnDraw", err)
		return false
	}
	if !produced {
		return false
	}

	text, used := b.compile(b.buf.String(), nil)
	parse := b.Flags.Has(ShouldParse)

	c := &sc.contrib
	c.Reset()
	if parse {
		writeLines(c, s.linesFor(b, text), b.Align, st.hOffset)
	} else {
		c.WriteString(text)
	}
	n := utf16Len(c.String())

	if b.Flags.Has(OverridesOthers) {
		total := n
		if parse {
			total += framingLen
		}
		if total >= MaxPayloadLength {
			s.overflow(p, elementName(e), b.ID.String(), n)
			return false
		}
		sc.replaceBody(c.String(), n)
		sc.params = append(sc.params[:0], used...)
		sc.anyOverrideAll = true
		sc.anyOverrideParse = parse
		return true
	}

	if !s.fits(n) {
		s.overflow(p, elementName(e), b.ID.String(), n)
		return false
	}
	sc.appendBody(c.String(), n)
	sc.params = append(sc.params, used...)
	return false
}

// update runs OnUpdate once for the frame and collects the element's rate
// request.
func (s *Scheduler) update(e Element) {
	b := e.Core()
	if b.Flags.Has(ClearParametersEachFrame) {
		b.ClearParams()
	}
	if b.Flags.Has(ClearBuilderOnUpdate) {
		b.buf.Reset()
	}
	d, ok, err := callUpdate(e, b.buf, s.defaultInterval)
	if err != nil {
		b.faulted = s.scratch.frame
		s.fault(e, "", "OnUpdate", err)
		return
	}
	if ok {
		s.scratch.requestInterval(d)
	}
}

func (s *Scheduler) linesFor(b *Base, text string) []layout.Line {
	wrap := b.Flags.Has(ShouldWrap)
	if b.Flags.Has(ShouldCache) {
		lines, _ := b.lines.Layout(text, b.Offset, wrap, b.LineSpacing)
		return lines
	}
	return layout.Layout(text, b.Offset, wrap, b.LineSpacing)
}

// fits reports whether n more units keep the framed payload under the
// protocol ceiling.
func (s *Scheduler) fits(n int) bool {
	return framingLen+s.scratch.bodyLen+n < MaxPayloadLength
}

func (s *Scheduler) send(p Player, st *PlayerState) {
	sc := &s.scratch
	if sc.body.Len() == 0 {
		if st.lastEmpty {
			s.metrics.RecordSkippedSend()
			return
		}
		if err := s.sink.Send(p.ID(), ClearPayload()); err != nil {
			s.sendFailed(p, err)
			return
		}
		st.lastEmpty = true
		s.metrics.RecordSend(0, true)
		return
	}

	var text string
	if sc.anyOverrideAll && !sc.anyOverrideParse {
		text = sc.body.String()
	} else {
		text = frameHeader + sc.body.String() + frameFooter
	}
	payload := Payload{Duration: PayloadDuration, Text: text}
	if len(sc.params) > 0 {
		payload.Params = slices.Clone(sc.params)
	}
	if err := s.sink.Send(p.ID(), payload); err != nil {
		s.sendFailed(p, err)
		return
	}
	st.lastEmpty = false
	s.metrics.RecordSend(len(text), false)

	if s.dumper != nil {
		if err := s.dumper.Dump(p.ID(), sc.frame, text); err != nil {
			s.log.Warn("debug dump failed", "player", p.ID(), "err", err)
			s.diagnose(Diagnostic{Kind: DiagDump, PlayerID: p.ID(), Frame: sc.frame, Detail: err.Error()})
		}
	}
}

func (s *Scheduler) sendFailed(p Player, err error) {
	if errors.Is(err, ErrUnknownPlayer) {
		s.log.Debug("player left before send", "player", p.ID())
		return
	}
	s.log.Warn("hint send failed", "player", p.ID(), "err", err)
}

func (s *Scheduler) overflow(p Player, name, id string, n int) {
	total := framingLen + s.scratch.bodyLen + n
	s.metrics.RecordOverflow()
	s.log.Warn("hint contribution dropped",
		"element", name,
		"player", p.ID(),
		"size", humanize.Comma(int64(n)),
		"total", humanize.Comma(int64(total)),
		"limit", humanize.Comma(MaxPayloadLength))
	s.diagnose(Diagnostic{
		Kind:      DiagOverflow,
		Element:   name,
		ElementID: id,
		PlayerID:  p.ID(),
		Frame:     s.scratch.frame,
		Detail:    ErrOverflow.Error(),
		Size:      total,
	})
}

func (s *Scheduler) fault(e Element, playerID, op string, err error) {
	ferr := &ElementError{Element: elementName(e), PlayerID: playerID, Op: op, Err: err}
	s.metrics.RecordFault()
	s.log.Error("element fault", "element", ferr.Element, "player", playerID, "op", op, "err", err)
	s.log.Debug("element fault trace", "trace", fmt.Sprintf("%+v", err))
	s.diagnose(Diagnostic{
		Kind:      DiagFault,
		Element:   ferr.Element,
		ElementID: e.Core().ID.String(),
		PlayerID:  playerID,
		Frame:     s.scratch.frame,
		Detail:    ferr.Error(),
	})
}

func callUpdate(e Element, buf *strings.Builder, def time.Duration) (d time.Duration, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			d, ok = 0, false
			err = errors.Errorf("panic: %v", r)
		}
	}()
	if err := e.OnUpdate(buf); err != nil {
		return 0, false, err
	}
	if rm, isRM := e.(RateModifier); isRM {
		d, ok = rm.DesiredInterval(def)
	}
	return d, ok, nil
}

func callDraw(e Element, p Player, buf *strings.Builder) (produced bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			produced = false
			err = errors.Errorf("panic: %v", r)
		}
	}()
	return e.OnDraw(p, buf)
}
