package elements

import (
	"fmt"
	"strings"
	"time"

	"github.com/MRamiBalles/hintserver/internal/hint"
)

const (
	// countdownFastWindow is how close to the deadline the countdown starts
	// asking for faster passes.
	countdownFastWindow = 10 * time.Second
	countdownFastRate   = 100 * time.Millisecond
)

// Countdown shows the time left until a deadline and speeds up the pass
// rate during its final seconds so the display stays smooth.
type Countdown struct {
	hint.Base

	Label    string
	deadline time.Time
	clock    hint.Clock
	left     time.Duration
	// OnExpire runs once on the tick goroutine when the deadline passes.
	OnExpire func()
	expired  bool
}

// NewCountdown creates a countdown to deadline.
func NewCountdown(label string, deadline time.Time, clock hint.Clock) *Countdown {
	if clock == nil {
		clock = hint.ClockFunc(time.Now)
	}
	return &Countdown{
		Base: hint.Base{
			Flags:  hint.DefaultFlags,
			Offset: 10,
			Align:  hint.AlignCenter,
		},
		Label:    label,
		deadline: deadline,
		clock:    clock,
	}
}

// Remaining returns the time left as of the last update.
func (c *Countdown) Remaining() time.Duration {
	return c.left
}

// OnUpdate implements hint.Element.
func (c *Countdown) OnUpdate(buf *strings.Builder) error {
	c.left = c.deadline.Sub(c.clock.Now())
	if c.left > 0 {
		return nil
	}
	c.left = 0
	if !c.expired {
		c.expired = true
		if c.OnExpire != nil {
			c.OnExpire()
		}
	}
	c.Deactivate()
	return nil
}

// OnDraw implements hint.Element.
func (c *Countdown) OnDraw(p hint.Player, buf *strings.Builder) (bool, error) {
	if c.left <= 0 {
		return false, nil
	}
	fmt.Fprintf(buf, "<color=#ffcc00>%s</color> %s", c.Label, formatRemaining(c.left))
	return true, nil
}

// DesiredInterval implements hint.RateModifier.
func (c *Countdown) DesiredInterval(def time.Duration) (time.Duration, bool) {
	if c.left <= 0 || c.left > countdownFastWindow {
		return 0, false
	}
	return min(def, countdownFastRate), true
}

func formatRemaining(d time.Duration) string {
	if d < countdownFastWindow {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	d = d.Round(time.Second)
	m := int(d / time.Minute)
	s := int((d % time.Minute) / time.Second)
	return fmt.Sprintf("%02d:%02d", m, s)
}
