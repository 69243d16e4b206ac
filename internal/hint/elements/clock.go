package elements

import (
	"strings"
	"time"

	"github.com/MRamiBalles/hintserver/internal/hint"
)

// ServerClock shows the server's wall clock in the top right corner.
type ServerClock struct {
	hint.Base

	// Format is a time layout, time.TimeOnly by default.
	Format string
	clock  hint.Clock
}

// NewServerClock creates a clock element reading time from clock.
func NewServerClock(clock hint.Clock) *ServerClock {
	if clock == nil {
		clock = hint.ClockFunc(time.Now)
	}
	return &ServerClock{
		Base: hint.Base{
			CustomID: "server-clock",
			Flags:    hint.DefaultFlags,
			Offset:   15,
			Align:    hint.AlignRight,
		},
		Format: time.TimeOnly,
		clock:  clock,
	}
}

// OnUpdate implements hint.Element.
func (c *ServerClock) OnUpdate(buf *strings.Builder) error {
	c.SetParam("time", c.clock.Now().Format(c.Format))
	return nil
}

// OnDraw implements hint.Element.
func (c *ServerClock) OnDraw(p hint.Player, buf *strings.Builder) (bool, error) {
	buf.WriteString("<size=60%><color=#c0c0c0>{time}</color></size>")
	return true, nil
}
