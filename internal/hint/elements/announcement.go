package elements

import (
	"strings"
	"time"

	"github.com/MRamiBalles/hintserver/internal/hint"
)

// Announcement takes over every player's overlay until it expires.
type Announcement struct {
	hint.Base

	Text    string
	expires time.Time
	clock   hint.Clock
}

// NewAnnouncement creates an override element shown for d. With raw set the
// text is sent as-is, without layout or framing.
func NewAnnouncement(text string, d time.Duration, raw bool, clock hint.Clock) *Announcement {
	if clock == nil {
		clock = hint.ClockFunc(time.Now)
	}
	flags := hint.DefaultFlags | hint.OverridesOthers
	if raw {
		flags = hint.OverridesOthers | hint.ClearBuilderOnUpdate
	}
	return &Announcement{
		Base: hint.Base{
			CustomID: "announcement",
			Flags:    flags,
			Offset:   2,
			Align:    hint.AlignCenter,
		},
		Text:    text,
		expires: clock.Now().Add(d),
		clock:   clock,
	}
}

// Expires returns when the announcement stops overriding.
func (a *Announcement) Expires() time.Time {
	return a.expires
}

// OnUpdate implements hint.Element.
func (a *Announcement) OnUpdate(buf *strings.Builder) error {
	if !a.clock.Now().Before(a.expires) {
		a.Deactivate()
	}
	return nil
}

// OnDraw implements hint.Element.
func (a *Announcement) OnDraw(p hint.Player, buf *strings.Builder) (bool, error) {
	if !a.Active() || a.Text == "" {
		return false, nil
	}
	buf.WriteString(a.Text)
	return true, nil
}
