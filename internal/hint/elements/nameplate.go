package elements

import (
	"strings"

	"github.com/MRamiBalles/hintserver/internal/hint"
)

// Nameplate is a personal element reminding a player who they are.
type Nameplate struct {
	hint.Base
}

// NewNameplate creates a nameplate drawn only for playerID.
func NewNameplate(playerID string) *Nameplate {
	return &Nameplate{
		Base: hint.Base{
			Variant:  hint.Personal,
			Owner:    playerID,
			CustomID: "nameplate:" + playerID,
			Flags:    hint.DefaultFlags,
			Offset:   -12,
			Align:    hint.AlignLeft,
		},
	}
}

// OnUpdate implements hint.Element.
func (n *Nameplate) OnUpdate(buf *strings.Builder) error {
	return nil
}

// OnDraw implements hint.Element.
func (n *Nameplate) OnDraw(p hint.Player, buf *strings.Builder) (bool, error) {
	name := p.Name()
	if name == "" {
		name = p.ID()
	}
	buf.WriteString("<size=70%>")
	buf.WriteString(name)
	buf.WriteString("</size>")
	return true, nil
}
