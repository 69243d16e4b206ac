package hint

import (
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/MRamiBalles/hintserver/internal/hint/layout"
)

const (
	// MaxPayloadLength is the protocol ceiling on payload text, in UTF-16
	// code units. A payload must stay strictly below it.
	MaxPayloadLength = 65534

	// PayloadDuration is how long, in seconds, a client keeps showing a
	// payload. Each pass replaces the previous one long before it expires.
	PayloadDuration = 300.0

	frameHeader = "<line-height=0>\n"
	frameFooter = "</line-height>"

	// TemporaryOffset is the em position of the first line of a temporary
	// message.
	TemporaryOffset = -5.0
	// TemporaryAlign is the alignment of temporary messages.
	TemporaryAlign = AlignCenter
)

var framingLen = utf16Len(frameHeader) + utf16Len(frameFooter)

// Payload is one compiled overlay sent to a player.
type Payload struct {
	Duration float64  `json:"duration"`
	Text     string   `json:"text"`
	Params   []string `json:"params,omitempty"`
}

// Empty reports whether p clears the overlay.
func (p Payload) Empty() bool {
	return p.Text == ""
}

// ClearPayload removes whatever the client shows.
func ClearPayload() Payload {
	return Payload{}
}

// Sink delivers payloads to players.
type Sink interface {
	Send(playerID string, p Payload) error
}

// PlayerSource enumerates the players eligible for hints.
type PlayerSource interface {
	Players() []Player
	Lookup(id string) (Player, bool)
	IsPaused(p Player) bool
}

// Dumper records compiled payloads for inspection.
type Dumper interface {
	Dump(playerID string, frame uint64, text string) error
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// HorizontalOffset returns the left-edge shift, in percent, that keeps
// left-aligned text on screen for displays wider than 16:9.
func HorizontalOffset(aspect float64) float64 {
	if aspect <= 0 {
		return 0
	}
	off := (aspect*9/16 - 1) * 50
	if off < 0 {
		return 0
	}
	return off
}

func formatEm(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// writeLines renders laid-out lines with their position markup.
func writeLines(w *strings.Builder, lines []layout.Line, align Align, hOffset float64) {
	for _, l := range lines {
		w.WriteString("<voffset=")
		w.WriteString(formatEm(l.Offset))
		w.WriteString("em>")
		if align == AlignLeft && hOffset > 0 {
			w.WriteString("<pos=-")
			w.WriteString(formatEm(hOffset))
			w.WriteString("%>")
		}
		w.WriteString("<align=")
		w.WriteString(align.String())
		w.WriteString(">")
		w.WriteString(l.Content)
		w.WriteString("</align></voffset>\n")
	}
}
