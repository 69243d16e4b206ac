// Package hint composites many independent text producers into one
// size-bounded overlay payload per player, once per scheduler pass.
//
// All state in this package is owned by the goroutine calling Scheduler.Tick.
// Other goroutines reach it through the engine command queue.
package hint

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MRamiBalles/hintserver/internal/hint/layout"
)

// Variant tells whether an element is drawn for everyone or one player.
type Variant uint8

const (
	Global Variant = iota
	Personal
)

func (v Variant) String() string {
	if v == Personal {
		return "personal"
	}
	return "global"
}

// Flags control how the compositor treats an element's output.
type Flags uint16

const (
	// ShouldParse runs the output through the layout engine. Without it the
	// buffer is appended verbatim.
	ShouldParse Flags = 1 << iota
	// ShouldWrap wraps long lines at layout.MaxLineChars.
	ShouldWrap
	// ShouldCache reuses the previous lines when the compiled text is unchanged.
	ShouldCache
	// OverridesOthers replaces everything else drawn for the player.
	OverridesOthers
	// ClearBuilderOnUpdate resets the buffer before OnUpdate and each OnDraw.
	ClearBuilderOnUpdate
	// ClearParametersEachFrame drops named parameters before each OnUpdate.
	ClearParametersEachFrame
)

// DefaultFlags suits an element that rewrites its text every frame.
const DefaultFlags = ShouldParse | ShouldWrap | ShouldCache | ClearBuilderOnUpdate | ClearParametersEachFrame

// Has reports whether all of f2 are set.
func (f Flags) Has(f2 Flags) bool {
	return f&f2 == f2
}

// Align is the horizontal alignment of an element's lines.
type Align uint8

const (
	AlignCenter Align = iota
	AlignLeft
	AlignRight
)

func (a Align) String() string {
	switch a {
	case AlignLeft:
		return "left"
	case AlignRight:
		return "right"
	default:
		return "center"
	}
}

// ParseAlign maps "left", "right" or "center" to an Align.
func ParseAlign(s string) (Align, bool) {
	switch strings.ToLower(s) {
	case "left":
		return AlignLeft, true
	case "right":
		return AlignRight, true
	case "center", "":
		return AlignCenter, true
	}
	return AlignCenter, false
}

// Player is the view of a connected player the scheduler needs.
type Player interface {
	ID() string
	Name() string
	AspectRatio() float64
}

// Element produces overlay text. Implementations embed Base.
//
// OnUpdate runs at most once per frame, before the first OnDraw of that
// frame. OnDraw runs once per player the element is drawn for and reports
// whether it produced anything.
type Element interface {
	Core() *Base
	OnUpdate(buf *strings.Builder) error
	OnDraw(p Player, buf *strings.Builder) (bool, error)
}

// Lifecycle is implemented by elements that hold resources between
// registration and removal.
type Lifecycle interface {
	OnEnabled()
	OnDisabled()
}

// RateModifier is implemented by elements that need a faster pass rate
// than the configured default. The returned interval only ever shortens
// the wait.
type RateModifier interface {
	DesiredInterval(def time.Duration) (time.Duration, bool)
}

// Base carries the state every element shares. Its exported fields are
// read at registration and should not change afterwards, except through
// the setters.
type Base struct {
	ID       uuid.UUID
	CustomID string
	Variant  Variant
	// Owner is the player a Personal element is drawn for.
	Owner string
	Flags Flags

	// Offset is the em position of the first line.
	Offset      float64
	Align       Align
	LineSpacing int

	active    bool
	stale     bool
	lastFrame uint64
	faulted   uint64
	buf       *strings.Builder
	params    map[string]string
	lines     layout.Cache
}

// Core returns the shared element state.
func (b *Base) Core() *Base {
	return b
}

// Active reports whether the element is registered and not deactivated.
func (b *Base) Active() bool {
	return b.active
}

// Deactivate marks the element for removal at the start of the next pass.
func (b *Base) Deactivate() {
	b.active = false
}

// SetParam sets a value substituted for {name} in the element's output.
func (b *Base) SetParam(name, value string) {
	if b.params == nil {
		b.params = make(map[string]string)
	}
	b.params[name] = value
}

// ClearParams removes all named parameters.
func (b *Base) ClearParams() {
	clear(b.params)
}

// compile substitutes named parameters into text and appends the values it
// used to used.
func (b *Base) compile(text string, used []string) (string, []string) {
	if len(b.params) == 0 || !strings.Contains(text, "{") {
		return text, used
	}
	out := getBuilder()
	defer putBuilder(out)

	rest := text
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			break
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			break
		}
		name := rest[open+1 : open+end]
		v, ok := b.params[name]
		if !ok {
			out.WriteString(rest[:open+1])
			rest = rest[open+1:]
			continue
		}
		out.WriteString(rest[:open])
		out.WriteString(v)
		used = append(used, v)
		rest = rest[open+end+1:]
	}
	out.WriteString(rest)
	return out.String(), used
}
