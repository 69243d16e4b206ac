package hint

import (
	"strings"
	"sync"
	"time"
)

var builderPool = sync.Pool{
	New: func() any { return new(strings.Builder) },
}

func getBuilder() *strings.Builder {
	return builderPool.Get().(*strings.Builder)
}

func putBuilder(b *strings.Builder) {
	b.Reset()
	builderPool.Put(b)
}

// TickScratch is the working state of one composite pass. The per-player
// part is reset before each player and the per-frame part once per pass.
type TickScratch struct {
	frame uint64

	body    strings.Builder
	bodyLen int // UTF-16 units in body
	contrib strings.Builder
	params  []string

	next   time.Duration
	lowest time.Duration

	anyOverrideAll   bool
	anyOverrideParse bool

	// deferred collects elements found stale during this frame. They move
	// to removing when the next frame starts and are unregistered then.
	deferred []Element
	removing []Element
}

func (s *TickScratch) resetFrame(def time.Duration) {
	s.frame++
	s.removing = append(s.removing, s.deferred...)
	clear(s.deferred)
	s.deferred = s.deferred[:0]
	s.next = def
	s.lowest = 0
	s.resetPlayer()
}

func (s *TickScratch) resetPlayer() {
	s.body.Reset()
	s.bodyLen = 0
	s.contrib.Reset()
	s.params = s.params[:0]
	s.anyOverrideAll = false
	s.anyOverrideParse = false
}

// requestInterval records an element's desired wait. Only requests shorter
// than the default have any effect.
func (s *TickScratch) requestInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	if s.lowest == 0 || d < s.lowest {
		s.lowest = d
	}
	if s.lowest < s.next {
		s.next = s.lowest
	}
}

// replaceBody swaps the player's output for text.
func (s *TickScratch) replaceBody(text string, n int) {
	s.body.Reset()
	s.body.WriteString(text)
	s.bodyLen = n
}

func (s *TickScratch) appendBody(text string, n int) {
	s.body.WriteString(text)
	s.bodyLen += n
}
