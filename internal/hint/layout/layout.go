// Package layout turns raw hint text into wrapped lines stacked by vertical
// offset. It understands just enough markup to keep tags out of the width
// count and to carry an open <size> tag across wrapped lines.
package layout

import (
	"strings"
	"unicode/utf8"

	"github.com/rivo/uniseg"
)

// MaxLineChars is the number of visible characters allowed on one line.
const MaxLineChars = 60

// Line is one laid-out line of hint text.
type Line struct {
	Content string
	// Offset is the vertical position in em; it only decreases down a layout.
	Offset float64
	// Size is the line height in whole line units.
	Size int
	// ID orders lines that share an offset.
	ID int
}

// Layout splits content into lines. The first line sits at startOffset and
// every following line is pushed down by the size of the line above it plus
// lineSpacing. When wrap is false only explicit newlines break lines.
func Layout(content string, startOffset float64, wrap bool, lineSpacing int) []Line {
	b := lineBuilder{start: startOffset, spacing: lineSpacing}
	sc := newScanner(content)
	for {
		tok, ok := sc.next()
		if !ok {
			break
		}
		switch tok.kind {
		case tokenNewline:
			b.newline()
		case tokenTag:
			b.appendTag(tok.text)
		case tokenText:
			b.appendText(tok.text, wrap)
		}
	}
	if b.dirty {
		b.flush()
	}
	return b.lines
}

// VisibleWidth counts the characters of s that are not part of a tag.
func VisibleWidth(s string) int {
	n := 0
	sc := newScanner(s)
	for {
		tok, ok := sc.next()
		if !ok {
			return n
		}
		if tok.kind == tokenText {
			n += uniseg.GraphemeClusterCount(tok.text)
		}
	}
}

type lineBuilder struct {
	lines   []Line
	buf     strings.Builder
	count   int
	start   float64
	spacing int

	// dirty is set once anything beyond the carried size prefix is written.
	dirty bool
	// wrapped is set when the last flush was caused by wrapping, so an
	// explicit newline right after it does not emit an empty line.
	wrapped bool

	sizeTag  string
	sizeOpen bool
	size     int
}

func (b *lineBuilder) newline() {
	if b.wrapped && !b.dirty {
		b.wrapped = false
		return
	}
	b.flush()
}

func (b *lineBuilder) appendTag(tag string) {
	b.buf.WriteString(tag)
	b.dirty = true
	if v, ok := sizeTagValue(tag); ok {
		b.sizeTag = tag
		b.sizeOpen = true
		b.size = SizeOf(v)
	} else if isSizeClose(tag) {
		b.sizeOpen = false
	}
}

func (b *lineBuilder) appendText(tok string, wrap bool) {
	w := uniseg.GraphemeClusterCount(tok)
	if !wrap || b.count+w <= MaxLineChars {
		b.write(tok, w)
		return
	}

	core := trimTrailingSpace(tok)
	cw := uniseg.GraphemeClusterCount(core)
	if b.count+cw > MaxLineChars && b.count > 0 {
		b.wrap()
	}
	if cw > MaxLineChars {
		b.hardSplit(core)
		return
	}

	// Keep as much of the trailing whitespace as still fits so the next
	// word either stays separated or wraps.
	room := MaxLineChars - b.count - cw
	ws := firstRunes(tok[len(core):], room)
	b.write(core+ws, cw+utf8.RuneCountInString(ws))
}

func (b *lineBuilder) hardSplit(word string) {
	var chunk strings.Builder
	n := 0
	g := uniseg.NewGraphemes(word)
	for g.Next() {
		if n == MaxLineChars {
			b.write(chunk.String(), n)
			b.wrap()
			chunk.Reset()
			n = 0
		}
		chunk.WriteString(g.Str())
		n++
	}
	if n > 0 {
		b.write(chunk.String(), n)
		b.wrap()
	}
}

func (b *lineBuilder) write(s string, width int) {
	b.buf.WriteString(s)
	b.count += width
	b.dirty = true
	b.wrapped = false
}

func (b *lineBuilder) wrap() {
	if s := b.buf.String(); s != trimTrailingSpace(s) {
		b.buf.Reset()
		b.buf.WriteString(trimTrailingSpace(s))
	}
	b.flush()
	b.wrapped = true
}

func (b *lineBuilder) flush() {
	content := b.buf.String()
	size := DefaultSize
	if b.sizeTag != "" {
		size = b.size
	}
	if b.sizeOpen {
		content += "</size>"
	}

	offset := b.start
	if n := len(b.lines); n > 0 {
		prev := b.lines[n-1]
		offset = prev.Offset - float64(prev.Size) - float64(b.spacing)
	}
	b.lines = append(b.lines, Line{Content: content, Offset: offset, Size: size, ID: len(b.lines)})

	b.buf.Reset()
	b.count = 0
	b.dirty = false
	b.wrapped = false
	if b.sizeOpen {
		b.buf.WriteString(b.sizeTag)
	} else {
		b.sizeTag = ""
	}
}

func firstRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
