package layout

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// tokenKind classifies a scanned piece of hint text.
type tokenKind uint8

const (
	tokenNewline tokenKind = iota
	tokenTag
	tokenText
)

type token struct {
	kind tokenKind
	text string
}

// scanner splits hint text into newlines, markup tags and text runs in a
// single pass. A text run is a span of non-whitespace followed by any
// trailing horizontal whitespace. A '<' without a closing '>' on the same
// line is ordinary text.
type scanner struct {
	src string
	pos int
}

func newScanner(src string) *scanner {
	return &scanner{src: src}
}

func (s *scanner) next() (token, bool) {
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch {
		case c == '\n':
			s.pos++
			return token{kind: tokenNewline, text: "\n"}, true
		case c == '\r':
			// \r\n and lone \r both collapse into the following newline or nothing
			s.pos++
			continue
		case c == '<':
			if end := s.tagEnd(); end > 0 {
				t := s.src[s.pos:end]
				s.pos = end
				return token{kind: tokenTag, text: t}, true
			}
		}
		return token{kind: tokenText, text: s.textRun()}, true
	}
	return token{}, false
}

// tagEnd returns the index just past the '>' closing the tag at s.pos, or 0
// when the tag is not closed before the end of the line.
func (s *scanner) tagEnd() int {
	rest := s.src[s.pos+1:]
	for i := 0; i < len(rest); i++ {
		switch rest[i] {
		case '>':
			return s.pos + 1 + i + 1
		case '\n', '<':
			return 0
		}
	}
	return 0
}

func (s *scanner) textRun() string {
	start := s.pos
	// The first byte is always consumed so a stray '<' makes progress.
	_, w := utf8.DecodeRuneInString(s.src[s.pos:])
	s.pos += w
	for s.pos < len(s.src) {
		r, w := utf8.DecodeRuneInString(s.src[s.pos:])
		if r == '<' || r == '\n' || r == '\r' || unicode.IsSpace(r) {
			break
		}
		s.pos += w
	}
	for s.pos < len(s.src) {
		r, w := utf8.DecodeRuneInString(s.src[s.pos:])
		if r == '\n' || r == '\r' || !unicode.IsSpace(r) {
			break
		}
		s.pos += w
	}
	return s.src[start:s.pos]
}

func trimTrailingSpace(s string) string {
	return strings.TrimRightFunc(s, unicode.IsSpace)
}
