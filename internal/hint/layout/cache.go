package layout

// Cache remembers the most recent layout call. A repeated call with the same
// content and parameters returns the previous slice without re-running the
// scanner.
type Cache struct {
	content string
	start   float64
	wrap    bool
	spacing int
	lines   []Line
	valid   bool
}

// Layout returns the lines for content, reporting whether they came from the
// cache.
func (c *Cache) Layout(content string, startOffset float64, wrap bool, lineSpacing int) ([]Line, bool) {
	if c.valid && c.content == content && c.start == startOffset && c.wrap == wrap && c.spacing == lineSpacing {
		return c.lines, true
	}
	c.lines = Layout(content, startOffset, wrap, lineSpacing)
	c.content = content
	c.start = startOffset
	c.wrap = wrap
	c.spacing = lineSpacing
	c.valid = true
	return c.lines, false
}

// Reset forgets the cached layout.
func (c *Cache) Reset() {
	*c = Cache{}
}
