package layout

import (
	"math"
	"strconv"
	"strings"
)

const (
	// BaseFontSize is the pixel height of one line at the default size.
	BaseFontSize = 35.0

	// DefaultSize is the size, in line units, of text without a size tag.
	DefaultSize = 1
)

// sizeTagValue returns the value of a `<size=...>` opening tag.
func sizeTagValue(tag string) (string, bool) {
	inner := strings.TrimSpace(tag[1 : len(tag)-1])
	if len(inner) < 5 || !strings.EqualFold(inner[:5], "size=") {
		return "", false
	}
	return strings.Trim(strings.TrimSpace(inner[5:]), `"'`), true
}

func isSizeClose(tag string) bool {
	return strings.EqualFold(strings.TrimSpace(tag[1:len(tag)-1]), "/size")
}

// ParseSize resolves a size tag value to pixels. Percentages are relative to
// BaseFontSize, "em" multiplies it, "px" and bare numbers are pixels.
func ParseSize(value string) (float64, bool) {
	v := strings.ToLower(strings.TrimSpace(value))
	scale := 1.0
	switch {
	case strings.HasSuffix(v, "%"):
		v, scale = v[:len(v)-1], BaseFontSize/100
	case strings.HasSuffix(v, "em"):
		v, scale = v[:len(v)-2], BaseFontSize
	case strings.HasSuffix(v, "px"):
		v = v[:len(v)-2]
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	px := n * scale
	if px <= 0 {
		return 0, false
	}
	return px, true
}

// LineUnits converts a pixel size into whole line units, rounding up so a
// large line never overlaps the one below it.
func LineUnits(px float64) int {
	u := int(math.Ceil(px/BaseFontSize - 1e-9))
	if u < DefaultSize {
		return DefaultSize
	}
	return u
}

// SizeOf returns the line units for a size tag value; malformed values
// fall back to DefaultSize.
func SizeOf(value string) int {
	px, ok := ParseSize(value)
	if !ok {
		return DefaultSize
	}
	return LineUnits(px)
}
