package overlay

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// strftime directives supported for overlay text, mapped to Go reference-time
// layout fragments.
var directives = map[byte]string{
	'Y': "2006",
	'y': "06",
	'm': "01",
	'd': "02",
	'H': "15",
	'M': "04",
	'S': "05",
	'p': "PM",
	'a': "Mon",
	'A': "Monday",
	'b': "Jan",
	'B': "January",
	'Z': "MST",
}

// Layout converts a strftime-style format string into a Go time layout.
// An unsupported directive is a configuration error.
func Layout(format string) (string, error) {
	var b strings.Builder

	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' {
			b.WriteByte(c)
			continue
		}

		i++
		if i >= len(format) {
			return "", fmt.Errorf("overlay format %q: trailing %%", format)
		}
		if format[i] == '%' {
			b.WriteByte('%')
			continue
		}

		fragment, ok := directives[format[i]]
		if !ok {
			return "", fmt.Errorf("overlay format %q: unsupported directive %%%c", format, format[i])
		}
		b.WriteString(fragment)
	}

	return b.String(), nil
}

// ParseColor parses an "R,G,B" string with components in 0..255.
func ParseColor(spec string) (color.RGBA, error) {
	parts := strings.Split(spec, ",")
	if len(parts) != 3 {
		return color.RGBA{}, fmt.Errorf("overlay color %q: want three comma-separated components", spec)
	}

	var vals [3]uint8
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 || n > 255 {
			return color.RGBA{}, fmt.Errorf("overlay color %q: component %q is not in 0..255", spec, p)
		}
		vals[i] = uint8(n)
	}

	return color.RGBA{R: vals[0], G: vals[1], B: vals[2], A: 255}, nil
}
