// Package overlay provides optional post-processing applied to every captured
// frame before it is encoded. Whether an overlay is present is decided once at
// startup; the capture loop only ever sees the Processor interface.
package overlay

import (
	"image"
	"image/color"
	"time"

	"gocv.io/x/gocv"
)

// Processor mutates a frame in place before encoding.
type Processor interface {
	Process(frame *gocv.Mat)
}

// Text placement constants.
const (
	textOriginX   = 10
	textOriginY   = 40
	textScale     = 1.0
	textThickness = 2
)

// Timestamp draws the current time onto each frame using a strftime-style
// format string.
type Timestamp struct {
	layout string
	color  color.RGBA
}

// NewTimestamp creates a Timestamp overlay. The format uses strftime
// directives (e.g. "%Y-%m-%d %H:%M:%S") and the color is an "R,G,B" string.
// Unsupported directives or a malformed color are reported as errors so that
// misconfiguration is caught at startup.
func NewTimestamp(format, colorSpec string) (*Timestamp, error) {
	layout, err := Layout(format)
	if err != nil {
		return nil, err
	}

	col, err := ParseColor(colorSpec)
	if err != nil {
		return nil, err
	}

	return &Timestamp{layout: layout, color: col}, nil
}

// Process draws the formatted current time in the top-left corner.
func (o *Timestamp) Process(frame *gocv.Mat) {
	text := time.Now().Format(o.layout)
	gocv.PutText(frame, text, image.Pt(textOriginX, textOriginY),
		gocv.FontHersheySimplex, textScale, o.color, textThickness)
}
