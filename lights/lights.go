package lights

import (
	"errors"
	"math"
)

var (
	// ErrInvalidInput marks values rejected at a component boundary: empty sample
	// buffers, out of range settings, malformed frames.
	ErrInvalidInput = errors.New("invalid input")

	// ErrLinkFailure marks a failed connect or write to the strip.
	ErrLinkFailure = errors.New("link failure")
)

// Color is what the strip understands: one byte per channel.
type Color struct {
	Red   uint8
	Green uint8
	Blue  uint8
}

// RGB is a color inside the sync pipeline. Channels stay float so repeated
// smoothing does not accumulate rounding error.
type RGB struct {
	R float64
	G float64
	B float64
}

func (c Color) RGB() RGB {
	return RGB{R: float64(c.Red), G: float64(c.Green), B: float64(c.Blue)}
}

// Clamp limits every channel to [0, 255].
func (c RGB) Clamp() RGB {
	return RGB{R: clamp(c.R), G: clamp(c.G), B: clamp(c.B)}
}

// Truncate converts to a wire color. Fractions are dropped, not rounded.
func (c RGB) Truncate() Color {
	c = c.Clamp()
	return Color{Red: uint8(c.R), Green: uint8(c.G), Blue: uint8(c.B)}
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(255, math.Max(0, v))
}

type LinkState int32

const (
	Disconnected LinkState = iota
	Connecting
	Connected
)

func (s LinkState) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	default:
		return "Unknown"
	}
}
