package util

import (
	"fmt"
	"math"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/scheerer/bledom-screen-sync/lights"
)

// Clamp limits v to [min, max].
func Clamp(v, min, max float64) float64 {
	return math.Min(max, math.Max(min, v))
}

// ParseHex accepts "#rrggbb", "rrggbb" or the short "#rgb" form.
func ParseHex(s string) (lights.Color, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return lights.Color{}, fmt.Errorf("%w: color %q: %v", lights.ErrInvalidInput, s, err)
	}
	r, g, b := c.RGB255()
	return lights.Color{Red: r, Green: g, Blue: b}, nil
}

// Hex formats a pipeline color the way the preview swatch shows it.
func Hex(c lights.RGB) string {
	w := c.Truncate()
	return colorful.Color{
		R: float64(w.Red) / 255,
		G: float64(w.Green) / 255,
		B: float64(w.Blue) / 255,
	}.Hex()
}
