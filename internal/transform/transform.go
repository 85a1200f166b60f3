// Package transform holds the per-tick color chain applied to a screen sample:
// temperature bias, vibrancy, brightness boost and exponential smoothing.
package transform

import (
	"math"

	"github.com/scheerer/bledom-screen-sync/internal/util"
	"github.com/scheerer/bledom-screen-sync/lights"
)

const BoostMultiplier = 2.5

// Temperature scales red and blue in opposite directions. t > 0 cools, t <= 0
// warms. Green is untouched and nothing is clamped, so it must be applied to
// the raw sample exactly once.
func Temperature(c lights.RGB, t float64) lights.RGB {
	if t > 0 {
		c.R *= 1 - t
		c.B *= 1 + t
	} else {
		c.R *= 1 + math.Abs(t)
		c.B *= 1 - math.Abs(t)
	}
	return c
}

// Vibrancy pushes each channel away from the pixel's average by factor f.
func Vibrancy(c lights.RGB, f float64) lights.RGB {
	if f == 1 {
		return c.Clamp()
	}
	avg := (c.R + c.G + c.B) / 3
	return lights.RGB{
		R: avg + (c.R-avg)*f,
		G: avg + (c.G-avg)*f,
		B: avg + (c.B-avg)*f,
	}.Clamp()
}

func Boost(c lights.RGB, enabled bool) lights.RGB {
	mult := 1.0
	if enabled {
		mult = BoostMultiplier
	}
	return lights.RGB{R: c.R * mult, G: c.G * mult, B: c.B * mult}.Clamp()
}

// Chain is the stateless part of the pipeline.
type Chain struct {
	Temperature float64
	Vibrancy    float64
	Boost       bool
}

func (ch Chain) Apply(raw lights.RGB) lights.RGB {
	c := Temperature(raw, ch.Temperature)
	c = Vibrancy(c, ch.Vibrancy)
	return Boost(c, ch.Boost)
}

// Smoother is an exponential moving average over ticks. It is not safe for
// concurrent use; the sync worker owns it.
type Smoother struct {
	displayed lights.RGB
}

// Step moves the displayed color toward target by factor s and returns it.
// s >= 1 jumps straight to target.
func (s *Smoother) Step(target lights.RGB, factor float64) lights.RGB {
	if factor >= 1 {
		s.displayed = target
		return s.displayed
	}
	factor = util.Clamp(factor, 0, 1)
	s.displayed.R += (target.R - s.displayed.R) * factor
	s.displayed.G += (target.G - s.displayed.G) * factor
	s.displayed.B += (target.B - s.displayed.B) * factor
	return s.displayed
}

func (s *Smoother) Displayed() lights.RGB {
	return s.displayed
}

func (s *Smoother) Reset() {
	s.displayed = lights.RGB{}
}
