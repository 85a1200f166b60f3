package screen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/scheerer/bledom-screen-sync/lights"
)

type Strategy int

const (
	// Average blends every sample; large uniform regions dominate.
	Average Strategy = iota
	// Dominant takes the per-channel median so a background color cannot dilute
	// the winning hue.
	Dominant
)

func (s Strategy) String() string {
	switch s {
	case Average:
		return "AVERAGE"
	case Dominant:
		return "DOMINANT"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

func ParseStrategy(v string) (Strategy, error) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "AVERAGE", "BALANCED", "MEAN":
		return Average, nil
	case "DOMINANT", "VIVID", "MEDIAN":
		return Dominant, nil
	default:
		return 0, fmt.Errorf("%w: unknown color strategy %q", lights.ErrInvalidInput, v)
	}
}

// Compute reduces samples to one representative color.
func Compute(samples []lights.RGB, strategy Strategy) (lights.RGB, error) {
	if len(samples) == 0 {
		return lights.RGB{}, fmt.Errorf("%w: empty sample buffer", lights.ErrInvalidInput)
	}
	switch strategy {
	case Average:
		return AverageColor(samples), nil
	case Dominant:
		return MedianColor(samples), nil
	default:
		return lights.RGB{}, fmt.Errorf("%w: unknown color strategy %v", lights.ErrInvalidInput, strategy)
	}
}

// AverageColor is the per-channel arithmetic mean. samples must not be empty.
func AverageColor(samples []lights.RGB) lights.RGB {
	var sumR, sumG, sumB float64
	for _, s := range samples {
		sumR += s.R
		sumG += s.G
		sumB += s.B
	}

	n := float64(len(samples))
	return lights.RGB{
		R: sumR / n,
		G: sumG / n,
		B: sumB / n,
	}
}

// MedianColor calculates the per-channel median. samples must not be empty.
func MedianColor(samples []lights.RGB) lights.RGB {
	reds := make([]float64, 0, len(samples))
	greens := make([]float64, 0, len(samples))
	blues := make([]float64, 0, len(samples))
	for _, s := range samples {
		reds = append(reds, s.R)
		greens = append(greens, s.G)
		blues = append(blues, s.B)
	}

	sort.Float64s(reds)
	sort.Float64s(greens)
	sort.Float64s(blues)

	median := func(values []float64) float64 {
		n := len(values)
		if n%2 == 0 {
			return (values[n/2-1] + values[n/2]) / 2
		}
		return values[n/2]
	}

	return lights.RGB{
		R: median(reds),
		G: median(greens),
		B: median(blues),
	}
}
