package screen

import (
	"context"
	"fmt"
	"image"

	"github.com/kbinani/screenshot"
	"golang.org/x/image/draw"

	"github.com/scheerer/bledom-screen-sync/lights"
)

// Capturer samples the left half of one display.
type Capturer struct {
	screenNumber  int
	pixelGridSize int
}

func NewCapturer(screenNumber, pixelGridSize int) (*Capturer, error) {
	if pixelGridSize < 1 {
		return nil, fmt.Errorf("%w: pixel grid size %d", lights.ErrInvalidInput, pixelGridSize)
	}
	if screenNumber < 0 {
		return nil, fmt.Errorf("%w: screen number %d", lights.ErrInvalidInput, screenNumber)
	}
	return &Capturer{
		screenNumber:  screenNumber,
		pixelGridSize: pixelGridSize,
	}, nil
}

func (c *Capturer) Capture(ctx context.Context) ([]lights.RGB, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n := screenshot.NumActiveDisplays(); c.screenNumber >= n {
		return nil, fmt.Errorf("%w: screen %d requested but %d active", lights.ErrInvalidInput, c.screenNumber, n)
	}

	img, err := screenshot.CaptureRect(LeftHalf(screenshot.GetDisplayBounds(c.screenNumber)))
	if err != nil {
		return nil, fmt.Errorf("capture screen %d: %w", c.screenNumber, err)
	}
	return Downsample(img, c.pixelGridSize), nil
}

func LeftHalf(bounds image.Rectangle) image.Rectangle {
	return image.Rect(bounds.Min.X, bounds.Min.Y, bounds.Min.X+bounds.Dx()/2, bounds.Max.Y)
}

// Downsample keeps roughly one pixel per pixelGridSize x pixelGridSize cell and
// drops alpha.
func Downsample(img *image.RGBA, pixelGridSize int) []lights.RGB {
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil
	}
	if pixelGridSize < 1 {
		pixelGridSize = 1
	}

	width := (bounds.Dx() + pixelGridSize - 1) / pixelGridSize
	height := (bounds.Dy() + pixelGridSize - 1) / pixelGridSize
	small := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.NearestNeighbor.Scale(small, small.Bounds(), img, bounds, draw.Src, nil)

	samples := make([]lights.RGB, 0, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := small.RGBAAt(x, y)
			samples = append(samples, lights.RGB{R: float64(c.R), G: float64(c.G), B: float64(c.B)})
		}
	}
	return samples
}
