package screensync

import (
	"fmt"
	"sync/atomic"

	"github.com/scheerer/bledom-screen-sync/internal/screen"
	"github.com/scheerer/bledom-screen-sync/lights"
)

const (
	MinVibrancy    = 1.0
	MaxVibrancy    = 3.0
	MinSmoothing   = 0.05
	MaxSmoothing   = 1.0
	MinTemperature = -0.5
	MaxTemperature = 0.5
)

// Config is the per-tick tuning of the color pipeline.
type Config struct {
	Strategy    screen.Strategy
	Vibrancy    float64
	Smoothing   float64
	Temperature float64
	Boost       bool
}

func DefaultConfig() Config {
	return Config{
		Strategy:    screen.Average,
		Vibrancy:    1.2,
		Smoothing:   0.15,
		Temperature: 0,
		Boost:       false,
	}
}

func (c Config) Validate() error {
	if c.Strategy != screen.Average && c.Strategy != screen.Dominant {
		return fmt.Errorf("%w: strategy %v", lights.ErrInvalidInput, c.Strategy)
	}
	if err := inRange("vibrancy", c.Vibrancy, MinVibrancy, MaxVibrancy); err != nil {
		return err
	}
	if err := inRange("smoothing", c.Smoothing, MinSmoothing, MaxSmoothing); err != nil {
		return err
	}
	return inRange("temperature", c.Temperature, MinTemperature, MaxTemperature)
}

func inRange(name string, v, min, max float64) error {
	// NaN fails both comparisons
	if !(v >= min && v <= max) {
		return fmt.Errorf("%w: %s %v outside [%v, %v]", lights.ErrInvalidInput, name, v, min, max)
	}
	return nil
}

// Settings holds the latest Config supplied by the control surface. Readers
// always see a complete Config; an update lands on the next tick.
type Settings struct {
	current atomic.Pointer[Config]
}

func NewSettings(initial Config) (*Settings, error) {
	s := &Settings{}
	if err := s.Update(initial); err != nil {
		return nil, err
	}
	return s, nil
}

// Update replaces the config unless it is invalid, in which case the previous
// value stays in effect.
func (s *Settings) Update(c Config) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.current.Store(&c)
	return nil
}

func (s *Settings) Current() Config {
	if c := s.current.Load(); c != nil {
		return *c
	}
	return DefaultConfig()
}
