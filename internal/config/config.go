// Package config reads the process configuration from the environment and the
// optional sync settings file.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env"

	"github.com/scheerer/bledom-screen-sync/internal/lights/bledom"
	"github.com/scheerer/bledom-screen-sync/internal/protocol"
	"github.com/scheerer/bledom-screen-sync/internal/screen"
	"github.com/scheerer/bledom-screen-sync/internal/util"
	"github.com/scheerer/bledom-screen-sync/lights"
	"github.com/scheerer/bledom-screen-sync/screensync"
)

type Config struct {
	DeviceAddress  string        `env:"DEVICE_ADDRESS" envDefault:"BE:27:5F:00:13:87"`
	ServiceUUID    string        `env:"SERVICE_UUID" envDefault:"0000fff0-0000-1000-8000-00805f9b34fb"`
	WriteUUID      string        `env:"WRITE_UUID" envDefault:"0000fff3-0000-1000-8000-00805f9b34fb"`
	ConnectTimeout time.Duration `env:"CONNECT_TIMEOUT" envDefault:"10s"`
	WriteTimeout   time.Duration `env:"WRITE_TIMEOUT" envDefault:"2s"`
	MailboxSize    int           `env:"MAILBOX_SIZE" envDefault:"16"`

	CaptureInterval time.Duration `env:"CAPTURE_INTERVAL" envDefault:"50ms"`
	PixelGridSize   int           `env:"PIXEL_GRID_SIZE" envDefault:"20"`
	ScreenNumber    int           `env:"SCREEN_NUMBER" envDefault:"0"`
	RestoreDelay    time.Duration `env:"RESTORE_DELAY" envDefault:"50ms"`

	SyncStrategy string  `env:"SYNC_STRATEGY" envDefault:"AVERAGE"`
	Vibrancy     float64 `env:"VIBRANCY" envDefault:"1.2"`
	Smoothing    float64 `env:"SMOOTHING" envDefault:"0.15"`
	Temperature  float64 `env:"TEMPERATURE" envDefault:"0"`
	Boost        bool    `env:"BOOST" envDefault:"false"`

	ManualColor      string `env:"MANUAL_COLOR" envDefault:"#ffffff"`
	ManualBrightness int    `env:"MANUAL_BRIGHTNESS" envDefault:"100"`
	PoweredOn        bool   `env:"POWERED_ON" envDefault:"true"`

	SettingsFile string `env:"SETTINGS_FILE"`
	MetricsAddr  string `env:"METRICS_ADDR"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.DeviceAddress == "" {
		return fmt.Errorf("%w: DEVICE_ADDRESS is empty", lights.ErrInvalidInput)
	}
	if c.CaptureInterval <= 0 {
		return fmt.Errorf("%w: CAPTURE_INTERVAL must be positive, got %v", lights.ErrInvalidInput, c.CaptureInterval)
	}
	if c.PixelGridSize < 1 {
		return fmt.Errorf("%w: PIXEL_GRID_SIZE must be at least 1, got %d", lights.ErrInvalidInput, c.PixelGridSize)
	}
	if c.ScreenNumber < 0 {
		return fmt.Errorf("%w: SCREEN_NUMBER must not be negative, got %d", lights.ErrInvalidInput, c.ScreenNumber)
	}
	if _, err := c.Sync(); err != nil {
		return err
	}
	if _, err := c.Manual(); err != nil {
		return err
	}
	return nil
}

// Sync returns the initial sync settings. A settings file, if any, is applied
// on top of these.
func (c Config) Sync() (screensync.Config, error) {
	strategy, err := screen.ParseStrategy(c.SyncStrategy)
	if err != nil {
		return screensync.Config{}, fmt.Errorf("SYNC_STRATEGY: %w", err)
	}
	cfg := screensync.Config{
		Strategy:    strategy,
		Vibrancy:    c.Vibrancy,
		Smoothing:   c.Smoothing,
		Temperature: c.Temperature,
		Boost:       c.Boost,
	}
	if err := cfg.Validate(); err != nil {
		return screensync.Config{}, err
	}
	return cfg, nil
}

func (c Config) Manual() (screensync.Manual, error) {
	color, err := util.ParseHex(c.ManualColor)
	if err != nil {
		return screensync.Manual{}, fmt.Errorf("MANUAL_COLOR: %w", err)
	}
	if _, err := protocol.Brightness(c.ManualBrightness); err != nil {
		return screensync.Manual{}, fmt.Errorf("MANUAL_BRIGHTNESS: %w", err)
	}
	return screensync.Manual{
		On:         c.PoweredOn,
		Brightness: c.ManualBrightness,
		Color:      color,
	}, nil
}

func (c Config) Link() bledom.Config {
	return bledom.Config{
		Address:        c.DeviceAddress,
		WriteUUID:      c.WriteUUID,
		ConnectTimeout: c.ConnectTimeout,
		WriteTimeout:   c.WriteTimeout,
		MailboxSize:    c.MailboxSize,
	}
}

func (c Config) Controller(manual screensync.Manual) screensync.Options {
	return screensync.Options{
		CaptureInterval: c.CaptureInterval,
		RestoreDelay:    c.RestoreDelay,
		Manual:          manual,
	}
}
