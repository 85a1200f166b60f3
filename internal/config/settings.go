package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/scheerer/bledom-screen-sync/internal/screen"
	"github.com/scheerer/bledom-screen-sync/screensync"
)

// settingsFile is the on-disk form of the live sync settings. Keys missing
// from the file keep the value they had before the load.
type settingsFile struct {
	Strategy    string  `toml:"strategy"`
	Vibrancy    float64 `toml:"vibrancy"`
	Smoothing   float64 `toml:"smoothing"`
	Temperature float64 `toml:"temperature"`
	Boost       bool    `toml:"boost"`
}

func toFile(c screensync.Config) settingsFile {
	return settingsFile{
		Strategy:    c.Strategy.String(),
		Vibrancy:    c.Vibrancy,
		Smoothing:   c.Smoothing,
		Temperature: c.Temperature,
		Boost:       c.Boost,
	}
}

// LoadSettings reads path and applies it on top of base. The result is
// validated; an invalid file is an error, never a partial update.
func LoadSettings(path string, base screensync.Config) (screensync.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return screensync.Config{}, fmt.Errorf("read settings: %w", err)
	}

	f := toFile(base)
	if err := toml.Unmarshal(data, &f); err != nil {
		return screensync.Config{}, fmt.Errorf("parse settings %s: %w", path, err)
	}

	strategy, err := screen.ParseStrategy(f.Strategy)
	if err != nil {
		return screensync.Config{}, fmt.Errorf("settings strategy: %w", err)
	}
	cfg := screensync.Config{
		Strategy:    strategy,
		Vibrancy:    f.Vibrancy,
		Smoothing:   f.Smoothing,
		Temperature: f.Temperature,
		Boost:       f.Boost,
	}
	if err := cfg.Validate(); err != nil {
		return screensync.Config{}, fmt.Errorf("settings %s: %w", path, err)
	}
	return cfg, nil
}

// SettingsLoader binds base for use with a Watcher.
func SettingsLoader(base screensync.Config) func(path string) (screensync.Config, error) {
	return func(path string) (screensync.Config, error) {
		return LoadSettings(path, base)
	}
}

// MarshalSettings renders c in the settings file format.
func MarshalSettings(c screensync.Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	if err := enc.Encode(toFile(c)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteSettings creates or replaces the settings file at path.
func WriteSettings(path string, c screensync.Config) error {
	data, err := MarshalSettings(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
