package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scheerer/bledom-screen-sync/internal/screen"
	"github.com/scheerer/bledom-screen-sync/lights"
	"github.com/scheerer/bledom-screen-sync/screensync"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadSettingsOverridesBase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	writeFile(t, path, "strategy = \"dominant\"\nvibrancy = 2.5\n")

	cfg, err := LoadSettings(path, screensync.DefaultConfig())
	require.NoError(t, err)

	want := screensync.DefaultConfig()
	want.Strategy = screen.Dominant
	want.Vibrancy = 2.5
	assert.Equal(t, want, cfg)
}

func TestLoadSettingsRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	tests := map[string]string{
		"range":    "smoothing = 2.0\n",
		"strategy": "strategy = \"mode\"\n",
		"syntax":   "vibrancy = = 1\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".toml")
			writeFile(t, path, content)
			_, err := LoadSettings(path, screensync.DefaultConfig())
			assert.Error(t, err)
		})
	}

	path := filepath.Join(dir, "range.toml")
	_, err := LoadSettings(path, screensync.DefaultConfig())
	assert.ErrorIs(t, err, lights.ErrInvalidInput)
}

func TestLoadSettingsMissingFile(t *testing.T) {
	_, err := LoadSettings(filepath.Join(t.TempDir(), "missing.toml"), screensync.DefaultConfig())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWriteSettingsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	cfg := screensync.Config{Strategy: screen.Dominant, Vibrancy: 1.5, Smoothing: 0.5, Temperature: -0.25, Boost: true}
	require.NoError(t, WriteSettings(path, cfg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "DOMINANT")

	got, err := LoadSettings(path, screensync.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}
