package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scheerer/bledom-screen-sync/screensync"
)

func startWatcher(t *testing.T, path string, opts ...WatcherOption[screensync.Config]) *Watcher[screensync.Config] {
	t.Helper()
	opts = append([]WatcherOption[screensync.Config]{WithDebounce[screensync.Config](20 * time.Millisecond)}, opts...)
	w := NewWatcher(path, SettingsLoader(screensync.DefaultConfig()), opts...)
	require.NoError(t, w.Start())
	t.Cleanup(func() { assert.NoError(t, w.Stop()) })
	return w
}

func TestWatcherReloadsSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	writeFile(t, path, "vibrancy = 1.2\n")

	w := startWatcher(t, path)
	received := make(chan screensync.Config, 4)
	w.OnReload(func(c screensync.Config) { received <- c })

	writeFile(t, path, "vibrancy = 2.0\nboost = true\n")

	select {
	case c := <-received:
		assert.Equal(t, 2.0, c.Vibrancy)
		assert.True(t, c.Boost)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for settings reload")
	}
}

func TestWatcherKeepsPreviousOnInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	writeFile(t, path, "vibrancy = 1.2\n")

	errs := make(chan error, 4)
	w := startWatcher(t, path, WithErrorHandler[screensync.Config](func(err error) { errs <- err }))

	settings, err := screensync.NewSettings(screensync.DefaultConfig())
	require.NoError(t, err)
	w.OnReload(func(c screensync.Config) { require.NoError(t, settings.Update(c)) })

	writeFile(t, path, "vibrancy = 9.0\n")

	select {
	case err := <-errs:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for rejected reload")
	}
	assert.Equal(t, screensync.DefaultConfig(), settings.Current())
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.toml")
	writeFile(t, path, "vibrancy = 1.2\n")

	w := startWatcher(t, path)
	received := make(chan screensync.Config, 4)
	w.OnReload(func(c screensync.Config) { received <- c })

	writeFile(t, filepath.Join(dir, "other.toml"), "vibrancy = 2.0\n")

	select {
	case c := <-received:
		t.Fatalf("unexpected reload: %+v", c)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcherUnsubscribe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	writeFile(t, path, "vibrancy = 1.2\n")

	w := startWatcher(t, path)
	received := make(chan screensync.Config, 4)
	unsubscribe := w.OnReload(func(c screensync.Config) { received <- c })
	unsubscribe()

	writeFile(t, path, "vibrancy = 2.0\n")

	select {
	case <-received:
		t.Fatal("handler called after unsubscribe")
	case <-time.After(200 * time.Millisecond):
	}
}
