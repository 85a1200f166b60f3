package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scheerer/bledom-screen-sync/internal/config"
	"github.com/scheerer/bledom-screen-sync/internal/events"
	"github.com/scheerer/bledom-screen-sync/internal/metrics"
	"github.com/scheerer/bledom-screen-sync/internal/screen"
	"github.com/scheerer/bledom-screen-sync/screensync"
)

func (a *app) newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Mirror the screen color onto the strip until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSync()
		},
	}
}

func (a *app) runSync() error {
	cfg := a.cfg
	logger.With(zap.Any("config", cfg)).Info("Starting screen sync")

	logger.Info("Adjust SCREEN_NUMBER to target a different screen. 0 is the primary screen.")
	logger.Info("Adjust PIXEL_GRID_SIZE to increase performance or accuracy. Lower values are slower but more accurate. 1 being the most accurate.")
	logger.Info("Adjust CAPTURE_INTERVAL to change how often the screen is captured.")
	logger.Info("Adjust SYNC_STRATEGY to change color algorithm. Valid values are: [AVERAGE, DOMINANT]")
	logger.Info("Adjust VIBRANCY between 1 and 3, SMOOTHING between 0.05 and 1, TEMPERATURE between -0.5 and 0.5.")
	logger.Info("Set SETTINGS_FILE to change sync settings while running.")
	logger.Info("Set DEVICE_ADDRESS to the MAC address of the strip.")
	logger.Info("Press Ctrl+C to stop")

	initial, err := cfg.Sync()
	if err != nil {
		return err
	}
	manual, err := cfg.Manual()
	if err != nil {
		return err
	}

	capturer, err := screen.NewCapturer(cfg.ScreenNumber, cfg.PixelGridSize)
	if err != nil {
		return err
	}

	settings, err := screensync.NewSettings(initial)
	if err != nil {
		return err
	}
	if cfg.SettingsFile != "" {
		stopWatching, err := watchSettings(cfg.SettingsFile, initial, settings)
		if err != nil {
			return err
		}
		defer stopWatching()
	}

	s, err := openLink(cfg)
	if err != nil {
		return err
	}

	preview := s.bus.Subscribe(func(e events.ColorDisplayedEvent) {
		logger.With(zap.String("session", e.SessionID), zap.String("color", e.Hex)).Debug("Preview")
	})
	defer preview()
	defer s.bus.Subscribe(logSyncState)()

	controller, err := screensync.NewController(capturer, s.link, settings, s.bus, cfg.Controller(manual))
	if err != nil {
		s.close(0)
		return err
	}

	if cfg.MetricsAddr != "" {
		stopMetrics := serveMetrics(cfg.MetricsAddr)
		defer stopMetrics()
	}

	controller.StartSync(context.Background())

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown
	logger.With(zap.Bool("syncRunning", controller.Running())).Info("Shutting down")

	controller.StopSync()
	if err := s.close(shutdownTimeout); err != nil {
		logger.With(zap.Error(err)).Warn("Strip did not receive every frame before exit")
	}
	return nil
}

func logSyncState(e events.SyncStateChangedEvent) {
	logger.With(zap.String("session", e.SessionID)).Info(syncStateMessage(e))
}

func syncStateMessage(e events.SyncStateChangedEvent) string {
	if e.Running {
		return "Screen sync session started"
	}
	return "Screen sync session ended, manual settings restored"
}

// watchSettings applies the settings file now and again whenever it changes.
// A missing file is created from the current settings so there is something
// to edit.
func watchSettings(path string, base screensync.Config, settings *screensync.Settings) (func(), error) {
	loaded, err := config.LoadSettings(path, base)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := config.WriteSettings(path, base); err != nil {
			return nil, err
		}
		logger.With(zap.String("path", path)).Info("Created settings file")
	case err != nil:
		return nil, err
	default:
		if err := settings.Update(loaded); err != nil {
			return nil, err
		}
	}

	watcher := config.NewWatcher(path, config.SettingsLoader(base))
	watcher.OnReload(func(c screensync.Config) {
		if err := settings.Update(c); err != nil {
			logger.With(zap.Error(err)).Warn("Rejected sync settings")
			return
		}
		logger.With(
			zap.Stringer("strategy", c.Strategy),
			zap.Float64("vibrancy", c.Vibrancy),
			zap.Float64("smoothing", c.Smoothing),
			zap.Float64("temperature", c.Temperature),
			zap.Bool("boost", c.Boost)).
			Info("Sync settings updated")
	})
	if err := watcher.Start(); err != nil {
		return nil, err
	}
	return func() {
		if err := watcher.Stop(); err != nil {
			logger.With(zap.Error(err)).Debug("Failed to stop settings watcher")
		}
	}, nil
}

func serveMetrics(addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.With(zap.String("addr", addr)).Info("Serving metrics")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.With(zap.Error(err)).Error("Metrics server failed")
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}
}
