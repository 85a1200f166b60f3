package screensync

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scheerer/bledom-screen-sync/internal/events"
	"github.com/scheerer/bledom-screen-sync/internal/logging"
	"github.com/scheerer/bledom-screen-sync/internal/metrics"
	"github.com/scheerer/bledom-screen-sync/internal/protocol"
	"github.com/scheerer/bledom-screen-sync/internal/screen"
	"github.com/scheerer/bledom-screen-sync/internal/transform"
	"github.com/scheerer/bledom-screen-sync/internal/util"
	"github.com/scheerer/bledom-screen-sync/lights"
)

var logger = logging.New("screensync")

const (
	DefaultCaptureInterval = 50 * time.Millisecond
	DefaultRestoreDelay    = 50 * time.Millisecond
)

type Capturer interface {
	Capture(ctx context.Context) ([]lights.RGB, error)
}

// Sender accepts encoded frames without blocking on the device.
type Sender interface {
	Send(frame protocol.Frame)
}

type ConfigSource interface {
	Current() Config
}

// Manual is what the strip shows outside of screen sync. It is restored when
// sync stops.
type Manual struct {
	On         bool
	Brightness int
	Color      lights.Color
}

func DefaultManual() Manual {
	return Manual{
		On:         true,
		Brightness: protocol.MaxBrightness,
		Color:      lights.Color{Red: 255, Green: 255, Blue: 255},
	}
}

type Options struct {
	CaptureInterval time.Duration
	RestoreDelay    time.Duration
	Manual          Manual
}

// Controller runs screen sync sessions and carries the manual settings.
type Controller struct {
	capturer Capturer
	sender   Sender
	settings ConfigSource
	bus      *events.Bus
	options  Options

	// lifecycle serializes StartSync and StopSync.
	lifecycle sync.Mutex

	mu        sync.Mutex
	manual    Manual
	cancel    context.CancelFunc
	done      chan struct{}
	sessionID string

	displayed atomic.Pointer[lights.RGB]
}

func NewController(capturer Capturer, sender Sender, settings ConfigSource, bus *events.Bus, options Options) (*Controller, error) {
	if options.CaptureInterval <= 0 {
		options.CaptureInterval = DefaultCaptureInterval
	}
	if options.RestoreDelay < 0 {
		options.RestoreDelay = 0
	}
	if _, err := protocol.Brightness(options.Manual.Brightness); err != nil {
		return nil, fmt.Errorf("manual brightness: %w", err)
	}
	return &Controller{
		capturer: capturer,
		sender:   sender,
		settings: settings,
		bus:      bus,
		options:  options,
		manual:   options.Manual,
	}, nil
}

func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil
}

// Displayed returns the color of the latest tick. ok is false while idle.
func (c *Controller) Displayed() (color lights.RGB, ok bool) {
	if p := c.displayed.Load(); p != nil {
		return *p, true
	}
	return lights.RGB{}, false
}

func (c *Controller) Manual() Manual {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.manual
}

// StartSync begins a session. It returns false if one is already running.
func (c *Controller) StartSync(ctx context.Context) bool {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return false
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	sessionID := uuid.NewString()
	c.cancel, c.done, c.sessionID = cancel, done, sessionID
	c.mu.Unlock()

	metrics.SyncRunning.Set(1)
	c.bus.Publish(events.SyncStateChangedEvent{SessionID: sessionID, Running: true, Timestamp: time.Now()})

	go c.run(runCtx, sessionID, done)
	return true
}

// StopSync ends the running session, waits for its last tick and then puts
// the manual brightness and color back.
func (c *Controller) StopSync() {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	cancel, done, sessionID := c.cancel, c.done, c.sessionID
	c.cancel, c.done, c.sessionID = nil, nil, ""
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	c.displayed.Store(nil)
	metrics.SyncRunning.Set(0)
	c.bus.Publish(events.SyncStateChangedEvent{SessionID: sessionID, Running: false, Timestamp: time.Now()})

	c.restoreManual()
}

// restoreManual sends brightness before color; brightness changes shift the
// strip's color mapping.
func (c *Controller) restoreManual() {
	manual := c.Manual()
	if !manual.On {
		logger.Info("Strip is powered off, not restoring manual settings")
		return
	}

	cmd, err := protocol.Brightness(manual.Brightness)
	if err != nil {
		logger.With(zap.Error(err)).Error("Manual brightness is invalid, not restoring")
		return
	}

	logger.With(zap.Int("brightness", manual.Brightness), zap.Any("color", manual.Color)).Info("Restoring manual settings")
	c.sender.Send(protocol.Encode(cmd))
	if c.options.RestoreDelay > 0 {
		time.Sleep(c.options.RestoreDelay)
	}
	c.sender.Send(protocol.Encode(protocol.SetColor(manual.Color)))
}

func (c *Controller) SetPower(on bool) {
	c.mu.Lock()
	c.manual.On = on
	c.mu.Unlock()

	c.sender.Send(protocol.Encode(protocol.Power(on)))
}

// SetBrightness rejects levels outside [0, 100] instead of clamping them.
func (c *Controller) SetBrightness(level int) error {
	cmd, err := protocol.Brightness(level)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.manual.Brightness = level
	c.mu.Unlock()

	c.sender.Send(protocol.Encode(cmd))
	return nil
}

func (c *Controller) SetColor(color lights.Color) {
	c.mu.Lock()
	c.manual.Color = color
	c.mu.Unlock()

	c.sender.Send(protocol.Encode(protocol.SetColor(color)))
}

type tickTimings struct {
	capture   time.Duration
	calculate time.Duration
	send      time.Duration
}

func (c *Controller) run(ctx context.Context, sessionID string, done chan struct{}) {
	defer close(done)

	log := logger.With(zap.String("session", sessionID))
	log.With(zap.Stringer("interval", c.options.CaptureInterval)).Info("Screen sync started")

	// the smoother lives and dies with the session
	var smoother transform.Smoother
	var lastWarning time.Time

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("Screen sync stopped")
			return
		case <-timer.C:
		}

		startTime := time.Now()
		timings := c.tick(ctx, sessionID, &smoother, log)
		totalDuration := time.Since(startTime)

		untilNextTick := c.options.CaptureInterval - totalDuration
		if untilNextTick <= 0 {
			if time.Since(lastWarning) > 10*time.Second {
				log.With(
					zap.Stringer("captureScreenDuration", timings.capture),
					zap.Stringer("colorCalculationDuration", timings.calculate),
					zap.Stringer("sendDuration", timings.send),
					zap.Stringer("totalDuration", totalDuration)).
					Warn("Cannot keep up with CAPTURE_INTERVAL. Consider increasing PIXEL_GRID_SIZE or increasing CAPTURE_INTERVAL.")
				lastWarning = time.Now()
			}
			untilNextTick = 0
		}
		timer.Reset(untilNextTick)
	}
}

// tick runs sample -> statistics -> transform chain -> encode -> send once.
func (c *Controller) tick(ctx context.Context, sessionID string, smoother *transform.Smoother, log *zap.SugaredLogger) tickTimings {
	var timings tickTimings
	cfg := c.settings.Current()
	if err := cfg.Validate(); err != nil {
		metrics.TicksSkipped.WithLabelValues("config").Inc()
		log.With(zap.Error(err)).Error("Rejected sync settings")
		return timings
	}

	captureStart := time.Now()
	samples, err := c.capturer.Capture(ctx)
	timings.capture = time.Since(captureStart)
	metrics.TickDuration.WithLabelValues("capture").Observe(timings.capture.Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return timings
		}
		metrics.TicksSkipped.WithLabelValues("capture").Inc()
		log.With(zap.Error(err)).Error("Failed to capture screen")
		return timings
	}

	calculateStart := time.Now()
	raw, err := screen.Compute(samples, cfg.Strategy)
	if err != nil {
		metrics.TicksSkipped.WithLabelValues("statistics").Inc()
		log.With(zap.Error(err), zap.Int("samples", len(samples))).Error("Capture returned unusable samples")
		return timings
	}
	chain := transform.Chain{
		Temperature: cfg.Temperature,
		Vibrancy:    cfg.Vibrancy,
		Boost:       cfg.Boost,
	}
	displayed := smoother.Step(chain.Apply(raw), cfg.Smoothing)
	timings.calculate = time.Since(calculateStart)
	metrics.TickDuration.WithLabelValues("calculate").Observe(timings.calculate.Seconds())

	if ctx.Err() != nil {
		// stopped while capturing or calculating; the restore sequence owns the strip now
		return timings
	}

	sendStart := time.Now()
	c.sender.Send(protocol.Encode(protocol.SetColor(displayed.Truncate())))
	timings.send = time.Since(sendStart)
	metrics.TickDuration.WithLabelValues("send").Observe(timings.send.Seconds())

	c.displayed.Store(&displayed)
	c.bus.Publish(events.ColorDisplayedEvent{
		SessionID: sessionID,
		Color:     displayed,
		Hex:       util.Hex(displayed),
		Timestamp: time.Now(),
	})
	return timings
}
