// Package bledom keeps the connection to an ELK-BLEDOM strip and writes frames
// to it one at a time.
package bledom

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/scheerer/bledom-screen-sync/internal/events"
	"github.com/scheerer/bledom-screen-sync/internal/logging"
	"github.com/scheerer/bledom-screen-sync/internal/metrics"
	"github.com/scheerer/bledom-screen-sync/internal/protocol"
	"github.com/scheerer/bledom-screen-sync/lights"
)

var logger = logging.New("bledom")

const (
	OpConnect = "connect"
	OpWrite   = "write"

	DefaultConnectTimeout = 10 * time.Second
	DefaultWriteTimeout   = 2 * time.Second
	DefaultMailboxSize    = 16
)

// Transport is the platform BLE stack.
type Transport interface {
	Connect(ctx context.Context, address string) (Conn, error)
}

// Conn is one established connection to the strip.
type Conn interface {
	WriteCharacteristic(ctx context.Context, uuid string, data []byte) error
	// Connected turns false once the peripheral drops the connection.
	Connected() bool
	Close() error
}

type Config struct {
	Address        string
	WriteUUID      string
	ConnectTimeout time.Duration
	WriteTimeout   time.Duration
	MailboxSize    int
}

// LinkError is the result of a failed connect or write. It matches
// lights.ErrLinkFailure with errors.Is.
type LinkError struct {
	Op      string
	Address string
	Err     error
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("bledom %s %s: %v", e.Op, e.Address, e.Err)
}

func (e *LinkError) Unwrap() error { return e.Err }

func (e *LinkError) Is(target error) bool { return target == lights.ErrLinkFailure }

// Link serializes frames to a single strip. Send only enqueues; the goroutine
// running Run owns the connection and is the only writer.
type Link struct {
	config    Config
	transport Transport
	bus       *events.Bus

	mu       sync.Mutex
	pending  []protocol.Frame
	inFlight bool
	wake     chan struct{}

	state atomic.Int32
	conn  Conn
}

func NewLink(config Config, transport Transport, bus *events.Bus) *Link {
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = DefaultConnectTimeout
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultWriteTimeout
	}
	if config.MailboxSize <= 0 {
		config.MailboxSize = DefaultMailboxSize
	}
	return &Link{
		config:    config,
		transport: transport,
		bus:       bus,
		wake:      make(chan struct{}, 1),
	}
}

func (l *Link) State() lights.LinkState {
	return lights.LinkState(l.state.Load())
}

// Send queues frame for transmission and returns immediately. A color frame
// replaces a color frame that is still the newest one waiting, since only the
// latest color matters. When the mailbox is full the oldest frame is dropped.
func (l *Link) Send(frame protocol.Frame) {
	l.mu.Lock()
	n := len(l.pending)
	if frame.Kind() == protocol.KindColor && n > 0 && l.pending[n-1].Kind() == protocol.KindColor {
		l.pending[n-1] = frame
		metrics.FramesSuperseded.Inc()
	} else {
		if n >= l.config.MailboxSize {
			dropped := l.pending[0]
			copy(l.pending, l.pending[1:])
			l.pending = l.pending[:n-1]
			metrics.FramesDropped.Inc()
			logger.With(zap.Stringer("frame", dropped)).Warn("Mailbox full, dropping oldest frame")
		}
		l.pending = append(l.pending, frame)
	}
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run transmits queued frames until ctx is done, then closes the connection.
func (l *Link) Run(ctx context.Context) {
	logger.With(zap.String("address", l.config.Address)).Info("Link sender started")
	defer func() {
		l.disconnect()
		logger.With(zap.String("address", l.config.Address)).Info("Link sender stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.wake:
			l.drainPending(ctx)
		}
	}
}

func (l *Link) drainPending(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			l.mu.Lock()
			l.inFlight = false
			l.mu.Unlock()
			return
		}
		frame, ok := l.next()
		if !ok {
			return
		}
		l.finish(frame, l.transmit(ctx, frame))
	}
}

func (l *Link) next() (protocol.Frame, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.pending) == 0 {
		l.inFlight = false
		return protocol.Frame{}, false
	}
	frame := l.pending[0]
	l.pending = l.pending[1:]
	l.inFlight = true
	return frame, true
}

// Drain blocks until every queued frame has been attempted or ctx is done.
func (l *Link) Drain(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		l.mu.Lock()
		idle := len(l.pending) == 0 && !l.inFlight
		l.mu.Unlock()
		if idle {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *Link) transmit(ctx context.Context, frame protocol.Frame) error {
	if l.conn != nil && !l.conn.Connected() {
		logger.With(zap.String("address", l.config.Address)).Info("Strip dropped the connection")
		l.disconnect()
	}
	if l.conn == nil {
		if err := l.connect(ctx); err != nil {
			return err
		}
	}

	writeCtx, cancel := context.WithTimeout(ctx, l.config.WriteTimeout)
	defer cancel()

	if err := l.conn.WriteCharacteristic(writeCtx, l.config.WriteUUID, frame[:]); err != nil {
		l.disconnect()
		return &LinkError{Op: OpWrite, Address: l.config.Address, Err: err}
	}
	return nil
}

func (l *Link) connect(ctx context.Context) error {
	l.setState(lights.Connecting)
	metrics.ConnectAttempts.Inc()

	connectCtx, cancel := context.WithTimeout(ctx, l.config.ConnectTimeout)
	defer cancel()

	conn, err := l.transport.Connect(connectCtx, l.config.Address)
	if err != nil {
		l.setState(lights.Disconnected)
		return &LinkError{Op: OpConnect, Address: l.config.Address, Err: err}
	}

	l.conn = conn
	l.setState(lights.Connected)
	return nil
}

func (l *Link) disconnect() {
	if l.conn != nil {
		if err := l.conn.Close(); err != nil {
			logger.With(zap.Error(err)).Debug("Failed to close connection")
		}
		l.conn = nil
	}
	l.setState(lights.Disconnected)
}

func (l *Link) finish(frame protocol.Frame, err error) {
	if err == nil {
		metrics.FramesSent.WithLabelValues(frame.Kind().String()).Inc()
		logger.With(zap.Stringer("frame", frame)).Debug("Frame written")
		return
	}

	op := OpWrite
	var linkErr *LinkError
	if errors.As(err, &linkErr) {
		op = linkErr.Op
	}
	metrics.FramesFailed.WithLabelValues(op).Inc()

	logger.With(
		zap.String("address", l.config.Address),
		zap.String("op", op),
		zap.Stringer("frame", frame),
		zap.Error(err)).
		Warn("Dropped frame")

	l.bus.Publish(events.FrameFailedEvent{
		Address:   l.config.Address,
		Op:        op,
		Frame:     frame.String(),
		Err:       err,
		Timestamp: time.Now(),
	})
}

func (l *Link) setState(s lights.LinkState) {
	prev := lights.LinkState(l.state.Swap(int32(s)))
	if prev == s {
		return
	}
	metrics.LinkState.Set(float64(s))

	if s != lights.Connecting {
		logger.With(zap.String("address", l.config.Address), zap.Stringer("state", s)).Info("Link state changed")
	}

	l.bus.Publish(events.LinkStateChangedEvent{
		Address:   l.config.Address,
		Previous:  prev,
		State:     s,
		Timestamp: time.Now(),
	})
}
