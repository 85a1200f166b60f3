package cmd

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"tinygo.org/x/bluetooth"

	"github.com/scheerer/bledom-screen-sync/internal/ble"
	"github.com/scheerer/bledom-screen-sync/internal/config"
	"github.com/scheerer/bledom-screen-sync/internal/events"
	"github.com/scheerer/bledom-screen-sync/internal/lights/bledom"
	"github.com/scheerer/bledom-screen-sync/lights"
)

const shutdownTimeout = 5 * time.Second

// linkSession is a running sender goroutine plus the bus it reports on.
type linkSession struct {
	link   *bledom.Link
	bus    *events.Bus
	cancel context.CancelFunc
	done   chan struct{}
	unsubs []func()
}

func openLink(cfg config.Config) (*linkSession, error) {
	transport, err := ble.New(bluetooth.DefaultAdapter, cfg.ServiceUUID, cfg.WriteUUID)
	if err != nil {
		return nil, fmt.Errorf("bluetooth transport: %w", err)
	}
	return startLink(cfg.Link(), transport), nil
}

func startLink(linkCfg bledom.Config, transport bledom.Transport) *linkSession {
	bus := events.New()
	s := &linkSession{
		link: bledom.NewLink(linkCfg, transport, bus),
		bus:  bus,
		done: make(chan struct{}),
	}

	s.unsubs = append(s.unsubs,
		bus.Subscribe(func(e events.LinkStateChangedEvent) {
			if e.State == lights.Connecting {
				return
			}
			logger.With(zap.String("address", e.Address)).Infof("Strip %s", e.State)
		}),
		bus.Subscribe(func(e events.FrameFailedEvent) {
			logger.With(zap.String("op", e.Op), zap.String("frame", e.Frame), zap.Error(e.Err)).
				Debug("Frame failed")
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go func() {
		defer close(s.done)
		s.link.Run(ctx)
	}()
	return s
}

// close waits up to timeout for queued frames and then stops the sender.
func (s *linkSession) close(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	drainErr := s.link.Drain(ctx)

	s.cancel()
	<-s.done
	for _, unsub := range s.unsubs {
		unsub()
	}
	if err := s.bus.Close(); err != nil {
		logger.With(zap.Error(err)).Debug("Failed to close event bus")
	}
	return drainErr
}

// closeDelivered is close for one-shot commands: the last frame must have
// reached the strip.
func (s *linkSession) closeDelivered(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.link.Drain(ctx); err != nil {
		s.close(0)
		return fmt.Errorf("%w: gave up waiting for the strip: %v", lights.ErrLinkFailure, err)
	}
	delivered := s.link.State() == lights.Connected
	if err := s.close(timeout); err != nil {
		return err
	}
	if !delivered {
		return fmt.Errorf("%w: strip did not accept the command", lights.ErrLinkFailure)
	}
	return nil
}
