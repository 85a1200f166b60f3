package events

import (
	"time"

	"github.com/scheerer/bledom-screen-sync/lights"
)

// Event type constants for kelindar/event.
const (
	TypeLinkStateChanged uint32 = iota + 1
	TypeFrameFailed
	TypeColorDisplayed
	TypeSyncStateChanged
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// LinkStateChangedEvent drives the connection status display.
type LinkStateChangedEvent struct {
	Address   string
	Previous  lights.LinkState
	State     lights.LinkState
	Timestamp time.Time
}

func (e LinkStateChangedEvent) Type() uint32 { return TypeLinkStateChanged }

// FrameFailedEvent reports a frame the link gave up on.
type FrameFailedEvent struct {
	Address   string
	Op        string
	Frame     string
	Err       error
	Timestamp time.Time
}

func (e FrameFailedEvent) Type() uint32 { return TypeFrameFailed }

// ColorDisplayedEvent carries the smoothed color of one sync tick for preview.
type ColorDisplayedEvent struct {
	SessionID string
	Color     lights.RGB
	Hex       string
	Timestamp time.Time
}

func (e ColorDisplayedEvent) Type() uint32 { return TypeColorDisplayed }

// SyncStateChangedEvent is published when screen sync starts or stops.
type SyncStateChangedEvent struct {
	SessionID string
	Running   bool
	Timestamp time.Time
}

func (e SyncStateChangedEvent) Type() uint32 { return TypeSyncStateChanged }
