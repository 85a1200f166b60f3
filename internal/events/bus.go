package events

import (
	"github.com/kelindar/event"
)

// Bus wraps a kelindar/event dispatcher. Publish never waits on subscribers.
type Bus struct {
	dispatcher *event.Dispatcher
}

func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish fans ev out to the subscribers of its concrete type. A nil bus
// discards events.
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	switch e := ev.(type) {
	case LinkStateChangedEvent:
		event.Publish(b.dispatcher, e)
	case FrameFailedEvent:
		event.Publish(b.dispatcher, e)
	case ColorDisplayedEvent:
		event.Publish(b.dispatcher, e)
	case SyncStateChangedEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe registers handler for the event type it accepts and returns the
// unsubscribe function.
// Usage: unsub := bus.Subscribe(func(e LinkStateChangedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(LinkStateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(FrameFailedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ColorDisplayedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SyncStateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}

func (b *Bus) Close() error {
	return b.dispatcher.Close()
}
