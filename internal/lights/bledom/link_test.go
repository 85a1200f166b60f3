package bledom

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scheerer/bledom-screen-sync/internal/events"
	"github.com/scheerer/bledom-screen-sync/internal/protocol"
	"github.com/scheerer/bledom-screen-sync/lights"
)

const testAddress = "BE:27:5F:00:13:87"
const testUUID = "0000fff3-0000-1000-8000-00805f9b34fb"

type fakeTransport struct {
	mu           sync.Mutex
	connects     int
	failConnects int
	conns        []*fakeConn
	writeDelay   time.Duration
	failWrites   int

	// shared across conns so the mutual exclusion check spans reconnects
	active    atomic.Int32
	maxActive atomic.Int32
	writes    [][]byte
}

func (t *fakeTransport) Connect(ctx context.Context, address string) (Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.connects++
	if t.failConnects > 0 {
		t.failConnects--
		return nil, errors.New("device not found")
	}
	c := &fakeConn{transport: t}
	c.connected.Store(true)
	t.conns = append(t.conns, c)
	return c, nil
}

func (t *fakeTransport) Writes() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([][]byte(nil), t.writes...)
}

func (t *fakeTransport) Connects() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connects
}

type fakeConn struct {
	transport *fakeTransport
	connected atomic.Bool
	closed    atomic.Bool
}

func (c *fakeConn) WriteCharacteristic(ctx context.Context, uuid string, data []byte) error {
	t := c.transport
	n := t.active.Add(1)
	defer t.active.Add(-1)
	for {
		cur := t.maxActive.Load()
		if n <= cur || t.maxActive.CompareAndSwap(cur, n) {
			break
		}
	}

	if t.writeDelay > 0 {
		select {
		case <-time.After(t.writeDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if uuid != testUUID {
		return errors.New("unknown characteristic")
	}
	if t.failWrites > 0 {
		t.failWrites--
		return errors.New("write timed out")
	}
	t.writes = append(t.writes, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Connected() bool { return c.connected.Load() }

func (c *fakeConn) Close() error {
	c.closed.Store(true)
	c.connected.Store(false)
	return nil
}

func newTestLink(t *testing.T, transport *fakeTransport, mailbox int) (*Link, *events.Bus) {
	t.Helper()
	bus := events.New()
	t.Cleanup(func() { bus.Close() })
	link := NewLink(Config{
		Address:        testAddress,
		WriteUUID:      testUUID,
		ConnectTimeout: time.Second,
		WriteTimeout:   time.Second,
		MailboxSize:    mailbox,
	}, transport, bus)
	return link, bus
}

func runLink(t *testing.T, link *Link) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		link.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func drain(t *testing.T, link *Link) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, link.Drain(ctx))
}

func brightness(t *testing.T, level int) protocol.Frame {
	t.Helper()
	cmd, err := protocol.Brightness(level)
	require.NoError(t, err)
	return protocol.Encode(cmd)
}

func color(r, g, b uint8) protocol.Frame {
	return protocol.Encode(protocol.SetColor(lights.Color{Red: r, Green: g, Blue: b}))
}

func TestLinkConnectsLazilyAndWrites(t *testing.T) {
	transport := &fakeTransport{}
	link, bus := newTestLink(t, transport, 0)

	var mu sync.Mutex
	var states []lights.LinkState
	defer bus.Subscribe(func(e events.LinkStateChangedEvent) {
		mu.Lock()
		states = append(states, e.State)
		mu.Unlock()
	})()

	assert.Equal(t, lights.Disconnected, link.State())
	runLink(t, link)
	assert.Equal(t, 0, transport.Connects())

	frame := protocol.Encode(protocol.Power(true))
	link.Send(frame)
	drain(t, link)

	assert.Equal(t, 1, transport.Connects())
	assert.Equal(t, [][]byte{frame[:]}, transport.Writes())
	assert.Equal(t, lights.Connected, link.State())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(states) == 2
	}, time.Second, 5*time.Millisecond)
	mu.Lock()
	assert.Equal(t, []lights.LinkState{lights.Connecting, lights.Connected}, states)
	mu.Unlock()

	link.Send(brightness(t, 50))
	drain(t, link)
	assert.Equal(t, 1, transport.Connects(), "an open connection is reused")
	assert.Len(t, transport.Writes(), 2)
}

func TestLinkNeverWritesConcurrently(t *testing.T) {
	transport := &fakeTransport{writeDelay: time.Millisecond}
	link, _ := newTestLink(t, transport, 1000)
	runLink(t, link)

	const senders = 8
	const perSender = 25
	frames := make([]protocol.Frame, perSender)
	for i := range frames {
		if i%2 == 0 {
			frames[i] = protocol.Encode(protocol.Power(i%4 == 0))
		} else {
			frames[i] = brightness(t, i)
		}
	}

	var wg sync.WaitGroup
	for s := 0; s < senders; s++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, f := range frames {
				link.Send(f)
			}
		}()
	}
	wg.Wait()
	drain(t, link)

	assert.Len(t, transport.Writes(), senders*perSender)
	assert.Equal(t, int32(1), transport.maxActive.Load())
}

func TestLinkConnectFailureIsContained(t *testing.T) {
	transport := &fakeTransport{failConnects: 1}
	link, bus := newTestLink(t, transport, 0)

	failures := make(chan events.FrameFailedEvent, 4)
	defer bus.Subscribe(func(e events.FrameFailedEvent) { failures <- e })()

	runLink(t, link)

	link.Send(brightness(t, 10))
	drain(t, link)
	assert.Equal(t, lights.Disconnected, link.State())
	assert.Empty(t, transport.Writes())

	select {
	case e := <-failures:
		assert.Equal(t, OpConnect, e.Op)
		assert.ErrorIs(t, e.Err, lights.ErrLinkFailure)
		assert.Equal(t, brightness(t, 10).String(), e.Frame)
	case <-time.After(time.Second):
		t.Fatal("no failure event published")
	}

	second := brightness(t, 20)
	link.Send(second)
	drain(t, link)
	assert.Equal(t, 2, transport.Connects())
	assert.Equal(t, [][]byte{second[:]}, transport.Writes())
	assert.Equal(t, lights.Connected, link.State())
}

func TestLinkWriteFailureResetsConnection(t *testing.T) {
	transport := &fakeTransport{failWrites: 1}
	link, bus := newTestLink(t, transport, 0)

	failures := make(chan events.FrameFailedEvent, 4)
	defer bus.Subscribe(func(e events.FrameFailedEvent) { failures <- e })()

	runLink(t, link)

	link.Send(color(1, 2, 3))
	drain(t, link)
	assert.Equal(t, lights.Disconnected, link.State())
	require.Len(t, transport.conns, 1)
	assert.True(t, transport.conns[0].closed.Load())

	select {
	case e := <-failures:
		assert.Equal(t, OpWrite, e.Op)
	case <-time.After(time.Second):
		t.Fatal("no failure event published")
	}

	link.Send(color(4, 5, 6))
	drain(t, link)
	assert.Equal(t, 2, transport.Connects())
	assert.Len(t, transport.Writes(), 1)
}

func TestLinkReconnectsAfterDisconnectEvent(t *testing.T) {
	transport := &fakeTransport{}
	link, _ := newTestLink(t, transport, 0)
	runLink(t, link)

	link.Send(color(1, 1, 1))
	drain(t, link)
	require.Len(t, transport.conns, 1)

	transport.conns[0].connected.Store(false)

	link.Send(color(2, 2, 2))
	drain(t, link)
	assert.Equal(t, 2, transport.Connects())
	assert.True(t, transport.conns[0].closed.Load())
	assert.Len(t, transport.Writes(), 2)
	assert.Equal(t, lights.Connected, link.State())
}

func TestLinkSupersedesPendingColor(t *testing.T) {
	transport := &fakeTransport{}
	link, _ := newTestLink(t, transport, 0)

	link.Send(color(1, 0, 0))
	link.Send(color(2, 0, 0))
	link.Send(brightness(t, 80))
	link.Send(color(3, 0, 0))
	link.Send(color(4, 0, 0))

	runLink(t, link)
	drain(t, link)

	want := []protocol.Frame{color(2, 0, 0), brightness(t, 80), color(4, 0, 0)}
	got := transport.Writes()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i][:], got[i])
	}
}

func TestLinkMailboxDropsOldest(t *testing.T) {
	transport := &fakeTransport{}
	link, _ := newTestLink(t, transport, 2)

	link.Send(protocol.Encode(protocol.Power(true)))
	link.Send(brightness(t, 1))
	link.Send(brightness(t, 2))

	runLink(t, link)
	drain(t, link)

	got := transport.Writes()
	require.Len(t, got, 2)
	b1, b2 := brightness(t, 1), brightness(t, 2)
	assert.Equal(t, b1[:], got[0])
	assert.Equal(t, b2[:], got[1])
}

func TestLinkStopsClosesConnection(t *testing.T) {
	transport := &fakeTransport{}
	link, _ := newTestLink(t, transport, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		link.Run(ctx)
	}()

	link.Send(color(9, 9, 9))
	drain(t, link)
	cancel()
	<-done

	require.Len(t, transport.conns, 1)
	assert.True(t, transport.conns[0].closed.Load())
	assert.Equal(t, lights.Disconnected, link.State())
}

func TestDrainHonoursContext(t *testing.T) {
	link, _ := newTestLink(t, &fakeTransport{}, 0)
	link.Send(color(1, 1, 1))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, link.Drain(ctx), context.DeadlineExceeded)
}

func TestLinkErrorMatchesLinkFailure(t *testing.T) {
	cause := errors.New("boom")
	err := error(&LinkError{Op: OpWrite, Address: testAddress, Err: cause})
	assert.ErrorIs(t, err, lights.ErrLinkFailure)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "write")
}
