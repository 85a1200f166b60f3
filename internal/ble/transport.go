//go:build linux || windows

package ble

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"tinygo.org/x/bluetooth"

	"github.com/scheerer/bledom-screen-sync/internal/lights/bledom"
	"github.com/scheerer/bledom-screen-sync/lights"
)

// Transport dials the strip by MAC address on one adapter.
type Transport struct {
	adapter     *bluetooth.Adapter
	serviceUUID bluetooth.UUID
	writeUUID   bluetooth.UUID

	// enableAdapter is only remembered once it succeeded; a failed enable is
	// retried on the next Connect.
	enableMu      sync.Mutex
	enabled       bool
	enableAdapter func() error

	mu    sync.Mutex
	conns map[string]*Conn
}

var _ bledom.Transport = (*Transport)(nil)

func New(adapter *bluetooth.Adapter, serviceUUID, writeUUID string) (*Transport, error) {
	svc, err := bluetooth.ParseUUID(serviceUUID)
	if err != nil {
		return nil, fmt.Errorf("%w: service uuid %q: %v", lights.ErrInvalidInput, serviceUUID, err)
	}
	char, err := bluetooth.ParseUUID(writeUUID)
	if err != nil {
		return nil, fmt.Errorf("%w: write uuid %q: %v", lights.ErrInvalidInput, writeUUID, err)
	}
	t := &Transport{
		adapter:     adapter,
		serviceUUID: svc,
		writeUUID:   char,
		conns:       make(map[string]*Conn),
	}
	t.enableAdapter = func() error {
		t.adapter.SetConnectHandler(t.onConnectionChange)
		return t.adapter.Enable()
	}
	return t, nil
}

func (t *Transport) enable() error {
	t.enableMu.Lock()
	defer t.enableMu.Unlock()

	if t.enabled {
		return nil
	}
	if err := t.enableAdapter(); err != nil {
		logger.With(zap.Error(err)).Warn("Bluetooth adapter is not ready")
		return err
	}
	t.enabled = true
	return nil
}

func (t *Transport) onConnectionChange(device bluetooth.Device, connected bool) {
	if connected {
		return
	}
	key := addressKey(device.Address.String())

	t.mu.Lock()
	c := t.conns[key]
	t.mu.Unlock()

	if c != nil {
		logger.With(zap.String("address", key)).Info("Peripheral disconnected")
		c.connected.Store(false)
	}
}

func (t *Transport) Connect(ctx context.Context, address string) (bledom.Conn, error) {
	if err := t.enable(); err != nil {
		return nil, fmt.Errorf("enable bluetooth adapter: %w", err)
	}
	mac, err := bluetooth.ParseMAC(address)
	if err != nil {
		return nil, fmt.Errorf("%w: device address %q: %v", lights.ErrInvalidInput, address, err)
	}

	params := bluetooth.ConnectionParams{}
	if deadline, ok := ctx.Deadline(); ok {
		params.ConnectionTimeout = bluetooth.NewDuration(time.Until(deadline))
	}

	logger.With(zap.String("address", address)).Debug("Connecting")
	device, err := t.adapter.Connect(bluetooth.Address{MACAddress: bluetooth.MACAddress{MAC: mac}}, params)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", address, err)
	}
	if err := ctx.Err(); err != nil {
		_ = device.Disconnect()
		return nil, err
	}

	services, err := device.DiscoverServices([]bluetooth.UUID{t.serviceUUID})
	if err != nil || len(services) == 0 {
		_ = device.Disconnect()
		return nil, fmt.Errorf("discover service %s: %w", t.serviceUUID, errors.Join(err, errors.New("service not found")))
	}
	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{t.writeUUID})
	if err != nil || len(chars) == 0 {
		_ = device.Disconnect()
		return nil, fmt.Errorf("discover characteristic %s: %w", t.writeUUID, errors.Join(err, errors.New("characteristic not found")))
	}

	key := addressKey(address)
	c := &Conn{
		device:    device,
		char:      chars[0],
		writeUUID: t.writeUUID.String(),
	}
	c.connected.Store(true)
	c.release = func() {
		t.mu.Lock()
		if t.conns[key] == c {
			delete(t.conns, key)
		}
		t.mu.Unlock()
	}

	t.mu.Lock()
	t.conns[key] = c
	t.mu.Unlock()

	return c, nil
}

// Conn is a connection with the write characteristic already discovered.
type Conn struct {
	device    bluetooth.Device
	char      bluetooth.DeviceCharacteristic
	writeUUID string
	connected atomic.Bool
	release   func()
}

func (c *Conn) WriteCharacteristic(ctx context.Context, uuid string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !sameUUID(uuid, c.writeUUID) {
		return fmt.Errorf("%w: characteristic %s was not discovered", lights.ErrInvalidInput, uuid)
	}
	if _, err := c.char.WriteWithoutResponse(data); err != nil {
		return fmt.Errorf("write %s: %w", uuid, err)
	}
	return nil
}

func (c *Conn) Connected() bool {
	return c.connected.Load()
}

func (c *Conn) Close() error {
	c.connected.Store(false)
	c.release()
	return c.device.Disconnect()
}
