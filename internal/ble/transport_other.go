//go:build !linux && !windows

package ble

import (
	"context"
	"errors"

	"tinygo.org/x/bluetooth"

	"github.com/scheerer/bledom-screen-sync/internal/lights/bledom"
)

var ErrUnsupported = errors.New("bluetooth transport is only built for linux and windows")

type Transport struct{}

func New(adapter *bluetooth.Adapter, serviceUUID, writeUUID string) (*Transport, error) {
	return nil, ErrUnsupported
}

func (t *Transport) Connect(ctx context.Context, address string) (bledom.Conn, error) {
	return nil, ErrUnsupported
}
