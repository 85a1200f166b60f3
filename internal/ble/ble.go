// Package ble connects to the strip through the host Bluetooth stack using
// tinygo.org/x/bluetooth.
package ble

import (
	"strings"

	"github.com/scheerer/bledom-screen-sync/internal/logging"
)

var logger = logging.New("ble")

const (
	// DefaultServiceUUID and DefaultWriteUUID are what ELK-BLEDOM controllers expose.
	DefaultServiceUUID = "0000fff0-0000-1000-8000-00805f9b34fb"
	DefaultWriteUUID   = "0000fff3-0000-1000-8000-00805f9b34fb"
)

func addressKey(address string) string {
	return strings.ToUpper(strings.TrimSpace(address))
}

func sameUUID(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
