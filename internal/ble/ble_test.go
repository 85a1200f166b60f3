package ble

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddressKey(t *testing.T) {
	assert.Equal(t, "BE:27:5F:00:13:87", addressKey(" be:27:5f:00:13:87 "))
}

func TestSameUUID(t *testing.T) {
	assert.True(t, sameUUID(DefaultWriteUUID, "0000FFF3-0000-1000-8000-00805F9B34FB"))
	assert.False(t, sameUUID(DefaultWriteUUID, DefaultServiceUUID))
}
