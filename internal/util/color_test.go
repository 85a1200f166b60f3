package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scheerer/bledom-screen-sync/lights"
)

func TestParseHex(t *testing.T) {
	tests := map[string]lights.Color{
		"#ff0000":  {Red: 255},
		"00ff00":   {Green: 255},
		" #0a0b0c": {Red: 10, Green: 11, Blue: 12},
		"#fff":     {Red: 255, Green: 255, Blue: 255},
	}
	for in, want := range tests {
		got, err := ParseHex(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseHex("#zzzzzz")
	assert.ErrorIs(t, err, lights.ErrInvalidInput)
}

func TestHex(t *testing.T) {
	assert.Equal(t, "#0ac80a", Hex(lights.RGB{R: 10.7, G: 200.2, B: 10}))
	assert.Equal(t, "#ff0000", Hex(lights.RGB{R: 400, G: -3}))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 255.0, Clamp(300, 0, 255))
	assert.Equal(t, 0.0, Clamp(-1, 0, 255))
	assert.Equal(t, 12.5, Clamp(12.5, 0, 255))
}
