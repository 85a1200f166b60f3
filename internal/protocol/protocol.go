// Package protocol frames commands for ELK-BLEDOM style LED strip controllers.
//
// Every command is a fixed 9 byte frame written to a single characteristic:
//
//	0x7e 0x00 <tag> <p1> <p2> <p3> <p4> <p5> 0xef
package protocol

import (
	"encoding/hex"
	"fmt"

	"github.com/scheerer/bledom-screen-sync/lights"
)

const (
	FrameSize = 9

	header     byte = 0x7e
	reserved   byte = 0x00
	terminator byte = 0xef

	tagBrightness byte = 0x01
	tagPower      byte = 0x04
	tagColor      byte = 0x05

	colorModeRGB byte = 0x03

	MaxBrightness = 100
)

type Kind uint8

const (
	KindPower Kind = iota + 1
	KindBrightness
	KindColor
)

func (k Kind) String() string {
	switch k {
	case KindPower:
		return "power"
	case KindBrightness:
		return "brightness"
	case KindColor:
		return "color"
	default:
		return "unknown"
	}
}

// Command is one logical instruction for the strip. Only the field matching
// Kind is meaningful.
type Command struct {
	Kind       Kind
	On         bool
	Brightness uint8
	Color      lights.Color
}

func Power(on bool) Command {
	return Command{Kind: KindPower, On: on}
}

// Brightness validates the level here because the codec writes it verbatim.
func Brightness(level int) (Command, error) {
	if level < 0 || level > MaxBrightness {
		return Command{}, fmt.Errorf("%w: brightness %d outside [0, %d]", lights.ErrInvalidInput, level, MaxBrightness)
	}
	return Command{Kind: KindBrightness, Brightness: uint8(level)}, nil
}

func SetColor(c lights.Color) Command {
	return Command{Kind: KindColor, Color: c}
}

func (c Command) String() string {
	switch c.Kind {
	case KindPower:
		return fmt.Sprintf("power(%t)", c.On)
	case KindBrightness:
		return fmt.Sprintf("brightness(%d)", c.Brightness)
	case KindColor:
		return fmt.Sprintf("color(%d,%d,%d)", c.Color.Red, c.Color.Green, c.Color.Blue)
	default:
		return "unknown"
	}
}

type Frame [FrameSize]byte

// Encode never fails and never clamps; callers validate ranges first.
func Encode(cmd Command) Frame {
	f := Frame{header, reserved}
	switch cmd.Kind {
	case KindPower:
		f[2] = tagPower
		if cmd.On {
			f[3] = 0x01
		}
	case KindBrightness:
		f[2] = tagBrightness
		f[3] = cmd.Brightness
	case KindColor:
		f[2] = tagColor
		f[3] = colorModeRGB
		f[4] = cmd.Color.Red
		f[5] = cmd.Color.Green
		f[6] = cmd.Color.Blue
	}
	f[8] = terminator
	return f
}

func Decode(f Frame) (Command, error) {
	if f[0] != header || f[1] != reserved || f[8] != terminator {
		return Command{}, fmt.Errorf("%w: bad framing in %s", lights.ErrInvalidInput, f)
	}
	switch f[2] {
	case tagPower:
		if err := zeroPadding(f, 4); err != nil {
			return Command{}, err
		}
		if f[3] > 0x01 {
			return Command{}, fmt.Errorf("%w: power flag %#02x", lights.ErrInvalidInput, f[3])
		}
		return Power(f[3] == 0x01), nil
	case tagBrightness:
		if err := zeroPadding(f, 4); err != nil {
			return Command{}, err
		}
		return Brightness(int(f[3]))
	case tagColor:
		if f[3] != colorModeRGB {
			return Command{}, fmt.Errorf("%w: color mode %#02x", lights.ErrInvalidInput, f[3])
		}
		if err := zeroPadding(f, 7); err != nil {
			return Command{}, err
		}
		return SetColor(lights.Color{Red: f[4], Green: f[5], Blue: f[6]}), nil
	default:
		return Command{}, fmt.Errorf("%w: unknown tag %#02x", lights.ErrInvalidInput, f[2])
	}
}

// Kind reports the command kind from the tag byte without a full decode.
func (f Frame) Kind() Kind {
	switch f[2] {
	case tagPower:
		return KindPower
	case tagBrightness:
		return KindBrightness
	case tagColor:
		return KindColor
	default:
		return 0
	}
}

func (f Frame) String() string {
	return hex.EncodeToString(f[:])
}

// zeroPadding checks that the bytes from start up to the terminator are unused.
func zeroPadding(f Frame, start int) error {
	for i := start; i < FrameSize-1; i++ {
		if f[i] != 0 {
			return fmt.Errorf("%w: padding byte %d is %#02x in %s", lights.ErrInvalidInput, i, f[i], f)
		}
	}
	return nil
}
