package matrix

import (
	"errors"
	"fmt"
)

// Register map of the IS31FL3731 style charlieplex driver: a page select
// register, on/off bitmap and PWM blocks in each frame page, and a
// function page holding the shutdown register.
const (
	regPageSelect = 0xFD
	pageFrame0    = 0x00
	pageFunction  = 0x0B
	regShutdown   = 0x0A

	onOffBase  = 0x00
	onOffLimit = 0x12 // first register past the on/off block
	pwmBase    = 0x24
	pwmLimit   = 0xB4 // first register past the PWM block

	// Baseline is the brightness left on pixels that hold no committed
	// value, so that turning on an on/off bit is visible before its
	// brightness is committed.
	Baseline = 0xFF

	bitsPerRegister = 8
	padsPerSide     = 4
)

// Layout is the static description of the LED grid.
type Layout struct {
	// DeviceCount is the number of chips on the bus.
	DeviceCount int
	// BaseAddress is the 7-bit I2C address of device 0; device i answers
	// at BaseAddress+i.
	BaseAddress uint16
	// RowsPerDevice and ColsPerDevice give each chip's pixel grid.
	RowsPerDevice int
	ColsPerDevice int
	// FrameWidth and FrameHeight give the pixel size of one step.
	FrameWidth  int
	FrameHeight int
	// RowSpacing is the number of blank pixel rows between rows of steps.
	RowSpacing int
}

// DefaultLayout is four 16x9 chips showing 32 steps in two rows of 16.
var DefaultLayout = Layout{
	DeviceCount:   4,
	BaseAddress:   0x74,
	RowsPerDevice: 9,
	ColsPerDevice: 16,
	FrameWidth:    4,
	FrameHeight:   4,
	RowSpacing:    1,
}

// Location is where a slot's on/off bits live.
type Location struct {
	// Device is the chip index, 0..DeviceCount-1.
	Device int
	// Register is the on/off register holding the slot's first pixel row.
	Register byte
	// RowStride is the register distance between consecutive pixel rows.
	RowStride byte
	// Shift is the bit position of the slot's first column in Register.
	Shift uint
}

// Geometry derives every address the driver needs from a Layout.
type Geometry struct {
	layout          Layout
	framesPerRow    int
	framesPerCol    int
	framesPerDevice int
	registersPerRow int
}

var ErrInvalidLayout = errors.New("matrix: invalid layout")

// NewGeometry validates the layout and precomputes the derived counts.
func NewGeometry(l Layout) (*Geometry, error) {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: "+format, append([]any{ErrInvalidLayout}, args...)...)
	}

	switch {
	case l.DeviceCount <= 0:
		return nil, invalid("device count %d", l.DeviceCount)
	case l.RowsPerDevice <= 0 || l.ColsPerDevice <= 0:
		return nil, invalid("device grid %dx%d", l.ColsPerDevice, l.RowsPerDevice)
	case l.FrameWidth != padsPerSide || l.FrameHeight != padsPerSide:
		return nil, invalid("frame %dx%d, steps are %dx%d pads", l.FrameWidth, l.FrameHeight, padsPerSide, padsPerSide)
	case l.RowSpacing < 0:
		return nil, invalid("row spacing %d", l.RowSpacing)
	case l.ColsPerDevice%bitsPerRegister != 0:
		return nil, invalid("columns per device %d not a multiple of %d", l.ColsPerDevice, bitsPerRegister)
	case bitsPerRegister%l.FrameWidth != 0:
		return nil, invalid("frame width %d does not pack into a register", l.FrameWidth)
	case l.FrameHeight > l.RowsPerDevice:
		return nil, invalid("frame height %d exceeds device rows %d", l.FrameHeight, l.RowsPerDevice)
	case int(l.BaseAddress)+l.DeviceCount-1 > 0x7F:
		return nil, invalid("address range 0x%02x+%d exceeds 7 bits", l.BaseAddress, l.DeviceCount)
	}

	registersPerRow := l.ColsPerDevice / bitsPerRegister
	if onOffBase+l.RowsPerDevice*registersPerRow > onOffLimit {
		return nil, invalid("%d on/off registers exceed the chip", l.RowsPerDevice*registersPerRow)
	}
	if pwmBase+l.RowsPerDevice*l.ColsPerDevice > pwmLimit {
		return nil, invalid("%d brightness registers exceed the chip", l.RowsPerDevice*l.ColsPerDevice)
	}

	return &Geometry{
		layout:          l,
		framesPerRow:    l.ColsPerDevice * l.DeviceCount / l.FrameWidth,
		framesPerCol:    1 + (l.RowsPerDevice-l.FrameHeight)/(l.FrameHeight+l.RowSpacing),
		framesPerDevice: l.ColsPerDevice / l.FrameWidth,
		registersPerRow: registersPerRow,
	}, nil
}

// Layout returns the layout the geometry was built from.
func (g *Geometry) Layout() Layout { return g.layout }

// FramesPerRow is the number of slots across the whole grid.
func (g *Geometry) FramesPerRow() int { return g.framesPerRow }

// FramesPerCol is the number of slot rows that fit on a device.
func (g *Geometry) FramesPerCol() int { return g.framesPerCol }

// TotalFrames is the number of addressable slots.
func (g *Geometry) TotalFrames() int { return g.framesPerRow * g.framesPerCol }

// DeviceAddress returns the bus address of a device.
func (g *Geometry) DeviceAddress(device int) uint16 {
	return g.layout.BaseAddress + uint16(device)
}

// OnOffRegisters is the number of on/off registers used per device.
func (g *Geometry) OnOffRegisters() int {
	return g.layout.RowsPerDevice * g.registersPerRow
}

// BrightnessRegisters is the number of brightness registers used per device.
func (g *Geometry) BrightnessRegisters() int {
	return g.layout.RowsPerDevice * g.layout.ColsPerDevice
}

// origin returns the device and pixel-space top-left corner of a slot.
func (g *Geometry) origin(index int) (device, x, y int) {
	row := index / g.framesPerRow
	col := index % g.framesPerRow
	device = col / g.framesPerDevice
	x = (col % g.framesPerDevice) * g.layout.FrameWidth
	y = row * (g.layout.FrameHeight + g.layout.RowSpacing)
	return device, x, y
}

func (g *Geometry) inRange(index int) bool {
	return index >= 0 && index < g.TotalFrames()
}

// Locate returns where a slot's on/off bits live. ok is false when index
// is outside the physical grid.
func (g *Geometry) Locate(index int) (loc Location, ok bool) {
	if !g.inRange(index) {
		return Location{}, false
	}
	device, x, y := g.origin(index)
	return Location{
		Device:    device,
		Register:  byte(onOffBase + y*g.registersPerRow + x/bitsPerRegister),
		RowStride: byte(g.registersPerRow),
		Shift:     uint(x % bitsPerRegister),
	}, true
}

// BrightnessAddress returns the brightness register of one pad of a slot.
// ok is false when the slot or pad position is out of range.
func (g *Geometry) BrightnessAddress(index, padRow, padCol int) (reg byte, ok bool) {
	if !g.inRange(index) ||
		padRow < 0 || padRow >= g.layout.FrameHeight ||
		padCol < 0 || padCol >= g.layout.FrameWidth {
		return 0, false
	}
	_, x, y := g.origin(index)
	return byte(pwmBase + g.layout.ColsPerDevice*(y+padRow) + x + padCol), true
}

// Origin returns the device and the device-local pixel of a slot's top-left
// pad.
func (g *Geometry) Origin(index int) (device, x, y int, ok bool) {
	if !g.inRange(index) {
		return 0, 0, 0, false
	}
	device, x, y = g.origin(index)
	return device, x, y, true
}

// Device returns the device index showing a slot.
func (g *Geometry) Device(index int) (int, bool) {
	if !g.inRange(index) {
		return 0, false
	}
	device, _, _ := g.origin(index)
	return device, true
}
