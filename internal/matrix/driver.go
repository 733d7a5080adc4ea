// Package matrix drives a grid of IS31FL3731 style LED matrix chips as a
// frame buffer of musical steps.
//
// Each step (slot) is a 4x4 block of pads. Showing a step is split in two
// phases: DisplayFrame flips the on/off bits right away, so a struck pad
// lights at the baseline brightness, and CommitPrevious later writes the
// gamma-corrected brightness of every lit pad. A register cache keeps bus
// traffic down to the registers that actually change.
//
// A Driver is not safe for concurrent use; callers serialize access.
package matrix

import (
	"sequins/internal/model"
)

// RegisterPort is the bus the chips hang off. Probe reports whether a
// device acknowledges its address. WriteRegister writes one register of the
// currently selected page; relax hints that the caller does not need the
// transaction acknowledged before issuing the next one.
type RegisterPort interface {
	Probe(addr uint16) bool
	WriteRegister(addr uint16, reg, value byte, relax bool) error
}

// Stats is a snapshot of driver counters.
type Stats struct {
	// Writes is the number of register writes the bus accepted.
	Writes uint64 `json:"writes"`
	// Failures is the number of register writes the bus rejected.
	Failures uint64 `json:"failures"`
	// Pending reports whether a displayed step awaits its brightness commit.
	Pending bool `json:"pending"`
	// Dirty is the number of brightness registers away from Baseline.
	Dirty int `json:"dirty"`
}

type pendingCommit struct {
	index int
	frame model.Frame
}

// Driver is the frame buffer over all devices.
type Driver struct {
	port  RegisterPort
	geo   *Geometry
	gamma *GammaTable

	cache *registerCache
	dirty *dirtySet

	ready   bool
	pending *pendingCommit

	writes   uint64
	failures uint64
}

// New returns an uninitialized driver. A nil gamma selects DefaultGamma.
func New(port RegisterPort, geo *Geometry, gamma *GammaTable) *Driver {
	if gamma == nil {
		gamma = DefaultGamma
	}
	n := geo.Layout().DeviceCount
	return &Driver{
		port:  port,
		geo:   geo,
		gamma: gamma,
		cache: newRegisterCache(n, geo.OnOffRegisters()),
		dirty: newDirtySet(n),
	}
}

// Geometry returns the slot geometry the driver renders into.
func (d *Driver) Geometry() *Geometry { return d.geo }

// Stats returns the current counters.
func (d *Driver) Stats() Stats {
	s := Stats{
		Writes:   d.writes,
		Failures: d.failures,
		Pending:  d.pending != nil,
	}
	for dev := 0; dev < d.geo.Layout().DeviceCount; dev++ {
		s.Dirty += d.dirty.len(dev)
	}
	return s
}

// Initialize probes every device and brings it to the baseline state: all
// pixels off, all brightness registers at Baseline, out of shutdown, frame
// page 0 selected. Failing to find a device is fatal for the display and
// returns a *DeviceNotFoundError.
func (d *Driver) Initialize() error {
	d.ready = false
	d.pending = nil

	layout := d.geo.Layout()
	for dev := 0; dev < layout.DeviceCount; dev++ {
		if addr := d.geo.DeviceAddress(dev); !d.port.Probe(addr) {
			return &DeviceNotFoundError{Device: dev, Addr: addr}
		}
	}

	d.cache.reset()
	d.dirty.reset()

	for dev := 0; dev < layout.DeviceCount; dev++ {
		if err := d.initDevice(dev); err != nil {
			return err
		}
	}

	d.ready = true
	return nil
}

func (d *Driver) initDevice(dev int) error {
	if err := d.write(dev, regPageSelect, pageFrame0, false); err != nil {
		return err
	}
	for i := 0; i < d.geo.OnOffRegisters(); i++ {
		if err := d.write(dev, byte(onOffBase+i), 0, false); err != nil {
			return err
		}
	}
	for i := 0; i < d.geo.BrightnessRegisters(); i++ {
		if err := d.write(dev, byte(pwmBase+i), Baseline, false); err != nil {
			return err
		}
	}
	if err := d.write(dev, regPageSelect, pageFunction, false); err != nil {
		return err
	}
	if err := d.write(dev, regShutdown, 1, false); err != nil {
		return err
	}
	// Frame page 0 stays selected from here on.
	return d.write(dev, regPageSelect, pageFrame0, true)
}

// DisplayFrame lights the on/off bits of a step and makes it the pending
// commit, replacing any step still waiting for its brightness. Indexes
// outside the grid are ignored.
func (d *Driver) DisplayFrame(index int, frame model.Frame) error {
	if !d.ready {
		return ErrNotInitialized
	}
	loc, ok := d.geo.Locate(index)
	if !ok {
		return nil
	}

	layout := d.geo.Layout()
	for row := 0; row < layout.FrameHeight; row++ {
		reg := loc.Register + byte(row)*loc.RowStride
		cur := d.cache.get(loc.Device, reg)
		v := cur
		for col := 0; col < layout.FrameWidth; col++ {
			bit := byte(1<<col) << loc.Shift
			if frame.Lit(row*layout.FrameWidth + col) {
				v |= bit
			} else {
				v &^= bit
			}
		}
		if v == cur {
			continue
		}
		if err := d.write(loc.Device, reg, v, true); err != nil {
			return err
		}
		d.cache.set(loc.Device, reg, v)
	}

	// Latest wins: an uncommitted earlier step loses its brightness write.
	d.pending = &pendingCommit{index: index, frame: frame}
	return nil
}

// CommitPrevious writes the gamma-corrected brightness of every lit pad of
// the pending step. Pads of that slot left unlit but still holding an older
// brightness go back to Baseline. It is a no-op when nothing is pending.
// On error the step stays pending, so calling again retries it.
func (d *Driver) CommitPrevious() error {
	if !d.ready {
		return ErrNotInitialized
	}
	if d.pending == nil {
		return nil
	}

	p := d.pending
	dev, _ := d.geo.Device(p.index)
	layout := d.geo.Layout()
	for pad := 0; pad < layout.FrameWidth*layout.FrameHeight; pad++ {
		reg, _ := d.geo.BrightnessAddress(p.index, pad/layout.FrameWidth, pad%layout.FrameWidth)
		switch {
		case p.frame.Lit(pad):
			if err := d.write(dev, reg, d.gamma.Duty(p.frame[pad]), false); err != nil {
				return err
			}
			d.dirty.record(dev, reg)
		case d.dirty.has(dev, reg):
			if err := d.write(dev, reg, Baseline, false); err != nil {
				return err
			}
			d.dirty.forget(dev, reg)
		}
	}

	d.pending = nil
	return nil
}

// Clear turns every pixel off and restores the brightness registers that
// were touched since the last clear. Any pending commit is discarded.
func (d *Driver) Clear() error {
	if !d.ready {
		return ErrNotInitialized
	}
	d.pending = nil

	for dev := 0; dev < d.geo.Layout().DeviceCount; dev++ {
		for i := 0; i < d.geo.OnOffRegisters(); i++ {
			reg := byte(onOffBase + i)
			if err := d.write(dev, reg, 0, false); err != nil {
				return err
			}
			d.cache.set(dev, reg, 0)
		}

		regs := d.dirty.drain(dev)
		for i, reg := range regs {
			if err := d.write(dev, reg, Baseline, false); err != nil {
				for _, left := range regs[i:] {
					d.dirty.record(dev, left)
				}
				return err
			}
		}
	}
	return nil
}

// Halt clears the display and puts every device into software shutdown.
// The driver must be initialized again before further use.
func (d *Driver) Halt() error {
	if !d.ready {
		return nil
	}
	if err := d.Clear(); err != nil {
		return err
	}
	for dev := 0; dev < d.geo.Layout().DeviceCount; dev++ {
		if err := d.write(dev, regPageSelect, pageFunction, false); err != nil {
			return err
		}
		if err := d.write(dev, regShutdown, 0, false); err != nil {
			return err
		}
	}
	d.ready = false
	return nil
}

func (d *Driver) write(dev int, reg, value byte, relax bool) error {
	addr := d.geo.DeviceAddress(dev)
	if err := d.port.WriteRegister(addr, reg, value, relax); err != nil {
		d.failures++
		return &WriteError{Device: dev, Addr: addr, Register: reg, Value: value, Err: err}
	}
	d.writes++
	return nil
}
