// Package bus provides register ports for the LED matrix driver: a real
// I2C bus through periph.io and an in-memory simulation for development
// machines without the display attached.
package bus

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
	// FT232H USB adapters register their I2C bus through this driver.
	_ "periph.io/x/host/v3/ftdi"
)

// DefaultSpeed is the bus clock used by the displays.
const DefaultSpeed = 400 * physic.KiloHertz

var ErrClosed = errors.New("bus: port closed")

// I2CPort writes chip registers over a periph.io I2C bus.
type I2CPort struct {
	mu  sync.Mutex
	bus i2c.Bus
	// closer is nil when the bus is owned by the caller.
	closer interface{ Close() error }
	name   string
}

// Open initializes periph.io host drivers, opens the named I2C bus ("" for
// the first one available, e.g. /dev/i2c-1 or an FT232H adapter) and sets
// its clock.
func Open(name string, speed physic.Frequency) (*I2CPort, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("bus: periph host init failed: %w", err)
	}

	b, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("bus: failed to open I2C bus %q: %w", name, err)
	}

	if speed > 0 {
		if err := b.SetSpeed(speed); err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("bus: failed to set I2C speed %s: %w", speed, err)
		}
	}

	return &I2CPort{bus: b, closer: b, name: b.String()}, nil
}

// NewI2CPort wraps an already opened bus. Closing the port leaves the bus
// open.
func NewI2CPort(b i2c.Bus) *I2CPort {
	return &I2CPort{bus: b, name: b.String()}
}

// Probe reports whether a device acknowledges a one byte read.
func (p *I2CPort) Probe(addr uint16) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bus == nil {
		return false
	}
	buf := []byte{0}
	return p.bus.Tx(addr, nil, buf) == nil
}

// WriteRegister writes one register. periph.io transactions always run to
// completion, so relax has no effect on this port.
func (p *I2CPort) WriteRegister(addr uint16, reg, value byte, relax bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bus == nil {
		return ErrClosed
	}
	return p.bus.Tx(addr, []byte{reg, value}, nil)
}

// Scan probes each address and returns the ones that answered.
func (p *I2CPort) Scan(addrs []uint16) []uint16 {
	var found []uint16
	for _, addr := range addrs {
		if p.Probe(addr) {
			found = append(found, addr)
		}
	}
	return found
}

// String returns the bus name.
func (p *I2CPort) String() string {
	return p.name
}

// Close releases the bus if the port opened it.
func (p *I2CPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bus == nil {
		return nil
	}
	p.bus = nil
	if p.closer != nil {
		return p.closer.Close()
	}
	return nil
}
