package bus

import (
	"fmt"

	"periph.io/x/conn/v3/physic"

	"sequins/internal/matrix"
)

const (
	KindI2C = "i2c"
	KindSim = "sim"
)

// Port is a register port the application can close on shutdown.
type Port interface {
	matrix.RegisterPort
	String() string
	Close() error
}

// SpeedKHz converts a bus clock given in kHz.
func SpeedKHz(khz int) physic.Frequency {
	return physic.Frequency(khz) * physic.KiloHertz
}

// OpenPort opens the port of the given kind. A sim port gets one device
// per address of the layout. Failing to open the I2C bus is returned to the
// caller; there is no silent fallback to the simulation.
func OpenPort(kind, name string, speed physic.Frequency, layout matrix.Layout) (Port, error) {
	switch kind {
	case KindSim:
		return NewSim(layout.ColsPerDevice, SimAddrs(layout.BaseAddress, layout.DeviceCount)...), nil
	case KindI2C, "":
		return Open(name, speed)
	default:
		return nil, fmt.Errorf("bus: unknown driver %q", kind)
	}
}
