package matrix

import (
	"errors"
	"fmt"
)

var (
	// ErrDeviceNotFound means a chip did not acknowledge its probe during
	// Initialize. The driver cannot run without every configured device.
	ErrDeviceNotFound = errors.New("matrix: device not found")
	// ErrWriteFailed means a single register write was rejected by the bus.
	// The cache is left untouched, so repeating the call retries the write.
	ErrWriteFailed = errors.New("matrix: register write failed")
	// ErrNotInitialized is returned by every operation issued before a
	// successful Initialize.
	ErrNotInitialized = errors.New("matrix: driver not initialized")
)

// DeviceNotFoundError reports the address that failed to answer a probe.
type DeviceNotFoundError struct {
	Device int
	Addr   uint16
}

func (e *DeviceNotFoundError) Error() string {
	return fmt.Sprintf("matrix: device %d not found at address 0x%02x", e.Device, e.Addr)
}

func (e *DeviceNotFoundError) Unwrap() error { return ErrDeviceNotFound }

// WriteError carries the device and register of a failed write along with
// the transport error.
type WriteError struct {
	Device   int
	Addr     uint16
	Register byte
	Value    byte
	Err      error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("matrix: write 0x%02x to register 0x%02x of device %d (0x%02x): %v",
		e.Value, e.Register, e.Device, e.Addr, e.Err)
}

func (e *WriteError) Unwrap() []error { return []error{ErrWriteFailed, e.Err} }
