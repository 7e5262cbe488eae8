package windows

import (
	"errors"
)

// ErrUnsupported is returned when opening a device on a host without the
// Windows device namespace.
var ErrUnsupported = errors.New("Device I/O is only supported on Windows")

// A Device opens handles to device objects.
type Device interface {
	// Open opens the device at path. If overlapped is set, requests issued on
	// the handle complete asynchronously.
	Open(path string, overlapped bool) (Handle, error)
}

// A Handle is an open device handle. It must be closed by the caller.
type Handle interface {
	// Control issues a control request. The output slice must not be read
	// before the returned Pending has completed.
	Control(code uint32, input []byte, output []byte) (Pending, error)

	Close() error
}

// A Pending is an issued control request.
type Pending interface {
	// Wait blocks until the request completes and returns the number of bytes
	// written to the output buffer.
	Wait() (uint32, error)
}

// Completed is a Pending for a request which completed synchronously.
type Completed uint32

// Wait implements Pending.
func (c Completed) Wait() (uint32, error) {
	return uint32(c), nil
}

// NewDevice returns the Device of the host.
func NewDevice() Device {
	return hostDevice{}
}
