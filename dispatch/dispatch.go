package dispatch

import (
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/ioctiller/ioctiller/buffer"
	"github.com/ioctiller/ioctiller/shared"
	"github.com/ioctiller/ioctiller/stats"
	"github.com/ioctiller/ioctiller/windows"
)

// ErrPrematureRead is returned when a response is read before its request
// completed.
var ErrPrematureRead = errors.New("Response read before the request completed")

// A Dispatcher sends a request to a destination. Dispatch may be called any
// number of times, every call is an independent interaction.
type Dispatcher interface {
	Dispatch() error
}

// DeviceUnavailableError is returned when the device cannot be opened.
type DeviceUnavailableError struct {
	Device string
	Err    error
}

func (e *DeviceUnavailableError) Error() string {
	return fmt.Sprintf("Failed to open device %q: %v", e.Device, e.Err)
}

func (e *DeviceUnavailableError) Unwrap() error {
	return e.Err
}

// RequestFailedError is returned when the control request fails. Err holds
// the status reported by the OS.
type RequestFailedError struct {
	Request string
	Code    uint32
	Err     error
}

func (e *RequestFailedError) Error() string {
	return fmt.Sprintf("Request %s:0x%X failed: %v", e.Request, e.Code, e.Err)
}

func (e *RequestFailedError) Unwrap() error {
	return e.Err
}

// A Response is the output buffer of a request.
type Response struct {
	output      []byte
	transferred uint32
	completed   bool
}

// Len returns the capacity of the output buffer.
func (r *Response) Len() int {
	return len(r.output)
}

// Output returns the whole output buffer.
func (r *Response) Output() ([]byte, error) {
	if !r.completed {
		return nil, ErrPrematureRead
	}

	return r.output, nil
}

// Transferred returns the number of bytes the device reported as written.
// This may be zero even when the output buffer is not.
func (r *Response) Transferred() (uint32, error) {
	if !r.completed {
		return 0, ErrPrematureRead
	}

	return r.transferred, nil
}

// Outcome classifies a dispatch error for metrics.
func Outcome(err error) string {
	var (
		oob     *buffer.OutOfBoundsError
		device  *DeviceUnavailableError
		request *RequestFailedError
	)

	switch {
	case err == nil:
		return stats.OutcomeOK
	case errors.As(err, &oob):
		return stats.OutcomeBuffer
	case errors.As(err, &device):
		return stats.OutcomeDevice
	case errors.As(err, &request):
		return stats.OutcomeRequest
	default:
		return stats.OutcomeError
	}
}

// Exchange builds the input buffer of req, opens path, issues the request
// and closes the handle again. The handle is closed on every path, a close
// failure is reported alongside any other error.
func Exchange(device windows.Device, path string, req shared.Request) (resp *Response, err error) {
	input, err := req.BuildInput()
	if err != nil {
		return nil, fmt.Errorf("Failed to build input buffer of %q: %w", req.Name(), err)
	}

	handle, err := device.Open(path, req.Overlapped())
	if err != nil {
		return nil, &DeviceUnavailableError{Device: path, Err: err}
	}

	defer func() {
		closeErr := handle.Close()
		if closeErr != nil {
			err = errors.Join(err, fmt.Errorf("Failed to close device %q: %w", path, closeErr))
		}
	}()

	resp = &Response{output: make([]byte, req.OutputSize())}

	pending, err := handle.Control(req.Code(), input, resp.output)
	if err != nil {
		return nil, &RequestFailedError{Request: req.Name(), Code: req.Code(), Err: err}
	}

	// The output buffer is only valid once the request has completed.
	transferred, err := pending.Wait()
	if err != nil {
		return nil, &RequestFailedError{Request: req.Name(), Code: req.Code(), Err: err}
	}

	resp.transferred = transferred
	resp.completed = true

	return resp, nil
}

// A Target is a request bound to a device.
type Target struct {
	Device     windows.Device
	DevicePath string
	Request    shared.Request
	Logger     logrus.FieldLogger
	Stats      *stats.Set
}

func (t Target) logger() *logrus.Entry {
	logger := t.Logger
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}

	return logger.WithFields(logrus.Fields{
		"request": t.Request.Name(),
		"code":    fmt.Sprintf("0x%X", t.Request.Code()),
		"device":  t.DevicePath,
	})
}

// exchange runs a cycle and records it.
func (t Target) exchange() (*Response, error) {
	resp, err := Exchange(t.Device, t.DevicePath, t.Request)

	var transferred uint32
	if resp != nil {
		transferred, _ = resp.Transferred()
	}

	t.Stats.ObserveDispatch(t.Request.Name(), Outcome(err), transferred)

	return resp, err
}
