//go:build windows

package windows

import (
	"errors"
	"fmt"

	winsys "golang.org/x/sys/windows"
)

type hostDevice struct{}

type hostHandle struct {
	handle     winsys.Handle
	overlapped bool
}

type overlappedRequest struct {
	handle winsys.Handle
	ov     *winsys.Overlapped

	// The buffers are referenced until completion so the kernel never
	// writes to freed memory.
	input  []byte
	output []byte
}

// Open implements Device.
func (hostDevice) Open(path string, overlapped bool) (Handle, error) {
	name, err := winsys.UTF16PtrFromString(path)
	if err != nil {
		return nil, fmt.Errorf("Invalid device path %q: %w", path, err)
	}

	attrs := uint32(winsys.FILE_ATTRIBUTE_NORMAL)
	if overlapped {
		attrs |= winsys.FILE_FLAG_OVERLAPPED
	}

	h, err := winsys.CreateFile(name,
		winsys.GENERIC_READ|winsys.GENERIC_WRITE,
		0,
		nil,
		winsys.OPEN_EXISTING,
		attrs,
		0)
	if err != nil {
		return nil, err
	}

	return &hostHandle{handle: h, overlapped: overlapped}, nil
}

// Control implements Handle.
func (h *hostHandle) Control(code uint32, input []byte, output []byte) (Pending, error) {
	var inPtr, outPtr *byte

	if len(input) > 0 {
		inPtr = &input[0]
	}

	if len(output) > 0 {
		outPtr = &output[0]
	}

	if !h.overlapped {
		var returned uint32

		err := winsys.DeviceIoControl(h.handle, code, inPtr, uint32(len(input)), outPtr, uint32(len(output)), &returned, nil)
		if err != nil {
			return nil, err
		}

		return Completed(returned), nil
	}

	event, err := winsys.CreateEvent(nil, 1, 0, nil)
	if err != nil {
		return nil, fmt.Errorf("Failed to create completion event: %w", err)
	}

	req := &overlappedRequest{
		handle: h.handle,
		ov:     &winsys.Overlapped{HEvent: event},
		input:  input,
		output: output,
	}

	err = winsys.DeviceIoControl(h.handle, code, inPtr, uint32(len(input)), outPtr, uint32(len(output)), nil, req.ov)
	if err != nil && !errors.Is(err, winsys.ERROR_IO_PENDING) {
		_ = winsys.CloseHandle(event)
		return nil, err
	}

	return req, nil
}

// Close implements Handle.
func (h *hostHandle) Close() error {
	return winsys.CloseHandle(h.handle)
}

// Wait implements Pending.
func (r *overlappedRequest) Wait() (uint32, error) {
	defer func() { _ = winsys.CloseHandle(r.ov.HEvent) }()

	var returned uint32

	err := winsys.GetOverlappedResult(r.handle, r.ov, &returned, true)
	if err != nil {
		return 0, err
	}

	return returned, nil
}
