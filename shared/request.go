package shared

import (
	"fmt"
	"slices"

	"github.com/ioctiller/ioctiller/buffer"
)

// A Request describes one control operation. It is immutable once created and
// may be copied and read from multiple goroutines.
type Request struct {
	name       string
	code       uint32
	inputSize  int
	outputSize int
	overlapped bool
	fields     []buffer.Field
}

// NewRequest returns a new Request. The fields are copied.
func NewRequest(name string, code uint32, inputSize int, outputSize int, overlapped bool, fields ...buffer.Field) Request {
	return Request{
		name:       name,
		code:       code,
		inputSize:  inputSize,
		outputSize: outputSize,
		overlapped: overlapped,
		fields:     slices.Clone(fields),
	}
}

// Name returns the display name.
func (r Request) Name() string { return r.name }

// Code returns the control code.
func (r Request) Code() uint32 { return r.code }

// InputSize returns the size of the input buffer in bytes.
func (r Request) InputSize() int { return r.inputSize }

// OutputSize returns the size of the output buffer in bytes.
func (r Request) OutputSize() int { return r.outputSize }

// Overlapped reports whether the device should be opened for asynchronous I/O.
func (r Request) Overlapped() bool { return r.overlapped }

// Fields returns a copy of the input buffer fields.
func (r Request) Fields() []buffer.Field { return slices.Clone(r.fields) }

// BuildInput constructs the input buffer.
func (r Request) BuildInput() ([]byte, error) {
	return buffer.Build(r.inputSize, r.fields)
}

func (r Request) String() string {
	return fmt.Sprintf("%s:0x%X", r.name, r.code)
}
