package buffer

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/text/encoding/unicode"
)

// A Value is the typed content of a Field.
type Value interface {
	// Size returns the number of bytes the value occupies once encoded.
	Size() int

	// put writes the encoded value to dst, which is exactly Size() bytes long.
	put(dst []byte)
}

// U8 is an 8-bit unsigned integer.
type U8 uint8

// U16 is a 16-bit unsigned integer, written little-endian.
type U16 uint16

// U32 is a 32-bit unsigned integer, written little-endian.
type U32 uint32

// U64 is a 64-bit unsigned integer, written little-endian.
type U64 uint64

// String8 is an 8-bit-per-character string. No terminator is added.
type String8 string

// String16 is a string written as UTF-16LE code units. No terminator is added.
type String16 string

// Fill replicates a single byte Length times.
type Fill struct {
	Value  byte
	Length int
}

func (U8) Size() int  { return 1 }
func (U16) Size() int { return 2 }
func (U32) Size() int { return 4 }
func (U64) Size() int { return 8 }

func (v U8) put(dst []byte)  { dst[0] = byte(v) }
func (v U16) put(dst []byte) { binary.LittleEndian.PutUint16(dst, uint16(v)) }
func (v U32) put(dst []byte) { binary.LittleEndian.PutUint32(dst, uint32(v)) }
func (v U64) put(dst []byte) { binary.LittleEndian.PutUint64(dst, uint64(v)) }

func (v String8) Size() int { return len(v) }

func (v String8) put(dst []byte) { copy(dst, v) }

func (v String16) Size() int { return len(v.encode()) }

func (v String16) put(dst []byte) { copy(dst, v.encode()) }

func (v String16) encode() []byte {
	enc := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder()

	out, err := enc.Bytes([]byte(v))
	if err != nil {
		panic(fmt.Sprintf("Failed to encode %q as UTF-16: %v", string(v), err))
	}

	return out
}

func (v Fill) Size() int { return v.Length }

func (v Fill) put(dst []byte) {
	for i := range dst {
		dst[i] = v.Value
	}
}

// A Field places a Value at a byte offset of the input buffer.
type Field struct {
	Offset int
	Value  Value
}

// String implements fmt.Stringer.
func (f Field) String() string {
	return fmt.Sprintf("%T@0x%X", f.Value, f.Offset)
}

// OutOfBoundsError is returned when a Field does not fit inside its buffer.
type OutOfBoundsError struct {
	Offset     int
	EntrySize  int
	BufferSize int
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("Input buffer entry at offset 0x%X with size 0x%X is out of bounds for buffer of size 0x%X", e.Offset, e.EntrySize, e.BufferSize)
}

// CheckBounds returns an *OutOfBoundsError unless offset+size fits in bufferSize.
func CheckBounds(offset, size, bufferSize int) error {
	if offset < 0 || size < 0 || bufferSize < 0 || offset > bufferSize || size > bufferSize-offset {
		return &OutOfBoundsError{Offset: offset, EntrySize: size, BufferSize: bufferSize}
	}

	return nil
}

// Build returns a zeroed buffer of the given size with every field written at
// its offset, in order. Later fields overwrite earlier ones where they overlap.
// If any field is out of bounds, no buffer is returned.
func Build(size int, fields []Field) ([]byte, error) {
	if size < 0 {
		return nil, fmt.Errorf("Invalid buffer size %d", size)
	}

	buf := make([]byte, size)

	for _, field := range fields {
		if field.Value == nil {
			return nil, fmt.Errorf("Input buffer entry at offset 0x%X has no value", field.Offset)
		}

		n := field.Value.Size()

		err := CheckBounds(field.Offset, n, size)
		if err != nil {
			return nil, err
		}

		field.Value.put(buf[field.Offset : field.Offset+n])
	}

	return buf, nil
}
