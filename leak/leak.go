package leak

import (
	"encoding/binary"
	"fmt"
)

// KernelThreshold is the lowest address presumed to belong to kernel space.
const KernelThreshold uint64 = 0xFFFF800000000000

const (
	pointerSize = 8

	// A miss only advances by two bytes so that misaligned pointers are still
	// caught. A hit advances by a full pointer so the same value isn't
	// reported again at every sub-offset.
	missStride = 2
)

// A Finding is a pointer-sized value in the kernel range found at Offset.
type Finding struct {
	Offset int
	Value  uint64
}

func (f Finding) String() string {
	return fmt.Sprintf("0x%X: 0x%016X", f.Offset, f.Value)
}

// Scan returns every probable kernel pointer in buf. The result is never nil.
func Scan(buf []byte) []Finding {
	findings := []Finding{}

	for off := 0; off+pointerSize <= len(buf); {
		value := binary.NativeEndian.Uint64(buf[off : off+pointerSize])
		if value >= KernelThreshold {
			findings = append(findings, Finding{Offset: off, Value: value})
			off += pointerSize

			continue
		}

		off += missStride
	}

	return findings
}
