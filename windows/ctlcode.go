package windows

import (
	"fmt"
)

// Transfer methods of a control code.
const (
	MethodBuffered  = 0
	MethodInDirect  = 1
	MethodOutDirect = 2
	MethodNeither   = 3
)

// Required access of a control code.
const (
	FileAnyAccess   = 0
	FileReadAccess  = 1
	FileWriteAccess = 2
)

var methodNames = map[uint32]string{
	MethodBuffered:  "METHOD_BUFFERED",
	MethodInDirect:  "METHOD_IN_DIRECT",
	MethodOutDirect: "METHOD_OUT_DIRECT",
	MethodNeither:   "METHOD_NEITHER",
}

var accessNames = map[uint32]string{
	FileAnyAccess:                    "FILE_ANY_ACCESS",
	FileReadAccess:                   "FILE_READ_ACCESS",
	FileWriteAccess:                  "FILE_WRITE_ACCESS",
	FileReadAccess | FileWriteAccess: "FILE_READ_ACCESS|FILE_WRITE_ACCESS",
}

// DeviceTypes contains the names of common device types.
var DeviceTypes = map[uint32]string{
	0x01: "FILE_DEVICE_BEEP",
	0x07: "FILE_DEVICE_DISK",
	0x09: "FILE_DEVICE_FILE_SYSTEM",
	0x12: "FILE_DEVICE_NETWORK",
	0x15: "FILE_DEVICE_NULL",
	0x22: "FILE_DEVICE_UNKNOWN",
	0x2D: "FILE_DEVICE_MASS_STORAGE",
	0x32: "FILE_DEVICE_KS",
	0x39: "FILE_DEVICE_KSEC",
}

// A ControlCode is a decoded IOCTL code.
type ControlCode struct {
	DeviceType uint32
	Function   uint32
	Method     uint32
	Access     uint32
}

// CtlCode builds a control code the way the CTL_CODE macro does.
func CtlCode(deviceType, function, method, access uint32) uint32 {
	return (deviceType << 16) | (access << 14) | (function << 2) | method
}

// DecodeCode splits a control code into its parts.
func DecodeCode(code uint32) ControlCode {
	return ControlCode{
		DeviceType: code >> 16,
		Access:     (code >> 14) & 0x3,
		Function:   (code >> 2) & 0xFFF,
		Method:     code & 0x3,
	}
}

// Code re-encodes the control code.
func (c ControlCode) Code() uint32 {
	return CtlCode(c.DeviceType, c.Function, c.Method, c.Access)
}

func (c ControlCode) String() string {
	deviceType, ok := DeviceTypes[c.DeviceType]
	if !ok {
		deviceType = fmt.Sprintf("0x%X", c.DeviceType)
	}

	return fmt.Sprintf("CTL_CODE(%s, 0x%X, %s, %s)", deviceType, c.Function, methodNames[c.Method], accessNames[c.Access])
}
