package windows

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeCode(t *testing.T) {
	tcs := []struct {
		code uint32
		want ControlCode
		str  string
	}{
		{0x222003, ControlCode{DeviceType: 0x22, Function: 0x800, Method: MethodNeither, Access: FileAnyAccess},
			"CTL_CODE(FILE_DEVICE_UNKNOWN, 0x800, METHOD_NEITHER, FILE_ANY_ACCESS)"},
		{0x10000, ControlCode{DeviceType: 0x1, Function: 0x0, Method: MethodBuffered, Access: FileAnyAccess},
			"CTL_CODE(FILE_DEVICE_BEEP, 0x0, METHOD_BUFFERED, FILE_ANY_ACCESS)"},
		{0x9C40E008, ControlCode{DeviceType: 0x9C40, Function: 0x802, Method: MethodBuffered, Access: FileReadAccess | FileWriteAccess},
			"CTL_CODE(0x9C40, 0x802, METHOD_BUFFERED, FILE_READ_ACCESS|FILE_WRITE_ACCESS)"},
	}

	for _, tc := range tcs {
		t.Run(tc.str, func(t *testing.T) {
			got := DecodeCode(tc.code)
			require.Equal(t, tc.want, got)
			require.Equal(t, tc.code, got.Code())
			require.Equal(t, tc.str, got.String())
		})
	}
}

func TestCtlCode(t *testing.T) {
	require.Equal(t, uint32(0x222003), CtlCode(0x22, 0x800, MethodNeither, FileAnyAccess))
	require.Equal(t, uint32(0x9C40E008), CtlCode(40000, 0x802, MethodBuffered, FileReadAccess|FileWriteAccess))
}
