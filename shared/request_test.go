package shared

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ioctiller/ioctiller/buffer"
)

func TestRequestImmutable(t *testing.T) {
	fields := []buffer.Field{{Offset: 0, Value: buffer.U8(0x41)}}
	req := NewRequest("IOCTL_TEST", 0x222003, 4, 0, false, fields...)

	// Neither the caller's slice nor the returned copy alias the request.
	fields[0].Value = buffer.U8(0x42)
	got := req.Fields()
	got[0].Value = buffer.U8(0x43)

	buf, err := req.BuildInput()
	require.NoError(t, err)
	require.Equal(t, []byte{0x41, 0, 0, 0}, buf)
	require.Equal(t, "IOCTL_TEST:0x222003", req.String())
}

func TestRequestBuildInputOutOfBounds(t *testing.T) {
	req := NewRequest("IOCTL_TEST", 0x10000, 0x60, 0x8, false, buffer.Field{Offset: 0x60, Value: buffer.U32(0x1337C0DE)})

	buf, err := req.BuildInput()
	require.Nil(t, buf)
	require.IsType(t, &buffer.OutOfBoundsError{}, err)
}
