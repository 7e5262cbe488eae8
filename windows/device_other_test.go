//go:build !windows

package windows

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenUnsupported(t *testing.T) {
	handle, err := NewDevice().Open(`\\.\GLOBALROOT\Device\Beep`, false)
	require.ErrorIs(t, err, ErrUnsupported)
	require.Nil(t, handle)
}

func TestCompleted(t *testing.T) {
	n, err := Completed(0x10).Wait()
	require.NoError(t, err)
	require.Equal(t, uint32(0x10), n)
}
