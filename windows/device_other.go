//go:build !windows

package windows

type hostDevice struct{}

// Open implements Device.
func (hostDevice) Open(path string, overlapped bool) (Handle, error) {
	return nil, ErrUnsupported
}
