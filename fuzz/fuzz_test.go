package fuzz

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ioctiller/ioctiller/buffer"
	"github.com/ioctiller/ioctiller/dispatch"
	"github.com/ioctiller/ioctiller/shared"
	"github.com/ioctiller/ioctiller/windows"
)

// testDispatcher checks the input buffer instead of sending it anywhere.
type testDispatcher struct {
	t       *testing.T
	request shared.Request
	calls   *atomic.Int32
	err     error
}

func (d testDispatcher) Dispatch() error {
	d.calls.Add(1)

	input, err := d.request.BuildInput()
	if err != nil {
		return err
	}

	if len(input) != d.request.InputSize() {
		d.t.Errorf("input buffer has size %d, expected %d", len(input), d.request.InputSize())
	}

	return d.err
}

type panicDispatcher struct{}

func (panicDispatcher) Dispatch() error {
	panic("index out of range")
}

// barrierDispatcher only returns once n dispatchers are running at once.
type barrierDispatcher struct {
	arrived *sync.WaitGroup
	release chan struct{}
}

func (d barrierDispatcher) Dispatch() error {
	d.arrived.Done()

	select {
	case <-d.release:
		return nil
	case <-time.After(5 * time.Second):
		return errors.New("workers were not running concurrently")
	}
}

func testRequest() shared.Request {
	return shared.NewRequest("IOCTL_TEST", 0x10000, 0x70, 0x8, false,
		buffer.Field{Offset: 0x0, Value: buffer.U32(0x1337C0DE)},
		buffer.Field{Offset: 0x40, Value: buffer.Fill{Value: 0x24, Length: 0x30}},
	)
}

func TestSend(t *testing.T) {
	calls := &atomic.Int32{}

	err := Runner{}.Send(testDispatcher{t: t, request: testRequest(), calls: calls})
	require.NoError(t, err)
	require.Equal(t, int32(1), calls.Load())
}

func TestSingle(t *testing.T) {
	calls := &atomic.Int32{}

	err := Single(Runner{}, testDispatcher{t: t, request: testRequest(), calls: calls}, 16)
	require.NoError(t, err)
	require.Equal(t, int32(16), calls.Load())
}

func TestSingleZeroWorkers(t *testing.T) {
	calls := &atomic.Int32{}

	err := Single(Runner{}, testDispatcher{t: t, request: testRequest(), calls: calls}, 0)
	require.ErrorIs(t, err, ErrInvalidWorkerCount)
	require.Zero(t, calls.Load())

	err = Single(Runner{}, testDispatcher{t: t, request: testRequest(), calls: calls}, -1)
	require.ErrorIs(t, err, ErrInvalidWorkerCount)
	require.Zero(t, calls.Load())
}

func TestSingleConcurrent(t *testing.T) {
	const workers = 8

	var arrived sync.WaitGroup
	arrived.Add(workers)

	release := make(chan struct{})
	go func() {
		arrived.Wait()
		close(release)
	}()

	err := Single(Runner{}, barrierDispatcher{arrived: &arrived, release: release}, workers)
	require.NoError(t, err)
}

func TestSingleAllFail(t *testing.T) {
	calls := &atomic.Int32{}
	req := shared.NewRequest("IOCTL_OOB", 0x10000, 0x60, 0x8, false, buffer.Field{Offset: 0x60, Value: buffer.U32(1)})

	err := Single(Runner{}, testDispatcher{t: t, request: req, calls: calls}, 4)
	require.Error(t, err)
	require.Equal(t, int32(4), calls.Load())

	var oob *buffer.OutOfBoundsError
	require.True(t, errors.As(err, &oob))
	require.Len(t, err.(interface{ Unwrap() []error }).Unwrap(), 4)
}

func TestMultiple(t *testing.T) {
	calls := &atomic.Int32{}
	failure := errors.New("Access is denied.")

	dispatchers := []testDispatcher{
		{t: t, request: testRequest(), calls: calls},
		{t: t, request: testRequest(), calls: calls, err: failure},
		{t: t, request: testRequest(), calls: calls},
	}

	err := Multiple(Runner{}, dispatchers)
	require.ErrorIs(t, err, failure)

	// The failing worker did not stop its siblings.
	require.Equal(t, int32(3), calls.Load())

	var workerErr *WorkerError
	require.True(t, errors.As(err, &workerErr))
	require.Equal(t, 1, workerErr.Worker)
	require.False(t, workerErr.Panic)
	require.EqualError(t, workerErr, "Worker 1 failed: Access is denied.")
}

func TestMultipleEmpty(t *testing.T) {
	err := Multiple(Runner{}, []testDispatcher{})
	require.ErrorIs(t, err, ErrNoDispatchers)
}

func TestWorkerPanic(t *testing.T) {
	calls := &atomic.Int32{}

	dispatchers := []dispatch.Dispatcher{
		panicDispatcher{},
		testDispatcher{t: t, request: testRequest(), calls: calls},
	}

	err := Multiple(Runner{}, dispatchers)

	var workerErr *WorkerError
	require.True(t, errors.As(err, &workerErr))
	require.Equal(t, 0, workerErr.Worker)
	require.True(t, workerErr.Panic)
	require.Contains(t, workerErr.Error(), "index out of range")
	require.Equal(t, int32(1), calls.Load())
}

// flakyDispatcher fails until it has been called failures+1 times.
type flakyDispatcher struct {
	calls    *atomic.Int32
	failures int32
}

func (d flakyDispatcher) Dispatch() error {
	if d.calls.Add(1) <= d.failures {
		return errors.New("The device is not ready.")
	}

	return nil
}

func TestRetry(t *testing.T) {
	shared.RetryDelay = time.Millisecond

	calls := &atomic.Int32{}
	err := Runner{Attempts: 3}.Send(flakyDispatcher{calls: calls, failures: 2})
	require.NoError(t, err)
	require.Equal(t, int32(3), calls.Load())

	calls = &atomic.Int32{}
	err = Multiple(Runner{Attempts: 2}, []flakyDispatcher{{calls: calls, failures: 5}})
	require.Error(t, err)
	require.Equal(t, int32(2), calls.Load())
}

// countingDevice accepts every request.
type countingDevice struct {
	opened atomic.Int32
	closed atomic.Int32
}

type countingHandle struct {
	dev *countingDevice
}

func (d *countingDevice) Open(path string, overlapped bool) (windows.Handle, error) {
	d.opened.Add(1)
	return countingHandle{dev: d}, nil
}

func (h countingHandle) Control(code uint32, input []byte, output []byte) (windows.Pending, error) {
	return windows.Completed(len(output)), nil
}

func (h countingHandle) Close() error {
	h.dev.closed.Add(1)
	return nil
}

func TestSingleFuzzDispatcher(t *testing.T) {
	dev := &countingDevice{}

	d := dispatch.FuzzDispatcher{Target: dispatch.Target{
		Device:     dev,
		DevicePath: `\\.\GLOBALROOT\Device\Beep`,
		Request:    testRequest(),
	}}

	err := Single(Runner{}, d, 32)
	require.NoError(t, err)
	require.Equal(t, int32(32), dev.opened.Load())
	require.Equal(t, int32(32), dev.closed.Load())
}
