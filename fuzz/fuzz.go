package fuzz

import (
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ioctiller/ioctiller/dispatch"
	"github.com/ioctiller/ioctiller/shared"
)

// ErrInvalidWorkerCount is returned when fuzzing with zero workers.
var ErrInvalidWorkerCount = errors.New("Worker count must be at least 1")

// ErrNoDispatchers is returned when fuzzing an empty list of dispatchers.
var ErrNoDispatchers = errors.New("No dispatchers to run")

// WorkerError reports the failure of a single worker.
type WorkerError struct {
	Worker int
	Panic  bool
	Err    error
}

func (e *WorkerError) Error() string {
	if e.Panic {
		return fmt.Sprintf("Worker %d panicked: %v", e.Worker, e.Err)
	}

	return fmt.Sprintf("Worker %d failed: %v", e.Worker, e.Err)
}

func (e *WorkerError) Unwrap() error {
	return e.Err
}

// A Runner runs dispatchers, once or across many concurrent workers.
type Runner struct {
	Logger logrus.FieldLogger

	// Attempts is the number of times a worker calls Dispatch before it gives
	// up. Zero means a single attempt.
	Attempts uint
}

func (r Runner) logger() logrus.FieldLogger {
	if r.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		return l
	}

	return r.Logger
}

// Send dispatches d once on the calling goroutine.
func (r Runner) Send(d dispatch.Dispatcher) error {
	return shared.Retry(d.Dispatch, r.Attempts)
}

// Single runs d on the given number of concurrent workers. Every worker gets
// its own copy of d. All workers run to completion, the failures of all of
// them are returned.
func Single[D dispatch.Dispatcher](r Runner, d D, workers int) error {
	if workers < 1 {
		return ErrInvalidWorkerCount
	}

	dispatchers := make([]D, workers)
	for i := range dispatchers {
		dispatchers[i] = d
	}

	return run(r, dispatchers)
}

// Multiple runs one worker per dispatcher concurrently. All workers run to
// completion, the failures of all of them are returned.
func Multiple[D dispatch.Dispatcher](r Runner, dispatchers []D) error {
	if len(dispatchers) == 0 {
		return ErrNoDispatchers
	}

	return run(r, dispatchers)
}

func run[D dispatch.Dispatcher](r Runner, dispatchers []D) error {
	logger := r.logger()
	logger.WithField("workers", len(dispatchers)).Info("Starting workers")

	// Each worker only ever writes its own slot.
	failures := make([]error, len(dispatchers))

	var g errgroup.Group

	for i, d := range dispatchers {
		i, d := i, d
		g.Go(func() error {
			failures[i] = r.work(i, d)
			return nil
		})
	}

	_ = g.Wait()

	var failed int

	for _, err := range failures {
		if err != nil {
			failed++
			logger.WithField("worker", err.(*WorkerError).Worker).Error(err)
		}
	}

	logger.WithFields(logrus.Fields{
		"workers": len(dispatchers),
		"failed":  failed,
	}).Info("Workers finished")

	return errors.Join(failures...)
}

// work runs a single worker. A panic is turned into a WorkerError.
func (r Runner) work(worker int, d dispatch.Dispatcher) (err error) {
	defer func() {
		p := recover()
		if p == nil {
			return
		}

		perr, ok := p.(error)
		if !ok {
			perr = fmt.Errorf("%v", p)
		}

		err = &WorkerError{Worker: worker, Panic: true, Err: perr}
	}()

	err = shared.Retry(d.Dispatch, r.Attempts)
	if err != nil {
		return &WorkerError{Worker: worker, Err: err}
	}

	return nil
}
