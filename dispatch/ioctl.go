package dispatch

import (
	"encoding/hex"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ioctiller/ioctiller/leak"
)

// IoctlDispatcher sends a single request and reports the whole response.
type IoctlDispatcher struct {
	Target
}

// Dispatch implements Dispatcher.
func (d IoctlDispatcher) Dispatch() error {
	logger := d.logger()
	logger.Info("Sending request")

	resp, err := d.exchange()
	if err != nil {
		return err
	}

	_, err = d.report(logger, resp, logrus.InfoLevel)

	return err
}

// FuzzDispatcher sends a request as one of many concurrent workers. Responses
// are only dumped with debug logging, leaks are always reported.
type FuzzDispatcher struct {
	Target
}

// Dispatch implements Dispatcher.
func (d FuzzDispatcher) Dispatch() error {
	logger := d.logger()
	logger.Debug("Sending request")

	resp, err := d.exchange()
	if err != nil {
		return err
	}

	_, err = d.report(logger, resp, logrus.DebugLevel)

	return err
}

// report logs the response and scans it for leaked kernel addresses.
func (t Target) report(logger *logrus.Entry, resp *Response, level logrus.Level) ([]leak.Finding, error) {
	output, err := resp.Output()
	if err != nil {
		return nil, err
	}

	transferred, err := resp.Transferred()
	if err != nil {
		return nil, err
	}

	logger.WithField("transferred", transferred).Log(level, "Request completed")

	if len(output) > 0 {
		logger.Logf(level, "Response:\n%s", hex.Dump(output))
	}

	findings := leak.Scan(output)
	t.Stats.ObserveLeaks(t.Request.Name(), len(findings))

	for _, f := range findings {
		logger.WithFields(logrus.Fields{
			"offset": fmt.Sprintf("0x%X", f.Offset),
			"value":  fmt.Sprintf("0x%016X", f.Value),
		}).Warn("Possible kernel address leak")
	}

	return findings, nil
}
