package stats

import (
	"errors"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dispatch outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeBuffer  = "buffer"
	OutcomeDevice  = "device"
	OutcomeRequest = "request"
	OutcomeError   = "error"
)

// A Set holds the counters of a run. A nil *Set discards everything.
type Set struct {
	registry   *prometheus.Registry
	dispatches *prometheus.CounterVec
	leaks      *prometheus.CounterVec
	bytes      prometheus.Counter
}

// Summary is a snapshot of a Set.
type Summary struct {
	Dispatches int
	Failures   int
	Leaks      int
	Bytes      int
}

// New returns a new Set with its own registry.
func New() *Set {
	s := &Set{
		registry: prometheus.NewRegistry(),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ioctiller_dispatches_total",
			Help: "Dispatch cycles by request and outcome.",
		}, []string{"request", "outcome"}),
		leaks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ioctiller_leaks_total",
			Help: "Probable kernel addresses found in responses.",
		}, []string{"request"}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ioctiller_transferred_bytes_total",
			Help: "Bytes reported as written by the device.",
		}),
	}

	s.registry.MustRegister(s.dispatches, s.leaks, s.bytes)

	return s
}

// ObserveDispatch records one dispatch cycle.
func (s *Set) ObserveDispatch(request string, outcome string, transferred uint32) {
	if s == nil {
		return
	}

	s.dispatches.WithLabelValues(request, outcome).Inc()
	s.bytes.Add(float64(transferred))
}

// ObserveLeaks records n findings for a request.
func (s *Set) ObserveLeaks(request string, n int) {
	if s == nil || n == 0 {
		return
	}

	s.leaks.WithLabelValues(request).Add(float64(n))
}

// Handler returns the /metrics handler of the set.
func (s *Set) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until the returned server is closed.
func (s *Set) Serve(addr string) (*http.Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", s.Handler())

	server := &http.Server{Handler: mux}

	go func() {
		err := server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listener.Close()
		}
	}()

	return server, nil
}

// Summary returns the current totals.
func (s *Set) Summary() (Summary, error) {
	var sum Summary

	if s == nil {
		return sum, nil
	}

	families, err := s.registry.Gather()
	if err != nil {
		return sum, err
	}

	for _, family := range families {
		for _, m := range family.GetMetric() {
			value := int(m.GetCounter().GetValue())

			switch family.GetName() {
			case "ioctiller_dispatches_total":
				sum.Dispatches += value

				for _, label := range m.GetLabel() {
					if label.GetName() == "outcome" && label.GetValue() != OutcomeOK {
						sum.Failures += value
					}
				}
			case "ioctiller_leaks_total":
				sum.Leaks += value
			case "ioctiller_transferred_bytes_total":
				sum.Bytes += value
			}
		}
	}

	return sum, nil
}
