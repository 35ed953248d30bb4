package httpbridge

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// ClientStats holds the client's stream counters. Each counter is
// incremented exactly once per stream, at its terminal event; the three
// outcomes are mutually exclusive. Counters are safe to read concurrently.
type ClientStats struct {
	streamSuccess statCounter
	streamFailure statCounter
	streamCancel  statCounter
}

// newClientStats builds the counter set and, when a registerer is given,
// exposes the counters through it.
func newClientStats(reg prometheus.Registerer) *ClientStats {
	s := &ClientStats{}
	if reg == nil {
		return s
	}
	for _, c := range []struct {
		name    string
		help    string
		counter *statCounter
	}{
		{"http_client_stream_success_total", "Streams that completed successfully.", &s.streamSuccess},
		{"http_client_stream_failure_total", "Streams that terminated with an error.", &s.streamFailure},
		{"http_client_stream_cancel_total", "Streams cancelled by the client.", &s.streamCancel},
	} {
		counter := c.counter
		reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: c.name,
			Help: c.help,
		}, func() float64 {
			return float64(counter.Value())
		}))
	}
	return s
}

// StreamSuccess reports the number of streams that completed successfully.
func (s *ClientStats) StreamSuccess() uint64 { return s.streamSuccess.Value() }

// StreamFailure reports the number of streams that terminated with an error.
func (s *ClientStats) StreamFailure() uint64 { return s.streamFailure.Value() }

// StreamCancel reports the number of streams cancelled by the client.
func (s *ClientStats) StreamCancel() uint64 { return s.streamCancel.Value() }

type statCounter struct {
	v atomic.Uint64
}

func (c *statCounter) Inc() { c.v.Add(1) }

func (c *statCounter) Value() uint64 { return c.v.Load() }
