package httpbridge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// ClientOption is an option for configuring the behavior of a Client.
type ClientOption interface {
	apply(*clientOpts)
}

// WithLogger returns an option that sets the logger used for stream
// lifecycle events. The default logger discards everything.
func WithLogger(logger zerolog.Logger) ClientOption {
	return clientOptFunc(func(opts *clientOpts) {
		opts.logger = logger
	})
}

// WithResponseBufferLimit returns an option that sets the high watermark, in
// bytes, for response data buffered on a stream in explicit flow-control
// mode. Crossing it pauses the producer until the buffer drains below half
// the limit. The default is DefaultResponseBufferLimit.
func WithResponseBufferLimit(limit uint32) ClientOption {
	return clientOptFunc(func(opts *clientOpts) {
		opts.responseBufferLimit = limit
	})
}

// WithStatsRegistry returns an option that registers the client's stream
// counters with the given registerer. Without it the counters are still
// maintained and readable through Stats, just not exported.
func WithStatsRegistry(reg prometheus.Registerer) ClientOption {
	return clientOptFunc(func(opts *clientOpts) {
		opts.registerer = reg
	})
}

type clientOpts struct {
	logger              zerolog.Logger
	responseBufferLimit uint32
	registerer          prometheus.Registerer
}

type clientOptFunc func(*clientOpts)

func (f clientOptFunc) apply(opts *clientOpts) {
	f(opts)
}
