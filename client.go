package httpbridge

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"google.golang.org/grpc/metadata"

	"github.com/bridgekit-io/httpbridge/event"
)

// cancelDetails is the fixed response details reported for every locally
// cancelled stream.
const cancelDetails = "client cancelled stream"

// DefaultResponseBufferLimit is the default high watermark, in bytes, for
// buffered response data on a stream in explicit flow-control mode.
const DefaultResponseBufferLimit = 6_000_000

// NetworkType is an advisory hint about the preferred network for new
// streams. It never coordinates correctness; readers may observe it with
// relaxed semantics.
type NetworkType int32

const (
	NetworkGeneric NetworkType = iota
	NetworkWLAN
	NetworkWWAN
)

// Client manages HTTP streams and is the caller-facing entry point of the
// bridge. Its methods are safe to call from any goroutine: every mutation of
// stream state is posted to the single dispatcher goroutine the engine runs
// on, and callers never block on engine-side effects.
//
// Contract violations (unknown handle, out-of-sequence operations) are
// returned synchronously; every engine-side outcome arrives through the
// stream's BridgeCallbacks, exactly one terminal event per stream.
type Client struct {
	engine              Engine
	dispatcher          *event.Dispatcher
	logger              zerolog.Logger
	stats               *ClientStats
	responseBufferLimit uint32

	// Shared synthetic address across streams.
	address net.Addr

	preferredNetwork atomic.Int32

	mu      sync.RWMutex
	streams map[StreamHandle]*directStream
}

// NewClient returns a client that opens streams against the given engine and
// serializes all stream work onto the given dispatcher.
func NewClient(engine Engine, dispatcher *event.Dispatcher, opts ...ClientOption) *Client {
	options := clientOpts{
		logger:              zerolog.Nop(),
		responseBufferLimit: DefaultResponseBufferLimit,
	}
	for _, opt := range opts {
		opt.apply(&options)
	}
	return &Client{
		engine:              engine,
		dispatcher:          dispatcher,
		logger:              options.logger,
		stats:               newClientStats(options.registerer),
		responseBufferLimit: options.responseBufferLimit,
		address:             sharedSyntheticAddr,
		streams:             map[StreamHandle]*directStream{},
	}
}

// StartStream opens a new stream under the given handle. The call is
// asynchronous: the handle is immediately valid for subsequent operations,
// but there is no guarantee the stream ever functionally opens. Every
// outcome, including immediate failure, is delivered later through
// callbacks. A stream that never opens still receives a terminal callback.
func (c *Client) StartStream(handle StreamHandle, callbacks BridgeCallbacks, explicitFlowControl bool) error {
	if callbacks == nil {
		return errors.New("httpbridge: nil bridge callbacks")
	}
	s := &directStream{
		handle:              handle,
		parent:              c,
		explicitFlowControl: explicitFlowControl,
	}
	s.callbacks = newDirectStreamCallbacks(s, callbacks, c)

	c.mu.Lock()
	if _, ok := c.streams[handle]; ok {
		c.mu.Unlock()
		return fmt.Errorf("stream %d: %w", handle, ErrStreamExists)
	}
	c.streams[handle] = s
	c.mu.Unlock()

	err := c.dispatcher.Post(func() {
		s.sink = c.engine.NewStream(s.callbacks, explicitFlowControl)
		c.logger.Debug().
			Int64("stream", int64(handle)).
			Bool("explicit_flow_control", explicitFlowControl).
			Msg("stream started")
	})
	if err != nil {
		c.mu.Lock()
		delete(c.streams, handle)
		c.mu.Unlock()
		return fmt.Errorf("stream %d: %w", handle, err)
	}
	return nil
}

// SendHeaders sends the request headers. It must be the first data-carrying
// call on the stream and can be made only once. endStream closes the local
// direction after the headers.
func (c *Client) SendHeaders(handle StreamHandle, headers metadata.MD, endStream bool) error {
	s, err := c.getStream(handle)
	if err != nil {
		return err
	}
	s.mu.Lock()
	switch {
	case s.headersSent:
		err = ErrHeadersAlreadySent
	case s.localClosed:
		err = ErrLocalClosed
	default:
		s.headersSent = true
		s.localClosed = endStream
	}
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("stream %d: %w", handle, err)
	}
	return c.dispatcher.Post(func() {
		c.logger.Debug().
			Int64("stream", int64(handle)).
			Bool("end_stream", endStream).
			Msg("sending headers")
		s.sink.SendHeaders(headers, endStream)
	})
}

// SendData sends a chunk of request body. It may be called repeatedly while
// the local direction is open.
func (c *Client) SendData(handle StreamHandle, data []byte, endStream bool) error {
	s, err := c.getStream(handle)
	if err != nil {
		return err
	}
	s.mu.Lock()
	switch {
	case !s.headersSent:
		err = ErrHeadersNotSent
	case s.localClosed:
		err = ErrLocalClosed
	default:
		s.localClosed = endStream
	}
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("stream %d: %w", handle, err)
	}
	return c.dispatcher.Post(func() {
		s.sink.SendData(data, endStream)
	})
}

// SendMetadata sends request metadata. Valid regardless of the open/closed
// state of either direction, until the stream is torn down.
func (c *Client) SendMetadata(handle StreamHandle, md metadata.MD) error {
	s, err := c.getStream(handle)
	if err != nil {
		return err
	}
	return c.dispatcher.Post(func() {
		s.sink.SendMetadata(md)
	})
}

// SendTrailers sends the request trailers and implicitly closes the local
// direction. At most once per stream.
func (c *Client) SendTrailers(handle StreamHandle, trailers metadata.MD) error {
	s, err := c.getStream(handle)
	if err != nil {
		return err
	}
	s.mu.Lock()
	switch {
	case !s.headersSent:
		err = ErrHeadersNotSent
	case s.trailersSent:
		err = ErrTrailersAlreadySent
	case s.localClosed:
		err = ErrLocalClosed
	default:
		s.trailersSent = true
		s.localClosed = true
	}
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("stream %d: %w", handle, err)
	}
	return c.dispatcher.Post(func() {
		s.sink.SendTrailers(trailers)
	})
}

// CancelStream closes both directions immediately, regardless of stream
// state. The caller observes exactly one OnCancel with the fixed details
// string; any otherwise-pending outcome is superseded.
func (c *Client) CancelStream(handle StreamHandle) error {
	s, err := c.getStream(handle)
	if err != nil {
		return err
	}
	return c.dispatcher.Post(func() {
		if s.callbacks.onCancel() {
			// lost races keep the engine side untouched; the winner tears it
			// down
			s.runResetCallbacks(ResetReasonLocalReset)
		}
	})
}

// ResumeData asks for up to maxBytes of buffered response body on a stream
// in explicit flow-control mode. If nothing is buffered, the request is
// remembered and satisfied by the next chunk the engine produces. Bytes are
// delivered at most once per call.
func (c *Client) ResumeData(handle StreamHandle, maxBytes int32) error {
	s, err := c.getStream(handle)
	if err != nil {
		return err
	}
	if !s.explicitFlowControl {
		return fmt.Errorf("stream %d: %w", handle, ErrNotExplicitFlowControl)
	}
	if maxBytes <= 0 {
		return fmt.Errorf("stream %d: %w", handle, ErrInvalidResumeBytes)
	}
	return c.dispatcher.Post(func() {
		s.callbacks.resumeData(maxBytes)
	})
}

// Stats returns the client's stream counters.
func (c *Client) Stats() *ClientStats { return c.stats }

// PreferredNetwork reports the advisory preferred-network hint.
func (c *Client) PreferredNetwork() NetworkType {
	return NetworkType(c.preferredNetwork.Load())
}

// SetPreferredNetwork updates the advisory preferred-network hint.
func (c *Client) SetPreferredNetwork(network NetworkType) {
	c.preferredNetwork.Store(int32(network))
}

func (c *Client) getStream(handle StreamHandle) (*directStream, error) {
	c.mu.RLock()
	s, ok := c.streams[handle]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("stream %d: %w", handle, ErrUnknownStream)
	}
	return s, nil
}

// removeStream unregisters the handle and schedules the stream for deferred
// destruction. The stream object must stay alive past the current engine
// work item: the engine's per-request object referencing it is torn down
// first, at the end of that work item, and only then does the wrapper
// release the stream. Dispatcher goroutine only.
func (c *Client) removeStream(s *directStream) {
	if s.removed {
		return
	}
	s.removed = true
	c.mu.Lock()
	delete(c.streams, s.handle)
	c.mu.Unlock()
	c.dispatcher.DeferredDelete(&streamWrapper{stream: s})
}

// activeStreams reports the number of currently registered streams.
func (c *Client) activeStreams() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.streams)
}
