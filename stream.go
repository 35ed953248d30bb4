package httpbridge

import (
	"net"
	"sync"
	"time"
)

// streamBufferLimit is the outbound buffer bound reported to the engine for
// every stream.
const streamBufferLimit = 65000

// syntheticAddr is the immutable local address shared by all streams. The
// bridge has no real socket; the engine only needs a stable value.
type syntheticAddr struct{}

func (syntheticAddr) Network() string { return "synthetic" }
func (syntheticAddr) String() string  { return "synthetic:0" }

var sharedSyntheticAddr net.Addr = syntheticAddr{}

// directStream holds the state for one live handle: the outbound sink the
// engine consumes the request through, and the response adapter the engine
// pushes inbound events through.
//
// The stream is full-duplex: closing the outbound direction never implies
// the inbound direction is closed, and vice versa.
type directStream struct {
	handle StreamHandle
	parent *Client

	// Assigned exactly once, on the dispatcher goroutine, at stream start.
	sink      RequestSink
	callbacks *directStreamCallbacks

	explicitFlowControl bool

	// Outbound sequencing, guarded by mu so out-of-order operations are
	// rejected synchronously on the caller's goroutine.
	mu           sync.Mutex
	headersSent  bool
	localClosed  bool
	trailersSent bool

	// Dispatcher-goroutine state.
	streamCallbacks []StreamCallbacks
	responseDetails string
	removed         bool
}

var _ Stream = (*directStream)(nil)

func (s *directStream) AddCallbacks(cb StreamCallbacks) {
	s.streamCallbacks = append(s.streamCallbacks, cb)
}

func (s *directStream) RemoveCallbacks(cb StreamCallbacks) {
	for i, registered := range s.streamCallbacks {
		if registered == cb {
			s.streamCallbacks = append(s.streamCallbacks[:i], s.streamCallbacks[i+1:]...)
			return
		}
	}
}

// ResetStream is the engine's teardown entry point: both directions close
// and the failure propagates to the caller through the terminal callback.
func (s *directStream) ResetStream(reason StreamResetReason) {
	s.parent.logger.Debug().
		Int64("stream", int64(s.handle)).
		Stringer("reason", reason).
		Msg("stream reset by engine")
	s.callbacks.onReset(reason)
}

// ReadDisable is not used by this bridge; inbound pacing is done through the
// response buffer watermarks instead.
func (s *directStream) ReadDisable(bool) {}

func (s *directStream) BufferLimit() uint32 { return streamBufferLimit }

func (s *directStream) LocalAddress() net.Addr { return s.parent.address }

func (s *directStream) ResponseDetails() string { return s.responseDetails }

func (s *directStream) SetFlushTimeout(time.Duration) {}

func (s *directStream) SetAccount(any) {
	panic("httpbridge: buffer memory accounts unsupported")
}

func (s *directStream) setResponseDetails(details string) {
	s.responseDetails = details
}

func (s *directStream) runResetCallbacks(reason StreamResetReason) {
	for _, cb := range s.streamCallbacks {
		cb.OnResetStream(reason)
	}
}

func (s *directStream) runHighWatermarkCallbacks() {
	for _, cb := range s.streamCallbacks {
		cb.OnAboveWriteBufferHighWatermark()
	}
}

func (s *directStream) runLowWatermarkCallbacks() {
	for _, cb := range s.streamCallbacks {
		cb.OnBelowWriteBufferLowWatermark()
	}
}

// streamWrapper keeps a strong reference to a retired stream until the
// dispatcher reaches its deferred-deletion safe point. The engine's
// per-request object is always torn down before the wrapper releases the
// stream, which is the ordering the registry relies on.
type streamWrapper struct {
	stream *directStream
}

func (w *streamWrapper) DeferredDelete() {
	w.stream.callbacks.release()
	w.stream.parent.logger.Debug().
		Int64("stream", int64(w.stream.handle)).
		Msg("stream released")
}
