package httpbridge

import (
	"net"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
)

// StreamHandle is a caller-supplied opaque identifier naming one logical
// HTTP exchange. The caller owns uniqueness: a handle may only be reused
// after the prior stream has been fully removed from the registry.
type StreamHandle int64

// BridgeCallbacks is the caller's view of a stream's inbound half. All
// callbacks are invoked on the dispatcher goroutine, in arrival order.
// Exactly one of OnComplete, OnCancel, or OnError is invoked per stream, and
// no callback of any kind follows it.
type BridgeCallbacks interface {
	// OnHeaders delivers the response headers. In pull mode this is the only
	// event delivered without an explicit resume.
	OnHeaders(headers metadata.MD, endStream bool)
	// OnData delivers a chunk of response body. endStream is true when this
	// is the final inbound event for the stream.
	OnData(data []byte, endStream bool)
	// OnMetadata delivers response metadata. Metadata may arrive at any
	// point while the stream is live.
	OnMetadata(md metadata.MD)
	// OnTrailers delivers the response trailers.
	OnTrailers(trailers metadata.MD)
	// OnComplete reports successful completion of both directions.
	OnComplete()
	// OnCancel reports local cancellation. details is always the fixed
	// cancellation message.
	OnCancel(details string)
	// OnError reports a stream failure. attemptCount is -1 when the engine
	// did not record one.
	OnError(code codes.Code, message string, attemptCount int32)
}

// Engine is the internal full-duplex HTTP engine this bridge fronts. It is
// only ever invoked on the dispatcher goroutine.
type Engine interface {
	// NewStream opens the outbound path for a new stream. The engine pushes
	// inbound events through the given encoder and returns the sink the
	// bridge uses to drive the request forward.
	NewStream(encoder ResponseEncoder, explicitFlowControl bool) RequestSink
}

// RequestSink consumes the outbound (request) half of a stream. Assigned to
// a stream exactly once, at start.
type RequestSink interface {
	SendHeaders(headers metadata.MD, endStream bool)
	SendData(data []byte, endStream bool)
	SendMetadata(md metadata.MD)
	SendTrailers(trailers metadata.MD)
}

// ResponseEncoder is the engine-facing inbound contract: the engine encodes
// response events into it and they come out of the caller's BridgeCallbacks.
type ResponseEncoder interface {
	EncodeHeaders(headers metadata.MD, endStream bool)
	EncodeData(data []byte, endStream bool)
	EncodeTrailers(trailers metadata.MD)
	EncodeMetadata(md metadata.MD)
	// Encode1xxHeaders panics: informational headers have no bridge
	// vocabulary, and accepting them silently would drop events.
	Encode1xxHeaders(headers metadata.MD)
	// SetStreamError records error details to be reported if the stream is
	// subsequently reset. A reset without recorded details derives its error
	// from the reset reason alone.
	SetStreamError(err *StreamError)
	// Stream returns the generic stream contract for this exchange.
	Stream() Stream
}

// StreamCallbacks receives stream-level signals from the bridge: resets and
// watermark crossings on the buffered response data.
type StreamCallbacks interface {
	OnResetStream(reason StreamResetReason)
	OnAboveWriteBufferHighWatermark()
	OnBelowWriteBufferLowWatermark()
}

// Stream is the generic bidirectional-stream contract the engine's request
// path consumes. All methods are dispatcher-goroutine only.
type Stream interface {
	AddCallbacks(cb StreamCallbacks)
	RemoveCallbacks(cb StreamCallbacks)
	// ResetStream tears down both directions and reports the failure to the
	// caller through the terminal error callback.
	ResetStream(reason StreamResetReason)
	ReadDisable(disable bool)
	// BufferLimit reports the outbound buffer bound the engine should apply
	// symmetric backpressure against.
	BufferLimit() uint32
	LocalAddress() net.Addr
	// ResponseDetails is a short human-readable description of the stream's
	// outcome; last writer wins.
	ResponseDetails() string
	SetFlushTimeout(d time.Duration)
	// SetAccount panics: buffer memory accounting is not supported by this
	// bridge, and pretending otherwise would corrupt accounting invariants
	// elsewhere in the engine.
	SetAccount(account any)
}

// StreamResetReason describes why a stream was torn down before completing.
type StreamResetReason int

const (
	ResetReasonConnectionFailure StreamResetReason = iota
	ResetReasonConnectionTermination
	ResetReasonLocalReset
	ResetReasonOverflow
	ResetReasonProtocolError
	ResetReasonRemoteReset
)

func (r StreamResetReason) String() string {
	switch r {
	case ResetReasonConnectionFailure:
		return "connection failure"
	case ResetReasonConnectionTermination:
		return "connection termination"
	case ResetReasonLocalReset:
		return "local reset"
	case ResetReasonOverflow:
		return "overflow"
	case ResetReasonProtocolError:
		return "protocol error"
	case ResetReasonRemoteReset:
		return "remote reset"
	default:
		return "unknown reset"
	}
}
