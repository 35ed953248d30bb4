package httpbridge

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"

	"github.com/bridgekit-io/httpbridge/buffer"
)

// directStreamCallbacks is the inbound half of a stream: it receives
// headers/data/trailers/metadata from the engine and translates them into
// the caller's bridge callback vocabulary.
//
// The stream is full-duplex; even after the outbound direction has been
// closed, events keep flowing here until the inbound direction completes or
// the stream is reset.
//
// In explicit flow-control (pull) mode, body and trailers are withheld until
// the caller resumes: headers (or an error that beat them) go up
// immediately, everything else waits in the watermark buffer.
//
// All methods run on the dispatcher goroutine.
type directStreamCallbacks struct {
	stream *directStream
	bridge BridgeCallbacks
	client *Client

	explicitFlowControl bool

	streamErr *StreamError
	success   bool

	// Buffered response state for pull mode. body is created lazily on the
	// first buffered chunk.
	body        *buffer.Watermark
	trailers    metadata.MD
	hasTrailers bool

	headersDelivered  bool
	remoteClosed      bool
	terminalDelivered bool
	deferredError     bool

	// Outstanding resume request, pull mode only. Satisfied at most once per
	// resume call.
	bytesToSend int32
}

var _ ResponseEncoder = (*directStreamCallbacks)(nil)

func newDirectStreamCallbacks(s *directStream, bridge BridgeCallbacks, c *Client) *directStreamCallbacks {
	return &directStreamCallbacks{
		stream:              s,
		bridge:              bridge,
		client:              c,
		explicitFlowControl: s.explicitFlowControl,
	}
}

func (cb *directStreamCallbacks) EncodeHeaders(headers metadata.MD, endStream bool) {
	if cb.terminalDelivered {
		return
	}
	cb.client.logger.Debug().
		Int64("stream", int64(cb.stream.handle)).
		Bool("end_stream", endStream).
		Msg("response headers")
	cb.headersDelivered = true
	if endStream {
		cb.remoteClosed = true
	}
	cb.bridge.OnHeaders(headers, endStream)
	if endStream {
		cb.onComplete()
	}
}

func (cb *directStreamCallbacks) EncodeData(data []byte, endStream bool) {
	if cb.terminalDelivered {
		return
	}
	if endStream {
		cb.remoteClosed = true
	}
	if cb.explicitFlowControl {
		cb.ensureBody()
		cb.body.Write(data)
		if cb.bytesToSend > 0 {
			// a resume was issued before this chunk arrived
			cb.deliverBuffered()
		}
		return
	}
	cb.bridge.OnData(data, endStream)
	if endStream {
		cb.onComplete()
	}
}

func (cb *directStreamCallbacks) EncodeTrailers(trailers metadata.MD) {
	if cb.terminalDelivered {
		return
	}
	cb.remoteClosed = true
	if cb.explicitFlowControl {
		cb.trailers = trailers
		cb.hasTrailers = true
		if cb.bytesToSend > 0 && (cb.body == nil || cb.body.Len() == 0) {
			cb.deliverBuffered()
		}
		return
	}
	cb.bridge.OnTrailers(trailers)
	cb.onComplete()
}

// Metadata is not body: it is delivered immediately in both modes.
func (cb *directStreamCallbacks) EncodeMetadata(md metadata.MD) {
	if cb.terminalDelivered {
		return
	}
	cb.bridge.OnMetadata(md)
}

func (cb *directStreamCallbacks) Encode1xxHeaders(metadata.MD) {
	panic("httpbridge: informational headers unsupported")
}

func (cb *directStreamCallbacks) SetStreamError(err *StreamError) {
	cb.streamErr = err
}

func (cb *directStreamCallbacks) Stream() Stream { return cb.stream }

// resumeData satisfies an explicit flow-control read: up to bytesToSend
// buffered bytes go up immediately, or the request is remembered and
// satisfied by the next chunk the engine produces. Bytes are only ever sent
// up once per resume, even when fewer than requested are available.
func (cb *directStreamCallbacks) resumeData(bytesToSend int32) {
	if cb.terminalDelivered {
		return
	}
	cb.bytesToSend = bytesToSend
	cb.deliverBuffered()
}

func (cb *directStreamCallbacks) deliverBuffered() {
	if cb.deferredError {
		cb.sendErrorToBridge()
		return
	}
	if cb.bytesToSend == 0 {
		return
	}
	if cb.body != nil && cb.body.Len() > 0 {
		chunk := cb.body.Drain(int(cb.bytesToSend))
		cb.bytesToSend = 0
		endStream := cb.remoteClosed && cb.body.Len() == 0 && !cb.hasTrailers
		cb.bridge.OnData(chunk, endStream)
		if endStream {
			cb.onComplete()
			return
		}
		if cb.body.Len() > 0 {
			// remainder waits for the next resume
			return
		}
	}
	// Trailers never jump ahead of buffered body; they go up only once the
	// buffer has drained under an issued resume.
	if cb.hasTrailers {
		trailers := cb.trailers
		cb.trailers = nil
		cb.hasTrailers = false
		cb.bytesToSend = 0
		cb.bridge.OnTrailers(trailers)
		cb.onComplete()
		return
	}
	if cb.remoteClosed {
		// end of stream arrived with no bytes left to hand over
		cb.bytesToSend = 0
		cb.bridge.OnData(nil, true)
		cb.onComplete()
	}
}

func (cb *directStreamCallbacks) onComplete() {
	if cb.terminalDelivered {
		return
	}
	if cb.deferredError || cb.streamErr != nil {
		// an error always supersedes completion
		cb.sendErrorToBridge()
		return
	}
	cb.terminalDelivered = true
	cb.success = true
	cb.client.stats.streamSuccess.Inc()
	cb.client.logger.Debug().
		Int64("stream", int64(cb.stream.handle)).
		Msg("stream complete")
	cb.bridge.OnComplete()
	cb.client.removeStream(cb.stream)
}

// onCancel delivers the cancellation terminal event. Reports whether this
// call won the race to terminate the stream.
func (cb *directStreamCallbacks) onCancel() bool {
	if cb.terminalDelivered {
		return false
	}
	cb.terminalDelivered = true
	cb.stream.setResponseDetails(cancelDetails)
	cb.client.stats.streamCancel.Inc()
	cb.client.logger.Debug().
		Int64("stream", int64(cb.stream.handle)).
		Msg("stream cancelled")
	cb.bridge.OnCancel(cancelDetails)
	cb.client.removeStream(cb.stream)
	return true
}

func (cb *directStreamCallbacks) onReset(reason StreamResetReason) {
	if cb.streamErr == nil {
		cb.streamErr = streamErrorForReason(reason)
	}
	cb.onError()
}

func (cb *directStreamCallbacks) onError() {
	if cb.terminalDelivered {
		return
	}
	if cb.streamErr == nil {
		cb.streamErr = &StreamError{Code: codes.Internal, Message: "stream error", AttemptCount: -1}
	}
	if cb.explicitFlowControl && cb.headersDelivered && cb.bytesToSend == 0 {
		// The caller isn't asking for anything right now; hold the error and
		// surface it at the next delivery point instead of dropping it.
		cb.deferredError = true
		return
	}
	cb.sendErrorToBridge()
}

func (cb *directStreamCallbacks) sendErrorToBridge() {
	if cb.terminalDelivered {
		return
	}
	cb.terminalDelivered = true
	cb.deferredError = false
	// the error supersedes any queued body and trailers
	cb.body = nil
	cb.trailers = nil
	cb.hasTrailers = false
	cb.client.stats.streamFailure.Inc()
	cb.client.logger.Debug().
		Int64("stream", int64(cb.stream.handle)).
		Str("code", cb.streamErr.Code.String()).
		Str("message", cb.streamErr.Message).
		Msg("stream error")
	cb.bridge.OnError(cb.streamErr.Code, cb.streamErr.Message, cb.streamErr.AttemptCount)
	cb.client.removeStream(cb.stream)
}

func (cb *directStreamCallbacks) ensureBody() {
	if cb.body != nil {
		return
	}
	cb.body = buffer.New(cb.stream.runLowWatermarkCallbacks, cb.stream.runHighWatermarkCallbacks)
	cb.body.SetWatermarks(cb.client.responseBufferLimit)
}

// release drops any remaining buffered state. Runs at the deferred-deletion
// safe point, after the engine's request object is gone.
func (cb *directStreamCallbacks) release() {
	cb.body = nil
	cb.trailers = nil
	cb.hasTrailers = false
}
