package httpbridge

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
)

// Contract-violation errors. These are returned synchronously to the caller
// of the violating operation; they are never delivered through the bridge
// callbacks.
var (
	ErrStreamExists           = errors.New("stream handle already registered")
	ErrUnknownStream          = errors.New("unknown stream handle")
	ErrHeadersAlreadySent     = errors.New("headers already sent")
	ErrHeadersNotSent         = errors.New("headers not yet sent")
	ErrLocalClosed            = errors.New("stream closed locally")
	ErrTrailersAlreadySent    = errors.New("trailers already sent")
	ErrNotExplicitFlowControl = errors.New("stream is not in explicit flow-control mode")
	ErrInvalidResumeBytes     = errors.New("resume byte count must be positive")
)

// StreamError describes an engine-reported stream failure.
type StreamError struct {
	Code    codes.Code
	Message string
	// AttemptCount is the number of attempts the engine made before giving
	// up, or -1 if it did not record one.
	AttemptCount int32
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("stream error: %s: %s", e.Code, e.Message)
}

// streamErrorForReason derives error details from a bare reset reason, for
// resets where the engine recorded nothing richer.
func streamErrorForReason(reason StreamResetReason) *StreamError {
	code := codes.Internal
	switch reason {
	case ResetReasonConnectionFailure, ResetReasonConnectionTermination, ResetReasonRemoteReset:
		code = codes.Unavailable
	case ResetReasonLocalReset:
		code = codes.Canceled
	case ResetReasonOverflow:
		code = codes.ResourceExhausted
	case ResetReasonProtocolError:
		code = codes.Internal
	}
	return &StreamError{Code: code, Message: reason.String(), AttemptCount: -1}
}
