// Package httpbridge bridges callers on arbitrary goroutines to a
// full-duplex HTTP engine that runs on a single serialized dispatcher
// goroutine.
//
// A caller opens a logical stream under an opaque numeric handle, drives the
// outbound side by submitting headers, data, metadata, and trailers, and
// receives inbound events asynchronously through a set of bridge callbacks.
// The two directions of a stream close independently; exactly one terminal
// event (complete, cancel, or error) is delivered per stream.
//
// Streams can run in one of two delivery modes. In push mode, inbound events
// are delivered to the caller as soon as the engine produces them. In
// explicit flow-control (pull) mode, response body and trailers are buffered
// behind a watermark buffer and delivered only when the caller asks for
// them, up to a requested byte count per resume.
package httpbridge
