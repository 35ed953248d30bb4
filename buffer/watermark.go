// Package buffer provides a byte buffer with high/low watermark callbacks,
// used to apply backpressure when buffered response data outpaces the
// consumer.
package buffer

import "bytes"

// Watermark is a byte buffer that invokes onHigh exactly once when its size
// crosses above the high watermark, and onLow exactly once when it later
// falls back below the low watermark. Repeated growth above the high
// watermark without an intervening drop below the low watermark does not
// re-fire onHigh, and vice versa.
//
// Watermark is not safe for concurrent use; it is owned by the dispatcher
// goroutine.
type Watermark struct {
	buf       bytes.Buffer
	high      uint32
	low       uint32
	aboveHigh bool
	onLow     func()
	onHigh    func()
}

// New returns a buffer with no watermarks set; until SetWatermarks is called
// the callbacks never fire.
func New(onLow, onHigh func()) *Watermark {
	return &Watermark{onLow: onLow, onHigh: onHigh}
}

// SetWatermarks sets the high watermark; the low watermark is half of it.
// A high watermark of zero disables both callbacks.
func (w *Watermark) SetWatermarks(high uint32) {
	w.high = high
	w.low = high / 2
	w.checkHigh()
	w.checkLow()
}

// Write appends p to the buffer.
func (w *Watermark) Write(p []byte) {
	w.buf.Write(p)
	w.checkHigh()
}

// Drain removes and returns up to max bytes from the front of the buffer.
func (w *Watermark) Drain(max int) []byte {
	if max > w.buf.Len() {
		max = w.buf.Len()
	}
	out := make([]byte, max)
	_, _ = w.buf.Read(out)
	w.checkLow()
	return out
}

// Len reports the number of buffered bytes.
func (w *Watermark) Len() int {
	return w.buf.Len()
}

func (w *Watermark) checkHigh() {
	if w.high == 0 || w.aboveHigh {
		return
	}
	if uint32(w.buf.Len()) > w.high {
		w.aboveHigh = true
		if w.onHigh != nil {
			w.onHigh()
		}
	}
}

func (w *Watermark) checkLow() {
	if w.high == 0 || !w.aboveHigh {
		return
	}
	if uint32(w.buf.Len()) < w.low {
		w.aboveHigh = false
		if w.onLow != nil {
			w.onLow()
		}
	}
}
