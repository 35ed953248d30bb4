package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newCounting() (*Watermark, *int, *int) {
	var lows, highs int
	w := New(func() { lows++ }, func() { highs++ })
	return w, &lows, &highs
}

func TestHighWatermarkFiresOnce(t *testing.T) {
	w, lows, highs := newCounting()
	w.SetWatermarks(10)

	w.Write(make([]byte, 10))
	assert.Equal(t, 0, *highs, "at the watermark is not above it")
	w.Write(make([]byte, 1))
	assert.Equal(t, 1, *highs)
	w.Write(make([]byte, 100))
	assert.Equal(t, 1, *highs, "no re-fire without a change of direction")
	assert.Equal(t, 0, *lows)
}

func TestLowWatermarkFiresOnDrain(t *testing.T) {
	w, lows, highs := newCounting()
	w.SetWatermarks(10)

	w.Write(make([]byte, 20))
	assert.Equal(t, 1, *highs)

	w.Drain(14) // 6 left, still >= low of 5
	assert.Equal(t, 0, *lows)
	w.Drain(2) // 4 left, below low
	assert.Equal(t, 1, *lows)
	w.Drain(4)
	assert.Equal(t, 1, *lows, "no re-fire without a change of direction")
}

func TestWatermarkCycle(t *testing.T) {
	w, lows, highs := newCounting()
	w.SetWatermarks(10)

	w.Write(make([]byte, 11))
	w.Drain(11)
	w.Write(make([]byte, 11))
	w.Drain(11)
	assert.Equal(t, 2, *highs)
	assert.Equal(t, 2, *lows)
}

func TestZeroWatermarkDisablesCallbacks(t *testing.T) {
	w, lows, highs := newCounting()

	w.Write(make([]byte, 1000))
	w.Drain(1000)
	assert.Equal(t, 0, *highs)
	assert.Equal(t, 0, *lows)
}

func TestDrainReturnsBytesInOrder(t *testing.T) {
	w := New(nil, nil)
	w.Write([]byte("hello"))
	w.Write([]byte(" world"))

	assert.Equal(t, []byte("hel"), w.Drain(3))
	assert.Equal(t, 8, w.Len())
	assert.Equal(t, []byte("lo world"), w.Drain(100))
	assert.Equal(t, 0, w.Len())
	assert.Empty(t, w.Drain(10))
}
