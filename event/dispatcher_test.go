package event

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(ev string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type deletable struct {
	onDelete func()
}

func (d *deletable) DeferredDelete() { d.onDelete() }

func settle(t *testing.T, d *Dispatcher) {
	t.Helper()
	done := make(chan struct{})
	require.NoError(t, d.Post(func() { close(done) }))
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("dispatcher did not run posted task")
	}
}

func TestPostBeforeStart(t *testing.T) {
	d := New()
	var rec recorder
	// provisional state: work is queued, not run, and never dropped
	require.NoError(t, d.Post(func() { rec.add("a") }))
	require.NoError(t, d.Post(func() { rec.add("b") }))
	require.NoError(t, d.Post(func() { rec.add("c") }))
	assert.Empty(t, rec.snapshot())

	d.Start()
	defer d.Stop()
	settle(t, d)
	assert.Equal(t, []string{"a", "b", "c"}, rec.snapshot())
}

func TestTasksRunInOrder(t *testing.T) {
	d := New()
	d.Start()
	defer d.Stop()

	var rec recorder
	for _, ev := range []string{"1", "2", "3", "4", "5"} {
		ev := ev
		require.NoError(t, d.Post(func() { rec.add(ev) }))
	}
	settle(t, d)
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, rec.snapshot())
}

func TestDeferredDeleteRunsAfterCurrentTask(t *testing.T) {
	d := New()
	d.Start()
	defer d.Stop()

	var rec recorder
	require.NoError(t, d.Post(func() {
		d.DeferredDelete(&deletable{onDelete: func() { rec.add("deleted") }})
		rec.add("task one end")
	}))
	require.NoError(t, d.Post(func() { rec.add("task two") }))
	settle(t, d)
	// the deletable is released after the task that retired it, before the
	// next task runs
	assert.Equal(t, []string{"task one end", "deleted", "task two"}, rec.snapshot())
}

func TestDeferredDeleteChains(t *testing.T) {
	d := New()
	d.Start()
	defer d.Stop()

	var rec recorder
	require.NoError(t, d.Post(func() {
		d.DeferredDelete(&deletable{onDelete: func() {
			rec.add("outer")
			d.DeferredDelete(&deletable{onDelete: func() { rec.add("inner") }})
		}})
	}))
	settle(t, d)
	assert.Equal(t, []string{"outer", "inner"}, rec.snapshot())
}

func TestStopDrainsQueuedWork(t *testing.T) {
	d := New()
	d.Start()

	var rec recorder
	for i := 0; i < 10; i++ {
		require.NoError(t, d.Post(func() { rec.add("ran") }))
	}
	d.Stop()
	assert.Len(t, rec.snapshot(), 10)
	assert.ErrorIs(t, d.Post(func() {}), ErrTerminated)
}

func TestStopBeforeStart(t *testing.T) {
	d := New()
	require.NoError(t, d.Post(func() {}))
	d.Stop()
	assert.ErrorIs(t, d.Post(func() {}), ErrTerminated)
}
