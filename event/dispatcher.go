// Package event provides the serialized task executor that the bridge runs
// on: a single goroutine that executes posted work in FIFO order, with a
// deferred-deletion facility for objects whose teardown must wait until the
// currently running unit of work has finished with them.
package event

import (
	"errors"
	"sync"
)

// ErrTerminated is returned by Post after the dispatcher has been stopped.
var ErrTerminated = errors.New("dispatcher terminated")

// DeferredDeletable is an object whose destruction is deferred to the end of
// the current dispatcher task. Deletion order relative to the task that
// scheduled it is the whole point: the deletable is guaranteed not to be
// released while the task that retired it is still running.
type DeferredDeletable interface {
	DeferredDelete()
}

// Dispatcher is a single-goroutine serialized executor. It is provisional in
// the sense that it accepts posted work before Start is called; queued work
// is retained and executed, in order, once the run loop starts. Tasks posted
// from a single goroutine execute in submission order.
type Dispatcher struct {
	mu         sync.Mutex
	cond       sync.Cond
	queue      []func()
	started    bool
	terminated bool
	stopped    chan struct{}

	// Owned by the run loop; only appended to while a task is executing.
	toDelete []DeferredDeletable
}

// New returns a dispatcher in its provisional state: Post may be called
// immediately, but nothing executes until Start.
func New() *Dispatcher {
	d := &Dispatcher{stopped: make(chan struct{})}
	d.cond.L = &d.mu
	return d
}

// Post enqueues a task for execution on the dispatcher goroutine. It is safe
// to call from any goroutine and never blocks waiting for the task to run.
func (d *Dispatcher) Post(task func()) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.terminated {
		return ErrTerminated
	}
	d.queue = append(d.queue, task)
	d.cond.Signal()
	return nil
}

// Start launches the run loop. Work posted before Start executes first, in
// the order it was posted. Start may be called at most once.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		panic("dispatcher already started")
	}
	d.started = true
	d.mu.Unlock()
	go d.run()
}

// Stop drains work already queued at the time of the call, then terminates
// the run loop. Subsequent Posts return ErrTerminated. Stop blocks until the
// loop has exited. Calling Stop before Start releases queued work unrun.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.terminated {
		d.mu.Unlock()
		<-d.stopped
		return
	}
	d.terminated = true
	started := d.started
	d.cond.Signal()
	d.mu.Unlock()
	if !started {
		close(d.stopped)
		return
	}
	<-d.stopped
}

// DeferredDelete schedules del to be released after the currently running
// task returns. Must only be called from the dispatcher goroutine (i.e. from
// within a posted task).
func (d *Dispatcher) DeferredDelete(del DeferredDeletable) {
	d.toDelete = append(d.toDelete, del)
}

func (d *Dispatcher) run() {
	defer close(d.stopped)
	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.terminated {
			d.cond.Wait()
		}
		if len(d.queue) == 0 && d.terminated {
			d.mu.Unlock()
			return
		}
		task := d.queue[0]
		d.queue = d.queue[1:]
		d.mu.Unlock()

		task()
		d.drainDeferredDeletes()
	}
}

func (d *Dispatcher) drainDeferredDeletes() {
	// Deletables may themselves retire more objects; drain until stable.
	for len(d.toDelete) > 0 {
		retired := d.toDelete
		d.toDelete = nil
		for _, del := range retired {
			del.DeferredDelete()
		}
	}
}
