// Package debounce provides a restartable settle timer.
//
// A Debouncer runs the most recently triggered function once no further
// Trigger call has arrived for the configured duration. Every Trigger
// cancels the pending run, so only the last function of a burst executes.
//
//	d := debounce.New(300 * time.Millisecond)
//	for _, q := range keystrokes {
//	    q := q
//	    d.Trigger(func() { search(q) })
//	}
//	// search runs once, with the last keystroke, 300ms after it.
package debounce

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of calls into a single delayed call.
// It is safe for concurrent use.
type Debouncer struct {
	mu    sync.Mutex
	after time.Duration
	timer *time.Timer
	fn    func()

	// gen invalidates timers that fired while a newer Trigger, Flush or
	// Cancel was taking the lock.
	gen uint64
}

// New creates a Debouncer that waits after before running.
// A duration of zero or less runs triggered functions synchronously.
func New(after time.Duration) *Debouncer {
	return &Debouncer{after: after}
}

// Trigger schedules f, replacing any pending function.
// It reports whether a pending function was superseded.
func (d *Debouncer) Trigger(f func()) (superseded bool) {
	d.mu.Lock()

	superseded = d.stopLocked()
	if d.after <= 0 {
		d.mu.Unlock()
		f()
		return superseded
	}

	d.gen++
	gen := d.gen
	d.fn = f
	d.timer = time.AfterFunc(d.after, func() {
		d.fire(gen)
	})
	d.mu.Unlock()
	return superseded
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || d.fn == nil {
		d.mu.Unlock()
		return
	}
	f := d.fn
	d.fn = nil
	d.timer = nil
	d.mu.Unlock()

	f()
}

// Flush runs the pending function immediately on the calling goroutine.
// It reports whether there was one.
func (d *Debouncer) Flush() bool {
	d.mu.Lock()
	f := d.fn
	if f == nil {
		d.mu.Unlock()
		return false
	}
	d.stopLocked()
	d.mu.Unlock()

	f()
	return true
}

// Cancel drops the pending function without running it.
func (d *Debouncer) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopLocked()
}

// Pending reports whether a function is waiting to run.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fn != nil
}

// SetDuration changes the wait used by subsequent Trigger calls.
func (d *Debouncer) SetDuration(after time.Duration) {
	d.mu.Lock()
	d.after = after
	d.mu.Unlock()
}

// Duration returns the configured wait.
func (d *Debouncer) Duration() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.after
}

// stopLocked clears the pending function. Caller holds d.mu.
func (d *Debouncer) stopLocked() bool {
	pending := d.fn != nil
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.fn = nil
	d.gen++
	return pending
}
