// Package debounce delays a call until its input has been quiet for a
// fixed interval. Only the most recent pending call survives.
package debounce

import (
	"sync"
	"time"
)

// Debouncer holds at most one pending call.
type Debouncer struct {
	delay time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	dropped func()
	seq     uint64
}

// New returns a Debouncer with the given quiet interval.
func New(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Delay reports the quiet interval.
func (d *Debouncer) Delay() time.Duration { return d.delay }

// Call schedules fn, replacing any call still pending.
func (d *Debouncer) Call(fn func()) { d.Schedule(fn, nil) }

// Schedule is Call with a hook that runs if fn is replaced or cancelled
// before it fires.
func (d *Debouncer) Schedule(fn, dropped func()) {
	d.mu.Lock()
	prev := d.stopLocked()
	d.seq++
	seq := d.seq
	d.dropped = dropped
	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		if seq != d.seq {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.dropped = nil
		d.mu.Unlock()
		fn()
	})
	d.mu.Unlock()

	if prev != nil {
		prev()
	}
}

// Cancel drops the pending call, if any. It reports whether one was dropped.
func (d *Debouncer) Cancel() bool {
	d.mu.Lock()
	d.seq++
	pending := d.timer != nil
	drop := d.stopLocked()
	d.mu.Unlock()

	if drop != nil {
		drop()
	}
	return pending
}

// Pending reports whether a call is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// stopLocked stops the pending timer and returns its drop hook.
func (d *Debouncer) stopLocked() func() {
	if d.timer == nil {
		return nil
	}
	d.timer.Stop()
	d.timer = nil
	drop := d.dropped
	d.dropped = nil
	return drop
}

// Keyed debounces independently per key, e.g. one slot per session.
type Keyed struct {
	delay time.Duration

	mu    sync.Mutex
	slots map[string]*Debouncer
}

// NewKeyed returns a Keyed debouncer.
func NewKeyed(delay time.Duration) *Keyed {
	return &Keyed{delay: delay, slots: make(map[string]*Debouncer)}
}

// Call schedules fn in the slot for key.
func (k *Keyed) Call(key string, fn func()) { k.Schedule(key, fn, nil) }

// Schedule schedules fn in the slot for key; see Debouncer.Schedule.
func (k *Keyed) Schedule(key string, fn, dropped func()) {
	k.mu.Lock()
	d, ok := k.slots[key]
	if !ok {
		d = New(k.delay)
		k.slots[key] = d
	}
	k.mu.Unlock()
	d.Schedule(fn, dropped)
}

// Cancel drops the pending call for key and frees its slot.
func (k *Keyed) Cancel(key string) {
	k.mu.Lock()
	d, ok := k.slots[key]
	delete(k.slots, key)
	k.mu.Unlock()
	if ok {
		d.Cancel()
	}
}

// CancelAll drops every pending call and frees all slots.
func (k *Keyed) CancelAll() {
	k.mu.Lock()
	slots := k.slots
	k.slots = make(map[string]*Debouncer)
	k.mu.Unlock()
	for _, d := range slots {
		d.Cancel()
	}
}
