// Package timer schedules clock-time callbacks for the event loop. The
// nearest deadline bounds the multiplexer poll so a pending timer always
// wakes the loop in time.
package timer

import "time"

// Timer fires fn every interval, up to runs times. A negative runs value
// repeats forever.
type Timer struct {
	interval time.Duration
	runs     int
	fn       func()
	next     time.Time
}

// Registry holds the pending timers. It is owned by the event-loop thread
// and is not safe for concurrent use.
type Registry struct {
	timers []*Timer
	now    func() time.Time
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{now: time.Now}
}

// Register schedules fn to run every interval, runs times (negative means
// forever), starting one interval from now.
func (r *Registry) Register(interval time.Duration, runs int, fn func()) {
	if runs == 0 {
		return
	}
	r.timers = append(r.timers, &Timer{
		interval: interval,
		runs:     runs,
		fn:       fn,
		next:     r.now().Add(interval),
	})
}

// Timeout returns the duration until the earliest pending deadline. The
// second return is false when no timer is pending. An overdue timer yields
// a zero timeout, never a negative one.
func (r *Registry) Timeout() (time.Duration, bool) {
	if len(r.timers) == 0 {
		return 0, false
	}
	now := r.now()
	min := r.timers[0].next
	for _, t := range r.timers[1:] {
		if t.next.Before(min) {
			min = t.next
		}
	}
	d := min.Sub(now)
	if d < 0 {
		d = 0
	}
	return d, true
}

// Tick fires every due timer and retires the exhausted ones. A callback may
// register new timers; they are kept for the next tick.
func (r *Registry) Tick() {
	now := r.now()
	pending := r.timers
	r.timers = nil
	for _, t := range pending {
		for !t.next.After(now) && t.runs != 0 {
			t.fn()
			t.next = t.next.Add(t.interval)
			if t.runs > 0 {
				t.runs--
			}
		}
		if t.runs != 0 {
			r.timers = append(r.timers, t)
		}
	}
}

// Len returns the number of pending timers.
func (r *Registry) Len() int { return len(r.timers) }
