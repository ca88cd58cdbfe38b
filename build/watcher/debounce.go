package watcher

import "time"

// A debounce fires once a period passes without being armed again.
type debounce struct {
	timer    *time.Timer
	c        <-chan time.Time // nil when not armed
	deadline time.Time
}

// arm moves the deadline to dt from now, starting the timer if it is not
// running.
func (d *debounce) arm(dt time.Duration) {
	d.deadline = time.Now().Add(dt)
	if d.c != nil {
		return
	}
	if d.timer == nil {
		d.timer = time.NewTimer(dt)
	} else {
		d.timer.Reset(dt)
	}
	d.c = d.timer.C
}

// fire must be called after receiving from c. It returns true if the deadline
// has passed. Otherwise the timer is restarted for the remaining time.
func (d *debounce) fire() bool {
	d.c = nil
	if rem := time.Until(d.deadline); rem > 0 {
		d.timer.Reset(rem)
		d.c = d.timer.C
		return false
	}
	return true
}

func (d *debounce) armed() bool { return d.c != nil }
