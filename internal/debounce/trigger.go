package debounce

import (
	"sync"
	"time"
)

// Trigger collapses bursts of Fire calls into a single call of its action,
// scheduled delay after the last Fire.
type Trigger struct {
	delay  time.Duration
	action func()

	mu         sync.Mutex
	timer      *time.Timer
	generation uint64
	stopped    bool
}

func New(delay time.Duration, action func()) *Trigger {
	if delay < 0 {
		delay = 0
	}
	return &Trigger{delay: delay, action: action}
}

// Fire cancels the pending timer, if any, and schedules a new one.
func (t *Trigger) Fire() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || t.action == nil {
		return
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	t.generation++
	generation := t.generation
	t.timer = time.AfterFunc(t.delay, func() { t.run(generation) })
}

// Pending reports whether a timer is scheduled and has not run yet.
func (t *Trigger) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timer != nil
}

// Stop cancels the pending timer and rejects future Fire calls.
// It returns true if a pending action was cancelled.
func (t *Trigger) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	t.generation++
	if t.timer == nil {
		return false
	}
	cancelled := t.timer.Stop()
	t.timer = nil
	return cancelled
}

func (t *Trigger) run(generation uint64) {
	t.mu.Lock()
	// A timer that lost the race against Stop inside Fire still runs its func;
	// only the latest generation may call the action.
	if generation != t.generation || t.stopped {
		t.mu.Unlock()
		return
	}
	t.timer = nil
	t.mu.Unlock()

	t.action()
}
