package eloop

import (
	"time"

	"eloop/internal/eloop/timer"
)

// TimerCallback is invoked when a timer fires, with the wall-clock fire
// time it was due at.
type TimerCallback func(fireTime time.Time)

// AddCyclic schedules a repeating timer. base anchors the phase (pass the
// zero time to mean "first fire is simply now+interval"); policy controls
// how missed fires are caught up, see timer.Policy.
func (l *Loop) AddCyclic(cb TimerCallback, interval time.Duration, base time.Time, policy timer.Policy) (uint64, error) {
	return l.timers.AddCyclic(l.clock.Monotonic(), timer.Callback(cb), interval, base, policy)
}

// AddTimed schedules a one-shot timer for the given wall-clock time.
func (l *Loop) AddTimed(cb TimerCallback, when time.Time) (uint64, error) {
	return l.timers.AddTimed(timer.Callback(cb), when)
}

// ModifyCyclic changes a cyclic timer's interval, base, and policy in
// place, recomputing its next fire time.
func (l *Loop) ModifyCyclic(id uint64, interval time.Duration, base time.Time, policy timer.Policy) error {
	return l.timers.ModifyCyclic(l.clock.Monotonic(), id, interval, base, policy)
}

// RemoveCyclic cancels a cyclic timer. Removing an unknown or already
// one-shot-fired id is a no-op.
func (l *Loop) RemoveCyclic(id uint64) {
	l.timers.RemoveCyclic(id)
}
