package timer

import "time"

// Policy governs how a cyclic entry's next-fire time is recomputed after
// a fire.
type Policy int

const (
	// OnceInCurrent recomputes next = scheduled + interval, so a lagging
	// loop catches up by firing once for every missed slot, in order.
	OnceInCurrent Policy = iota
	// CurrentTime recomputes next = fireTime + interval, skipping any
	// slots missed while the loop was behind and preserving cadence
	// relative to real elapsed time instead of the original schedule.
	CurrentTime
)

func (p Policy) String() string {
	switch p {
	case OnceInCurrent:
		return "OnceInCurrent"
	case CurrentTime:
		return "CurrentTime"
	default:
		return "Unknown"
	}
}

// reschedule computes the next fire time for a cyclic entry that was
// scheduled to fire at sched and actually fired at fireTime.
func reschedule(p Policy, sched, fireTime time.Time, interval time.Duration) time.Time {
	switch p {
	case CurrentTime:
		return fireTime.Add(interval)
	default: // OnceInCurrent
		return sched.Add(interval)
	}
}

// firstFire computes the first fire time for a cyclic entry added at now
// with the given interval and optional phase-aligning base time. When base
// is the zero Time, phase alignment is skipped and the first fire is
// simply now+interval.
func firstFire(now, base time.Time, interval time.Duration) time.Time {
	if base.IsZero() || interval <= 0 {
		return now.Add(interval)
	}
	// Smallest base + k*interval >= now.
	if !base.Before(now) {
		return base
	}
	elapsed := now.Sub(base)
	k := elapsed / interval
	next := base.Add(k * interval)
	for next.Before(now) {
		next = next.Add(interval)
	}
	return next
}
