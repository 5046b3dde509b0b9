// Package poller abstracts the OS multiplexer the Event Loop drives: fd
// registration with read/write interest, and a bounded wait for readiness.
// The poller knows nothing about Connections; it routes readiness back to
// the SourceTag supplied at registration time, and the Event Loop hands
// that off to the owning Event Source.
package poller

import "time"

// Interest is the set of readiness conditions a registered fd is watched
// for.
type Interest int

const (
	Read Interest = 1 << iota
	Write
)

// SourceTag identifies which registered Event Source a ready fd belongs
// to, so the Poller can stay ignorant of Connections, listeners, or any
// other higher-level concept.
type SourceTag int

// Event reports one ready fd.
type Event struct {
	Fd      int
	Tag     SourceTag
	Readable bool
	Writable bool
	Error    bool
	Hangup   bool
}

// Poller is the multiplexer contract. Implementations may use epoll,
// kqueue, select, or WSAPoll; Wait must respect its deadline to within
// scheduler granularity, and spurious wakeups must be tolerated by
// callers.
type Poller interface {
	// Register begins watching fd for interest, associated with tag.
	Register(fd int, interest Interest, tag SourceTag) error
	// Modify changes the interest set for an already-registered fd.
	Modify(fd int, interest Interest) error
	// Unregister stops watching fd. Unregistering an fd that was never
	// registered is a no-op.
	Unregister(fd int) error
	// Wait blocks until at least one registered fd is ready, the
	// deadline passes, or the poller is woken via Wake. A zero deadline
	// means no deadline: Wait blocks until an fd is ready or Wake is
	// called. A deadline already in the past returns immediately.
	Wait(deadline time.Time) ([]Event, error)
	// Wake interrupts an in-progress or future Wait call. Safe to call
	// from any goroutine — this is how AddDelayedCallback, invoked off
	// the loop's goroutine, makes the poller notice new work.
	Wake() error
	// Close releases the poller's OS resources.
	Close() error
}
