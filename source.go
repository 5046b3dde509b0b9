package eloop

import "eloop/internal/eloop/poller"

// SourceTag discriminates concrete Event Source kinds without the loop or
// the poller needing to know their types.
type SourceTag int

const (
	ConnectionManager SourceTag = iota + 1
	InterruptManager
)

func (t SourceTag) String() string {
	switch t {
	case ConnectionManager:
		return "ConnectionManager"
	case InterruptManager:
		return "InterruptManager"
	default:
		return "Unknown"
	}
}

// SourceState is an Event Source's lifecycle state, independent of the
// owning loop's own state.
type SourceState int

const (
	SourceFresh SourceState = iota
	SourceStopped
	SourceStarting
	SourceStarted
	SourceStopping
)

func (s SourceState) String() string {
	switch s {
	case SourceFresh:
		return "Fresh"
	case SourceStopped:
		return "Stopped"
	case SourceStarting:
		return "Starting"
	case SourceStarted:
		return "Started"
	case SourceStopping:
		return "Stopping"
	default:
		return "Unknown"
	}
}

// Handle is what a Source gets instead of a bare back-pointer to its
// owning Loop: it registers fds with the poller on the Source's behalf,
// and Loop() reaches the loop's timer/delayed-callback surface. Every fd
// a Source registers is
// tagged with the Handle's own registry id, not the Source's semantic
// Tag() — two Sources of the same kind (e.g. two TCP Connection
// Managers) must still route poller events to the one that actually
// owns the fd.
type Handle struct {
	loop *Loop
	id   uint64
}

// Register begins watching fd for interest on the owning loop's poller,
// routed back to this Handle's Source.
func (h Handle) Register(fd int, interest poller.Interest) error {
	return h.loop.poller.Register(fd, interest, poller.SourceTag(h.id))
}

// Modify changes the interest set for an already-registered fd.
func (h Handle) Modify(fd int, interest poller.Interest) error {
	return h.loop.poller.Modify(fd, interest)
}

// Unregister stops watching fd.
func (h Handle) Unregister(fd int) error {
	return h.loop.poller.Unregister(fd)
}

// Loop returns the owning *Loop, giving a Source its timers, delayed
// callbacks and clock. Since it is the Loop itself, its lifecycle methods
// (Stop, Free, ...) are reachable through it as well.
func (h Handle) Loop() *Loop { return h.loop }

// Source is the capability-set contract every concrete Event Source
// (TCP Connection Manager, Interrupt Manager, …) implements. There is no
// embedded base type: the Registry stores the interface value directly
// and a Handle stands in for the back-pointer a C-style base struct
// would otherwise carry.
type Source interface {
	// Name is unique within one loop; used by FindEventSource and
	// DeregisterEventSource.
	Name() string
	// Tag discriminates the concrete kind for diagnostics and
	// downcasting; poller events are routed by the Handle's registry id,
	// not by Tag.
	Tag() SourceTag
	// State reports the Source's own lifecycle state.
	State() SourceState
	// Start is called once, in registration order, when the owning loop
	// transitions to Started (or immediately, if registered onto an
	// already-started loop). h is retained for the Source's lifetime.
	Start(h Handle) error
	// Stop requests an asynchronous shutdown; the Source may take
	// several dispatch cycles to reach SourceStopped.
	Stop()
	// Free releases every resource the Source owns. Only called while
	// the Source is in SourceFresh or SourceStopped.
	Free() error
	// OnPollEvent is invoked by the loop's dispatch cycle for every
	// ready fd this Source registered with the poller.
	OnPollEvent(ev poller.Event)
}
