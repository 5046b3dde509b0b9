// Package eloop is a single-threaded, cooperative event loop: a timer
// heap, a cross-goroutine-safe delayed callback queue, a pluggable OS
// poller, and a registry of Event Sources (the TCP Connection Manager
// chief among them) that turn poller readiness into application
// callbacks. Nothing inside a dispatch cycle may block, and nothing but
// AddDelayedCallback may be called from a goroutine other than the one
// driving Run.
package eloop

import (
	"time"

	"eloop/internal/eloop/clock"
	"eloop/internal/eloop/delayed"
	"eloop/internal/elog"
	"eloop/internal/eloop/poller"
	"eloop/internal/eloop/timer"
)

// State is the Event Loop's own lifecycle state.
type State int

const (
	Fresh State = iota
	Started
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Fresh:
		return "Fresh"
	case Started:
		return "Started"
	case Stopping:
		return "Stopping"
	case Stopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// Loop is the Event Loop. Zero value is not usable; construct with New.
type Loop struct {
	logger elog.Logger
	clock  clock.Source

	state State

	timers  *timer.Heap
	delayed *delayed.Queue
	poller  poller.Poller
	reg     *registry

	pendingRemoval map[string]struct{} // deregistered, awaiting SourceStopped

	dispatching bool // reentrancy guard, set for the duration of Run
}

// New builds a fresh, unstarted Loop. The poller is not created until
// Start, matching the "start: ... initialize Poller" precondition.
func New(logger elog.Logger) *Loop {
	if logger == nil {
		logger = elog.Discard()
	}
	return &Loop{
		logger:         logger,
		clock:          clock.Realtime(),
		state:          Fresh,
		timers:         timer.New(),
		delayed:        delayed.New(),
		reg:            newRegistry(),
		pendingRemoval: make(map[string]struct{}),
	}
}

// SetClock overrides the loop's clock domain. Intended for tests
// injecting a clock.Simulated; must be called before Start.
func (l *Loop) SetClock(c clock.Source) {
	l.clock = c
}

// State reports the loop's own lifecycle state.
func (l *Loop) State() State { return l.state }

// Now returns the current wall-clock time from the loop's clock domain.
func (l *Loop) Now() time.Time { return l.clock.Now() }

// NowMonotonic returns the current monotonic time from the loop's clock
// domain, used for timer scheduling.
func (l *Loop) NowMonotonic() time.Time { return l.clock.Monotonic() }

// LocalUTCOffset reports the local timezone's current offset from UTC.
func (l *Loop) LocalUTCOffset() time.Duration {
	_, offsetSeconds := l.clock.Now().Zone()
	return time.Duration(offsetSeconds) * time.Second
}

// Start transitions Fresh or Stopped to Started: it initializes the
// poller and starts every registered Source in registration order. If a
// Source fails to start, Start aborts immediately and returns that
// error wrapped as OutOfResources (the Source's error is the cause);
// Sources already started remain started, matching the "abort
// and surface the first start failure" rule — the caller is expected to
// Stop then Free.
func (l *Loop) Start() error {
	if l.state != Fresh && l.state != Stopped {
		return newError(InvalidState, "Start requires state Fresh or Stopped, got "+l.state.String())
	}
	p, err := poller.New()
	if err != nil {
		return err
	}
	l.poller = p
	l.state = Started

	for _, es := range l.reg.all() {
		id, _ := l.reg.idOf(es.Name())
		if err := es.Start(Handle{loop: l, id: id}); err != nil {
			return wrapError(OutOfResources, "event source start failed: "+es.Name(), err)
		}
	}
	return nil
}

// Stop requests every Source to stop and transitions the loop to
// Stopping. It returns immediately; Run continues servicing cycles
// until every Source reports SourceStopped.
func (l *Loop) Stop() error {
	if l.state != Started {
		return newError(InvalidState, "Stop requires state Started, got "+l.state.String())
	}
	l.state = Stopping
	for _, es := range l.reg.all() {
		es.Stop()
	}
	return nil
}

// Free releases every owned resource — timer heap, delayed queue,
// poller, and every registered Source, freed in reverse registration
// order. Only legal while the loop is Fresh or Stopped.
func (l *Loop) Free() error {
	if l.state != Fresh && l.state != Stopped {
		return newError(InvalidState, "Free requires state Fresh or Stopped, got "+l.state.String())
	}
	for _, es := range l.reg.allReversed() {
		if err := es.Free(); err != nil {
			l.logger.Warnf("event source %s: free failed: %v", es.Name(), err)
		}
	}
	if l.poller != nil {
		if err := l.poller.Close(); err != nil {
			l.logger.Warnf("poller close failed: %v", err)
		}
		l.poller = nil
	}
	l.timers = timer.New()
	l.delayed = delayed.New()
	return nil
}

// RegisterEventSource attaches es to the loop. If the loop is already
// Started, es.Start is invoked immediately; otherwise it is deferred
// until Start.
func (l *Loop) RegisterEventSource(es Source) error {
	id, err := l.reg.add(es)
	if err != nil {
		return err
	}
	if l.state == Started {
		if err := es.Start(Handle{loop: l, id: id}); err != nil {
			l.reg.remove(es.Name())
			return wrapError(OutOfResources, "event source start failed: "+es.Name(), err)
		}
	}
	return nil
}

// DeregisterEventSource requests name's Source to stop and, once it
// reaches SourceStopped, removes it from the registry. It returns
// immediately; actual removal happens on a subsequent dispatch cycle
// once the Source finishes stopping.
func (l *Loop) DeregisterEventSource(name string) error {
	es, ok := l.reg.find(name)
	if !ok {
		return newError(NotFound, "no such event source: "+name)
	}
	es.Stop()
	if es.State() == SourceStopped {
		l.reg.remove(name)
		return nil
	}
	l.pendingRemoval[name] = struct{}{}
	return nil
}

// sweepRemovals removes every deregistered Source that has finished
// stopping since the last sweep. Run invokes this once per dispatch
// cycle so DeregisterEventSource's "removes it from the Registry once es
// reaches Stopped" contract is actually honored asynchronously.
func (l *Loop) sweepRemovals() {
	for name := range l.pendingRemoval {
		es, ok := l.reg.find(name)
		if !ok {
			delete(l.pendingRemoval, name)
			continue
		}
		if es.State() == SourceStopped {
			l.reg.remove(name)
			delete(l.pendingRemoval, name)
		}
	}
}

// FindEventSource returns the first Source registered under name.
func (l *Loop) FindEventSource(name string) (Source, bool) {
	return l.reg.find(name)
}

// AddDelayedCallback enqueues cb for execution at the start of the next
// dispatch cycle. This is the one Loop method safe to call from a
// goroutine other than the one driving Run.
func (l *Loop) AddDelayedCallback(cb delayed.Callback) {
	l.delayed.Push(cb)
	if l.poller != nil {
		l.poller.Wake()
	}
}

// Run executes exactly one dispatch cycle: drain the delayed queue, fire
// due timers, poll for I/O with a deadline bounded by timeout and the
// next timer, and dispatch ready fds to their owning Source. It returns
// the wall-clock time at which the next timer becomes due (or a
// far-future time if none is scheduled), and refuses to run reentrantly.
func (l *Loop) Run(timeout time.Duration) (time.Time, error) {
	if l.dispatching {
		return time.Time{}, newError(Internal, "Run called reentrantly")
	}
	l.dispatching = true
	defer func() { l.dispatching = false }()

	for _, cb := range l.delayed.DetachAll() {
		l.invokeDelayed(cb)
	}

	now := l.clock.Monotonic()
	nextTimer, hasTimer := l.timers.NextTime()

	deadline := now.Add(timeout)
	if hasTimer && nextTimer.Before(deadline) {
		deadline = nextTimer
	}
	if l.anySourceStopping() {
		deadline = now
	}
	if deadline.Before(now) {
		deadline = now
	}

	due := l.timers.PopDue(l.clock.Monotonic())
	for _, e := range due {
		l.invokeTimer(e)
	}

	events, err := l.poller.Wait(deadline)
	if err != nil {
		return time.Time{}, err
	}
	for _, ev := range events {
		if es, ok := l.reg.findByID(uint64(ev.Tag)); ok {
			l.dispatchPollEvent(es, ev)
		}
	}

	if l.state == Stopping && l.allSourcesStopped() {
		l.state = Stopped
	}
	l.sweepRemovals()

	next, ok := l.timers.NextTime()
	if !ok {
		next = l.clock.Now().Add(24 * time.Hour)
	}
	return next, nil
}

// invokeDelayed runs a delayed callback, catching and logging a panic so
// one broken callback cannot take down the whole dispatch cycle.
func (l *Loop) invokeDelayed(cb delayed.Callback) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Errorf("delayed callback panicked: %v", r)
		}
	}()
	cb()
}

// invokeTimer runs a due timer entry's callback, catching and logging a
// panic so one broken timer cannot take down the whole dispatch cycle.
func (l *Loop) invokeTimer(e *timer.Entry) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Errorf("timer callback panicked: %v", r)
		}
	}()
	e.Callback(e.NextFire)
}

// dispatchPollEvent delivers ev to es, catching and logging a panic so a
// broken Source cannot take down the whole dispatch cycle.
func (l *Loop) dispatchPollEvent(es Source, ev poller.Event) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Errorf("event source %s: OnPollEvent panicked: %v", es.Name(), r)
		}
	}()
	es.OnPollEvent(ev)
}

func (l *Loop) anySourceStopping() bool {
	for _, es := range l.reg.all() {
		if es.State() == SourceStopping {
			return true
		}
	}
	return false
}

func (l *Loop) allSourcesStopped() bool {
	for _, es := range l.reg.all() {
		if es.State() != SourceStopped {
			return false
		}
	}
	return true
}

