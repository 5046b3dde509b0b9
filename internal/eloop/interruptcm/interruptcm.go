// Package interruptcm is a second concrete eloop.Source: it turns
// os/signal deliveries into poll-loop callbacks via a self-pipe, so a
// process can react to SIGINT/SIGTERM without a side goroutine racing
// the loop's own dispatch thread.
package interruptcm

import (
	"os"
	"os/signal"
	"sync"

	"golang.org/x/sys/unix"

	"eloop"
	"eloop/internal/eloop/poller"
	"eloop/internal/eloop/status"
	"eloop/internal/elog"
)

// Callback is invoked once per signal delivery, on the loop's own
// goroutine during OnPollEvent.
type Callback func(sig os.Signal)

// Manager is the interrupt Event Source. Construct with New, register
// it with a Loop like any other Source.
type Manager struct {
	name   string
	logger elog.Logger
	cb     Callback
	sigs   []os.Signal

	handle  eloop.Handle
	state   eloop.SourceState
	sigCh   chan os.Signal
	readFd  int
	writeFd int

	mu      sync.Mutex
	pending []os.Signal
}

// New builds an unstarted Manager that reports sigs (default
// SIGINT/SIGTERM if none given) to cb.
func New(name string, logger elog.Logger, cb Callback, sigs ...os.Signal) *Manager {
	if logger == nil {
		logger = elog.Discard()
	}
	if len(sigs) == 0 {
		sigs = []os.Signal{unix.SIGINT, unix.SIGTERM}
	}
	return &Manager{
		name:   name,
		logger: logger,
		cb:     cb,
		sigs:   sigs,
		state:  eloop.SourceFresh,
	}
}

func (m *Manager) Name() string            { return m.name }
func (m *Manager) Tag() eloop.SourceTag    { return eloop.InterruptManager }
func (m *Manager) State() eloop.SourceState { return m.state }

// Start opens the self-pipe, registers its read end with the poller,
// and begins forwarding signal.Notify deliveries into it.
func (m *Manager) Start(h eloop.Handle) error {
	m.handle = h
	m.state = eloop.SourceStarting

	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		m.state = eloop.SourceStopped
		return status.Wrap(status.OutOfResources, "pipe", err)
	}
	unix.SetNonblock(fds[0], true)
	unix.SetNonblock(fds[1], true)
	m.readFd, m.writeFd = fds[0], fds[1]

	if err := m.handle.Register(m.readFd, poller.Read); err != nil {
		unix.Close(m.readFd)
		unix.Close(m.writeFd)
		m.state = eloop.SourceStopped
		return err
	}

	m.sigCh = make(chan os.Signal, 8)
	signal.Notify(m.sigCh, m.sigs...)
	go m.forward()

	m.state = eloop.SourceStarted
	return nil
}

// forward queues every signal.Notify delivery onto m.pending and pokes
// the self-pipe, so OnPollEvent learns about them through the ordinary
// poll cycle instead of racing the loop's goroutine directly.
func (m *Manager) forward() {
	for sig := range m.sigCh {
		m.mu.Lock()
		m.pending = append(m.pending, sig)
		m.mu.Unlock()
		unix.Write(m.writeFd, []byte{1})
	}
}

func (m *Manager) Stop() {
	m.state = eloop.SourceStopping
	signal.Stop(m.sigCh)
	close(m.sigCh)
	m.state = eloop.SourceStopped
}

func (m *Manager) Free() error {
	if m.readFd != 0 {
		m.handle.Unregister(m.readFd)
		unix.Close(m.readFd)
		unix.Close(m.writeFd)
	}
	return nil
}

// OnPollEvent drains the self-pipe (clearing its readiness) and then
// drains m.pending, firing cb once per queued signal. The pipe itself
// carries no payload — it only wakes the poller; forward is the single
// writer of m.pending, so there is no race over which goroutine
// consumes a given signal.
func (m *Manager) OnPollEvent(ev poller.Event) {
	if ev.Fd != m.readFd {
		return
	}
	var buf [64]byte
	for {
		n, err := unix.Read(m.readFd, buf[:])
		if err != nil || n < len(buf) {
			break
		}
	}

	m.mu.Lock()
	pending := m.pending
	m.pending = nil
	m.mu.Unlock()

	if m.cb == nil {
		return
	}
	for _, sig := range pending {
		m.cb(sig)
	}
}
