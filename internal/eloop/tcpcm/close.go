package tcpcm

import (
	"golang.org/x/sys/unix"

	"eloop/internal/eloop/poller"
	"eloop/internal/eloop/status"
)

// CloseConnection initiates an asynchronous close: half-close the write
// side, drain any pending send tail, unregister from the poller, close
// the socket, then — on a later dispatch cycle — fire the final callback
// with status=ConnectionClosed and remove the connection record. The
// function itself returns before that final callback fires; the record
// stays present (kind=Closing) in the interim so a second CloseConnection
// on the same id observes InvalidState rather than NotFound.
func (m *Manager) CloseConnection(id ConnID) error {
	c, ok := m.conns[id]
	if !ok {
		return status.New(status.NotFound, "unknown connection id")
	}
	if c.kind == Closing {
		return status.New(status.InvalidState, "connection is already closing")
	}
	c.kind = Closing
	if len(c.sendTail) > 0 {
		unix.Write(c.fd, c.sendTail)
		c.sendTail = nil
	}
	unix.Shutdown(c.fd, unix.SHUT_WR)
	m.retireSocket(c)
	m.scheduleFinalize(c, status.New(status.ConnectionClosed, "connection closed"))
	return nil
}

// forceClose is the internal path used when a socket error or rejected
// connect means there is nothing left to drain or half-close.
func (m *Manager) forceClose(c *connection, cause error) {
	c.kind = Closing
	m.retireSocket(c)
	m.scheduleFinalize(c, cause)
}

// retireSocket unregisters and closes c's fd and drops it from
// connsByFD immediately, so the OS is free to reuse the fd number
// without colliding with a connection record still awaiting its final
// callback.
func (m *Manager) retireSocket(c *connection) {
	m.handle.Unregister(c.fd)
	closeFD(c.fd)
	delete(m.connsByFD, c.fd)
}

// scheduleFinalize defers the final callback and the connection's
// removal from m.conns to the next dispatch cycle, via the owning
// loop's delayed-callback queue.
func (m *Manager) scheduleFinalize(c *connection, cause error) {
	m.handle.Loop().AddDelayedCallback(func() {
		delete(m.conns, c.id)
		m.fire(c.id, c, cause, nil, nil)
		m.reenableAcceptIfBackpressured()
		m.maybeFinishStopping()
	})
}

// reenableAcceptIfBackpressured re-arms Read readiness on every
// listener once a connection has freed capacity, per the
// disable-accept-until-a-connection-closes backpressure policy.
func (m *Manager) reenableAcceptIfBackpressured() {
	if !m.backpressure {
		return
	}
	m.backpressure = false
	for fd := range m.listeners {
		m.handle.Modify(fd, poller.Read)
	}
}
