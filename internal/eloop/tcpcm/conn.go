package tcpcm

import (
	"golang.org/x/sys/unix"

	"eloop/internal/eloop/buffer"
	"eloop/internal/eloop/status"
)

// handleReceive reads once into the Manager's pooled receive buffer on
// Read readiness of an Established connection, delivering at most one
// payload per dispatch to keep per-cycle work bounded; the poller
// re-arms on the next cycle if more is pending. The buffer is allocated
// through m.alloc and handed to the callback as a Borrowed view: the
// Connection Manager still owns the memory, and it is only valid for the
// duration of the callback, since the next read reuses it.
func (m *Manager) handleReceive(c *connection) {
	if m.recvBuf == nil {
		m.recvBuf = m.alloc.Get()
	}
	n, err := unix.Read(c.fd, m.recvBuf.Bytes())
	switch {
	case err == nil && n > 0:
		m.bytesReceived += uint64(n)
		view := buffer.NewBorrowed(m.recvBuf.Bytes()[:n])
		m.fire(c.id, c, nil, view.Bytes(), nil)
	case err == nil && n == 0:
		m.CloseConnection(c.id)
	case err == unix.EAGAIN || err == unix.EWOULDBLOCK:
		// nothing to read this cycle
	default:
		m.forceClose(c, status.Wrap(status.ConnectionClosed, "receive", err))
	}
}
