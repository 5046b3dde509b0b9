package tcpcm

import (
	"golang.org/x/sys/unix"

	"eloop/internal/eloop/buffer"
	"eloop/internal/eloop/poller"
	"eloop/internal/eloop/status"
)

// AllocNetworkBuffer returns an Owned buffer sized for this Manager's
// recv-bufsize/send path. Callers fill it (calling Resize with the actual
// payload length) and pass it to SendWithConnection.
func (m *Manager) AllocNetworkBuffer() *buffer.Owned {
	return m.alloc.Get()
}

// SendWithConnection queues buf's contents for delivery on id. buf's
// memory is always released by this call, whether or not the whole
// payload went out synchronously. Sending on a Closing connection
// fails with ConnectionClosed and still releases buf.
func (m *Manager) SendWithConnection(id ConnID, buf *buffer.Owned) error {
	defer buf.Release()

	c, ok := m.conns[id]
	if !ok {
		return status.New(status.NotFound, "unknown connection id")
	}
	if c.kind == Closing {
		return status.New(status.ConnectionClosed, "connection is closing")
	}

	data := buf.Bytes()
	if len(c.sendTail) > 0 {
		// Already have a queued tail; append behind it to preserve order.
		c.sendTail = append(c.sendTail, data...)
		return nil
	}

	n, err := writeNonBlocking(c.fd, data)
	m.bytesSent += uint64(n)
	if err != nil {
		wrapped := status.Wrap(status.ConnectionClosed, "send", err)
		m.forceClose(c, wrapped)
		return wrapped
	}
	if n < len(data) {
		c.sendTail = append([]byte(nil), data[n:]...)
		m.handle.Modify(c.fd, poller.Read|poller.Write)
	}
	return nil
}

// writeNonBlocking loops a non-blocking write until it would block or
// the buffer is exhausted, returning the number of bytes actually
// written.
func writeNonBlocking(fd int, data []byte) (int, error) {
	total := 0
	for total < len(data) {
		n, err := unix.Write(fd, data[total:])
		if n > 0 {
			total += n
		}
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return total, nil
			}
			return total, err
		}
		if n == 0 {
			return total, nil
		}
	}
	return total, nil
}

// flushSendTail is called on Write readiness to drain a connection's
// queued tail buffer.
func (m *Manager) flushSendTail(c *connection) {
	if len(c.sendTail) == 0 {
		m.handle.Modify(c.fd, poller.Read)
		return
	}
	n, err := writeNonBlocking(c.fd, c.sendTail)
	m.bytesSent += uint64(n)
	if err != nil {
		m.forceClose(c, status.Wrap(status.ConnectionClosed, "flush send tail", err))
		return
	}
	c.sendTail = c.sendTail[n:]
	if len(c.sendTail) == 0 {
		m.handle.Modify(c.fd, poller.Read)
	}
}
