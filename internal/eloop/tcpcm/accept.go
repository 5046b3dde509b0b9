package tcpcm

import (
	"net"

	"golang.org/x/sys/unix"

	"eloop/internal/eloop/params"
	"eloop/internal/eloop/poller"
)

// acceptLoop drains every pending connection on a ready listening
// socket, since edge-independent readiness only guarantees "at least
// one" is pending.
func (m *Manager) acceptLoop(le *listenEndpoint) {
	for {
		fd, sa, err := unix.Accept(le.fd)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return
			}
			if err == unix.EMFILE || err == unix.ENFILE {
				m.logger.Warnf("tcpcm %s: accept on %s: %v (disabling accept readiness until a connection closes)", m.name, le.addr, err)
				m.backpressure = true
				m.handle.Modify(le.fd, 0)
				return
			}
			m.logger.Warnf("tcpcm %s: accept on %s: %v", m.name, le.addr, err)
			return
		}
		m.acceptOne(le, fd, sa)
	}
}

func (m *Manager) acceptOne(le *listenEndpoint, fd int, sa unix.Sockaddr) {
	if err := unix.SetNonblock(fd, true); err != nil {
		closeFD(fd)
		m.logger.Warnf("tcpcm %s: accept: set nonblocking: %v", m.name, err)
		return
	}
	configureConn(fd)

	remoteHostname := m.reverseResolve(sa)

	id := m.allocConnID()
	c := &connection{
		id:             id,
		fd:             fd,
		kind:           Established,
		ctx:            m.initialContext,
		listenerAddr:   le.addr,
		remoteHostname: remoteHostname,
	}
	m.conns[id] = c
	m.connsByFD[fd] = c

	if err := m.handle.Register(fd, poller.Read); err != nil {
		m.logger.Warnf("tcpcm %s: register accepted fd: %v", m.name, err)
		m.forceClose(c, err)
		return
	}

	p := params.New()
	p.Set(ParamRemoteHostname, params.String(remoteHostname))
	m.fire(id, c, nil, nil, p)
}

func (m *Manager) reverseResolve(sa unix.Sockaddr) string {
	resolveNumeric, _ := m.params.GetBool(ParamResolveNumeric, false)
	ip, _ := sockaddrToIPPort(sa)
	if ip == nil {
		return ""
	}
	if resolveNumeric {
		return ip.String()
	}
	names, err := net.DefaultResolver.LookupAddr(contextBackground(), ip.String())
	if err != nil || len(names) == 0 {
		return ip.String()
	}
	return names[0]
}
