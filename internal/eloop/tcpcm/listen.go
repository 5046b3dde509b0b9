package tcpcm

import (
	"net"

	"eloop/internal/eloop/poller"
	"eloop/internal/eloop/status"
)

// startListening resolves every configured listen hostname to concrete
// addresses, binds+listens on each, and registers each with the
// poller. Partial failure is tolerated: the Source still reaches
// Started as long as at least one endpoint succeeded. If every
// candidate endpoint fails, startListening itself fails.
func (m *Manager) startListening(port int) error {
	hostnames, err := m.params.GetStrings(ParamListenHostnames)
	if err != nil {
		return err
	}
	if len(hostnames) == 0 {
		hostnames = []string{""}
	}

	var ips []net.IP
	for _, h := range hostnames {
		if h == "" {
			ips = append(ips, net.IPv4zero, net.IPv6zero)
			continue
		}
		resolved, err := net.DefaultResolver.LookupIP(contextBackground(), "ip", h)
		if err != nil {
			m.logger.Warnf("tcpcm %s: resolve listen hostname %q: %v", m.name, h, err)
			continue
		}
		ips = append(ips, resolved...)
	}

	started := 0
	for _, ip := range ips {
		fd, err := newListenSocket(ip, port)
		if err != nil {
			m.logger.Warnf("tcpcm %s: listen on %s:%d failed: %v", m.name, ip, port, err)
			continue
		}
		if err := m.handle.Register(fd, poller.Read); err != nil {
			m.logger.Warnf("tcpcm %s: register listener fd failed: %v", m.name, err)
			closeFD(fd)
			continue
		}
		addr := net.JoinHostPort(ip.String(), itoa(boundPort(fd, port)))
		m.listeners[fd] = &listenEndpoint{fd: fd, addr: addr}
		started++
		m.logger.Debugf("tcpcm %s: listening on %s", m.name, addr)
	}

	if started == 0 {
		return status.New(status.OutOfResources, "every listen endpoint failed to bind")
	}
	return nil
}

// ListenAddrs reports every address this Manager successfully bound to,
// in "ip:port" form — useful when listen-port was left to the kernel to
// choose (port 0).
func (m *Manager) ListenAddrs() []string {
	addrs := make([]string, 0, len(m.listeners))
	for _, le := range m.listeners {
		addrs = append(addrs, le.addr)
	}
	return addrs
}

func (m *Manager) closeListener(le *listenEndpoint) {
	m.handle.Unregister(le.fd)
	closeFD(le.fd)
	delete(m.listeners, le.fd)
}
