package tcpcm

import (
	"net"

	"eloop/internal/eloop/params"
	"eloop/internal/eloop/poller"
	"eloop/internal/eloop/status"
)

// OpenConnection begins an outbound connection per the "hostname"/"port"
// parameters. It returns synchronously once the kernel has accepted the
// connect request (or rejected it outright, e.g. bad address); the
// eventual outcome — Established or ConnectionRejected — arrives later
// through the Callback.
func (m *Manager) OpenConnection(p params.Map) (ConnID, error) {
	hostname, err := p.RequireString(ParamHostname)
	if err != nil {
		return 0, err
	}
	port, err := p.RequireUint16(ParamPort)
	if err != nil {
		return 0, err
	}

	resolveNumeric, _ := p.GetBool(ParamResolveNumeric, false)
	var ip net.IP
	if resolveNumeric {
		ip = net.ParseIP(hostname)
		if ip == nil {
			return 0, status.New(status.InvalidArgument, "resolve-numeric set but hostname is not a numeric address")
		}
	} else {
		ips, err := net.DefaultResolver.LookupIP(contextBackground(), "ip", hostname)
		if err != nil || len(ips) == 0 {
			return 0, status.Wrap(status.ConnectionRejected, "resolve hostname "+hostname, err)
		}
		ip = ips[0]
	}

	fd, inProgress, err := newConnectSocket(ip, int(port))
	if err != nil {
		return 0, err
	}
	configureConn(fd)

	id := m.allocConnID()
	c := &connection{
		id:             id,
		fd:             fd,
		kind:           Connecting,
		ctx:            m.initialContext,
		remoteHostname: hostname,
	}
	m.conns[id] = c
	m.connsByFD[fd] = c

	interest := poller.Write
	if !inProgress {
		interest = poller.Read | poller.Write
	}
	if err := m.handle.Register(fd, interest); err != nil {
		delete(m.conns, id)
		delete(m.connsByFD, fd)
		closeFD(fd)
		return 0, err
	}

	if !inProgress {
		m.completeConnect(c)
	}
	return id, nil
}

func (m *Manager) completeConnect(c *connection) {
	if err := socketError(c.fd); err != nil {
		m.forceClose(c, err)
		return
	}
	c.kind = Established
	m.handle.Modify(c.fd, poller.Read)
	m.fire(c.id, c, nil, nil, nil)
}
