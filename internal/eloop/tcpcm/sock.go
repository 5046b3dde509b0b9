package tcpcm

import (
	"net"

	"golang.org/x/sys/unix"

	"eloop/internal/eloop/status"
)

func ipToSockaddr(ip net.IP, port int) (unix.Sockaddr, error) {
	if v4 := ip.To4(); v4 != nil {
		var sa unix.SockaddrInet4
		sa.Port = port
		copy(sa.Addr[:], v4)
		return &sa, nil
	}
	v6 := ip.To16()
	if v6 == nil {
		return nil, status.New(status.InvalidArgument, "address is neither IPv4 nor IPv6")
	}
	var sa unix.SockaddrInet6
	sa.Port = port
	copy(sa.Addr[:], v6)
	return &sa, nil
}

func sockaddrToIPPort(sa unix.Sockaddr) (net.IP, int) {
	switch s := sa.(type) {
	case *unix.SockaddrInet4:
		return net.IP(s.Addr[:]), s.Port
	case *unix.SockaddrInet6:
		return net.IP(s.Addr[:]), s.Port
	default:
		return nil, 0
	}
}

// newListenSocket creates, binds, and listens on a non-blocking socket
// for ip:port, with SO_REUSEADDR so restarts don't fail on TIME_WAIT.
func newListenSocket(ip net.IP, port int) (int, error) {
	domain := unix.AF_INET
	if ip.To4() == nil {
		domain = unix.AF_INET6
	}
	fd, err := unix.Socket(domain, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, status.Wrap(status.OutOfResources, "socket", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, status.Wrap(status.Internal, "set nonblocking", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, status.Wrap(status.Internal, "setsockopt SO_REUSEADDR", err)
	}
	sa, err := ipToSockaddr(ip, port)
	if err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return -1, status.Wrap(status.OutOfResources, "bind", err)
	}
	if err := unix.Listen(fd, 128); err != nil {
		unix.Close(fd)
		return -1, status.Wrap(status.OutOfResources, "listen", err)
	}
	return fd, nil
}

// newConnectSocket creates a non-blocking socket and begins a connect to
// ip:port. A nil error with inProgress=true means the connect is
// underway and completion must be observed via Write readiness.
func newConnectSocket(ip net.IP, port int) (fd int, inProgress bool, err error) {
	domain := unix.AF_INET
	if ip.To4() == nil {
		domain = unix.AF_INET6
	}
	fd, err = unix.Socket(domain, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, false, status.Wrap(status.OutOfResources, "socket", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, false, status.Wrap(status.Internal, "set nonblocking", err)
	}
	sa, err := ipToSockaddr(ip, port)
	if err != nil {
		unix.Close(fd)
		return -1, false, err
	}
	err = unix.Connect(fd, sa)
	if err == nil {
		return fd, false, nil
	}
	if err == unix.EINPROGRESS {
		return fd, true, nil
	}
	unix.Close(fd)
	return -1, false, status.Wrap(status.ConnectionRejected, "connect", err)
}

// configureConn applies TCP_NODELAY and keepalive directly via
// setsockopt, since there is no net.TCPConn here.
func configureConn(fd int) {
	unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1)
}

// boundPort returns requested if it is non-zero, otherwise asks the
// kernel what port it actually picked for fd.
func boundPort(fd int, requested int) int {
	if requested != 0 {
		return requested
	}
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return 0
	}
	_, port := sockaddrToIPPort(sa)
	return port
}

// socketError reads and clears SO_ERROR, used after a connect's Write
// readiness fires to find out whether the connect actually succeeded.
func socketError(fd int) error {
	errno, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return status.Wrap(status.Internal, "getsockopt SO_ERROR", err)
	}
	if errno != 0 {
		return status.Wrap(status.ConnectionRejected, "connect failed", unix.Errno(errno))
	}
	return nil
}
