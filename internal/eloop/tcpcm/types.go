// Package tcpcm is the TCP Connection Manager: a concrete eloop.Source
// that owns listening endpoints and live connections, translating
// poller readiness into application callbacks over non-blocking raw
// sockets registered directly with the poller, since a blocking
// net.Conn plus goroutine-per-connection model cannot run inside a
// single-threaded reactor.
package tcpcm

import (
	"eloop/internal/eloop/params"
)

// ConnID is a stable identifier for a connection, distinct from its raw
// file descriptor so ids stay valid across fd reuse after close.
type ConnID uint64

// Kind is a connection's position in its state machine.
type Kind int

const (
	Listening Kind = iota
	Accepted
	Connecting
	Established
	Closing
)

func (k Kind) String() string {
	switch k {
	case Listening:
		return "Listening"
	case Accepted:
		return "Accepted"
	case Connecting:
		return "Connecting"
	case Established:
		return "Established"
	case Closing:
		return "Closing"
	default:
		return "Unknown"
	}
}

// Callback is invoked for every lifecycle and data event on a
// connection: a successful accept/connect (status nil, empty payload),
// a receive (status nil, non-empty payload borrowed for the callback's
// duration only), or the final close (status non-nil, empty payload).
//
// ctx points at the connection's stored application context. Writing
// through it replaces the context from this point on — the next and
// every subsequent callback for this connection observes the new
// value, matching the "next and all subsequent" resolution of the
// context-overwrite question.
type Callback func(id ConnID, status error, payload []byte, p params.Map, ctx *any)

// Parameter names recognized under the reference namespace (0), exactly
// as listed in the External Interfaces table.
const (
	ParamListenPort      = "listen-port"
	ParamListenHostnames = "listen-hostnames"
	ParamRecvBufSize     = "recv-bufsize"
	ParamHostname        = "hostname"
	ParamPort            = "port"
	ParamRemoteHostname  = "remote-hostname"
	ParamResolveNumeric  = "resolve-numeric"
)

const defaultRecvBufSize = 16384
