package tcpcm

import (
	"eloop"
	"eloop/internal/eloop/buffer"
	"eloop/internal/eloop/params"
	"eloop/internal/eloop/poller"
	"eloop/internal/elog"
)

type listenEndpoint struct {
	fd   int
	addr string
}

type connection struct {
	id             ConnID
	fd             int
	kind           Kind
	ctx            any
	listenerAddr   string
	remoteHostname string
	sendTail       []byte
	resumeReceive  bool
}

// Manager is the TCP Connection Manager. Construct with New, Configure
// before RegisterEventSource, then let the owning Loop drive it.
type Manager struct {
	name   string
	logger elog.Logger
	cb     Callback

	params params.Map
	handle eloop.Handle
	state  eloop.SourceState

	alloc   *buffer.Allocator
	recvBuf *buffer.Owned // lazily pooled through alloc, reused across reads

	initialContext any

	listeners  map[int]*listenEndpoint
	conns      map[ConnID]*connection
	connsByFD  map[int]*connection
	nextConnID uint64

	backpressure bool

	bytesSent     uint64
	bytesReceived uint64
}

// ConnectionCount reports the number of live connections, for
// internal/eloop/stats-style periodic reporting.
func (m *Manager) ConnectionCount() int { return len(m.conns) }

// BytesSent reports the cumulative bytes successfully written across
// every connection this Manager has ever handled.
func (m *Manager) BytesSent() uint64 { return m.bytesSent }

// BytesReceived reports the cumulative bytes successfully read across
// every connection this Manager has ever handled.
func (m *Manager) BytesReceived() uint64 { return m.bytesReceived }

// New builds an unconfigured, unstarted Manager. cb is invoked for every
// connection lifecycle and data event this Manager produces.
func New(name string, logger elog.Logger, cb Callback) *Manager {
	if logger == nil {
		logger = elog.Discard()
	}
	alloc, _ := buffer.NewAllocator(buffer.DefaultSize)
	return &Manager{
		name:        name,
		logger:      logger,
		cb:          cb,
		params:      params.New(),
		state:       eloop.SourceFresh,
		alloc:     alloc,
		listeners: make(map[int]*listenEndpoint),
		conns:     make(map[ConnID]*connection),
		connsByFD: make(map[int]*connection),
	}
}

// Configure sets the Manager's config map, read at Start. Must be
// called before the owning Loop starts (or before RegisterEventSource,
// if registering onto a running loop).
func (m *Manager) Configure(p params.Map) {
	m.params = p
}

// SetInitialContext sets the application context every new connection
// starts with, corresponding to the spec's initialConnectionContext.
func (m *Manager) SetInitialContext(ctx any) {
	m.initialContext = ctx
}

func (m *Manager) Name() string            { return m.name }
func (m *Manager) Tag() eloop.SourceTag    { return eloop.ConnectionManager }
func (m *Manager) State() eloop.SourceState { return m.state }

func (m *Manager) Start(h eloop.Handle) error {
	m.handle = h
	m.state = eloop.SourceStarting

	if v, err := m.params.GetUint16(ParamRecvBufSize, defaultRecvBufSize); err == nil && v > 0 {
		if alloc, err := buffer.NewAllocator(int(v)); err == nil {
			m.alloc = alloc
		}
	}

	port, _ := m.params.GetUint16(ParamListenPort, 0)
	if port != 0 {
		if err := m.startListening(int(port)); err != nil {
			m.state = eloop.SourceStopped
			return err
		}
	}

	m.state = eloop.SourceStarted
	return nil
}

func (m *Manager) Stop() {
	m.state = eloop.SourceStopping
	for _, le := range m.listeners {
		m.closeListener(le)
	}
	for id := range m.conns {
		m.CloseConnection(id)
	}
	m.maybeFinishStopping()
}

func (m *Manager) Free() error {
	return nil
}

func (m *Manager) maybeFinishStopping() {
	if m.state == eloop.SourceStopping && len(m.listeners) == 0 && len(m.conns) == 0 {
		m.state = eloop.SourceStopped
	}
}

func (m *Manager) OnPollEvent(ev poller.Event) {
	if le, ok := m.listeners[ev.Fd]; ok {
		m.acceptLoop(le)
		return
	}
	c, ok := m.connsByFD[ev.Fd]
	if !ok {
		return
	}
	switch c.kind {
	case Connecting:
		m.completeConnect(c)
	default:
		if ev.Writable {
			m.flushSendTail(c)
		}
		if c.kind == Closing {
			return
		}
		if ev.Readable || ev.Hangup || ev.Error {
			m.handleReceive(c)
		}
	}
}

func (m *Manager) allocConnID() ConnID {
	m.nextConnID++
	return ConnID(m.nextConnID)
}

func (m *Manager) fire(id ConnID, c *connection, statusErr error, payload []byte, p params.Map) {
	if m.cb == nil {
		return
	}
	if p == nil {
		p = params.New()
	}
	m.cb(id, statusErr, payload, p, &c.ctx)
}
