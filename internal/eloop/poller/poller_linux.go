//go:build linux

package poller

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"eloop/internal/eloop/status"
)

// epollPoller is the Linux implementation, backed by an epoll instance
// plus an eventfd used purely to interrupt EpollWait from another
// goroutine (AddDelayedCallback's only job with respect to the poller).
type epollPoller struct {
	mu     sync.Mutex
	epfd   int
	wakeFd int
	tags   map[int]SourceTag
	buf    []unix.EpollEvent
	closed bool
}

// New returns the epoll-backed Poller.
func New() (Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, status.Wrap(status.OutOfResources, "epoll_create1", err)
	}
	wakeFd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		unix.Close(epfd)
		return nil, status.Wrap(status.OutOfResources, "eventfd", err)
	}
	p := &epollPoller{
		epfd:   epfd,
		wakeFd: wakeFd,
		tags:   make(map[int]SourceTag),
		buf:    make([]unix.EpollEvent, 128),
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakeFd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakeFd, &ev); err != nil {
		unix.Close(epfd)
		unix.Close(wakeFd)
		return nil, status.Wrap(status.OutOfResources, "epoll_ctl(wake fd)", err)
	}
	return p, nil
}

func toEpollEvents(i Interest) uint32 {
	var e uint32
	if i&Read != 0 {
		e |= unix.EPOLLIN
	}
	if i&Write != 0 {
		e |= unix.EPOLLOUT
	}
	return e
}

func (p *epollPoller) Register(fd int, interest Interest, tag SourceTag) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return status.New(status.InvalidState, "poller is closed")
	}
	ev := unix.EpollEvent{Events: toEpollEvents(interest), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return status.Wrap(status.OutOfResources, "epoll_ctl(add)", err)
	}
	p.tags[fd] = tag
	return nil
}

func (p *epollPoller) Modify(fd int, interest Interest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	ev := unix.EpollEvent{Events: toEpollEvents(interest), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return status.Wrap(status.OutOfResources, "epoll_ctl(mod)", err)
	}
	return nil
}

func (p *epollPoller) Unregister(fd int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.tags, fd)
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil && err != unix.ENOENT {
		return status.Wrap(status.OutOfResources, "epoll_ctl(del)", err)
	}
	return nil
}

func (p *epollPoller) Wake() error {
	var buf [8]byte
	buf[7] = 1
	_, err := unix.Write(p.wakeFd, buf[:])
	if err != nil && err != unix.EAGAIN {
		return status.Wrap(status.Internal, "eventfd write", err)
	}
	return nil
}

func (p *epollPoller) drainWake() {
	var buf [8]byte
	for {
		_, err := unix.Read(p.wakeFd, buf[:])
		if err != nil {
			return
		}
	}
}

func (p *epollPoller) Wait(deadline time.Time) ([]Event, error) {
	timeoutMs := -1
	if !deadline.IsZero() {
		d := time.Until(deadline)
		if d < 0 {
			d = 0
		}
		timeoutMs = int(d / time.Millisecond)
	}

	n, err := unix.EpollWait(p.epfd, p.buf, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, status.Wrap(status.Internal, "epoll_wait", err)
	}

	var events []Event
	p.mu.Lock()
	for i := 0; i < n; i++ {
		raw := p.buf[i]
		fd := int(raw.Fd)
		if fd == p.wakeFd {
			p.drainWake()
			continue
		}
		tag, ok := p.tags[fd]
		if !ok {
			continue
		}
		events = append(events, Event{
			Fd:       fd,
			Tag:      tag,
			Readable: raw.Events&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLERR) != 0,
			Writable: raw.Events&unix.EPOLLOUT != 0,
			Error:    raw.Events&unix.EPOLLERR != 0,
			Hangup:   raw.Events&unix.EPOLLHUP != 0,
		})
	}
	p.mu.Unlock()
	return events, nil
}

func (p *epollPoller) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	unix.Close(p.wakeFd)
	return unix.Close(p.epfd)
}
