//go:build !linux

package poller

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"eloop/internal/eloop/status"
)

// selectPoller is the portable reference fallback used on non-Linux dev
// machines. It is not optimized — it rebuilds fd sets from scratch every
// Wait — but it implements the same contract, including wakeup via a
// self-pipe (an eventfd is used on Linux instead).
type selectPoller struct {
	mu         sync.Mutex
	interests  map[int]Interest
	tags       map[int]SourceTag
	wakeR      int
	wakeW      int
	closed     bool
}

// golang.org/x/sys/unix exposes FdSet as a raw bitmask struct with no
// Set/IsSet helpers (unlike epoll's event-list API), so select's fd_set
// manipulation is done by hand here, matching the bit width of
// unix.FdSet.Bits on every platform it's defined for (64-bit words).
func fdSet(set *unix.FdSet, fd int) {
	set.Bits[fd/64] |= 1 << (uint(fd) % 64)
}

func fdIsSet(set *unix.FdSet, fd int) bool {
	return set.Bits[fd/64]&(1<<(uint(fd)%64)) != 0
}

// New returns the select-backed Poller.
func New() (Poller, error) {
	fds := make([]int, 2)
	if err := unix.Pipe(fds); err != nil {
		return nil, status.Wrap(status.OutOfResources, "pipe", err)
	}
	unix.SetNonblock(fds[0], true)
	unix.SetNonblock(fds[1], true)
	return &selectPoller{
		interests: make(map[int]Interest),
		tags:      make(map[int]SourceTag),
		wakeR:     fds[0],
		wakeW:     fds[1],
	}, nil
}

func (p *selectPoller) Register(fd int, interest Interest, tag SourceTag) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return status.New(status.InvalidState, "poller is closed")
	}
	p.interests[fd] = interest
	p.tags[fd] = tag
	return nil
}

func (p *selectPoller) Modify(fd int, interest Interest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.interests[fd] = interest
	return nil
}

func (p *selectPoller) Unregister(fd int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.interests, fd)
	delete(p.tags, fd)
	return nil
}

func (p *selectPoller) Wake() error {
	var buf [1]byte
	_, err := unix.Write(p.wakeW, buf[:])
	if err != nil && err != unix.EAGAIN {
		return status.Wrap(status.Internal, "pipe write", err)
	}
	return nil
}

func (p *selectPoller) drainWake() {
	var buf [64]byte
	for {
		_, err := unix.Read(p.wakeR, buf[:])
		if err != nil {
			return
		}
	}
}

func (p *selectPoller) Wait(deadline time.Time) ([]Event, error) {
	p.mu.Lock()
	var rfds, wfds unix.FdSet
	maxFd := p.wakeR
	fdSet(&rfds, p.wakeR)
	for fd, interest := range p.interests {
		if interest&Read != 0 {
			fdSet(&rfds, fd)
		}
		if interest&Write != 0 {
			fdSet(&wfds, fd)
		}
		if fd > maxFd {
			maxFd = fd
		}
	}
	tags := p.tags
	p.mu.Unlock()

	var tv *unix.Timeval
	if !deadline.IsZero() {
		d := time.Until(deadline)
		if d < 0 {
			d = 0
		}
		t := unix.NsecToTimeval(d.Nanoseconds())
		tv = &t
	}

	_, err := unix.Select(maxFd+1, &rfds, &wfds, nil, tv)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, status.Wrap(status.Internal, "select", err)
	}

	var events []Event
	if fdIsSet(&rfds, p.wakeR) {
		p.drainWake()
	}
	for fd, tag := range tags {
		r := fdIsSet(&rfds, fd)
		w := fdIsSet(&wfds, fd)
		if r || w {
			events = append(events, Event{Fd: fd, Tag: tag, Readable: r, Writable: w})
		}
	}
	return events, nil
}

func (p *selectPoller) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	unix.Close(p.wakeR)
	unix.Close(p.wakeW)
	return nil
}
