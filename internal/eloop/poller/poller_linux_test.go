//go:build linux

package poller

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func TestRegisterAndWaitOnPipe(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	fds := make([]int, 2)
	if err := unix.Pipe(fds); err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	if err := p.Register(fds[0], Read, SourceTag(1)); err != nil {
		t.Fatalf("Register: %v", err)
	}

	unix.Write(fds[1], []byte("x"))

	events, err := p.Wait(time.Now().Add(time.Second))
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	found := false
	for _, e := range events {
		if e.Fd == fds[0] && e.Readable && e.Tag == SourceTag(1) {
			found = true
		}
	}
	if !found {
		t.Errorf("expected readable event on registered fd, got %+v", events)
	}
}

func TestWaitRespectsDeadlineWhenIdle(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	start := time.Now()
	_, err = p.Wait(start.Add(30 * time.Millisecond))
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("Wait returned too early: %v", elapsed)
	}
}

func TestWakeInterruptsWait(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	done := make(chan struct{})
	go func() {
		p.Wait(time.Now().Add(5 * time.Second))
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	if err := p.Wake(); err != nil {
		t.Fatalf("Wake: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wake did not interrupt Wait within 1s")
	}
}

func TestUnregisterThenRegisterAgain(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	fds := make([]int, 2)
	unix.Pipe(fds)
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	if err := p.Register(fds[0], Read, SourceTag(1)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := p.Unregister(fds[0]); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	if err := p.Register(fds[0], Read, SourceTag(2)); err != nil {
		t.Fatalf("re-Register after Unregister: %v", err)
	}
}
