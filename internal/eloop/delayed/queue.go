// Package delayed implements the Delayed Queue: a FIFO of callbacks run
// exactly once at the start of the next dispatch cycle. Enqueue is the
// only operation in the whole event loop that is safe to call from a
// goroutine other than the one driving the loop.
package delayed

import "sync"

// Callback is the application pointer + context pointer + opaque data
// triple for a delayed callback, collapsed into a closure.
type Callback func()

// node is a singly-linked FIFO entry. The caller owns it until enqueue;
// the queue owns it from DetachAll until the Callback returns, at which
// point the loop simply drops it (Go's GC reclaims it — there is no
// explicit releaser to invoke, unlike a manual-memory reference
// implementation).
type node struct {
	cb   Callback
	next *node
}

// Queue is the FIFO itself: a mutex-guarded head/tail pair. Push is
// O(1) and safe from any goroutine; DetachAll swaps the list out in O(1)
// under the lock and is intended to be called only from the dispatching
// goroutine once per cycle.
type Queue struct {
	mu   sync.Mutex
	head *node
	tail *node
}

// New returns an empty delayed-callback queue.
func New() *Queue { return &Queue{} }

// Push enqueues cb to run at the start of the next dispatch cycle.
// Callbacks enqueued while a cycle is draining the queue are not visited
// by that cycle — they run on the next one, bounding per-cycle work.
func (q *Queue) Push(cb Callback) {
	n := &node{cb: cb}
	q.mu.Lock()
	if q.tail == nil {
		q.head = n
		q.tail = n
	} else {
		q.tail.next = n
		q.tail = n
	}
	q.mu.Unlock()
}

// DetachAll atomically swaps out the current queue contents for an empty
// queue and returns the detached callbacks in FIFO order, so callers drain
// them without holding the lock across callback execution. Building the
// returned slice is O(n) in the number of detached callbacks.
func (q *Queue) DetachAll() []Callback {
	q.mu.Lock()
	head := q.head
	q.head = nil
	q.tail = nil
	q.mu.Unlock()

	var out []Callback
	for n := head; n != nil; n = n.next {
		out = append(out, n.cb)
	}
	return out
}
