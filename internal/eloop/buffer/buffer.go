// Package buffer provides the sized, pooled byte buffers the TCP Connection
// Manager hands to callers. Two distinct types exist because the two
// directions have different ownership rules: a Borrowed buffer is a
// read-only view into memory the Connection Manager still owns (valid only
// for the duration of the receive callback), while an Owned buffer has been
// handed off to the caller (for a send) or to the caller by the Connection
// Manager (if ever copied out) and must be released back to its pool.
package buffer

import (
	"sync"

	"eloop/internal/eloop/status"
)

const (
	// MinSize is the smallest buffer size an Allocator will accept.
	MinSize = 1024
	// MaxSize is the largest buffer size an Allocator will accept, to
	// keep a misconfigured pool from exhausting memory.
	MaxSize = 10 * 1024 * 1024
	// DefaultSize is used when configuration does not override it.
	DefaultSize = 32 * 1024
)

// Allocator is a sized pool of reusable byte slices. Every Owned buffer it
// hands out is exactly Size() bytes; callers needing less simply use a
// prefix of it.
type Allocator struct {
	size int
	pool sync.Pool
}

// NewAllocator builds an Allocator producing buffers of the given size.
func NewAllocator(size int) (*Allocator, error) {
	if size < MinSize || size > MaxSize {
		return nil, status.New(status.InvalidArgument, "buffer size out of range")
	}
	a := &Allocator{size: size}
	a.pool.New = func() any {
		b := make([]byte, a.size)
		return &b
	}
	return a, nil
}

// Size reports the fixed size of buffers this Allocator produces.
func (a *Allocator) Size() int { return a.size }

// Get returns an Owned buffer drawn from the pool.
func (a *Allocator) Get() *Owned {
	b := a.pool.Get().(*[]byte)
	return &Owned{buf: b, n: len(*b), pool: &a.pool}
}

// Owned is a buffer the holder is responsible for releasing exactly once.
// It is used for outbound data: the caller fills it, hands it to Send, and
// the Connection Manager releases it once the write completes (or fails).
type Owned struct {
	buf      *[]byte
	n        int
	pool     *sync.Pool
	released bool
}

// Bytes returns the logical slice: the full backing buffer, or the prefix
// set by Resize. The backing array is never reallocated or reordered, so
// the pool always gets back a full-size buffer on Release.
func (o *Owned) Bytes() []byte {
	if o.buf == nil {
		return nil
	}
	return (*o.buf)[:o.n]
}

// Resize narrows the buffer's reported length to n, for callers that only
// filled a prefix of it. n must not exceed the allocator's configured
// size.
func (o *Owned) Resize(n int) error {
	if o.buf == nil || n < 0 || n > len(*o.buf) {
		return status.New(status.InvalidArgument, "resize out of range")
	}
	o.n = n
	return nil
}

// Release returns the buffer to its pool. Safe to call at most once;
// subsequent calls are no-ops, since a double release would let two
// unrelated owners hand out the same backing array concurrently.
func (o *Owned) Release() {
	if o.released || o.buf == nil {
		return
	}
	o.released = true
	o.pool.Put(o.buf)
}

// Borrowed is a read-only view into memory the Connection Manager still
// owns. It is valid only for the duration of the callback it was delivered
// to; holding onto it afterward is undefined, matching the spec's "context
// pointer may be overwritten on and after the next relevant callback" rule
// for receive data.
type Borrowed struct {
	data []byte
}

// NewBorrowed wraps data as a Borrowed view without copying it.
func NewBorrowed(data []byte) Borrowed {
	return Borrowed{data: data}
}

// Bytes returns the borrowed slice.
func (b Borrowed) Bytes() []byte { return b.data }

// Len reports the length of the borrowed slice.
func (b Borrowed) Len() int { return len(b.data) }
