// Package timer implements the Timer Heap: an ordered store of pending
// cyclic/one-shot callbacks keyed by next-fire monotonic time, plus a
// secondary index for O(log n) modify/remove by id.
package timer

import (
	"container/heap"
	"time"

	"eloop/internal/eloop/status"
)

// Callback is the application pointer + context pointer + opaque data
// triple a Timer Entry needs, collapsed into a single Go closure —
// context and opaque data are whatever the closure captures.
type Callback func(fireTime time.Time)

type kind int

const (
	cyclic kind = iota
	oneShot
)

// Entry is one pending timer. Only fields a caller might reasonably
// inspect are exported; heap bookkeeping stays private.
type Entry struct {
	ID       uint64
	Kind     string
	NextFire time.Time
	Interval time.Duration
	Base     time.Time
	Policy   Policy
	Callback Callback

	kind  kind
	index int    // position in the heap slice, -1 when not present
	seq   uint64 // insertion sequence, breaks NextFire ties in FIFO order
}

// Heap is a min-heap of Entry ordered by NextFire, with a side index from
// id to heap position so ModifyCyclic/RemoveCyclic run in O(log n)
// instead of a linear scan.
type Heap struct {
	entries []*Entry
	byID    map[uint64]*Entry
	nextID  uint64
	nextSeq uint64
}

// New returns an empty Timer Heap.
func New() *Heap {
	return &Heap{byID: make(map[uint64]*Entry)}
}

// heap.Interface implementation over h.entries.
func (h *Heap) Len() int { return len(h.entries) }
func (h *Heap) Less(i, j int) bool {
	a, b := h.entries[i], h.entries[j]
	if a.NextFire.Equal(b.NextFire) {
		return a.seq < b.seq
	}
	return a.NextFire.Before(b.NextFire)
}
func (h *Heap) Swap(i, j int) {
	h.entries[i], h.entries[j] = h.entries[j], h.entries[i]
	h.entries[i].index = i
	h.entries[j].index = j
}
func (h *Heap) Push(x any) {
	e := x.(*Entry)
	e.index = len(h.entries)
	h.nextSeq++
	e.seq = h.nextSeq
	h.entries = append(h.entries, e)
}
func (h *Heap) Pop() any {
	old := h.entries
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	h.entries = old[:n-1]
	return e
}

func (h *Heap) allocID() uint64 {
	h.nextID++
	return h.nextID
}

// AddCyclic inserts a cyclic callback that re-arms itself every interval,
// phase-aligned to base (the zero Time means "no alignment, first fire at
// now+interval"). interval must be > 0.
func (h *Heap) AddCyclic(now time.Time, cb Callback, interval time.Duration, base time.Time, policy Policy) (uint64, error) {
	if interval <= 0 {
		return 0, status.New(status.InvalidArgument, "cyclic timer interval must be > 0")
	}
	e := &Entry{
		ID:       h.allocID(),
		kind:     cyclic,
		Kind:     "cyclic",
		NextFire: firstFire(now, base, interval),
		Interval: interval,
		Base:     base,
		Policy:   policy,
		Callback: cb,
	}
	heap.Push(h, e)
	h.byID[e.ID] = e
	return e.ID, nil
}

// AddTimed inserts a one-shot callback that fires at when and is then
// discarded.
func (h *Heap) AddTimed(cb Callback, when time.Time) (uint64, error) {
	e := &Entry{
		ID:       h.allocID(),
		kind:     oneShot,
		Kind:     "one-shot",
		NextFire: when,
		Callback: cb,
	}
	heap.Push(h, e)
	h.byID[e.ID] = e
	return e.ID, nil
}

// ModifyCyclic recomputes id's next-fire time as if it were newly added
// right now, and re-heapifies. Returns NotFound if id is unknown or is a
// one-shot entry.
func (h *Heap) ModifyCyclic(now time.Time, id uint64, interval time.Duration, base time.Time, policy Policy) error {
	e, ok := h.byID[id]
	if !ok || e.kind != cyclic {
		return status.New(status.NotFound, "no cyclic timer with that id")
	}
	if interval <= 0 {
		return status.New(status.InvalidArgument, "cyclic timer interval must be > 0")
	}
	e.Interval = interval
	e.Base = base
	e.Policy = policy
	e.NextFire = firstFire(now, base, interval)
	heap.Fix(h, e.index)
	return nil
}

// RemoveCyclic removes id if present. Unknown ids are a no-op.
func (h *Heap) RemoveCyclic(id uint64) {
	e, ok := h.byID[id]
	if !ok {
		return
	}
	heap.Remove(h, e.index)
	delete(h.byID, id)
}

// NextTime returns the smallest pending NextFire, or the zero Time's
// "far future" stand-in (ok=false) if the heap is empty.
func (h *Heap) NextTime() (t time.Time, ok bool) {
	if len(h.entries) == 0 {
		return time.Time{}, false
	}
	return h.entries[0].NextFire, true
}

// PopDue pops and returns every entry whose NextFire is <= now, in stable
// FIFO-by-insertion order for ties, reinserting cyclic entries with their
// rescheduled NextFire. A cyclic entry that is still due after being
// rescheduled is popped again in the same call, once per missed slot. For
// cyclic entries the returned value is a snapshot whose NextFire is the
// slot that came due; the live entry stays in the heap. The returned slice
// must not be retained past the caller's use — callers should invoke each
// Callback and discard.
func (h *Heap) PopDue(now time.Time) []*Entry {
	var due []*Entry
	for len(h.entries) > 0 && !h.entries[0].NextFire.After(now) {
		e := heap.Pop(h).(*Entry)
		if e.kind == cyclic {
			fired := *e
			due = append(due, &fired)
			e.NextFire = reschedule(e.Policy, fired.NextFire, now, e.Interval)
			heap.Push(h, e)
		} else {
			due = append(due, e)
			delete(h.byID, e.ID)
		}
	}
	return due
}
