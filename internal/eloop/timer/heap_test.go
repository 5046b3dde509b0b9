package timer

import (
	"testing"
	"time"
)

func ms(n int64) time.Time { return time.Unix(0, n*int64(time.Millisecond)) }

func TestAddCyclicRejectsNonPositiveInterval(t *testing.T) {
	h := New()
	if _, err := h.AddCyclic(ms(0), func(time.Time) {}, 0, time.Time{}, OnceInCurrent); err == nil {
		t.Fatal("expected error for interval <= 0")
	}
}

func TestPhaseAlignedFirstFire(t *testing.T) {
	// Scenario 4: interval 50ms, base-time = epoch 0, at wall time 120ms.
	h := New()
	base := ms(0)
	now := ms(120)
	id, err := h.AddCyclic(now, func(time.Time) {}, 50*time.Millisecond, base, OnceInCurrent)
	if err != nil {
		t.Fatalf("AddCyclic: %v", err)
	}
	next, ok := h.NextTime()
	if !ok {
		t.Fatal("expected a pending timer")
	}
	if want := ms(150); !next.Equal(want) {
		t.Errorf("first fire = %v, want %v", next, want)
	}
	_ = id
}

func TestOnceInCurrentCatchesUpMissedSlots(t *testing.T) {
	h := New()
	base := ms(0)
	now := ms(120)
	var fires []time.Time
	h.AddCyclic(now, func(ft time.Time) { fires = append(fires, ft) }, 50*time.Millisecond, base, OnceInCurrent)

	// Simulate a 500ms gap: nothing runs the loop between additions, then
	// we ask for everything due by 620ms (120 + 500).
	due := h.PopDue(ms(620))
	if len(due) == 0 {
		t.Fatal("expected at least one due entry")
	}
	// OnceInCurrent must fire back-to-back for every missed scheduled
	// slot: 150, 200, 250, ... up to and including the slot <= 620.
	next, _ := h.NextTime()
	// PopDue already re-pops a rescheduled entry while it is still due, so
	// re-draining at 620 finds nothing more; the loop only confirms that.
	for {
		more := h.PopDue(ms(620))
		if len(more) == 0 {
			break
		}
		due = append(due, more...)
	}
	if len(due) < 2 {
		t.Fatalf("OnceInCurrent should have caught up multiple missed slots, got %d", len(due))
	}
	if next.After(ms(620)) {
		// fine, just documenting intent
	}
}

func TestCurrentTimeSkipsToNowPlusInterval(t *testing.T) {
	h := New()
	base := ms(0)
	now := ms(120)
	h.AddCyclic(now, func(time.Time) {}, 50*time.Millisecond, base, CurrentTime)

	fireAt := ms(620)
	h.PopDue(fireAt)
	next, ok := h.NextTime()
	if !ok {
		t.Fatal("expected a rescheduled timer")
	}
	want := fireAt.Add(50 * time.Millisecond)
	if !next.Equal(want) {
		t.Errorf("CurrentTime next fire = %v, want %v", next, want)
	}
}

func TestFIFOAmongSimultaneousTimers(t *testing.T) {
	h := New()
	var order []int
	when := ms(100)
	for i := 0; i < 5; i++ {
		i := i
		h.AddTimed(func(time.Time) { order = append(order, i) }, when)
	}
	due := h.PopDue(when)
	for i, e := range due {
		e.Callback(when)
		if i >= 1 {
			// nothing
		}
	}
	for i, v := range order {
		if v != i {
			t.Errorf("order[%d] = %d, want %d (FIFO by insertion)", i, v, i)
		}
	}
}

func TestOneShotRemovedAfterFiring(t *testing.T) {
	h := New()
	id, _ := h.AddTimed(func(time.Time) {}, ms(10))
	h.PopDue(ms(10))
	if _, ok := h.byID[id]; ok {
		t.Error("one-shot timer should be removed after firing")
	}
}

func TestModifyCyclicRecomputesNextFire(t *testing.T) {
	h := New()
	id, _ := h.AddCyclic(ms(0), func(time.Time) {}, 100*time.Millisecond, time.Time{}, CurrentTime)
	if err := h.ModifyCyclic(ms(50), id, 10*time.Millisecond, time.Time{}, CurrentTime); err != nil {
		t.Fatalf("ModifyCyclic: %v", err)
	}
	next, _ := h.NextTime()
	if want := ms(60); !next.Equal(want) {
		t.Errorf("next fire after modify = %v, want %v", next, want)
	}
}

func TestModifyCyclicUnknownID(t *testing.T) {
	h := New()
	if err := h.ModifyCyclic(ms(0), 9999, time.Millisecond, time.Time{}, CurrentTime); err == nil {
		t.Fatal("expected NotFound for unknown id")
	}
}

func TestRemoveCyclicIsIdempotent(t *testing.T) {
	h := New()
	id, _ := h.AddCyclic(ms(0), func(time.Time) {}, time.Millisecond, time.Time{}, CurrentTime)
	h.RemoveCyclic(id)
	h.RemoveCyclic(id) // must not panic or error
	h.RemoveCyclic(123456)
	if _, ok := h.NextTime(); ok {
		t.Error("heap should be empty after removing its only entry")
	}
}

func TestNextTimeEmptyHeap(t *testing.T) {
	h := New()
	if _, ok := h.NextTime(); ok {
		t.Error("NextTime on empty heap should report ok=false")
	}
}
