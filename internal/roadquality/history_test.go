package roadquality

import "testing"

func TestHistory_RingSemantics(t *testing.T) {
	h := NewHistory[int](3)
	if h.Cap() != 3 {
		t.Fatalf("Cap() = %d, want 3", h.Cap())
	}

	if _, ok := h.Last(); ok {
		t.Error("Last() on empty history should report !ok")
	}

	h.Push(1)
	h.Push(2)
	h.Push(3)
	if h.Len() != 3 {
		t.Errorf("Len() = %d, want 3", h.Len())
	}

	// Overflow evicts the oldest entry.
	h.Push(4)
	if h.Len() != 3 {
		t.Errorf("Len() after overflow = %d, want 3", h.Len())
	}
	want := []int{2, 3, 4}
	got := h.Snapshot()
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Snapshot()[%d] = %d, want %d", i, got[i], want[i])
		}
	}

	if last, _ := h.Last(); last != 4 {
		t.Errorf("Last() = %d, want 4", last)
	}
	if h.At(0) != 2 {
		t.Errorf("At(0) = %d, want 2", h.At(0))
	}

	tail := h.Tail(2)
	if len(tail) != 2 || tail[0] != 3 || tail[1] != 4 {
		t.Errorf("Tail(2) = %v, want [3 4]", tail)
	}
	if got := h.Tail(10); len(got) != 3 {
		t.Errorf("Tail(10) = %v, want full contents", got)
	}
}

func TestHistory_MinimumCapacity(t *testing.T) {
	h := NewHistory[string](0)
	h.Push("a")
	h.Push("b")
	if h.Len() != 1 {
		t.Errorf("Len() = %d, want 1", h.Len())
	}
	if last, _ := h.Last(); last != "b" {
		t.Errorf("Last() = %q, want b", last)
	}
}
