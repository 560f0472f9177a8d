package roadquality

// History is a fixed-capacity FIFO ring buffer. Capacity is set at
// construction; pushing onto a full buffer evicts the oldest entry.
// Insertion order is time order and is never reordered.
type History[T any] struct {
	items    []T
	capacity int
	head     int // next write position
	size     int
}

// NewHistory creates a ring buffer holding at most capacity entries.
func NewHistory[T any](capacity int) *History[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &History[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

// Push appends v, evicting the oldest entry when full.
func (h *History[T]) Push(v T) {
	h.items[h.head] = v
	h.head = (h.head + 1) % h.capacity
	if h.size < h.capacity {
		h.size++
	}
}

// Len returns the number of stored entries.
func (h *History[T]) Len() int { return h.size }

// Cap returns the fixed capacity.
func (h *History[T]) Cap() int { return h.capacity }

// At returns the i-th entry in insertion order, 0 = oldest.
func (h *History[T]) At(i int) T {
	start := (h.head - h.size + h.capacity*2) % h.capacity
	return h.items[(start+i)%h.capacity]
}

// Last returns the most recent entry. ok is false when empty.
func (h *History[T]) Last() (v T, ok bool) {
	if h.size == 0 {
		return v, false
	}
	return h.At(h.size - 1), true
}

// Snapshot copies the buffered entries, oldest first.
func (h *History[T]) Snapshot() []T {
	out := make([]T, h.size)
	for i := 0; i < h.size; i++ {
		out[i] = h.At(i)
	}
	return out
}

// Tail copies up to n of the most recent entries, oldest first.
func (h *History[T]) Tail(n int) []T {
	if n > h.size {
		n = h.size
	}
	out := make([]T, n)
	for i := 0; i < n; i++ {
		out[i] = h.At(h.size - n + i)
	}
	return out
}
