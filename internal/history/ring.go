package history

// Ring is a fixed capacity FIFO that drops its oldest item when full.
// It is not safe for concurrent use; Store adds the locking.
type Ring[T any] struct {
	items []T
	head  int // next write position
	size  int
}

// NewRing returns an empty ring. Capacities below 1 are raised to 1.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{items: make([]T, capacity)}
}

// Push appends item, evicting the oldest one when the ring is full.
// It reports the evicted item, if any.
func (r *Ring[T]) Push(item T) (evicted T, ok bool) {
	if r.size == len(r.items) {
		evicted, ok = r.items[r.head], true
	} else {
		r.size++
	}
	r.items[r.head] = item
	r.head = (r.head + 1) % len(r.items)
	return evicted, ok
}

// Items returns the contents oldest first.
func (r *Ring[T]) Items() []T {
	out := make([]T, 0, r.size)
	start := (r.head - r.size + len(r.items)) % len(r.items)
	for i := 0; i < r.size; i++ {
		out = append(out, r.items[(start+i)%len(r.items)])
	}
	return out
}

// Last returns the newest item.
func (r *Ring[T]) Last() (T, bool) {
	var zero T
	if r.size == 0 {
		return zero, false
	}
	return r.items[(r.head-1+len(r.items))%len(r.items)], true
}

func (r *Ring[T]) Len() int {
	return r.size
}

func (r *Ring[T]) Cap() int {
	return len(r.items)
}
