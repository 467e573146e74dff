package state

// #region ring
// Ring is an append-only bounded buffer; appending past capacity evicts the
// oldest entry.
type Ring[T any] struct {
	capacity int
	items    []T
}

// NewRing creates a ring holding at most capacity items (minimum 1).
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{capacity: capacity, items: make([]T, 0, capacity)}
}

// Append adds v, evicting the oldest entry when full.
func (r *Ring[T]) Append(v T) {
	if len(r.items) == r.capacity {
		copy(r.items, r.items[1:])
		r.items[len(r.items)-1] = v
		return
	}
	r.items = append(r.items, v)
}

// Len returns the number of stored items.
func (r *Ring[T]) Len() int { return len(r.items) }

// Cap returns the ring capacity.
func (r *Ring[T]) Cap() int { return r.capacity }

// Last returns the newest item.
func (r *Ring[T]) Last() (T, bool) {
	var zero T
	if len(r.items) == 0 {
		return zero, false
	}
	return r.items[len(r.items)-1], true
}

// Recent returns a copy of the newest n items, oldest first.
func (r *Ring[T]) Recent(n int) []T {
	if n <= 0 {
		return nil
	}
	if n > len(r.items) {
		n = len(r.items)
	}
	return append([]T(nil), r.items[len(r.items)-n:]...)
}

// All returns a copy of every item, oldest first.
func (r *Ring[T]) All() []T {
	return append([]T(nil), r.items...)
}

// Reset empties the ring.
func (r *Ring[T]) Reset() {
	r.items = r.items[:0]
}

// Load replaces the contents with items, keeping the newest capacity entries.
func (r *Ring[T]) Load(items []T) {
	if over := len(items) - r.capacity; over > 0 {
		items = items[over:]
	}
	r.items = append(make([]T, 0, r.capacity), items...)
}

// #endregion ring
