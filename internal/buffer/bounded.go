package buffer

// Bounded is an immutable newest-first sequence capped at a fixed capacity. Every Push
// returns a new value backed by a fresh slice so callers comparing slice identity see
// each change.
type Bounded[T any] struct {
	items    []T
	capacity int
}

func New[T any](capacity int) Bounded[T] {
	if capacity <= 0 {
		capacity = 1
	}

	return Bounded[T]{
		items:    make([]T, 0),
		capacity: capacity,
	}
}

// Push prepends entry and evicts the oldest entries beyond capacity.
func (b Bounded[T]) Push(entry T) Bounded[T] {
	size := len(b.items) + 1
	if size > b.capacity {
		size = b.capacity
	}

	items := make([]T, 0, size)
	items = append(items, entry)
	items = append(items, b.items[:size-1]...)

	return Bounded[T]{items: items, capacity: b.capacity}
}

// PushAll pushes entries in order, so the last element ends up first.
func (b Bounded[T]) PushAll(entries ...T) Bounded[T] {
	if len(entries) == 0 {
		return b
	}

	size := len(b.items) + len(entries)
	if size > b.capacity {
		size = b.capacity
	}

	items := make([]T, 0, size)
	for i := len(entries) - 1; i >= 0 && len(items) < size; i-- {
		items = append(items, entries[i])
	}
	for i := 0; i < len(b.items) && len(items) < size; i++ {
		items = append(items, b.items[i])
	}

	return Bounded[T]{items: items, capacity: b.capacity}
}

// Items returns the entries newest-first. The slice must not be modified.
func (b Bounded[T]) Items() []T {
	if b.items == nil {
		return []T{}
	}

	return b.items
}

func (b Bounded[T]) Len() int {
	return len(b.items)
}

func (b Bounded[T]) Cap() int {
	return b.capacity
}
