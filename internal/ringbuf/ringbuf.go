// Package ringbuf provides a bounded FIFO buffer that evicts its oldest items on overflow.
package ringbuf

// Buffer keeps at most Cap items in insertion order. When a push would exceed the
// capacity, the oldest item is discarded. Buffer is not safe for concurrent use.
type Buffer[T any] struct {
	items []T
	head  int
	count int
}

// New creates a Buffer holding at most capacity items. A capacity below one is raised to one.
func New[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}

	return &Buffer[T]{
		items: make([]T, capacity),
		head:  0,
		count: 0,
	}
}

// Push appends item, evicting the oldest item when the buffer is full.
// It reports whether an item was evicted.
func (b *Buffer[T]) Push(item T) bool {
	capacity := len(b.items)

	if b.count < capacity {
		b.items[(b.head+b.count)%capacity] = item
		b.count++

		return false
	}

	b.items[b.head] = item
	b.head = (b.head + 1) % capacity

	return true
}

// Len returns the number of retained items.
func (b *Buffer[T]) Len() int {
	return b.count
}

// Cap returns the maximum number of retained items.
func (b *Buffer[T]) Cap() int {
	return len(b.items)
}

// Items returns a copy of the retained items, oldest first.
func (b *Buffer[T]) Items() []T {
	out := make([]T, b.count)
	capacity := len(b.items)

	for i := range b.count {
		out[i] = b.items[(b.head+i)%capacity]
	}

	return out
}
