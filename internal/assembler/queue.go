package assembler

import "sync"

// Queue is a FIFO guarded by a mutex held only for each operation.
// A positive limit bounds the queue by dropping the oldest item.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
	limit int
}

func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{}
}

func NewBoundedQueue[T any](limit int) *Queue[T] {
	if limit < 0 {
		limit = 0
	}
	return &Queue[T]{limit: limit}
}

// Push appends item. It reports whether the oldest item was evicted.
func (q *Queue[T]) Push(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, item)
	if q.limit > 0 && len(q.items) > q.limit {
		var zero T
		q.items[0] = zero
		q.items = q.items[1:]
		return true
	}
	return false
}

// Pop removes and returns the oldest item.
func (q *Queue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	item := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return item, true
}

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Snapshot copies the pending items, oldest first.
func (q *Queue[T]) Snapshot() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]T, len(q.items))
	copy(out, q.items)
	return out
}

// Clear empties the queue and returns how many items it held.
func (q *Queue[T]) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	q.items = nil
	return n
}
