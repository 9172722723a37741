package journal

import "sync"

// Ring is a thread-safe circular log. Once full, the oldest entry is
// overwritten.
type Ring[T any] struct {
	mu    sync.RWMutex
	data  []T
	size  int
	next  int // slot for the next append
	count int
	total uint64
}

// NewRing creates a ring holding at most size entries
func NewRing[T any](size int) *Ring[T] {
	if size <= 0 {
		size = 1
	}
	return &Ring[T]{
		data: make([]T, size),
		size: size,
	}
}

// Append adds v as the most recent entry
func (r *Ring[T]) Append(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.data[r.next] = v
	r.next = (r.next + 1) % r.size
	if r.count < r.size {
		r.count++
	}
	r.total++
}

// Recent returns up to limit entries, most recent first. limit <= 0 returns
// everything retained.
func (r *Ring[T]) Recent(limit int) []T {
	return r.Filter(limit, nil)
}

// Filter returns up to limit entries accepted by keep, most recent first
func (r *Ring[T]) Filter(limit int, keep func(T) bool) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 || limit > r.count {
		limit = r.count
	}
	out := make([]T, 0, limit)
	for i := 0; i < r.count && len(out) < limit; i++ {
		idx := (r.next - 1 - i + r.size) % r.size
		if keep == nil || keep(r.data[idx]) {
			out = append(out, r.data[idx])
		}
	}
	return out
}

// Len returns the number of retained entries
func (r *Ring[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

// Total returns the number of entries ever appended
func (r *Ring[T]) Total() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.total
}

// Clear drops every entry
func (r *Ring[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	for i := range r.data {
		r.data[i] = zero
	}
	r.next = 0
	r.count = 0
}
