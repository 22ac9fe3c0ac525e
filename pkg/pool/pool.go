// Package pool provides typed object pools for values recycled on hot copy
// paths, such as the per-row value slices of the copier and the per-record
// maps of file encoders.
//
// Example usage:
//
//	values := pool.NewSlicePool[model.Value](32)
//	s := values.Get(n)
//	defer values.Put(s)
package pool

import (
	"sync"
	"sync/atomic"
)

// Pool is a type-safe wrapper around sync.Pool with a reset hook and usage
// statistics. It is safe for concurrent use.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(T)
	stats struct {
		allocated int64
		inUse     int64
		gets      int64
	}
}

// New creates a pool. newFn builds an object when the pool is empty; reset,
// if not nil, is called on every object handed back with Put.
func New[T any](newFn func() T, reset func(T)) *Pool[T] {
	p := &Pool[T]{reset: reset}
	p.pool.New = func() interface{} {
		atomic.AddInt64(&p.stats.allocated, 1)
		return newFn()
	}
	return p
}

// Get takes an object from the pool, allocating one if needed.
func (p *Pool[T]) Get() T {
	atomic.AddInt64(&p.stats.inUse, 1)
	atomic.AddInt64(&p.stats.gets, 1)
	return p.pool.Get().(T)
}

// Put resets obj and returns it to the pool.
func (p *Pool[T]) Put(obj T) {
	if p.reset != nil {
		p.reset(obj)
	}
	atomic.AddInt64(&p.stats.inUse, -1)
	p.pool.Put(obj)
}

// Stats returns the number of objects allocated, currently checked out, and
// the number of Get calls. Gets minus allocated is the reuse count.
func (p *Pool[T]) Stats() (allocated, inUse, gets int64) {
	return atomic.LoadInt64(&p.stats.allocated),
		atomic.LoadInt64(&p.stats.inUse),
		atomic.LoadInt64(&p.stats.gets)
}

// SlicePool recycles slices of T. Slices are handed out with the requested
// length and zeroed elements.
type SlicePool[T any] struct {
	p *Pool[*[]T]
}

// NewSlicePool creates a slice pool whose fresh slices have capacity capacity.
func NewSlicePool[T any](capacity int) *SlicePool[T] {
	return &SlicePool[T]{p: New(
		func() *[]T {
			s := make([]T, 0, capacity)
			return &s
		},
		func(s *[]T) {
			clear(*s)
			*s = (*s)[:0]
		},
	)}
}

// Get returns a zeroed slice of length n.
func (sp *SlicePool[T]) Get(n int) []T {
	ptr := sp.p.Get()
	s := *ptr
	if cap(s) < n {
		s = make([]T, n)
	} else {
		s = s[:n]
	}
	*ptr = s
	return s
}

// Put returns s to the pool. s must not be used afterwards.
func (sp *SlicePool[T]) Put(s []T) {
	if s == nil {
		return
	}
	sp.p.Put(&s)
}

// Stats returns the statistics of the underlying pool.
func (sp *SlicePool[T]) Stats() (allocated, inUse, gets int64) {
	return sp.p.Stats()
}

// MapPool recycles maps. Maps are handed out empty.
type MapPool[K comparable, V any] struct {
	p *Pool[map[K]V]
}

// NewMapPool creates a map pool whose fresh maps are sized for size entries.
func NewMapPool[K comparable, V any](size int) *MapPool[K, V] {
	return &MapPool[K, V]{p: New(
		func() map[K]V { return make(map[K]V, size) },
		func(m map[K]V) { clear(m) },
	)}
}

// Get returns an empty map.
func (mp *MapPool[K, V]) Get() map[K]V { return mp.p.Get() }

// Put clears m and returns it to the pool.
func (mp *MapPool[K, V]) Put(m map[K]V) {
	if m == nil {
		return
	}
	mp.p.Put(m)
}
