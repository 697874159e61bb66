package event

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Queue is an unordered multi-producer, single-consumer queue for side effects
// produced by parallel tasks. Producers are spread over shards by an atomic
// round-robin counter so concurrent Enqueue calls rarely share a lock.
//
// The consumer must only drain after every producer of the phase has finished;
// the scheduler's dependency ordering guarantees that, the queue does not.
type Queue[T any] struct {
	shards   []shard[T]
	next     atomic.Uint32
	drainAt  int // shard the consumer is currently reading
	disposed atomic.Bool
}

type shard[T any] struct {
	mu    sync.Mutex
	items []T
	head  int
	_     [40]byte // keep neighbouring shards off one cache line
}

// NewQueue creates a queue with the given shard count; shards < 1 uses GOMAXPROCS.
func NewQueue[T any](shards int) *Queue[T] {
	if shards < 1 {
		shards = runtime.GOMAXPROCS(0)
	}
	q := &Queue[T]{shards: make([]shard[T], shards)}
	for i := range q.shards {
		q.shards[i].items = make([]T, 0, 32)
	}
	return q
}

// Enqueue appends v. Safe for concurrent use.
func (q *Queue[T]) Enqueue(v T) {
	if q == nil || q.disposed.Load() {
		return
	}
	s := &q.shards[q.next.Add(1)%uint32(len(q.shards))]
	s.mu.Lock()
	s.items = append(s.items, v)
	s.mu.Unlock()
}

// TryDequeue removes one item. Single consumer only.
func (q *Queue[T]) TryDequeue() (T, bool) {
	var zero T
	if q == nil || q.disposed.Load() {
		return zero, false
	}
	for k := 0; k < len(q.shards); k++ {
		s := &q.shards[q.drainAt]
		s.mu.Lock()
		if s.head < len(s.items) {
			v := s.items[s.head]
			s.items[s.head] = zero
			s.head++
			if s.head == len(s.items) {
				s.items = s.items[:0]
				s.head = 0
			}
			s.mu.Unlock()
			return v, true
		}
		s.mu.Unlock()
		q.drainAt = (q.drainAt + 1) % len(q.shards)
	}
	return zero, false
}

// Drain dequeues until empty, calling fn for each item, and returns the count.
func (q *Queue[T]) Drain(fn func(T)) int {
	n := 0
	for {
		v, ok := q.TryDequeue()
		if !ok {
			return n
		}
		n++
		if fn != nil {
			fn(v)
		}
	}
}

// Len returns the number of pending items.
func (q *Queue[T]) Len() int {
	if q == nil || q.disposed.Load() {
		return 0
	}
	n := 0
	for i := range q.shards {
		s := &q.shards[i]
		s.mu.Lock()
		n += len(s.items) - s.head
		s.mu.Unlock()
	}
	return n
}

// Clear drops all pending items.
func (q *Queue[T]) Clear() {
	if q == nil || q.disposed.Load() {
		return
	}
	var zero T
	for i := range q.shards {
		s := &q.shards[i]
		s.mu.Lock()
		for k := range s.items {
			s.items[k] = zero
		}
		s.items = s.items[:0]
		s.head = 0
		s.mu.Unlock()
	}
}

// Dispose releases the buffers. Later calls on the queue are no-ops.
func (q *Queue[T]) Dispose() {
	if q == nil || !q.disposed.CompareAndSwap(false, true) {
		return
	}
	for i := range q.shards {
		s := &q.shards[i]
		s.mu.Lock()
		s.items = nil
		s.head = 0
		s.mu.Unlock()
	}
}
