package system

import (
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Handle signals completion of scheduled work. Only the controlling goroutine
// waits on handles; work items never block on each other. A nil *Handle is
// treated as already complete.
type Handle struct {
	pending  atomic.Int64
	done     chan struct{}
	mu       sync.Mutex
	finished bool
	next     []func()
}

func newHandle(pending int64) *Handle {
	h := &Handle{done: make(chan struct{})}
	h.pending.Store(pending)
	return h
}

// Completed returns a handle that is already done.
func Completed() *Handle {
	h := newHandle(0)
	h.finish()
	return h
}

// Done reports whether the work behind h has finished.
func (h *Handle) Done() bool {
	if h == nil {
		return true
	}
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Complete blocks until h is done.
func (h *Handle) Complete() {
	if h == nil {
		return
	}
	<-h.done
}

// Wait exposes the completion channel.
func (h *Handle) Wait() <-chan struct{} {
	if h == nil {
		c := make(chan struct{})
		close(c)
		return c
	}
	return h.done
}

func (h *Handle) release() {
	if h.pending.Add(-1) == 0 {
		h.finish()
	}
}

func (h *Handle) finish() {
	h.mu.Lock()
	if h.finished {
		h.mu.Unlock()
		return
	}
	h.finished = true
	next := h.next
	h.next = nil
	close(h.done)
	h.mu.Unlock()
	for _, fn := range next {
		fn()
	}
}

// onDone runs fn once h completes, immediately if it already has.
func (h *Handle) onDone(fn func()) {
	h.mu.Lock()
	if h.finished {
		h.mu.Unlock()
		fn()
		return
	}
	h.next = append(h.next, fn)
	h.mu.Unlock()
}

type workItem struct {
	h      *Handle
	fn     func(i int)
	lo, hi int
}

// Scheduler is a fixed-size worker pool executing data-parallel for-each
// batches. Dependencies are resolved by continuations: a batch is queued only
// once every handle it depends on has completed, so no worker ever waits.
type Scheduler struct {
	workers int
	log     *zap.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []workItem
	head   int
	closed bool
	wg     sync.WaitGroup

	panics atomic.Int64
}

// NewScheduler starts workers goroutines; workers < 1 uses GOMAXPROCS.
func NewScheduler(workers int, log *zap.Logger) *Scheduler {
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &Scheduler{
		workers: workers,
		log:     log,
		queue:   make([]workItem, 0, 256),
	}
	s.cond = sync.NewCond(&s.mu)
	s.wg.Add(workers)
	for w := 0; w < workers; w++ {
		go s.worker()
	}
	log.Debug("scheduler started", zap.Int("workers", workers))
	return s
}

func (s *Scheduler) Workers() int { return s.workers }

// Panics returns the number of work items that panicked and were recovered.
func (s *Scheduler) Panics() int64 { return s.panics.Load() }

// DefaultBatch picks a batch size giving each worker a few batches of n items.
func (s *Scheduler) DefaultBatch(n int) int {
	b := n / (s.workers * 4)
	if b < 64 {
		b = 64
	}
	return b
}

// ParallelFor runs fn(i) for every i in [0,n) split into batches of the given
// size (batch < 1 picks one). Work starts after every dep has completed.
func (s *Scheduler) ParallelFor(n, batch int, fn func(i int), deps ...*Handle) *Handle {
	if n <= 0 {
		h := newHandle(1)
		s.after(deps, h.release)
		return h
	}
	if batch < 1 {
		batch = s.DefaultBatch(n)
	}
	batches := (n + batch - 1) / batch
	h := newHandle(int64(batches))
	s.after(deps, func() {
		for lo := 0; lo < n; lo += batch {
			s.push(workItem{h: h, fn: fn, lo: lo, hi: min(lo+batch, n)})
		}
	})
	return h
}

// Schedule runs fn once on a worker after deps complete.
func (s *Scheduler) Schedule(fn func(), deps ...*Handle) *Handle {
	return s.ParallelFor(1, 1, func(int) { fn() }, deps...)
}

// Combine returns a handle that completes when all handles have.
func (s *Scheduler) Combine(handles ...*Handle) *Handle {
	h := newHandle(1)
	s.after(handles, h.release)
	return h
}

// Close stops the workers after the queued items drain. Items pushed after
// Close run inline on the pushing goroutine. Safe to call more than once.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.cond.Broadcast()
	s.mu.Unlock()
	s.wg.Wait()
	s.log.Debug("scheduler stopped", zap.Int64("recovered_panics", s.panics.Load()))
}

func (s *Scheduler) after(deps []*Handle, start func()) {
	live := make([]*Handle, 0, len(deps))
	for _, d := range deps {
		if !d.Done() {
			live = append(live, d)
		}
	}
	if len(live) == 0 {
		start()
		return
	}
	var remaining atomic.Int32
	remaining.Store(int32(len(live)))
	for _, d := range live {
		d.onDone(func() {
			if remaining.Add(-1) == 0 {
				start()
			}
		})
	}
}

func (s *Scheduler) push(it workItem) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.run(it)
		return
	}
	s.queue = append(s.queue, it)
	s.cond.Signal()
	s.mu.Unlock()
}

func (s *Scheduler) worker() {
	defer s.wg.Done()
	for {
		s.mu.Lock()
		for s.head == len(s.queue) && !s.closed {
			s.cond.Wait()
		}
		if s.head == len(s.queue) {
			s.mu.Unlock()
			return
		}
		it := s.queue[s.head]
		s.queue[s.head] = workItem{}
		s.head++
		if s.head == len(s.queue) {
			s.queue = s.queue[:0]
			s.head = 0
		}
		s.mu.Unlock()
		s.run(it)
	}
}

func (s *Scheduler) run(it workItem) {
	defer it.h.release()
	defer func() {
		if r := recover(); r != nil {
			s.panics.Add(1)
			s.log.Error("work item panicked",
				zap.Any("panic", r),
				zap.Int("lo", it.lo),
				zap.Int("hi", it.hi),
			)
		}
	}()
	for i := it.lo; i < it.hi; i++ {
		it.fn(i)
	}
}
