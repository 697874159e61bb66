package system

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestParallelForVisitsEveryIndexOnce(t *testing.T) {
	s := NewScheduler(4, nil)
	defer s.Close()

	const n = 10_000
	hits := make([]atomic.Int32, n)
	h := s.ParallelFor(n, 37, func(i int) { hits[i].Add(1) })
	h.Complete()

	for i := range hits {
		if c := hits[i].Load(); c != 1 {
			t.Fatalf("index %d visited %d times", i, c)
		}
	}
	if !h.Done() {
		t.Fatal("handle not done after Complete")
	}
}

func TestDependencyOrdering(t *testing.T) {
	s := NewScheduler(4, nil)
	defer s.Close()

	const n = 2048
	stage := make([]int32, n)
	first := s.ParallelFor(n, 16, func(i int) {
		time.Sleep(time.Microsecond)
		atomic.StoreInt32(&stage[i], 1)
	})
	var violations atomic.Int32
	second := s.ParallelFor(n, 16, func(i int) {
		if atomic.LoadInt32(&stage[i]) != 1 {
			violations.Add(1)
		}
		atomic.StoreInt32(&stage[i], 2)
	}, first)
	second.Complete()

	if v := violations.Load(); v != 0 {
		t.Fatalf("%d items ran before their dependency", v)
	}
}

func TestChainedHandlesSerialize(t *testing.T) {
	s := NewScheduler(8, nil)
	defer s.Close()

	var counter int64 // unsynchronized on purpose: chaining must serialize writers
	var h *Handle
	for k := 0; k < 50; k++ {
		h = s.Schedule(func() { counter++ }, h)
	}
	h.Complete()
	if counter != 50 {
		t.Fatalf("counter = %d", counter)
	}
}

func TestCombineAndEmptyRanges(t *testing.T) {
	s := NewScheduler(2, nil)
	defer s.Close()

	var ran atomic.Int32
	a := s.Schedule(func() { ran.Add(1) })
	b := s.Schedule(func() { ran.Add(1) })
	empty := s.ParallelFor(0, 1, func(int) { t.Error("ran empty range") }, a, b)
	all := s.Combine(empty, nil, Completed())
	all.Complete()
	if ran.Load() != 2 {
		t.Fatalf("ran = %d", ran.Load())
	}

	var nilHandle *Handle
	if !nilHandle.Done() {
		t.Fatal("nil handle not done")
	}
	nilHandle.Complete()
	<-nilHandle.Wait()
}

func TestPanicIsRecoveredAndHandleCompletes(t *testing.T) {
	s := NewScheduler(2, nil)
	defer s.Close()

	h := s.ParallelFor(4, 1, func(i int) {
		if i == 2 {
			panic("boom")
		}
	})
	select {
	case <-h.Wait():
	case <-time.After(5 * time.Second):
		t.Fatal("handle never completed after panic")
	}
	if s.Panics() != 1 {
		t.Fatalf("panics = %d", s.Panics())
	}
}

func TestScheduleAfterCloseRunsInline(t *testing.T) {
	s := NewScheduler(2, nil)
	s.Close()
	s.Close()

	ran := false
	s.Schedule(func() { ran = true }).Complete()
	if !ran {
		t.Fatal("work scheduled after Close did not run")
	}
}

func TestGraphRunsInPhaseOrder(t *testing.T) {
	s := NewScheduler(4, nil)
	defer s.Close()
	g := NewGraph(s)

	var order []string
	mustAdd := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	var motionDone atomic.Bool
	mustAdd(g.Parallel("motion", PhaseMotion, nil, func(dep *Handle) *Handle {
		return s.ParallelFor(1000, 10, func(i int) {
			if i == 999 {
				time.Sleep(time.Millisecond)
				motionDone.Store(true)
			}
		}, dep)
	}))
	mustAdd(g.Sync("drain", PhaseDrain, []string{"motion"}, func() {
		if !motionDone.Load() {
			t.Error("drain ran before motion completed")
		}
		order = append(order, "drain")
	}))
	mustAdd(g.Sync("early", PhaseMotion, nil, func() { order = append(order, "early") }))

	names := g.Names()
	if names[0] != "motion" || names[1] != "early" || names[2] != "drain" {
		t.Fatalf("names %v", names)
	}

	for frame := 0; frame < 3; frame++ {
		order = order[:0]
		handles := g.Run()
		for name, h := range handles {
			if !h.Done() {
				t.Fatalf("%s not complete after Run", name)
			}
		}
		if len(order) != 2 || order[0] != "early" || order[1] != "drain" {
			t.Fatalf("frame %d order %v", frame, order)
		}
		motionDone.Store(false)
	}
}

func TestGraphRejectsBadDeclarations(t *testing.T) {
	g := NewGraph(NewScheduler(1, nil))
	defer g.sched.Close()

	if err := g.Sync("a", PhaseRender, nil, func() {}); err != nil {
		t.Fatal(err)
	}
	if err := g.Sync("a", PhaseRender, nil, func() {}); err == nil {
		t.Fatal("duplicate node accepted")
	}
	if err := g.Sync("b", PhaseRender, []string{"missing"}, func() {}); err == nil {
		t.Fatal("unknown dependency accepted")
	}
	if err := g.Sync("c", PhaseMotion, []string{"a"}, func() {}); err == nil {
		t.Fatal("dependency on later phase accepted")
	}
	if g.Len() != 1 || !g.Has("a") || g.Has("b") {
		t.Fatalf("graph state len=%d", g.Len())
	}
}

func TestPhaseString(t *testing.T) {
	if PhaseCollision.String() != "collision" || Phase(99).String() != "unknown" {
		t.Fatal("phase names")
	}
}
