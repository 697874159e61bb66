package event

import (
	"math"
	"sync"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestQueueConcurrentProducersDrainExactlyOnce(t *testing.T) {
	q := NewQueue[Damage](4)
	const producers = 8
	const perProducer = 500

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for k := 0; k < perProducer; k++ {
				q.Enqueue(Damage{Slot: int32(p*perProducer + k), Amount: 1})
			}
		}(p)
	}
	wg.Wait()

	if got := q.Len(); got != producers*perProducer {
		t.Fatalf("Len = %d, want %d", got, producers*perProducer)
	}

	seen := make(map[int32]int, producers*perProducer)
	n := q.Drain(func(d Damage) { seen[d.Slot]++ })
	if n != producers*perProducer {
		t.Fatalf("drained %d", n)
	}
	for slot, c := range seen {
		if c != 1 {
			t.Fatalf("slot %d observed %d times", slot, c)
		}
	}
	if len(seen) != producers*perProducer {
		t.Fatalf("observed %d distinct records", len(seen))
	}
	if q.Len() != 0 {
		t.Fatalf("queue not empty after drain: %d", q.Len())
	}
	if _, ok := q.TryDequeue(); ok {
		t.Fatal("TryDequeue succeeded on empty queue")
	}
}

func TestQueueReusableAcrossPhases(t *testing.T) {
	q := NewQueue[Death](2)
	for phase := 0; phase < 3; phase++ {
		for k := 0; k < 10; k++ {
			q.Enqueue(Death{Slot: int32(k), Position: mgl32.Vec3{float32(k), 0, 0}})
		}
		if n := q.Drain(nil); n != 10 {
			t.Fatalf("phase %d drained %d", phase, n)
		}
	}
}

func TestQueueShardCounterWraps(t *testing.T) {
	q := NewQueue[Death](3)
	q.next.Store(math.MaxInt32 - 2)
	for k := 0; k < 8; k++ {
		q.Enqueue(Death{Slot: int32(k)})
	}
	q.next.Store(math.MaxUint32 - 2)
	for k := 8; k < 16; k++ {
		q.Enqueue(Death{Slot: int32(k)})
	}
	if n := q.Drain(nil); n != 16 {
		t.Fatalf("drained %d across counter wrap, want 16", n)
	}
}

func TestQueueClearAndDispose(t *testing.T) {
	q := NewQueue[SpawnRequest](0)
	q.Enqueue(SpawnRequest{Speed: 1})
	q.Clear()
	if q.Len() != 0 {
		t.Fatal("Clear left items")
	}

	q.Enqueue(SpawnRequest{Speed: 2})
	q.Dispose()
	q.Dispose()
	q.Enqueue(SpawnRequest{Speed: 3})
	if q.Len() != 0 {
		t.Fatal("disposed queue reports items")
	}
	if n := q.Drain(func(SpawnRequest) { t.Fatal("callback on disposed queue") }); n != 0 {
		t.Fatalf("drained %d from disposed queue", n)
	}

	var nilQ *Queue[Collect]
	nilQ.Enqueue(Collect{})
	if _, ok := nilQ.TryDequeue(); ok {
		t.Fatal("nil queue dequeued")
	}
}

func TestBusDeliversNextSwap(t *testing.T) {
	b := NewBus()
	var got []int
	Subscribe(b, func(e RoundStarted) { got = append(got, e.Round) })

	Emit(b, RoundStarted{Round: 1})
	if n := b.DispatchAll(); n != 0 {
		t.Fatalf("delivered %d before swap", n)
	}
	b.SwapBuffers()
	if n := b.DispatchAll(); n != 1 {
		t.Fatalf("delivered %d after swap", n)
	}
	if n := b.DispatchAll(); n != 0 {
		t.Fatalf("redelivered %d", n)
	}

	Emit(b, RoundStarted{Round: 2})
	Emit(b, RoundEnded{Round: 2})
	if n := b.Flush(); n != 2 {
		t.Fatalf("Flush delivered %d", n)
	}
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("got %v", got)
	}
}
