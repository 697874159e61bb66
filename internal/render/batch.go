// Package render compacts live entities into contiguous per-frame instance
// buffers for an external instanced-draw facility. Nothing here draws.
package render

import (
	"sync/atomic"

	"github.com/arenasim/simcore/internal/core/ecs"
	"github.com/arenasim/simcore/internal/core/system"
	"github.com/go-gl/mathgl/mgl32"
)

// MaxInstances is the instanced-draw batch limit.
const MaxInstances = 1023

// Style controls how a pool's slots become instance data.
type Style struct {
	Scale     float32
	Orient    bool // yaw the model along the velocity
	Base      mgl32.Vec4
	Flash     mgl32.Vec4
	FlashTime float32 // Flash countdown that maps to full flash color
}

// Batch is a fixed-capacity output buffer filled through an atomic cursor.
// Transforms, Colors and Slots are index-aligned: entry k of each describes
// the same entity, the k-th live slot in slot order. When more entities are
// live than the capacity allows, the excess is dropped for the frame.
type Batch struct {
	Transforms []mgl32.Mat4
	Colors     []mgl32.Vec4
	Slots      []int32

	cursor   atomic.Int64
	capacity int
	starts   []int // per-chunk live count, then output offset
}

// NewBatch allocates a batch; capacity <= 0 uses MaxInstances.
func NewBatch(capacity int) *Batch {
	if capacity <= 0 {
		capacity = MaxInstances
	}
	return &Batch{
		Transforms: make([]mgl32.Mat4, capacity),
		Colors:     make([]mgl32.Vec4, capacity),
		Slots:      make([]int32, capacity),
		capacity:   capacity,
	}
}

func (b *Batch) Capacity() int { return b.capacity }

// Reset rewinds the cursor for the next frame.
func (b *Batch) Reset() { b.cursor.Store(0) }

// Claim reserves n consecutive output entries and returns the first index.
// The returned range may extend past capacity.
func (b *Batch) Claim(n int) int {
	return int(b.cursor.Add(int64(n))) - n
}

// Count is the number of valid entries.
func (b *Batch) Count() int {
	return int(min(b.cursor.Load(), int64(b.capacity)))
}

// Overflow is the number of claims dropped this frame.
func (b *Batch) Overflow() int {
	return int(max(b.cursor.Load()-int64(b.capacity), 0))
}

// View returns the valid transforms and their count.
func (b *Batch) View() ([]mgl32.Mat4, int) {
	n := b.Count()
	return b.Transforms[:n], n
}

func (b *Batch) put(k int, m mgl32.Mat4, c mgl32.Vec4, slot int32) {
	if k >= b.capacity {
		return
	}
	b.Transforms[k] = m
	b.Colors[k] = c
	b.Slots[k] = slot
}

// Assemble schedules compaction of p's active slots into b after dep in
// three steps: every chunk of chunkSize slots counts its live entities in
// parallel, one task prefix-sums the counts into chunk offsets and claims the
// total from the cursor, then every chunk writes its entities from its offset
// in parallel. The output is in global slot order whatever the chunking. A
// disposed pool yields an empty batch.
func Assemble(s *system.Scheduler, b *Batch, p *ecs.Pool, st Style, chunkSize int, dep *system.Handle) *system.Handle {
	b.Reset()
	if p.Disposed() {
		return dep
	}
	n := p.Capacity()
	if chunkSize < 1 {
		chunkSize = s.DefaultBatch(n)
	}
	chunks := (n + chunkSize - 1) / chunkSize
	if cap(b.starts) < chunks {
		b.starts = make([]int, chunks)
	}
	starts := b.starts[:chunks]
	bounds := func(c int) (int, int) {
		lo := c * chunkSize
		return lo, min(lo+chunkSize, n)
	}

	counted := s.ParallelFor(chunks, 1, func(c int) {
		lo, hi := bounds(c)
		live := 0
		for i := lo; i < hi; i++ {
			if p.Active[i].Load() {
				live++
			}
		}
		starts[c] = live
	}, dep)

	offsets := s.Schedule(func() {
		total := 0
		for c, live := range starts {
			starts[c] = total
			total += live
		}
		b.Claim(total)
	}, counted)

	return s.ParallelFor(chunks, 1, func(c int) {
		k := starts[c]
		if k >= b.capacity {
			return
		}
		end := b.capacity
		if c+1 < len(starts) {
			end = min(starts[c+1], end)
		}
		lo, hi := bounds(c)
		for i := lo; i < hi && k < end; i++ {
			if !p.Active[i].Load() {
				continue
			}
			b.put(k, Transform(p.Position[i], p.Velocity[i], st), FlashColor(p.Flash[i], st), int32(i))
			k++
		}
	}, offsets)
}

// Transform builds the instance matrix: translate, yaw along velocity, scale.
func Transform(pos, vel mgl32.Vec3, st Style) mgl32.Mat4 {
	m := mgl32.Translate3D(pos[0], pos[1], pos[2])
	if st.Orient {
		m = m.Mul4(mgl32.HomogRotate3DY(ecs.Yaw(vel)))
	}
	if st.Scale > 0 && st.Scale != 1 {
		m = m.Mul4(mgl32.Scale3D(st.Scale, st.Scale, st.Scale))
	}
	return m
}

// FlashColor blends from Base toward Flash by the remaining highlight time.
func FlashColor(flash float32, st Style) mgl32.Vec4 {
	if flash <= 0 || st.FlashTime <= 0 {
		return st.Base
	}
	t := mgl32.Clamp(flash/st.FlashTime, 0, 1)
	return st.Base.Add(st.Flash.Sub(st.Base).Mul(t))
}
