package ecs

import (
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"
)

// Forward is substituted for a spawn direction that is too short to normalize.
var Forward = mgl32.Vec3{0, 0, 1}

const minDirLenSq = 1e-8

// Pool is a fixed-capacity structure-of-arrays store for one entity kind.
// Every exported array has length Capacity() for the lifetime of the pool and
// index i always names the same slot in each of them.
//
// Spawning is a ring buffer: the slot under the cursor is overwritten whether or
// not it is still active, so the oldest entity loses when the pool is full.
type Pool struct {
	Position  []mgl32.Vec3
	Velocity  []mgl32.Vec3
	Active    []atomic.Bool
	Lifetime  []float32
	Health    []float32
	MaxHealth []float32
	Damage    []float32
	Cooldown  []float32 // fire cooldown
	Flash     []float32 // highlight countdown

	generation []uint32
	capacity   int
	cursor     int
	disposed   bool
}

func NewPool(capacity int) *Pool {
	if capacity < 1 {
		capacity = 1
	}
	return &Pool{
		Position:   make([]mgl32.Vec3, capacity),
		Velocity:   make([]mgl32.Vec3, capacity),
		Active:     make([]atomic.Bool, capacity),
		Lifetime:   make([]float32, capacity),
		Health:     make([]float32, capacity),
		MaxHealth:  make([]float32, capacity),
		Damage:     make([]float32, capacity),
		Cooldown:   make([]float32, capacity),
		Flash:      make([]float32, capacity),
		generation: make([]uint32, capacity),
		capacity:   capacity,
	}
}

// Spawn writes a new entity into the next ring-buffer slot and returns its id.
func (p *Pool) Spawn(pos, dir mgl32.Vec3, speed, lifetime float32) SlotID {
	return p.spawn(pos, dir, speed, lifetime, 1, 0)
}

// SpawnArmed is Spawn for entities that deal damage on contact.
func (p *Pool) SpawnArmed(pos, dir mgl32.Vec3, speed, lifetime, damage float32) SlotID {
	return p.spawn(pos, dir, speed, lifetime, 1, damage)
}

// SpawnHostile spawns an entity that is removed by damage rather than by time.
func (p *Pool) SpawnHostile(pos, dir mgl32.Vec3, speed, health, damage float32) SlotID {
	return p.spawn(pos, dir, speed, 0, health, damage)
}

func (p *Pool) spawn(pos, dir mgl32.Vec3, speed, lifetime, health, damage float32) SlotID {
	if p == nil || p.disposed {
		return InvalidSlot
	}
	i := p.cursor
	p.cursor++
	if p.cursor >= p.capacity {
		p.cursor = 0
	}
	return p.write(i, pos, dir, speed, lifetime, health, damage)
}

// Revive reactivates slot i in place, overwriting every field exactly like a
// fresh Spawn into that slot, so slots that were never spawned come back
// fully armed. The slot gets a new generation.
func (p *Pool) Revive(i int, pos, dir mgl32.Vec3, speed, lifetime, health, damage float32) SlotID {
	if !p.valid(i) {
		return InvalidSlot
	}
	return p.write(i, pos, dir, speed, lifetime, health, damage)
}

func (p *Pool) write(i int, pos, dir mgl32.Vec3, speed, lifetime, health, damage float32) SlotID {
	dir = heading(dir)
	p.generation[i]++
	p.Position[i] = pos
	p.Velocity[i] = dir.Mul(speed)
	p.Lifetime[i] = lifetime
	p.Health[i] = health
	p.MaxHealth[i] = health
	p.Damage[i] = damage
	p.Cooldown[i] = 0
	p.Flash[i] = 0
	p.Active[i].Store(true)
	return NewSlotID(uint32(i), p.generation[i])
}

// heading normalizes dir, substituting Forward for near-zero vectors.
func heading(dir mgl32.Vec3) mgl32.Vec3 {
	if dir.Dot(dir) < minDirLenSq {
		return Forward
	}
	return dir.Normalize()
}

// SetActive force-sets a slot's liveness. Out-of-range indices are ignored.
func (p *Pool) SetActive(i int, v bool) {
	if !p.valid(i) {
		return
	}
	p.Active[i].Store(v)
}

func (p *Pool) IsActive(i int) bool {
	if !p.valid(i) {
		return false
	}
	return p.Active[i].Load()
}

// Alive reports whether id still names the live occupant of its slot.
func (p *Pool) Alive(id SlotID) bool {
	i := id.Index()
	if !id.Valid() || !p.valid(i) {
		return false
	}
	return p.generation[i] == id.Generation() && p.Active[i].Load()
}

// Reset deactivates every slot and rewinds the spawn cursor.
func (p *Pool) Reset() {
	if p == nil || p.disposed {
		return
	}
	for i := range p.Active {
		p.Active[i].Store(false)
	}
	p.cursor = 0
}

// Dispose drops the backing arrays. Safe to call more than once.
func (p *Pool) Dispose() {
	if p == nil || p.disposed {
		return
	}
	p.disposed = true
	p.Position = nil
	p.Velocity = nil
	p.Active = nil
	p.Lifetime = nil
	p.Health = nil
	p.MaxHealth = nil
	p.Damage = nil
	p.Cooldown = nil
	p.Flash = nil
	p.generation = nil
	p.capacity = 0
	p.cursor = 0
}

func (p *Pool) Disposed() bool { return p == nil || p.disposed }

func (p *Pool) Capacity() int {
	if p == nil {
		return 0
	}
	return p.capacity
}

func (p *Pool) Cursor() int {
	if p == nil {
		return 0
	}
	return p.cursor
}

func (p *Pool) ActiveCount() int {
	if p.Disposed() {
		return 0
	}
	n := 0
	for i := range p.Active {
		if p.Active[i].Load() {
			n++
		}
	}
	return n
}

func (p *Pool) valid(i int) bool {
	return p != nil && !p.disposed && i >= 0 && i < p.capacity
}
