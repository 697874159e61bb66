package arena

import (
	"github.com/arenasim/simcore/internal/core/event"
	"github.com/go-gl/mathgl/mgl32"
)

// Drains run on the controlling goroutine once every producer of the queue
// has completed. Each returns the number of records it consumed.

// DrainDeathQueue reports every death recorded this frame. cb may be nil.
func (g *Group) DrainDeathQueue(cb func(pos mgl32.Vec3)) int {
	if g.Disposed() {
		return 0
	}
	return g.deaths.Drain(func(d event.Death) {
		if cb != nil {
			cb(d.Position)
		}
	})
}

// DrainDamageQueue reports every damage record and arms the hit slot's flash
// timer. Either callback may be nil.
func (g *Group) DrainDamageQueue(display func(pos mgl32.Vec3, amount float32), highlight func(slot int32)) int {
	if g.Disposed() {
		return 0
	}
	flash := g.behavior.Style.FlashTime
	p := g.pool
	return g.damage.Drain(func(d event.Damage) {
		if flash > 0 && int(d.Slot) < p.Capacity() {
			p.Flash[d.Slot] = flash
		}
		if display != nil {
			display(d.Position, d.Amount)
		}
		if highlight != nil {
			highlight(d.Slot)
		}
	})
}

// DrainSpawnQueue turns the group's pending spawn requests into entities of
// into. Requests are dropped when into is gone.
func (g *Group) DrainSpawnQueue(into *Group) int {
	if g.Disposed() {
		return 0
	}
	if into.Disposed() {
		return g.spawns.Drain(nil)
	}
	return g.spawns.Drain(func(r event.SpawnRequest) {
		into.SpawnWith(r)
	})
}

// DrainCollectQueue reports every pickup collected this frame. cb may be nil.
func (g *Group) DrainCollectQueue(cb func(pos mgl32.Vec3, value float32)) int {
	if g.Disposed() {
		return 0
	}
	return g.collects.Drain(func(c event.Collect) {
		if cb != nil {
			cb(c.Position, c.Value)
		}
	})
}

// PendingSpawns is the number of spawn requests waiting to be drained.
func (g *Group) PendingSpawns() int {
	if g.Disposed() {
		return 0
	}
	return g.spawns.Len()
}
