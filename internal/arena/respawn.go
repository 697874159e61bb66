package arena

import (
	"math"
	"sync/atomic"

	"github.com/arenasim/simcore/internal/core/system"
	"github.com/arenasim/simcore/internal/mathx"
	"github.com/arenasim/simcore/internal/world"
	"github.com/go-gl/mathgl/mgl32"
)

// ScheduleRespawn keeps an endless field around anchor after dep. Inactive
// slots are revived when the policy allows it and active entities farther
// than Cull are recycled. Both land on a uniformly distributed point of the
// annulus [Inner, Outer] around anchor, facing it, with full health.
//
// Placement is a pure function of the group seed, the slot and frame, so a
// replay with the same seed reproduces the same field.
func (g *Group) ScheduleRespawn(anchor mgl32.Vec3, frame uint32, dep *system.Handle) *system.Handle {
	if g.Disposed() || !g.behavior.Respawn.Enabled() {
		return dep
	}
	p := g.pool
	rp := g.behavior.Respawn
	speed := g.behavior.Speed
	lifetime := g.behavior.Lifetime
	if g.behavior.Kind == KindHostile || g.behavior.Kind == KindPlayer {
		lifetime = 0
	}
	health := g.behavior.Health * g.healthScale
	if health <= 0 {
		health = 1
	}
	damage := g.behavior.Damage
	cullSq := rp.Cull * rp.Cull
	inner := max(rp.Inner, 0)
	outer := max(rp.Outer, inner)

	var budget atomic.Int64
	budget.Store(math.MaxInt64)
	if rp.PerFrame > 0 {
		budget.Store(int64(rp.PerFrame))
	}

	return g.sched.ParallelFor(p.Capacity(), g.chunk, func(i int) {
		if p.Active[i].Load() {
			if rp.Cull <= 0 || world.DistSqXZ(p.Position[i], anchor) <= cullSq {
				return
			}
		} else {
			if !rp.Revive || budget.Add(-1) < 0 {
				return
			}
		}
		pos := annulusPoint(anchor, inner, outer, g.seed, uint32(i), frame)
		p.Revive(i, pos, anchor.Sub(pos), speed, lifetime, health, damage)
		g.staggerCooldown(i)
	}, dep)
}

// Respawn runs one respawn pass to completion on the calling goroutine.
func (g *Group) Respawn(anchor mgl32.Vec3) {
	if g.Disposed() {
		return
	}
	g.respawnPass++
	g.ScheduleRespawn(anchor, g.respawnPass, nil).Complete()
}

// annulusPoint picks a point on the XZ plane around center with area-uniform
// density between radii inner and outer.
func annulusPoint(center mgl32.Vec3, inner, outer float32, seed, slot, frame uint32) mgl32.Vec3 {
	u := mathx.Unit(mathx.Hash3(seed, slot, frame, 1))
	v := mathx.Unit(mathx.Hash3(seed, slot, frame, 2))
	r := float32(math.Sqrt(float64(u*(outer*outer-inner*inner) + inner*inner)))
	theta := 2 * math.Pi * float64(v)
	return mgl32.Vec3{
		center[0] + r*float32(math.Sin(theta)),
		center[1],
		center[2] + r*float32(math.Cos(theta)),
	}
}

// Populate spawns n entities on the respawn annulus around anchor, for the
// opening field of a round.
func (g *Group) Populate(anchor mgl32.Vec3, n int) int {
	if g.Disposed() || n <= 0 {
		return 0
	}
	rp := g.behavior.Respawn
	inner := max(rp.Inner, 0)
	outer := max(rp.Outer, inner)
	n = min(n, g.pool.Capacity())
	g.respawnPass++
	for k := 0; k < n; k++ {
		pos := annulusPoint(anchor, inner, outer, g.seed^0x9e3779b9, uint32(k), g.respawnPass)
		g.Spawn(pos, anchor.Sub(pos))
	}
	return n
}
