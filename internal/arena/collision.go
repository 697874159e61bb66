package arena

import (
	"github.com/arenasim/simcore/internal/core/event"
	"github.com/arenasim/simcore/internal/core/system"
)

// HitRadius is the contact distance between an entity of g and one of target.
func (g *Group) HitRadius(target *Group) float32 {
	return g.behavior.Radius + target.behavior.Radius
}

// ScheduleCollision tests g's entities against target's occupants after dep.
// g's grid must already hold this frame's positions.
//
// The work is parallel over target slots, so each target's health is written
// by exactly one task instance. A consuming entity claims itself with a
// compare-and-swap on its liveness flag before it applies damage, so it hits
// at most one target even when several tasks see it. Damage records go to the
// target's damage queue and a target whose health drops to zero is
// deactivated and reported on its death queue. Collecting groups report to
// their own collect queue instead and deal no damage.
//
// Two collisions writing the same target must be chained through dep.
func (g *Group) ScheduleCollision(target *Group, dep *system.Handle) *system.Handle {
	if g.Disposed() || target.Disposed() {
		return dep
	}
	ap := g.pool
	tp := target.pool
	hit := g.behavior.Hit
	radius := g.HitRadius(target)
	scale := float32(1)
	if hit.Continuous {
		scale = g.dt
	}

	return g.sched.ParallelFor(tp.Capacity(), target.chunk, func(i int) {
		if !tp.Active[i].Load() {
			return
		}
		pos := tp.Position[i]

		if hit.Collect {
			g.grid.Query(pos, radius, ap.Position, func(j int32) bool {
				if ap.Active[j].CompareAndSwap(true, false) {
					g.collects.Enqueue(event.Collect{Slot: j, Position: ap.Position[j], Value: ap.Damage[j]})
				}
				return true
			})
			return
		}

		hp := tp.Health[i]
		hitAny := false
		g.grid.Query(pos, radius, ap.Position, func(j int32) bool {
			if hit.Consume {
				if !ap.Active[j].CompareAndSwap(true, false) {
					return true
				}
			} else if !ap.Active[j].Load() {
				return true
			}
			amount := ap.Damage[j] * scale
			hp -= amount
			hitAny = true
			target.damage.Enqueue(event.Damage{Slot: int32(i), Position: pos, Amount: amount})
			return hp > 0
		})
		if !hitAny {
			return
		}
		tp.Health[i] = hp
		if hp <= 0 {
			tp.Active[i].Store(false)
			target.deaths.Enqueue(event.Death{Slot: int32(i), Position: pos})
		}
	}, dep)
}
