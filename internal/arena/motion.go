package arena

import (
	"github.com/arenasim/simcore/internal/core/event"
	"github.com/arenasim/simcore/internal/core/system"
	"github.com/arenasim/simcore/internal/world"
	"github.com/go-gl/mathgl/mgl32"
)

// ScheduleMotion advances every slot by dt after dep. Seeking groups steer
// toward anchor; armed groups decide in parallel whether to fire and push a
// SpawnRequest that DrainSpawnQueue later turns into a projectile.
func (g *Group) ScheduleMotion(dt float32, anchor mgl32.Vec3, dep *system.Handle) *system.Handle {
	if g.Disposed() {
		return dep
	}
	g.dt = dt
	p := g.pool
	m := g.behavior.Motion
	fire := g.behavior.Fire
	rangeSq := fire.Range * fire.Range
	return g.sched.ParallelFor(p.Capacity(), g.chunk, func(i int) {
		p.StepMotion(i, dt, m, anchor)
		if fire.Interval <= 0 || !p.Active[i].Load() || p.Cooldown[i] > 0 {
			return
		}
		pos := p.Position[i]
		if fire.Range > 0 && world.DistSqXZ(pos, anchor) > rangeSq {
			return
		}
		p.Cooldown[i] = fire.Interval
		aim := anchor.Sub(pos)
		aim[1] = 0
		g.spawns.Enqueue(event.SpawnRequest{
			Position:  pos,
			Direction: aim,
			Speed:     fire.Speed,
			Lifetime:  fire.Lifetime,
			Damage:    fire.Damage,
		})
	}, dep)
}

// ScheduleGrid rebuilds the group's broad-phase grid after dep. The grid is
// written only here and read only by collision tasks that depend on it.
func (g *Group) ScheduleGrid(dep *system.Handle) *system.Handle {
	if g.Disposed() {
		return dep
	}
	return g.sched.Schedule(func() { g.grid.Rebuild(g.pool) }, dep)
}
