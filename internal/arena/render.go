package arena

import (
	"github.com/arenasim/simcore/internal/core/system"
	"github.com/arenasim/simcore/internal/render"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

// ScheduleRender assembles the group's instance batch after dep.
func (g *Group) ScheduleRender(dep *system.Handle) *system.Handle {
	if g.Disposed() {
		return dep
	}
	return render.Assemble(g.sched, g.batch, g.pool, g.behavior.Style, g.chunk, dep)
}

// RenderBatch returns this frame's instance transforms and their count. Only
// valid once the render handle has completed.
func (g *Group) RenderBatch() ([]mgl32.Mat4, int) {
	if g.Disposed() {
		return nil, 0
	}
	return g.batch.View()
}

// RenderColors returns the per-instance colors aligned with RenderBatch.
func (g *Group) RenderColors() []mgl32.Vec4 {
	if g.Disposed() {
		return nil
	}
	return g.batch.Colors[:g.batch.Count()]
}

// RenderSlots returns the pool slot behind each rendered instance.
func (g *Group) RenderSlots() []int32 {
	if g.Disposed() {
		return nil
	}
	return g.batch.Slots[:g.batch.Count()]
}

// renderStats reads the completed batch. The first frame that drops entities
// after a clean one is logged, so a sustained overflow logs once.
func (g *Group) renderStats() (rendered, dropped int) {
	if g.Disposed() {
		return 0, 0
	}
	rendered, dropped = g.batch.Count(), g.batch.Overflow()
	switch {
	case dropped > 0 && !g.overflowing:
		g.overflowing = true
		g.log.Debug("render batch overflow",
			zap.Int("capacity", g.batch.Capacity()),
			zap.Int("dropped", dropped),
		)
	case dropped == 0:
		g.overflowing = false
	}
	return rendered, dropped
}
