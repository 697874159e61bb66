package ecs

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Motion selects the movement rules a pool's kernel applies. It is a plain
// value so one kernel serves every entity kind.
type Motion struct {
	Expires  bool    // lifetime counts down and deactivates the slot
	TurnRate float32 // constant yaw rate in rad/s (curved trajectories)
	Seek     float32 // max yaw rate in rad/s toward the anchor, 0 disables
}

// StepMotion advances slot i by dt. Each slot is written only by the task
// instance that owns its index.
func (p *Pool) StepMotion(i int, dt float32, m Motion, anchor mgl32.Vec3) {
	if !p.Active[i].Load() {
		return
	}
	if m.Expires {
		p.Lifetime[i] -= dt
		if p.Lifetime[i] <= 0 {
			p.Active[i].Store(false)
			return
		}
	}
	if p.Flash[i] > 0 {
		p.Flash[i] = max(p.Flash[i]-dt, 0)
	}
	if p.Cooldown[i] > 0 {
		p.Cooldown[i] = max(p.Cooldown[i]-dt, 0)
	}

	v := p.Velocity[i]
	if m.TurnRate != 0 {
		v = RotateY(v, m.TurnRate*dt)
	}
	if m.Seek > 0 {
		v = steer(v, anchor.Sub(p.Position[i]), m.Seek*dt)
	}
	p.Velocity[i] = v
	p.Position[i] = p.Position[i].Add(v.Mul(dt))
}

// RotateY rotates v by angle radians around the +Y axis.
func RotateY(v mgl32.Vec3, angle float32) mgl32.Vec3 {
	sin, cos := math.Sincos(float64(angle))
	s, c := float32(sin), float32(cos)
	return mgl32.Vec3{v[0]*c + v[2]*s, v[1], -v[0]*s + v[2]*c}
}

// Yaw returns the heading of v on the XZ plane, 0 facing +Z.
func Yaw(v mgl32.Vec3) float32 {
	return float32(math.Atan2(float64(v[0]), float64(v[2])))
}

// steer turns v toward to by at most maxTurn radians on the XZ plane.
func steer(v, to mgl32.Vec3, maxTurn float32) mgl32.Vec3 {
	if to[0]*to[0]+to[2]*to[2] < minDirLenSq || v[0]*v[0]+v[2]*v[2] < minDirLenSq {
		return v
	}
	delta := Yaw(to) - Yaw(v)
	for delta > math.Pi {
		delta -= 2 * math.Pi
	}
	for delta < -math.Pi {
		delta += 2 * math.Pi
	}
	delta = mgl32.Clamp(delta, -maxTurn, maxTurn)
	return RotateY(v, delta)
}
