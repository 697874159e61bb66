package arena

import (
	"fmt"

	"github.com/arenasim/simcore/internal/core/ecs"
	"github.com/arenasim/simcore/internal/render"
)

// Kind tags what a group holds. Behavior differences between kinds live in
// the policy values below, not in per-kind code paths.
type Kind int

const (
	KindPlayer Kind = iota
	KindProjectile
	KindHostile
	KindPickup
)

var kindNames = map[Kind]string{
	KindPlayer:     "player",
	KindProjectile: "projectile",
	KindHostile:    "hostile",
	KindPickup:     "pickup",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind maps a data-file name to a Kind.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown group kind %q", s)
}

// HitPolicy decides what happens when one of the group's entities touches a
// target it is linked against.
type HitPolicy struct {
	Consume    bool // the entity deactivates on its first hit
	Continuous bool // damage is a rate, scaled by frame time
	Collect    bool // no damage; report a Collect record instead
}

// FirePolicy makes active entities shoot at the anchor. Interval 0 disables.
type FirePolicy struct {
	Interval float32
	Range    float32
	Speed    float32
	Lifetime float32
	Damage   float32
}

// RespawnPolicy recycles entities around the anchor for an endless field.
type RespawnPolicy struct {
	Inner    float32 // annulus inner radius
	Outer    float32 // annulus outer radius
	Cull     float32 // active entities farther than this are relocated, 0 disables
	Revive   bool    // inactive slots are brought back
	PerFrame int     // max revivals per frame, 0 = unlimited
}

// Enabled reports whether the policy does anything.
func (r RespawnPolicy) Enabled() bool {
	return r.Outer > 0 && (r.Revive || r.Cull > 0)
}

// Behavior is the full configuration of one group.
type Behavior struct {
	Kind     Kind
	Motion   ecs.Motion
	Radius   float32
	Speed    float32
	Lifetime float32
	Damage   float32 // damage per hit, damage per second if Continuous, value for pickups
	Health   float32
	Hit      HitPolicy
	Fire     FirePolicy
	Respawn  RespawnPolicy
	Style    render.Style
}

// Defaults returns a sensible behavior for a kind; data files override it.
func Defaults(k Kind) Behavior {
	b := Behavior{Kind: k, Radius: 0.5, Health: 1}
	b.Style.Scale = 1
	switch k {
	case KindPlayer:
		b.Health = 100
		b.Radius = 0.6
	case KindProjectile:
		b.Motion.Expires = true
		b.Speed = 30
		b.Lifetime = 2
		b.Damage = 1
		b.Radius = 0.4
		b.Hit.Consume = true
		b.Style.Orient = true
	case KindHostile:
		b.Speed = 3
		b.Health = 10
		b.Damage = 5
		b.Motion.Seek = 1.5
		b.Hit.Continuous = true
		b.Style.FlashTime = 0.15
	case KindPickup:
		b.Motion.Expires = true
		b.Lifetime = 15
		b.Damage = 1
		b.Hit.Collect = true
	}
	return b
}
