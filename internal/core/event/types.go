package event

import "github.com/go-gl/mathgl/mgl32"

// Effect records produced by parallel collision and motion tasks.

// Damage reports a hit on a target slot; Position and Amount drive floating
// damage text, Slot drives the highlight flash.
type Damage struct {
	Slot     int32
	Position mgl32.Vec3
	Amount   float32
}

// Death reports a target whose health reached zero.
type Death struct {
	Slot     int32
	Position mgl32.Vec3
}

// SpawnRequest is a spawn computed in parallel and instantiated on the
// controlling goroutine, e.g. a hostile's weapon firing.
type SpawnRequest struct {
	Position  mgl32.Vec3
	Direction mgl32.Vec3
	Speed     float32
	Lifetime  float32
	Damage    float32
}

// Collect reports a pickup touched by its collector.
type Collect struct {
	Slot     int32
	Position mgl32.Vec3
	Value    float32
}

// Round-level notifications delivered through the Bus.

type RoundStarted struct {
	Round int
}

type PlayerDowned struct {
	Round    int
	Position mgl32.Vec3
}

type RoundEnded struct {
	Round  int
	Frames int
	Kills  int
}
