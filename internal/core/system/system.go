package system

// Phase orders the nodes of a frame graph. Nodes run in phase order and a node
// may only depend on nodes of the same or an earlier phase.
type Phase int

const (
	PhaseMotion    Phase = iota // 0: per-pool motion, fire decisions
	PhaseBroad                  // 1: spatial grid rebuild
	PhaseCollision              // 2: cross-pool collision
	PhaseDrain                  // 3: single-threaded queue draining
	PhaseRespawn                // 4: annulus recycling
	PhaseRender                 // 5: render batch compaction
	PhaseCleanup                // 6: frame bookkeeping
)

var phaseNames = [...]string{"motion", "broad", "collision", "drain", "respawn", "render", "cleanup"}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}
