package arena

import (
	"github.com/arenasim/simcore/internal/core/ecs"
	"github.com/arenasim/simcore/internal/core/event"
	"github.com/arenasim/simcore/internal/core/system"
	"github.com/arenasim/simcore/internal/mathx"
	"github.com/arenasim/simcore/internal/render"
	"github.com/arenasim/simcore/internal/world"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

// Group is one pool of entities together with everything the frame pipeline
// needs for it: its broad-phase grid, its effect queues and its render batch.
//
// Every operation on a nil or disposed group is a no-op. Schedule* methods
// then return their dependency unchanged (a nil handle counts as complete) and
// drains return 0, so late joins and early teardown never fail mid-frame.
type Group struct {
	name     string
	behavior Behavior
	sched    *system.Scheduler
	log      *zap.Logger

	pool  *ecs.Pool
	grid  *world.HashGrid
	batch *render.Batch
	chunk int

	damage   *event.Queue[event.Damage]
	deaths   *event.Queue[event.Death]
	spawns   *event.Queue[event.SpawnRequest]
	collects *event.Queue[event.Collect]

	dt          float32 // last motion step, used by continuous damage
	healthScale float32
	seed        uint32
	respawnPass uint32
	overflowing bool
	disposed    bool
}

// GroupOptions carries the sizing knobs of a group.
type GroupOptions struct {
	Capacity    int
	CellSize    float32 // 0 derives it from the behavior radius
	RenderLimit int     // 0 uses render.MaxInstances
	Chunk       int     // slots per parallel batch, 0 picks one
	Seed        uint32
}

// typicalTargetRadius sizes derived cells so a 3x3 search covers contact with
// a player-sized target.
const typicalTargetRadius = 0.6

func NewGroup(name string, b Behavior, opts GroupOptions, s *system.Scheduler, log *zap.Logger) *Group {
	if log == nil {
		log = zap.NewNop()
	}
	cell := opts.CellSize
	if cell <= 0 {
		cell = world.CellSizeFor(b.Radius + max(b.Radius, typicalTargetRadius))
	}
	shards := 0
	if s != nil {
		shards = s.Workers()
	}
	g := &Group{
		name:        name,
		behavior:    b,
		sched:       s,
		log:         log.With(zap.String("group", name)),
		pool:        ecs.NewPool(opts.Capacity),
		grid:        world.NewHashGrid(cell),
		batch:       render.NewBatch(opts.RenderLimit),
		chunk:       opts.Chunk,
		damage:      event.NewQueue[event.Damage](shards),
		deaths:      event.NewQueue[event.Death](shards),
		spawns:      event.NewQueue[event.SpawnRequest](shards),
		collects:    event.NewQueue[event.Collect](shards),
		healthScale: 1,
		seed:        mathx.Hash32(opts.Seed ^ hashName(name)),
	}
	g.log.Debug("group created",
		zap.Stringer("kind", b.Kind),
		zap.Int("capacity", g.pool.Capacity()),
		zap.Float32("cell_size", cell),
	)
	return g
}

func hashName(s string) uint32 {
	h := uint32(2166136261)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}

func (g *Group) Name() string {
	if g == nil {
		return ""
	}
	return g.name
}

func (g *Group) Behavior() Behavior    { return g.behavior }
func (g *Group) Grid() *world.HashGrid { return g.grid }
func (g *Group) Batch() *render.Batch  { return g.batch }
func (g *Group) Disposed() bool        { return g == nil || g.disposed }
func (g *Group) CellSize() float32     { return g.grid.CellSize() }

// Pool returns the backing pool, nil for a nil group.
func (g *Group) Pool() *ecs.Pool {
	if g == nil {
		return nil
	}
	return g.pool
}

// SetHealthScale multiplies the health of hostiles spawned or revived from now on.
func (g *Group) SetHealthScale(f float32) {
	if g.Disposed() {
		return
	}
	g.healthScale = max(f, 0.01)
}

func (g *Group) ActiveCount() int {
	if g.Disposed() {
		return 0
	}
	return g.pool.ActiveCount()
}

// Spawn creates an entity with the group's default parameters.
func (g *Group) Spawn(pos, dir mgl32.Vec3) ecs.SlotID {
	b := g.behavior
	return g.SpawnWith(event.SpawnRequest{
		Position:  pos,
		Direction: dir,
		Speed:     b.Speed,
		Lifetime:  b.Lifetime,
		Damage:    b.Damage,
	})
}

// SpawnWith creates an entity from an explicit request. Projectiles and
// pickups take the request's lifetime; players and hostiles get the group's
// health, scaled for hostiles by the current health scale.
func (g *Group) SpawnWith(req event.SpawnRequest) ecs.SlotID {
	if g.Disposed() {
		return ecs.InvalidSlot
	}
	switch g.behavior.Kind {
	case KindPlayer:
		return g.pool.SpawnHostile(req.Position, req.Direction, req.Speed, g.behavior.Health, req.Damage)
	case KindHostile:
		id := g.pool.SpawnHostile(req.Position, req.Direction, req.Speed, g.behavior.Health*g.healthScale, req.Damage)
		g.staggerCooldown(id.Index())
		return id
	default:
		return g.pool.SpawnArmed(req.Position, req.Direction, req.Speed, req.Lifetime, req.Damage)
	}
}

// staggerCooldown spreads first shots so a fresh wave does not fire in unison.
func (g *Group) staggerCooldown(i int) {
	if iv := g.behavior.Fire.Interval; iv > 0 {
		g.pool.Cooldown[i] = iv * mathx.Unit(mathx.Hash3(g.seed, uint32(i), 0x5eed, 0))
	}
}

// Place moves slot i directly; the orchestrator uses it to drive the player.
func (g *Group) Place(i int, pos, vel mgl32.Vec3) {
	if g.Disposed() || !g.pool.IsActive(i) {
		return
	}
	g.pool.Position[i] = pos
	g.pool.Velocity[i] = vel
}

// Reset deactivates everything and drops pending effects, for round restarts.
func (g *Group) Reset() {
	if g.Disposed() {
		return
	}
	g.pool.Reset()
	g.grid.Clear()
	g.batch.Reset()
	g.damage.Clear()
	g.deaths.Clear()
	g.spawns.Clear()
	g.collects.Clear()
	g.overflowing = false
}

// Dispose releases the group's storage. Safe to call more than once.
func (g *Group) Dispose() {
	if g.Disposed() {
		return
	}
	g.disposed = true
	g.pool.Dispose()
	g.grid.Clear()
	g.damage.Dispose()
	g.deaths.Dispose()
	g.spawns.Dispose()
	g.collects.Dispose()
	g.batch.Reset()
	g.log.Debug("group disposed")
}
