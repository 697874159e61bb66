package arena

import (
	"fmt"

	"github.com/arenasim/simcore/internal/core/ecs"
	"github.com/arenasim/simcore/internal/core/system"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

// Config holds the arena-wide knobs shared by every group it creates.
type Config struct {
	Seed        uint32
	Chunk       int
	RenderLimit int
}

// Hooks are the external callbacks invoked while effect queues drain. Each
// receives the name of the group the record belongs to. Any may be nil.
type Hooks struct {
	DamageText func(group string, pos mgl32.Vec3, amount float32)
	Highlight  func(group string, slot int32)
	Death      func(group string, pos mgl32.Vec3)
	Collect    func(group string, pos mgl32.Vec3, value float32)
}

type link struct {
	attacker, target *Group
}

// Arena owns a set of groups and runs the frame pipeline over them:
//
//	motion (all groups) -> grids -> collisions (chained per target)
//	-> drains (damage, death, spawn, collect) -> respawn -> render -> cleanup
//
// The pipeline is a system.Graph rebuilt whenever groups, links or fire
// routes change. Step is the only entry point that touches entity state and
// must be called from a single goroutine.
type Arena struct {
	cfg      Config
	sched    *system.Scheduler
	log      *zap.Logger
	registry *ecs.Registry

	groups []*Group
	byName map[string]*Group
	player *Group
	links  []link
	routes map[*Group]*Group

	graph *system.Graph
	dirty bool

	frame  uint32
	dt     float32
	anchor mgl32.Vec3
	hooks  Hooks
	stats  FrameStats

	disposed bool
}

func NewArena(cfg Config, s *system.Scheduler, log *zap.Logger) *Arena {
	if log == nil {
		log = zap.NewNop()
	}
	return &Arena{
		cfg:      cfg,
		sched:    s,
		log:      log,
		registry: ecs.NewRegistry(),
		byName:   make(map[string]*Group),
		routes:   make(map[*Group]*Group),
		dirty:    true,
	}
}

// NewGroup creates a group with the arena's seed, chunk and render limit and
// adds it.
func (a *Arena) NewGroup(name string, b Behavior, capacity int, cellSize float32) (*Group, error) {
	g := NewGroup(name, b, GroupOptions{
		Capacity:    capacity,
		CellSize:    cellSize,
		RenderLimit: a.cfg.RenderLimit,
		Chunk:       a.cfg.Chunk,
		Seed:        a.cfg.Seed,
	}, a.sched, a.log)
	if err := a.AddGroup(g); err != nil {
		g.Dispose()
		return nil, err
	}
	return g, nil
}

// AddGroup takes ownership of g. The first player group becomes the anchor.
func (a *Arena) AddGroup(g *Group) error {
	if a.disposed {
		return fmt.Errorf("arena disposed")
	}
	if g.Disposed() {
		return fmt.Errorf("add group: group is nil or disposed")
	}
	if _, ok := a.byName[g.name]; ok {
		return fmt.Errorf("group %q already exists", g.name)
	}
	a.groups = append(a.groups, g)
	a.byName[g.name] = g
	a.registry.Register(g)
	if a.player == nil && g.behavior.Kind == KindPlayer {
		a.player = g
	}
	a.dirty = true
	return nil
}

func (a *Arena) Player() *Group { return a.player }

// Group returns the named group, nil if unknown.
func (a *Arena) Group(name string) *Group { return a.byName[name] }

func (a *Arena) Groups() []*Group { return a.groups }

// Link makes attacker's entities collide with target's. A combined radius
// above the attacker's cell size is still exact; the grid query widens past
// 3x3 and the link is logged at Debug.
func (a *Arena) Link(attacker, target string) error {
	att, tgt := a.byName[attacker], a.byName[target]
	if att == nil {
		return fmt.Errorf("link %s->%s: unknown attacker", attacker, target)
	}
	if tgt == nil {
		return fmt.Errorf("link %s->%s: unknown target", attacker, target)
	}
	for _, l := range a.links {
		if l.attacker == att && l.target == tgt {
			return fmt.Errorf("link %s->%s declared twice", attacker, target)
		}
	}
	if r := att.HitRadius(tgt); att.CellSize() < r {
		a.log.Debug("link searches a wide cell window",
			zap.String("attacker", attacker),
			zap.String("target", target),
			zap.Float32("cell_size", att.CellSize()),
			zap.Float32("hit_radius", r),
			zap.Int32("span", att.grid.Span(r)),
		)
	}
	a.links = append(a.links, link{attacker: att, target: tgt})
	a.dirty = true
	return nil
}

// Fire routes shooter's spawn requests into ammo.
func (a *Arena) Fire(shooter, ammo string) error {
	s, m := a.byName[shooter], a.byName[ammo]
	if s == nil || m == nil {
		return fmt.Errorf("fire %s->%s: unknown group", shooter, ammo)
	}
	if s.behavior.Fire.Interval <= 0 {
		return fmt.Errorf("fire %s->%s: shooter has no fire interval", shooter, ammo)
	}
	a.routes[s] = m
	return nil
}

// Frame is the number of steps taken since the last Reset.
func (a *Arena) Frame() uint32 { return a.frame }

// Anchor is the position motion seeks, firing aims and respawn rings are
// centred on: the first active player slot, or the last known one.
func (a *Arena) Anchor() mgl32.Vec3 { return a.anchor }

// Stats returns the summary of the last Step.
func (a *Arena) Stats() FrameStats { return a.stats }

// Step advances the simulation by dt and returns the frame summary. Every
// task of the frame has completed when Step returns.
func (a *Arena) Step(dt float32, hooks Hooks) FrameStats {
	if a.disposed {
		return FrameStats{}
	}
	if a.dirty {
		if err := a.build(); err != nil {
			a.log.Error("frame graph build failed", zap.Error(err))
			return FrameStats{}
		}
	}
	a.frame++
	a.dt = dt
	a.hooks = hooks
	a.refreshAnchor()
	a.beginStats()

	a.graph.Run()
	return a.stats
}

func (a *Arena) refreshAnchor() {
	p := a.player.Pool()
	if p.Disposed() {
		return
	}
	for i := range p.Active {
		if p.Active[i].Load() {
			a.anchor = p.Position[i]
			return
		}
	}
}

// build declares the frame graph from the current topology.
func (a *Arena) build() error {
	g := system.NewGraph(a.sched)
	var drainDeps []string

	for _, grp := range a.groups {
		grp := grp // per-iteration copy: closures below run after the loop
		motion := "motion:" + grp.name
		if err := g.Parallel(motion, system.PhaseMotion, nil, func(dep *system.Handle) *system.Handle {
			return grp.ScheduleMotion(a.dt, a.anchor, dep)
		}); err != nil {
			return err
		}
		drainDeps = append(drainDeps, motion)
	}

	attackers := make(map[*Group]bool, len(a.links))
	for _, l := range a.links {
		attackers[l.attacker] = true
	}
	for _, grp := range a.groups {
		grp := grp // per-iteration copy: closures below run after the loop
		if !attackers[grp] {
			continue
		}
		name := "grid:" + grp.name
		if err := g.Parallel(name, system.PhaseBroad, []string{"motion:" + grp.name}, func(dep *system.Handle) *system.Handle {
			return grp.ScheduleGrid(dep)
		}); err != nil {
			return err
		}
	}

	// Collisions writing the same target are chained so each target slot has
	// one writer at a time.
	lastHit := make(map[*Group]string, len(a.links))
	for _, l := range a.links {
		l := l // per-iteration copy: closures below run after the loop
		name := "hit:" + l.attacker.name + "->" + l.target.name
		deps := []string{"grid:" + l.attacker.name, "motion:" + l.target.name}
		if prev, ok := lastHit[l.target]; ok {
			deps = append(deps, prev)
		}
		if err := g.Parallel(name, system.PhaseCollision, deps, func(dep *system.Handle) *system.Handle {
			return l.attacker.ScheduleCollision(l.target, dep)
		}); err != nil {
			return err
		}
		lastHit[l.target] = name
		drainDeps = append(drainDeps, name)
	}

	if err := g.Sync("drain", system.PhaseDrain, drainDeps, a.drain); err != nil {
		return err
	}

	var rendered []string
	for _, grp := range a.groups {
		grp := grp // per-iteration copy: closures below run after the loop
		renderDeps := []string{"drain"}
		if grp.behavior.Respawn.Enabled() {
			name := "respawn:" + grp.name
			if err := g.Parallel(name, system.PhaseRespawn, []string{"drain"}, func(dep *system.Handle) *system.Handle {
				return grp.ScheduleRespawn(a.anchor, a.frame, dep)
			}); err != nil {
				return err
			}
			renderDeps = append(renderDeps, name)
		}
		name := "render:" + grp.name
		if err := g.Parallel(name, system.PhaseRender, renderDeps, func(dep *system.Handle) *system.Handle {
			return grp.ScheduleRender(dep)
		}); err != nil {
			return err
		}
		rendered = append(rendered, name)
	}

	if err := g.Sync("cleanup", system.PhaseCleanup, rendered, a.endStats); err != nil {
		return err
	}

	a.graph = g
	a.dirty = false
	a.log.Debug("frame graph built",
		zap.Int("groups", len(a.groups)),
		zap.Int("links", len(a.links)),
		zap.Strings("nodes", g.Names()),
	)
	return nil
}

// drain empties every effect queue on the controlling goroutine: damage
// first, then deaths, then spawn requests, then collections.
func (a *Arena) drain() {
	h := a.hooks
	for k, grp := range a.groups {
		name := grp.name
		var display func(mgl32.Vec3, float32)
		if h.DamageText != nil {
			display = func(pos mgl32.Vec3, amount float32) { h.DamageText(name, pos, amount) }
		}
		var highlight func(int32)
		if h.Highlight != nil {
			highlight = func(slot int32) { h.Highlight(name, slot) }
		}
		a.stats.Groups[k].Damaged = grp.DrainDamageQueue(display, highlight)
	}
	for k, grp := range a.groups {
		name := grp.name
		var cb func(mgl32.Vec3)
		if h.Death != nil {
			cb = func(pos mgl32.Vec3) { h.Death(name, pos) }
		}
		n := grp.DrainDeathQueue(cb)
		a.stats.Groups[k].Deaths = n
		if grp == a.player {
			a.stats.PlayerDowned = a.stats.PlayerDowned || n > 0
		} else {
			a.stats.Kills += n
		}
	}
	for k, grp := range a.groups {
		a.stats.Groups[k].Spawned = grp.DrainSpawnQueue(a.routes[grp])
	}
	for k, grp := range a.groups {
		name := grp.name
		var cb func(mgl32.Vec3, float32)
		if h.Collect != nil {
			cb = func(pos mgl32.Vec3, value float32) { h.Collect(name, pos, value) }
		}
		a.stats.Groups[k].Collected = grp.DrainCollectQueue(cb)
	}
}

func (a *Arena) beginStats() {
	gs := a.stats.Groups[:0]
	for _, grp := range a.groups {
		gs = append(gs, GroupStats{Name: grp.name})
	}
	a.stats = FrameStats{Frame: a.frame, Groups: gs}
}

// endStats totals the frame once every render batch is complete.
func (a *Arena) endStats() {
	for k, grp := range a.groups {
		st := &a.stats.Groups[k]
		st.Active = grp.ActiveCount()
		st.Rendered, st.Dropped = grp.renderStats()
		a.stats.Rendered += st.Rendered
		a.stats.Dropped += st.Dropped
	}
}

// Reset clears every group for a new round. Topology is kept.
func (a *Arena) Reset() {
	if a.disposed {
		return
	}
	a.registry.ResetAll()
	a.frame = 0
	a.anchor = mgl32.Vec3{}
	a.stats = FrameStats{Groups: a.stats.Groups[:0]}
}

// Dispose releases every group. Safe to call more than once; later calls to
// Step return an empty summary.
func (a *Arena) Dispose() {
	if a.disposed {
		return
	}
	a.disposed = true
	a.registry.DisposeAll()
	a.groups = nil
	a.byName = map[string]*Group{}
	a.links = nil
	a.routes = map[*Group]*Group{}
	a.player = nil
	a.graph = nil
	a.log.Debug("arena disposed", zap.Uint32("frames", a.frame))
}

func (a *Arena) Disposed() bool { return a.disposed }
