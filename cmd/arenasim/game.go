package main

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/arenasim/simcore/internal/arena"
	"github.com/arenasim/simcore/internal/config"
	"github.com/arenasim/simcore/internal/core/ecs"
	"github.com/arenasim/simcore/internal/core/event"
	"github.com/arenasim/simcore/internal/data"
	"github.com/arenasim/simcore/internal/mathx"
	"github.com/arenasim/simcore/internal/persist"
	"github.com/arenasim/simcore/internal/scripting"
	"github.com/arenasim/simcore/internal/world"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

const playerWalkSpeed = 4

// Game is the headless round driver around an arena: it walks and fires for
// the player, turns deaths into drops through the Lua rules, ends a round
// when the player goes down and records the round summary.
//
// Round transitions run as Bus handlers: PlayerDowned closes the round and
// starts the next one, RoundEnded stores the finished summary.
type Game struct {
	cfg   *config.Config
	log   *zap.Logger
	arena *arena.Arena
	table *data.GroupTable
	rules *scripting.Engine  // nil: no drops, flat waves
	repo  *persist.RoundRepo // nil: telemetry off
	bus   *event.Bus

	player   *arena.Group
	playerID ecs.SlotID
	ammo     *arena.Group
	drops    map[string]*arena.Group

	round      int
	roundKills int
	rounds     int // completed
	summary    *persist.RoundSummary
	finished   []*persist.RoundSummary // ended, not yet recorded
	bestKills  int
	clock      float32
	cooldown   float32
	hooks      arena.Hooks
}

func NewGame(cfg *config.Config, a *arena.Arena, tbl *data.GroupTable, rules *scripting.Engine, repo *persist.RoundRepo, log *zap.Logger) (*Game, error) {
	g := &Game{
		cfg:    cfg,
		log:    log,
		arena:  a,
		table:  tbl,
		rules:  rules,
		repo:   repo,
		bus:    event.NewBus(),
		player: a.Player(),
		drops:  make(map[string]*arena.Group, len(tbl.Drops)),
	}
	if g.player == nil {
		return nil, fmt.Errorf("no player group defined")
	}
	if tbl.Player.Ammo != "" {
		g.ammo = a.Group(tbl.Player.Ammo)
	}
	for _, d := range tbl.Drops {
		g.drops[d.Group] = a.Group(d.Pickup)
	}
	g.hooks = arena.Hooks{
		Death:   g.onDeath,
		Collect: g.onCollect,
	}

	if repo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		best, err := repo.BestKills(ctx, cfg.Sim.Seed)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("best kills: %w", err)
		}
		g.bestKills = best
		log.Info("telemetry history", zap.Uint32("seed", cfg.Sim.Seed), zap.Int("best_kills", best))
	}

	event.Subscribe(g.bus, func(e event.RoundStarted) {
		g.log.Info("round started", zap.Int("round", e.Round))
	})
	event.Subscribe(g.bus, g.onPlayerDowned)
	event.Subscribe(g.bus, g.onRoundEnded)
	return g, nil
}

func (g *Game) Round() int      { return g.round }
func (g *Game) Rounds() int     { return g.rounds }
func (g *Game) RoundKills() int { return g.roundKills }
func (g *Game) BestKills() int  { return g.bestKills }

// Done reports whether the configured number of rounds has been played.
func (g *Game) Done() bool {
	return g.cfg.Sim.MaxRounds > 0 && g.rounds >= g.cfg.Sim.MaxRounds
}

// StartRound clears the arena and lays out a fresh field.
func (g *Game) StartRound() {
	g.arena.Reset()
	g.round++
	g.roundKills = 0
	g.clock = 0
	g.cooldown = 0

	scale := 1.0
	if g.rules != nil {
		scale = g.rules.WaveScale(g.round)
	}
	g.playerID = g.player.Spawn(mgl32.Vec3{}, ecs.Forward)
	for _, def := range g.table.Groups() {
		grp := g.arena.Group(def.Name)
		if grp.Behavior().Kind == arena.KindHostile {
			grp.SetHealthScale(float32(scale))
		}
		if def.Respawn.Initial > 0 {
			grp.Populate(mgl32.Vec3{}, def.Respawn.Initial)
		}
	}
	g.summary = persist.NewRoundSummary(g.cfg.Sim.Seed, g.round, time.Now())
	event.Emit(g.bus, event.RoundStarted{Round: g.round})
}

// Tick drives the player, steps the arena once and handles round end.
func (g *Game) Tick(dt float32) arena.FrameStats {
	g.clock += dt
	g.walk(dt)
	g.fire(dt)

	st := g.arena.Step(dt, g.hooks)
	g.summary.Observe(st)

	// Delivers this frame's PlayerDowned and the previous frame's RoundEnded.
	g.bus.SwapBuffers()
	g.bus.DispatchAll()
	return st
}

// walk moves the player around a circle inside the field.
func (g *Game) walk(dt float32) {
	orbit := min(g.table.Player.Orbit, g.cfg.Arena.FieldRadius)
	if orbit <= 0 {
		return
	}
	w := float64(playerWalkSpeed / orbit)
	t := float64(g.clock)
	pos := mgl32.Vec3{orbit * float32(math.Cos(w*t)), 0, orbit * float32(math.Sin(w*t))}
	vel := mgl32.Vec3{-playerWalkSpeed * float32(math.Sin(w*t)), 0, playerWalkSpeed * float32(math.Cos(w*t))}
	// Place sets the position reached at the end of this frame's motion step.
	g.player.Place(g.playerID.Index(), pos.Sub(vel.Mul(dt)), vel)
}

// fire shoots the player's ammo at the nearest hostile in range.
func (g *Game) fire(dt float32) {
	pdef := g.table.Player
	if g.ammo == nil || pdef.Interval <= 0 {
		return
	}
	g.cooldown -= dt
	if g.cooldown > 0 {
		return
	}
	from := g.arena.Anchor()
	target, ok := g.nearestHostile(from, pdef.Range)
	if !ok {
		return
	}
	g.cooldown = pdef.Interval
	g.ammo.Spawn(from, target.Sub(from))
}

func (g *Game) nearestHostile(from mgl32.Vec3, rng float32) (mgl32.Vec3, bool) {
	best := rng * rng
	if rng <= 0 {
		best = math.MaxFloat32
	}
	var at mgl32.Vec3
	found := false
	for _, grp := range g.arena.Groups() {
		if grp.Behavior().Kind != arena.KindHostile {
			continue
		}
		p := grp.Pool()
		ecs.EachActive(p, func(i int) {
			if d := world.DistSqXZ(p.Position[i], from); d < best {
				best, at, found = d, p.Position[i], true
			}
		})
	}
	return at, found
}

func (g *Game) onDeath(group string, pos mgl32.Vec3) {
	if group == g.player.Name() {
		event.Emit(g.bus, event.PlayerDowned{Round: g.round, Position: pos})
		return
	}
	g.roundKills++
	pickup := g.drops[group]
	if pickup == nil || g.rules == nil {
		return
	}
	roll := mathx.Unit(mathx.Hash3(g.cfg.Sim.Seed, uint32(g.round), uint32(g.roundKills), 0xd809))
	res := g.rules.RollDrop(scripting.DropContext{
		Group: group,
		X:     pos[0],
		Y:     pos[1],
		Z:     pos[2],
		Round: g.round,
		Kills: g.roundKills,
		Roll:  float64(roll),
	})
	if !res.Drop {
		return
	}
	b := pickup.Behavior()
	pickup.SpawnWith(event.SpawnRequest{
		Position:  pos,
		Direction: ecs.Forward,
		Lifetime:  b.Lifetime,
		Damage:    res.Value,
	})
}

// onCollect heals the player by the pickup's value.
func (g *Game) onCollect(_ string, _ mgl32.Vec3, value float32) {
	p := g.player.Pool()
	i := g.playerID.Index()
	if !p.Alive(g.playerID) {
		return
	}
	p.Health[i] = min(p.Health[i]+value, p.MaxHealth[i])
}

func (g *Game) onPlayerDowned(e event.PlayerDowned) {
	if e.Round != g.round || !g.summary.EndedAt.IsZero() {
		return
	}
	g.log.Info("player downed",
		zap.Int("round", e.Round),
		zap.Float32("x", e.Position[0]),
		zap.Float32("z", e.Position[2]),
	)
	g.endRound()
	if !g.Done() {
		g.StartRound()
	}
}

func (g *Game) endRound() {
	g.summary.Finish(time.Now())
	g.rounds++
	g.finished = append(g.finished, g.summary)
	event.Emit(g.bus, event.RoundEnded{Round: g.round, Frames: g.summary.Frames, Kills: g.summary.Kills})
}

// onRoundEnded tracks the best kill count and stores the oldest unrecorded
// summary.
func (g *Game) onRoundEnded(e event.RoundEnded) {
	if len(g.finished) == 0 {
		return
	}
	s := g.finished[0]
	g.finished = g.finished[1:]

	fields := []zap.Field{
		zap.Int("round", e.Round),
		zap.Int("frames", e.Frames),
		zap.Int("kills", e.Kills),
	}
	if e.Kills > g.bestKills {
		g.bestKills = e.Kills
		fields = append(fields, zap.Bool("best", true))
	}
	g.log.Info("round ended", fields...)

	if g.repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := g.repo.Record(ctx, s); err != nil {
		g.log.Error("record round", zap.Error(err), zap.String("round_id", s.ID.String()))
	}
}

// Shutdown closes the current round as if the player went down and delivers
// pending round events.
func (g *Game) Shutdown() {
	if g.summary != nil && g.summary.EndedAt.IsZero() {
		g.endRound()
	}
	g.bus.Flush()
}

// Pending reports how many ended rounds have not been recorded yet.
func (g *Game) Pending() int { return len(g.finished) }
