package arena

import (
	"testing"

	"github.com/arenasim/simcore/internal/core/ecs"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func buildArena(t *testing.T, cfg Config) *Arena {
	t.Helper()
	a := NewArena(cfg, newSched(t, 4), nil)
	t.Cleanup(a.Dispose)
	return a
}

func mustGroup(t *testing.T, a *Arena, name string, b Behavior, capacity int, cell float32) *Group {
	t.Helper()
	g, err := a.NewGroup(name, b, capacity, cell)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestArenaFrameProjectileHitsHostile(t *testing.T) {
	a := buildArena(t, Config{Seed: 1})

	player := mustGroup(t, a, "player", Defaults(KindPlayer), 1, 0)
	bullets := mustGroup(t, a, "bullets", Defaults(KindProjectile), 32, 2)
	hostiles := mustGroup(t, a, "hostiles", still(KindHostile), 8, 0)
	if err := a.Link("bullets", "hostiles"); err != nil {
		t.Fatal(err)
	}

	player.Spawn(mgl32.Vec3{}, ecs.Forward)
	hostiles.Spawn(mgl32.Vec3{0, 0, 5}, ecs.Forward)
	bullets.Spawn(mgl32.Vec3{}, ecs.Forward)

	var amounts []float32
	var highlighted []int32
	hooks := Hooks{
		DamageText: func(group string, _ mgl32.Vec3, amount float32) {
			if group != "hostiles" {
				t.Errorf("damage reported for %s", group)
			}
			amounts = append(amounts, amount)
		},
		Highlight: func(_ string, slot int32) { highlighted = append(highlighted, slot) },
	}

	var hitFrame uint32
	for i := 0; i < 20; i++ {
		st := a.Step(1.0/60, hooks)
		if hitFrame == 0 && len(amounts) > 0 {
			hitFrame = st.Frame
		}
	}

	// 30 units/s at 60 Hz: 0.5 per frame, first within 0.9 of z=5 on frame 9.
	if hitFrame != 9 {
		t.Fatalf("hit on frame %d, want 9", hitFrame)
	}
	if len(amounts) != 1 || amounts[0] != 1 {
		t.Fatalf("damage amounts %v", amounts)
	}
	if len(highlighted) != 1 || highlighted[0] != 0 {
		t.Fatalf("highlighted %v", highlighted)
	}
	if hp := hostiles.Pool().Health[0]; hp != 9 {
		t.Fatalf("hostile hp %v", hp)
	}
	st := a.Stats()
	if st.Kills != 0 || st.PlayerDowned {
		t.Fatalf("stats %+v", st)
	}
	if gs, ok := st.Group("bullets"); !ok || gs.Active != 0 {
		t.Fatalf("bullets stats %+v", gs)
	}
	if gs, _ := st.Group("hostiles"); gs.Rendered != 1 {
		t.Fatalf("hostiles rendered %d", gs.Rendered)
	}
}

func TestArenaKillsAndPlayerDowned(t *testing.T) {
	a := buildArena(t, Config{})

	pb := Defaults(KindPlayer)
	pb.Health = 1
	player := mustGroup(t, a, "player", pb, 1, 0)
	hb := still(KindHostile)
	hb.Damage = 100
	hostiles := mustGroup(t, a, "hostiles", hb, 4, 2)
	bb := still(KindProjectile)
	bb.Damage = 50
	bullets := mustGroup(t, a, "bullets", bb, 4, 2)

	for _, l := range [][2]string{{"hostiles", "player"}, {"bullets", "hostiles"}} {
		if err := a.Link(l[0], l[1]); err != nil {
			t.Fatal(err)
		}
	}

	player.Spawn(mgl32.Vec3{}, ecs.Forward)
	hostiles.Spawn(mgl32.Vec3{0.5, 0, 0}, ecs.Forward)
	hostiles.Spawn(mgl32.Vec3{10, 0, 0}, ecs.Forward)
	bullets.Spawn(mgl32.Vec3{10, 0, 0.2}, ecs.Forward)

	var deaths []string
	st := a.Step(0.1, Hooks{Death: func(group string, _ mgl32.Vec3) { deaths = append(deaths, group) }})

	if !st.PlayerDowned || st.Kills != 1 {
		t.Fatalf("downed=%v kills=%d", st.PlayerDowned, st.Kills)
	}
	if len(deaths) != 2 {
		t.Fatalf("deaths %v", deaths)
	}
}

func TestArenaFireRouting(t *testing.T) {
	a := buildArena(t, Config{Seed: 3})

	player := mustGroup(t, a, "player", Defaults(KindPlayer), 1, 0)
	hb := still(KindHostile)
	hb.Fire = FirePolicy{Interval: 1, Range: 30, Speed: 5, Lifetime: 4, Damage: 3}
	hostiles := mustGroup(t, a, "hostiles", hb, 4, 0)
	spit := mustGroup(t, a, "spit", Defaults(KindProjectile), 16, 0)

	if err := a.Fire("player", "spit"); err == nil {
		t.Fatal("player without a fire interval accepted as shooter")
	}
	if err := a.Fire("hostiles", "spit"); err != nil {
		t.Fatal(err)
	}

	player.Spawn(mgl32.Vec3{}, ecs.Forward)
	hostiles.Spawn(mgl32.Vec3{0, 0, 10}, ecs.Forward)

	spawned := 0
	for i := 0; i < 15; i++ {
		st := a.Step(0.1, Hooks{})
		gs, _ := st.Group("hostiles")
		spawned += gs.Spawned
	}
	if spawned == 0 || spit.ActiveCount() != spawned {
		t.Fatalf("spawned %d, spit active %d", spawned, spit.ActiveCount())
	}
}

func TestArenaLinkValidation(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	a := NewArena(Config{}, newSched(t, 4), zap.New(core))
	t.Cleanup(a.Dispose)
	mustGroup(t, a, "bullets", Defaults(KindProjectile), 4, 0.5)
	mustGroup(t, a, "hostiles", Defaults(KindHostile), 4, 0)

	if err := a.Link("bullets", "nobody"); err == nil {
		t.Fatal("unknown target accepted")
	}
	// radius 0.4 + 0.5 exceeds the 0.5 cell: accepted, searched two cells wide.
	if err := a.Link("bullets", "hostiles"); err != nil {
		t.Fatal(err)
	}
	if n := logs.FilterMessage("link searches a wide cell window").Len(); n != 1 {
		t.Fatalf("wide window logged %d times", n)
	}
	if err := a.Link("bullets", "hostiles"); err == nil {
		t.Fatal("duplicate link accepted")
	}
	if _, err := a.NewGroup("bullets", Defaults(KindProjectile), 4, 0); err == nil {
		t.Fatal("duplicate group accepted")
	}
}

func TestArenaRenderOverflowLogsOnce(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	a := NewArena(Config{RenderLimit: 1023}, newSched(t, 4), zap.New(core))
	defer a.Dispose()

	crowd := mustGroup(t, a, "crowd", still(KindHostile), 2000, 0)
	for i := 0; i < 2000; i++ {
		crowd.Spawn(mgl32.Vec3{float32(i % 50), 0, float32(i / 50)}, ecs.Forward)
	}

	for i := 0; i < 3; i++ {
		st := a.Step(0.01, Hooks{})
		if st.Rendered != 1023 || st.Dropped != 977 {
			t.Fatalf("frame %d rendered %d dropped %d", i, st.Rendered, st.Dropped)
		}
	}
	if n := logs.FilterMessage("render batch overflow").Len(); n != 1 {
		t.Fatalf("overflow logged %d times", n)
	}

	transforms, n := crowd.RenderBatch()
	seen := make(map[int32]bool, n)
	for _, slot := range crowd.RenderSlots() {
		if seen[slot] {
			t.Fatalf("slot %d rendered twice", slot)
		}
		seen[slot] = true
	}
	if len(transforms) != 1023 || len(crowd.RenderColors()) != 1023 {
		t.Fatal("render views not aligned")
	}
}

func TestArenaResetAndDispose(t *testing.T) {
	a := buildArena(t, Config{})
	h := mustGroup(t, a, "hostiles", still(KindHostile), 4, 0)
	h.Spawn(mgl32.Vec3{}, ecs.Forward)
	a.Step(0.1, Hooks{})

	a.Reset()
	if a.Frame() != 0 || h.ActiveCount() != 0 {
		t.Fatal("reset kept state")
	}

	a.Dispose()
	a.Dispose()
	if !h.Disposed() {
		t.Fatal("dispose did not reach groups")
	}
	if st := a.Step(0.1, Hooks{}); st.Frame != 0 || len(st.Groups) != 0 {
		t.Fatalf("step after dispose returned %+v", st)
	}
	if err := a.AddGroup(NewGroup("late", Defaults(KindPickup), GroupOptions{}, nil, nil)); err == nil {
		t.Fatal("add after dispose accepted")
	}
}
