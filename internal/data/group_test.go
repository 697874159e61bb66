package data

import (
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/arenasim/simcore/internal/arena"
	"github.com/arenasim/simcore/internal/core/system"
	"github.com/go-gl/mathgl/mgl32"
)

const sample = `
groups:
  - name: player
    kind: player
    capacity: 1
  - name: bullets
    kind: projectile
    capacity: 64
    cell_size: 2
    damage: 7
    style: { base: [1, 0, 0] }
  - name: swarm
    kind: hostile
    capacity: 32
    cell_size: 2
    health: 12
    respawn: { inner: 5, outer: 9, revive: true, initial: 10 }
links:
  - { attacker: bullets, target: swarm }
  - { attacker: swarm, target: player }
player:
  ammo: bullets
  interval: 0.2
`

func TestParseGroupTableKeepsKindDefaults(t *testing.T) {
	tbl, err := ParseGroupTable([]byte(sample))
	if err != nil {
		t.Fatal(err)
	}
	if tbl.Count() != 3 {
		t.Fatalf("count %d", tbl.Count())
	}
	if names := []string{tbl.Groups()[0].Name, tbl.Groups()[1].Name, tbl.Groups()[2].Name}; strings.Join(names, ",") != "player,bullets,swarm" {
		t.Fatalf("order %v", names)
	}

	def, ok := tbl.Get("bullets")
	if !ok {
		t.Fatal("bullets missing")
	}
	b, err := def.Behavior()
	if err != nil {
		t.Fatal(err)
	}
	want := arena.Defaults(arena.KindProjectile)
	if b.Damage != 7 || b.Speed != want.Speed || !b.Hit.Consume || !b.Motion.Expires {
		t.Fatalf("bullets behavior %+v", b)
	}
	if b.Style.Base != (mgl32.Vec4{1, 0, 0, 1}) {
		t.Fatalf("base color %v, want opaque red", b.Style.Base)
	}

	def, _ = tbl.Get("swarm")
	if def.Health != 12 || def.Respawn.Initial != 10 || def.Respawn.Outer != 9 {
		t.Fatalf("swarm def %+v", def)
	}
	if tbl.Player.Ammo != "bullets" || len(tbl.Links) != 2 {
		t.Fatalf("topology %+v %+v", tbl.Player, tbl.Links)
	}
}

func TestParseGroupTableRejects(t *testing.T) {
	cases := map[string]string{
		"unknown kind":   "groups:\n  - {name: a, kind: boss, capacity: 1}\n",
		"missing name":   "groups:\n  - {kind: hostile, capacity: 1}\n",
		"zero capacity":  "groups:\n  - {name: a, kind: hostile}\n",
		"duplicate":      "groups:\n  - {name: a, kind: hostile, capacity: 1}\n  - {name: a, kind: pickup, capacity: 1}\n",
		"dangling link":  "groups:\n  - {name: a, kind: hostile, capacity: 1}\nlinks:\n  - {attacker: a, target: b}\n",
		"dangling ammo":  "groups:\n  - {name: a, kind: hostile, capacity: 1}\nplayer:\n  ammo: b\n",
		"malformed yaml": "groups: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseGroupTable([]byte(doc)); err == nil {
				t.Fatal("accepted")
			}
		})
	}
}

func TestBuildCreatesArena(t *testing.T) {
	tbl, err := ParseGroupTable([]byte(sample))
	if err != nil {
		t.Fatal(err)
	}
	s := system.NewScheduler(2, nil)
	defer s.Close()
	a := arena.NewArena(arena.Config{}, s, nil)
	defer a.Dispose()

	if err := tbl.Build(a, 0); err != nil {
		t.Fatal(err)
	}
	if a.Player() == nil || a.Player().Name() != "player" {
		t.Fatal("player group not registered")
	}
	if g := a.Group("swarm"); g == nil || g.Pool().Capacity() != 32 {
		t.Fatal("swarm group missing")
	}
	st := a.Step(0.016, arena.Hooks{})
	if len(st.Groups) != 3 {
		t.Fatalf("stats groups %d", len(st.Groups))
	}
}

func TestShippedGroupFileLoads(t *testing.T) {
	_, file, _, _ := runtime.Caller(0)
	path := filepath.Join(filepath.Dir(file), "..", "..", "data", "yaml", "groups.yaml")
	tbl, err := LoadGroupTable(path)
	if err != nil {
		t.Fatal(err)
	}

	s := system.NewScheduler(2, nil)
	defer s.Close()
	a := arena.NewArena(arena.Config{}, s, nil)
	defer a.Dispose()
	if err := tbl.Build(a, 0); err != nil {
		t.Fatal(err)
	}
}

func TestLoadGroupTableMissingFile(t *testing.T) {
	if _, err := LoadGroupTable(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("missing file accepted")
	}
}
