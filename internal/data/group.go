package data

import (
	"fmt"
	"os"

	"github.com/arenasim/simcore/internal/arena"
	"github.com/arenasim/simcore/internal/core/ecs"
	"github.com/arenasim/simcore/internal/render"
	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"
)

// GroupDef is one entity group as written in the groups file. Fields left out
// of the file keep the defaults of the group's kind.
type GroupDef struct {
	Name     string  `yaml:"name"`
	Kind     string  `yaml:"kind"` // player, projectile, hostile, pickup
	Capacity int     `yaml:"capacity"`
	CellSize float32 `yaml:"cell_size"` // 0 derives it from the radius
	Radius   float32 `yaml:"radius"`
	Speed    float32 `yaml:"speed"`
	Lifetime float32 `yaml:"lifetime"`
	Damage   float32 `yaml:"damage"`
	Health   float32 `yaml:"health"`

	Motion  MotionDef  `yaml:"motion"`
	Hit     HitDef     `yaml:"hit"`
	Fire    FireDef    `yaml:"fire"`
	Respawn RespawnDef `yaml:"respawn"`
	Style   StyleDef   `yaml:"style"`
}

type MotionDef struct {
	Expires  bool    `yaml:"expires"`
	TurnRate float32 `yaml:"turn_rate"` // rad/s
	Seek     float32 `yaml:"seek"`      // rad/s
}

type HitDef struct {
	Consume    bool `yaml:"consume"`
	Continuous bool `yaml:"continuous"`
	Collect    bool `yaml:"collect"`
}

type FireDef struct {
	Interval float32 `yaml:"interval"`
	Range    float32 `yaml:"range"`
	Speed    float32 `yaml:"speed"`
	Lifetime float32 `yaml:"lifetime"`
	Damage   float32 `yaml:"damage"`
}

type RespawnDef struct {
	Inner    float32 `yaml:"inner"`
	Outer    float32 `yaml:"outer"`
	Cull     float32 `yaml:"cull"`
	Revive   bool    `yaml:"revive"`
	PerFrame int     `yaml:"per_frame"`
	Initial  int     `yaml:"initial"` // entities placed at round start
}

type StyleDef struct {
	Scale     float32   `yaml:"scale"`
	Orient    bool      `yaml:"orient"`
	Base      []float32 `yaml:"base"`  // rgba
	Flash     []float32 `yaml:"flash"` // rgba
	FlashTime float32   `yaml:"flash_time"`
}

// LinkDef makes Attacker's entities collide with Target's.
type LinkDef struct {
	Attacker string `yaml:"attacker"`
	Target   string `yaml:"target"`
}

// FireRoute sends Shooter's spawn requests into Ammo.
type FireRoute struct {
	Shooter string `yaml:"shooter"`
	Ammo    string `yaml:"ammo"`
}

// PlayerDef drives the headless player's auto-fire.
type PlayerDef struct {
	Ammo     string  `yaml:"ammo"`
	Interval float32 `yaml:"interval"`
	Range    float32 `yaml:"range"`
	Orbit    float32 `yaml:"orbit"` // radius of the scripted walk, 0 stands still
}

type groupFile struct {
	Groups []yaml.Node  `yaml:"groups"`
	Links  []LinkDef    `yaml:"links"`
	Fire   []FireRoute  `yaml:"fire"`
	Player PlayerDef    `yaml:"player"`
	Drops  []DropSource `yaml:"drops"`
}

// DropSource names the group whose deaths roll for drops and the pickup
// group drops land in.
type DropSource struct {
	Group  string `yaml:"group"`
	Pickup string `yaml:"pickup"`
}

// GroupTable holds every group definition in file order plus the topology
// between them.
type GroupTable struct {
	groups []GroupDef
	byName map[string]int
	Links  []LinkDef
	Fire   []FireRoute
	Player PlayerDef
	Drops  []DropSource
}

// Get returns the named group definition.
func (t *GroupTable) Get(name string) (GroupDef, bool) {
	i, ok := t.byName[name]
	if !ok {
		return GroupDef{}, false
	}
	return t.groups[i], true
}

// Groups returns the definitions in file order.
func (t *GroupTable) Groups() []GroupDef { return t.groups }

// Count returns the number of groups defined.
func (t *GroupTable) Count() int { return len(t.groups) }

// LoadGroupTable loads group definitions from a YAML file.
func LoadGroupTable(path string) (*GroupTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read group_list: %w", err)
	}
	return ParseGroupTable(raw)
}

// ParseGroupTable decodes and validates a groups document.
func ParseGroupTable(raw []byte) (*GroupTable, error) {
	var f groupFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse group_list: %w", err)
	}
	t := &GroupTable{
		groups: make([]GroupDef, 0, len(f.Groups)),
		byName: make(map[string]int, len(f.Groups)),
		Links:  f.Links,
		Fire:   f.Fire,
		Player: f.Player,
		Drops:  f.Drops,
	}
	for i := range f.Groups {
		def, err := decodeGroup(&f.Groups[i])
		if err != nil {
			return nil, err
		}
		if _, dup := t.byName[def.Name]; dup {
			return nil, fmt.Errorf("group %q defined twice", def.Name)
		}
		t.byName[def.Name] = len(t.groups)
		t.groups = append(t.groups, def)
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// decodeGroup reads the kind first, seeds the definition with that kind's
// defaults, then lets the node override what it sets.
func decodeGroup(n *yaml.Node) (GroupDef, error) {
	var head struct {
		Name string `yaml:"name"`
		Kind string `yaml:"kind"`
	}
	if err := n.Decode(&head); err != nil {
		return GroupDef{}, fmt.Errorf("group at line %d: %w", n.Line, err)
	}
	if head.Name == "" {
		return GroupDef{}, fmt.Errorf("group at line %d: missing name", n.Line)
	}
	kind, err := arena.ParseKind(head.Kind)
	if err != nil {
		return GroupDef{}, fmt.Errorf("group %q: %w", head.Name, err)
	}
	def := FromBehavior(arena.Defaults(kind))
	if err := n.Decode(&def); err != nil {
		return GroupDef{}, fmt.Errorf("group %q: %w", head.Name, err)
	}
	if def.Capacity < 1 {
		return GroupDef{}, fmt.Errorf("group %q: capacity must be positive", def.Name)
	}
	return def, nil
}

func (t *GroupTable) validate() error {
	known := func(name string) bool {
		_, ok := t.byName[name]
		return ok
	}
	for _, l := range t.Links {
		if !known(l.Attacker) || !known(l.Target) {
			return fmt.Errorf("link %s->%s references an unknown group", l.Attacker, l.Target)
		}
	}
	for _, r := range t.Fire {
		if !known(r.Shooter) || !known(r.Ammo) {
			return fmt.Errorf("fire %s->%s references an unknown group", r.Shooter, r.Ammo)
		}
	}
	for _, d := range t.Drops {
		if !known(d.Group) || !known(d.Pickup) {
			return fmt.Errorf("drop %s->%s references an unknown group", d.Group, d.Pickup)
		}
	}
	if t.Player.Ammo != "" && !known(t.Player.Ammo) {
		return fmt.Errorf("player ammo %q is not a group", t.Player.Ammo)
	}
	return nil
}

// FromBehavior renders a behavior as a definition, used to seed defaults.
func FromBehavior(b arena.Behavior) GroupDef {
	return GroupDef{
		Kind:     b.Kind.String(),
		Radius:   b.Radius,
		Speed:    b.Speed,
		Lifetime: b.Lifetime,
		Damage:   b.Damage,
		Health:   b.Health,
		Motion:   MotionDef{Expires: b.Motion.Expires, TurnRate: b.Motion.TurnRate, Seek: b.Motion.Seek},
		Hit:      HitDef{Consume: b.Hit.Consume, Continuous: b.Hit.Continuous, Collect: b.Hit.Collect},
		Fire:     FireDef(b.Fire),
		Respawn: RespawnDef{
			Inner:    b.Respawn.Inner,
			Outer:    b.Respawn.Outer,
			Cull:     b.Respawn.Cull,
			Revive:   b.Respawn.Revive,
			PerFrame: b.Respawn.PerFrame,
		},
		Style: StyleDef{
			Scale:     b.Style.Scale,
			Orient:    b.Style.Orient,
			Base:      b.Style.Base[:],
			Flash:     b.Style.Flash[:],
			FlashTime: b.Style.FlashTime,
		},
	}
}

// Behavior converts the definition into the arena's runtime form.
func (d GroupDef) Behavior() (arena.Behavior, error) {
	kind, err := arena.ParseKind(d.Kind)
	if err != nil {
		return arena.Behavior{}, err
	}
	return arena.Behavior{
		Kind:     kind,
		Motion:   ecs.Motion{Expires: d.Motion.Expires, TurnRate: d.Motion.TurnRate, Seek: d.Motion.Seek},
		Radius:   d.Radius,
		Speed:    d.Speed,
		Lifetime: d.Lifetime,
		Damage:   d.Damage,
		Health:   d.Health,
		Hit:      arena.HitPolicy{Consume: d.Hit.Consume, Continuous: d.Hit.Continuous, Collect: d.Hit.Collect},
		Fire:     arena.FirePolicy(d.Fire),
		Respawn: arena.RespawnPolicy{
			Inner:    d.Respawn.Inner,
			Outer:    d.Respawn.Outer,
			Cull:     d.Respawn.Cull,
			Revive:   d.Respawn.Revive,
			PerFrame: d.Respawn.PerFrame,
		},
		Style: render.Style{
			Scale:     d.Style.Scale,
			Orient:    d.Style.Orient,
			Base:      rgba(d.Style.Base),
			Flash:     rgba(d.Style.Flash),
			FlashTime: d.Style.FlashTime,
		},
	}, nil
}

// rgba reads up to four channels; a missing alpha is opaque.
func rgba(c []float32) mgl32.Vec4 {
	v := mgl32.Vec4{0, 0, 0, 1}
	copy(v[:], c)
	return v
}

// Build creates every group, link and fire route in a. cellSize is used for
// groups whose definition leaves it at zero; pass 0 to derive it from radii.
func (t *GroupTable) Build(a *arena.Arena, cellSize float32) error {
	for _, def := range t.groups {
		b, err := def.Behavior()
		if err != nil {
			return fmt.Errorf("group %q: %w", def.Name, err)
		}
		cell := def.CellSize
		if cell <= 0 {
			cell = cellSize
		}
		if _, err := a.NewGroup(def.Name, b, def.Capacity, cell); err != nil {
			return err
		}
	}
	for _, l := range t.Links {
		if err := a.Link(l.Attacker, l.Target); err != nil {
			return err
		}
	}
	for _, r := range t.Fire {
		if err := a.Fire(r.Shooter, r.Ammo); err != nil {
			return err
		}
	}
	return nil
}
