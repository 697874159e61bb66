package arena

// GroupStats is one group's share of a frame.
type GroupStats struct {
	Name      string
	Active    int
	Damaged   int // damage records drained
	Deaths    int
	Collected int
	Spawned   int // spawn requests drained into the ammo group
	Rendered  int
	Dropped   int // live entities that did not fit the render batch
}

// FrameStats summarizes one Step. Groups is reused by the next Step.
type FrameStats struct {
	Frame        uint32
	Groups       []GroupStats
	Kills        int // deaths outside the player group
	PlayerDowned bool
	Rendered     int
	Dropped      int
}

// Group returns the stats of the named group.
func (s FrameStats) Group(name string) (GroupStats, bool) {
	for _, g := range s.Groups {
		if g.Name == name {
			return g, true
		}
	}
	return GroupStats{}, false
}
