package world

import (
	"math"

	"github.com/arenasim/simcore/internal/core/ecs"
	"github.com/go-gl/mathgl/mgl32"
)

// HashGrid is a uniform-cell broad-phase index on the horizontal (XZ) plane:
// a multi-value map from cell hash to the slot indices occupying that cell.
// It is rebuilt from scratch every frame; cleared buckets keep their backing
// arrays so steady-state rebuilds do not allocate.
//
// A query scans the 3x3 neighbourhood of cells when the radius fits in one
// cell and widens the window for larger radii.
//
// Written only during its rebuild phase and read-only during the collision
// phase that follows; the frame graph keeps the two apart, so no locks.
type HashGrid struct {
	cellSize float32
	inv      float32
	cells    map[uint64][]int32
	count    int
}

func NewHashGrid(cellSize float32) *HashGrid {
	if cellSize <= 0 {
		cellSize = 1
	}
	return &HashGrid{
		cellSize: cellSize,
		inv:      1 / cellSize,
		cells:    make(map[uint64][]int32, 256),
	}
}

// CellSizeFor returns the smallest cell size whose 3x3 window covers radius.
func CellSizeFor(radius float32) float32 {
	if radius <= 0 {
		return 1
	}
	return radius
}

// CellHash packs cell coordinates into a collision-free key.
func CellHash(cx, cz int32) uint64 {
	return uint64(uint32(cx))<<32 | uint64(uint32(cz))
}

func (g *HashGrid) CellSize() float32 { return g.cellSize }

// CellOf returns floor(x/cellSize), floor(z/cellSize).
func (g *HashGrid) CellOf(pos mgl32.Vec3) (cx, cz int32) {
	return toCellCoord(pos[0], g.inv), toCellCoord(pos[2], g.inv)
}

func (g *HashGrid) HashOf(pos mgl32.Vec3) uint64 {
	return CellHash(g.CellOf(pos))
}

func toCellCoord(v, inv float32) int32 {
	return int32(math.Floor(float64(v * inv)))
}

// Clear empties every bucket. Buckets that stayed empty for a whole frame are
// dropped so a roaming population does not grow the map without bound.
func (g *HashGrid) Clear() {
	for k, cell := range g.cells {
		if len(cell) == 0 {
			delete(g.cells, k)
			continue
		}
		g.cells[k] = cell[:0]
	}
	g.count = 0
}

// Insert appends index to the bucket for hash. No uniqueness check: one entity
// maps to exactly one hash per rebuild.
func (g *HashGrid) Insert(hash uint64, index int32) {
	g.cells[hash] = append(g.cells[hash], index)
	g.count++
}

// Lookup returns the occupants of hash. The slice is owned by the grid and
// must not be modified.
func (g *HashGrid) Lookup(hash uint64) []int32 {
	return g.cells[hash]
}

// Len returns the number of entries inserted since the last Clear.
func (g *HashGrid) Len() int { return g.count }

// Rebuild clears the grid and inserts every active slot of p.
func (g *HashGrid) Rebuild(p *ecs.Pool) {
	g.Clear()
	ecs.EachActive(p, func(i int) {
		g.Insert(g.HashOf(p.Position[i]), int32(i))
	})
}

// Query scans the cells around pos and calls fn for each occupant strictly
// closer than radius, using positions to resolve occupant indices. The window
// spans ceil(radius/cellSize) cells each way, never less than one (3x3).
// fn returns false to stop early. Occupants are not deduplicated; callers
// must tolerate seeing a candidate more than once.
func (g *HashGrid) Query(pos mgl32.Vec3, radius float32, positions []mgl32.Vec3, fn func(idx int32) bool) {
	cx, cz := g.CellOf(pos)
	r2 := radius * radius
	span := g.Span(radius)
	for dx := -span; dx <= span; dx++ {
		for dz := -span; dz <= span; dz++ {
			for _, idx := range g.cells[CellHash(cx+dx, cz+dz)] {
				if int(idx) >= len(positions) {
					continue
				}
				if DistSqXZ(pos, positions[idx]) < r2 {
					if !fn(idx) {
						return
					}
				}
			}
		}
	}
}

// Span is the number of cells a query of radius reaches on each side of the
// centre cell.
func (g *HashGrid) Span(radius float32) int32 {
	return max(int32(math.Ceil(float64(radius*g.inv))), 1)
}

// DistSqXZ is the squared distance on the horizontal plane.
func DistSqXZ(a, b mgl32.Vec3) float32 {
	dx := a[0] - b[0]
	dz := a[2] - b[2]
	return dx*dx + dz*dz
}
