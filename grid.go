package sharpiso

import "math"

// Coord3 is a world-space point or vector.
type Coord3 struct {
	X, Y, Z float64
}

// Add returns c+o.
func (c Coord3) Add(o Coord3) Coord3 { return Coord3{c.X + o.X, c.Y + o.Y, c.Z + o.Z} }

// Sub returns c-o.
func (c Coord3) Sub(o Coord3) Coord3 { return Coord3{c.X - o.X, c.Y - o.Y, c.Z - o.Z} }

// Scale returns c scaled by s.
func (c Coord3) Scale(s float64) Coord3 { return Coord3{c.X * s, c.Y * s, c.Z * s} }

// Dot returns the dot product of c and o.
func (c Coord3) Dot(o Coord3) float64 { return c.X*o.X + c.Y*o.Y + c.Z*o.Z }

// Cross returns the cross product of c and o.
func (c Coord3) Cross(o Coord3) Coord3 {
	return Coord3{
		c.Y*o.Z - c.Z*o.Y,
		c.Z*o.X - c.X*o.Z,
		c.X*o.Y - c.Y*o.X,
	}
}

// Norm returns the Euclidean length of c.
func (c Coord3) Norm() float64 { return math.Sqrt(c.Dot(c)) }

// Normalize returns c scaled to unit length, or the zero vector if c is
// zero.
func (c Coord3) Normalize() Coord3 {
	n := c.Norm()
	if n == 0 {
		return c
	}
	return c.Scale(1 / n)
}

// Array returns c as a plain array, for interop with the numerical package.
func (c Coord3) Array() [3]float64 { return [3]float64{c.X, c.Y, c.Z} }

// CoordFromArray builds a Coord3 from a plain array.
func CoordFromArray(a [3]float64) Coord3 { return Coord3{a[0], a[1], a[2]} }

// axisOf indexes into a Coord3 by axis (0=X, 1=Y, 2=Z).
func (c Coord3) axisOf(axis int) float64 {
	switch axis {
	case 0:
		return c.X
	case 1:
		return c.Y
	default:
		return c.Z
	}
}

// IntCoord is an integer grid coordinate, typically the minimum-corner
// vertex of a cube.
type IntCoord struct {
	X, Y, Z int
}

func (c IntCoord) axisOf(axis int) int {
	switch axis {
	case 0:
		return c.X
	case 1:
		return c.Y
	default:
		return c.Z
	}
}

// Add returns c+o.
func (c IntCoord) Add(o IntCoord) IntCoord {
	return IntCoord{c.X + o.X, c.Y + o.Y, c.Z + o.Z}
}

// CubeIndex identifies a cube by the index of its minimum-corner vertex.
type CubeIndex int

// VertexIndex identifies a grid vertex.
type VertexIndex int

// ScalarGrid is the external collaborator providing the scalar field. The
// core never parses files or owns a grid; it only calls through this
// interface.
type ScalarGrid interface {
	// AxisSize returns the number of grid vertices along axis d (0,1,2).
	AxisSize(d int) int
	// Spacing returns the distance between adjacent vertices along axis d.
	Spacing(d int) float64
	// ScalarAt returns the scalar sample at the given vertex.
	ScalarAt(v VertexIndex) float64
	// ComputeCoord returns the integer coordinate of a vertex index.
	ComputeCoord(v VertexIndex) IntCoord
	// VertexAt returns the vertex index at an integer coordinate.
	VertexAt(c IntCoord) VertexIndex
}

// GradientGrid is the external collaborator providing per-vertex gradients.
// It has the same shape as ScalarGrid.
type GradientGrid interface {
	GradientAt(v VertexIndex) Coord3
}

// IsoTable is consulted in multi-isovertex mode to determine whether a
// cube's facet configuration is ambiguous.
type IsoTable interface {
	NumIsoVertices(tableIndex int) int
	IsFacetAmbiguous(tableIndex, facet int) bool
}

// Geometry provides the cube/vertex index arithmetic, neighbor
// enumerations, and distance/containment predicates shared by every stage
// of the pipeline. It is built once from a ScalarGrid's shape
// and is otherwise independent of the scalar/gradient data itself.
type Geometry struct {
	AxisSize [3]int
	Spacing  [3]float64
}

// NewGeometry builds a Geometry from a grid's shape.
func NewGeometry(g ScalarGrid) Geometry {
	var geo Geometry
	for d := 0; d < 3; d++ {
		geo.AxisSize[d] = g.AxisSize(d)
		geo.Spacing[d] = g.Spacing(d)
	}
	return geo
}

// NumCubes returns the number of grid cubes (one per vertex that has a
// full set of 8 corners in-bounds).
func (g Geometry) NumCubes() int {
	n := 1
	for d := 0; d < 3; d++ {
		if g.AxisSize[d] < 2 {
			return 0
		}
		n *= g.AxisSize[d] - 1
	}
	return n
}

// CoordOf returns the integer coordinate of a cube's minimum-corner vertex.
func (g Geometry) CoordOf(c CubeIndex) IntCoord {
	idx := int(c)
	x := idx % (g.AxisSize[0] - 1)
	idx /= g.AxisSize[0] - 1
	y := idx % (g.AxisSize[1] - 1)
	idx /= g.AxisSize[1] - 1
	z := idx
	return IntCoord{x, y, z}
}

// IndexOf returns the cube index for an integer coordinate. The caller is
// responsible for ensuring the coordinate is in-bounds; use InBounds first
// if unsure.
func (g Geometry) IndexOf(c IntCoord) CubeIndex {
	return CubeIndex(c.X + (c.Y+c.Z*(g.AxisSize[1]-1))*(g.AxisSize[0]-1))
}

// InBounds reports whether an integer cube coordinate addresses a real
// cube (i.e. has all 8 corners within the grid).
func (g Geometry) InBounds(c IntCoord) bool {
	return c.X >= 0 && c.Y >= 0 && c.Z >= 0 &&
		c.X < g.AxisSize[0]-1 && c.Y < g.AxisSize[1]-1 && c.Z < g.AxisSize[2]-1
}

// VertexCoordOf returns the integer coordinate of the minimum-corner
// vertex of cube c; identical numerically to CoordOf but named for use at
// vertex granularity.
func (g Geometry) VertexCoordOf(c CubeIndex) IntCoord { return g.CoordOf(c) }

// VertexIndexAt returns the vertex index for an integer vertex coordinate
// (which may be one past the last cube along any axis).
func (g Geometry) VertexIndexAt(c IntCoord) VertexIndex {
	return VertexIndex(c.X + (c.Y+c.Z*g.AxisSize[1])*g.AxisSize[0])
}

// CubeCorners returns the 8 vertex coordinates of cube c in the standard
// dual-contouring corner order (bit i of the corner number selects +1
// along axis i).
func (g Geometry) CubeCorners(c CubeIndex) [8]IntCoord {
	base := g.CoordOf(c)
	var out [8]IntCoord
	for i := 0; i < 8; i++ {
		out[i] = IntCoord{
			base.X + (i & 1),
			base.Y + (i >> 1 & 1),
			base.Z + (i >> 2 & 1),
		}
	}
	return out
}

// facetNeighborOffsets are the 6 facet-adjacent (axis-aligned, distance 1)
// offsets.
var facetNeighborOffsets = [6]IntCoord{
	{-1, 0, 0}, {1, 0, 0},
	{0, -1, 0}, {0, 1, 0},
	{0, 0, -1}, {0, 0, 1},
}

// edgeNeighborOffsets are the 12 edge-adjacent (two nonzero axes, each ±1)
// offsets.
var edgeNeighborOffsets = [12]IntCoord{
	{-1, -1, 0}, {-1, 1, 0}, {1, -1, 0}, {1, 1, 0},
	{-1, 0, -1}, {-1, 0, 1}, {1, 0, -1}, {1, 0, 1},
	{0, -1, -1}, {0, -1, 1}, {0, 1, -1}, {0, 1, 1},
}

// vertexNeighborOffsets are the 8 vertex-adjacent (all three axes ±1)
// offsets.
var vertexNeighborOffsets = [8]IntCoord{
	{-1, -1, -1}, {1, -1, -1}, {-1, 1, -1}, {1, 1, -1},
	{-1, -1, 1}, {1, -1, 1}, {-1, 1, 1}, {1, 1, 1},
}

// FacetNeighbors returns the up-to-6 facet-adjacent cube indices of c that
// lie within the grid.
func (g Geometry) FacetNeighbors(c CubeIndex) []CubeIndex {
	return g.neighborsOf(c, facetNeighborOffsets[:])
}

// EdgeNeighbors returns the up-to-12 edge-adjacent cube indices of c.
func (g Geometry) EdgeNeighbors(c CubeIndex) []CubeIndex {
	return g.neighborsOf(c, edgeNeighborOffsets[:])
}

// VertexNeighbors returns the up-to-8 vertex-adjacent cube indices of c.
func (g Geometry) VertexNeighbors(c CubeIndex) []CubeIndex {
	return g.neighborsOf(c, vertexNeighborOffsets[:])
}

// Neighbors26 returns all neighbors of c within the full 26-neighborhood.
func (g Geometry) Neighbors26(c CubeIndex) []CubeIndex {
	out := make([]CubeIndex, 0, 26)
	out = append(out, g.FacetNeighbors(c)...)
	out = append(out, g.EdgeNeighbors(c)...)
	out = append(out, g.VertexNeighbors(c)...)
	return out
}

func (g Geometry) neighborsOf(c CubeIndex, offsets []IntCoord) []CubeIndex {
	base := g.CoordOf(c)
	out := make([]CubeIndex, 0, len(offsets))
	for _, off := range offsets {
		nc := base.Add(off)
		if g.InBounds(nc) {
			out = append(out, g.IndexOf(nc))
		}
	}
	return out
}

// BoundaryBits returns a bitmask with bit (2*axis) set if the cube touches
// the grid's minimum face along that axis, and bit (2*axis+1) set if it
// touches the maximum face.
func (g Geometry) BoundaryBits(c CubeIndex) uint8 {
	coord := g.CoordOf(c)
	var bits uint8
	for axis := 0; axis < 3; axis++ {
		v := coord.axisOf(axis)
		if v == 0 {
			bits |= 1 << uint(2*axis)
		}
		if v == g.AxisSize[axis]-2 {
			bits |= 1 << uint(2*axis+1)
		}
	}
	return bits
}

// IsInteriorFastPath reports whether a cube is away from every grid
// boundary, so the fast 26-neighbor path may be used in place of the
// slower per-direction branch.
func (g Geometry) IsInteriorFastPath(c CubeIndex) bool {
	return g.BoundaryBits(c) == 0
}

// CubeCenter returns the world-space center of cube c.
func (g Geometry) CubeCenter(c CubeIndex) Coord3 {
	min, max := g.CubeMinMax(c)
	return min.Add(max).Scale(0.5)
}

// CubeMinMax returns the world-space min and max corners of cube c.
func (g Geometry) CubeMinMax(c CubeIndex) (min, max Coord3) {
	coord := g.CoordOf(c)
	min = Coord3{
		float64(coord.X) * g.Spacing[0],
		float64(coord.Y) * g.Spacing[1],
		float64(coord.Z) * g.Spacing[2],
	}
	max = Coord3{
		min.X + g.Spacing[0],
		min.Y + g.Spacing[1],
		min.Z + g.Spacing[2],
	}
	return
}

// ContainsPoint reports whether p lies in cube c, half-open on the max
// side, except that on the grid's maximum boundary face the max side is
// closed.
func (g Geometry) ContainsPoint(c CubeIndex, p Coord3) bool {
	min, max := g.CubeMinMax(c)
	bits := g.BoundaryBits(c)
	lo := [3]float64{min.X, min.Y, min.Z}
	hi := [3]float64{max.X, max.Y, max.Z}
	pa := [3]float64{p.X, p.Y, p.Z}
	for axis := 0; axis < 3; axis++ {
		if pa[axis] < lo[axis] {
			return false
		}
		onMaxBoundary := bits&(1<<uint(2*axis+1)) != 0
		if onMaxBoundary {
			if pa[axis] > hi[axis] {
				return false
			}
		} else {
			if pa[axis] >= hi[axis] {
				return false
			}
		}
	}
	return true
}

// LInfDistCubes returns the L-infinity distance between two cubes' integer
// coordinates, scaled by axis spacing.
func (g Geometry) LInfDistCubes(a, b CubeIndex) float64 {
	ca, cb := g.CoordOf(a), g.CoordOf(b)
	return g.lInfScaled(ca, cb)
}

func (g Geometry) lInfScaled(a, b IntCoord) float64 {
	best := 0.0
	diffs := [3]int{a.X - b.X, a.Y - b.Y, a.Z - b.Z}
	for axis, d := range diffs {
		ad := d
		if ad < 0 {
			ad = -ad
		}
		v := float64(ad) * g.Spacing[axis]
		if v > best {
			best = v
		}
	}
	return best
}

// LInfDistPointToCubeCenter returns the L-infinity distance between a
// world point and a cube's center. Both are already in world (spacing-
// scaled) coordinates, so this is a plain max-abs-difference.
func (g Geometry) LInfDistPointToCubeCenter(p Coord3, c CubeIndex) float64 {
	center := g.CubeCenter(c)
	d := Coord3{
		math.Abs(p.X - center.X),
		math.Abs(p.Y - center.Y),
		math.Abs(p.Z - center.Z),
	}
	best := d.X
	if d.Y > best {
		best = d.Y
	}
	if d.Z > best {
		best = d.Z
	}
	return best
}

// CubeOfPoint returns the cube whose integer coordinate range contains p,
// clamped to the grid if p lies outside it entirely.
func (g Geometry) CubeOfPoint(p Coord3) CubeIndex {
	var coord IntCoord
	axisOf := func(v float64, spacing float64, size int) int {
		idx := int(math.Floor(v / spacing))
		if idx < 0 {
			idx = 0
		}
		if idx > size-2 {
			idx = size - 2
		}
		return idx
	}
	coord.X = axisOf(p.X, g.Spacing[0], g.AxisSize[0])
	coord.Y = axisOf(p.Y, g.Spacing[1], g.AxisSize[1])
	coord.Z = axisOf(p.Z, g.Spacing[2], g.AxisSize[2])
	return g.IndexOf(coord)
}

// VertexWorldCoord returns the world-space position of an integer vertex
// coordinate.
func (g Geometry) VertexWorldCoord(c IntCoord) Coord3 {
	return Coord3{
		float64(c.X) * g.Spacing[0],
		float64(c.Y) * g.Spacing[1],
		float64(c.Z) * g.Spacing[2],
	}
}

// CubeVertices returns the 8 vertex indices of cube c.
func (g Geometry) CubeVertices(c CubeIndex) [8]VertexIndex {
	corners := g.CubeCorners(c)
	var out [8]VertexIndex
	for i, ic := range corners {
		out[i] = g.VertexIndexAt(ic)
	}
	return out
}

// cubeEdgeVertexPairs enumerates the 12 cube edges as pairs of corner
// indices (0..7) in the same corner numbering as CubeCorners.
var cubeEdgeVertexPairs = [12][2]int{
	{0, 1}, {2, 3}, {4, 5}, {6, 7}, // X-aligned
	{0, 2}, {1, 3}, {4, 6}, {5, 7}, // Y-aligned
	{0, 4}, {1, 5}, {2, 6}, {3, 7}, // Z-aligned
}

// CubeEdgeVertices returns the two vertex indices bounding edge e (0..11)
// of cube c.
func (g Geometry) CubeEdgeVertices(c CubeIndex, e int) (VertexIndex, VertexIndex) {
	verts := g.CubeVertices(c)
	pair := cubeEdgeVertexPairs[e]
	return verts[pair[0]], verts[pair[1]]
}
