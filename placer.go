package sharpiso

import (
	"github.com/unixpickle/essentials"

	"github.com/adam-urbanczyk/sharpiso/numerical"
)

// Default tolerances and thresholds for the placer; zero-valued
// PlacerParams fields fall back to these.
const (
	DefaultPlacerTolerance           = 0.1
	DefaultPlacerOffset              = 1.0
	DefaultAdmissibleBallRadiusScale = 1.5
)

// PlacerParams configures the isovert placer.
type PlacerParams struct {
	// Tolerance is the SVD singular-value threshold used to classify
	// cubes. Defaults to DefaultPlacerTolerance.
	Tolerance float64
	// DefaultOffset is the gradient-selection ring radius (in cubes) used
	// by PlaceAll's first pass. Defaults to DefaultPlacerOffset.
	DefaultOffset float64
	// AdmissibleBallRadiusScale scales the cube's half-diagonal to obtain
	// the radius of the ball a solved point must stay within before being
	// reclassified FAR. Defaults to DefaultAdmissibleBallRadiusScale.
	AdmissibleBallRadiusScale float64
	// MaxGos bounds parallelism for the per-cube placement pass; 0 means
	// GOMAXPROCS (essentials.ConcurrentMap's default).
	MaxGos int
}

func (p PlacerParams) tolerance() float64 {
	if p.Tolerance == 0 {
		return DefaultPlacerTolerance
	}
	return p.Tolerance
}

func (p PlacerParams) defaultOffset() float64 {
	if p.DefaultOffset == 0 {
		return DefaultPlacerOffset
	}
	return p.DefaultOffset
}

func (p PlacerParams) ballScale() float64 {
	if p.AdmissibleBallRadiusScale == 0 {
		return DefaultAdmissibleBallRadiusScale
	}
	return p.AdmissibleBallRadiusScale
}

// Placer computes, classifies, and records the sharp point of every active
// cube.
type Placer struct {
	Geo      Geometry
	Scalar   ScalarGrid
	Gradient GradientGrid
	Isovalue float64
	Params   PlacerParams
	Store    *RecordStore
}

// PlaceAll runs the first placement pass over every active cube, in
// parallel across cubes.
func (p *Placer) PlaceAll(activeCubes []CubeIndex) {
	for _, c := range activeCubes {
		p.Store.Add(c, p.Geo)
	}
	essentials.ConcurrentMap(p.Params.MaxGos, len(activeCubes), func(i int) {
		slot, _ := p.Store.SlotOf(activeCubes[i])
		rec := p.Store.At(slot)
		p.placeOne(rec, p.Params.defaultOffset())
		if rec.FlagConflict && rec.NumEigenvalues <= 2 {
			p.computeAlt(rec)
		}
	})
}

// placeOne solves and records the primary isovert for a single cube at the
// given gradient-selection offset, without touching the alternate point.
func (p *Placer) placeOne(rec *GridCube, offset float64) {
	points, gradients, scalars := p.gradientSamples(rec.CubeIndex, offset)
	sol := numerical.GradientLeastSquares(points, gradients, scalars, p.Isovalue, p.Params.tolerance())

	center := p.Geo.CubeCenter(rec.CubeIndex)
	if sol.Status == numerical.LocSVD {
		sol.ClampToBall(center.Array(), p.admissibleBallRadius(rec.CubeIndex))
	}

	rec.IsovertCoord = CoordFromArray(sol.Point)
	rec.NumEigenvalues = sol.NumLargeEigenvalues
	rec.Direction = CoordFromArray(sol.Direction)
	rec.FlagCentroidLocation = sol.Status == numerical.Centroid
	rec.FlagFar = sol.Status == numerical.Far
	rec.LinfDist = p.Geo.LInfDistPointToCubeCenter(rec.IsovertCoord, rec.CubeIndex)

	if rec.NumEigenvalues <= 1 {
		rec.Flag = Smooth
	}
	p.setCubeContainingIsovert(rec)
}

func (p *Placer) admissibleBallRadius(cube CubeIndex) float64 {
	min, max := p.Geo.CubeMinMax(cube)
	diag := max.Sub(min).Norm()
	return diag * 0.5 * p.Params.ballScale()
}

// gradientSamples gathers (point, gradient, scalar) rows from the corners
// of cube and, when offset >= 1, the corners of its facet-adjacent
// neighbors too.
func (p *Placer) gradientSamples(cube CubeIndex, offset float64) (points, gradients [][3]float64, scalars []float64) {
	cubes := []CubeIndex{cube}
	if offset >= 1 {
		cubes = append(cubes, p.Geo.FacetNeighbors(cube)...)
	}
	seen := make(map[VertexIndex]bool)
	for _, c := range cubes {
		for _, v := range p.Geo.CubeVertices(c) {
			if seen[v] {
				continue
			}
			seen[v] = true
			coord := p.Geo.ComputeCoord(v)
			wp := p.Geo.VertexWorldCoord(coord)
			points = append(points, wp.Array())
			gradients = append(gradients, p.Gradient.GradientAt(v).Array())
			scalars = append(scalars, p.Scalar.ScalarAt(v))
		}
	}
	return
}

// Geometry needs a ComputeCoord helper mirroring ScalarGrid's
// responsibility but operating on the Geometry's own IntCoord math so the
// placer doesn't need to round-trip through the collaborator for vertices
// it already has the coordinate of.
func (g Geometry) ComputeCoord(v VertexIndex) IntCoord {
	idx := int(v)
	x := idx % g.AxisSize[0]
	idx /= g.AxisSize[0]
	y := idx % g.AxisSize[1]
	idx /= g.AxisSize[1]
	z := idx
	return IntCoord{x, y, z}
}

// setCubeContainingIsovert locates the cube actually containing
// rec.IsovertCoord and records FlagConflict accordingly. If the
// owning cube would be rec's own cube there is no conflict; if the point
// escaped the grid entirely it is clamped back to rec's own cube with no
// conflict.
func (p *Placer) setCubeContainingIsovert(rec *GridCube) {
	if p.Geo.ContainsPoint(rec.CubeIndex, rec.IsovertCoord) {
		rec.CubeContainingIsovert = rec.CubeIndex
		rec.FlagConflict = false
		return
	}
	pa := rec.IsovertCoord.Array()
	for d := 0; d < 3; d++ {
		if pa[d] < 0 || pa[d] > float64(p.Geo.AxisSize[d]-1)*p.Geo.Spacing[d] {
			// Escaped the grid: clamp back to this cube.
			rec.CubeContainingIsovert = rec.CubeIndex
			rec.FlagConflict = false
			return
		}
	}
	candidate := p.Geo.CubeOfPoint(rec.IsovertCoord)
	rec.CubeContainingIsovert = candidate
	rec.FlagConflict = candidate != rec.CubeIndex
}

// computeAlt re-solves at the minimum offset and calls
// checkNotContainedAndSubstitute to adopt the tighter solve when it lands
// inside the cube.
func (p *Placer) computeAlt(rec *GridCube) {
	points, gradients, scalars := p.gradientSamples(rec.CubeIndex, 0)
	sol := numerical.GradientLeastSquares(points, gradients, scalars, p.Isovalue, p.Params.tolerance())
	center := p.Geo.CubeCenter(rec.CubeIndex)
	if sol.Status == numerical.LocSVD {
		sol.ClampToBall(center.Array(), p.admissibleBallRadius(rec.CubeIndex))
	}
	rec.IsovertCoordAlt = CoordFromArray(sol.Point)
	rec.HasAlt = true
	p.checkNotContainedAndSubstitute(rec)
}

// checkNotContainedAndSubstitute swaps primary <-> alternate when the
// primary lies outside the cube but the alternate lies inside.
func (p *Placer) checkNotContainedAndSubstitute(rec *GridCube) {
	if !rec.HasAlt {
		return
	}
	primaryOutside := !p.Geo.ContainsPoint(rec.CubeIndex, rec.IsovertCoord)
	altInside := p.Geo.ContainsPoint(rec.CubeIndex, rec.IsovertCoordAlt)
	if primaryOutside && altInside {
		rec.IsovertCoord, rec.IsovertCoordAlt = rec.IsovertCoordAlt, rec.IsovertCoord
		rec.FlagUsingSubstituteCoord = true
		rec.LinfDist = p.Geo.LInfDistPointToCubeCenter(rec.IsovertCoord, rec.CubeIndex)
		p.setCubeContainingIsovert(rec)
	}
}

// CheckCoveredAndSubstitute swaps primary <-> alternate when the primary
// currently lies in an already-covered cube. Called by the
// selector after coverage has been established.
func (p *Placer) CheckCoveredAndSubstitute(rec *GridCube, covered *CoveredGrid) {
	if !rec.HasAlt {
		return
	}
	if covered.IsCovered(rec.CubeContainingIsovert) && p.Geo.ContainsPoint(rec.CubeIndex, rec.IsovertCoordAlt) {
		rec.IsovertCoord, rec.IsovertCoordAlt = rec.IsovertCoordAlt, rec.IsovertCoord
		rec.FlagUsingSubstituteCoord = true
		rec.LinfDist = p.Geo.LInfDistPointToCubeCenter(rec.IsovertCoord, rec.CubeIndex)
		p.setCubeContainingIsovert(rec)
	}
}

// Recompute re-places a single cube at the given offset.
// flagMinOffset should be true when offset represents the minimum
// (tightest) gradient-selection ring, i.e. offset == 0.
func (p *Placer) Recompute(rec *GridCube, offset float64, flagMinOffset bool) {
	p.placeOne(rec, offset)
	rec.FlagRecomputedCoord = true
	if flagMinOffset {
		rec.FlagRecomputedCoordMinOffset = true
	}
}

// RecomputeCovered iterates every record flagged COVERED_POINT or FlagFar
// and recomputes it, first at offset 0.5 if the default offset exceeds
// 0.5, then at offset 0.
func (p *Placer) RecomputeCovered() {
	def := p.Params.defaultOffset()
	p.Store.Range(func(_ Slot, rec *GridCube) {
		if rec.Flag != CoveredPoint && !rec.FlagFar {
			return
		}
		if def > 0.5 {
			p.Recompute(rec, 0.5, false)
		}
		p.Recompute(rec, 0, true)
	})
}

// vertexBisectorNormals and edgeBisectorNormals enumerate the candidate
// separating-plane normals for a shared vertex (the four body diagonals)
// or a shared edge (two plane normals perpendicular to the edge axis, each
// using the other two axes).
func vertexBisectorNormals() []Coord3 {
	const c = 0.5773502691896258 // 1/sqrt(3)
	return []Coord3{
		{c, c, c}, {c, c, -c}, {c, -c, c}, {-c, c, c},
	}
}

func edgeBisectorNormals(axis int) []Coord3 {
	const c = 0.7071067811865476 // 1/sqrt(2)
	switch axis {
	case 0:
		return []Coord3{{0, c, c}, {0, c, -c}}
	case 1:
		return []Coord3{{c, 0, c}, {c, 0, -c}}
	default:
		return []Coord3{{c, c, 0}, {c, -c, 0}}
	}
}

// RecomputeAroundVertex runs the vertex-constrained re-solve: for each
// grid vertex incident on >=2 COVERED_A cubes whose
// isoverts straddle a bisector plane through that vertex, solve the SVD
// constrained to the plane and, if the projected point falls inside one of
// the incident cubes within 1 grid unit of the vertex, adopt it there.
func (p *Placer) RecomputeAroundVertex(vertexCoord IntCoord) {
	incident := p.incidentCubes(vertexCoord, vertexCubeOffsets[:])
	coveredA := p.filterByFlag(incident, CoveredA)
	if len(coveredA) < 2 {
		return
	}
	anchor := p.Geo.VertexWorldCoord(vertexCoord)
	p.recomputeOnBisector(anchor, vertexBisectorNormals(), coveredA, true)
}

// RecomputeAroundEdge is the edge analogue of RecomputeAroundVertex.
// edgeCoord is the integer coordinate of the edge's minimum-corner
// vertex; axis selects which of the three edge directions through that
// vertex.
func (p *Placer) RecomputeAroundEdge(edgeCoord IntCoord, axis int) {
	incident := p.incidentCubes(edgeCoord, edgeCubeOffsets(axis))
	coveredA := p.filterByFlag(incident, CoveredA)
	if len(coveredA) < 2 {
		return
	}
	anchor := p.Geo.VertexWorldCoord(edgeCoord)
	p.recomputeOnBisector(anchor, edgeBisectorNormals(axis), coveredA, false)
}

var vertexCubeOffsets = [8]IntCoord{
	{-1, -1, -1}, {0, -1, -1}, {-1, 0, -1}, {0, 0, -1},
	{-1, -1, 0}, {0, -1, 0}, {-1, 0, 0}, {0, 0, 0},
}

// edgeCubeOffsets returns the (up to 4) cube-min-corner offsets of cubes
// sharing an edge along axis that starts at the edge's base vertex.
func edgeCubeOffsets(axis int) []IntCoord {
	switch axis {
	case 0:
		return []IntCoord{{0, -1, -1}, {0, 0, -1}, {0, -1, 0}, {0, 0, 0}}
	case 1:
		return []IntCoord{{-1, 0, -1}, {0, 0, -1}, {-1, 0, 0}, {0, 0, 0}}
	default:
		return []IntCoord{{-1, -1, 0}, {0, -1, 0}, {-1, 0, 0}, {0, 0, 0}}
	}
}

func (p *Placer) incidentCubes(base IntCoord, offsets []IntCoord) []Slot {
	var out []Slot
	for _, off := range offsets {
		c := base.Add(off)
		if !p.Geo.InBounds(c) {
			continue
		}
		idx := p.Geo.IndexOf(c)
		if slot, ok := p.Store.SlotOf(idx); ok {
			out = append(out, slot)
		}
	}
	return out
}

func (p *Placer) filterByFlag(slots []Slot, flag CubeFlag) []Slot {
	var out []Slot
	for _, s := range slots {
		if p.Store.At(s).Flag == flag {
			out = append(out, s)
		}
	}
	return out
}

// recomputeOnBisector tries each candidate normal in turn; the first one
// that actually separates the group into two non-empty sides is used to
// constrain a fresh SVD solve per cube, and successfully-projected points
// within 1 grid unit of anchor are adopted.
func (p *Placer) recomputeOnBisector(anchor Coord3, normals []Coord3, slots []Slot, fromVertex bool) {
	var chosen Coord3
	found := false
	for _, n := range normals {
		pos, neg := 0, 0
		for _, s := range slots {
			d := p.Store.At(s).IsovertCoord.Sub(anchor).Dot(n)
			if d >= 0 {
				pos++
			} else {
				neg++
			}
		}
		if pos > 0 && neg > 0 {
			chosen = n
			found = true
			break
		}
	}
	if !found {
		return
	}

	maxDist := p.maxAxisSpacing()
	for _, s := range slots {
		rec := p.Store.At(s)
		points, gradients, scalars := p.gradientSamples(rec.CubeIndex, 0)
		sol := numerical.GradientLeastSquares(points, gradients, scalars, p.Isovalue, p.Params.tolerance())
		sol.ProjectToPlane(anchor.Array(), chosen.Array())
		projected := CoordFromArray(sol.Point)

		if projected.Sub(anchor).Norm() > maxDist {
			continue
		}
		if !p.Geo.ContainsPoint(rec.CubeIndex, projected) {
			continue
		}
		rec.IsovertCoord = projected
		rec.LinfDist = p.Geo.LInfDistPointToCubeCenter(rec.IsovertCoord, rec.CubeIndex)
		if fromVertex {
			rec.FlagCoordFromVertex = true
		} else {
			rec.FlagCoordFromEdge = true
		}
		// A covered or smooth cube whose point was re-placed from a shared
		// feature becomes selectable again.
		if IsCovered(rec.Flag) || rec.Flag == Smooth {
			rec.Flag = Available
		}
		p.setCubeContainingIsovert(rec)
	}
}

func (p *Placer) maxAxisSpacing() float64 {
	best := p.Geo.Spacing[0]
	for _, s := range p.Geo.Spacing[1:] {
		if s > best {
			best = s
		}
	}
	return best
}
