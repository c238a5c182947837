package sharpiso

// Default tolerances for the feasibility stack; zero-valued
// FeasibilityParams fields fall back to these.
const (
	DefaultCosMaxSmallAngle      = -0.5 // 120 degrees
	DefaultCosMaxSmallAngleLoose = -0.3
	DefaultCoincidentEpsilon     = 1e-9
)

// FeasibilityParams configures the map-proposal feasibility stack.
type FeasibilityParams struct {
	// CosMaxSmallAngle bounds the inner-angle cosine a distortion check
	// will tolerate in the strict pass. Defaults to
	// DefaultCosMaxSmallAngle.
	CosMaxSmallAngle float64
	// CosMaxSmallAngleLoose is the looser bound used in the loose pass;
	// the strict and loose forms differ only in distortion tolerance.
	CosMaxSmallAngleLoose float64
	// Epsilon is the coincidence tolerance below which two points are
	// treated as the same point (and therefore fail distortion checks).
	Epsilon float64
}

func (p FeasibilityParams) cosMaxSmallAngle(strict bool) float64 {
	if strict {
		if p.CosMaxSmallAngle == 0 {
			return DefaultCosMaxSmallAngle
		}
		return p.CosMaxSmallAngle
	}
	if p.CosMaxSmallAngleLoose == 0 {
		return DefaultCosMaxSmallAngleLoose
	}
	return p.CosMaxSmallAngleLoose
}

func (p FeasibilityParams) epsilon() float64 {
	if p.Epsilon == 0 {
		return DefaultCoincidentEpsilon
	}
	return p.Epsilon
}

// Feasibility implements the map-proposal predicate stack gating every
// merge commit.
// Every method is read-only with respect to gcube_map except where a
// method's doc says it temporarily commits and restores: those
// callers must pass the store and are responsible for the scope-guarded
// restore around lookahead checks (see mapper.go's withTempCommit).
type Feasibility struct {
	Geo      Geometry
	Store    *RecordStore
	Bins     *BinGrid
	IsoTable IsoTable
	Params   FeasibilityParams
}

// UnselectedCubeIsConnected requires that some facet-adjacent active cube
// of from already maps to to, and that the shared facet is bipolar.
// Boundary-touching cubes have no facet path beyond their own
// adjacency, so this predicate alone is what anchors every proposal to an
// already-connected region.
func (fe *Feasibility) UnselectedCubeIsConnected(from, to Slot, scalar ScalarGrid, isovalue float64) bool {
	fromRec := fe.Store.At(from)
	for _, n := range fe.Geo.FacetNeighbors(fromRec.CubeIndex) {
		nSlot, ok := fe.Store.SlotOf(n)
		if !ok {
			continue
		}
		if nSlot == from {
			continue
		}
		if fe.Store.At(nSlot).MapsToCube != to {
			continue
		}
		if fe.facetIsBipolar(fromRec.CubeIndex, n, scalar, isovalue) {
			return true
		}
	}
	return false
}

// facetIsBipolar reports whether the shared facet between two facet-
// adjacent cubes has at least one corner above isovalue and one at or
// below it.
func (fe *Feasibility) facetIsBipolar(a, b CubeIndex, scalar ScalarGrid, isovalue float64) bool {
	shared := sharedFacetVertices(fe.Geo, a, b)
	if len(shared) == 0 {
		return false
	}
	above, below := false, false
	for _, v := range shared {
		if scalar.ScalarAt(v) > isovalue {
			above = true
		} else {
			below = true
		}
	}
	return above && below
}

// sharedFacetVertices returns the (up to 4) vertices common to the corner
// sets of two facet-adjacent cubes.
func sharedFacetVertices(geo Geometry, a, b CubeIndex) []VertexIndex {
	bv := geo.CubeVertices(b)
	bset := make(map[VertexIndex]bool, 8)
	for _, v := range bv {
		bset[v] = true
	}
	var out []VertexIndex
	for _, v := range geo.CubeVertices(a) {
		if bset[v] {
			out = append(out, v)
		}
	}
	return out
}

// AmbiguousFacetConsistency requires that if from's table index names two
// or more isosurface vertices, every adjacent cube sharing an ambiguous
// facet with it either also maps to to or is part of the same ambiguous
// pair being mapped together.
func (fe *Feasibility) AmbiguousFacetConsistency(from, to Slot, pairPartner Slot) bool {
	fromRec := fe.Store.At(from)
	if fe.IsoTable == nil || fe.IsoTable.NumIsoVertices(fromRec.TableIndex) < 2 {
		return true
	}
	neighbors := fe.Geo.FacetNeighbors(fromRec.CubeIndex)
	for facet, n := range neighbors {
		if !fe.IsoTable.IsFacetAmbiguous(fromRec.TableIndex, facet) {
			continue
		}
		nSlot, ok := fe.Store.SlotOf(n)
		if !ok {
			continue
		}
		if nSlot == pairPartner {
			continue
		}
		if fe.Store.At(nSlot).MapsToCube != to {
			return false
		}
	}
	return true
}

// EdgeManifold requires that, around every bipolar grid edge incident to
// from, the set of cubes touching that edge map to no more than 2 distinct
// selected cubes once to is committed.
func (fe *Feasibility) EdgeManifold(from, to Slot, scalar ScalarGrid, isovalue float64) bool {
	fromRec := fe.Store.At(from)
	for e := 0; e < 12; e++ {
		v1, v2 := fe.Geo.CubeEdgeVertices(fromRec.CubeIndex, e)
		if !isBipolarEdge(scalar, v1, v2, isovalue) {
			continue
		}
		targets := map[Slot]bool{to: true}
		for _, c := range edgeIncidentCubes(fe.Geo, fromRec.CubeIndex, e) {
			s, ok := fe.Store.SlotOf(c)
			if !ok {
				continue
			}
			var target Slot
			if s == from {
				target = to
			} else {
				target = fe.Store.At(s).MapsToCube
				if target == s {
					// Not yet mapped to a selected cube: does not
					// constrain manifoldness yet.
					continue
				}
			}
			targets[target] = true
		}
		if len(targets) > 2 {
			return false
		}
	}
	return true
}

func isBipolarEdge(scalar ScalarGrid, v1, v2 VertexIndex, isovalue float64) bool {
	a, b := scalar.ScalarAt(v1), scalar.ScalarAt(v2)
	return (a > isovalue) != (b > isovalue)
}

// edgeIncidentCubes enumerates the (up to 4) cubes sharing grid edge e of
// cube. The edge's own axis (e/4) is held fixed at cube's own coordinate;
// the other two axes are read off the edge's minimum-corner vertex (found
// via cubeEdgeVertexPairs' corner-bit decomposition, since e's local
// position among the 4 parallel edges along its axis is otherwise lost)
// and then varied by -1/0 to enumerate the 4 cubes touching that vertex
// pair in the plane orthogonal to the edge axis.
func edgeIncidentCubes(geo Geometry, cube CubeIndex, e int) []CubeIndex {
	base := geo.CoordOf(cube)
	axis := e / 4
	minCorner := cubeEdgeVertexPairs[e][0]
	dx := minCorner & 1
	dy := (minCorner >> 1) & 1
	dz := (minCorner >> 2) & 1
	edgeVertex := IntCoord{base.X + dx, base.Y + dy, base.Z + dz}

	offsets := [][2]int{{0, 0}, {-1, 0}, {0, -1}, {-1, -1}}
	var out []CubeIndex
	for _, off := range offsets {
		var c IntCoord
		switch axis {
		case 0:
			c = IntCoord{base.X, edgeVertex.Y + off[0], edgeVertex.Z + off[1]}
		case 1:
			c = IntCoord{edgeVertex.X + off[0], base.Y, edgeVertex.Z + off[1]}
		default:
			c = IntCoord{edgeVertex.X + off[0], edgeVertex.Y + off[1], base.Z}
		}
		if geo.InBounds(c) {
			out = append(out, geo.IndexOf(c))
		}
	}
	return out
}

// SeparatingCube requires that no other selected cube found in the bin
// grid near from lies strictly between from and to (see strictlyBetween);
// the mapping must not jump over a sharp vertex. Selected cubes that
// from's neighbors already map to are not used as endpoints of this test.
func (fe *Feasibility) SeparatingCube(from, to Slot) bool {
	fromRec := fe.Store.At(from)
	toRec := fe.Store.At(to)
	if fe.Bins == nil {
		return true
	}
	for _, s := range fe.Bins.NearbyCube(fromRec.CubeIndex) {
		if s == to {
			continue
		}
		other := fe.Store.At(s)
		if other.Flag != Selected {
			continue
		}
		if fe.strictlyBetween(fromRec.CubeCoord, toRec.CubeCoord, other.CubeCoord) {
			return false
		}
	}
	return true
}

// strictlyBetween reports whether mid's integer coordinate lies strictly
// between a and b on every axis where a and b differ, and equals them on
// every axis where they agree, i.e. mid lies inside the open axis-aligned
// box spanned by a and b (flattened along the axes where they agree).
func (fe *Feasibility) strictlyBetween(a, b, mid IntCoord) bool {
	axes := [3][2]int{{a.X, b.X}, {a.Y, b.Y}, {a.Z, b.Z}}
	midAxes := [3]int{mid.X, mid.Y, mid.Z}
	anyStrict := false
	for i, pair := range axes {
		lo, hi := pair[0], pair[1]
		if lo > hi {
			lo, hi = hi, lo
		}
		m := midAxes[i]
		if lo == hi {
			if m != lo {
				return false
			}
			continue
		}
		if m <= lo || m >= hi {
			return false
		}
		anyStrict = true
	}
	return anyStrict
}

// Distortion requires that moving from's isovert to to's isovert does not
// create, with any of from's neighboring cubes' isoverts, a triangle whose
// inner angle cosine exceeds the configured threshold.
// Points closer than Epsilon are coincident and fail outright.
func (fe *Feasibility) Distortion(from, to Slot, strict bool) bool {
	fromRec := fe.Store.At(from)
	toRec := fe.Store.At(to)
	threshold := fe.Params.cosMaxSmallAngle(strict)
	eps := fe.Params.epsilon()

	for _, n := range fe.Geo.Neighbors26(fromRec.CubeIndex) {
		nSlot, ok := fe.Store.SlotOf(n)
		if !ok {
			continue
		}
		if nSlot == from {
			continue
		}
		nRec := fe.Store.At(nSlot)
		if !IsCoveredOrSelected(nRec.Flag) {
			continue
		}
		nPoint := fe.isovertOf(nSlot)
		if !triangleAdmissible(nPoint, fromRec.IsovertCoord, toRec.IsovertCoord, threshold, eps) {
			return false
		}
	}
	return true
}

// isovertOf returns the isovert a cube currently contributes to a
// triangle: its own if unmapped/selected, or its mapped-to cube's if it
// has already collapsed.
func (fe *Feasibility) isovertOf(slot Slot) Coord3 {
	rec := fe.Store.At(slot)
	if rec.MapsToCube == slot {
		return rec.IsovertCoord
	}
	return fe.Store.At(rec.MapsToCube).IsovertCoord
}

// triangleAdmissible reports whether triangle (p0,p1,p2) is geometrically
// sound: no two vertices coincident within eps, and the inner angle at p1
// (between p1->p0 and p1->p2) has cosine <= threshold in absolute terms of
// "not too sharp/reversed": cos(angle) must not exceed
// threshold once the angle is folded to its acute/obtuse representative.
func triangleAdmissible(p0, p1, p2 Coord3, threshold, eps float64) bool {
	a := p0.Sub(p1)
	b := p2.Sub(p1)
	if a.Norm() < eps || b.Norm() < eps {
		return false
	}
	cos := a.Dot(b) / (a.Norm() * b.Norm())
	return cos <= threshold
}

// OrderPreservation requires that if cube A (facet/edge/vertex adjacent to
// from) already maps to to2, the axis coordinates of to and to2 are
// consistent with the relative position of from and A: moving from's
// point past A's target in the direction A lies from from is forbidden,
// unless permitReversal is set (the coarser rule used for corner
// targets).
func (fe *Feasibility) OrderPreservation(from, to Slot, permitReversal bool) bool {
	fromRec := fe.Store.At(from)
	toRec := fe.Store.At(to)
	for _, a := range fe.Geo.Neighbors26(fromRec.CubeIndex) {
		aSlot, ok := fe.Store.SlotOf(a)
		if !ok {
			continue
		}
		if aSlot == from {
			continue
		}
		aRec := fe.Store.At(aSlot)
		if aRec.MapsToCube == aSlot {
			continue // A isn't mapped anywhere yet; nothing to order against.
		}
		to2Rec := fe.Store.At(aRec.MapsToCube)
		if aRec.MapsToCube == to {
			continue
		}
		if !axisOrderConsistent(fromRec.CubeCoord, aRec.CubeCoord, toRec.CubeCoord, to2Rec.CubeCoord, permitReversal) {
			return false
		}
	}
	return true
}

// axisOrderConsistent implements the per-axis check: for every axis where
// from and a differ, to's coordinate on that axis must not be strictly on
// the far side of to2's coordinate from a's direction.
// permitReversal relaxes "strictly" to "not strictly reversed", matching
// the corner-specific merge-permitted rule.
func axisOrderConsistent(from, a, to, to2 IntCoord, permitReversal bool) bool {
	fromAxes := [3]int{from.X, from.Y, from.Z}
	aAxes := [3]int{a.X, a.Y, a.Z}
	toAxes := [3]int{to.X, to.Y, to.Z}
	to2Axes := [3]int{to2.X, to2.Y, to2.Z}
	for axis := 0; axis < 3; axis++ {
		d := aAxes[axis] - fromAxes[axis]
		if d == 0 {
			continue
		}
		// a lies in the +direction (d>0) or -direction (d<0) from from.
		// to2 must not lie strictly further in that same direction past
		// to than to started (i.e. to shouldn't have "passed" to2).
		diff := to2Axes[axis] - toAxes[axis]
		reversed := (d > 0 && diff < 0) || (d < 0 && diff > 0)
		if reversed && !permitReversal {
			return false
		}
	}
	return true
}

// MergePermitted is the corner-specific variant of OrderPreservation: for
// corner targets the coarser rule set is used, permitting mappings where
// facet/edge/vertex-adjacent axis coordinates are not strictly reversed
// even if not strictly ordered.
func (fe *Feasibility) MergePermitted(from, to Slot) bool {
	return fe.OrderPreservation(from, to, fe.Store.At(to).NumEigenvalues == 3)
}

// TriangleDistortionAcrossMap requires that, after hypothetically
// committing from -> to, no triangle formed by from, its facet-adjacent
// neighbors, and to flips orientation. Triangles whose normal is shorter
// than epsilon before or after the move are skipped, not rejected, so a
// collapse does not fail this check. This differs from Distortion in that
// it specifically checks orientation flips of the facet ring around from,
// not just angle bounds.
func (fe *Feasibility) TriangleDistortionAcrossMap(from, to Slot) bool {
	fromRec := fe.Store.At(from)
	toPoint := fe.Store.At(to).IsovertCoord
	fromPoint := fromRec.IsovertCoord
	eps := fe.Params.epsilon()

	neighbors := fe.Geo.FacetNeighbors(fromRec.CubeIndex)
	for i := 0; i < len(neighbors); i++ {
		for j := i + 1; j < len(neighbors); j++ {
			s1, ok1 := fe.Store.SlotOf(neighbors[i])
			s2, ok2 := fe.Store.SlotOf(neighbors[j])
			if !ok1 || !ok2 {
				continue
			}
			r1, r2 := fe.Store.At(s1), fe.Store.At(s2)
			if !IsCoveredOrSelected(r1.Flag) || !IsCoveredOrSelected(r2.Flag) {
				continue
			}
			p1, p2 := fe.isovertOf(s1), fe.isovertOf(s2)
			before := triangleNormal(fromPoint, p1, p2)
			after := triangleNormal(toPoint, p1, p2)
			if before.Norm() < eps || after.Norm() < eps {
				continue
			}
			if before.Normalize().Dot(after.Normalize()) < 0 {
				return false
			}
		}
	}
	return true
}

func triangleNormal(a, b, c Coord3) Coord3 {
	return b.Sub(a).Cross(c.Sub(a))
}

// LargeAngleTriangle is the selector-side admissibility predicate: true
// when selecting `candidate` alongside two already-selected
// cubes s1,s2 (all three mutually within 3x3x3 range and pairwise
// connected by iso-edges) would form a triangle whose cosine exceeds
// cosThresh (i.e. an angle at the candidate vertex smaller than the angle
// whose cosine is cosThresh).
func LargeAngleTriangle(geo Geometry, candidatePoint Coord3, s1, s2 Coord3, cosThresh float64) bool {
	a := s1.Sub(candidatePoint)
	b := s2.Sub(candidatePoint)
	if a.Norm() == 0 || b.Norm() == 0 {
		return false
	}
	cos := a.Dot(b) / (a.Norm() * b.Norm())
	return cos > cosThresh
}
