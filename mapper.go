package sharpiso

import "sort"

// Default tuning values for the mapper.
const (
	DefaultMaxExtendedDist = 2
)

// MapperParams configures the merge engine.
type MapperParams struct {
	// FlagMapExtended enables the extended-map passes, mapping cubes at
	// L-infinity distance up to 2.
	FlagMapExtended bool
	// MaxDistToSetOther bounds, in cubes, how far from a selected cube the
	// extended passes will claim. Defaults to DefaultMaxExtendedDist.
	MaxDistToSetOther float64
	// FlagCollapseTrianglesWithSmallAngles enables the optional apex-
	// angle collapse pass.
	FlagCollapseTrianglesWithSmallAngles bool
	// CosCollapseAngle is the apex-angle cosine threshold for the
	// collapse pass.
	CosCollapseAngle float64
}

func (p MapperParams) maxDistToSetOther() float64 {
	if p.MaxDistToSetOther == 0 {
		return DefaultMaxExtendedDist
	}
	return p.MaxDistToSetOther
}

// Mapper builds the gcube_map relation: which selected cube each active,
// unselected cube's isovert ultimately collapses onto.
type Mapper struct {
	Geo      Geometry
	Store    *RecordStore
	Covered  *CoveredGrid
	Bins     *BinGrid
	Feas     *Feasibility
	IsoTable IsoTable
	Scalar   ScalarGrid
	Isovalue float64
	Params   MapperParams
}

// Run executes the full merge pipeline: identity init (done
// at record creation), corner-cube region maps, edge-cube 3x3x3 maps,
// extended-map passes, a loose repeat pass, and the optional triangle
// collapse, finishing by writing MapsToCube everywhere (already maintained
// live on every record as the canonical gcube_map, so the map is a plain
// field, not a parallel array).
func (m *Mapper) Run() {
	corners := m.selectedOfKind(3)
	for _, s := range corners {
		m.mapCornerRegion(s, true)
	}

	edges := m.selectedOfKind(2)
	for _, s := range edges {
		m.map3x3x3(s, true)
	}

	if m.Params.FlagMapExtended {
		m.extendedMapPasses(true)
	}

	// Loose pass: repeat with relaxed strictness to absorb stragglers.
	for _, s := range m.selectedOfKind(2) {
		m.map3x3x3(s, false)
	}
	for _, s := range m.selectedOfKind(3) {
		m.mapCornerRegion(s, false)
	}
	if m.Params.FlagMapExtended {
		m.extendedMapPasses(false)
	}

	if m.Params.FlagCollapseTrianglesWithSmallAngles {
		m.collapseSmallAngleTriangles()
	}
}

func (m *Mapper) selectedOfKind(numEigenvalues int) []Slot {
	var out []Slot
	m.Store.Range(func(slot Slot, rec *GridCube) {
		if rec.Flag == Selected && rec.NumEigenvalues == numEigenvalues {
			out = append(out, slot)
		}
	})
	return out
}

// mapCornerRegion builds the bounded region around a selected corner cube
// (extend +/-1 in each axis, contracting where another selected cube lies
// within L-infinity distance 3) and proposes mappings in the fixed order:
// facet-adjacent, edge-adjacent, vertex-adjacent, facet-pair, edge-pair.
func (m *Mapper) mapCornerRegion(to Slot, strict bool) {
	toRec := m.Store.At(to)
	region := m.cornerRegion(toRec.CubeIndex)

	for _, c := range m.orderedByAdjacency(toRec.CubeIndex, region) {
		slot, ok := m.Store.SlotOf(c)
		if !ok {
			continue
		}
		rec := m.Store.At(slot)
		if rec.Flag == Selected || rec.MapsToCube != slot {
			continue
		}
		m.mapIsovSingle(slot, to, strict)
	}

	m.tryFacetPairs(region, to, strict)
	m.tryEdgePairs(region, to, strict)
}

// cornerRegion computes the bounded neighborhood around a corner cube:
// +/-1 in every axis by default, contracted toward any other selected
// cube within L-infinity distance 3.
func (m *Mapper) cornerRegion(center CubeIndex) map[CubeIndex]bool {
	base := m.Geo.CoordOf(center)
	lo, hi := [3]int{-1, -1, -1}, [3]int{1, 1, 1}

	for _, slot := range m.Bins.NearbyCube(center) {
		other := m.Store.At(slot)
		if other.CubeIndex == center || other.Flag != Selected {
			continue
		}
		if m.Geo.LInfDistCubes(center, other.CubeIndex) > 3*maxAxisSpacing(m.Geo) {
			continue
		}
		oc := other.CubeCoord
		diffs := [3]int{oc.X - base.X, oc.Y - base.Y, oc.Z - base.Z}
		for axis, d := range diffs {
			if d > 0 && d-1 < hi[axis] {
				hi[axis] = d - 1
			}
			if d < 0 && d+1 > lo[axis] {
				lo[axis] = d + 1
			}
		}
	}

	region := make(map[CubeIndex]bool)
	for dx := lo[0]; dx <= hi[0]; dx++ {
		for dy := lo[1]; dy <= hi[1]; dy++ {
			for dz := lo[2]; dz <= hi[2]; dz++ {
				c := IntCoord{base.X + dx, base.Y + dy, base.Z + dz}
				if !m.Geo.InBounds(c) {
					continue
				}
				region[m.Geo.IndexOf(c)] = true
			}
		}
	}
	return region
}

// map3x3x3 runs the edge-cube merge pass over the full 3x3x3 neighborhood
// of a selected edge cube, in the same fixed adjacency order, plus
// ambiguous-pair and edge-triple attempts.
func (m *Mapper) map3x3x3(to Slot, strict bool) {
	toRec := m.Store.At(to)
	region := make(map[CubeIndex]bool)
	base := toRec.CubeCoord
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			for dz := -1; dz <= 1; dz++ {
				c := IntCoord{base.X + dx, base.Y + dy, base.Z + dz}
				if m.Geo.InBounds(c) {
					region[m.Geo.IndexOf(c)] = true
				}
			}
		}
	}

	for _, c := range m.orderedByAdjacency(toRec.CubeIndex, region) {
		slot, ok := m.Store.SlotOf(c)
		if !ok {
			continue
		}
		rec := m.Store.At(slot)
		if rec.Flag == Selected || rec.MapsToCube != slot {
			continue
		}
		m.mapIsovSingle(slot, to, strict)
	}

	m.tryAmbiguousPairs(region, to, strict)
	m.tryEdgeTriples(region, to, strict)
}

// orderedByAdjacency returns the cubes of region ordered facet-adjacent to
// center first, then edge-adjacent, then vertex-adjacent, then anything
// else in the region, the fixed order the mapper's contract requires:
// it determines which cube wins when several could accept a mapping.
func (m *Mapper) orderedByAdjacency(center CubeIndex, region map[CubeIndex]bool) []CubeIndex {
	seen := map[CubeIndex]bool{center: true}
	var out []CubeIndex
	add := func(list []CubeIndex) {
		for _, c := range list {
			if region[c] && !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	add(m.Geo.FacetNeighbors(center))
	add(m.Geo.EdgeNeighbors(center))
	add(m.Geo.VertexNeighbors(center))
	for _, c := range sortedRegionCubes(region) {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

// sortedRegionCubes enumerates a region in increasing cube-index order.
// Region maps are only ever iterated through this, keeping every pass
// deterministic.
func sortedRegionCubes(region map[CubeIndex]bool) []CubeIndex {
	out := make([]CubeIndex, 0, len(region))
	for c := range region {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// mapIsovSingle is the single-cube map primitive: one cube
// maps to one target, gated by the full feasibility stack.
func (m *Mapper) mapIsovSingle(from, to Slot, strict bool) bool {
	if !m.checkSingle(from, to, strict) {
		return false
	}
	m.Store.At(from).MapsToCube = to
	return true
}

// checkSingle runs the full feasibility stack against the
// proposal from -> to, without mutating gcube_map.
func (m *Mapper) checkSingle(from, to Slot, strict bool) bool {
	if from == to {
		return false
	}
	toRec := m.Store.At(to)
	if !m.Feas.UnselectedCubeIsConnected(from, to, m.Scalar, m.Isovalue) {
		return false
	}
	if !m.Feas.AmbiguousFacetConsistency(from, to, NoSlot) {
		return false
	}
	if !m.Feas.EdgeManifold(from, to, m.Scalar, m.Isovalue) {
		return false
	}
	if !m.Feas.SeparatingCube(from, to) {
		return false
	}
	if !m.Feas.Distortion(from, to, strict) {
		return false
	}
	if toRec.NumEigenvalues == 3 {
		if !m.Feas.MergePermitted(from, to) {
			return false
		}
	} else {
		if !m.Feas.OrderPreservation(from, to, false) {
			return false
		}
	}
	return m.withTempCommit(from, to, func() bool {
		return m.Feas.TriangleDistortionAcrossMap(from, to)
	})
}

// withTempCommit commits from -> to, runs check, and restores the prior
// value before returning, regardless of check's result.
func (m *Mapper) withTempCommit(from, to Slot, check func() bool) bool {
	rec := m.Store.At(from)
	prev := rec.MapsToCube
	rec.MapsToCube = to
	result := check()
	rec.MapsToCube = prev
	return result
}

// mapIsovPair is the two-cube map primitive: two cubes
// sharing an ambiguous facet map together to one target, provided not
// both have a multi-isovertex lookup index.
func (m *Mapper) mapIsovPair(a, b, to Slot, strict bool) bool {
	recA, recB := m.Store.At(a), m.Store.At(b)
	if m.IsoTable != nil && m.IsoTable.NumIsoVertices(recA.TableIndex) >= 2 &&
		m.IsoTable.NumIsoVertices(recB.TableIndex) >= 2 {
		return false
	}
	if !m.checkPairPartner(a, b, to, strict) || !m.checkPairPartner(b, a, to, strict) {
		return false
	}
	recA.MapsToCube = to
	recB.MapsToCube = to
	return true
}

// checkPairPartner checks from -> to's feasibility allowing partner to
// count as "part of the same ambiguous pair" for ambiguous-facet
// consistency.
func (m *Mapper) checkPairPartner(from, partner, to Slot, strict bool) bool {
	if from == to {
		return false
	}
	if !m.Feas.AmbiguousFacetConsistency(from, to, partner) {
		return false
	}
	if !m.Feas.EdgeManifold(from, to, m.Scalar, m.Isovalue) {
		return false
	}
	if !m.Feas.SeparatingCube(from, to) {
		return false
	}
	if !m.Feas.Distortion(from, to, strict) {
		return false
	}
	return m.Feas.OrderPreservation(from, to, m.Store.At(to).NumEigenvalues == 3)
}

// mapIsovTriple is the three-cube map primitive: three
// cubes around a grid edge map to one target; it temporarily commits two
// of the three before running the single-map check on the remaining one,
// restoring afterward regardless of outcome.
func (m *Mapper) mapIsovTriple(a, b, c, to Slot, strict bool) bool {
	recA, recB, recC := m.Store.At(a), m.Store.At(b), m.Store.At(c)
	prevA, prevB, prevC := recA.MapsToCube, recB.MapsToCube, recC.MapsToCube

	recA.MapsToCube = to
	recB.MapsToCube = to
	ok := m.checkSingle(c, to, strict)

	recA.MapsToCube, recB.MapsToCube, recC.MapsToCube = prevA, prevB, prevC
	if !ok {
		return false
	}
	recA.MapsToCube = to
	recB.MapsToCube = to
	recC.MapsToCube = to
	return true
}

// tryFacetPairs looks for ambiguous facet-adjacent pairs within region and
// attempts mapIsovPair on each.
func (m *Mapper) tryFacetPairs(region map[CubeIndex]bool, to Slot, strict bool) {
	for _, c := range sortedRegionCubes(region) {
		slotA, ok := m.Store.SlotOf(c)
		if !ok {
			continue
		}
		recA := m.Store.At(slotA)
		if recA.Flag == Selected || recA.MapsToCube != slotA {
			continue
		}
		for _, n := range m.Geo.FacetNeighbors(c) {
			if !region[n] {
				continue
			}
			slotB, ok := m.Store.SlotOf(n)
			if !ok || slotB <= slotA {
				continue
			}
			recB := m.Store.At(slotB)
			if recB.Flag == Selected || recB.MapsToCube != slotB {
				continue
			}
			m.mapIsovPair(slotA, slotB, to, strict)
		}
	}
}

// tryEdgePairs is tryFacetPairs' edge-adjacent analogue.
func (m *Mapper) tryEdgePairs(region map[CubeIndex]bool, to Slot, strict bool) {
	for _, c := range sortedRegionCubes(region) {
		slotA, ok := m.Store.SlotOf(c)
		if !ok {
			continue
		}
		recA := m.Store.At(slotA)
		if recA.Flag == Selected || recA.MapsToCube != slotA {
			continue
		}
		for _, n := range m.Geo.EdgeNeighbors(c) {
			if !region[n] {
				continue
			}
			slotB, ok := m.Store.SlotOf(n)
			if !ok || slotB <= slotA {
				continue
			}
			recB := m.Store.At(slotB)
			if recB.Flag == Selected || recB.MapsToCube != slotB {
				continue
			}
			m.mapIsovPair(slotA, slotB, to, strict)
		}
	}
}

// tryAmbiguousPairs looks specifically for cubes whose facet configuration
// is ambiguous.
func (m *Mapper) tryAmbiguousPairs(region map[CubeIndex]bool, to Slot, strict bool) {
	if m.IsoTable == nil {
		return
	}
	for _, c := range sortedRegionCubes(region) {
		slotA, ok := m.Store.SlotOf(c)
		if !ok {
			continue
		}
		recA := m.Store.At(slotA)
		if recA.Flag == Selected || recA.MapsToCube != slotA {
			continue
		}
		for facet, n := range m.Geo.FacetNeighbors(c) {
			if !region[n] || !m.IsoTable.IsFacetAmbiguous(recA.TableIndex, facet) {
				continue
			}
			slotB, ok := m.Store.SlotOf(n)
			if !ok || slotB == slotA {
				continue
			}
			recB := m.Store.At(slotB)
			if recB.Flag == Selected || recB.MapsToCube != slotB {
				continue
			}
			m.mapIsovPair(slotA, slotB, to, strict)
		}
	}
}

// tryEdgeTriples attempts mapIsovTriple on every trio of cubes sharing a
// grid edge within region.
func (m *Mapper) tryEdgeTriples(region map[CubeIndex]bool, to Slot, strict bool) {
	toRec := m.Store.At(to)
	for e := 0; e < 12; e++ {
		cubes := edgeIncidentCubes(m.Geo, toRec.CubeIndex, e)
		var slots []Slot
		for _, c := range cubes {
			if !region[c] {
				continue
			}
			slot, ok := m.Store.SlotOf(c)
			if !ok {
				continue
			}
			rec := m.Store.At(slot)
			if rec.Flag == Selected || rec.MapsToCube != slot {
				continue
			}
			slots = append(slots, slot)
		}
		if len(slots) < 3 {
			continue
		}
		m.mapIsovTriple(slots[0], slots[1], slots[2], to, strict)
	}
}

// extendedMapPasses maps cubes at
// L-infinity distance up to MaxDistToSetOther in sub-phases: adjacent
// pairs where one cube is covered, triples around an edge, corner cubes
// out to distance 2, then a generic extend over all selected cubes.
// Proposals go through the same feasibility checks as the main passes;
// there is no separate extended stack with different separation,
// manifold or distortion rules.
// Boundary cubes are excluded from every extended sub-phase.
func (m *Mapper) extendedMapPasses(strict bool) {
	corners := m.selectedOfKind(3)
	edges := m.selectedOfKind(2)

	for _, to := range append(append([]Slot{}, corners...), edges...) {
		region := m.extendedRegion(to)
		for c := range region {
			if m.Geo.BoundaryBits(c) != 0 {
				delete(region, c)
			}
		}
		m.tryCoveredAdjacentPairs(region, to, strict)
		m.tryEdgeTriples(region, to, strict)
	}

	for _, to := range corners {
		m.extendFrom(to, strict)
	}

	m.Store.Range(func(slot Slot, rec *GridCube) {
		if rec.Flag == Selected || rec.MapsToCube != slot {
			return
		}
		if rec.BoundaryBits != 0 {
			return
		}
		to := m.bestExtendedTarget(rec, strict)
		if to != NoSlot && m.mapIsovSingle(slot, to, strict) {
			m.markExtendedClaim(rec, to)
		}
	})
}

// extendedRegion is the distance-2 box around a selected cube, the
// extended analogue of map3x3x3's region.
func (m *Mapper) extendedRegion(to Slot) map[CubeIndex]bool {
	base := m.Store.At(to).CubeCoord
	region := make(map[CubeIndex]bool)
	for dx := -2; dx <= 2; dx++ {
		for dy := -2; dy <= 2; dy++ {
			for dz := -2; dz <= 2; dz++ {
				c := IntCoord{base.X + dx, base.Y + dy, base.Z + dz}
				if m.Geo.InBounds(c) {
					region[m.Geo.IndexOf(c)] = true
				}
			}
		}
	}
	return region
}

// extendFrom proposes every unmapped interior cube of to's extended region
// onto to, nearest first.
func (m *Mapper) extendFrom(to Slot, strict bool) {
	toRec := m.Store.At(to)
	for _, c := range m.orderedByAdjacency(toRec.CubeIndex, m.extendedRegion(to)) {
		slot, ok := m.Store.SlotOf(c)
		if !ok {
			continue
		}
		rec := m.Store.At(slot)
		if rec.Flag == Selected || rec.MapsToCube != slot || rec.BoundaryBits != 0 {
			continue
		}
		if m.mapIsovSingle(slot, to, strict) {
			m.markExtendedClaim(rec, to)
		}
	}
}

// tryCoveredAdjacentPairs attempts pair maps over facet-adjacent pairs in
// which at least one cube is already covered.
func (m *Mapper) tryCoveredAdjacentPairs(region map[CubeIndex]bool, to Slot, strict bool) {
	for _, c := range sortedRegionCubes(region) {
		slotA, ok := m.Store.SlotOf(c)
		if !ok {
			continue
		}
		recA := m.Store.At(slotA)
		if recA.Flag == Selected || recA.MapsToCube != slotA || recA.BoundaryBits != 0 {
			continue
		}
		for _, n := range m.Geo.FacetNeighbors(c) {
			if !region[n] {
				continue
			}
			slotB, ok := m.Store.SlotOf(n)
			if !ok || slotB <= slotA {
				continue
			}
			recB := m.Store.At(slotB)
			if recB.Flag == Selected || recB.MapsToCube != slotB || recB.BoundaryBits != 0 {
				continue
			}
			if !IsCovered(recA.Flag) && !IsCovered(recB.Flag) {
				continue
			}
			if m.mapIsovPair(slotA, slotB, to, strict) {
				m.markExtendedClaim(recA, to)
				m.markExtendedClaim(recB, to)
			}
		}
	}
}

// markExtendedClaim advances an AVAILABLE cube claimed by extended mapping
// to COVERED_B.
func (m *Mapper) markExtendedClaim(rec *GridCube, to Slot) {
	if rec.Flag == Available {
		rec.Flag = CoveredB
		rec.CoveredBy = to
	}
}

// bestExtendedTarget finds the closest selected cube within
// MaxDistToSetOther that passes the feasibility stack, preferring smaller
// L-infinity distance.
func (m *Mapper) bestExtendedTarget(rec *GridCube, strict bool) Slot {
	best := NoSlot
	bestDist := -1.0
	for _, slot := range m.Bins.NearbyCube(rec.CubeIndex) {
		other := m.Store.At(slot)
		if other.Flag != Selected {
			continue
		}
		dist := m.Geo.LInfDistCubes(rec.CubeIndex, other.CubeIndex)
		if dist > m.Params.maxDistToSetOther()*maxAxisSpacing(m.Geo) {
			continue
		}
		if best != NoSlot && dist >= bestDist {
			continue
		}
		if !m.checkSingle(rec.Slot, slot, strict) {
			continue
		}
		best = slot
		bestDist = dist
	}
	return best
}

// collapseSmallAngleTriangles remaps one
// vertex of any triangle whose apex angle cosine exceeds CosCollapseAngle
// onto its neighbor's target.
func (m *Mapper) collapseSmallAngleTriangles() {
	m.Store.Range(func(slot Slot, rec *GridCube) {
		if rec.Flag == Selected || rec.MapsToCube == slot {
			return
		}
		apex := rec.IsovertCoord
		for _, n := range m.Geo.FacetNeighbors(rec.CubeIndex) {
			nSlot, ok := m.Store.SlotOf(n)
			if !ok || nSlot == slot {
				continue
			}
			nRec := m.Store.At(nSlot)
			if nRec.MapsToCube == nSlot || nRec.MapsToCube == rec.MapsToCube {
				continue
			}
			p1 := m.Feas.isovertOf(rec.Slot)
			p2 := m.Feas.isovertOf(nSlot)
			a := p1.Sub(apex)
			b := p2.Sub(apex)
			if a.Norm() == 0 || b.Norm() == 0 {
				continue
			}
			cos := a.Dot(b) / (a.Norm() * b.Norm())
			if cos > m.Params.CosCollapseAngle {
				rec.MapsToCube = nRec.MapsToCube
				return
			}
		}
	})
}
