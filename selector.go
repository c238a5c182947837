package sharpiso

import (
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/splaytree"
)

// Default thresholds for the selector; zero-valued SelectorParams fields
// fall back to these.
const (
	DefaultLinfThreshSelect     = 0.5
	DefaultNearCornerLinfThresh = 0.5
	DefaultBinWidth             = 3
)

// SelectorParams configures sharp-cube selection.
type SelectorParams struct {
	// LinfThresh bounds how far (scaled L-infinity, from cube center) an
	// isovert may be for its cube to be selectable in the corner and
	// interior-edge phases. Defaults to DefaultLinfThreshSelect.
	LinfThresh float64
	// BinWidth is the bin grid bucket width, in cubes. Defaults to
	// DefaultBinWidth.
	BinWidth int
	// CosMinAngle is the admissibility angle bound; a candidate selection
	// is rejected if it would form a triangle with two already-selected
	// cubes whose cosine exceeds this.
	CosMinAngle float64
}

func (p SelectorParams) linfThresh() float64 {
	if p.LinfThresh == 0 {
		return DefaultLinfThreshSelect
	}
	return p.LinfThresh
}

func (p SelectorParams) binWidth() int {
	if p.BinWidth == 0 {
		return DefaultBinWidth
	}
	return p.BinWidth
}

func (p SelectorParams) cosMinAngle() float64 {
	if p.CosMinAngle == 0 {
		return DefaultCosMinAngle
	}
	return p.CosMinAngle
}

// DefaultCosMinAngle is cos(140 degrees), the selector's large-angle
// admissibility bound.
const DefaultCosMinAngle = -0.766044443118978

// Selector chooses the maximal, geometry-respecting subset of sharp cubes
// that become mesh vertices.
type Selector struct {
	Geo     Geometry
	Store   *RecordStore
	Covered *CoveredGrid
	Bins    *BinGrid
	Placer  *Placer
	Params  SelectorParams
}

// NewSelector builds a Selector with a freshly allocated bin grid sized by
// params.
func NewSelector(geo Geometry, store *RecordStore, covered *CoveredGrid, placer *Placer, params SelectorParams) *Selector {
	return &Selector{
		Geo:     geo,
		Store:   store,
		Covered: covered,
		Bins:    NewBinGrid(geo, params.binWidth()),
		Placer:  placer,
		Params:  params,
	}
}

// candidateNode orders candidate cubes for selection priority:
// decreasing NumEigenvalues, then self-computed before inherited, then
// increasing LinfDist, ties broken by Slot for determinism.
type candidateNode struct {
	slot           Slot
	numEigenvalues int
	selfComputed   bool
	linfDist       float64
}

// Compare implements splaytree.Tree[T]'s ordering: the tree's
// Max() pops the highest-priority node, so "better" candidates must
// compare greater.
func (c *candidateNode) Compare(other *candidateNode) int {
	if c.numEigenvalues != other.numEigenvalues {
		if c.numEigenvalues > other.numEigenvalues {
			return 1
		}
		return -1
	}
	if c.selfComputed != other.selfComputed {
		if c.selfComputed {
			return 1
		}
		return -1
	}
	if c.linfDist != other.linfDist {
		// Smaller linfDist is higher priority.
		if c.linfDist < other.linfDist {
			return 1
		}
		return -1
	}
	if c.slot != other.slot {
		if c.slot < other.slot {
			return 1
		}
		return -1
	}
	return 0
}

func isSelfComputed(rec *GridCube) bool {
	return !rec.FlagCoordFromVertex && !rec.FlagCoordFromEdge
}

func newCandidateNode(rec *GridCube) *candidateNode {
	return &candidateNode{
		slot:           rec.Slot,
		numEigenvalues: rec.NumEigenvalues,
		selfComputed:   isSelfComputed(rec),
		linfDist:       rec.LinfDist,
	}
}

// candidateQueue pairs the splaytree priority queue with an explicit size
// counter, since the tree does not expose a size accessor.
type candidateQueue struct {
	tree *splaytree.Tree[*candidateNode]
	size int
}

func (q *candidateQueue) insert(n *candidateNode) {
	q.tree.Insert(n)
	q.size++
}

func (q *candidateQueue) popMax() *candidateNode {
	n := q.tree.Max()
	q.tree.Delete(n)
	q.size--
	return n
}

// buildQueue constructs a priority queue over every slot satisfying pred.
func (s *Selector) buildQueue(pred func(rec *GridCube) bool) *candidateQueue {
	q := &candidateQueue{tree: &splaytree.Tree[*candidateNode]{}}
	s.Store.Range(func(_ Slot, rec *GridCube) {
		if pred(rec) {
			q.insert(newCandidateNode(rec))
		}
	})
	return q
}

// SelectSharpIsovert runs the full selection pipeline over
// every record already placed into store.
func (s *Selector) SelectSharpIsovert(scalar ScalarGrid, isovalue float64) {
	// Phase 1: corner cubes within threshold.
	queue := s.buildQueue(func(rec *GridCube) bool {
		return rec.Flag == Available && rec.NumEigenvalues == 3 && rec.LinfDist < s.Params.linfThresh()
	})
	s.drainQueue(queue)

	// Phase 2: reset covered-cube substitutions now that corners are
	// selected, and re-place covered points; the next buildQueue call is
	// the resort.
	s.Store.Range(func(_ Slot, rec *GridCube) {
		if IsCovered(rec.Flag) {
			s.Placer.CheckCoveredAndSubstitute(rec, s.Covered)
		}
	})
	s.Placer.RecomputeCovered()

	// Phase 3: near-corner edge cubes adjacent to a covered-corner cube.
	queue = s.buildQueue(func(rec *GridCube) bool {
		if rec.Flag != Available || rec.NumEigenvalues != 2 {
			return false
		}
		if rec.LinfDist > DefaultNearCornerLinfThresh {
			return false
		}
		return s.adjacentToCoveredCorner(rec.CubeIndex)
	})
	s.drainQueue(queue)

	// Phase 4: interior edge cubes.
	queue = s.buildQueue(func(rec *GridCube) bool {
		return rec.Flag == Available && rec.NumEigenvalues == 2 &&
			rec.LinfDist < s.Params.linfThresh() && !rec.FlagConflict
	})
	s.drainQueue(queue)

	// Bisector solves around grid vertices and edges shared by several
	// covered cubes can free cubes back to AVAILABLE with a better point;
	// give them one more selection pass before reselect.
	s.recomputeAroundSharedFeatures()
	queue = s.buildQueue(func(rec *GridCube) bool {
		return rec.Flag == Available && rec.NumEigenvalues == 2 &&
			rec.LinfDist < s.Params.linfThresh() && !rec.FlagConflict
	})
	s.drainQueue(queue)

	// Phase 5: reselect pass.
	s.reselectPass()

	// Rebuild coverage from the flags (source of truth) rather than
	// trust the incremental coverage built during selection, which the
	// reselect pass can leave stale.
	s.reconcileCoveredFlags()
	s.rebuildCoverage()

	s.swapIsovertPositions()
	s.applySecondaryIsovertPositions()
	s.resetCoveredIsovertPositions()
}

// recomputeAroundSharedFeatures enumerates, in slot order, every grid
// vertex and edge touched by a COVERED_A cube and hands it to the placer's
// bisector-constrained re-solve. Deduplication keeps the enumeration
// linear in the number of covered cubes; determinism comes from visiting
// records in creation order and features in corner/edge-number order.
func (s *Selector) recomputeAroundSharedFeatures() {
	seenVertex := make(map[IntCoord]bool)
	type edgeFeature struct {
		coord IntCoord
		axis  int
	}
	seenEdge := make(map[edgeFeature]bool)

	s.Store.Range(func(_ Slot, rec *GridCube) {
		if rec.Flag != CoveredA {
			return
		}
		for _, corner := range s.Geo.CubeCorners(rec.CubeIndex) {
			if seenVertex[corner] {
				continue
			}
			seenVertex[corner] = true
			s.Placer.RecomputeAroundVertex(corner)
		}
		corners := s.Geo.CubeCorners(rec.CubeIndex)
		for e := 0; e < 12; e++ {
			f := edgeFeature{corners[cubeEdgeVertexPairs[e][0]], e / 4}
			if seenEdge[f] {
				continue
			}
			seenEdge[f] = true
			s.Placer.RecomputeAroundEdge(f.coord, f.axis)
		}
	})
}

func (s *Selector) adjacentToCoveredCorner(cube CubeIndex) bool {
	for _, n := range s.Geo.Neighbors26(cube) {
		slot, ok := s.Store.SlotOf(n)
		if !ok {
			continue
		}
		if s.Store.At(slot).Flag == CoveredCorner {
			return true
		}
	}
	return false
}

// drainQueue repeatedly pops the highest-priority candidate and attempts
// to select it, skipping candidates that fail admissibility (they are
// left for subsequent phases to reconsider, or remain unselected).
func (s *Selector) drainQueue(queue *candidateQueue) {
	for queue.size > 0 {
		node := queue.popMax()
		rec := s.Store.At(node.slot)
		if rec.Flag != Available {
			continue
		}
		s.trySelect(rec)
	}
}

// trySelect applies the admissibility predicate and, on success, marks the
// cube SELECTED and stamps coverage onto its 26-neighborhood.
func (s *Selector) trySelect(rec *GridCube) bool {
	if s.Covered.IsCovered(rec.CubeContainingIsovert) {
		rec.Flag = CoveredPoint
		return false
	}
	if s.createsLargeAngleTriangle(rec) {
		rec.Flag = Unavailable
		return false
	}
	s.markSelected(rec)
	return true
}

// createsLargeAngleTriangle is the selection admissibility predicate:
// true if selecting rec alongside any two already-selected
// cubes, all three mutually within 3x3x3 range and pairwise connected by
// iso-edges, would produce a triangle with an inadmissible angle.
func (s *Selector) createsLargeAngleTriangle(rec *GridCube) bool {
	nearby := s.Bins.NearbyCube(rec.CubeIndex)
	var candidates []Slot
	for _, slot := range nearby {
		other := s.Store.At(slot)
		if other.Flag != Selected {
			continue
		}
		if s.Geo.LInfDistCubes(rec.CubeIndex, other.CubeIndex) > 3*maxAxisSpacing(s.Geo) {
			continue
		}
		candidates = append(candidates, slot)
	}
	for i := 0; i < len(candidates); i++ {
		for j := i + 1; j < len(candidates); j++ {
			s1 := s.Store.At(candidates[i])
			s2 := s.Store.At(candidates[j])
			if !cubesShareIsoEdge(s.Geo, rec.CubeIndex, s1.CubeIndex) {
				continue
			}
			if !cubesShareIsoEdge(s.Geo, rec.CubeIndex, s2.CubeIndex) {
				continue
			}
			if !cubesShareIsoEdge(s.Geo, s1.CubeIndex, s2.CubeIndex) {
				continue
			}
			if LargeAngleTriangle(s.Geo, rec.IsovertCoord, s1.IsovertCoord, s2.IsovertCoord, s.Params.cosMinAngle()) {
				return true
			}
		}
	}
	return false
}

// cubesShareIsoEdge reports whether two cubes are close enough (within the
// 26-neighborhood) to be considered connected by a shared isosurface edge
// for the purposes of the admissibility check; a precise bipolar-edge test
// would require the scalar grid, which the selector's predicate doesn't
// otherwise need, so adjacency within the 26-neighborhood stands in for
// it.
func cubesShareIsoEdge(geo Geometry, a, b CubeIndex) bool {
	ca, cb := geo.CoordOf(a), geo.CoordOf(b)
	dx, dy, dz := iabs(ca.X-cb.X), iabs(ca.Y-cb.Y), iabs(ca.Z-cb.Z)
	return dx <= 1 && dy <= 1 && dz <= 1 && (dx+dy+dz) > 0
}

func iabs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func maxAxisSpacing(geo Geometry) float64 {
	best := geo.Spacing[0]
	for _, s := range geo.Spacing[1:] {
		if s > best {
			best = s
		}
	}
	return best
}

// markSelected transitions rec to SELECTED, registers it in the bin grid,
// and advances every active cube in its 26-neighborhood to the
// appropriate COVERED state unless it is already SELECTED.
func (s *Selector) markSelected(rec *GridCube) {
	rec.Flag = Selected
	s.Bins.Insert(rec.CubeIndex, rec.Slot)
	isCorner := rec.NumEigenvalues == 3
	for _, n := range s.Geo.Neighbors26(rec.CubeIndex) {
		nSlot, ok := s.Store.SlotOf(n)
		if !ok {
			continue
		}
		if nSlot == rec.Slot {
			continue
		}
		s.Covered.Mark(n, rec.Slot)
		nRec := s.Store.At(nSlot)
		if nRec.Flag == Selected {
			continue
		}
		nRec.CoveredBy = rec.Slot
		if isCorner {
			nRec.Flag = CoveredCorner
		} else if nRec.Flag != CoveredCorner {
			nRec.Flag = CoveredA
		}
	}
}

// unselect reverts rec to AVAILABLE and removes it from the bin grid. It
// does not retract coverage stamped on neighbors; rebuildCoverage handles
// that afterward from the flags.
func (s *Selector) unselect(rec *GridCube) {
	s.Bins.Remove(rec.CubeIndex, rec.Slot)
	rec.Flag = Available
}

// reselectPass is the final selection phase: for each selected edge cube
// whose 3x3x3 region overlaps another selected cube only along a 2D
// facet/1D edge/0D vertex, unselect it and try to select two replacement
// edge cubes; unless two replacements are selected, any replacement that
// was selected is unselected again and the original is reselected.
func (s *Selector) reselectPass() {
	var toCheck []Slot
	s.Store.Range(func(slot Slot, rec *GridCube) {
		if rec.Flag == Selected && rec.NumEigenvalues == 2 {
			toCheck = append(toCheck, slot)
		}
	})

	for _, slot := range toCheck {
		rec := s.Store.At(slot)
		if rec.Flag != Selected {
			continue
		}
		overlap, found := s.overlapDimWithAnotherSelected(rec)
		if !found || overlap == 3 {
			continue
		}

		s.unselect(rec)
		replacements := s.replacementCandidates(rec)
		selectedReplacements := 0
		for _, cand := range replacements {
			if selectedReplacements == 2 {
				break
			}
			if s.trySelect(cand) {
				selectedReplacements++
			}
		}
		if selectedReplacements < 2 {
			for _, cand := range replacements {
				if cand.Flag == Selected {
					s.unselect(cand)
				}
			}
			s.markSelected(rec)
		}
	}
}

// overlapDimWithAnotherSelected returns the dimension (0, 1, or 2) of the
// overlap between rec's 3x3x3 neighborhood and another selected cube's, if
// any other selected cube is within range; found is false if none is.
func (s *Selector) overlapDimWithAnotherSelected(rec *GridCube) (dim int, found bool) {
	best := -1
	for _, slot := range s.Bins.NearbyCube(rec.CubeIndex) {
		if slot == rec.Slot {
			continue
		}
		other := s.Store.At(slot)
		if other.Flag != Selected {
			continue
		}
		d := overlapDimension(rec.CubeCoord, other.CubeCoord)
		if d < 0 {
			continue
		}
		found = true
		if best < 0 || d < best {
			best = d
		}
	}
	return best, found
}

// overlapDimension returns how many axes the two cubes' 3x3x3
// neighborhoods overlap along (3 means the neighborhoods coincide on all
// three axes, i.e. the cubes themselves are within L-infinity distance 1;
// lower means the shared region is a 2D facet, 1D edge, or 0D vertex of
// the two 3x3x3 boxes), or -1 if the boxes don't overlap at all.
func overlapDimension(a, b IntCoord) int {
	axes := [3][2]int{{a.X, b.X}, {a.Y, b.Y}, {a.Z, b.Z}}
	dim := 0
	for _, pair := range axes {
		d := pair[0] - pair[1]
		if d < 0 {
			d = -d
		}
		if d > 4 {
			return -1
		}
		if d <= 1 {
			dim++
		}
	}
	return dim
}

// replacementCandidates builds a constructed candidate list of edge cubes
// near rec's facet neighbors to try as a two-cube replacement.
func (s *Selector) replacementCandidates(rec *GridCube) []*GridCube {
	var out []*GridCube
	seen := map[Slot]bool{rec.Slot: true}
	for _, n := range s.Geo.FacetNeighbors(rec.CubeIndex) {
		slot, ok := s.Store.SlotOf(n)
		if !ok || seen[slot] {
			continue
		}
		seen[slot] = true
		cand := s.Store.At(slot)
		if cand.Flag == Available && cand.NumEigenvalues == 2 {
			out = append(out, cand)
		}
	}
	// Stable priority: closer to cube center first.
	dists := make([]float64, len(out))
	for i, r := range out {
		dists[i] = r.LinfDist
	}
	essentials.VoodooSort(dists, func(i, j int) bool {
		return dists[i] < dists[j]
	}, out)
	return out
}

// reconcileCoveredFlags re-derives COVERED_A/COVERED_CORNER flags from the
// final selection: a covered cube whose coverer was unselected during
// reselect is re-covered by another selected cube in its 26-neighborhood,
// or reverts to AVAILABLE (SMOOTH when not sharp) if none remains.
func (s *Selector) reconcileCoveredFlags() {
	s.Store.Range(func(slot Slot, rec *GridCube) {
		if rec.Flag != CoveredA && rec.Flag != CoveredCorner {
			return
		}
		if s.Store.At(rec.CoveredBy).Flag == Selected {
			return
		}
		rec.CoveredBy = slot
		if rec.NumEigenvalues <= 1 {
			rec.Flag = Smooth
		} else {
			rec.Flag = Available
		}
		for _, n := range s.Geo.Neighbors26(rec.CubeIndex) {
			nSlot, ok := s.Store.SlotOf(n)
			if !ok {
				continue
			}
			nRec := s.Store.At(nSlot)
			if nRec.Flag != Selected {
				continue
			}
			rec.CoveredBy = nSlot
			if nRec.NumEigenvalues == 3 {
				rec.Flag = CoveredCorner
			} else {
				rec.Flag = CoveredA
			}
			break
		}
	})
}

// rebuildCoverage recomputes the covered grid from cube flags rather than
// trusting incremental updates, which the reselect pass can leave
// stale.
func (s *Selector) rebuildCoverage() {
	s.Covered.Reset()
	s.Store.Range(func(slot Slot, rec *GridCube) {
		if rec.Flag != Selected {
			return
		}
		for _, n := range s.Geo.Neighbors26(rec.CubeIndex) {
			s.Covered.Mark(n, slot)
		}
	})
}

// swapIsovertPositions: for each selected cube whose
// isovert conflicts and whose conflicting cube is unselected or uses a
// centroid location, swap the two positions.
func (s *Selector) swapIsovertPositions() {
	s.Store.Range(func(slot Slot, rec *GridCube) {
		if rec.Flag != Selected || !rec.FlagConflict {
			return
		}
		otherSlot, ok := s.Store.SlotOf(rec.CubeContainingIsovert)
		if !ok {
			return
		}
		other := s.Store.At(otherSlot)
		if other.Flag != Selected || other.FlagCentroidLocation {
			rec.IsovertCoord, other.IsovertCoord = other.IsovertCoord, rec.IsovertCoord
			rec.FlagConflict = false
			other.FlagConflict = true
			other.CubeContainingIsovert = rec.CubeIndex
			rec.CubeContainingIsovert = rec.CubeIndex
		}
	})
}

// applySecondaryIsovertPositions: where a substitute
// coordinate would fall inside the cube, apply it.
func (s *Selector) applySecondaryIsovertPositions() {
	s.Store.Range(func(_ Slot, rec *GridCube) {
		if rec.Flag != Selected || !rec.HasAlt || rec.FlagUsingSubstituteCoord {
			return
		}
		if !s.Geo.ContainsPoint(rec.CubeIndex, rec.IsovertCoord) && s.Geo.ContainsPoint(rec.CubeIndex, rec.IsovertCoordAlt) {
			rec.IsovertCoord, rec.IsovertCoordAlt = rec.IsovertCoordAlt, rec.IsovertCoord
			rec.FlagUsingSubstituteCoord = true
			rec.CubeContainingIsovert = rec.CubeIndex
			rec.FlagConflict = false
		}
	})
}

// resetCoveredIsovertPositions: copy a sharp cube's
// isovert to the cube that ended up owning it, so covered cubes carry a
// coordinate consistent with the owner they'll ultimately map to.
func (s *Selector) resetCoveredIsovertPositions() {
	s.Store.Range(func(_ Slot, rec *GridCube) {
		if !IsCovered(rec.Flag) {
			return
		}
		owner := s.Store.At(rec.CoveredBy)
		if owner.Flag != Selected {
			return
		}
		rec.IsovertCoord = owner.IsovertCoord
	})
}
