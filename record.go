package sharpiso

// Slot is a dense, stable index into a RecordStore. Cross-references
// between records (covered_by, cube_containing_isovert, maps_to_cube, ...)
// are always by Slot, never by pointer.
type Slot int

// NoSlot marks the absence of a cross-reference.
const NoSlot Slot = -1

// GridCube is the per-active-cube record.
type GridCube struct {
	// CubeIndex is this record's cube in the grid. Fixed at creation.
	CubeIndex CubeIndex
	// CubeCoord is the cached integer coordinate of the cube's minimum
	// corner.
	CubeCoord IntCoord

	// IsovertCoord is the primary sharp point, in world coordinates.
	IsovertCoord Coord3
	// IsovertCoordAlt is the alternate (substitute) point, used when the
	// primary is invalid.
	IsovertCoordAlt Coord3
	// HasAlt reports whether IsovertCoordAlt was ever populated.
	HasAlt bool

	// Direction is a unit vector: the edge direction when NumEigenvalues
	// == 2, the surface normal when NumEigenvalues == 1. Undefined
	// (zero) when NumEigenvalues == 3.
	Direction Coord3
	// NumEigenvalues is the SVD-thresholded classification: 1 smooth, 2
	// edge, 3 corner.
	NumEigenvalues int

	// Flag is the lifecycle state.
	Flag CubeFlag
	// BoundaryBits records which grid faces this cube touches.
	BoundaryBits uint8
	// LinfDist is the scaled L-infinity distance from IsovertCoord to the
	// cube center.
	LinfDist float64

	// FlagCentroidLocation is true if IsovertCoord came from a centroid
	// fallback rather than an SVD solve.
	FlagCentroidLocation bool
	// FlagConflict is true if IsovertCoord lies in a grid cube other than
	// CubeIndex (CubeContainingIsovert names that cube). A point outside
	// the grid is not a conflict.
	FlagConflict bool
	// CubeContainingIsovert is the cube that actually contains
	// IsovertCoord; equals CubeIndex when there is no conflict.
	CubeContainingIsovert CubeIndex

	// FlagUsingSubstituteCoord is true once the alternate coordinate has
	// been swapped into IsovertCoord.
	FlagUsingSubstituteCoord bool
	// FlagRecomputedCoord is true once Recompute has re-placed this cube.
	FlagRecomputedCoord bool
	// FlagRecomputedCoordMinOffset is true if the recompute used offset 0.
	FlagRecomputedCoordMinOffset bool
	// FlagFar is true if the placement solve was clamped to an
	// admissibility ball (numerical.Far).
	FlagFar bool
	// FlagCoordFromVertex/FlagCoordFromEdge record provenance when the
	// point was set by RecomputeAroundVertex/RecomputeAroundEdge.
	FlagCoordFromVertex bool
	FlagCoordFromEdge   bool

	// CoveredBy is the slot of the selected cube whose selection covered
	// this one; equals this record's own slot if not covered.
	CoveredBy Slot
	// MapsToCube is the slot of the selected cube this cube's isovert
	// ultimately maps to; written by the mapper.
	MapsToCube Slot

	// TableIndex is the multi-isovertex lookup key, set externally by the
	// isosurface lookup table collaborator.
	TableIndex int

	// Slot is this record's own slot, cached for convenience in code that
	// only has a *GridCube in hand.
	Slot Slot
}

// RecordStore owns all GridCube records for a pipeline run. Records are
// addressed by dense Slot, never relocated once allocated.
type RecordStore struct {
	records []GridCube
	byCube  map[CubeIndex]Slot
}

// NewRecordStore creates an empty store.
func NewRecordStore() *RecordStore {
	return &RecordStore{byCube: make(map[CubeIndex]Slot)}
}

// Add allocates a new record for the given cube, returning its slot. It is
// an error (panicked, since it indicates a pipeline bug, not bad input) to
// add the same cube twice.
func (rs *RecordStore) Add(cube CubeIndex, geo Geometry) Slot {
	if _, ok := rs.byCube[cube]; ok {
		panic("sharpiso: duplicate cube record")
	}
	slot := Slot(len(rs.records))
	rs.records = append(rs.records, GridCube{
		CubeIndex:             cube,
		CubeCoord:             geo.CoordOf(cube),
		BoundaryBits:          geo.BoundaryBits(cube),
		CubeContainingIsovert: cube,
		CoveredBy:             slot,
		MapsToCube:            slot,
		Slot:                  slot,
	})
	rs.byCube[cube] = slot
	return slot
}

// Len returns the number of records.
func (rs *RecordStore) Len() int { return len(rs.records) }

// At returns a pointer to the record at slot. Panics (InternalInconsistency
// at the call site should catch this first) if slot is out of range.
func (rs *RecordStore) At(slot Slot) *GridCube {
	return &rs.records[int(slot)]
}

// SlotOf returns the slot for a cube index and whether a record exists.
func (rs *RecordStore) SlotOf(cube CubeIndex) (Slot, bool) {
	s, ok := rs.byCube[cube]
	return s, ok
}

// Range calls f for every record's slot in creation order.
func (rs *RecordStore) Range(f func(slot Slot, cube *GridCube)) {
	for i := range rs.records {
		f(Slot(i), &rs.records[i])
	}
}

// SnapshotMap returns a copy of the current MapsToCube relation, keyed by
// slot. Used by feasibility checks that must restore gcube_map after a
// hypothetical commit.
func (rs *RecordStore) SnapshotMap() []Slot {
	out := make([]Slot, len(rs.records))
	for i := range rs.records {
		out[i] = rs.records[i].MapsToCube
	}
	return out
}

// RestoreMap writes back a snapshot produced by SnapshotMap.
func (rs *RecordStore) RestoreMap(snap []Slot) {
	for i, v := range snap {
		rs.records[i].MapsToCube = v
	}
}

// CoveredGrid records, per cube index, whether some selected cube's
// 3x3x3 neighborhood claims it.
type CoveredGrid struct {
	covered map[CubeIndex]Slot
}

// NewCoveredGrid creates an empty covered grid.
func NewCoveredGrid() *CoveredGrid {
	return &CoveredGrid{covered: make(map[CubeIndex]Slot)}
}

// Mark claims cube as covered by the selected cube at ownerSlot. A cube
// already covered keeps its original owner (first writer wins; stronger
// claims like SELECTED itself are handled by the caller via flags, not
// here).
func (cg *CoveredGrid) Mark(cube CubeIndex, ownerSlot Slot) {
	if _, ok := cg.covered[cube]; !ok {
		cg.covered[cube] = ownerSlot
	}
}

// Owner returns the slot claiming cube, if any.
func (cg *CoveredGrid) Owner(cube CubeIndex) (Slot, bool) {
	s, ok := cg.covered[cube]
	return s, ok
}

// IsCovered reports whether cube has been claimed.
func (cg *CoveredGrid) IsCovered(cube CubeIndex) bool {
	_, ok := cg.covered[cube]
	return ok
}

// Reset clears all coverage, used to rebuild from the source of truth
// (cube flags) rather than tracking incremental staleness after mutating
// passes.
func (cg *CoveredGrid) Reset() {
	cg.covered = make(map[CubeIndex]Slot)
}

// Clear removes a single cube's coverage claim, used when a selection is
// reverted (disk repair, reselect).
func (cg *CoveredGrid) Clear(cube CubeIndex) {
	delete(cg.covered, cube)
}
