// Package sharpiso reconstructs a sharp-feature-preserving isosurface
// vertex set from a 3D scalar grid: it places a candidate sharp point per
// active cube via an SVD least-squares fit, selects a geometrically and
// topologically admissible subset of those points as mesh vertices, and
// maps every remaining active cube onto the selected vertex it should
// collapse to. Final triangle/quad extraction, file I/O, and CLI concerns
// are left to callers.
package sharpiso

import "github.com/pkg/errors"

// MergeParams bundles the tunables of every stage. Zero-valued fields
// fall back to the package's Default* constants.
type MergeParams struct {
	Placer      PlacerParams
	Selector    SelectorParams
	Feasibility FeasibilityParams
	Mapper      MapperParams

	// FlagCheckDisk enables the disk-patch repair loop.
	FlagCheckDisk bool
}

// MergeInfo reports statistics from a merge run.
type MergeInfo struct {
	NumSelected       int
	NumNonDiskRepairs int
}

// Pipeline runs the fixed stage sequence: activate cubes ->
// place isoverts -> select sharp cubes -> map adjacent cubes -> extend
// mapping -> repair non-disk patches. Each stage reads and updates the
// shared RecordStore.
type Pipeline struct {
	Geo      Geometry
	Scalar   ScalarGrid
	Gradient GradientGrid
	IsoTable IsoTable
	Isovalue float64
	Params   MergeParams

	Store   *RecordStore
	Covered *CoveredGrid

	placer   *Placer
	selector *Selector
	mapper   *Mapper
	disk     *DiskChecker
}

// NewPipeline validates its inputs and
// prepares a fresh, empty RecordStore.
func NewPipeline(scalar ScalarGrid, gradient GradientGrid, isoTable IsoTable, isovalue float64, params MergeParams) (*Pipeline, error) {
	geo := NewGeometry(scalar)
	for d := 0; d < 3; d++ {
		if scalar.AxisSize(d) < 2 {
			return nil, newBadInput("scalar grid must have at least 2 vertices per axis")
		}
	}
	if gradient != nil {
		// The gradient grid is required to have the same shape as the
		// scalar grid; since GradientGrid's interface doesn't
		// expose AxisSize, callers are responsible for matching shapes,
		// but we can at least catch the common n=0 grid mistake via
		// Geometry.NumCubes.
		if geo.NumCubes() == 0 {
			return nil, newBadInput("grid has no cubes")
		}
	}

	store := NewRecordStore()
	covered := NewCoveredGrid()
	return &Pipeline{
		Geo:      geo,
		Scalar:   scalar,
		Gradient: gradient,
		IsoTable: isoTable,
		Isovalue: isovalue,
		Params:   params,
		Store:    store,
		Covered:  covered,
	}, nil
}

// activeCubes enumerates every cube whose scalar range straddles
// isovalue.
func (p *Pipeline) activeCubes() []CubeIndex {
	var out []CubeIndex
	n := p.Geo.NumCubes()
	for i := 0; i < n; i++ {
		idx := CubeIndex(i)
		if p.cubeIsActive(idx) {
			out = append(out, idx)
		}
	}
	return out
}

func (p *Pipeline) cubeIsActive(cube CubeIndex) bool {
	verts := p.Geo.CubeVertices(cube)
	first := p.Scalar.ScalarAt(verts[0]) > p.Isovalue
	for _, v := range verts[1:] {
		if (p.Scalar.ScalarAt(v) > p.Isovalue) != first {
			return true
		}
	}
	return false
}

// ComputeDualIsovert runs only the placement stage, populating and
// returning the RecordStore. It is
// exposed standalone for callers that want isovert coordinates without
// committing to selection/merging.
func (p *Pipeline) ComputeDualIsovert() *RecordStore {
	cubes := p.activeCubes()
	p.placer = &Placer{
		Geo:      p.Geo,
		Scalar:   p.Scalar,
		Gradient: p.Gradient,
		Isovalue: p.Isovalue,
		Params:   p.Params.Placer,
		Store:    p.Store,
	}
	p.placer.PlaceAll(cubes)
	return p.Store
}

// SelectSharpIsovert runs the selection stage over an already-placed
// store. ComputeDualIsovert must have run
// first.
func (p *Pipeline) SelectSharpIsovert() {
	if p.placer == nil {
		p.ComputeDualIsovert()
	}
	p.selector = NewSelector(p.Geo, p.Store, p.Covered, p.placer, p.Params.Selector)
	p.selector.SelectSharpIsovert(p.Scalar, p.Isovalue)
}

// MergeSharpIsoVertices runs the mapper and, if enabled, the disk-patch
// repair loop, then reports statistics.
func (p *Pipeline) MergeSharpIsoVertices() MergeInfo {
	if p.selector == nil {
		p.SelectSharpIsovert()
	}

	feas := &Feasibility{
		Geo:      p.Geo,
		Store:    p.Store,
		Bins:     p.selector.Bins,
		IsoTable: p.IsoTable,
		Params:   p.Params.Feasibility,
	}
	p.mapper = &Mapper{
		Geo:      p.Geo,
		Store:    p.Store,
		Covered:  p.Covered,
		Bins:     p.selector.Bins,
		Feas:     feas,
		IsoTable: p.IsoTable,
		Scalar:   p.Scalar,
		Isovalue: p.Isovalue,
		Params:   p.Params.Mapper,
	}
	p.mapper.Run()

	info := MergeInfo{}
	if p.Params.FlagCheckDisk {
		p.disk = &DiskChecker{Geo: p.Geo, Store: p.Store, Scalar: p.Scalar, Isovalue: p.Isovalue}
		info.NumNonDiskRepairs = p.repairNonDiskPatches()
	}

	p.Store.Range(func(_ Slot, rec *GridCube) {
		if rec.Flag == Selected {
			info.NumSelected++
		}
	})
	return info
}

// repairNonDiskPatches runs the outer repair loop: while any
// SELECTED cube's incident isopatch fails the disk test, revert its
// selection. The freed cubes are left mapped to themselves; mapping is
// not re-run over them. The loop strictly
// decreases the number of SELECTED cubes on every iteration that changes
// anything, so it terminates in at most O(#selected) rounds.
func (p *Pipeline) repairNonDiskPatches() int {
	repairs := 0
	for {
		var failing []Slot
		p.Store.Range(func(slot Slot, rec *GridCube) {
			if rec.Flag == Selected && !p.disk.CheckDisk(slot) {
				failing = append(failing, slot)
			}
		})
		if len(failing) == 0 {
			return repairs
		}
		for _, slot := range failing {
			if p.Store.At(slot).Flag != Selected {
				continue
			}
			RepairNonDisk(p.Store, p.Covered, p.selector.Bins, slot)
			repairs++
		}
	}
}

// CubeIndexOf returns a record's cube index.
func (p *Pipeline) CubeIndexOf(slot Slot) CubeIndex { return p.Store.At(slot).CubeIndex }

// GCubeIndexOf returns the slot for a cube index, erroring with
// InternalInconsistencyError if no record exists there.
func (p *Pipeline) GCubeIndexOf(cube CubeIndex) (Slot, error) {
	slot, ok := p.Store.SlotOf(cube)
	if !ok {
		return NoSlot, newInternalInconsistency(cube, "no active-cube record at this index")
	}
	return slot, nil
}

// IsovertCoordOf returns the current isovert coordinate of a record.
func (p *Pipeline) IsovertCoordOf(slot Slot) Coord3 { return p.Store.At(slot).IsovertCoord }

// MapsToCubeIndex returns the cube index a record ultimately maps to.
func (p *Pipeline) MapsToCubeIndex(slot Slot) (CubeIndex, error) {
	rec := p.Store.At(slot)
	target := p.Store.At(rec.MapsToCube)
	if rec.MapsToCube != slot && target.Flag != Selected {
		return 0, errors.Wrapf(newInternalInconsistency(rec.CubeIndex, "maps to a non-selected cube"), "cube %d", int(rec.CubeIndex))
	}
	return target.CubeIndex, nil
}

// Range iterates every record's slot in creation order.
func (p *Pipeline) Range(f func(slot Slot, rec *GridCube)) { p.Store.Range(f) }
