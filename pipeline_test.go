package sharpiso

import (
	"math"
	"testing"
)

// fakeGrid is a small hand-built ScalarGrid+GradientGrid over an n^3 lattice
// of unit spacing, evaluating an arbitrary scalar function at each vertex
// and its gradient by central differences, so end-to-end tests run
// against a tiny, fully-known field rather than loaded data.
type fakeGrid struct {
	n int
	f func(x, y, z float64) float64
}

func (g *fakeGrid) AxisSize(d int) int      { return g.n }
func (g *fakeGrid) Spacing(d int) float64   { return 1 }
func (g *fakeGrid) ComputeCoord(v VertexIndex) IntCoord {
	i := int(v)
	x := i % g.n
	i /= g.n
	y := i % g.n
	z := i / g.n
	return IntCoord{x, y, z}
}
func (g *fakeGrid) VertexAt(c IntCoord) VertexIndex {
	return VertexIndex(c.X + (c.Y+c.Z*g.n)*g.n)
}
func (g *fakeGrid) ScalarAt(v VertexIndex) float64 {
	c := g.ComputeCoord(v)
	return g.f(float64(c.X), float64(c.Y), float64(c.Z))
}
func (g *fakeGrid) GradientAt(v VertexIndex) Coord3 {
	c := g.ComputeCoord(v)
	x, y, z := float64(c.X), float64(c.Y), float64(c.Z)
	const h = 1e-4
	gx := (g.f(x+h, y, z) - g.f(x-h, y, z)) / (2 * h)
	gy := (g.f(x, y+h, z) - g.f(x, y-h, z)) / (2 * h)
	gz := (g.f(x, y, z+h) - g.f(x, y, z-h)) / (2 * h)
	return Coord3{gx, gy, gz}
}

func defaultMergeParams() MergeParams {
	return MergeParams{
		Placer:      PlacerParams{},
		Selector:    SelectorParams{},
		Feasibility: FeasibilityParams{},
		Mapper:      MapperParams{},
	}
}

// TestPipelineSingleEdge exercises a field with a single
// sharp crease (two planes meeting along a line), and checks that at least
// one cube is selected and that the gcube_map-integrity and
// covered-coverage invariants hold.
func TestPipelineSingleEdge(t *testing.T) {
	grid := &fakeGrid{n: 5, f: func(x, y, z float64) float64 {
		return math.Max(y-2.5, 1.5-z)
	}}
	p, err := NewPipeline(grid, grid, nil, 0, defaultMergeParams())
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	p.ComputeDualIsovert()
	p.SelectSharpIsovert()
	info := p.MergeSharpIsoVertices()

	if info.NumSelected == 0 {
		t.Fatal("expected at least one selected sharp isovert along the crease")
	}

	// gcube_map integrity plus covered coverage: a mapped cube's
	// target must be SELECTED, and COVERED_A/COVERED_CORNER cubes must be
	// covered by a SELECTED cube in their 26-neighborhood.
	p.Range(func(slot Slot, rec *GridCube) {
		if rec.MapsToCube != slot {
			target := p.Store.At(rec.MapsToCube)
			if target.Flag != Selected {
				t.Errorf("cube %d maps to a non-selected record (flag %v)", rec.CubeIndex, target.Flag)
			}
		}
		if rec.Flag == CoveredA || rec.Flag == CoveredCorner {
			owner := p.Store.At(rec.CoveredBy)
			if owner.Flag != Selected {
				t.Errorf("covered cube %d has non-selected coverer (flag %v)", rec.CubeIndex, owner.Flag)
			}
			if p.Geo.LInfDistCubes(rec.CubeIndex, owner.CubeIndex) > 1 {
				t.Errorf("covered cube %d's coverer %d is outside its 26-neighborhood", rec.CubeIndex, owner.CubeIndex)
			}
		}
	})
}

// TestPipelineCorner exercises a field with a sharp
// corner (three planes meeting at a point), which should classify the
// cube(s) nearest the corner with NumEigenvalues==3.
func TestPipelineCorner(t *testing.T) {
	grid := &fakeGrid{n: 5, f: func(x, y, z float64) float64 {
		return math.Max(math.Max(x, y), z) - 2.5
	}}
	p, err := NewPipeline(grid, grid, nil, 0, defaultMergeParams())
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	store := p.ComputeDualIsovert()

	foundCorner := false
	store.Range(func(_ Slot, rec *GridCube) {
		if rec.NumEigenvalues == 3 {
			foundCorner = true
		}
	})
	if !foundCorner {
		t.Fatal("expected at least one corner-classified (NumEigenvalues==3) cube near the apex")
	}

	p.SelectSharpIsovert()
	p.MergeSharpIsoVertices()
}

func TestNewPipelineRejectsTooSmallGrid(t *testing.T) {
	grid := &fakeGrid{n: 1, f: func(x, y, z float64) float64 { return x }}
	_, err := NewPipeline(grid, grid, nil, 0, defaultMergeParams())
	if err == nil {
		t.Fatal("expected BadInput error for a grid with fewer than 2 vertices per axis")
	}
}

// TestPipelineWithExtendedMapAndDiskCheck runs the full option surface:
// extended mapping plus the disk-repair loop, then asserts the gcube_map
// integrity invariant: every record maps to itself or to a
// SELECTED cube, never to a SMOOTH or NON_DISK one.
func TestPipelineWithExtendedMapAndDiskCheck(t *testing.T) {
	grid := &fakeGrid{n: 5, f: func(x, y, z float64) float64 {
		return math.Max(y-2.5, 1.5-z)
	}}
	params := defaultMergeParams()
	params.Mapper.FlagMapExtended = true
	params.FlagCheckDisk = true

	p, err := NewPipeline(grid, grid, nil, 0, params)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	p.ComputeDualIsovert()
	p.SelectSharpIsovert()
	p.MergeSharpIsoVertices()

	p.Range(func(slot Slot, rec *GridCube) {
		if rec.MapsToCube == slot {
			return
		}
		target := p.Store.At(rec.MapsToCube)
		if target.Flag != Selected {
			t.Errorf("cube %d maps to slot %d with flag %v; targets must stay SELECTED at exit",
				rec.CubeIndex, rec.MapsToCube, target.Flag)
		}
	})
}

func TestMergeSharpIsoVerticesIsIdempotent(t *testing.T) {
	grid := &fakeGrid{n: 5, f: func(x, y, z float64) float64 {
		return math.Max(y-2.5, 1.5-z)
	}}
	p, err := NewPipeline(grid, grid, nil, 0, defaultMergeParams())
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	p.ComputeDualIsovert()
	p.SelectSharpIsovert()
	first := p.MergeSharpIsoVertices()
	second := p.MergeSharpIsoVertices()
	if first.NumSelected != second.NumSelected {
		t.Fatalf("re-running merge changed selection count: %d vs %d", first.NumSelected, second.NumSelected)
	}
}
