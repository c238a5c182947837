package sharpiso

import "testing"

func testGeometry() Geometry {
	return Geometry{AxisSize: [3]int{5, 5, 5}, Spacing: [3]float64{1, 1, 1}}
}

func TestCoordIndexRoundTrip(t *testing.T) {
	geo := testGeometry()
	for i := 0; i < geo.NumCubes(); i++ {
		c := CubeIndex(i)
		coord := geo.CoordOf(c)
		if !geo.InBounds(coord) {
			t.Fatalf("cube %d produced out-of-bounds coord %+v", i, coord)
		}
		if geo.IndexOf(coord) != c {
			t.Fatalf("round trip failed for cube %d: got coord %+v back to %d", i, coord, geo.IndexOf(coord))
		}
	}
}

func TestNumCubes(t *testing.T) {
	geo := testGeometry()
	if got, want := geo.NumCubes(), 4*4*4; got != want {
		t.Fatalf("NumCubes() = %d, want %d", got, want)
	}
}

func TestFacetNeighborsInterior(t *testing.T) {
	geo := testGeometry()
	center := geo.IndexOf(IntCoord{2, 2, 2})
	neighbors := geo.FacetNeighbors(center)
	if len(neighbors) != 6 {
		t.Fatalf("interior cube should have 6 facet neighbors, got %d", len(neighbors))
	}
}

func TestFacetNeighborsCorner(t *testing.T) {
	geo := testGeometry()
	corner := geo.IndexOf(IntCoord{0, 0, 0})
	neighbors := geo.FacetNeighbors(corner)
	if len(neighbors) != 3 {
		t.Fatalf("corner cube should have 3 facet neighbors, got %d", len(neighbors))
	}
}

func TestBoundaryBits(t *testing.T) {
	geo := testGeometry()
	corner := geo.IndexOf(IntCoord{0, 0, 0})
	bits := geo.BoundaryBits(corner)
	// Bit 0 (min-x), bit 2 (min-y), bit 4 (min-z) should all be set.
	want := uint8(1<<0 | 1<<2 | 1<<4)
	if bits != want {
		t.Fatalf("BoundaryBits(0,0,0) = %b, want %b", bits, want)
	}

	interior := geo.IndexOf(IntCoord{2, 2, 2})
	if geo.BoundaryBits(interior) != 0 {
		t.Fatalf("interior cube should have no boundary bits set")
	}
	if !geo.IsInteriorFastPath(interior) {
		t.Fatalf("interior cube should use the fast path")
	}
	if geo.IsInteriorFastPath(corner) {
		t.Fatalf("boundary cube should not use the fast path")
	}
}

func TestContainsPointHalfOpen(t *testing.T) {
	geo := testGeometry()
	c := geo.IndexOf(IntCoord{1, 1, 1})
	if !geo.ContainsPoint(c, Coord3{1, 1, 1}) {
		t.Fatalf("min corner should be contained")
	}
	if geo.ContainsPoint(c, Coord3{2, 1, 1}) {
		t.Fatalf("max corner should not be contained on an interior cube (half-open)")
	}

	// On the grid's maximum boundary face, the max side is closed.
	maxCube := geo.IndexOf(IntCoord{3, 3, 3})
	if !geo.ContainsPoint(maxCube, Coord3{4, 4, 4}) {
		t.Fatalf("grid-boundary max corner should be contained (closed on max boundary)")
	}
}

func TestLInfDistCubesScaled(t *testing.T) {
	geo := Geometry{AxisSize: [3]int{5, 5, 5}, Spacing: [3]float64{2, 1, 1}}
	a := geo.IndexOf(IntCoord{0, 0, 0})
	b := geo.IndexOf(IntCoord{2, 0, 0})
	if got, want := geo.LInfDistCubes(a, b), 4.0; got != want {
		t.Fatalf("LInfDistCubes scaled by spacing = %v, want %v", got, want)
	}
}

func TestCubeOfPointClampsToGrid(t *testing.T) {
	geo := testGeometry()
	c := geo.CubeOfPoint(Coord3{-5, -5, -5})
	if c != geo.IndexOf(IntCoord{0, 0, 0}) {
		t.Fatalf("point far outside the grid should clamp to the nearest cube")
	}
	c = geo.CubeOfPoint(Coord3{100, 100, 100})
	if c != geo.IndexOf(IntCoord{3, 3, 3}) {
		t.Fatalf("point far outside the grid should clamp to the last cube")
	}
}
