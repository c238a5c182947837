package sharpiso

import "testing"

func TestEdgeIncidentCubesInterior(t *testing.T) {
	geo := testGeometry()
	center := geo.IndexOf(IntCoord{2, 2, 2})

	// Edge 0 is the X-aligned edge at the cube's own min-corner (vertices
	// 0,1): its 4 incident cubes are center plus the 3 cubes obtained by
	// stepping -1 along Y and/or Z.
	got := edgeIncidentCubes(geo, center, 0)
	if len(got) != 4 {
		t.Fatalf("interior X-edge 0 should have 4 incident cubes, got %d: %v", len(got), got)
	}
	if !containsCube(got, center) {
		t.Fatalf("incident cubes of edge 0 should include the cube itself, got %v", got)
	}
	want := []IntCoord{{2, 2, 2}, {2, 1, 2}, {2, 2, 1}, {2, 1, 1}}
	for _, w := range want {
		if !containsCube(got, geo.IndexOf(w)) {
			t.Errorf("expected incident cube %+v in %v", w, coordsOf(geo, got))
		}
	}
}

func TestEdgeIncidentCubesDistinguishesParallelEdges(t *testing.T) {
	geo := testGeometry()
	center := geo.IndexOf(IntCoord{2, 2, 2})

	// Edges 0-3 are the 4 parallel X-aligned edges of the cube. Each
	// should report a *different* set of 4 incident cubes; a prior bug
	// collapsed them all to edge 0's set.
	seen := make(map[IntCoord]bool)
	for e := 0; e < 4; e++ {
		incident := edgeIncidentCubes(geo, center, e)
		if len(incident) != 4 {
			t.Fatalf("edge %d: expected 4 incident cubes, got %d", e, len(incident))
		}
		key := geo.CoordOf(incident[0])
		if seen[key] {
			t.Errorf("edge %d produced the same incident-cube set as a previous edge", e)
		}
		seen[key] = true
	}
}

func TestEdgeIncidentCubesAtGridBoundary(t *testing.T) {
	geo := testGeometry()
	corner := geo.IndexOf(IntCoord{0, 0, 0})
	// Edge 3 (X-aligned, vertices 6,7: the far Y/Z corner) at the grid's
	// own corner cube should still report the cube itself and clip
	// out-of-bounds neighbors.
	got := edgeIncidentCubes(geo, corner, 3)
	if len(got) == 0 {
		t.Fatal("expected at least the cube itself as an incident cube")
	}
	for _, c := range got {
		if !geo.InBounds(geo.CoordOf(c)) {
			t.Errorf("edgeIncidentCubes returned an out-of-bounds cube %+v", geo.CoordOf(c))
		}
	}
}

func containsCube(s []CubeIndex, v CubeIndex) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

func coordsOf(geo Geometry, cubes []CubeIndex) []IntCoord {
	out := make([]IntCoord, len(cubes))
	for i, c := range cubes {
		out[i] = geo.CoordOf(c)
	}
	return out
}

func TestStrictlyBetween(t *testing.T) {
	fe := &Feasibility{}
	if !fe.strictlyBetween(IntCoord{0, 0, 0}, IntCoord{4, 0, 0}, IntCoord{2, 0, 0}) {
		t.Error("midpoint on the open segment should be strictly between")
	}
	if fe.strictlyBetween(IntCoord{0, 0, 0}, IntCoord{4, 0, 0}, IntCoord{4, 0, 0}) {
		t.Error("an endpoint should not be strictly between")
	}
	if fe.strictlyBetween(IntCoord{0, 0, 0}, IntCoord{4, 0, 0}, IntCoord{2, 1, 0}) {
		t.Error("a point off the shared-axis line should not be strictly between")
	}
	if fe.strictlyBetween(IntCoord{0, 0, 0}, IntCoord{0, 0, 0}, IntCoord{0, 0, 0}) {
		t.Error("a and b coincident means no open segment, so nothing is strictly between")
	}
}

func TestAxisOrderConsistent(t *testing.T) {
	from := IntCoord{0, 0, 0}
	a := IntCoord{1, 0, 0} // a is east of from
	to := IntCoord{0, 0, 0}

	// to2 east of to (same direction as a from from): consistent.
	to2 := IntCoord{1, 0, 0}
	if !axisOrderConsistent(from, a, to, to2, false) {
		t.Error("to2 in the same direction as a should be order-consistent")
	}

	// to2 west of to (opposite direction): inconsistent unless reversal
	// is permitted.
	to2Reversed := IntCoord{-1, 0, 0}
	if axisOrderConsistent(from, a, to, to2Reversed, false) {
		t.Error("to2 reversed relative to a's direction should fail without permitReversal")
	}
	if !axisOrderConsistent(from, a, to, to2Reversed, true) {
		t.Error("permitReversal should allow the reversed case")
	}
}

func TestTriangleAdmissibleRejectsCoincidentPoints(t *testing.T) {
	p := Coord3{1, 1, 1}
	if triangleAdmissible(p, p, Coord3{2, 2, 2}, 0, 1e-9) {
		t.Error("a triangle with two coincident vertices should not be admissible")
	}
}

func TestTriangleAdmissibleThreshold(t *testing.T) {
	// A right angle at p1 has cosine 0.
	p0 := Coord3{1, 0, 0}
	p1 := Coord3{0, 0, 0}
	p2 := Coord3{0, 1, 0}
	if !triangleAdmissible(p0, p1, p2, 0.5, 1e-9) {
		t.Error("cos(90deg)=0 should be admissible under a 0.5 threshold")
	}
	if triangleAdmissible(p0, p1, p2, -0.5, 1e-9) {
		t.Error("cos(90deg)=0 should not be admissible under a -0.5 threshold")
	}
}
