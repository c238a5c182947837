package sharpiso

import "testing"

func TestIsTopologicalDiskSingleTriangle(t *testing.T) {
	polys := []Polygon{{0, 1, 2}}
	if !IsTopologicalDisk(polys) {
		t.Fatal("a single triangle is a topological disk")
	}
}

func TestIsTopologicalDiskQuadStrip(t *testing.T) {
	// Two quads sharing edge (1,2)-(4,5): a rectangle split down the
	// middle is still a disk.
	polys := []Polygon{
		{0, 1, 4, 3},
		{1, 2, 5, 4},
	}
	if !IsTopologicalDisk(polys) {
		t.Fatal("two quads sharing one edge should form a disk")
	}
}

func TestIsTopologicalDiskClosedSurfaceIsNotDisk(t *testing.T) {
	// A tetrahedron boundary: every edge shared by exactly two faces, so
	// the boundary-edge set is empty. A closed surface is not a disk.
	polys := []Polygon{
		{0, 1, 2},
		{0, 2, 3},
		{0, 3, 1},
		{1, 3, 2},
	}
	if IsTopologicalDisk(polys) {
		t.Fatal("a closed tetrahedron boundary has no boundary cycle and is not a disk")
	}
}

func TestIsTopologicalDiskNonManifoldEdgeRejected(t *testing.T) {
	// Three triangles all sharing edge (0,1): that edge has multiplicity
	// 3, which is never allowed in a disk patch.
	polys := []Polygon{
		{0, 1, 2},
		{0, 1, 3},
		{0, 1, 4},
	}
	if IsTopologicalDisk(polys) {
		t.Fatal("an edge shared by three faces should fail the disk test")
	}
}

func TestIsTopologicalDiskTwoDisjointComponentsRejected(t *testing.T) {
	// A figure-eight pinch: two triangles sharing only a vertex, not an
	// edge, produces two separate boundary cycles rather than one.
	polys := []Polygon{
		{0, 1, 2},
		{2, 3, 4},
	}
	if IsTopologicalDisk(polys) {
		t.Fatal("two triangles meeting only at a vertex should not form a single disk")
	}
}

func TestIsTopologicalDiskEmptyIsNotDisk(t *testing.T) {
	if IsTopologicalDisk(nil) {
		t.Fatal("an empty patch is not a disk")
	}
}

func TestRenumberPolygonsDensifies(t *testing.T) {
	raw := []Polygon{{7, 3, 9}}
	renumbered, ids := RenumberPolygons(raw)
	if len(renumbered) != 1 || len(renumbered[0]) != 3 {
		t.Fatalf("unexpected renumbered shape: %v", renumbered)
	}
	for _, v := range renumbered[0] {
		if v < 0 || v >= 3 {
			t.Fatalf("renumbered ids should be dense in [0,3): got %v", renumbered[0])
		}
	}
	if len(ids) != 3 {
		t.Fatalf("expected 3 distinct original ids, got %d", len(ids))
	}
	// Winding order is preserved: position i in the original maps to
	// position i in the renumbered polygon.
	want := []int{ids[7], ids[3], ids[9]}
	for i, w := range want {
		if renumbered[0][i] != w {
			t.Fatalf("winding order not preserved at position %d: got %d, want %d", i, renumbered[0][i], w)
		}
	}
}

func TestDedupAdjacentCollapsesRepeats(t *testing.T) {
	got := dedupAdjacent([]int{1, 1, 2, 3, 3})
	want := Polygon{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("dedupAdjacent(%v) = %v, want %v", []int{1, 1, 2, 3, 3}, got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("dedupAdjacent(%v) = %v, want %v", []int{1, 1, 2, 3, 3}, got, want)
		}
	}
}

func TestDedupAdjacentWrapsAround(t *testing.T) {
	// First and last entries are the same corner (cyclically adjacent):
	// should collapse too.
	got := dedupAdjacent([]int{5, 1, 2, 5})
	want := Polygon{5, 1, 2}
	if len(got) != len(want) {
		t.Fatalf("dedupAdjacent cyclic collapse = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("dedupAdjacent cyclic collapse = %v, want %v", got, want)
		}
	}
}

func TestUndirectedKeyIsOrderIndependent(t *testing.T) {
	if undirectedKey(1, 2) != undirectedKey(2, 1) {
		t.Fatal("undirectedKey should not depend on argument order")
	}
}

func TestEdgeKeyIsOrderIndependent(t *testing.T) {
	if edgeKey(VertexIndex(3), VertexIndex(7)) != edgeKey(VertexIndex(7), VertexIndex(3)) {
		t.Fatal("edgeKey should not depend on argument order")
	}
}
