package sharpiso

import "sort"

// Polygon is a patch face as a list of already patch-local vertex ids
// (0..n-1), in winding order.
type Polygon []int

// DiskChecker extracts and validates the topological-disk property of the
// isopatch incident on a selected cube.
type DiskChecker struct {
	Geo      Geometry
	Store    *RecordStore
	Scalar   ScalarGrid
	Isovalue float64
}

// effectiveTarget returns the slot a cube's isovert ultimately contributes
// to the mesh: itself if SELECTED, otherwise its MapsToCube.
func (d *DiskChecker) effectiveTarget(slot Slot) Slot {
	rec := d.Store.At(slot)
	if rec.Flag == Selected {
		return slot
	}
	return rec.MapsToCube
}

// ExtractPatch builds the raw (global-slot-keyed) polygon list for the
// isopatch incident on target: one polygon per bipolar grid edge whose
// incident cubes are not *all* mapped to target (a fully-interior edge
// contributes nothing to the boundary patch), with each corner labeled by
// the incident cube's effective target slot.
func (d *DiskChecker) ExtractPatch(target Slot) []Polygon {
	group := d.mergedGroup(target)

	seenEdges := make(map[[2]int]bool)
	var polys []Polygon

	for slot := range group {
		rec := d.Store.At(slot)
		for e := 0; e < 12; e++ {
			v1, v2 := d.Geo.CubeEdgeVertices(rec.CubeIndex, e)
			if !isBipolarEdge(d.Scalar, v1, v2, d.Isovalue) {
				continue
			}
			ekey := edgeKey(v1, v2)
			if seenEdges[ekey] {
				continue
			}
			seenEdges[ekey] = true

			incident := edgeIncidentCubes(d.Geo, rec.CubeIndex, e)
			var corners []int
			allTarget := true
			for _, c := range incident {
				s, ok := d.Store.SlotOf(c)
				if !ok {
					continue
				}
				t := d.effectiveTarget(s)
				if t != target {
					allTarget = false
				}
				corners = append(corners, int(t))
			}
			if allTarget || len(corners) < 3 {
				continue
			}
			poly := dedupAdjacent(corners)
			if len(poly) < 3 {
				// A dual polygon with fewer than 3 distinct corners has
				// degenerated away entirely; it contributes no face.
				continue
			}
			polys = append(polys, poly)
		}
	}

	return polys
}

func edgeKey(a, b VertexIndex) [2]int {
	if a > b {
		a, b = b, a
	}
	return [2]int{int(a), int(b)}
}

// dedupAdjacent collapses cyclically-adjacent repeated ids (two corners of
// a dual quad that mapped to the same cube degenerate that edge of the
// quad away), leaving a simple polygon.
func dedupAdjacent(ids []int) Polygon {
	if len(ids) == 0 {
		return nil
	}
	var out []int
	for _, id := range ids {
		if len(out) > 0 && out[len(out)-1] == id {
			continue
		}
		out = append(out, id)
	}
	if len(out) > 1 && out[0] == out[len(out)-1] {
		out = out[:len(out)-1]
	}
	return Polygon(out)
}

// mergedGroup returns every slot whose effective target is target,
// including target itself.
func (d *DiskChecker) mergedGroup(target Slot) map[Slot]bool {
	group := map[Slot]bool{target: true}
	d.Store.Range(func(slot Slot, rec *GridCube) {
		if d.effectiveTarget(slot) == target {
			group[slot] = true
		}
	})
	return group
}

// CheckDisk reports whether the isopatch incident on target is a
// topological disk.
func (d *DiskChecker) CheckDisk(target Slot) bool {
	raw := d.ExtractPatch(target)
	renumbered, _ := RenumberPolygons(raw)
	return IsTopologicalDisk(renumbered)
}

// RenumberPolygons relabels every distinct vertex id appearing across polys
// to a dense 0..n-1 range, preserving polygon winding.
func RenumberPolygons(polys []Polygon) ([]Polygon, map[int]int) {
	ids := make(map[int]int)
	var order []int
	for _, p := range polys {
		for _, v := range p {
			if _, ok := ids[v]; !ok {
				ids[v] = 0
				order = append(order, v)
			}
		}
	}
	sort.Ints(order)
	for i, v := range order {
		ids[v] = i
	}
	out := make([]Polygon, len(polys))
	for i, p := range polys {
		np := make(Polygon, len(p))
		for j, v := range p {
			np[j] = ids[v]
		}
		out[i] = np
	}
	return out, ids
}

// IsTopologicalDisk applies a two-part test to the polygon set:
//
//  1. No undirected edge may appear in more than two polygons.
//  2. The set of edges appearing in exactly one polygon must form exactly
//     one simple cycle of length >= 3, discoverable by DFS starting from
//     any degree-2 boundary vertex.
func IsTopologicalDisk(polys []Polygon) bool {
	if len(polys) == 0 {
		return false
	}

	type edgeCount struct {
		count int
	}
	edges := make(map[[2]int]*edgeCount)
	addEdge := func(a, b int) {
		k := undirectedKey(a, b)
		ec, ok := edges[k]
		if !ok {
			ec = &edgeCount{}
			edges[k] = ec
		}
		ec.count++
	}

	for _, p := range polys {
		n := len(p)
		if n < 3 {
			return false
		}
		for i := 0; i < n; i++ {
			addEdge(p[i], p[(i+1)%n])
		}
	}

	for _, ec := range edges {
		if ec.count > 2 {
			return false
		}
	}

	boundaryAdj := make(map[int][]int)
	for k, ec := range edges {
		if ec.count != 1 {
			continue
		}
		boundaryAdj[k[0]] = append(boundaryAdj[k[0]], k[1])
		boundaryAdj[k[1]] = append(boundaryAdj[k[1]], k[0])
	}
	if len(boundaryAdj) == 0 {
		return false
	}
	for _, adj := range boundaryAdj {
		if len(adj) != 2 {
			return false
		}
	}

	// DFS the boundary graph from any vertex; it must visit every
	// boundary vertex exactly once and return to the start, forming one
	// simple cycle of length >= 3.
	var start int
	for v := range boundaryAdj {
		start = v
		break
	}
	visited := map[int]bool{start: true}
	prev := -1
	cur := start
	length := 1
	for {
		next := -1
		for _, n := range boundaryAdj[cur] {
			if n != prev {
				next = n
				break
			}
		}
		if next == -1 {
			return false
		}
		if next == start {
			break
		}
		if visited[next] {
			return false
		}
		visited[next] = true
		prev, cur = cur, next
		length++
		if length > len(boundaryAdj) {
			return false
		}
	}

	return length >= 3 && len(visited) == len(boundaryAdj)
}

func undirectedKey(a, b int) [2]int {
	if a > b {
		a, b = b, a
	}
	return [2]int{a, b}
}

// RepairNonDisk reverts target's selection when its isopatch fails the
// disk test: target becomes NON_DISK, every cube that mapped to it resets
// to identity, and any such cube flagged COVERED_A/COVERED_B/COVERED_CORNER/
// COVERED_POINT reverts to SMOOTH. It returns the slots that were reset, for
// the caller's outer repair loop to re-run mapping on if desired.
func RepairNonDisk(store *RecordStore, covered *CoveredGrid, bins *BinGrid, target Slot) []Slot {
	targetRec := store.At(target)
	bins.Remove(targetRec.CubeIndex, target)
	targetRec.Flag = NonDisk

	var reset []Slot
	store.Range(func(slot Slot, rec *GridCube) {
		if slot == target {
			return
		}
		if rec.MapsToCube != target {
			return
		}
		rec.MapsToCube = slot
		switch rec.Flag {
		case CoveredA, CoveredB, CoveredCorner, CoveredPoint:
			rec.Flag = Smooth
		}
		reset = append(reset, slot)
	})
	covered.Clear(targetRec.CubeIndex)
	return reset
}
