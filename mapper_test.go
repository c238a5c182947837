package sharpiso

import "testing"

func TestWithTempCommitRestoresOnSuccess(t *testing.T) {
	geo := testGeometry()
	store := NewRecordStore()
	from := store.Add(CubeIndex(0), geo)
	to := store.Add(CubeIndex(1), geo)
	m := &Mapper{Store: store}

	before := store.At(from).MapsToCube
	var sawDuringCheck Slot
	result := m.withTempCommit(from, to, func() bool {
		sawDuringCheck = store.At(from).MapsToCube
		return true
	})

	if !result {
		t.Fatal("check returned true; withTempCommit should propagate it")
	}
	if sawDuringCheck != to {
		t.Fatalf("check should observe the temporary commit: saw %d, want %d", sawDuringCheck, to)
	}
	if store.At(from).MapsToCube != before {
		t.Fatalf("withTempCommit should restore MapsToCube after check runs: got %d, want %d", store.At(from).MapsToCube, before)
	}
}

func TestWithTempCommitRestoresOnFailure(t *testing.T) {
	geo := testGeometry()
	store := NewRecordStore()
	from := store.Add(CubeIndex(0), geo)
	to := store.Add(CubeIndex(1), geo)
	m := &Mapper{Store: store}

	before := store.At(from).MapsToCube
	result := m.withTempCommit(from, to, func() bool { return false })
	if result {
		t.Fatal("check returned false; withTempCommit should propagate it")
	}
	if store.At(from).MapsToCube != before {
		t.Fatal("withTempCommit should restore MapsToCube even when check fails")
	}
}

func TestSelectedOfKindFiltersByEigenvalueCount(t *testing.T) {
	geo := testGeometry()
	store := NewRecordStore()
	corner := store.Add(CubeIndex(0), geo)
	edge := store.Add(CubeIndex(1), geo)
	smooth := store.Add(CubeIndex(2), geo)

	store.At(corner).Flag = Selected
	store.At(corner).NumEigenvalues = 3
	store.At(edge).Flag = Selected
	store.At(edge).NumEigenvalues = 2
	store.At(smooth).Flag = Smooth
	store.At(smooth).NumEigenvalues = 1

	m := &Mapper{Store: store}
	corners := m.selectedOfKind(3)
	if len(corners) != 1 || corners[0] != corner {
		t.Fatalf("selectedOfKind(3) = %v, want [%d]", corners, corner)
	}
	edges := m.selectedOfKind(2)
	if len(edges) != 1 || edges[0] != edge {
		t.Fatalf("selectedOfKind(2) = %v, want [%d]", edges, edge)
	}
}

type fakeIsoTable struct {
	multi map[int]bool
}

func (f *fakeIsoTable) NumIsoVertices(tableIndex int) int {
	if f.multi[tableIndex] {
		return 2
	}
	return 1
}

func (f *fakeIsoTable) IsFacetAmbiguous(tableIndex, facet int) bool { return false }

func TestMapIsovPairRejectsTwoMultiIsovertexCubes(t *testing.T) {
	geo := testGeometry()
	store := NewRecordStore()
	a := store.Add(geo.IndexOf(IntCoord{1, 1, 1}), geo)
	b := store.Add(geo.IndexOf(IntCoord{2, 1, 1}), geo)
	to := store.Add(geo.IndexOf(IntCoord{1, 2, 1}), geo)
	store.At(to).Flag = Selected
	store.At(to).NumEigenvalues = 2

	store.At(a).TableIndex = 1
	store.At(b).TableIndex = 1
	table := &fakeIsoTable{multi: map[int]bool{1: true}}

	m := &Mapper{Geo: geo, Store: store, IsoTable: table}
	if m.mapIsovPair(a, b, to, true) {
		t.Fatal("two cubes that both have multi-isovertex lookup indices must not pair-map together")
	}
	if store.At(a).MapsToCube != a || store.At(b).MapsToCube != b {
		t.Fatal("a rejected pair map must leave both cubes unmapped")
	}
}

func TestMarkExtendedClaimAdvancesAvailableToCoveredB(t *testing.T) {
	geo := testGeometry()
	store := NewRecordStore()
	claimed := store.Add(CubeIndex(0), geo)
	to := store.Add(CubeIndex(1), geo)

	m := &Mapper{Store: store}
	m.markExtendedClaim(store.At(claimed), to)
	if store.At(claimed).Flag != CoveredB {
		t.Fatalf("an AVAILABLE cube claimed by extended mapping should become COVERED_B, got %v", store.At(claimed).Flag)
	}
	if store.At(claimed).CoveredBy != to {
		t.Fatal("extended claim should record the claiming cube in CoveredBy")
	}

	selected := store.Add(CubeIndex(2), geo)
	store.At(selected).Flag = CoveredCorner
	m.markExtendedClaim(store.At(selected), to)
	if store.At(selected).Flag != CoveredCorner {
		t.Fatal("markExtendedClaim must not downgrade a cube already past AVAILABLE")
	}
}

func TestMapIsovSingleRejectsSelfMap(t *testing.T) {
	geo := testGeometry()
	store := NewRecordStore()
	slot := store.Add(CubeIndex(0), geo)
	feas := &Feasibility{Geo: geo, Store: store}
	m := &Mapper{Geo: geo, Store: store, Feas: feas}

	if m.mapIsovSingle(slot, slot, true) {
		t.Fatal("a cube should never be permitted to map to itself")
	}
}
