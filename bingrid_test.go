package sharpiso

import "testing"

func TestBinGridInsertNearby(t *testing.T) {
	geo := testGeometry()
	// Width 1: cube (2,2,2) and cube (0,0,0) sit two bins apart, outside
	// NearbyCube's +/-1 bin window.
	bins := NewBinGrid(geo, 1)

	cube := geo.IndexOf(IntCoord{2, 2, 2})
	bins.Insert(cube, Slot(7))

	nearby := bins.NearbyCube(cube)
	if !containsSlot(nearby, Slot(7)) {
		t.Fatalf("NearbyCube should find a slot inserted at the same cube, got %v", nearby)
	}

	far := geo.IndexOf(IntCoord{0, 0, 0})
	nearbyFar := bins.NearbyCube(far)
	if containsSlot(nearbyFar, Slot(7)) {
		t.Fatalf("a cube several bins away should not see the inserted slot, got %v", nearbyFar)
	}
}

func TestBinGridRemove(t *testing.T) {
	geo := testGeometry()
	bins := NewBinGrid(geo, 2)
	cube := geo.IndexOf(IntCoord{1, 1, 1})

	bins.Insert(cube, Slot(3))
	bins.Remove(cube, Slot(3))

	if containsSlot(bins.NearbyCube(cube), Slot(3)) {
		t.Fatal("Remove should delete the slot from its bucket")
	}
}

func TestFloorDivNegative(t *testing.T) {
	cases := []struct{ a, b, want int }{
		{5, 2, 2},
		{-1, 2, -1},
		{-5, 2, -3},
		{0, 2, 0},
	}
	for _, c := range cases {
		if got := floorDiv(c.a, c.b); got != c.want {
			t.Errorf("floorDiv(%d, %d) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func containsSlot(s []Slot, v Slot) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
