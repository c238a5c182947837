package sharpiso

import "testing"

func TestCubeFlagString(t *testing.T) {
	cases := map[CubeFlag]string{
		Available:     "AVAILABLE",
		Selected:      "SELECTED",
		CoveredA:      "COVERED_A",
		CoveredB:      "COVERED_B",
		CoveredCorner: "COVERED_CORNER",
		CoveredPoint:  "COVERED_POINT",
		Unavailable:   "UNAVAILABLE",
		Smooth:        "SMOOTH",
		NonDisk:       "NON_DISK",
		CubeFlag(99):  "UNKNOWN",
	}
	for flag, want := range cases {
		if got := flag.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", flag, got, want)
		}
	}
}

func TestIsCovered(t *testing.T) {
	for _, f := range []CubeFlag{CoveredA, CoveredB, CoveredCorner, CoveredPoint} {
		if !IsCovered(f) {
			t.Errorf("IsCovered(%v) = false, want true", f)
		}
	}
	for _, f := range []CubeFlag{Available, Selected, Unavailable, Smooth, NonDisk} {
		if IsCovered(f) {
			t.Errorf("IsCovered(%v) = true, want false", f)
		}
	}
}

func TestIsCoveredOrSelected(t *testing.T) {
	if !IsCoveredOrSelected(Selected) {
		t.Error("Selected should count as covered-or-selected")
	}
	if !IsCoveredOrSelected(CoveredA) {
		t.Error("CoveredA should count as covered-or-selected")
	}
	if IsCoveredOrSelected(Available) {
		t.Error("Available should not count as covered-or-selected")
	}
}

func TestIsTerminal(t *testing.T) {
	terminal := []CubeFlag{Selected, CoveredA, CoveredB, CoveredCorner, CoveredPoint, Smooth, NonDisk}
	for _, f := range terminal {
		if !IsTerminal(f) {
			t.Errorf("IsTerminal(%v) = false, want true", f)
		}
	}
	nonTerminal := []CubeFlag{Available, Unavailable}
	for _, f := range nonTerminal {
		if IsTerminal(f) {
			t.Errorf("IsTerminal(%v) = true, want false", f)
		}
	}
}
