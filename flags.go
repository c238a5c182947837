package sharpiso

// CubeFlag is the lifecycle tag of a GridCube record. It is
// a sum type, not a bitmask: a cube is in exactly one of these states at a
// time.
type CubeFlag int

const (
	// Available is the initial state of every active cube.
	Available CubeFlag = iota
	// Selected means this cube's isovert became a mesh vertex.
	Selected
	// CoveredA means a neighboring selected edge cube's 3x3x3
	// neighborhood claims this cube.
	CoveredA
	// CoveredB means an extended-mapping pass claimed this cube.
	CoveredB
	// CoveredCorner means a neighboring selected corner cube claims this
	// cube.
	CoveredCorner
	// CoveredPoint means this cube's candidate isovert fell inside an
	// already-covered cube.
	CoveredPoint
	// Unavailable means selecting this cube would have produced an
	// inadmissible triangle.
	Unavailable
	// Smooth means the cube's SVD classification was degenerate (fewer
	// than 2 significant singular values), or that disk repair released
	// the covered cube. It is not a selection candidate unless a bisector
	// re-solve returns it to AVAILABLE.
	Smooth
	// NonDisk means this cube was selected but its incident isopatch
	// failed the topological disk test and its selection was reverted.
	NonDisk
)

// String names a flag for diagnostics and test failure messages.
func (f CubeFlag) String() string {
	switch f {
	case Available:
		return "AVAILABLE"
	case Selected:
		return "SELECTED"
	case CoveredA:
		return "COVERED_A"
	case CoveredB:
		return "COVERED_B"
	case CoveredCorner:
		return "COVERED_CORNER"
	case CoveredPoint:
		return "COVERED_POINT"
	case Unavailable:
		return "UNAVAILABLE"
	case Smooth:
		return "SMOOTH"
	case NonDisk:
		return "NON_DISK"
	default:
		return "UNKNOWN"
	}
}

// IsCovered reports whether f is one of the COVERED_* variants.
func IsCovered(f CubeFlag) bool {
	switch f {
	case CoveredA, CoveredB, CoveredCorner, CoveredPoint:
		return true
	default:
		return false
	}
}

// IsCoveredOrSelected reports whether f is SELECTED or any COVERED_*
// variant, i.e. the cube's isovert is accounted for in the final mesh,
// either directly or via a merge.
func IsCoveredOrSelected(f CubeFlag) bool {
	return f == Selected || IsCovered(f)
}

// IsTerminal reports whether f is one of the output-visible terminal
// states.
func IsTerminal(f CubeFlag) bool {
	switch f {
	case Selected, CoveredA, CoveredB, CoveredCorner, CoveredPoint, Smooth, NonDisk:
		return true
	default:
		return false
	}
}
