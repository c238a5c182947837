package numerical

import "math"

// Status tags the provenance of a GradientLeastSquares solution.
type Status int

const (
	// LocSVD means the point came directly from the SVD least-squares
	// solve.
	LocSVD Status = iota
	// Centroid means the system was too degenerate (fewer than one
	// significant singular value) and the solver fell back to the
	// centroid of the input points.
	Centroid
	// Far means the SVD point lay outside an admissibility ball and was
	// clamped to its boundary.
	Far
	// OnPlane means the point was additionally constrained to lie on a
	// bisector plane (used when placing points around a shared vertex or
	// edge of already-covered cubes).
	OnPlane
)

func (s Status) String() string {
	switch s {
	case LocSVD:
		return "LOC_SVD"
	case Centroid:
		return "CENTROID"
	case Far:
		return "FAR"
	case OnPlane:
		return "ON_PLANE"
	default:
		return "UNKNOWN"
	}
}

// Solution is the result of a gradient least-squares solve.
type Solution struct {
	// Point is the computed sharp point in world coordinates.
	Point [3]float64
	// NumLargeEigenvalues is the count of singular values of the
	// constraint matrix exceeding the configured tolerance, in [0, 3].
	NumLargeEigenvalues int
	// Direction is the right-singular vector associated with the
	// suppressed subspace (two large singular values: the edge
	// direction) or the dominant subspace (one large singular value: the
	// surface normal). It is the zero vector when not meaningful (three
	// large singular values, or a centroid fallback).
	Direction [3]float64
	// Status records how Point was derived.
	Status Status
	// SVD is the full decomposition, retained for callers that need to
	// re-derive a constrained (plane/ball) solution.
	SVD SVD3
}

// GradientLeastSquares solves for the point x minimizing
//
//	sum_i ( g_i . (x - p_i) - (isovalue - s_i) )^2
//
// over the supplied (point, gradient, scalar) triples, using a thin SVD of
// the stacked gradients. tolerance is the singular-value threshold used to
// classify the system.
func GradientLeastSquares(points, gradients [][3]float64, scalars []float64, isovalue, tolerance float64) Solution {
	n := len(points)
	if n == 0 || len(gradients) != n || len(scalars) != n {
		panic("numerical: mismatched input lengths")
	}

	var mean [3]float64
	for _, p := range points {
		mean[0] += p[0]
		mean[1] += p[1]
		mean[2] += p[2]
	}
	inv := 1 / float64(n)
	mean[0] *= inv
	mean[1] *= inv
	mean[2] *= inv

	rows := make([][3]float64, n)
	rhs := make([]float64, n)
	for i := range points {
		rows[i] = gradients[i]
		// b'_i = (g_i . p_i + isovalue - s_i) - g_i . mean
		b := dot(gradients[i], points[i]) + isovalue - scalars[i]
		rhs[i] = b - dot(gradients[i], mean)
	}

	svd := ThinSVD3(rows)
	count := svd.CountAbove(tolerance)

	sol := Solution{NumLargeEigenvalues: count, SVD: svd}

	if count == 0 {
		sol.Status = Centroid
		sol.Point = mean
		return sol
	}

	// A^T * b' in the original (uncentered-axis) basis.
	var atb [3]float64
	for i, r := range rows {
		atb[0] += r[0] * rhs[i]
		atb[1] += r[1] * rhs[i]
		atb[2] += r[2] * rhs[i]
	}

	// y = V * diag(1/s_i^2 for s_i above tolerance, else 0) * V^T * atb
	var y [3]float64
	for i := 0; i < 3; i++ {
		s := svd.Values[i]
		if s <= tolerance {
			continue
		}
		coeff := dot(svd.V[i], atb) / (s * s)
		y[0] += coeff * svd.V[i][0]
		y[1] += coeff * svd.V[i][1]
		y[2] += coeff * svd.V[i][2]
	}

	sol.Status = LocSVD
	sol.Point = [3]float64{mean[0] + y[0], mean[1] + y[1], mean[2] + y[2]}

	switch count {
	case 1:
		sol.Direction = svd.V[0]
	case 2:
		sol.Direction = svd.V[2]
	default:
		sol.Direction = [3]float64{}
	}
	return sol
}

// ClampToBall clamps sol.Point to lie within radius of center, reporting
// whether clamping occurred. If it does, the status becomes Far.
func (sol *Solution) ClampToBall(center [3]float64, radius float64) bool {
	d := sub(sol.Point, center)
	n := norm(d)
	if n <= radius || n == 0 {
		return false
	}
	scale := radius / n
	sol.Point = [3]float64{
		center[0] + d[0]*scale,
		center[1] + d[1]*scale,
		center[2] + d[2]*scale,
	}
	sol.Status = Far
	return true
}

// ProjectToPlane projects sol.Point onto the plane through planePoint with
// unit normal planeNormal, tagging the status ON_PLANE. Used when
// constraining a solve to the bisector plane between two covered cubes.
func (sol *Solution) ProjectToPlane(planePoint, planeNormal [3]float64) {
	d := dot(sub(sol.Point, planePoint), planeNormal)
	sol.Point = sub(sol.Point, scale(planeNormal, d))
	sol.Status = OnPlane
}

func dot(a, b [3]float64) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func sub(a, b [3]float64) [3]float64 {
	return [3]float64{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

func scale(a [3]float64, s float64) [3]float64 {
	return [3]float64{a[0] * s, a[1] * s, a[2] * s}
}

func norm(a [3]float64) float64 {
	return math.Sqrt(dot(a, a))
}
