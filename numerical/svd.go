// Package numerical implements the small dense linear-algebra kernels used
// to place sharp isosurface vertices: a thin SVD over tall-skinny systems
// (at most a few rows per grid axis) and the least-squares solve built on
// top of it.
package numerical

import "math"

// MaxSVDRows is a nominal row count for the kernel. ThinSVD3 does not
// check it and accepts any number of rows; the placer passes one row per
// sampled grid vertex (8 for a cube's own corners, more when its facet
// neighbors' corners are included).
const MaxSVDRows = 12

// SVD3 is the singular value decomposition of an n-by-3 matrix A, computed
// as A = U * diag(Values) * V^T. U is not retained: callers only need the
// singular values (to classify the cube) and V (to recover the suppressed
// or surviving subspace directions).
type SVD3 struct {
	// Values holds the three singular values in decreasing order.
	Values [3]float64
	// V holds the right-singular vectors as columns: V[i] is the i-th
	// row of V^T, i.e. Values[i] corresponds to the direction V[i].
	V [3][3]float64
}

// ThinSVD3 computes the SVD of the n-by-3 matrix whose rows are given by
// rows. It works by forming the 3x3 Gram matrix A^T*A and diagonalizing it
// with the cyclic Jacobi eigenvalue algorithm, which is exact and stable for
// matrices this small.
func ThinSVD3(rows [][3]float64) SVD3 {
	var ata [3][3]float64
	for _, r := range rows {
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				ata[i][j] += r[i] * r[j]
			}
		}
	}
	values, vectors := jacobiEigenSymmetric3(ata)

	// Eigenvalues of A^T*A are squared singular values; sort descending.
	type pair struct {
		val float64
		vec [3]float64
	}
	pairs := [3]pair{
		{values[0], vectors[0]},
		{values[1], vectors[1]},
		{values[2], vectors[2]},
	}
	for i := 0; i < 3; i++ {
		for j := i + 1; j < 3; j++ {
			if pairs[j].val > pairs[i].val {
				pairs[i], pairs[j] = pairs[j], pairs[i]
			}
		}
	}

	var out SVD3
	for i := 0; i < 3; i++ {
		v := pairs[i].val
		if v < 0 {
			v = 0
		}
		out.Values[i] = math.Sqrt(v)
		out.V[i] = pairs[i].vec
	}
	return out
}

// jacobiEigenSymmetric3 diagonalizes a symmetric 3x3 matrix using the
// classic cyclic Jacobi rotation method, returning eigenvalues and the
// corresponding (unit, but unordered) eigenvectors.
func jacobiEigenSymmetric3(a [3][3]float64) (values [3]float64, vectors [3][3]float64) {
	var v [3][3]float64
	for i := 0; i < 3; i++ {
		v[i][i] = 1
	}

	const maxSweeps = 50
	for sweep := 0; sweep < maxSweeps; sweep++ {
		off := math.Abs(a[0][1]) + math.Abs(a[0][2]) + math.Abs(a[1][2])
		if off < 1e-14 {
			break
		}
		for p := 0; p < 2; p++ {
			for q := p + 1; q < 3; q++ {
				if math.Abs(a[p][q]) < 1e-18 {
					continue
				}
				theta := (a[q][q] - a[p][p]) / (2 * a[p][q])
				t := math.Copysign(1, theta) / (math.Abs(theta) + math.Sqrt(theta*theta+1))
				if theta == 0 {
					t = 1
				}
				c := 1 / math.Sqrt(t*t+1)
				s := t * c

				app, aqq, apq := a[p][p], a[q][q], a[p][q]
				a[p][p] = c*c*app - 2*s*c*apq + s*s*aqq
				a[q][q] = s*s*app + 2*s*c*apq + c*c*aqq
				a[p][q] = 0
				a[q][p] = 0
				for r := 0; r < 3; r++ {
					if r != p && r != q {
						arp, arq := a[r][p], a[r][q]
						a[r][p] = c*arp - s*arq
						a[p][r] = a[r][p]
						a[r][q] = s*arp + c*arq
						a[q][r] = a[r][q]
					}
				}
				for r := 0; r < 3; r++ {
					vrp, vrq := v[r][p], v[r][q]
					v[r][p] = c*vrp - s*vrq
					v[r][q] = s*vrp + c*vrq
				}
			}
		}
	}

	for i := 0; i < 3; i++ {
		values[i] = a[i][i]
		vectors[i] = [3]float64{v[0][i], v[1][i], v[2][i]}
	}
	return
}

// CountAbove returns the number of singular values strictly greater than
// tolerance, clamped to [0, 3]. This is the "num_large_eigenvalues"
// classification: 1 means the cube is smooth (a single plane), 2 a crease,
// 3 a corner.
func (s SVD3) CountAbove(tolerance float64) int {
	n := 0
	for _, v := range s.Values {
		if v > tolerance {
			n++
		}
	}
	return n
}
