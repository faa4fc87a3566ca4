package cmatrix

import (
	"fmt"
	"math/cmplx"
)

// Eigen2 returns the two eigenvalues of a 2×2 complex matrix,
// computed from the closed-form quadratic
//
//	λ² − tr(M)·λ + det(M) = 0
//
// The pair is returned in no particular order; callers that need a
// specific root (for example the TRL propagation factor) must select
// it by a physical criterion such as |λ| or phase.
func Eigen2(m Matrix) (complex128, complex128, error) {
	if m.n != 2 {
		return 0, 0, fmt.Errorf("%w: Eigen2 needs a 2×2 matrix, got %d×%d", ErrDimension, m.n, m.n)
	}

	tr := m.data[0] + m.data[3]
	det := m.data[0]*m.data[3] - m.data[1]*m.data[2]
	disc := cmplx.Sqrt(tr*tr - 4*det)

	// Pair the larger root with the addition branch to avoid
	// cancellation, then recover the other from the product.
	l1 := (tr + disc) / 2
	if cmplx.Abs(tr-disc) > cmplx.Abs(tr+disc) {
		l1 = (tr - disc) / 2
	}
	if l1 == 0 {
		return 0, 0, fmt.Errorf("%w: both eigenvalues vanish", ErrSingular)
	}
	return l1, det / l1, nil
}

// Eigenvector2 returns a (non-normalized) eigenvector of the 2×2
// matrix m for eigenvalue lambda.
func Eigenvector2(m Matrix, lambda complex128) ([]complex128, error) {
	if m.n != 2 {
		return nil, fmt.Errorf("%w: Eigenvector2 needs a 2×2 matrix, got %d×%d", ErrDimension, m.n, m.n)
	}

	a := m.data[0] - lambda
	b := m.data[1]
	c := m.data[2]
	d := m.data[3] - lambda

	// (M−λI)v = 0: use the row with the larger leading magnitude.
	if cmplx.Abs(a)+cmplx.Abs(b) >= cmplx.Abs(c)+cmplx.Abs(d) {
		if b != 0 {
			return []complex128{-b, a}, nil
		}
		if a != 0 {
			return []complex128{0, 1}, nil
		}
	}
	if c != 0 || d != 0 {
		return []complex128{-d, c}, nil
	}
	return nil, fmt.Errorf("%w: matrix is a multiple of the identity", ErrSingular)
}
