package cmatrix

import (
	"fmt"
	"math/cmplx"
)

// LU holds a pivoted LU factorization of a square complex matrix.
//
// The factorization is in-place Doolittle form with partial pivoting:
// rows of the original matrix are permuted by piv, L has unit
// diagonal stored implicitly, and U occupies the upper triangle.
type LU struct {
	lu    Matrix
	piv   []int
	norm1 float64 // 1-norm of the original matrix, for rcond
}

// Factor computes the pivoted LU factorization of m.
//
// An exactly zero pivot returns ErrSingular immediately. Near-singular
// matrices factor successfully but are reported through Rcond, which
// callers compare against their own tolerance.
func Factor(m Matrix) (*LU, error) {
	n := m.n
	f := &LU{
		lu:    m.Clone(),
		piv:   make([]int, n),
		norm1: m.Norm1(),
	}
	for i := range f.piv {
		f.piv[i] = i
	}

	a := f.lu.data
	for k := 0; k < n; k++ {
		// Partial pivoting: largest magnitude in column k at or below
		// the diagonal.
		p := k
		best := cmplx.Abs(a[k*n+k])
		for i := k + 1; i < n; i++ {
			if mag := cmplx.Abs(a[i*n+k]); mag > best {
				best = mag
				p = i
			}
		}
		if best == 0 {
			return nil, fmt.Errorf("%w: zero pivot at column %d", ErrSingular, k)
		}
		if p != k {
			for j := 0; j < n; j++ {
				a[k*n+j], a[p*n+j] = a[p*n+j], a[k*n+j]
			}
			f.piv[k], f.piv[p] = f.piv[p], f.piv[k]
		}

		pivot := a[k*n+k]
		for i := k + 1; i < n; i++ {
			mult := a[i*n+k] / pivot
			a[i*n+k] = mult
			if mult == 0 {
				continue
			}
			for j := k + 1; j < n; j++ {
				a[i*n+j] -= mult * a[k*n+j]
			}
		}
	}
	return f, nil
}

// Solve returns x such that A*x = b for the factored matrix A.
func (f *LU) Solve(b []complex128) ([]complex128, error) {
	n := f.lu.n
	if len(b) != n {
		return nil, fmt.Errorf("%w: rhs length %d, want %d", ErrDimension, len(b), n)
	}

	a := f.lu.data
	x := make([]complex128, n)
	for i := 0; i < n; i++ {
		x[i] = b[f.piv[i]]
	}

	// Forward substitution, L has unit diagonal.
	for i := 1; i < n; i++ {
		for j := 0; j < i; j++ {
			x[i] -= a[i*n+j] * x[j]
		}
	}

	// Back substitution.
	for i := n - 1; i >= 0; i-- {
		for j := i + 1; j < n; j++ {
			x[i] -= a[i*n+j] * x[j]
		}
		x[i] /= a[i*n+i]
	}
	return x, nil
}

// SolveMatrix returns X such that A*X = B.
func (f *LU) SolveMatrix(b Matrix) (Matrix, error) {
	n := f.lu.n
	if b.n != n {
		return Matrix{}, fmt.Errorf("%w: rhs dimension %d, want %d", ErrDimension, b.n, n)
	}
	out := New(n)
	col := make([]complex128, n)
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			col[i] = b.data[i*n+j]
		}
		x, err := f.Solve(col)
		if err != nil {
			return Matrix{}, err
		}
		for i := 0; i < n; i++ {
			out.data[i*n+j] = x[i]
		}
	}
	return out, nil
}

// Inverse returns the inverse of the factored matrix.
func (f *LU) Inverse() (Matrix, error) {
	return f.SolveMatrix(Identity(f.lu.n))
}

// Rcond estimates the reciprocal condition number in the 1-norm,
// 1/(‖A‖₁·‖A⁻¹‖₁). It is 0 for an exactly singular factorization
// and approaches 1 for perfectly conditioned matrices.
func (f *LU) Rcond() float64 {
	inv, err := f.Inverse()
	if err != nil {
		return 0
	}
	d := f.norm1 * inv.Norm1()
	if d == 0 {
		return 0
	}
	return 1 / d
}

// Inverse is a convenience wrapper that factors m, verifies its
// reciprocal condition number against tol, and returns the inverse.
// It fails with ErrSingular when the factorization breaks down or
// the estimate falls below tol.
func Inverse(m Matrix, tol float64) (Matrix, error) {
	f, err := Factor(m)
	if err != nil {
		return Matrix{}, err
	}
	if rc := f.Rcond(); rc < tol {
		return Matrix{}, fmt.Errorf("%w: rcond %.3g below tolerance %.3g", ErrSingular, rc, tol)
	}
	return f.Inverse()
}

// Solve is a convenience wrapper that factors a, checks conditioning
// against tol, and solves a*X = b.
func Solve(a, b Matrix, tol float64) (Matrix, error) {
	f, err := Factor(a)
	if err != nil {
		return Matrix{}, err
	}
	if rc := f.Rcond(); rc < tol {
		return Matrix{}, fmt.Errorf("%w: rcond %.3g below tolerance %.3g", ErrSingular, rc, tol)
	}
	return f.SolveMatrix(b)
}
