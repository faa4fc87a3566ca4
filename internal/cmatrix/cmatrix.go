// Package cmatrix implements dense complex matrix arithmetic for
// small square systems.
//
// Network parameter conversion and port elimination operate on
// matrices whose dimension equals the port count, which in practice
// is a single-digit number. A pivoted dense LU factorization is both
// simpler and faster than sparse machinery at these sizes, and it
// exposes the reciprocal condition estimate that the callers need
// for explicit singularity detection.
package cmatrix

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
)

// Errors returned by cmatrix operations.
var (
	ErrDimension = errors.New("cmatrix: dimension mismatch")
	ErrSingular  = errors.New("cmatrix: matrix is singular to working tolerance")
)

// Matrix is a dense square complex matrix in row-major order.
type Matrix struct {
	n    int
	data []complex128
}

// New returns an n×n zero matrix.
func New(n int) Matrix {
	if n < 1 {
		panic("cmatrix: dimension must be >= 1")
	}
	return Matrix{n: n, data: make([]complex128, n*n)}
}

// Identity returns the n×n identity matrix.
func Identity(n int) Matrix {
	m := New(n)
	for i := 0; i < n; i++ {
		m.data[i*n+i] = 1
	}
	return m
}

// FromRows builds a matrix from row slices. All rows must have
// length equal to the row count.
func FromRows(rows [][]complex128) (Matrix, error) {
	n := len(rows)
	if n == 0 {
		return Matrix{}, fmt.Errorf("%w: no rows", ErrDimension)
	}
	m := New(n)
	for i, row := range rows {
		if len(row) != n {
			return Matrix{}, fmt.Errorf("%w: row %d has %d entries, want %d", ErrDimension, i, len(row), n)
		}
		copy(m.data[i*n:(i+1)*n], row)
	}
	return m, nil
}

// Dim returns the matrix dimension.
func (m Matrix) Dim() int { return m.n }

// At returns the entry at row i, column j.
func (m Matrix) At(i, j int) complex128 { return m.data[i*m.n+j] }

// Set assigns the entry at row i, column j.
func (m Matrix) Set(i, j int, v complex128) { m.data[i*m.n+j] = v }

// Clone returns a deep copy of m.
func (m Matrix) Clone() Matrix {
	out := Matrix{n: m.n, data: make([]complex128, len(m.data))}
	copy(out.data, m.data)
	return out
}

// IsZero reports whether m is the zero value (no storage).
func (m Matrix) IsZero() bool { return m.data == nil }

// Mul returns the matrix product a*b.
func Mul(a, b Matrix) Matrix {
	if a.n != b.n {
		panic("cmatrix: Mul dimension mismatch")
	}
	n := a.n
	out := New(n)
	for i := 0; i < n; i++ {
		for k := 0; k < n; k++ {
			aik := a.data[i*n+k]
			if aik == 0 {
				continue
			}
			for j := 0; j < n; j++ {
				out.data[i*n+j] += aik * b.data[k*n+j]
			}
		}
	}
	return out
}

// Add returns a+b.
func Add(a, b Matrix) Matrix {
	if a.n != b.n {
		panic("cmatrix: Add dimension mismatch")
	}
	out := a.Clone()
	for i := range out.data {
		out.data[i] += b.data[i]
	}
	return out
}

// Sub returns a−b.
func Sub(a, b Matrix) Matrix {
	if a.n != b.n {
		panic("cmatrix: Sub dimension mismatch")
	}
	out := a.Clone()
	for i := range out.data {
		out.data[i] -= b.data[i]
	}
	return out
}

// Scale returns s*m.
func Scale(s complex128, m Matrix) Matrix {
	out := m.Clone()
	for i := range out.data {
		out.data[i] *= s
	}
	return out
}

// MulVec returns the matrix-vector product m*v.
func (m Matrix) MulVec(v []complex128) []complex128 {
	if len(v) != m.n {
		panic("cmatrix: MulVec dimension mismatch")
	}
	out := make([]complex128, m.n)
	for i := 0; i < m.n; i++ {
		var sum complex128
		for j := 0; j < m.n; j++ {
			sum += m.data[i*m.n+j] * v[j]
		}
		out[i] = sum
	}
	return out
}

// Norm1 returns the 1-norm (maximum absolute column sum).
func (m Matrix) Norm1() float64 {
	var max float64
	for j := 0; j < m.n; j++ {
		var sum float64
		for i := 0; i < m.n; i++ {
			sum += cmplx.Abs(m.data[i*m.n+j])
		}
		if sum > max {
			max = sum
		}
	}
	return max
}

// HasNaN reports whether any entry is NaN in either component.
func (m Matrix) HasNaN() bool {
	for _, v := range m.data {
		if math.IsNaN(real(v)) || math.IsNaN(imag(v)) {
			return true
		}
	}
	return false
}

// NaN returns an n×n matrix with every entry set to NaN+NaNi.
// Callers use it as an explicit per-point failure marker.
func NaN(n int) Matrix {
	m := New(n)
	nan := complex(math.NaN(), math.NaN())
	for i := range m.data {
		m.data[i] = nan
	}
	return m
}
