package calibration

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/cwbudde/algo-rf/internal/cmatrix"
	"github.com/cwbudde/algo-rf/network"
)

// OnePortTerms is the 3-term reflection error model at one frequency
// point:
//
//	Γm = e00 + RT·Γ / (1 − e11·Γ)
//
// with e00 the directivity, e11 the source match and RT = e10·e01
// the reflection tracking.
type OnePortTerms struct {
	Directivity        complex128 // e00
	SourceMatch        complex128 // e11
	ReflectionTracking complex128 // e10·e01
}

func nanTerms() OnePortTerms {
	n := cmplx.NaN()
	return OnePortTerms{Directivity: n, SourceMatch: n, ReflectionTracking: n}
}

func (c *Calibration) solveOnePort(freqs []float64, standards []Standard) (*ErrorBox, error) {
	var used []Standard
	for _, std := range standards {
		if std.isIsolation() {
			continue
		}
		if std.Ideal == nil {
			return nil, fmt.Errorf("%w: standard %q has no ideal", ErrMissingStandard, std.Name)
		}
		if std.Ideal.Ports() != 1 || std.Measured.Ports() != 1 {
			return nil, fmt.Errorf("%w: one-port model needs 1-port standards, %q has %d/%d ports",
				network.ErrPortCountMismatch, std.Name, std.Ideal.Ports(), std.Measured.Ports())
		}
		used = append(used, std)
	}
	if len(used) < 3 {
		return nil, fmt.Errorf("%w: one-port model needs 3 reflection standards, got %d",
			ErrInsufficientStandards, len(used))
	}

	box := &ErrorBox{
		model:   ModelOnePort,
		freqs:   freqs,
		tol:     c.tol,
		oneport: make([]OnePortTerms, len(freqs)),
	}
	ideal := make([]complex128, len(used))
	meas := make([]complex128, len(used))
	for k := range freqs {
		for i, std := range used {
			ideal[i] = std.Ideal.SEntry(k, 0, 0)
			meas[i] = std.Measured.SEntry(k, 0, 0)
		}
		terms, err := solveReflectionTerms(ideal, meas, c.tol)
		if err != nil {
			box.oneport[k] = nanTerms()
			box.points = append(box.points, &network.PointError{Index: k, Freq: freqs[k], Err: err})
			continue
		}
		box.oneport[k] = terms
	}
	if len(box.points) > 0 {
		return box, &network.SweepError{Points: box.points}
	}
	return box, nil
}

// solveReflectionTerms fits the 3-term model to paired ideal and
// measured reflection coefficients at a single frequency. The model
// is linearized with the substitution x = (e00, RT − e00·e11, e11):
//
//	Γm_i = x0 + x1·Γ_i + x2·Γ_i·Γm_i
//
// Three standards give an exact solve; more are fitted in the
// least-squares sense.
func solveReflectionTerms(ideal, measured []complex128, tol float64) (OnePortTerms, error) {
	rows := make([][]complex128, len(ideal))
	for i := range ideal {
		rows[i] = []complex128{1, ideal[i], ideal[i] * measured[i]}
	}
	x, err := leastSquares(rows, measured, tol)
	if err != nil {
		return OnePortTerms{}, err
	}
	e00, e11 := x[0], x[2]
	return OnePortTerms{
		Directivity:        e00,
		SourceMatch:        e11,
		ReflectionTracking: x[1] + e00*e11,
	}, nil
}

// leastSquares solves the linear system given by rows·x = rhs. A
// square system is solved directly; an overdetermined one through
// its normal equations. Conditioning below tol fails with
// cmatrix.ErrSingular.
func leastSquares(rows [][]complex128, rhs []complex128, tol float64) ([]complex128, error) {
	cols := len(rows[0])

	a := cmatrix.New(cols)
	b := make([]complex128, cols)
	if len(rows) == cols {
		for i, row := range rows {
			for j, v := range row {
				a.Set(i, j, v)
			}
		}
		copy(b, rhs)
	} else {
		for i := 0; i < cols; i++ {
			for j := 0; j < cols; j++ {
				var sum complex128
				for r := range rows {
					sum += cmplx.Conj(rows[r][i]) * rows[r][j]
				}
				a.Set(i, j, sum)
			}
			for r := range rows {
				b[i] += cmplx.Conj(rows[r][i]) * rhs[r]
			}
		}
	}

	f, err := cmatrix.Factor(a)
	if err != nil {
		return nil, err
	}
	if rc := f.Rcond(); rc < tol {
		return nil, fmt.Errorf("%w: rcond %.3g below tolerance %.3g", cmatrix.ErrSingular, rc, tol)
	}
	return f.Solve(b)
}

// unterminate inverts the 3-term model, recovering the actual
// reflection coefficient behind the error adapter from a measured
// one.
func unterminate(measured complex128, t OnePortTerms, tol float64) (complex128, error) {
	num := measured - t.Directivity
	den := t.ReflectionTracking + t.SourceMatch*num
	scale := cmplx.Abs(t.ReflectionTracking) + cmplx.Abs(t.SourceMatch)*cmplx.Abs(num)
	if scale == 0 || cmplx.Abs(den) < tol*scale || math.IsNaN(cmplx.Abs(den)) {
		return 0, fmt.Errorf("%w: reflection correction denominator vanishes", network.ErrSingularNetwork)
	}
	return num / den, nil
}

func (e *ErrorBox) applyOnePort(raw *network.Network) (*network.Network, error) {
	s := make([]cmatrix.Matrix, raw.NumFreqs())
	var points []*network.PointError
	for k := range s {
		fail := func(err error) {
			s[k] = cmatrix.NaN(1)
			points = append(points, &network.PointError{Index: k, Freq: raw.Frequency(k), Err: err})
		}
		if !e.solvedAt(k) {
			fail(ErrNotSolved)
			continue
		}
		gamma, err := unterminate(raw.SEntry(k, 0, 0), e.oneport[k], e.tol)
		if err != nil {
			fail(err)
			continue
		}
		m := cmatrix.New(1)
		m.Set(0, 0, gamma)
		s[k] = m
	}
	return resultNetwork(raw, s, points)
}
