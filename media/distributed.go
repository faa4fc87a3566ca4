package media

import (
	"errors"
	"math"
	"math/cmplx"
)

// ErrInvalidRLGC is returned for non-finite or negative per-length
// parameters.
var ErrInvalidRLGC = errors.New("media: R, L, G, C must be finite and >= 0")

// DistributedCircuit describes a transmission-line mode by its
// distributed (per unit length) circuit parameters:
//
//	Z' = R + jωL    distributed impedance, Ω/m
//	Y' = G + jωC    distributed admittance, S/m
//
// from which the wave behavior follows as
//
//	γ  = √(Z'·Y')
//	z0 = √(Z'/Y')
//
// The zero-value corner cases (a lossless line at ω = 0) are kept
// off the division by nudging purely real Z' and Y' onto the
// imaginary axis by a vanishing amount.
type DistributedCircuit struct {
	R float64 // distributed resistance, Ω/m
	L float64 // distributed inductance, H/m
	G float64 // distributed conductance, S/m
	C float64 // distributed capacitance, F/m
}

// Coax returns distributed parameters of a generic lossless coaxial
// line (280 nH/m, 90 pF/m, z0 ≈ 56Ω).
func Coax() DistributedCircuit {
	return DistributedCircuit{L: 280e-9, C: 90e-12}
}

// Validate checks the parameters.
func (d DistributedCircuit) Validate() error {
	for _, v := range [...]float64{d.R, d.L, d.G, d.C} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return ErrInvalidRLGC
		}
	}
	return nil
}

// Media evaluates the distributed parameters on a frequency grid.
func (d DistributedCircuit) Media(freqs []float64, opts ...Option) (*Media, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	const nudge = 1e-12

	gamma := make([]complex128, len(freqs))
	z0 := make([]complex128, len(freqs))
	for k, f := range freqs {
		w := 2 * math.Pi * f
		z := complex(d.R, w*d.L)
		y := complex(d.G, w*d.C)
		if imag(z) == 0 {
			z += complex(0, nudge)
		}
		if imag(y) == 0 {
			y += complex(0, nudge)
		}
		gamma[k] = cmplx.Sqrt(z * y)
		z0[k] = cmplx.Sqrt(z / y)
	}
	return New(freqs, gamma, z0, opts...)
}
