package network

import (
	"fmt"

	"github.com/cwbudde/algo-rf/internal/cmatrix"
)

// InterpolateOption configures [Network.Interpolate].
type InterpolateOption func(*interpolateConfig)

type interpolateConfig struct {
	extrapolate bool
}

// WithExtrapolation allows target frequencies outside the swept
// band. Out-of-band points are evaluated on the extended end
// segments of the interpolant; without this option they fail with
// [ErrOutOfBand].
func WithExtrapolation() InterpolateOption {
	return func(cfg *interpolateConfig) { cfg.extrapolate = true }
}

// Interpolate resamples the network onto a new frequency grid using
// piecewise cubic Hermite interpolation applied separately to the
// real and imaginary parts of every S-matrix entry. Interior
// tangents are the centered divided differences (Catmull-Rom on
// non-uniform grids), end tangents the one-sided differences.
//
// The new grid must itself satisfy the network invariants (strictly
// increasing, non-empty) and lie within the swept band unless
// [WithExtrapolation] is given. Reference impedances are
// interpolated linearly per port.
func (n *Network) Interpolate(newFreqs []float64, opts ...InterpolateOption) (*Network, error) {
	var cfg interpolateConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	if len(newFreqs) == 0 {
		return nil, ErrEmptySweep
	}
	for k := 1; k < len(newFreqs); k++ {
		if !(newFreqs[k] > newFreqs[k-1]) {
			return nil, fmt.Errorf("%w: f[%d]=%g, f[%d]=%g", ErrFrequencyOrder, k-1, newFreqs[k-1], k, newFreqs[k])
		}
	}
	if !cfg.extrapolate {
		lo, hi := n.freqs[0], n.freqs[len(n.freqs)-1]
		if newFreqs[0] < lo || newFreqs[len(newFreqs)-1] > hi {
			return nil, fmt.Errorf("%w: requested %g–%g Hz, swept %g–%g Hz",
				ErrOutOfBand, newFreqs[0], newFreqs[len(newFreqs)-1], lo, hi)
		}
	}

	ports := n.Ports()
	s := make([]cmatrix.Matrix, len(newFreqs))
	z0 := make([][]complex128, len(newFreqs))
	for k := range s {
		s[k] = cmatrix.New(ports)
		z0[k] = make([]complex128, ports)
	}

	// Interpolate entry by entry: each (i,j) trace is one complex
	// curve over frequency.
	trace := make([]complex128, len(n.freqs))
	for i := 0; i < ports; i++ {
		for j := 0; j < ports; j++ {
			for k := range n.s {
				trace[k] = n.s[k].At(i, j)
			}
			for k, f := range newFreqs {
				s[k].Set(i, j, hermiteEval(n.freqs, trace, f))
			}
		}
	}
	for p := 0; p < ports; p++ {
		for k := range n.z0 {
			trace[k] = n.z0[k][p]
		}
		for k, f := range newFreqs {
			z0[k][p] = linearEval(n.freqs, trace[:len(n.freqs)], f)
		}
	}

	out, err := New(newFreqs, s, WithSweepZ0(z0), WithComments(n.comments...))
	if err != nil {
		return nil, err
	}
	out.portNames = append([]string(nil), n.portNames...)
	return out, nil
}

// segment returns the index k such that x lies in [xs[k], xs[k+1]],
// clamped to the end segments for out-of-band x.
func segment(xs []float64, x float64) int {
	lo, hi := 0, len(xs)-2
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if xs[mid] <= x {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}

// hermiteEval evaluates the piecewise cubic Hermite interpolant of
// (xs, ys) at x, separately on real and imaginary parts. A single
// data point degenerates to a constant.
func hermiteEval(xs []float64, ys []complex128, x float64) complex128 {
	if len(xs) == 1 {
		return ys[0]
	}

	k := segment(xs, x)
	h := xs[k+1] - xs[k]
	t := (x - xs[k]) / h

	m0 := tangent(xs, ys, k)
	m1 := tangent(xs, ys, k+1)

	t2 := t * t
	t3 := t2 * t
	h00 := 2*t3 - 3*t2 + 1
	h10 := t3 - 2*t2 + t
	h01 := -2*t3 + 3*t2
	h11 := t3 - t2

	ch := complex(h, 0)
	return complex(h00, 0)*ys[k] + complex(h10, 0)*ch*m0 +
		complex(h01, 0)*ys[k+1] + complex(h11, 0)*ch*m1
}

// tangent returns the Catmull-Rom tangent at sample k: the centered
// divided difference on the interior, the one-sided difference at
// the ends.
func tangent(xs []float64, ys []complex128, k int) complex128 {
	last := len(xs) - 1
	switch k {
	case 0:
		return (ys[1] - ys[0]) / complex(xs[1]-xs[0], 0)
	case last:
		return (ys[last] - ys[last-1]) / complex(xs[last]-xs[last-1], 0)
	default:
		return (ys[k+1] - ys[k-1]) / complex(xs[k+1]-xs[k-1], 0)
	}
}

// linearEval evaluates the piecewise linear interpolant of (xs, ys)
// at x, extending the end segments beyond the band.
func linearEval(xs []float64, ys []complex128, x float64) complex128 {
	if len(xs) == 1 {
		return ys[0]
	}
	k := segment(xs, x)
	t := (x - xs[k]) / (xs[k+1] - xs[k])
	return ys[k] + complex(t, 0)*(ys[k+1]-ys[k])
}
