package network

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/cwbudde/algo-rf/internal/cmatrix"
)

// Errors returned by network construction and algebra.
var (
	ErrEmptySweep            = errors.New("network: sweep must contain at least one frequency point")
	ErrFrequencyOrder        = errors.New("network: frequencies must be strictly increasing")
	ErrShapeMismatch         = errors.New("network: frequency and matrix counts differ")
	ErrPortCountMismatch     = errors.New("network: operand port counts are incompatible")
	ErrInvalidZ0             = errors.New("network: reference impedance must be finite and non-zero")
	ErrPortNames             = errors.New("network: port names must be unique and match the port count")
	ErrPortIndex             = errors.New("network: port index out of range")
	ErrTwoPortOnly           = errors.New("network: operation is defined for 2-port networks only")
	ErrSingularNetwork       = errors.New("network: parameter conversion is singular at this frequency")
	ErrDegenerateConnection  = errors.New("network: connection elimination is singular at this frequency")
	ErrOutOfBand             = errors.New("network: requested frequency lies outside the swept band")
	ErrFrequencyGridMismatch = errors.New("network: operand frequency grids differ")
	ErrNonUniformGrid        = errors.New("network: operation requires a uniformly spaced frequency grid")
)

// DefaultTolerance is the reciprocal-condition threshold below which
// a per-point linear solve is treated as singular. It can be
// overridden per call with [WithTolerance].
const DefaultTolerance = 1e-12

// DefaultZ0 is the reference impedance assumed when none is given.
const DefaultZ0 = complex(50, 0)

// Network is an immutable frequency-indexed multi-port network.
//
// The zero value is not usable; construct networks with [New] or by
// deriving them from existing networks.
type Network struct {
	freqs []float64
	s     []cmatrix.Matrix
	z0    [][]complex128 // one impedance per (frequency, port)

	portNames []string
	comments  []string
	noise     []string // raw noise-parameter lines, preserved verbatim
}

// Option configures network construction.
type Option func(*builder)

type builder struct {
	z0        complex128
	portZ0    []complex128
	sweepZ0   [][]complex128
	portNames []string
	comments  []string
	noise     []string
}

// WithZ0 sets a single reference impedance for every port at every
// frequency.
func WithZ0(z0 complex128) Option {
	return func(b *builder) { b.z0 = z0 }
}

// WithPortZ0 sets one reference impedance per port, constant across
// frequency.
func WithPortZ0(z0 []complex128) Option {
	return func(b *builder) { b.portZ0 = z0 }
}

// WithSweepZ0 sets one reference impedance per (frequency, port)
// pair. The outer length must equal the frequency count and each
// inner length the port count.
func WithSweepZ0(z0 [][]complex128) Option {
	return func(b *builder) { b.sweepZ0 = z0 }
}

// WithPortNames attaches names to the ports. Names must be unique
// and their count must equal the port count.
func WithPortNames(names ...string) Option {
	return func(b *builder) { b.portNames = names }
}

// WithComments attaches free-form comment metadata, typically the
// comment lines of a decoded Touchstone file.
func WithComments(comments ...string) Option {
	return func(b *builder) { b.comments = comments }
}

// WithNoiseData attaches raw noise-parameter lines for verbatim
// pass-through on re-encode. The lines are not interpreted.
func WithNoiseData(lines ...string) Option {
	return func(b *builder) { b.noise = lines }
}

// New constructs a Network from a frequency sweep and one S-matrix
// per point. Inputs are copied; the caller may reuse its slices.
//
// Without an impedance option every port defaults to [DefaultZ0].
func New(freqs []float64, s []cmatrix.Matrix, opts ...Option) (*Network, error) {
	if len(freqs) == 0 {
		return nil, ErrEmptySweep
	}
	if len(freqs) != len(s) {
		return nil, fmt.Errorf("%w: %d frequencies, %d matrices", ErrShapeMismatch, len(freqs), len(s))
	}
	for k := 1; k < len(freqs); k++ {
		if !(freqs[k] > freqs[k-1]) {
			return nil, fmt.Errorf("%w: f[%d]=%g, f[%d]=%g", ErrFrequencyOrder, k-1, freqs[k-1], k, freqs[k])
		}
	}

	ports := s[0].Dim()
	for k, m := range s {
		if m.IsZero() {
			return nil, fmt.Errorf("%w: matrix %d is empty", ErrShapeMismatch, k)
		}
		if m.Dim() != ports {
			return nil, fmt.Errorf("%w: matrix %d is %d×%d, want %d×%d",
				ErrPortCountMismatch, k, m.Dim(), m.Dim(), ports, ports)
		}
	}

	b := builder{z0: DefaultZ0}
	for _, opt := range opts {
		if opt != nil {
			opt(&b)
		}
	}

	z0, err := b.resolveZ0(len(freqs), ports)
	if err != nil {
		return nil, err
	}

	if b.portNames != nil {
		if len(b.portNames) != ports {
			return nil, fmt.Errorf("%w: %d names for %d ports", ErrPortNames, len(b.portNames), ports)
		}
		seen := make(map[string]bool, ports)
		for _, name := range b.portNames {
			if seen[name] {
				return nil, fmt.Errorf("%w: duplicate name %q", ErrPortNames, name)
			}
			seen[name] = true
		}
	}

	n := &Network{
		freqs:     append([]float64(nil), freqs...),
		s:         make([]cmatrix.Matrix, len(s)),
		z0:        z0,
		portNames: append([]string(nil), b.portNames...),
		comments:  append([]string(nil), b.comments...),
		noise:     append([]string(nil), b.noise...),
	}
	for k, m := range s {
		n.s[k] = m.Clone()
	}
	return n, nil
}

func (b *builder) resolveZ0(points, ports int) ([][]complex128, error) {
	switch {
	case b.sweepZ0 != nil:
		if len(b.sweepZ0) != points {
			return nil, fmt.Errorf("%w: impedance sweep has %d points, want %d", ErrShapeMismatch, len(b.sweepZ0), points)
		}
		out := make([][]complex128, points)
		for k, row := range b.sweepZ0 {
			if len(row) != ports {
				return nil, fmt.Errorf("%w: impedance row %d has %d entries, want %d", ErrShapeMismatch, k, len(row), ports)
			}
			for p, z := range row {
				if err := checkZ0(z); err != nil {
					return nil, fmt.Errorf("%w (point %d, port %d)", err, k, p)
				}
			}
			out[k] = append([]complex128(nil), row...)
		}
		return out, nil

	case b.portZ0 != nil:
		if len(b.portZ0) != ports {
			return nil, fmt.Errorf("%w: %d impedances for %d ports", ErrShapeMismatch, len(b.portZ0), ports)
		}
		for p, z := range b.portZ0 {
			if err := checkZ0(z); err != nil {
				return nil, fmt.Errorf("%w (port %d)", err, p)
			}
		}
		out := make([][]complex128, points)
		for k := range out {
			out[k] = append([]complex128(nil), b.portZ0...)
		}
		return out, nil

	default:
		if err := checkZ0(b.z0); err != nil {
			return nil, err
		}
		out := make([][]complex128, points)
		for k := range out {
			row := make([]complex128, ports)
			for p := range row {
				row[p] = b.z0
			}
			out[k] = row
		}
		return out, nil
	}
}

func checkZ0(z complex128) error {
	if z == 0 || cmplx.IsNaN(z) || cmplx.IsInf(z) {
		return fmt.Errorf("%w: got %v", ErrInvalidZ0, z)
	}
	return nil
}

// NumFreqs returns the number of frequency points.
func (n *Network) NumFreqs() int { return len(n.freqs) }

// Ports returns the port count.
func (n *Network) Ports() int { return n.s[0].Dim() }

// Frequencies returns a copy of the frequency sweep in Hz.
func (n *Network) Frequencies() []float64 {
	return append([]float64(nil), n.freqs...)
}

// Frequency returns the frequency of point k in Hz.
func (n *Network) Frequency(k int) float64 { return n.freqs[k] }

// S returns a copy of the S-matrix at frequency point k.
func (n *Network) S(k int) cmatrix.Matrix { return n.s[k].Clone() }

// SEntry returns S[i][j] at frequency point k without copying.
func (n *Network) SEntry(k, i, j int) complex128 { return n.s[k].At(i, j) }

// Z0 returns a copy of the per-port reference impedances at
// frequency point k.
func (n *Network) Z0(k int) []complex128 {
	return append([]complex128(nil), n.z0[k]...)
}

// PortNames returns a copy of the port names, or nil when unset.
func (n *Network) PortNames() []string {
	return append([]string(nil), n.portNames...)
}

// Comments returns a copy of the attached comment metadata.
func (n *Network) Comments() []string {
	return append([]string(nil), n.comments...)
}

// NoiseData returns a copy of the preserved raw noise-parameter
// lines, or nil when the network carries none.
func (n *Network) NoiseData() []string {
	return append([]string(nil), n.noise...)
}

// clone returns a deep copy sharing nothing with n.
func (n *Network) clone() *Network {
	out := &Network{
		freqs:     append([]float64(nil), n.freqs...),
		s:         make([]cmatrix.Matrix, len(n.s)),
		z0:        make([][]complex128, len(n.z0)),
		portNames: append([]string(nil), n.portNames...),
		comments:  append([]string(nil), n.comments...),
		noise:     append([]string(nil), n.noise...),
	}
	for k := range n.s {
		out.s[k] = n.s[k].Clone()
	}
	for k := range n.z0 {
		out.z0[k] = append([]complex128(nil), n.z0[k]...)
	}
	return out
}

// SameGrid reports whether n and other share an identical frequency
// grid.
func (n *Network) SameGrid(other *Network) bool {
	if len(n.freqs) != len(other.freqs) {
		return false
	}
	for k := range n.freqs {
		if n.freqs[k] != other.freqs[k] {
			return false
		}
	}
	return true
}

// EqualApprox reports whether n and other describe the same network
// within tol: frequency grids must match exactly, and every S-matrix
// entry must agree within tol in complex magnitude.
func (n *Network) EqualApprox(other *Network, tol float64) bool {
	if other == nil || n.Ports() != other.Ports() || !n.SameGrid(other) {
		return false
	}
	if tol <= 0 {
		tol = DefaultTolerance
	}
	ports := n.Ports()
	for k := range n.s {
		for i := 0; i < ports; i++ {
			for j := 0; j < ports; j++ {
				if cmplx.Abs(n.s[k].At(i, j)-other.s[k].At(i, j)) > tol {
					return false
				}
			}
		}
	}
	return true
}

// uniformSpacing returns the frequency step when the grid is
// uniformly spaced within a small relative tolerance.
func (n *Network) uniformSpacing() (float64, error) {
	if len(n.freqs) < 2 {
		return 0, fmt.Errorf("%w: need at least two points", ErrNonUniformGrid)
	}
	step := n.freqs[1] - n.freqs[0]
	for k := 2; k < len(n.freqs); k++ {
		d := n.freqs[k] - n.freqs[k-1]
		if math.Abs(d-step) > 1e-6*step {
			return 0, fmt.Errorf("%w: step %g at point %d, expected %g", ErrNonUniformGrid, d, k, step)
		}
	}
	return step, nil
}
