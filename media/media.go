// Package media generates ideal networks from transmission-line
// descriptions: a propagation constant and characteristic impedance
// per frequency point define matched lines, terminations and offset
// standards on that grid.
//
// Media are the source of the mathematically known networks used as
// calibration standards and as synthetic fixtures in tests. The
// sign conventions follow the usual engineering choice: positive
// real(γ) is attenuation, positive imag(γ) is forward propagation,
// so a matched line of length ℓ transmits exp(−γℓ).
package media

import (
	"errors"
	"fmt"
	"math/cmplx"

	"github.com/cwbudde/algo-rf/internal/cmatrix"
	"github.com/cwbudde/algo-rf/network"
)

// Errors returned by media construction.
var (
	ErrEmptyGrid     = errors.New("media: frequency grid must not be empty")
	ErrShapeMismatch = errors.New("media: gamma and z0 must match the frequency grid")
	ErrInvalidZ0     = errors.New("media: characteristic impedance must be finite and non-zero")
	ErrNegativeLen   = errors.New("media: length must be >= 0")
)

// Media is a single transmission-line mode on a frequency grid,
// defined by its propagation constant γ (1/m) and characteristic
// impedance z0 (Ω) per point.
type Media struct {
	freqs  []float64
	gamma  []complex128
	z0     []complex128
	portZ0 complex128 // 0 means "use the characteristic impedance"
}

// Option configures a Media.
type Option func(*Media)

// WithPortImpedance renormalizes every generated network from the
// media's characteristic impedance to the given port reference
// (embedding the generated device in that reference system).
func WithPortImpedance(z0 complex128) Option {
	return func(m *Media) { m.portZ0 = z0 }
}

// New builds a media from per-point propagation constants and
// characteristic impedances. gamma and z0 must have one entry per
// frequency; z0 may also hold a single entry applied everywhere.
func New(freqs []float64, gamma, z0 []complex128, opts ...Option) (*Media, error) {
	if len(freqs) == 0 {
		return nil, ErrEmptyGrid
	}
	if len(gamma) != len(freqs) {
		return nil, fmt.Errorf("%w: %d gamma values for %d points", ErrShapeMismatch, len(gamma), len(freqs))
	}
	if len(z0) != len(freqs) && len(z0) != 1 {
		return nil, fmt.Errorf("%w: %d z0 values for %d points", ErrShapeMismatch, len(z0), len(freqs))
	}

	m := &Media{
		freqs: append([]float64(nil), freqs...),
		gamma: append([]complex128(nil), gamma...),
		z0:    make([]complex128, len(freqs)),
	}
	for k := range m.z0 {
		z := z0[0]
		if len(z0) > 1 {
			z = z0[k]
		}
		if z == 0 || cmplx.IsNaN(z) || cmplx.IsInf(z) {
			return nil, fmt.Errorf("%w: point %d has z0 = %v", ErrInvalidZ0, k, z)
		}
		m.z0[k] = z
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m, nil
}

// Frequencies returns a copy of the media's frequency grid.
func (m *Media) Frequencies() []float64 {
	return append([]float64(nil), m.freqs...)
}

// Gamma returns the propagation constant at point k.
func (m *Media) Gamma(k int) complex128 { return m.gamma[k] }

// Z0 returns the characteristic impedance at point k.
func (m *Media) Z0(k int) complex128 { return m.z0[k] }

// Line returns a matched transmission line of the given length:
// S11 = S22 = 0 and S21 = S12 = exp(−γℓ) in the line's own
// characteristic impedance, renormalized to the port impedance when
// one was configured.
func (m *Media) Line(length float64) (*network.Network, error) {
	if length < 0 {
		return nil, ErrNegativeLen
	}

	s := make([]cmatrix.Matrix, len(m.freqs))
	z0 := make([][]complex128, len(m.freqs))
	for k := range s {
		g := cmplx.Exp(-m.gamma[k] * complex(length, 0))
		mat := cmatrix.New(2)
		mat.Set(0, 1, g)
		mat.Set(1, 0, g)
		s[k] = mat
		z0[k] = []complex128{m.z0[k], m.z0[k]}
	}
	n, err := network.New(m.freqs, s, network.WithSweepZ0(z0))
	if err != nil {
		return nil, err
	}
	return m.embed(n)
}

// Thru returns a zero-length line.
func (m *Media) Thru() (*network.Network, error) {
	return m.Line(0)
}

// Short returns an ideal 1-port short, Γ = −1.
func (m *Media) Short() (*network.Network, error) {
	return m.Load(-1)
}

// Open returns an ideal 1-port open, Γ = +1.
func (m *Media) Open() (*network.Network, error) {
	return m.Load(1)
}

// Match returns an ideal 1-port matched termination, Γ = 0.
func (m *Media) Match() (*network.Network, error) {
	return m.Load(0)
}

// Load returns a 1-port termination with the given constant
// reflection coefficient, referenced to the media's characteristic
// impedance.
func (m *Media) Load(refl complex128) (*network.Network, error) {
	gammas := make([]complex128, len(m.freqs))
	for k := range gammas {
		gammas[k] = refl
	}
	return m.LoadSweep(gammas)
}

// LoadSweep returns a 1-port termination with a per-point
// reflection coefficient.
func (m *Media) LoadSweep(refl []complex128) (*network.Network, error) {
	if len(refl) != len(m.freqs) {
		return nil, fmt.Errorf("%w: %d reflection values for %d points", ErrShapeMismatch, len(refl), len(m.freqs))
	}

	s := make([]cmatrix.Matrix, len(m.freqs))
	z0 := make([][]complex128, len(m.freqs))
	for k := range s {
		mat := cmatrix.New(1)
		mat.Set(0, 0, refl[k])
		s[k] = mat
		z0[k] = []complex128{m.z0[k]}
	}
	n, err := network.New(m.freqs, s, network.WithSweepZ0(z0))
	if err != nil {
		return nil, err
	}
	return m.embed(n)
}

// DelayShort returns a short seen through a line of the given
// length: Γ = −exp(−2γℓ).
func (m *Media) DelayShort(length float64) (*network.Network, error) {
	return m.delayLoad(-1, length)
}

// DelayOpen returns an open seen through a line of the given
// length: Γ = exp(−2γℓ).
func (m *Media) DelayOpen(length float64) (*network.Network, error) {
	return m.delayLoad(1, length)
}

func (m *Media) delayLoad(refl complex128, length float64) (*network.Network, error) {
	if length < 0 {
		return nil, ErrNegativeLen
	}
	gammas := make([]complex128, len(m.freqs))
	for k := range gammas {
		gammas[k] = refl * cmplx.Exp(-2*m.gamma[k]*complex(length, 0))
	}
	return m.LoadSweep(gammas)
}

// embed renormalizes generated networks to the configured port
// impedance.
func (m *Media) embed(n *network.Network) (*network.Network, error) {
	if m.portZ0 == 0 {
		return n, nil
	}
	z0 := make([]complex128, n.Ports())
	for i := range z0 {
		z0[i] = m.portZ0
	}
	return n.Renormalize(z0)
}
