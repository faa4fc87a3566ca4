package network

import (
	"fmt"
	"math/cmplx"

	"github.com/cwbudde/algo-rf/internal/cmatrix"
)

// Domain identifies a network parameter representation.
type Domain int

// Supported parameter domains.
const (
	DomainS    Domain = iota // scattering parameters
	DomainZ                  // impedance parameters
	DomainY                  // admittance parameters
	DomainABCD               // chain parameters, 2-port only
	DomainT                  // transfer (wave cascade) parameters, 2-port only
)

// String returns the conventional letter name of the domain.
func (d Domain) String() string {
	switch d {
	case DomainS:
		return "S"
	case DomainZ:
		return "Z"
	case DomainY:
		return "Y"
	case DomainABCD:
		return "ABCD"
	case DomainT:
		return "T"
	}
	return fmt.Sprintf("Domain(%d)", int(d))
}

// PointError records a numerical failure at a single frequency point
// of a sweep-wide operation.
type PointError struct {
	Index int     // frequency point index
	Freq  float64 // frequency in Hz
	Err   error
}

// Error implements the error interface.
func (e *PointError) Error() string {
	return fmt.Sprintf("point %d (%g Hz): %v", e.Index, e.Freq, e.Err)
}

// Unwrap returns the underlying cause.
func (e *PointError) Unwrap() error { return e.Err }

// SweepError aggregates per-point failures of a sweep-wide
// operation. The operation's result is still valid at every point
// not listed; failed points carry NaN matrices as explicit markers.
type SweepError struct {
	Points []*PointError
}

// Error implements the error interface.
func (e *SweepError) Error() string {
	if len(e.Points) == 1 {
		return fmt.Sprintf("network: 1 frequency point failed: %v", e.Points[0])
	}
	return fmt.Sprintf("network: %d frequency points failed (first: %v)", len(e.Points), e.Points[0])
}

// Unwrap exposes the per-point errors for errors.Is / errors.As.
func (e *SweepError) Unwrap() []error {
	errs := make([]error, len(e.Points))
	for i, p := range e.Points {
		errs[i] = p
	}
	return errs
}

// ConvertOption configures tolerance and failure policy of
// per-point numerical operations.
type ConvertOption func(*convertConfig)

type convertConfig struct {
	tol          float64
	nanOnFailure bool
}

func applyConvertOptions(opts []ConvertOption) convertConfig {
	cfg := convertConfig{tol: DefaultTolerance}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithTolerance sets the reciprocal-condition threshold below which
// a per-point solve is reported singular. Values <= 0 keep
// [DefaultTolerance].
func WithTolerance(tol float64) ConvertOption {
	return func(cfg *convertConfig) {
		if tol > 0 {
			cfg.tol = tol
		}
	}
}

// WithNaNPolicy switches per-point failure handling from error
// reporting to NaN substitution: failed points yield all-NaN
// matrices and the operation returns no error for them. Exactly one
// of the two policies is ever active.
func WithNaNPolicy() ConvertOption {
	return func(cfg *convertConfig) { cfg.nanOnFailure = true }
}

// pointConverter converts one frequency point's matrix between two
// fixed domains given the per-port reference impedances.
type pointConverter func(m cmatrix.Matrix, z0 []complex128, tol float64) (cmatrix.Matrix, error)

// converters holds the direct conversion table keyed by
// (source, target) domain. Pairs not present are composed through S.
var converters = map[[2]Domain]pointConverter{
	{DomainS, DomainZ}:    sToZ,
	{DomainZ, DomainS}:    zToS,
	{DomainS, DomainY}:    sToY,
	{DomainY, DomainS}:    yToS,
	{DomainS, DomainABCD}: sToABCD,
	{DomainABCD, DomainS}: abcdToS,
	{DomainS, DomainT}:    sToT,
	{DomainT, DomainS}:    tToS,
}

// To converts the network's sweep into the requested parameter
// domain, one matrix per frequency point.
//
// Each point is converted independently; points where the conversion
// is singular are returned as NaN matrices and reported through a
// [SweepError] (or silently NaN-substituted under [WithNaNPolicy]).
// ABCD and T conversions require a 2-port network.
func (n *Network) To(target Domain, opts ...ConvertOption) ([]cmatrix.Matrix, error) {
	cfg := applyConvertOptions(opts)

	if (target == DomainABCD || target == DomainT) && n.Ports() != 2 {
		return nil, fmt.Errorf("%w: %s parameters of a %d-port", ErrTwoPortOnly, target, n.Ports())
	}

	out := make([]cmatrix.Matrix, len(n.s))
	if target == DomainS {
		for k := range n.s {
			out[k] = n.s[k].Clone()
		}
		return out, nil
	}

	conv := converters[[2]Domain{DomainS, target}]
	points := n.eachPoint(func(k int) error {
		m, err := conv(n.s[k], n.z0[k], cfg.tol)
		if err != nil {
			out[k] = cmatrix.NaN(n.Ports())
			return err
		}
		out[k] = m
		return nil
	})
	return out, sweepResult(points, cfg)
}

// FromMatrices constructs a Network from per-point matrices in the
// given source domain, converting to S internally. Frequencies,
// matrices and options follow the [New] contract.
func FromMatrices(source Domain, freqs []float64, ms []cmatrix.Matrix, opts ...Option) (*Network, error) {
	return fromMatrices(source, freqs, ms, nil, opts...)
}

// FromMatricesTol is [FromMatrices] with explicit conversion
// options for tolerance and NaN policy.
func FromMatricesTol(source Domain, freqs []float64, ms []cmatrix.Matrix, copts []ConvertOption, opts ...Option) (*Network, error) {
	return fromMatrices(source, freqs, ms, copts, opts...)
}

func fromMatrices(source Domain, freqs []float64, ms []cmatrix.Matrix, copts []ConvertOption, opts ...Option) (*Network, error) {
	if source == DomainS {
		return New(freqs, ms, opts...)
	}
	cfg := applyConvertOptions(copts)

	// Build a scaffold network first so impedance options resolve,
	// then replace the matrices with the converted S-data.
	scaffold, err := New(freqs, ms, opts...)
	if err != nil {
		return nil, err
	}
	if (source == DomainABCD || source == DomainT) && scaffold.Ports() != 2 {
		return nil, fmt.Errorf("%w: %s parameters of a %d-port", ErrTwoPortOnly, source, scaffold.Ports())
	}

	conv := converters[[2]Domain{source, DomainS}]
	points := scaffold.eachPoint(func(k int) error {
		m, err := conv(scaffold.s[k], scaffold.z0[k], cfg.tol)
		if err != nil {
			scaffold.s[k] = cmatrix.NaN(scaffold.Ports())
			return err
		}
		scaffold.s[k] = m
		return nil
	})
	if err := sweepResult(points, cfg); err != nil {
		return scaffold, err
	}
	return scaffold, nil
}

// sweepResult turns collected point errors into the operation's
// error value under the configured failure policy.
func sweepResult(points []*PointError, cfg convertConfig) error {
	if len(points) == 0 || cfg.nanOnFailure {
		return nil
	}
	return &SweepError{Points: points}
}

// sqrtDiag returns diag(sqrt(z0)) on the principal branch.
func sqrtDiag(z0 []complex128) cmatrix.Matrix {
	g := cmatrix.New(len(z0))
	for i, z := range z0 {
		g.Set(i, i, cmplx.Sqrt(z))
	}
	return g
}

// invSqrtDiag returns diag(1/sqrt(z0)).
func invSqrtDiag(z0 []complex128) cmatrix.Matrix {
	g := cmatrix.New(len(z0))
	for i, z := range z0 {
		g.Set(i, i, 1/cmplx.Sqrt(z))
	}
	return g
}

// sToZ computes Z = √z0 · (I−S)⁻¹ · (I+S) · √z0.
func sToZ(s cmatrix.Matrix, z0 []complex128, tol float64) (cmatrix.Matrix, error) {
	n := s.Dim()
	id := cmatrix.Identity(n)
	inv, err := cmatrix.Inverse(cmatrix.Sub(id, s), tol)
	if err != nil {
		return cmatrix.Matrix{}, fmt.Errorf("%w: %v", ErrSingularNetwork, err)
	}
	g := sqrtDiag(z0)
	return cmatrix.Mul(cmatrix.Mul(g, inv), cmatrix.Mul(cmatrix.Add(id, s), g)), nil
}

// zToS computes S = (Z'−I)(Z'+I)⁻¹ with Z' = z0^(−1/2) Z z0^(−1/2).
func zToS(z cmatrix.Matrix, z0 []complex128, tol float64) (cmatrix.Matrix, error) {
	n := z.Dim()
	gi := invSqrtDiag(z0)
	zn := cmatrix.Mul(cmatrix.Mul(gi, z), gi)
	id := cmatrix.Identity(n)
	inv, err := cmatrix.Inverse(cmatrix.Add(zn, id), tol)
	if err != nil {
		return cmatrix.Matrix{}, fmt.Errorf("%w: %v", ErrSingularNetwork, err)
	}
	return cmatrix.Mul(cmatrix.Sub(zn, id), inv), nil
}

// sToY computes Y = z0^(−1/2) · (I+S)⁻¹ · (I−S) · z0^(−1/2).
func sToY(s cmatrix.Matrix, z0 []complex128, tol float64) (cmatrix.Matrix, error) {
	n := s.Dim()
	id := cmatrix.Identity(n)
	inv, err := cmatrix.Inverse(cmatrix.Add(id, s), tol)
	if err != nil {
		return cmatrix.Matrix{}, fmt.Errorf("%w: %v", ErrSingularNetwork, err)
	}
	gi := invSqrtDiag(z0)
	return cmatrix.Mul(cmatrix.Mul(gi, inv), cmatrix.Mul(cmatrix.Sub(id, s), gi)), nil
}

// yToS computes S = (I−Y')(I+Y')⁻¹ with Y' = √z0 · Y · √z0.
func yToS(y cmatrix.Matrix, z0 []complex128, tol float64) (cmatrix.Matrix, error) {
	n := y.Dim()
	g := sqrtDiag(z0)
	yn := cmatrix.Mul(cmatrix.Mul(g, y), g)
	id := cmatrix.Identity(n)
	inv, err := cmatrix.Inverse(cmatrix.Add(id, yn), tol)
	if err != nil {
		return cmatrix.Matrix{}, fmt.Errorf("%w: %v", ErrSingularNetwork, err)
	}
	return cmatrix.Mul(cmatrix.Sub(id, yn), inv), nil
}

// sToABCD converts a 2-port S-matrix to chain parameters.
//
// With port impedances z1, z2:
//
//	A = ((1+S11)(1−S22) + S12·S21) / (2·S21) · √(z1/z2)
//	B = ((1+S11)(1+S22) − S12·S21) / (2·S21) · √(z1·z2)
//	C = ((1−S11)(1−S22) − S12·S21) / (2·S21) / √(z1·z2)
//	D = ((1−S11)(1+S22) + S12·S21) / (2·S21) · √(z2/z1)
//
// The conversion is singular when S21 vanishes (no through path).
func sToABCD(s cmatrix.Matrix, z0 []complex128, tol float64) (cmatrix.Matrix, error) {
	s11, s12 := s.At(0, 0), s.At(0, 1)
	s21, s22 := s.At(1, 0), s.At(1, 1)
	if cmplx.Abs(s21) < tol {
		return cmatrix.Matrix{}, fmt.Errorf("%w: S21 ≈ 0, no through path", ErrSingularNetwork)
	}

	r1 := cmplx.Sqrt(z0[0])
	r2 := cmplx.Sqrt(z0[1])
	den := 2 * s21

	out := cmatrix.New(2)
	out.Set(0, 0, ((1+s11)*(1-s22)+s12*s21)/den*(r1/r2))
	out.Set(0, 1, ((1+s11)*(1+s22)-s12*s21)/den*(r1*r2))
	out.Set(1, 0, ((1-s11)*(1-s22)-s12*s21)/den/(r1*r2))
	out.Set(1, 1, ((1-s11)*(1+s22)+s12*s21)/den*(r2/r1))
	return out, nil
}

// abcdToS converts 2-port chain parameters back to S. With port
// impedances z1, z2 and Δ = A·z2 + B + C·z1·z2 + D·z1:
//
//	S11 = (A·z2 + B − C·z1·z2 − D·z1) / Δ
//	S12 = 2·(A·D − B·C)·√(z1·z2) / Δ
//	S21 = 2·√(z1·z2) / Δ
//	S22 = (−A·z2 + B − C·z1·z2 + D·z1) / Δ
func abcdToS(m cmatrix.Matrix, z0 []complex128, tol float64) (cmatrix.Matrix, error) {
	a, b := m.At(0, 0), m.At(0, 1)
	c, d := m.At(1, 0), m.At(1, 1)
	z1, z2 := z0[0], z0[1]

	den := a*z2 + b + c*z1*z2 + d*z1
	scale := cmplx.Abs(a*z2) + cmplx.Abs(b) + cmplx.Abs(c*z1*z2) + cmplx.Abs(d*z1)
	if scale == 0 || cmplx.Abs(den) < tol*scale {
		return cmatrix.Matrix{}, fmt.Errorf("%w: chain denominator ≈ 0", ErrSingularNetwork)
	}

	r := cmplx.Sqrt(z1 * z2)
	out := cmatrix.New(2)
	out.Set(0, 0, (a*z2+b-c*z1*z2-d*z1)/den)
	out.Set(0, 1, 2*(a*d-b*c)*r/den)
	out.Set(1, 0, 2*r/den)
	out.Set(1, 1, (-a*z2+b-c*z1*z2+d*z1)/den)
	return out, nil
}

// sToT converts a 2-port S-matrix to transfer parameters with the
// cascade convention (a1,b1)ᵀ = T·(b2,a2)ᵀ, so that chaining
// networks multiplies their T-matrices:
//
//	T = 1/S21 · [ S12·S21 − S11·S22   S11 ]
//	            [ −S22                 1  ]
//
// An ideal thru has T = I under this convention. The conversion is
// singular when S21 vanishes.
func sToT(s cmatrix.Matrix, _ []complex128, tol float64) (cmatrix.Matrix, error) {
	s11, s12 := s.At(0, 0), s.At(0, 1)
	s21, s22 := s.At(1, 0), s.At(1, 1)
	if cmplx.Abs(s21) < tol {
		return cmatrix.Matrix{}, fmt.Errorf("%w: S21 ≈ 0, no through path", ErrSingularNetwork)
	}

	out := cmatrix.New(2)
	out.Set(0, 0, (s12*s21-s11*s22)/s21)
	out.Set(0, 1, s11/s21)
	out.Set(1, 0, -s22/s21)
	out.Set(1, 1, 1/s21)
	return out, nil
}

// tToS inverts [sToT]:
//
//	S11 = T12/T22    S12 = det(T)/T22
//	S21 = 1/T22      S22 = −T21/T22
func tToS(t cmatrix.Matrix, _ []complex128, tol float64) (cmatrix.Matrix, error) {
	t11, t12 := t.At(0, 0), t.At(0, 1)
	t21, t22 := t.At(1, 0), t.At(1, 1)
	if cmplx.Abs(t22) < tol {
		return cmatrix.Matrix{}, fmt.Errorf("%w: T22 ≈ 0", ErrSingularNetwork)
	}

	out := cmatrix.New(2)
	out.Set(0, 0, t12/t22)
	out.Set(0, 1, (t11*t22-t12*t21)/t22)
	out.Set(1, 0, 1/t22)
	out.Set(1, 1, -t21/t22)
	return out, nil
}
