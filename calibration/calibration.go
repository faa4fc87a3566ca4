package calibration

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cwbudde/algo-rf/internal/cmatrix"
	"github.com/cwbudde/algo-rf/network"
)

// Calibration errors.
var (
	ErrInsufficientStandards = errors.New("calibration: insufficient standards")
	ErrMissingStandard       = errors.New("calibration: required standard missing")
	ErrDegenerateLine        = errors.New("calibration: line indistinguishable from thru")
	ErrNonReflective         = errors.New("calibration: reflect standard is not reflective")
	ErrModel                 = errors.New("calibration: unknown error model")
	ErrNotSolved             = errors.New("calibration: error box holds no solution for this point")
)

// Model selects the systematic error model to solve.
type Model int

const (
	// ModelOnePort is the 3-term reflection model: directivity,
	// source match and reflection tracking, solved from at least
	// three known one-port standards.
	ModelOnePort Model = iota

	// ModelTwelveTerm is the full SOLT 2-port model with forward and
	// reverse error terms and optional isolation.
	ModelTwelveTerm

	// ModelTRL is the 8-term thru/reflect/line model. The reflect
	// standard need not be fully known; only a rough estimate of its
	// reflection coefficient is required to resolve a sign.
	ModelTRL
)

// String returns the conventional model name.
func (m Model) String() string {
	switch m {
	case ModelOnePort:
		return "one-port"
	case ModelTwelveTerm:
		return "twelve-term"
	case ModelTRL:
		return "TRL"
	}
	return fmt.Sprintf("Model(%d)", int(m))
}

// Standard pairs the ideal (defined) response of a calibration
// standard with its raw measurement. Both networks must share the
// same frequency grid; grids are never interpolated.
//
// Roles are inferred from structure first and name second:
//
//   - a standard whose Ideal is a 1-port is a reflection standard,
//     measured as a 1-port (one-port model) or as a 2-port with the
//     standard connected to both ports (2-port models);
//   - a standard whose Ideal is a 2-port is a thru or, for TRL, a
//     line when its name contains "line";
//   - a standard named "isolation" is the isolation measurement of
//     the twelve-term model; its Ideal may be nil.
type Standard struct {
	Name     string
	Ideal    *network.Network
	Measured *network.Network
}

func (s Standard) isIsolation() bool {
	return strings.Contains(strings.ToLower(s.Name), "isol")
}

func (s Standard) isLine() bool {
	return strings.Contains(strings.ToLower(s.Name), "line")
}

func (s Standard) isReflect() bool {
	if strings.Contains(strings.ToLower(s.Name), "reflect") {
		return true
	}
	return s.Ideal != nil && s.Ideal.Ports() == 1
}

// Calibration is a configured solver for one error model.
type Calibration struct {
	model          Model
	tol            float64
	nominalReflect complex128
}

// SolveOption configures a [Calibration].
type SolveOption func(*Calibration)

// WithTolerance sets the reciprocal-condition floor below which a
// per-point solve is reported as singular. Defaults to
// [network.DefaultTolerance].
func WithTolerance(tol float64) SolveOption {
	return func(c *Calibration) {
		if tol > 0 {
			c.tol = tol
		}
	}
}

// WithNominalReflect sets the rough a-priori reflection coefficient
// of the TRL reflect standard, used only to resolve the square-root
// sign of the solved reflect. Defaults to −1 (a short).
func WithNominalReflect(gamma complex128) SolveOption {
	return func(c *Calibration) { c.nominalReflect = gamma }
}

// New returns a solver for the given error model.
func New(model Model, opts ...SolveOption) *Calibration {
	c := &Calibration{
		model:          model,
		tol:            network.DefaultTolerance,
		nominalReflect: -1,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Solve determines the error terms of the configured model from the
// given standards, independently at every frequency point.
//
// Structural problems (too few standards, mismatched grids, wrong
// port counts) fail immediately with a nil box. Numerical failures
// at individual frequency points leave NaN terms at those points and
// are reported through a [network.SweepError] alongside a usable
// box; [ErrorBox.Apply] re-reports such points as failed.
func (c *Calibration) Solve(standards []Standard) (*ErrorBox, error) {
	freqs, err := commonGrid(standards)
	if err != nil {
		return nil, err
	}
	switch c.model {
	case ModelOnePort:
		return c.solveOnePort(freqs, standards)
	case ModelTwelveTerm:
		return c.solveTwelveTerm(freqs, standards)
	case ModelTRL:
		return c.solveTRL(freqs, standards)
	}
	return nil, fmt.Errorf("%w: %d", ErrModel, int(c.model))
}

// commonGrid verifies that every standard's measurement and ideal
// share one frequency grid and returns that grid.
func commonGrid(standards []Standard) ([]float64, error) {
	if len(standards) == 0 {
		return nil, fmt.Errorf("%w: no standards", ErrInsufficientStandards)
	}
	var ref *network.Network
	for _, std := range standards {
		if std.Measured == nil {
			return nil, fmt.Errorf("%w: standard %q has no measurement", ErrMissingStandard, std.Name)
		}
		if ref == nil {
			ref = std.Measured
		}
		if !ref.SameGrid(std.Measured) {
			return nil, fmt.Errorf("%w: standard %q measurement", network.ErrFrequencyGridMismatch, std.Name)
		}
		if std.Ideal != nil && !ref.SameGrid(std.Ideal) {
			return nil, fmt.Errorf("%w: standard %q ideal", network.ErrFrequencyGridMismatch, std.Name)
		}
	}
	return ref.Frequencies(), nil
}

// ErrorBox is a solved error model. Boxes are produced by
// [Calibration.Solve] and consumed by [ErrorBox.Apply]; the term
// accessors expose the solution for inspection.
type ErrorBox struct {
	model Model
	freqs []float64
	tol   float64

	oneport []OnePortTerms // ModelOnePort
	twelve  []TwelveTerms  // ModelTwelveTerm

	// ModelTRL: per-point error adapters in the T domain, the line
	// propagation factor e^(−γΔl) and the solved reflect.
	fwdT     []cmatrix.Matrix
	revT     []cmatrix.Matrix
	lineProp []complex128
	reflect  []complex128

	points []*network.PointError // per-point solve failures
}

// Model returns the error model the box was solved for.
func (e *ErrorBox) Model() Model { return e.model }

// Frequencies returns a copy of the solution grid.
func (e *ErrorBox) Frequencies() []float64 {
	return append([]float64(nil), e.freqs...)
}

// SolveErrors returns the per-point failures recorded during the
// solve, or nil if every point solved cleanly.
func (e *ErrorBox) SolveErrors() []*network.PointError {
	return append([]*network.PointError(nil), e.points...)
}

// OnePort returns the 3-term solution at frequency point k. Valid
// only for [ModelOnePort] boxes.
func (e *ErrorBox) OnePort(k int) (OnePortTerms, error) {
	if e.model != ModelOnePort {
		return OnePortTerms{}, fmt.Errorf("%w: %s box has no one-port terms", ErrModel, e.model)
	}
	return e.oneport[k], nil
}

// TwelveTerm returns the 12-term solution at frequency point k.
// Valid only for [ModelTwelveTerm] boxes.
func (e *ErrorBox) TwelveTerm(k int) (TwelveTerms, error) {
	if e.model != ModelTwelveTerm {
		return TwelveTerms{}, fmt.Errorf("%w: %s box has no twelve-term solution", ErrModel, e.model)
	}
	return e.twelve[k], nil
}

// LinePropagation returns the solved propagation factor e^(−γΔl) of
// the TRL line (relative to the thru) at frequency point k. Valid
// only for [ModelTRL] boxes.
func (e *ErrorBox) LinePropagation(k int) (complex128, error) {
	if e.model != ModelTRL {
		return 0, fmt.Errorf("%w: %s box has no line solution", ErrModel, e.model)
	}
	return e.lineProp[k], nil
}

// ReflectEstimate returns the solved reflection coefficient of the
// TRL reflect standard at frequency point k. Valid only for
// [ModelTRL] boxes.
func (e *ErrorBox) ReflectEstimate(k int) (complex128, error) {
	if e.model != ModelTRL {
		return 0, fmt.Errorf("%w: %s box has no reflect solution", ErrModel, e.model)
	}
	return e.reflect[k], nil
}

// ErrorNetworks returns the solved TRL error adapters as 2-port
// networks, port-1 side first. Port 1 of each adapter faces the
// instrument and port 2 the device reference plane. Valid only for
// [ModelTRL] boxes.
//
// The adapters are determined only up to a common scalar on their
// T-matrices; the returned pair uses the normalization picked by the
// solve, which cancels in any de-embedding.
func (e *ErrorBox) ErrorNetworks() (*network.Network, *network.Network, error) {
	if e.model != ModelTRL {
		return nil, nil, fmt.Errorf("%w: %s box has no error adapters", ErrModel, e.model)
	}
	copts := []network.ConvertOption{network.WithTolerance(e.tol), network.WithNaNPolicy()}
	fwd, err := network.FromMatricesTol(network.DomainT, e.freqs, e.fwdT, copts)
	if err != nil {
		return nil, nil, err
	}
	rev, err := network.FromMatricesTol(network.DomainT, e.freqs, e.revT, copts)
	if err != nil {
		return nil, nil, err
	}
	return fwd, rev, nil
}

// Apply removes the solved systematic error from a raw measurement.
// The raw network must share the solution grid and have 1 port for
// [ModelOnePort] and 2 ports otherwise.
//
// Correction runs independently per frequency point. Points that
// fail numerically, or that already failed during the solve, are NaN
// in the result and collected into a [network.SweepError]; the
// remaining points are valid.
func (e *ErrorBox) Apply(raw *network.Network) (*network.Network, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: no raw measurement", ErrMissingStandard)
	}
	if !sameFreqs(e.freqs, raw.Frequencies()) {
		return nil, fmt.Errorf("%w: raw measurement grid differs from solution grid", network.ErrFrequencyGridMismatch)
	}
	wantPorts := 2
	if e.model == ModelOnePort {
		wantPorts = 1
	}
	if raw.Ports() != wantPorts {
		return nil, fmt.Errorf("%w: %s correction of a %d-port", network.ErrPortCountMismatch, e.model, raw.Ports())
	}

	switch e.model {
	case ModelOnePort:
		return e.applyOnePort(raw)
	case ModelTwelveTerm:
		return e.applyTwelveTerm(raw)
	case ModelTRL:
		return e.applyTRL(raw)
	}
	return nil, fmt.Errorf("%w: %d", ErrModel, int(e.model))
}

func sameFreqs(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// solvedAt reports whether point k solved cleanly.
func (e *ErrorBox) solvedAt(k int) bool {
	for _, p := range e.points {
		if p.Index == k {
			return false
		}
	}
	return true
}

// resultNetwork assembles corrected S-matrices into a network that
// keeps the raw measurement's reference impedances, and pairs it
// with the collected per-point failures.
func resultNetwork(raw *network.Network, s []cmatrix.Matrix, points []*network.PointError) (*network.Network, error) {
	z0 := make([][]complex128, raw.NumFreqs())
	for k := range z0 {
		z0[k] = raw.Z0(k)
	}
	out, err := network.New(raw.Frequencies(), s, network.WithSweepZ0(z0))
	if err != nil {
		return nil, err
	}
	if len(points) > 0 {
		return out, &network.SweepError{Points: points}
	}
	return out, nil
}
