package calibration

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/cwbudde/algo-rf/internal/cmatrix"
	"github.com/cwbudde/algo-rf/network"
)

// TwelveTerms is the full SOLT error model at one frequency point.
// The forward terms describe the measurement with port 1 driven, the
// reverse terms with port 2 driven.
type TwelveTerms struct {
	ForwardDirectivity          complex128 // e00
	ForwardSourceMatch          complex128 // e11
	ForwardReflectionTracking   complex128 // e10·e01
	ForwardLoadMatch            complex128 // e22
	ForwardTransmissionTracking complex128 // e10·e32
	ForwardIsolation            complex128 // e30

	ReverseDirectivity          complex128 // e33
	ReverseSourceMatch          complex128 // e22'
	ReverseReflectionTracking   complex128 // e23·e32'
	ReverseLoadMatch            complex128 // e11'
	ReverseTransmissionTracking complex128 // e23·e01'
	ReverseIsolation            complex128 // e03
}

func nanTwelve() TwelveTerms {
	n := cmplx.NaN()
	return TwelveTerms{
		ForwardDirectivity: n, ForwardSourceMatch: n, ForwardReflectionTracking: n,
		ForwardLoadMatch: n, ForwardTransmissionTracking: n, ForwardIsolation: n,
		ReverseDirectivity: n, ReverseSourceMatch: n, ReverseReflectionTracking: n,
		ReverseLoadMatch: n, ReverseTransmissionTracking: n, ReverseIsolation: n,
	}
}

func (c *Calibration) solveTwelveTerm(freqs []float64, standards []Standard) (*ErrorBox, error) {
	var refl []Standard
	var thru, iso *Standard
	for i := range standards {
		std := standards[i]
		switch {
		case std.isIsolation():
			if std.Measured.Ports() != 2 {
				return nil, fmt.Errorf("%w: isolation measurement must be a 2-port", network.ErrPortCountMismatch)
			}
			iso = &standards[i]
		case std.Ideal == nil:
			return nil, fmt.Errorf("%w: standard %q has no ideal", ErrMissingStandard, std.Name)
		case std.Ideal.Ports() == 1:
			if std.Measured.Ports() != 2 {
				return nil, fmt.Errorf("%w: reflection standard %q must be measured as a 2-port",
					network.ErrPortCountMismatch, std.Name)
			}
			refl = append(refl, std)
		case std.Ideal.Ports() == 2:
			if thru != nil {
				return nil, fmt.Errorf("%w: more than one thru standard", ErrInsufficientStandards)
			}
			if std.Measured.Ports() != 2 {
				return nil, fmt.Errorf("%w: thru standard %q must be measured as a 2-port",
					network.ErrPortCountMismatch, std.Name)
			}
			thru = &standards[i]
		default:
			return nil, fmt.Errorf("%w: standard %q has %d ports", network.ErrPortCountMismatch,
				std.Name, std.Ideal.Ports())
		}
	}
	if len(refl) < 3 {
		return nil, fmt.Errorf("%w: twelve-term model needs 3 reflection standards, got %d",
			ErrInsufficientStandards, len(refl))
	}
	if thru == nil {
		return nil, fmt.Errorf("%w: thru", ErrMissingStandard)
	}

	box := &ErrorBox{
		model:  ModelTwelveTerm,
		freqs:  freqs,
		tol:    c.tol,
		twelve: make([]TwelveTerms, len(freqs)),
	}
	ideal := make([]complex128, len(refl))
	m11 := make([]complex128, len(refl))
	m22 := make([]complex128, len(refl))
	for k := range freqs {
		for i, std := range refl {
			ideal[i] = std.Ideal.SEntry(k, 0, 0)
			m11[i] = std.Measured.SEntry(k, 0, 0)
			m22[i] = std.Measured.SEntry(k, 1, 1)
		}
		terms, err := solveTwelvePoint(ideal, m11, m22, thru, iso, k, c.tol)
		if err != nil {
			box.twelve[k] = nanTwelve()
			box.points = append(box.points, &network.PointError{Index: k, Freq: freqs[k], Err: err})
			continue
		}
		box.twelve[k] = terms
	}
	if len(box.points) > 0 {
		return box, &network.SweepError{Points: box.points}
	}
	return box, nil
}

// solveTwelvePoint determines all twelve error terms at frequency
// point k: one-port solves on each port for the reflection terms,
// then the thru measurement for load match and transmission
// tracking.
func solveTwelvePoint(ideal, m11, m22 []complex128, thru, iso *Standard, k int, tol float64) (TwelveTerms, error) {
	fwd, err := solveReflectionTerms(ideal, m11, tol)
	if err != nil {
		return TwelveTerms{}, fmt.Errorf("port 1 reflection terms: %w", err)
	}
	rev, err := solveReflectionTerms(ideal, m22, tol)
	if err != nil {
		return TwelveTerms{}, fmt.Errorf("port 2 reflection terms: %w", err)
	}

	var iso30, iso03 complex128
	if iso != nil {
		iso30 = iso.Measured.SEntry(k, 1, 0)
		iso03 = iso.Measured.SEntry(k, 0, 1)
	}

	// Thru ideal and measurement.
	t11 := thru.Ideal.SEntry(k, 0, 0)
	t21 := thru.Ideal.SEntry(k, 1, 0)
	t12 := thru.Ideal.SEntry(k, 0, 1)
	t22 := thru.Ideal.SEntry(k, 1, 1)
	q11 := thru.Measured.SEntry(k, 0, 0)
	q21 := thru.Measured.SEntry(k, 1, 0)
	q12 := thru.Measured.SEntry(k, 0, 1)
	q22 := thru.Measured.SEntry(k, 1, 1)

	// Load match: unterminate the thru reflection, then invert the
	// thru's input-reflection bilinear to expose the far-side match.
	a1, err := unterminate(q11, fwd, tol)
	if err != nil {
		return TwelveTerms{}, fmt.Errorf("thru port 1: %w", err)
	}
	elf, err := safeDiv(a1-t11, t12*t21+t22*(a1-t11), tol)
	if err != nil {
		return TwelveTerms{}, fmt.Errorf("forward load match: %w", err)
	}
	a2, err := unterminate(q22, rev, tol)
	if err != nil {
		return TwelveTerms{}, fmt.Errorf("thru port 2: %w", err)
	}
	elr, err := safeDiv(a2-t22, t21*t12+t11*(a2-t22), tol)
	if err != nil {
		return TwelveTerms{}, fmt.Errorf("reverse load match: %w", err)
	}

	// Transmission tracking from the thru's through path.
	df := (1-fwd.SourceMatch*t11)*(1-elf*t22) - fwd.SourceMatch*elf*t21*t12
	etf, err := safeDiv((q21-iso30)*df, t21, tol)
	if err != nil {
		return TwelveTerms{}, fmt.Errorf("forward transmission tracking: %w", err)
	}
	dr := (1-rev.SourceMatch*t22)*(1-elr*t11) - rev.SourceMatch*elr*t21*t12
	etr, err := safeDiv((q12-iso03)*dr, t12, tol)
	if err != nil {
		return TwelveTerms{}, fmt.Errorf("reverse transmission tracking: %w", err)
	}

	return TwelveTerms{
		ForwardDirectivity:          fwd.Directivity,
		ForwardSourceMatch:          fwd.SourceMatch,
		ForwardReflectionTracking:   fwd.ReflectionTracking,
		ForwardLoadMatch:            elf,
		ForwardTransmissionTracking: etf,
		ForwardIsolation:            iso30,

		ReverseDirectivity:          rev.Directivity,
		ReverseSourceMatch:          rev.SourceMatch,
		ReverseReflectionTracking:   rev.ReflectionTracking,
		ReverseLoadMatch:            elr,
		ReverseTransmissionTracking: etr,
		ReverseIsolation:            iso03,
	}, nil
}

// safeDiv divides num by den, failing with ErrSingularNetwork when
// the denominator is negligible.
func safeDiv(num, den complex128, tol float64) (complex128, error) {
	abs := cmplx.Abs(den)
	if math.IsNaN(abs) || abs < tol*math.Max(1, cmplx.Abs(num)) {
		return 0, fmt.Errorf("%w: denominator %v", network.ErrSingularNetwork, den)
	}
	return num / den, nil
}

// applyTwelveTerm removes the twelve-term model from a raw 2-port
// measurement using the standard correction equations.
func (e *ErrorBox) applyTwelveTerm(raw *network.Network) (*network.Network, error) {
	s := make([]cmatrix.Matrix, raw.NumFreqs())
	var points []*network.PointError
	for k := range s {
		fail := func(err error) {
			s[k] = cmatrix.NaN(2)
			points = append(points, &network.PointError{Index: k, Freq: raw.Frequency(k), Err: err})
		}
		if !e.solvedAt(k) {
			fail(ErrNotSolved)
			continue
		}
		t := e.twelve[k]

		a, err := safeDiv(raw.SEntry(k, 0, 0)-t.ForwardDirectivity, t.ForwardReflectionTracking, e.tol)
		if err != nil {
			fail(err)
			continue
		}
		b, err := safeDiv(raw.SEntry(k, 1, 0)-t.ForwardIsolation, t.ForwardTransmissionTracking, e.tol)
		if err != nil {
			fail(err)
			continue
		}
		cc, err := safeDiv(raw.SEntry(k, 0, 1)-t.ReverseIsolation, t.ReverseTransmissionTracking, e.tol)
		if err != nil {
			fail(err)
			continue
		}
		d, err := safeDiv(raw.SEntry(k, 1, 1)-t.ReverseDirectivity, t.ReverseReflectionTracking, e.tol)
		if err != nil {
			fail(err)
			continue
		}

		esf := t.ForwardSourceMatch
		esr := t.ReverseSourceMatch
		elf := t.ForwardLoadMatch
		elr := t.ReverseLoadMatch

		den := (1+a*esf)*(1+d*esr) - b*cc*elf*elr
		if abs := cmplx.Abs(den); math.IsNaN(abs) || abs < e.tol {
			fail(fmt.Errorf("%w: correction denominator %v", network.ErrSingularNetwork, den))
			continue
		}

		m := cmatrix.New(2)
		m.Set(0, 0, (a*(1+d*esr)-b*cc*elf)/den)
		m.Set(1, 0, b*(1+d*(esr-elf))/den)
		m.Set(0, 1, cc*(1+a*(esf-elr))/den)
		m.Set(1, 1, (d*(1+a*esf)-b*cc*elr)/den)
		s[k] = m
	}
	return resultNetwork(raw, s, points)
}
