package calibration

import (
	"errors"
	"fmt"
	"math/cmplx"
	"sort"

	"github.com/cwbudde/algo-rf/internal/cmatrix"
	"github.com/cwbudde/algo-rf/network"
)

// solveTRL determines the two 8-term error adapters from thru,
// reflect and line measurements.
//
// With flush-thru T-matrix X·Y and line T-matrix X·L·Y, the products
// M = Tline·Tthru⁻¹ = X·L·X⁻¹ and N = Tthru⁻¹·Tline = Y⁻¹·L·Y are
// similar to the diagonal line propagation L = diag(e^(−γΔl),
// e^(+γΔl)). The eigenvectors of M are the columns of X, the left
// eigenvectors of N the rows of Y, each known up to one scale. The
// thru fixes the products of paired scales and the reflect — the
// same unknown Γ seen through both adapters — fixes their ratio up
// to a square-root sign, resolved against the nominal reflect.
func (c *Calibration) solveTRL(freqs []float64, standards []Standard) (*ErrorBox, error) {
	var thru, line, refl *Standard
	for i := range standards {
		std := standards[i]
		switch {
		case std.isIsolation():
			return nil, fmt.Errorf("%w: TRL has no isolation measurement", ErrMissingStandard)
		case std.isReflect(), std.Measured.Ports() == 1:
			if refl != nil {
				return nil, fmt.Errorf("%w: more than one reflect standard", ErrInsufficientStandards)
			}
			if std.Measured.Ports() != 2 {
				return nil, fmt.Errorf("%w: reflect standard %q must be measured as a 2-port",
					network.ErrPortCountMismatch, std.Name)
			}
			refl = &standards[i]
		case std.isLine():
			if line != nil {
				return nil, fmt.Errorf("%w: more than one line standard", ErrInsufficientStandards)
			}
			line = &standards[i]
		case thru == nil:
			thru = &standards[i]
		case line == nil:
			line = &standards[i]
		default:
			return nil, fmt.Errorf("%w: more than one line standard", ErrInsufficientStandards)
		}
	}
	if thru == nil || line == nil || refl == nil {
		return nil, fmt.Errorf("%w: TRL needs thru, reflect and line", ErrMissingStandard)
	}
	if thru.Measured.Ports() != 2 || line.Measured.Ports() != 2 {
		return nil, fmt.Errorf("%w: thru and line must be measured as 2-ports", network.ErrPortCountMismatch)
	}

	copts := []network.ConvertOption{network.WithTolerance(c.tol)}
	tThru, errThru := thru.Measured.To(network.DomainT, copts...)
	thruFail, err := sweepFailures(errThru)
	if err != nil {
		return nil, err
	}
	tLine, errLine := line.Measured.To(network.DomainT, copts...)
	lineFail, err := sweepFailures(errLine)
	if err != nil {
		return nil, err
	}

	box := &ErrorBox{
		model:    ModelTRL,
		freqs:    freqs,
		tol:      c.tol,
		fwdT:     make([]cmatrix.Matrix, len(freqs)),
		revT:     make([]cmatrix.Matrix, len(freqs)),
		lineProp: make([]complex128, len(freqs)),
		reflect:  make([]complex128, len(freqs)),
	}
	for k := range freqs {
		fail := func(err error) {
			box.fwdT[k] = cmatrix.NaN(2)
			box.revT[k] = cmatrix.NaN(2)
			box.lineProp[k] = cmplx.NaN()
			box.reflect[k] = cmplx.NaN()
			box.points = append(box.points, &network.PointError{Index: k, Freq: freqs[k], Err: err})
		}
		if cause, ok := thruFail[k]; ok {
			fail(fmt.Errorf("thru measurement: %w", cause))
			continue
		}
		if cause, ok := lineFail[k]; ok {
			fail(fmt.Errorf("line measurement: %w", cause))
			continue
		}

		g1 := refl.Measured.SEntry(k, 0, 0)
		g2 := refl.Measured.SEntry(k, 1, 1)
		x, y, prop, gamma, err := solveTRLPoint(tThru[k], tLine[k], g1, g2,
			c.lineEstimate(thru, line, k), c.nominalReflect, c.tol)
		if err != nil {
			fail(err)
			continue
		}
		box.fwdT[k] = x
		box.revT[k] = y
		box.lineProp[k] = prop
		box.reflect[k] = gamma
	}
	if len(box.points) > 0 {
		return box, &network.SweepError{Points: box.points}
	}
	return box, nil
}

// lineEstimate returns the a-priori propagation factor of the line
// relative to the thru, used only to attach the eigenvalue pair to
// the right adapter columns. Zero means no estimate.
func (c *Calibration) lineEstimate(thru, line *Standard, k int) complex128 {
	if line.Ideal == nil || line.Ideal.Ports() != 2 {
		return 0
	}
	est := line.Ideal.SEntry(k, 1, 0)
	if thru.Ideal != nil && thru.Ideal.Ports() == 2 {
		if ref := thru.Ideal.SEntry(k, 1, 0); ref != 0 {
			est /= ref
		}
	}
	return est
}

func solveTRLPoint(tt, tl cmatrix.Matrix, g1, g2, estimate, nominal complex128, tol float64) (x, y cmatrix.Matrix, prop, gamma complex128, err error) {
	ttInv, err := cmatrix.Inverse(tt, tol)
	if err != nil {
		return x, y, 0, 0, fmt.Errorf("thru: %w", err)
	}
	m := cmatrix.Mul(tl, ttInv)
	n := cmatrix.Mul(ttInv, tl)

	l1, l2, err := cmatrix.Eigen2(m)
	if err != nil {
		return x, y, 0, 0, err
	}
	if cmplx.Abs(l1-l2) < 1e-6*(cmplx.Abs(l1)+cmplx.Abs(l2)) {
		return x, y, 0, 0, ErrDegenerateLine
	}
	ls, ll := orderEigen(l1, l2, estimate)

	vs, err := cmatrix.Eigenvector2(m, ls)
	if err != nil {
		return x, y, 0, 0, err
	}
	vl, err := cmatrix.Eigenvector2(m, ll)
	if err != nil {
		return x, y, 0, 0, err
	}
	nt := transpose2(n)
	us, err := cmatrix.Eigenvector2(nt, ls)
	if err != nil {
		return x, y, 0, 0, err
	}
	ul, err := cmatrix.Eigenvector2(nt, ll)
	if err != nil {
		return x, y, 0, 0, err
	}

	// Thru fixes the scale products p = s1·t1 and q = s2·t2 in
	// Tthru = p·(vs ⊗ us) + q·(vl ⊗ ul).
	rows := make([][]complex128, 0, 4)
	rhs := make([]complex128, 0, 4)
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			rows = append(rows, []complex128{vs[i] * us[j], vl[i] * ul[j]})
			rhs = append(rhs, tt.At(i, j))
		}
	}
	pq, err := leastSquares(rows, rhs, tol)
	if err != nil {
		return x, y, 0, 0, fmt.Errorf("thru scale fit: %w", err)
	}
	p, q := pq[0], pq[1]

	// The reflect seen through each adapter: Γ1m = (x11·Γ + x12) /
	// (x21·Γ + x22) on port 1 and the mirrored bilinear on port 2.
	// Inverting with the second column of X scaled by the unknown ρ
	// gives Γ = ρ·A from port 1 and Γ = B/ρ from port 2, so
	// Γ = ±√(A·B).
	a, err := safeDiv(vl[0]-vl[1]*g1, vs[1]*g1-vs[0], tol)
	if err != nil {
		return x, y, 0, 0, fmt.Errorf("reflect port 1: %w", err)
	}
	b, err := safeDiv(q*(ul[0]+ul[1]*g2), p*(us[0]+us[1]*g2), tol)
	if err != nil {
		return x, y, 0, 0, fmt.Errorf("reflect port 2: %w", err)
	}

	gamma = cmplx.Sqrt(a * b)
	if cmplx.Abs(-gamma-nominal) < cmplx.Abs(gamma-nominal) {
		gamma = -gamma
	}
	rho, err := safeDiv(gamma, a, tol)
	if err != nil {
		return x, y, 0, 0, fmt.Errorf("%w: solved reflect %v", ErrNonReflective, gamma)
	}

	x = cmatrix.New(2)
	x.Set(0, 0, vs[0])
	x.Set(1, 0, vs[1])
	x.Set(0, 1, rho*vl[0])
	x.Set(1, 1, rho*vl[1])

	y = cmatrix.New(2)
	y.Set(0, 0, p*us[0])
	y.Set(0, 1, p*us[1])
	y.Set(1, 0, q/rho*ul[0])
	y.Set(1, 1, q/rho*ul[1])

	return x, y, ls, gamma, nil
}

// orderEigen attaches the eigenvalue pair to the line's propagation
// directions: the first return is e^(−γΔl). With an a-priori
// estimate the closer eigenvalue wins; without one the smaller
// magnitude does (a lossy line attenuates), with the phase sign
// breaking exact ties.
func orderEigen(l1, l2, estimate complex128) (ls, ll complex128) {
	if estimate != 0 {
		if cmplx.Abs(l1-estimate) <= cmplx.Abs(l2-estimate) {
			return l1, l2
		}
		return l2, l1
	}
	a1, a2 := cmplx.Abs(l1), cmplx.Abs(l2)
	switch {
	case a1 < a2:
		return l1, l2
	case a2 < a1:
		return l2, l1
	case imag(l1) <= imag(l2):
		return l1, l2
	}
	return l2, l1
}

func transpose2(m cmatrix.Matrix) cmatrix.Matrix {
	t := cmatrix.New(2)
	t.Set(0, 0, m.At(0, 0))
	t.Set(0, 1, m.At(1, 0))
	t.Set(1, 0, m.At(0, 1))
	t.Set(1, 1, m.At(1, 1))
	return t
}

// sweepFailures splits a sweep-wide error into its per-point causes.
// Non-sweep errors pass through unchanged.
func sweepFailures(err error) (map[int]error, error) {
	if err == nil {
		return nil, nil
	}
	var se *network.SweepError
	if !errors.As(err, &se) {
		return nil, err
	}
	m := make(map[int]error, len(se.Points))
	for _, p := range se.Points {
		m[p.Index] = p.Err
	}
	return m, nil
}

// applyTRL de-embeds the solved adapters: Tdut = X⁻¹·Traw·Y⁻¹.
func (e *ErrorBox) applyTRL(raw *network.Network) (*network.Network, error) {
	rawT, errRaw := raw.To(network.DomainT, network.WithTolerance(e.tol))
	rawFail, err := sweepFailures(errRaw)
	if err != nil {
		return nil, err
	}

	failures := make(map[int]error)
	tc := make([]cmatrix.Matrix, raw.NumFreqs())
	for k := range tc {
		fail := func(err error) {
			tc[k] = cmatrix.NaN(2)
			failures[k] = err
		}
		if !e.solvedAt(k) {
			fail(ErrNotSolved)
			continue
		}
		if cause, ok := rawFail[k]; ok {
			fail(cause)
			continue
		}
		xInv, err := cmatrix.Inverse(e.fwdT[k], e.tol)
		if err != nil {
			fail(err)
			continue
		}
		yInv, err := cmatrix.Inverse(e.revT[k], e.tol)
		if err != nil {
			fail(err)
			continue
		}
		tc[k] = cmatrix.Mul(cmatrix.Mul(xInv, rawT[k]), yInv)
	}

	z0 := make([][]complex128, raw.NumFreqs())
	for k := range z0 {
		z0[k] = raw.Z0(k)
	}
	out, errConv := network.FromMatricesTol(network.DomainT, raw.Frequencies(), tc,
		[]network.ConvertOption{network.WithTolerance(e.tol)}, network.WithSweepZ0(z0))
	if out == nil {
		return nil, errConv
	}
	convFail, err := sweepFailures(errConv)
	if err != nil {
		return nil, err
	}
	for k, cause := range convFail {
		if _, ok := failures[k]; !ok {
			failures[k] = cause
		}
	}
	if len(failures) == 0 {
		return out, nil
	}

	points := make([]*network.PointError, 0, len(failures))
	for k, cause := range failures {
		points = append(points, &network.PointError{Index: k, Freq: raw.Frequency(k), Err: cause})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Index < points[j].Index })
	return out, &network.SweepError{Points: points}
}
