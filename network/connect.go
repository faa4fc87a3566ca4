package network

import (
	"fmt"
	"math/cmplx"

	"github.com/cwbudde/algo-rf/internal/cmatrix"
)

// Cascade chains two 2-port networks, a followed by b, by
// multiplying their chain (ABCD) matrices and converting back to S.
//
// The chain representation relates total voltage and current, which
// are continuous across the junction, so the product is exact even
// when the joined ports carry different reference impedances. The
// result references port 1 to a's first port impedance and port 2
// to b's second port impedance.
//
// Networks with a blocked through path (S21 = 0) have no chain
// representation; connect such networks with [Connect] instead.
func Cascade(a, b *Network, opts ...ConvertOption) (*Network, error) {
	if a.Ports() != 2 || b.Ports() != 2 {
		return nil, fmt.Errorf("%w: cascade of %d-port and %d-port", ErrTwoPortOnly, a.Ports(), b.Ports())
	}
	if !a.SameGrid(b) {
		return nil, ErrFrequencyGridMismatch
	}

	cfg := applyConvertOptions(opts)
	ports := 2
	s := make([]cmatrix.Matrix, a.NumFreqs())
	z0 := make([][]complex128, a.NumFreqs())

	points := a.eachPoint(func(k int) error {
		z0[k] = []complex128{a.z0[k][0], b.z0[k][1]}

		ma, err := sToABCD(a.s[k], a.z0[k], cfg.tol)
		if err != nil {
			s[k] = cmatrix.NaN(ports)
			return err
		}
		mb, err := sToABCD(b.s[k], b.z0[k], cfg.tol)
		if err != nil {
			s[k] = cmatrix.NaN(ports)
			return err
		}
		out, err := abcdToS(cmatrix.Mul(ma, mb), z0[k], cfg.tol)
		if err != nil {
			s[k] = cmatrix.NaN(ports)
			return err
		}
		s[k] = out
		return nil
	})

	out, err := New(a.freqs, s, WithSweepZ0(z0))
	if err != nil {
		return nil, err
	}
	return out, sweepResult(points, cfg)
}

// CascadeAll chains two or more 2-port networks left to right.
func CascadeAll(chain ...*Network) (*Network, error) {
	if len(chain) < 2 {
		return nil, fmt.Errorf("%w: cascade needs at least two networks", ErrPortCountMismatch)
	}
	out := chain[0]
	var err error
	for _, next := range chain[1:] {
		out, err = Cascade(out, next)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Connect joins port portA of network a to port portB of network b,
// returning a network with a.Ports()+b.Ports()−2 external ports.
//
// Result port numbering: a's ports in order with portA removed,
// followed by b's ports in order with portB removed. Connecting
// port 1 of a 3-port to port 0 of a 2-port therefore yields result
// ports (a0, a2, b1).
//
// When the joined ports carry different reference impedances, b's
// side is first renormalized to a's junction impedance; joining
// mismatched references without renormalization would describe a
// different physical circuit.
//
// Frequency grids must match exactly. Per-point elimination
// failures are reported as [ErrDegenerateConnection] through the
// usual sweep error policy.
func Connect(a *Network, portA int, b *Network, portB int, opts ...ConvertOption) (*Network, error) {
	if portA < 0 || portA >= a.Ports() {
		return nil, fmt.Errorf("%w: port %d of %d", ErrPortIndex, portA, a.Ports())
	}
	if portB < 0 || portB >= b.Ports() {
		return nil, fmt.Errorf("%w: port %d of %d", ErrPortIndex, portB, b.Ports())
	}
	if !a.SameGrid(b) {
		return nil, ErrFrequencyGridMismatch
	}

	cfg := applyConvertOptions(opts)

	// Equalize the junction impedance before composing.
	var renormPoints []*PointError
	if junctionMismatch(a, portA, b, portB) {
		z0 := make([]complex128, a.NumFreqs())
		for k := range z0 {
			z0[k] = a.z0[k][portA]
		}
		b, renormPoints = b.renormalizePort(portB, z0, cfg)
	}

	combined := blockCompose(a, b)
	out, points, err := innerconnect(combined, portA, a.Ports()+portB, cfg)
	if err != nil {
		return nil, err
	}
	points = append(renormPoints, points...)
	return out, sweepResult(points, cfg)
}

// Innerconnect joins two ports of the same network (a feedback
// loop), eliminating both. Result ports keep their original order
// with p1 and p2 removed.
//
// Mismatched reference impedances at the joined ports are equalized
// by renormalizing p2 to p1's impedance first.
func Innerconnect(n *Network, p1, p2 int, opts ...ConvertOption) (*Network, error) {
	if p1 < 0 || p1 >= n.Ports() || p2 < 0 || p2 >= n.Ports() {
		return nil, fmt.Errorf("%w: ports %d, %d of %d", ErrPortIndex, p1, p2, n.Ports())
	}
	if p1 == p2 {
		return nil, fmt.Errorf("%w: cannot join port %d to itself", ErrPortIndex, p1)
	}

	cfg := applyConvertOptions(opts)

	var renormPoints []*PointError
	if junctionMismatch(n, p1, n, p2) {
		z0 := make([]complex128, n.NumFreqs())
		for k := range z0 {
			z0[k] = n.z0[k][p1]
		}
		n, renormPoints = n.renormalizePort(p2, z0, cfg)
	}

	out, points, err := innerconnect(n, p1, p2, cfg)
	if err != nil {
		return nil, err
	}
	points = append(renormPoints, points...)
	return out, sweepResult(points, cfg)
}

// junctionMismatch reports whether the joined ports differ in
// reference impedance at any frequency point.
func junctionMismatch(a *Network, portA int, b *Network, portB int) bool {
	for k := range a.z0 {
		if a.z0[k][portA] != b.z0[k][portB] {
			return true
		}
	}
	return false
}

// blockCompose stacks two networks into one block-diagonal network
// with no interaction between the blocks: a's ports first, then b's.
func blockCompose(a, b *Network) *Network {
	pa, pb := a.Ports(), b.Ports()
	total := pa + pb

	s := make([]cmatrix.Matrix, a.NumFreqs())
	z0 := make([][]complex128, a.NumFreqs())
	for k := range s {
		m := cmatrix.New(total)
		for i := 0; i < pa; i++ {
			for j := 0; j < pa; j++ {
				m.Set(i, j, a.s[k].At(i, j))
			}
		}
		for i := 0; i < pb; i++ {
			for j := 0; j < pb; j++ {
				m.Set(pa+i, pa+j, b.s[k].At(i, j))
			}
		}
		s[k] = m

		row := make([]complex128, 0, total)
		row = append(row, a.z0[k]...)
		row = append(row, b.z0[k]...)
		z0[k] = row
	}

	out := &Network{freqs: append([]float64(nil), a.freqs...), s: s, z0: z0}
	if a.portNames != nil && b.portNames != nil {
		names := make([]string, 0, total)
		names = append(names, a.portNames...)
		names = append(names, b.portNames...)
		// A clash between the two halves would break name lookup;
		// keep the result anonymous in that case.
		seen := make(map[string]bool, total)
		unique := true
		for _, name := range names {
			if seen[name] {
				unique = false
				break
			}
			seen[name] = true
		}
		if unique {
			out.portNames = names
		}
	}
	return out
}

// innerconnect eliminates ports p and q of n by enforcing the ideal
// junction conditions a_p = b_q and a_q = b_p.
//
// Writing the partitioned scattering relation with external ports E,
// the outgoing waves at the joined pair satisfy
//
//	[ 1−S_pq   −S_pp ] [b_p]   [S_pE]
//	[ −S_qq   1−S_qp ] [b_q] = [S_qE] · a_E
//
// and substituting the solved b_p, b_q back into the external rows
// gives the reduced scattering matrix. A singular 2×2 pencil means
// the loop is undetermined (a perfectly matched feedback path) and
// fails with [ErrDegenerateConnection] at that point.
func innerconnect(n *Network, p, q int, cfg convertConfig) (*Network, []*PointError, error) {
	total := n.Ports()
	if total < 3 {
		// Eliminating both ports of a 2-port leaves nothing to
		// observe; a 1-port cannot be self-connected at all.
		return nil, nil, fmt.Errorf("%w: self-connection leaves %d ports", ErrPortCountMismatch, total-2)
	}

	ext := make([]int, 0, total-2)
	for i := 0; i < total; i++ {
		if i != p && i != q {
			ext = append(ext, i)
		}
	}

	s := make([]cmatrix.Matrix, n.NumFreqs())
	z0 := make([][]complex128, n.NumFreqs())

	points := n.eachPoint(func(k int) error {
		row := make([]complex128, len(ext))
		for i, e := range ext {
			row[i] = n.z0[k][e]
		}
		z0[k] = row

		sk := n.s[k]
		m11 := 1 - sk.At(p, q)
		m12 := -sk.At(p, p)
		m21 := -sk.At(q, q)
		m22 := 1 - sk.At(q, p)

		det := m11*m22 - m12*m21
		norm := cmplx.Abs(m11) + cmplx.Abs(m12) + cmplx.Abs(m21) + cmplx.Abs(m22)
		if norm == 0 || cmplx.Abs(det) < cfg.tol*norm*norm {
			s[k] = cmatrix.NaN(len(ext))
			return fmt.Errorf("%w: elimination determinant %.3g", ErrDegenerateConnection, cmplx.Abs(det))
		}

		out := cmatrix.New(len(ext))
		for j, ej := range ext {
			// Solve the 2×2 system for the external excitation a_ej.
			rp := sk.At(p, ej)
			rq := sk.At(q, ej)
			bp := (m22*rp - m12*rq) / det
			bq := (m11*rq - m21*rp) / det

			for i, ei := range ext {
				out.Set(i, j, sk.At(ei, ej)+sk.At(ei, p)*bq+sk.At(ei, q)*bp)
			}
		}
		s[k] = out
		return nil
	})

	out, err := New(n.freqs, s, WithSweepZ0(z0))
	if err != nil {
		return nil, nil, err
	}
	if n.portNames != nil {
		names := make([]string, len(ext))
		for i, e := range ext {
			names[i] = n.portNames[e]
		}
		out.portNames = names
	}
	return out, points, nil
}
