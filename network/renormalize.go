package network

import (
	"fmt"
	"math/cmplx"

	"github.com/cwbudde/algo-rf/internal/cmatrix"
)

// Renormalize returns a new network describing the same physical
// device referenced to different port impedances.
//
// For old impedances z and new impedances z' the per-point transform
// is the bilinear wave substitution
//
//	S' = (β + α·S)(α + β·S)⁻¹
//	α = diag((zᵢ + z'ᵢ) / (2·√(zᵢ·z'ᵢ)))
//	β = diag((zᵢ − z'ᵢ) / (2·√(zᵢ·z'ᵢ)))
//
// which is algebraically identical to the S→Z→S round trip with the
// new impedances but remains defined for networks whose Z-matrix
// does not exist (an ideal thru, for example). Points where the
// substitution matrix is singular fail with [ErrSingularNetwork]
// under the usual per-point policy.
//
// newZ0 holds one impedance per port, applied at every frequency.
func (n *Network) Renormalize(newZ0 []complex128, opts ...ConvertOption) (*Network, error) {
	if len(newZ0) != n.Ports() {
		return nil, fmt.Errorf("%w: %d impedances for %d ports", ErrShapeMismatch, len(newZ0), n.Ports())
	}
	for p, z := range newZ0 {
		if err := checkZ0(z); err != nil {
			return nil, fmt.Errorf("%w (port %d)", err, p)
		}
	}

	cfg := applyConvertOptions(opts)
	ports := n.Ports()
	out := n.clone()

	points := n.eachPoint(func(k int) error {
		alpha := cmatrix.New(ports)
		beta := cmatrix.New(ports)
		for i := 0; i < ports; i++ {
			z := n.z0[k][i]
			zp := newZ0[i]
			den := 2 * cmplx.Sqrt(z*zp)
			alpha.Set(i, i, (z+zp)/den)
			beta.Set(i, i, (z-zp)/den)
		}

		inv, err := cmatrix.Inverse(cmatrix.Add(alpha, cmatrix.Mul(beta, n.s[k])), cfg.tol)
		if err != nil {
			out.s[k] = cmatrix.NaN(ports)
			return fmt.Errorf("%w: %v", ErrSingularNetwork, err)
		}
		out.s[k] = cmatrix.Mul(cmatrix.Add(beta, cmatrix.Mul(alpha, n.s[k])), inv)
		return nil
	})

	for k := range out.z0 {
		out.z0[k] = append([]complex128(nil), newZ0...)
	}
	return out, sweepResult(points, cfg)
}

// renormalizePort renormalizes a single port to a per-point
// impedance sweep, leaving the other ports untouched. Used by the
// connection algebra to equalize joined ports.
func (n *Network) renormalizePort(port int, z0 []complex128, cfg convertConfig) (*Network, []*PointError) {
	ports := n.Ports()
	out := n.clone()

	points := n.eachPoint(func(k int) error {
		z := n.z0[k][port]
		zp := z0[k]
		if z == zp {
			return nil
		}

		alpha := cmatrix.Identity(ports)
		beta := cmatrix.New(ports)
		den := 2 * cmplx.Sqrt(z*zp)
		alpha.Set(port, port, (z+zp)/den)
		beta.Set(port, port, (z-zp)/den)

		inv, err := cmatrix.Inverse(cmatrix.Add(alpha, cmatrix.Mul(beta, n.s[k])), cfg.tol)
		if err != nil {
			out.s[k] = cmatrix.NaN(ports)
			return fmt.Errorf("%w: %v", ErrSingularNetwork, err)
		}
		out.s[k] = cmatrix.Mul(cmatrix.Add(beta, cmatrix.Mul(alpha, n.s[k])), inv)
		return nil
	})

	for k := range out.z0 {
		out.z0[k][port] = z0[k]
	}
	return out, points
}

// Subnetwork returns the network restricted to the given ports, in
// the given order. Ports not selected are terminated in their own
// reference impedance, which makes the reduction an exact submatrix
// selection: a matched termination reflects nothing back.
func (n *Network) Subnetwork(ports ...int) (*Network, error) {
	if len(ports) == 0 {
		return nil, fmt.Errorf("%w: no ports selected", ErrPortIndex)
	}
	seen := make(map[int]bool, len(ports))
	for _, p := range ports {
		if p < 0 || p >= n.Ports() {
			return nil, fmt.Errorf("%w: port %d of %d", ErrPortIndex, p, n.Ports())
		}
		if seen[p] {
			return nil, fmt.Errorf("%w: port %d selected twice", ErrPortIndex, p)
		}
		seen[p] = true
	}

	sub := make([]cmatrix.Matrix, len(n.s))
	z0 := make([][]complex128, len(n.s))
	for k := range n.s {
		m := cmatrix.New(len(ports))
		for i, pi := range ports {
			for j, pj := range ports {
				m.Set(i, j, n.s[k].At(pi, pj))
			}
		}
		sub[k] = m

		row := make([]complex128, len(ports))
		for i, p := range ports {
			row[i] = n.z0[k][p]
		}
		z0[k] = row
	}

	var names []string
	if n.portNames != nil {
		names = make([]string, len(ports))
		for i, p := range ports {
			names[i] = n.portNames[p]
		}
	}

	out, err := New(n.freqs, sub, WithSweepZ0(z0), WithComments(n.comments...))
	if err != nil {
		return nil, err
	}
	out.portNames = names
	return out, nil
}
