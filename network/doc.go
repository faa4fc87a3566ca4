// Package network models multi-port microwave networks described by
// frequency-dependent complex scattering parameters.
//
// A [Network] is an immutable value object: an ordered frequency
// sweep, one square S-matrix per frequency point, and a reference
// impedance per port. All operations derive new networks instead of
// mutating their inputs, so concurrent reads never need locking.
//
// The package covers three concerns:
//
//   - Parameter-domain conversion between scattering (S), impedance
//     (Z), admittance (Y), chain (ABCD) and transfer (T)
//     representations, including reference-impedance renormalization.
//   - Network algebra: cascading 2-ports, connecting arbitrary ports
//     of arbitrary networks through a generalized port-elimination
//     reduction, and reducing networks by port selection.
//   - Sweep utilities: complex interpolation onto new frequency
//     grids and FFT-based time-domain transforms.
//
// Every per-frequency computation is independent of all others.
// Sweep-wide operations fan out across a bounded worker pool and
// gather results back in frequency order. Numerical failures at
// individual frequency points (singular conversions, degenerate
// connections) are reported per point through [SweepError] rather
// than aborting the whole sweep; structural failures (shape
// mismatches, invalid grids) abort immediately.
package network
