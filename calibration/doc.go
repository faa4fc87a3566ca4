// Package calibration solves vector-network-analyzer error models
// from measured calibration standards and removes the solved
// systematic error from raw device measurements.
//
// Three models share one solve/apply contract, selected explicitly
// by the caller:
//
//   - [ModelOnePort]: the classic 3-term reflection model
//     (directivity, source match, reflection tracking), solved by
//     direct substitution of at least three known reflection
//     standards (short, open, load).
//   - [ModelTwelveTerm]: the full SOLT 2-port model with forward
//     and reverse directivity, source match, reflection tracking,
//     load match, transmission tracking and optional isolation.
//   - [ModelTRL]: the 8-term thru/reflect/line model. TRL does not
//     need a fully known reflect standard: a per-frequency
//     eigenvalue decomposition of the thru/line measurement pair
//     separates the two error boxes, and the reflect only resolves
//     a square-root sign.
//
// Every frequency point is solved independently. A singular solve
// at one point is recorded as a per-point failure and marked NaN in
// the result; it never aborts the remaining sweep. Structural
// problems — too few standards, mismatched frequency grids — abort
// immediately, and grids are never silently interpolated: blending
// interpolation error into the error model would corrupt the very
// thing calibration is meant to remove.
package calibration
