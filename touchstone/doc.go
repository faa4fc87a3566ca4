// Package touchstone encodes and decodes Touchstone network
// parameter files (.s1p, .s2p, … .sNp), the ASCII interchange
// format for frequency-domain network data.
//
// The decoder accepts the classic version 1 layout: optional `!`
// comment lines, a single `#` option line declaring frequency unit,
// parameter type, display format and reference impedance, and data
// lines of one frequency followed by 2·N² numbers. The historical
// conventions are preserved exactly: 2-port matrices are ordered
// S11 S21 S12 S22 on a single line, larger matrices are row-major
// with each matrix row starting on a fresh line and wrapping after
// four complex entries. The trailing noise-parameter block of 1- and
// 2-port files is detected by its backward frequency step and
// carried through verbatim.
//
// Decoding is a pure transformation of the input text; it performs
// no file-system access. Callers that start from a path can recover
// the port count with [PortsFromFilename].
package touchstone
