package touchstone

import (
	"fmt"
	"strings"
)

// Unit is a frequency unit of the option line.
type Unit int

// Frequency units accepted by the format.
const (
	UnitGHz Unit = iota // option-line default
	UnitHz
	UnitKHz
	UnitMHz
)

// Multiplier returns the unit's factor to Hz.
func (u Unit) Multiplier() float64 {
	switch u {
	case UnitHz:
		return 1
	case UnitKHz:
		return 1e3
	case UnitMHz:
		return 1e6
	default:
		return 1e9
	}
}

// String returns the option-line spelling.
func (u Unit) String() string {
	switch u {
	case UnitHz:
		return "Hz"
	case UnitKHz:
		return "kHz"
	case UnitMHz:
		return "MHz"
	default:
		return "GHz"
	}
}

// ParseUnit recognizes an option-line frequency unit token,
// case-insensitively.
func ParseUnit(tok string) (Unit, bool) {
	switch strings.ToLower(tok) {
	case "hz":
		return UnitHz, true
	case "khz":
		return UnitKHz, true
	case "mhz":
		return UnitMHz, true
	case "ghz":
		return UnitGHz, true
	}
	return 0, false
}

// Format is the numeric display format of the data columns.
type Format int

// Display formats accepted by the format.
const (
	FormatMA Format = iota // magnitude, angle in degrees (default)
	FormatDB               // 20·log10 magnitude, angle in degrees
	FormatRI               // real, imaginary
)

// String returns the option-line spelling.
func (f Format) String() string {
	switch f {
	case FormatDB:
		return "DB"
	case FormatRI:
		return "RI"
	default:
		return "MA"
	}
}

// ParseFormat recognizes an option-line data format token,
// case-insensitively.
func ParseFormat(tok string) (Format, bool) {
	switch strings.ToUpper(tok) {
	case "MA":
		return FormatMA, true
	case "DB":
		return FormatDB, true
	case "RI":
		return FormatRI, true
	}
	return 0, false
}

// Parameter is the network parameter type of the data columns.
type Parameter int

// Parameter types accepted by the format. H and G (hybrid and
// inverse hybrid) are defined for 2-port data only.
const (
	ParameterS Parameter = iota // default
	ParameterY
	ParameterZ
	ParameterH
	ParameterG
)

// String returns the option-line spelling.
func (p Parameter) String() string {
	switch p {
	case ParameterY:
		return "Y"
	case ParameterZ:
		return "Z"
	case ParameterH:
		return "H"
	case ParameterG:
		return "G"
	default:
		return "S"
	}
}

// ParseParameter recognizes an option-line parameter token,
// case-insensitively.
func ParseParameter(tok string) (Parameter, bool) {
	switch strings.ToUpper(tok) {
	case "S":
		return ParameterS, true
	case "Y":
		return ParameterY, true
	case "Z":
		return ParameterZ, true
	case "H":
		return ParameterH, true
	case "G":
		return ParameterG, true
	}
	return 0, false
}

// Options mirrors the option line of a Touchstone file.
type Options struct {
	Unit      Unit
	Parameter Parameter
	Format    Format
	Z0        float64 // reference impedance of the R clause, Ω
}

// DefaultOptions returns the format's documented defaults:
// GHz, S-parameters, magnitude-angle, 50Ω.
func DefaultOptions() Options {
	return Options{Unit: UnitGHz, Parameter: ParameterS, Format: FormatMA, Z0: 50}
}

// OptionLine renders the `#` option line.
func (o Options) OptionLine() string {
	return fmt.Sprintf("# %s %s %s R %g", o.Unit, o.Parameter, o.Format, o.Z0)
}

// EncodeOption configures [Encode].
type EncodeOption func(*encodeConfig)

type encodeConfig struct {
	opts      Options
	precision int
}

// WithOptions sets the option line of the encoded file. The
// parameter type must be S; networks hold S-data and [Encode] does
// not convert on the way out.
func WithOptions(opts Options) EncodeOption {
	return func(cfg *encodeConfig) { cfg.opts = opts }
}

// WithUnit sets the frequency unit of the encoded file.
func WithUnit(u Unit) EncodeOption {
	return func(cfg *encodeConfig) { cfg.opts.Unit = u }
}

// WithFormat sets the display format of the encoded file.
func WithFormat(f Format) EncodeOption {
	return func(cfg *encodeConfig) { cfg.opts.Format = f }
}

// WithPrecision sets the number of significant digits, default 12.
func WithPrecision(digits int) EncodeOption {
	return func(cfg *encodeConfig) {
		if digits > 0 {
			cfg.precision = digits
		}
	}
}
