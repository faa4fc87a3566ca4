package touchstone

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"math/cmplx"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/cwbudde/algo-rf/internal/cmatrix"
	"github.com/cwbudde/algo-rf/network"
)

// Errors returned by the codec.
var (
	ErrMalformed  = errors.New("touchstone: malformed input")
	ErrEncodeZ0   = errors.New("touchstone: format cannot represent per-port or complex reference impedance")
	ErrPortCount  = errors.New("touchstone: port count must be >= 1")
	ErrNoiseBlock = errors.New("touchstone: noise parameters require a 1- or 2-port network")
)

// File is a fully parsed Touchstone file.
type File struct {
	Network *network.Network
	Options Options

	// Sorted is true when the data's frequency column was not
	// monotonic and the points were re-sorted ascending.
	Sorted bool
}

// Decode parses Touchstone text into a network. The port count is
// not recorded inside version 1 files, so the caller supplies it
// (see [PortsFromFilename]).
func Decode(r io.Reader, ports int) (*network.Network, error) {
	f, err := Parse(r, ports)
	if err != nil {
		return nil, err
	}
	return f.Network, nil
}

// DecodeString is [Decode] over a string.
func DecodeString(s string, ports int) (*network.Network, error) {
	return Decode(strings.NewReader(s), ports)
}

// Parse decodes Touchstone text and additionally reports the parsed
// option line and whether the frequency column had to be sorted.
//
// Z, Y, H and G data are converted to scattering parameters on the
// way in; the numbers in the file are taken as absolute values
// (ohms, siemens), not normalized to the reference impedance. A
// singular per-point conversion surfaces as the network package's
// sweep error alongside the partially converted result.
func Parse(r io.Reader, ports int) (*File, error) {
	if ports < 1 {
		return nil, ErrPortCount
	}

	opts := DefaultOptions()
	haveOpts := false
	need := 1 + 2*ports*ports

	var (
		comments []string
		noise    []string
		inNoise  bool
		cur      []float64
		freqs    []float64
		points   [][]float64
		lineno   int
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if inNoise {
			noise = append(noise, line)
			continue
		}
		if strings.HasPrefix(line, "!") {
			comments = append(comments, strings.TrimSpace(line[1:]))
			continue
		}
		if i := strings.Index(line, "!"); i >= 0 {
			line = strings.TrimSpace(line[:i])
			if line == "" {
				continue
			}
		}
		if strings.HasPrefix(line, "#") {
			if haveOpts {
				return nil, fmt.Errorf("%w: line %d: second option line", ErrMalformed, lineno)
			}
			if len(freqs) > 0 || len(cur) > 0 {
				return nil, fmt.Errorf("%w: line %d: option line after data", ErrMalformed, lineno)
			}
			parsed, err := parseOptionLine(line)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, lineno, err)
			}
			opts = parsed
			haveOpts = true
			continue
		}

		vals, err := parseNumbers(line)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, lineno, err)
		}

		// The noise-parameter block of 1- and 2-port files is not
		// delimited; it begins where the frequency column steps
		// backwards.
		if len(cur) == 0 && len(freqs) > 0 && ports <= 2 && vals[0]*opts.Unit.Multiplier() < freqs[len(freqs)-1] {
			inNoise = true
			noise = append(noise, line)
			continue
		}

		cur = append(cur, vals...)
		if len(cur) > need {
			return nil, fmt.Errorf("%w: line %d: %d values for a %d-port point (want %d)",
				ErrMalformed, lineno, len(cur), ports, need)
		}
		if len(cur) == need {
			freqs = append(freqs, cur[0]*opts.Unit.Multiplier())
			points = append(points, append([]float64(nil), cur[1:]...))
			cur = cur[:0]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(cur) != 0 {
		return nil, fmt.Errorf("%w: trailing incomplete data point (%d of %d values)", ErrMalformed, len(cur), need)
	}
	if len(freqs) == 0 {
		return nil, fmt.Errorf("%w: no data points", ErrMalformed)
	}

	sorted, err := sortPoints(freqs, points)
	if err != nil {
		return nil, err
	}

	ms := make([]cmatrix.Matrix, len(points))
	for k, vals := range points {
		ms[k] = pointMatrix(vals, ports, opts.Format)
	}

	net, err := buildNetwork(opts, freqs, ms, comments, noise)
	if err != nil {
		return &File{Network: net, Options: opts, Sorted: sorted}, err
	}
	return &File{Network: net, Options: opts, Sorted: sorted}, nil
}

// PortsFromFilename extracts the port count from a .sNp file name.
func PortsFromFilename(name string) (int, error) {
	m := snpExt.FindStringSubmatch(name)
	if m == nil {
		return 0, fmt.Errorf("%w: %q has no .sNp extension", ErrMalformed, name)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %q has no valid port count", ErrMalformed, name)
	}
	return n, nil
}

var snpExt = regexp.MustCompile(`(?i)\.s(\d+)p$`)

func parseOptionLine(line string) (Options, error) {
	opts := DefaultOptions()
	fields := strings.Fields(line[1:])
	for i := 0; i < len(fields); i++ {
		tok := fields[i]
		if u, ok := ParseUnit(tok); ok {
			opts.Unit = u
			continue
		}
		if f, ok := ParseFormat(tok); ok {
			opts.Format = f
			continue
		}
		if strings.EqualFold(tok, "R") {
			if i+1 >= len(fields) {
				return opts, errors.New("R clause without impedance value")
			}
			z0, err := strconv.ParseFloat(fields[i+1], 64)
			if err != nil || z0 == 0 {
				return opts, fmt.Errorf("invalid reference impedance %q", fields[i+1])
			}
			opts.Z0 = z0
			i++
			continue
		}
		if p, ok := ParseParameter(tok); ok {
			opts.Parameter = p
			continue
		}
		return opts, fmt.Errorf("unsupported option token %q", tok)
	}
	return opts, nil
}

func parseNumbers(line string) ([]float64, error) {
	fields := strings.Fields(line)
	vals := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("non-numeric value %q", f)
		}
		vals[i] = v
	}
	return vals, nil
}

// sortPoints re-sorts non-monotonic sweeps ascending. Duplicate
// frequencies cannot be repaired and are malformed.
func sortPoints(freqs []float64, points [][]float64) (bool, error) {
	monotonic := true
	for k := 1; k < len(freqs); k++ {
		if freqs[k] <= freqs[k-1] {
			monotonic = false
			break
		}
	}
	if monotonic {
		return false, nil
	}

	idx := make([]int, len(freqs))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool { return freqs[idx[i]] < freqs[idx[j]] })

	sf := make([]float64, len(freqs))
	sp := make([][]float64, len(points))
	for i, id := range idx {
		sf[i] = freqs[id]
		sp[i] = points[id]
	}
	for k := 1; k < len(sf); k++ {
		if sf[k] == sf[k-1] {
			return false, fmt.Errorf("%w: duplicate frequency %g", ErrMalformed, sf[k])
		}
	}
	copy(freqs, sf)
	copy(points, sp)
	return true, nil
}

// pointMatrix arranges one data point's 2·N² numbers into a matrix:
// 2-port data uses the historical S11 S21 S12 S22 order, everything
// else is row-major.
func pointMatrix(vals []float64, ports int, format Format) cmatrix.Matrix {
	m := cmatrix.New(ports)
	for t := 0; t < ports*ports; t++ {
		c := toComplex(vals[2*t], vals[2*t+1], format)
		var i, j int
		if ports == 2 {
			i, j = t%2, t/2
		} else {
			i, j = t/ports, t%ports
		}
		m.Set(i, j, c)
	}
	return m
}

func toComplex(a, b float64, format Format) complex128 {
	switch format {
	case FormatRI:
		return complex(a, b)
	case FormatDB:
		return cmplx.Rect(math.Pow(10, a/20), b*math.Pi/180)
	default: // MA
		return cmplx.Rect(a, b*math.Pi/180)
	}
}

func buildNetwork(opts Options, freqs []float64, ms []cmatrix.Matrix, comments, noise []string) (*network.Network, error) {
	nopts := []network.Option{
		network.WithZ0(complex(opts.Z0, 0)),
		network.WithComments(comments...),
		network.WithNoiseData(noise...),
	}

	switch opts.Parameter {
	case ParameterS:
		return network.New(freqs, ms, nopts...)
	case ParameterZ:
		return network.FromMatrices(network.DomainZ, freqs, ms, nopts...)
	case ParameterY:
		return network.FromMatrices(network.DomainY, freqs, ms, nopts...)
	case ParameterH, ParameterG:
		if ms[0].Dim() != 2 {
			return nil, fmt.Errorf("%w: %s parameters are defined for 2-port data only",
				ErrMalformed, opts.Parameter)
		}
		zs := make([]cmatrix.Matrix, len(ms))
		for k, m := range ms {
			z, err := hybridToZ(m, opts.Parameter)
			if err != nil {
				return nil, fmt.Errorf("%w: point %d: %v", ErrMalformed, k, err)
			}
			zs[k] = z
		}
		return network.FromMatrices(network.DomainZ, freqs, zs, nopts...)
	}
	return nil, fmt.Errorf("%w: unsupported parameter type", ErrMalformed)
}

// hybridToZ converts 2-port hybrid (H) or inverse hybrid (G)
// parameters to impedance parameters.
func hybridToZ(m cmatrix.Matrix, p Parameter) (cmatrix.Matrix, error) {
	z := cmatrix.New(2)
	if p == ParameterH {
		h22 := m.At(1, 1)
		if h22 == 0 {
			return cmatrix.Matrix{}, errors.New("H22 = 0 has no impedance representation")
		}
		det := m.At(0, 0)*m.At(1, 1) - m.At(0, 1)*m.At(1, 0)
		z.Set(0, 0, det/h22)
		z.Set(0, 1, m.At(0, 1)/h22)
		z.Set(1, 0, -m.At(1, 0)/h22)
		z.Set(1, 1, 1/h22)
		return z, nil
	}
	g11 := m.At(0, 0)
	if g11 == 0 {
		return cmatrix.Matrix{}, errors.New("G11 = 0 has no impedance representation")
	}
	det := m.At(0, 0)*m.At(1, 1) - m.At(0, 1)*m.At(1, 0)
	z.Set(0, 0, 1/g11)
	z.Set(0, 1, -m.At(0, 1)/g11)
	z.Set(1, 0, m.At(1, 0)/g11)
	z.Set(1, 1, det/g11)
	return z, nil
}
