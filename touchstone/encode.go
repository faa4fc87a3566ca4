package touchstone

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-rf/network"
)

// scratchBuf holds pooled scratch memory for complex-to-real
// unpacking in the magnitude fast path.
type scratchBuf struct {
	data []float64
}

var scratchPool = sync.Pool{
	New: func() any { return &scratchBuf{} },
}

func getScratch(n int) (re, im, mag []float64, buf *scratchBuf) {
	buf = scratchPool.Get().(*scratchBuf)
	need := 3 * n
	if cap(buf.data) < need {
		buf.data = make([]float64, need)
	} else {
		buf.data = buf.data[:need]
	}
	return buf.data[:n], buf.data[n : 2*n], buf.data[2*n : need], buf
}

func putScratch(buf *scratchBuf) {
	scratchPool.Put(buf)
}

// Encode writes the network as Touchstone text. The reference
// impedance must be a single real value shared by all ports and
// frequencies; the format has no way to express anything else, and
// such networks fail with [ErrEncodeZ0] (renormalize first).
//
// Comment metadata is re-emitted as leading `!` lines and any
// preserved noise-parameter block is appended verbatim.
func Encode(w io.Writer, n *network.Network, opts ...EncodeOption) error {
	cfg := encodeConfig{opts: DefaultOptions(), precision: 12}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.opts.Parameter != ParameterS {
		return fmt.Errorf("%w: only S-parameter encoding is supported", ErrMalformed)
	}

	z0, err := uniformZ0(n)
	if err != nil {
		return err
	}
	cfg.opts.Z0 = z0

	bw := &errWriter{w: w}
	for _, c := range n.Comments() {
		bw.printf("! %s\n", c)
	}
	bw.printf("%s\n", cfg.opts.OptionLine())

	ports := n.Ports()
	mult := cfg.opts.Unit.Multiplier()
	vals := make([]complex128, ports*ports)
	cols := make([]float64, 2*ports*ports)

	for k := 0; k < n.NumFreqs(); k++ {
		m := n.S(k)
		for t := 0; t < ports*ports; t++ {
			var i, j int
			if ports == 2 {
				i, j = t%2, t/2
			} else {
				i, j = t/ports, t%ports
			}
			vals[t] = m.At(i, j)
		}
		formatColumns(cols, vals, cfg.opts.Format)

		bw.printf("%s", formatFloat(n.Frequency(k)/mult, cfg.precision))
		writeDataColumns(bw, cols, ports, cfg.precision)
	}

	for _, line := range n.NoiseData() {
		bw.printf("%s\n", line)
	}
	return bw.err
}

// EncodeString is [Encode] into a string.
func EncodeString(n *network.Network, opts ...EncodeOption) (string, error) {
	var sb strings.Builder
	if err := Encode(&sb, n, opts...); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// writeDataColumns lays the value pairs out on lines: 1- and 2-port
// points occupy a single line, larger matrices start each matrix
// row on a new line and wrap after four complex entries.
func writeDataColumns(bw *errWriter, cols []float64, ports, precision int) {
	if ports <= 2 {
		for _, v := range cols {
			bw.printf(" %s", formatFloat(v, precision))
		}
		bw.printf("\n")
		return
	}

	pair := 0
	for i := 0; i < ports; i++ {
		for j := 0; j < ports; j++ {
			if j > 0 && j%4 == 0 {
				bw.printf("\n\t")
			}
			bw.printf(" %s %s", formatFloat(cols[2*pair], precision), formatFloat(cols[2*pair+1], precision))
			pair++
		}
		bw.printf("\n")
		if i < ports-1 {
			bw.printf("\t")
		}
	}
}

// formatColumns converts complex values to display pairs. The
// magnitude formats use the split-slice vector path so long rows
// stay off the scalar math.Hypot loop.
func formatColumns(dst []float64, vals []complex128, format Format) {
	if format == FormatRI {
		for t, c := range vals {
			dst[2*t] = real(c)
			dst[2*t+1] = imag(c)
		}
		return
	}

	re, im, mag, buf := getScratch(len(vals))
	for t, c := range vals {
		re[t] = real(c)
		im[t] = imag(c)
	}
	vecmath.Magnitude(mag, re, im)

	for t := range vals {
		a := mag[t]
		if format == FormatDB {
			if a == 0 {
				a = math.Inf(-1)
			} else {
				a = 20 * math.Log10(a)
			}
		}
		dst[2*t] = a
		dst[2*t+1] = math.Atan2(im[t], re[t]) * 180 / math.Pi
	}
	putScratch(buf)
}

func formatFloat(v float64, precision int) string {
	return strconv.FormatFloat(v, 'g', precision, 64)
}

// uniformZ0 verifies the network carries one real reference
// impedance everywhere and returns it.
func uniformZ0(n *network.Network) (float64, error) {
	first := n.Z0(0)[0]
	if imag(first) != 0 {
		return 0, fmt.Errorf("%w: z0 = %v", ErrEncodeZ0, first)
	}
	for k := 0; k < n.NumFreqs(); k++ {
		for _, z := range n.Z0(k) {
			if z != first {
				return 0, fmt.Errorf("%w: z0 varies (%v vs %v)", ErrEncodeZ0, first, z)
			}
		}
	}
	return real(first), nil
}

// errWriter folds write errors into one sticky error.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
