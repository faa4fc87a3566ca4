package network

import (
	"errors"
	"math/cmplx"
	"testing"

	"github.com/cwbudde/algo-rf/internal/cmatrix"
)

// grid3 is a small reusable sweep.
var grid3 = []float64{1e9, 2e9, 3e9}

// constant builds a network holding the same S-matrix at every point
// of freqs.
func constant(t *testing.T, freqs []float64, rows [][]complex128, opts ...Option) *Network {
	t.Helper()
	m, err := cmatrix.FromRows(rows)
	if err != nil {
		t.Fatal(err)
	}
	s := make([]cmatrix.Matrix, len(freqs))
	for k := range s {
		s[k] = m.Clone()
	}
	n, err := New(freqs, s, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return n
}

// thru returns an ideal 2-port through connection.
func thru(t *testing.T, freqs []float64) *Network {
	return constant(t, freqs, [][]complex128{
		{0, 1},
		{1, 0},
	})
}

func TestNewValidation(t *testing.T) {
	m := cmatrix.Identity(2)

	tests := []struct {
		name    string
		freqs   []float64
		s       []cmatrix.Matrix
		opts    []Option
		wantErr error
	}{
		{"empty sweep", nil, nil, nil, ErrEmptySweep},
		{"count mismatch", []float64{1, 2}, []cmatrix.Matrix{m}, nil, ErrShapeMismatch},
		{"non increasing", []float64{2, 1}, []cmatrix.Matrix{m, m}, nil, ErrFrequencyOrder},
		{"duplicate freq", []float64{1, 1}, []cmatrix.Matrix{m, m}, nil, ErrFrequencyOrder},
		{"port mismatch", []float64{1, 2}, []cmatrix.Matrix{m, cmatrix.Identity(3)}, nil, ErrPortCountMismatch},
		{"zero z0", []float64{1}, []cmatrix.Matrix{m}, []Option{WithZ0(0)}, ErrInvalidZ0},
		{"bad name count", []float64{1}, []cmatrix.Matrix{m}, []Option{WithPortNames("in")}, ErrPortNames},
		{"dup names", []float64{1}, []cmatrix.Matrix{m}, []Option{WithPortNames("p", "p")}, ErrPortNames},
		{"valid", []float64{1, 2}, []cmatrix.Matrix{m, m}, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.freqs, tt.s, tt.opts...)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("New() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestNetworkIsImmutable(t *testing.T) {
	freqs := []float64{1e9, 2e9}
	s := []cmatrix.Matrix{cmatrix.Identity(2), cmatrix.Identity(2)}
	n, err := New(freqs, s)
	if err != nil {
		t.Fatal(err)
	}

	// Mutating the inputs or accessor results must not affect n.
	freqs[0] = 5e9
	s[0].Set(0, 0, 99)
	n.Frequencies()[1] = 7e9
	n.S(0).Set(0, 1, 42)
	n.Z0(0)[0] = 1

	if n.Frequency(0) != 1e9 || n.Frequency(1) != 2e9 {
		t.Error("frequencies were mutated through an alias")
	}
	if n.SEntry(0, 0, 0) != 1 || n.SEntry(0, 0, 1) != 0 {
		t.Error("s-data was mutated through an alias")
	}
	if n.Z0(0)[0] != DefaultZ0 {
		t.Error("impedances were mutated through an alias")
	}
}

func TestEqualApprox(t *testing.T) {
	a := constant(t, grid3, [][]complex128{
		{0.1, 0.5},
		{0.5, 0.1},
	})
	b := constant(t, grid3, [][]complex128{
		{0.1 + 1e-12, 0.5},
		{0.5, 0.1},
	})
	c := constant(t, grid3, [][]complex128{
		{0.2, 0.5},
		{0.5, 0.1},
	})

	if !a.EqualApprox(b, 1e-9) {
		t.Error("a ≈ b within 1e-9, got not equal")
	}
	if a.EqualApprox(c, 1e-9) {
		t.Error("a and c differ by 0.1, got equal")
	}
	if a.EqualApprox(b, 1e-14) {
		t.Error("a and b differ by 1e-12, got equal under 1e-14")
	}

	shifted := constant(t, []float64{1e9, 2e9, 3.5e9}, [][]complex128{
		{0.1, 0.5},
		{0.5, 0.1},
	})
	if a.EqualApprox(shifted, 1) {
		t.Error("grids differ, networks must not compare equal")
	}
}

func TestSubnetworkSelection(t *testing.T) {
	n := constant(t, grid3, [][]complex128{
		{0.1, 0.2, 0.3},
		{0.4, 0.5, 0.6},
		{0.7, 0.8, 0.9},
	}, WithPortNames("a", "b", "c"))

	sub, err := n.Subnetwork(0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if sub.Ports() != 2 {
		t.Fatalf("ports = %d, want 2", sub.Ports())
	}

	want := [][]complex128{
		{0.1, 0.3},
		{0.7, 0.9},
	}
	for i := range want {
		for j := range want[i] {
			if got := sub.SEntry(0, i, j); got != want[i][j] {
				t.Errorf("S[%d][%d] = %v, want %v", i, j, got, want[i][j])
			}
		}
	}

	names := sub.PortNames()
	if len(names) != 2 || names[0] != "a" || names[1] != "c" {
		t.Errorf("port names = %v, want [a c]", names)
	}

	if _, err := n.Subnetwork(0, 3); !errors.Is(err, ErrPortIndex) {
		t.Errorf("out of range selection: err = %v, want ErrPortIndex", err)
	}
	if _, err := n.Subnetwork(1, 1); !errors.Is(err, ErrPortIndex) {
		t.Errorf("duplicate selection: err = %v, want ErrPortIndex", err)
	}
}

func TestInterpolateRecoversKnots(t *testing.T) {
	// A frequency-dependent network: linear phase ramp.
	freqs := []float64{1e9, 2e9, 3e9, 4e9, 5e9}
	s := make([]cmatrix.Matrix, len(freqs))
	for k, f := range freqs {
		m := cmatrix.New(2)
		phase := cmplx.Exp(complex(0, -2e-10*f))
		m.Set(0, 1, phase)
		m.Set(1, 0, phase)
		s[k] = m
	}
	n, err := New(freqs, s)
	if err != nil {
		t.Fatal(err)
	}

	got, err := n.Interpolate(freqs)
	if err != nil {
		t.Fatal(err)
	}
	if !got.EqualApprox(n, 1e-12) {
		t.Error("interpolation onto the original grid must reproduce the network")
	}

	// A denser in-band grid stays close to the underlying smooth curve.
	dense := []float64{1.5e9, 2.5e9, 3.5e9}
	got, err = n.Interpolate(dense)
	if err != nil {
		t.Fatal(err)
	}
	for k, f := range dense {
		want := cmplx.Exp(complex(0, -2e-10*f))
		if cmplx.Abs(got.SEntry(k, 0, 1)-want) > 2e-2 {
			t.Errorf("interpolated S21 at %g = %v, want ≈ %v", f, got.SEntry(k, 0, 1), want)
		}
	}
}

func TestInterpolateOutOfBand(t *testing.T) {
	n := thru(t, grid3)

	_, err := n.Interpolate([]float64{0.5e9, 1e9})
	if !errors.Is(err, ErrOutOfBand) {
		t.Fatalf("below band: err = %v, want ErrOutOfBand", err)
	}
	_, err = n.Interpolate([]float64{3e9, 4e9})
	if !errors.Is(err, ErrOutOfBand) {
		t.Fatalf("above band: err = %v, want ErrOutOfBand", err)
	}

	// Explicit opt-in extrapolates instead.
	got, err := n.Interpolate([]float64{0.5e9, 4e9}, WithExtrapolation())
	if err != nil {
		t.Fatal(err)
	}
	if got.NumFreqs() != 2 {
		t.Errorf("points = %d, want 2", got.NumFreqs())
	}
}

func TestImpulseResponseDelay(t *testing.T) {
	// A lossless delay line: S21 = exp(−j2πfτ). Its impulse
	// response must peak at t = τ.
	const tau = 1e-9
	const df = 50e6
	const points = 201 // 0 .. 10 GHz

	freqs := make([]float64, points)
	s := make([]cmatrix.Matrix, points)
	for k := range freqs {
		f := float64(k) * df
		freqs[k] = f
		m := cmatrix.New(2)
		ph := cmplx.Exp(complex(0, -2*3.141592653589793*f*tau))
		m.Set(0, 1, ph)
		m.Set(1, 0, ph)
		s[k] = m
	}
	// Frequency zero is a valid bin but not a valid sweep start for
	// New (strictly increasing handles it fine, 0 is allowed).
	n, err := New(freqs, s)
	if err != nil {
		t.Fatal(err)
	}

	ir, err := n.ImpulseResponse(1, 0, WithTimeWindow(false))
	if err != nil {
		t.Fatal(err)
	}

	peak := 0
	for k, v := range ir.Amplitude {
		if v > ir.Amplitude[peak] {
			peak = k
		}
	}
	dt := ir.Times[1] - ir.Times[0]
	if d := ir.Times[peak] - tau; d > dt || d < -dt {
		t.Errorf("impulse peak at %g s, want %g ± %g", ir.Times[peak], tau, dt)
	}
}

func TestImpulseResponseNonUniformGrid(t *testing.T) {
	n := thru(t, []float64{1e9, 2e9, 4e9})
	if _, err := n.ImpulseResponse(1, 0); !errors.Is(err, ErrNonUniformGrid) {
		t.Errorf("err = %v, want ErrNonUniformGrid", err)
	}
}
