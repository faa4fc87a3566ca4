package touchstone

import (
	"errors"
	"math/cmplx"
	"strings"
	"testing"

	"github.com/cwbudde/algo-rf/internal/cmatrix"
	"github.com/cwbudde/algo-rf/network"
)

const twoPortRI = `! measured fixture
! second comment
# MHz S RI R 50
100 0.1 0.0 0.0 -0.8 0.0 -0.79 0.2 0.0
200 0.12 0.01 0.01 -0.7 0.01 -0.69 0.22 0.01
`

func TestDecodeTwoPortRI(t *testing.T) {
	f, err := Parse(strings.NewReader(twoPortRI), 2)
	if err != nil {
		t.Fatal(err)
	}
	n := f.Network

	if n.Ports() != 2 || n.NumFreqs() != 2 {
		t.Fatalf("decoded %d ports, %d points", n.Ports(), n.NumFreqs())
	}
	if n.Frequency(0) != 100e6 || n.Frequency(1) != 200e6 {
		t.Errorf("frequencies = %v, want 100 MHz and 200 MHz", n.Frequencies())
	}

	// File order is S11 S21 S12 S22.
	if got := n.SEntry(0, 0, 0); got != 0.1 {
		t.Errorf("S11 = %v, want 0.1", got)
	}
	if got := n.SEntry(0, 1, 0); got != complex(0, -0.8) {
		t.Errorf("S21 = %v, want -0.8i", got)
	}
	if got := n.SEntry(0, 0, 1); got != complex(0, -0.79) {
		t.Errorf("S12 = %v, want -0.79i", got)
	}
	if got := n.SEntry(0, 1, 1); got != 0.2 {
		t.Errorf("S22 = %v, want 0.2", got)
	}

	if z := n.Z0(0); z[0] != 50 || z[1] != 50 {
		t.Errorf("z0 = %v, want 50", z)
	}
	if c := n.Comments(); len(c) != 2 || c[0] != "measured fixture" {
		t.Errorf("comments = %v", c)
	}
	if f.Sorted {
		t.Error("monotonic input must not be flagged as sorted")
	}
}

func TestDecodeFormats(t *testing.T) {
	// The same reflection coefficient 0.5∠90° in all three formats.
	tests := []struct {
		name string
		text string
	}{
		{"RI", "# GHz S RI R 50\n1 0 0.5\n"},
		{"MA", "# GHz S MA R 50\n1 0.5 90\n"},
		{"DB", "# GHz S DB R 50\n1 -6.0205999132796239 90\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := DecodeString(tt.text, 1)
			if err != nil {
				t.Fatal(err)
			}
			if got := n.SEntry(0, 0, 0); cmplx.Abs(got-complex(0, 0.5)) > 1e-12 {
				t.Errorf("S11 = %v, want 0.5i", got)
			}
		})
	}
}

func TestDecodeDefaultsWithoutOptionLine(t *testing.T) {
	// Missing option line falls back to GHz S MA R 50.
	n, err := DecodeString("1 0.5 0\n", 1)
	if err != nil {
		t.Fatal(err)
	}
	if n.Frequency(0) != 1e9 {
		t.Errorf("frequency = %g, want 1e9", n.Frequency(0))
	}
	if n.SEntry(0, 0, 0) != 0.5 {
		t.Errorf("S11 = %v, want 0.5", n.SEntry(0, 0, 0))
	}
}

func TestDecodeThreePortWrapped(t *testing.T) {
	// Rows of a 3-port start on fresh lines; ordering is row-major.
	text := `# Hz S RI R 50
1 0.11 0 0.12 0 0.13 0
  0.21 0 0.22 0 0.23 0
  0.31 0 0.32 0 0.33 0
`
	n, err := DecodeString(text, 3)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := complex(float64(i+1)/10+float64(j+1)/100, 0)
			if got := n.SEntry(0, i, j); cmplx.Abs(got-want) > 1e-12 {
				t.Errorf("S[%d][%d] = %v, want %v", i, j, got, want)
			}
		}
	}
}

func TestDecodeNoiseBlockPreserved(t *testing.T) {
	text := `# GHz S RI R 50
1 0 0 0 1 0 1 0 0
2 0 0 0 1 0 1 0 0
1 3.5 0.9 45 0.4
2 4.1 0.8 30 0.45
`
	f, err := Parse(strings.NewReader(text), 2)
	if err != nil {
		t.Fatal(err)
	}
	if f.Network.NumFreqs() != 2 {
		t.Fatalf("network points = %d, want 2", f.Network.NumFreqs())
	}
	noise := f.Network.NoiseData()
	if len(noise) != 2 || !strings.HasPrefix(noise[0], "1 3.5") {
		t.Errorf("noise block = %v, want the two trailing lines", noise)
	}
}

func TestDecodeNonMonotonicSorts(t *testing.T) {
	// A 3-port cannot carry noise data, so a backward frequency
	// step means unordered points: sorted with a warning flag.
	text := `# Hz S RI R 50
2 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0
1 1 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0
`
	f, err := Parse(strings.NewReader(text), 3)
	if err != nil {
		t.Fatal(err)
	}
	if !f.Sorted {
		t.Error("non-monotonic input must be flagged as sorted")
	}
	if f.Network.Frequency(0) != 1 || f.Network.SEntry(0, 0, 0) != 1 {
		t.Error("points were not re-sorted with their data")
	}
}

func TestDecodeZParameters(t *testing.T) {
	// A 1-port 50Ω impedance referenced to 50Ω is a matched load.
	n, err := DecodeString("# Hz Z RI R 50\n1 50 0\n", 1)
	if err != nil {
		t.Fatal(err)
	}
	if got := n.SEntry(0, 0, 0); cmplx.Abs(got) > 1e-12 {
		t.Errorf("S11 = %v, want 0", got)
	}
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		ports int
	}{
		{"non numeric", "# Hz S RI R 50\n1 bogus 0\n", 1},
		{"wrong token count", "# Hz S RI R 50\n1 0 0 0\n", 1},
		{"trailing partial point", "# Hz S RI R 50\n1 0 0\n2 0\n", 1},
		{"bad option token", "# Hz Q RI R 50\n1 0 0\n", 1},
		{"bad impedance", "# Hz S RI R zero\n1 0 0\n", 1},
		{"r without value", "# Hz S RI R\n1 0 0\n", 1},
		{"second option line", "# Hz S RI R 50\n# Hz S RI R 50\n1 0 0\n", 1},
		{"option line after data", "1 0 0\n# Hz S RI R 50\n", 1},
		{"no data", "# Hz S RI R 50\n! nothing\n", 1},
		{"duplicate frequency", "# Hz S RI R 50\n2 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0\n2 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0\n1 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0\n", 3},
		{"H with 3 ports", "# Hz H RI R 50\n1 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0\n", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeString(tt.text, tt.ports); !errors.Is(err, ErrMalformed) {
				t.Errorf("err = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	freqs := []float64{1e9, 2e9, 3e9}
	s := make([]cmatrix.Matrix, len(freqs))
	for k := range s {
		m := cmatrix.New(2)
		m.Set(0, 0, complex(0.1*float64(k+1), -0.05))
		m.Set(0, 1, complex(0, 0.9-0.1*float64(k)))
		m.Set(1, 0, complex(0.01, 0.88-0.1*float64(k)))
		m.Set(1, 1, complex(-0.2, 0.1*float64(k)))
		s[k] = m
	}
	n, err := network.New(freqs, s, network.WithComments("round trip"))
	if err != nil {
		t.Fatal(err)
	}

	for _, format := range []Format{FormatRI, FormatMA, FormatDB} {
		t.Run(format.String(), func(t *testing.T) {
			text, err := EncodeString(n, WithFormat(format), WithUnit(UnitMHz))
			if err != nil {
				t.Fatal(err)
			}
			back, err := DecodeString(text, 2)
			if err != nil {
				t.Fatal(err)
			}
			if !back.EqualApprox(n, 1e-9) {
				t.Errorf("decode(encode()) drifted beyond 1e-9:\n%s", text)
			}
		})
	}
}

func TestRoundTripFourPort(t *testing.T) {
	freqs := []float64{5e8, 1e9}
	s := make([]cmatrix.Matrix, len(freqs))
	for k := range s {
		m := cmatrix.New(4)
		for i := 0; i < 4; i++ {
			for j := 0; j < 4; j++ {
				m.Set(i, j, complex(0.1*float64(i), 0.05*float64(j+k)))
			}
		}
		s[k] = m
	}
	n, err := network.New(freqs, s)
	if err != nil {
		t.Fatal(err)
	}

	text, err := EncodeString(n)
	if err != nil {
		t.Fatal(err)
	}
	back, err := DecodeString(text, 4)
	if err != nil {
		t.Fatal(err)
	}
	if !back.EqualApprox(n, 1e-9) {
		t.Errorf("4-port round trip drifted:\n%s", text)
	}
}

func TestEncodeRejectsMixedZ0(t *testing.T) {
	n, err := network.New([]float64{1e9}, []cmatrix.Matrix{cmatrix.New(2)},
		network.WithPortZ0([]complex128{50, 75}))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := EncodeString(n); !errors.Is(err, ErrEncodeZ0) {
		t.Errorf("err = %v, want ErrEncodeZ0", err)
	}
}

func TestEncodePreservesNoise(t *testing.T) {
	f, err := Parse(strings.NewReader(`# GHz S RI R 50
1 0 0 0 1 0 1 0 0
2 0 0 0 1 0 1 0 0
1 3.5 0.9 45 0.4
`), 2)
	if err != nil {
		t.Fatal(err)
	}
	text, err := EncodeString(f.Network, WithFormat(FormatRI))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text, "1 3.5 0.9 45 0.4") {
		t.Errorf("noise block lost on re-encode:\n%s", text)
	}
}

func TestPortsFromFilename(t *testing.T) {
	tests := []struct {
		name  string
		ports int
		ok    bool
	}{
		{"device.s2p", 2, true},
		{"DEVICE.S4P", 4, true},
		{"path/to/filter.s1p", 1, true},
		{"coupler.s16p", 16, true},
		{"notes.txt", 0, false},
		{"device.s0p", 0, false},
	}
	for _, tt := range tests {
		got, err := PortsFromFilename(tt.name)
		if tt.ok && (err != nil || got != tt.ports) {
			t.Errorf("PortsFromFilename(%q) = %d, %v; want %d", tt.name, got, err, tt.ports)
		}
		if !tt.ok && err == nil {
			t.Errorf("PortsFromFilename(%q) succeeded, want error", tt.name)
		}
	}
}
