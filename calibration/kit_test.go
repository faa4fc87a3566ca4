package calibration

import (
	"errors"
	"math"
	"math/cmplx"
	"strings"
	"testing"
)

const testKitYAML = `
name: test coax kit
z0: 50
standards:
  - name: short
    kind: short
    offset_delay: 31.8e-12
  - name: open
    kind: open
    offset_delay: 29.2e-12
    c0: 49.4e-15
    c1: -310e-27
  - name: load
    kind: load
    resistance: 50
  - name: thru
    kind: thru
    offset_delay: 20e-12
`

func parseTestKit(t *testing.T) *Kit {
	t.Helper()
	kit, err := ParseKit(strings.NewReader(testKitYAML))
	if err != nil {
		t.Fatalf("ParseKit: %v", err)
	}
	return kit
}

func TestKitShortIdeal(t *testing.T) {
	kit := parseTestKit(t)
	n, err := kit.Ideal("short", testFreqs)
	if err != nil {
		t.Fatalf("Ideal: %v", err)
	}
	for k, f := range testFreqs {
		want := -cmplx.Exp(complex(0, -4*math.Pi*f*31.8e-12))
		ceq(t, n.SEntry(k, 0, 0), want, 1e-12, "offset short")
	}
}

func TestKitOpenIdeal(t *testing.T) {
	kit := parseTestKit(t)
	n, err := kit.Ideal("open", testFreqs)
	if err != nil {
		t.Fatalf("Ideal: %v", err)
	}
	for k := range testFreqs {
		g := n.SEntry(k, 0, 0)
		if math.Abs(cmplx.Abs(g)-1) > 1e-12 {
			t.Errorf("point %d: |Γ| = %g, want 1 (lossless open)", k, cmplx.Abs(g))
		}
		// Fringing capacitance plus offset delay rotate the open
		// clockwise from +1.
		if cmplx.Phase(g) >= 0 {
			t.Errorf("point %d: phase %g, want negative", k, cmplx.Phase(g))
		}
	}
}

func TestKitLoadIdeal(t *testing.T) {
	kit := parseTestKit(t)
	n, err := kit.Ideal("load", testFreqs)
	if err != nil {
		t.Fatalf("Ideal: %v", err)
	}
	for k := range testFreqs {
		ceq(t, n.SEntry(k, 0, 0), 0, 1e-12, "matched load")
	}
}

func TestKitThruIdeal(t *testing.T) {
	kit := parseTestKit(t)
	n, err := kit.Ideal("thru", testFreqs)
	if err != nil {
		t.Fatalf("Ideal: %v", err)
	}
	for k, f := range testFreqs {
		want := cmplx.Exp(complex(0, -2*math.Pi*f*20e-12))
		ceq(t, n.SEntry(k, 1, 0), want, 1e-12, "thru S21")
		ceq(t, n.SEntry(k, 0, 0), 0, 1e-12, "thru S11")
	}
}

func TestKitUnknownStandard(t *testing.T) {
	kit := parseTestKit(t)
	if _, err := kit.Ideal("sliding load", testFreqs); !errors.Is(err, ErrKit) {
		t.Fatalf("got %v, want ErrKit", err)
	}
}

func TestParseKitRejects(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"empty", "name: empty kit\n"},
		{"unknown kind", "standards:\n  - name: s\n    kind: attenuator\n"},
		{"unnamed standard", "standards:\n  - kind: short\n"},
		{"duplicate standard", "standards:\n  - name: s\n    kind: short\n  - name: s\n    kind: open\n"},
		{"unknown field", "standards:\n  - name: s\n    kind: short\n    offset_dela: 1e-12\n"},
		{"negative z0", "z0: -50\nstandards:\n  - name: s\n    kind: short\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseKit(strings.NewReader(tc.yaml)); !errors.Is(err, ErrKit) {
				t.Fatalf("got %v, want ErrKit", err)
			}
		})
	}
}

func TestKitDefaultZ0(t *testing.T) {
	kit, err := ParseKit(strings.NewReader("standards:\n  - name: s\n    kind: short\n"))
	if err != nil {
		t.Fatalf("ParseKit: %v", err)
	}
	if kit.Z0 != 50 {
		t.Fatalf("default z0 = %g, want 50", kit.Z0)
	}
}

func TestKitSolvesOnePort(t *testing.T) {
	kit := parseTestKit(t)

	var stds []Standard
	for _, name := range []string{"short", "open", "load"} {
		ideal, err := kit.Ideal(name, testFreqs)
		if err != nil {
			t.Fatalf("Ideal(%q): %v", name, err)
		}
		vals := make([]complex128, len(testFreqs))
		for k := range vals {
			vals[k] = testOnePortModel(k).measure(ideal.SEntry(k, 0, 0))
		}
		stds = append(stds, Standard{Name: name, Ideal: ideal, Measured: onePortNet(t, testFreqs, vals)})
	}

	box, err := New(ModelOnePort).Solve(stds)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	for k := range testFreqs {
		want := testOnePortModel(k)
		got, _ := box.OnePort(k)
		ceq(t, got.Directivity, want.e00, 1e-9, "directivity")
		ceq(t, got.SourceMatch, want.e11, 1e-9, "source match")
		ceq(t, got.ReflectionTracking, want.rt, 1e-9, "reflection tracking")
	}
}
