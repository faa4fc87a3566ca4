package network

import (
	"errors"
	"testing"

	"github.com/cwbudde/algo-rf/internal/cmatrix"
)

// attenuator returns a matched 2-port with transmission coefficient
// s21 in both directions.
func attenuator(t *testing.T, freqs []float64, s21 complex128) *Network {
	return constant(t, freqs, [][]complex128{
		{0, s21},
		{s21, 0},
	})
}

func TestCascadeAttenuators(t *testing.T) {
	a := attenuator(t, grid3, 0.5)
	b := attenuator(t, grid3, 0.25)

	got, err := Cascade(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if !relEqual(got.SEntry(0, 1, 0), 0.125, 1e-12) {
		t.Errorf("cascaded S21 = %v, want 0.125", got.SEntry(0, 1, 0))
	}
	if !relEqual(got.SEntry(0, 0, 0), 0, 1e-9) {
		t.Errorf("cascaded S11 = %v, want 0", got.SEntry(0, 0, 0))
	}
}

func TestCascadeAssociativity(t *testing.T) {
	a := constant(t, grid3, wellConditioned)
	b := attenuator(t, grid3, 0.7+0.1i)
	c := constant(t, grid3, [][]complex128{
		{-0.15 + 0.05i, 0.8},
		{0.82, 0.1 - 0.2i},
	})

	left, err := CascadeAll(a, b, c)
	if err != nil {
		t.Fatal(err)
	}
	bc, err := Cascade(b, c)
	if err != nil {
		t.Fatal(err)
	}
	right, err := Cascade(a, bc)
	if err != nil {
		t.Fatal(err)
	}

	if !left.EqualApprox(right, 1e-9) {
		t.Error("cascade is not associative")
	}
}

func TestConnectThruIdentity(t *testing.T) {
	// Connecting an ideal thru to a port must leave the network
	// unchanged: the thru is the identity element of connection.
	a := constant(t, grid3, [][]complex128{
		{0.5, 0.5},
		{0.5, 0.5},
	})
	th := thru(t, grid3)

	got, err := Connect(a, 1, th, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !got.EqualApprox(a, 1e-12) {
		t.Errorf("A∘thru S[0] = %v %v / %v %v, want A",
			got.SEntry(0, 0, 0), got.SEntry(0, 0, 1), got.SEntry(0, 1, 0), got.SEntry(0, 1, 1))
	}
}

func TestConnectAgreesWithCascade(t *testing.T) {
	a := constant(t, grid3, wellConditioned)
	b := constant(t, grid3, [][]complex128{
		{0.1 - 0.1i, 0.75},
		{0.7 + 0.05i, -0.2},
	})

	viaChain, err := Cascade(a, b)
	if err != nil {
		t.Fatal(err)
	}
	viaConnect, err := Connect(a, 1, b, 0)
	if err != nil {
		t.Fatal(err)
	}

	if !viaChain.EqualApprox(viaConnect, 1e-9) {
		t.Error("general connection disagrees with ABCD cascading")
	}
}

func TestConnectMatchedLoadEqualsSubnetwork(t *testing.T) {
	n := constant(t, grid3, [][]complex128{
		{0.1, 0.2, 0.3},
		{0.4, 0.5, 0.6},
		{0.7, 0.8, 0.9},
	})
	load := constant(t, grid3, [][]complex128{{0}})

	terminated, err := Connect(n, 1, load, 0)
	if err != nil {
		t.Fatal(err)
	}
	sub, err := n.Subnetwork(0, 2)
	if err != nil {
		t.Fatal(err)
	}

	if !terminated.EqualApprox(sub, 1e-12) {
		t.Error("matched termination must equal the direct subnetwork")
	}
}

func TestConnectPortRenumbering(t *testing.T) {
	// 3-port named (a0,a1,a2) joined at a1 to port b0 of a named
	// 2-port (b0,b1): result ports are (a0, a2, b1).
	a := constant(t, grid3, [][]complex128{
		{0.1, 0.2, 0.3},
		{0.4, 0.5, 0.6},
		{0.7, 0.8, 0.9},
	})
	b := thru(t, grid3)

	got, err := Connect(a, 1, b, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got.Ports() != 3 {
		t.Fatalf("ports = %d, want 3", got.Ports())
	}

	// The thru forwards a1 unchanged, so the composite equals a
	// with its middle port relabeled to the end.
	perm := []int{0, 2, 1}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := a.SEntry(0, perm[i], perm[j])
			if got := got.SEntry(0, i, j); !relEqual(got, want, 1e-12) {
				t.Errorf("S[%d][%d] = %v, want %v", i, j, got, want)
			}
		}
	}
}

func TestConnectRenormalizesJunction(t *testing.T) {
	// Joining a 75Ω-referenced thru to a 50Ω network must
	// renormalize the junction first. An ideal thru is impedance
	// independent, so the connection must still be an identity.
	a := constant(t, grid3, wellConditioned)
	th75 := thru(t, grid3)
	th75, err := th75.Renormalize([]complex128{75, 50})
	if err != nil {
		t.Fatal(err)
	}

	got, err := Connect(a, 1, th75, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !got.EqualApprox(a, 1e-9) {
		t.Error("junction renormalization is missing or wrong")
	}
}

func TestConnectPreservesPortNames(t *testing.T) {
	named := func(rows [][]complex128, names ...string) *Network {
		m, err := cmatrix.FromRows(rows)
		if err != nil {
			t.Fatal(err)
		}
		s := make([]cmatrix.Matrix, len(grid3))
		for k := range s {
			s[k] = m.Clone()
		}
		n, err := New(grid3, s, WithPortNames(names...))
		if err != nil {
			t.Fatal(err)
		}
		return n
	}
	three := [][]complex128{
		{0.1, 0.2, 0.3},
		{0.4, 0.5, 0.6},
		{0.7, 0.8, 0.9},
	}
	two := [][]complex128{
		{0, 1},
		{1, 0},
	}

	a := named(three, "in", "tap", "out")
	b := named(two, "left", "right")
	got, err := Connect(a, 1, b, 0)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"in", "out", "right"}
	names := got.PortNames()
	if len(names) != len(want) {
		t.Fatalf("port names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("port %d name = %q, want %q", i, names[i], want[i])
		}
	}

	// A name clash between the operands leaves the result anonymous.
	clash := named(two, "left", "in")
	got, err = Connect(a, 1, clash, 0)
	if err != nil {
		t.Fatal(err)
	}
	if names := got.PortNames(); names != nil {
		t.Errorf("clashing names must be dropped, got %v", names)
	}
}

func TestConnectGridMismatch(t *testing.T) {
	a := thru(t, grid3)
	b := thru(t, []float64{1e9, 2e9})
	if _, err := Connect(a, 1, b, 0); !errors.Is(err, ErrFrequencyGridMismatch) {
		t.Errorf("err = %v, want ErrFrequencyGridMismatch", err)
	}
}

func TestInnerconnectJoinsStackedPairs(t *testing.T) {
	// A 4-port holding two disjoint attenuators (0↔1 at 0.5 and
	// 2↔3 at 0.25). Joining ports 1 and 2 chains them: the result
	// is a 2-port (old ports 0 and 3) with S21 = 0.5·0.25.
	n := constant(t, grid3, [][]complex128{
		{0, 0.5, 0, 0},
		{0.5, 0, 0, 0},
		{0, 0, 0, 0.25},
		{0, 0, 0.25, 0},
	})

	got, err := Innerconnect(n, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if got.Ports() != 2 {
		t.Fatalf("ports = %d, want 2", got.Ports())
	}
	if !relEqual(got.SEntry(0, 1, 0), 0.125, 1e-12) {
		t.Errorf("chained S21 = %v, want 0.125", got.SEntry(0, 1, 0))
	}
	if !relEqual(got.SEntry(0, 0, 0), 0, 1e-12) {
		t.Errorf("chained S11 = %v, want 0", got.SEntry(0, 0, 0))
	}
}

func TestInnerconnectSamePort(t *testing.T) {
	n := thru(t, grid3)
	if _, err := Innerconnect(n, 0, 0); !errors.Is(err, ErrPortIndex) {
		t.Errorf("err = %v, want ErrPortIndex", err)
	}
}

func TestDegenerateConnection(t *testing.T) {
	// A self-loop whose elimination pencil is exactly singular:
	// S_pp = S_qq = 1 and S_pq = S_qp = 0 gives
	// det([[1,−1],[−1,1]]) = 0 — the trapped wave is undetermined.
	s := make([]cmatrix.Matrix, len(grid3))
	for k := range s {
		m := cmatrix.New(3)
		m.Set(1, 1, 1)
		m.Set(2, 2, 1)
		s[k] = m
	}
	loop, err := New(grid3, s)
	if err != nil {
		t.Fatal(err)
	}

	_, err = Innerconnect(loop, 1, 2)
	if !errors.Is(err, ErrDegenerateConnection) {
		t.Errorf("err = %v, want ErrDegenerateConnection", err)
	}

	var sweepErr *SweepError
	if !errors.As(err, &sweepErr) {
		t.Fatalf("degenerate connection must report per-point failures, got %T", err)
	}
	if len(sweepErr.Points) != len(grid3) {
		t.Errorf("failed points = %d, want %d", len(sweepErr.Points), len(grid3))
	}
}

func TestCascadeRejectsMultiports(t *testing.T) {
	a := thru(t, grid3)
	b := constant(t, grid3, [][]complex128{
		{0, 0, 0},
		{0, 0, 0},
		{0, 0, 0},
	})
	if _, err := Cascade(a, b); !errors.Is(err, ErrTwoPortOnly) {
		t.Errorf("err = %v, want ErrTwoPortOnly", err)
	}
}

func BenchmarkConnect(b *testing.B) {
	freqs := make([]float64, 201)
	for k := range freqs {
		freqs[k] = 1e9 + float64(k)*1e7
	}
	m, _ := cmatrix.FromRows(wellConditioned)
	s := make([]cmatrix.Matrix, len(freqs))
	for k := range s {
		s[k] = m.Clone()
	}
	x, err := New(freqs, s)
	if err != nil {
		b.Fatal(err)
	}
	y := x.clone()

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := Connect(x, 1, y, 0); err != nil {
			b.Fatal(err)
		}
	}
}
