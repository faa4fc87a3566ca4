package calibration

import (
	"errors"
	"fmt"
	"io"
	"math"
	"math/cmplx"

	"gopkg.in/yaml.v3"

	"github.com/cwbudde/algo-rf/media"
	"github.com/cwbudde/algo-rf/network"
)

// ErrKit reports an invalid calibration-kit definition.
var ErrKit = errors.New("calibration: invalid kit definition")

// Kit is a calibration-kit definition: the polynomial coefficient
// models from which the ideal responses of physical standards are
// computed. Kits are typically loaded from YAML:
//
//	name: 3.5 mm coax kit
//	z0: 50
//	standards:
//	  - name: short
//	    kind: short
//	    offset_delay: 31.8e-12
//	    l0: 2.08e-12
//	  - name: open
//	    kind: open
//	    offset_delay: 29.2e-12
//	    c0: 49.4e-15
//	    c1: -310e-27
//	  - name: load
//	    kind: load
//	    resistance: 50
//	  - name: thru
//	    kind: thru
type Kit struct {
	Name      string        `yaml:"name"`
	Z0        float64       `yaml:"z0"`
	Standards []StandardDef `yaml:"standards"`
}

// StandardDef is one standard of a kit.
//
// OffsetDelay is the one-way delay of the standard's lossless offset
// line in seconds. Opens carry a fringing-capacitance polynomial
// C(f) = c0 + c1·f + c2·f² + c3·f³ in farads; shorts a parasitic
// inductance polynomial L(f) in henries; loads a DC resistance in
// ohms. Thrus and lines are matched delays.
type StandardDef struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`

	OffsetDelay float64 `yaml:"offset_delay"`

	C0 float64 `yaml:"c0"`
	C1 float64 `yaml:"c1"`
	C2 float64 `yaml:"c2"`
	C3 float64 `yaml:"c3"`

	L0 float64 `yaml:"l0"`
	L1 float64 `yaml:"l1"`
	L2 float64 `yaml:"l2"`
	L3 float64 `yaml:"l3"`

	Resistance float64 `yaml:"resistance"`
}

// ParseKit reads a YAML kit definition. Unknown fields are rejected
// so typos in coefficient names cannot silently zero a standard.
func ParseKit(r io.Reader) (*Kit, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var k Kit
	if err := dec.Decode(&k); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKit, err)
	}
	if len(k.Standards) == 0 {
		return nil, fmt.Errorf("%w: no standards", ErrKit)
	}
	if k.Z0 == 0 {
		k.Z0 = real(network.DefaultZ0)
	}
	if k.Z0 < 0 || math.IsNaN(k.Z0) {
		return nil, fmt.Errorf("%w: z0 %g", ErrKit, k.Z0)
	}
	seen := make(map[string]bool, len(k.Standards))
	for _, def := range k.Standards {
		if def.Name == "" {
			return nil, fmt.Errorf("%w: unnamed standard", ErrKit)
		}
		if seen[def.Name] {
			return nil, fmt.Errorf("%w: duplicate standard %q", ErrKit, def.Name)
		}
		seen[def.Name] = true
		switch def.Kind {
		case "short", "open", "load", "thru", "line":
		default:
			return nil, fmt.Errorf("%w: standard %q has unknown kind %q", ErrKit, def.Name, def.Kind)
		}
	}
	return &k, nil
}

// Ideal computes the defined response of the named standard on the
// given frequency grid.
func (k *Kit) Ideal(name string, freqs []float64) (*network.Network, error) {
	for _, def := range k.Standards {
		if def.Name == name {
			return def.ideal(freqs, k.Z0)
		}
	}
	return nil, fmt.Errorf("%w: no standard %q in kit %q", ErrKit, name, k.Name)
}

func (d StandardDef) ideal(freqs []float64, z0 float64) (*network.Network, error) {
	// A lossless line with γ = jω per unit length turns the offset
	// delay in seconds directly into an electrical length.
	gamma := make([]complex128, len(freqs))
	zs := make([]complex128, len(freqs))
	for i, f := range freqs {
		gamma[i] = complex(0, 2*math.Pi*f)
		zs[i] = complex(z0, 0)
	}
	med, err := media.New(freqs, gamma, zs)
	if err != nil {
		return nil, err
	}

	switch d.Kind {
	case "thru", "line":
		return med.Line(d.OffsetDelay)
	case "load":
		refl := complex((d.Resistance-z0)/(d.Resistance+z0), 0)
		return d.delayed(med, freqs, func(float64) complex128 { return refl })
	case "short":
		return d.delayed(med, freqs, func(f float64) complex128 {
			l := d.L0 + f*(d.L1+f*(d.L2+f*d.L3))
			if l == 0 {
				return -1
			}
			zl := complex(0, 2*math.Pi*f*l)
			return (zl - complex(z0, 0)) / (zl + complex(z0, 0))
		})
	case "open":
		return d.delayed(med, freqs, func(f float64) complex128 {
			c := d.C0 + f*(d.C1+f*(d.C2+f*d.C3))
			if c == 0 {
				return 1
			}
			// Γ = (1/(jωC) − z0) / (1/(jωC) + z0)
			jwc := complex(0, 2*math.Pi*f*c)
			return (1 - jwc*complex(z0, 0)) / (1 + jwc*complex(z0, 0))
		})
	}
	return nil, fmt.Errorf("%w: standard %q has unknown kind %q", ErrKit, d.Name, d.Kind)
}

// delayed builds the one-port whose termination reflection is seen
// through the standard's offset line.
func (d StandardDef) delayed(med *media.Media, freqs []float64, refl func(f float64) complex128) (*network.Network, error) {
	g := make([]complex128, len(freqs))
	for i, f := range freqs {
		// Round trip through the one-way offset delay.
		g[i] = refl(f) * cmplx.Exp(complex(0, -4*math.Pi*f*d.OffsetDelay))
	}
	return med.LoadSweep(g)
}
