package network

import (
	"fmt"
	"math"
	"math/cmplx"

	algofft "github.com/MeKo-Christian/algo-fft"
)

// TimeDomainOption configures [Network.ImpulseResponse].
type TimeDomainOption func(*timeDomainConfig)

type timeDomainConfig struct {
	window  bool
	padding int
}

// WithTimeWindow toggles the raised-cosine window applied across
// the swept band before transforming. Windowing trades time
// resolution for strongly reduced band-edge ringing; it defaults
// to on.
func WithTimeWindow(enable bool) TimeDomainOption {
	return func(cfg *timeDomainConfig) { cfg.window = enable }
}

// WithZeroPadding multiplies the transform length by factor,
// interpolating the time axis. Factors below 1 are ignored.
func WithZeroPadding(factor int) TimeDomainOption {
	return func(cfg *timeDomainConfig) {
		if factor >= 1 {
			cfg.padding = factor
		}
	}
}

// TimeDomainResponse is a real time-domain trace: amplitude samples
// over a uniform time axis.
type TimeDomainResponse struct {
	Times     []float64 // seconds, starting at 0
	Amplitude []float64
}

// ImpulseResponse transforms the S[i][j] trace into the time
// domain.
//
// The swept band is placed on its absolute frequency bins of a
// two-sided Hermitian spectrum (bins below the band start are
// zero), so the frequency grid must be uniformly spaced and start
// at an integer multiple of its step. The inverse FFT of that
// spectrum is the real band-limited impulse response; its time
// span is 1/Δf.
func (n *Network) ImpulseResponse(i, j int, opts ...TimeDomainOption) (*TimeDomainResponse, error) {
	if i < 0 || i >= n.Ports() || j < 0 || j >= n.Ports() {
		return nil, fmt.Errorf("%w: entry (%d,%d) of a %d-port", ErrPortIndex, i, j, n.Ports())
	}

	cfg := timeDomainConfig{window: true, padding: 1}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	df, err := n.uniformSpacing()
	if err != nil {
		return nil, err
	}

	// The band must sit on the bin grid of the full spectrum.
	startBin := int(math.Round(n.freqs[0] / df))
	if math.Abs(n.freqs[0]-float64(startBin)*df) > 1e-6*df {
		return nil, fmt.Errorf("%w: band start %g Hz is not a multiple of the %g Hz step",
			ErrNonUniformGrid, n.freqs[0], df)
	}

	lastBin := startBin + len(n.freqs) - 1
	fftSize := cfg.padding * nextPowerOf2(2*lastBin)
	if fftSize < 2*lastBin+2 {
		fftSize *= 2
	}

	plan, err := algofft.NewPlan64(fftSize)
	if err != nil {
		return nil, fmt.Errorf("network: failed to create FFT plan: %w", err)
	}

	// Hermitian-symmetric spectrum: X[N−m] = conj(X[m]) makes the
	// inverse transform real.
	spectrum := make([]complex128, fftSize)
	for k, f := 0, n.freqs[0]; k < len(n.freqs); k, f = k+1, f+df {
		v := n.s[k].At(i, j)
		if cfg.window {
			v *= complex(raisedCosine(k, len(n.freqs)), 0)
		}
		bin := startBin + k
		spectrum[bin] = v
		if bin != 0 && bin != fftSize/2 {
			spectrum[fftSize-bin] = cmplx.Conj(v)
		}
	}

	timeData := make([]complex128, fftSize)
	if err := plan.Inverse(timeData, spectrum); err != nil {
		return nil, fmt.Errorf("network: inverse FFT failed: %w", err)
	}

	dt := 1 / (float64(fftSize) * df)
	out := &TimeDomainResponse{
		Times:     make([]float64, fftSize),
		Amplitude: make([]float64, fftSize),
	}
	for k := range timeData {
		out.Times[k] = float64(k) * dt
		out.Amplitude[k] = real(timeData[k])
	}
	return out, nil
}

// StepResponse is the running integral of [Network.ImpulseResponse],
// the trace a time-domain reflectometer displays.
func (n *Network) StepResponse(i, j int, opts ...TimeDomainOption) (*TimeDomainResponse, error) {
	ir, err := n.ImpulseResponse(i, j, opts...)
	if err != nil {
		return nil, err
	}
	var sum float64
	for k, v := range ir.Amplitude {
		sum += v
		ir.Amplitude[k] = sum
	}
	return ir, nil
}

// raisedCosine is a Hann taper across k = 0..n−1.
func raisedCosine(k, n int) float64 {
	if n == 1 {
		return 1
	}
	return 0.5 - 0.5*math.Cos(2*math.Pi*float64(k)/float64(n-1))
}

func nextPowerOf2(n int) int {
	p := 1
	for p < n {
		p *= 2
	}
	return p
}
