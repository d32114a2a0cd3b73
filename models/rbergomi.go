// Package models holds the rough Bergomi parameter grid and the construction
// of its variance paths.
package models

import (
	"fmt"
	"math"

	"github.com/bcdannyboy/rbergomi/convolve"
	"github.com/bcdannyboy/rbergomi/errdefs"
)

// Kernel writes the hybrid-scheme weights of the power-law kernel s^(H-1/2):
// G[0] = 0 and G[m] is the integral of the kernel over [m, m+1].
func Kernel(dst []float64, h float64) ([]float64, error) {
	if err := CheckHurst(h); err != nil {
		return nil, err
	}
	if len(dst) == 0 {
		return dst, nil
	}
	a := h + 0.5
	dst[0] = 0
	for m := 1; m < len(dst); m++ {
		dst[m] = (math.Pow(float64(m+1), a) - math.Pow(float64(m), a)) / a
	}
	return dst, nil
}

// VarianceBuilder turns driving increments into variance paths. It owns a
// convolution engine and caches the kernel spectrum of every H it has seen, so
// one builder serves a whole parameter grid. Not safe for concurrent use.
type VarianceBuilder struct {
	n       int
	engine  *convolve.Engine
	kernels map[float64][]complex128

	w1Spec []complex128
	loaded bool
	conv   []float64
	kbuf   []float64
}

func NewVarianceBuilder(n int) (*VarianceBuilder, error) {
	e, err := convolve.NewEngine(n)
	if err != nil {
		return nil, err
	}
	return &VarianceBuilder{
		n:       n,
		engine:  e,
		kernels: make(map[float64][]complex128),
		w1Spec:  make([]complex128, e.Size()/2+1),
		conv:    make([]float64, n),
		kbuf:    make([]float64, n),
	}, nil
}

func (b *VarianceBuilder) Len() int { return b.n }

// Load transforms the volatility increments of the current draw. It must be
// called once per draw before Fractional.
func (b *VarianceBuilder) Load(w1 Increments) {
	b.checkLen(len(w1))
	b.engine.Spectrum(b.w1Spec, w1)
	b.loaded = true
}

func (b *VarianceBuilder) kernel(h float64) ([]complex128, error) {
	if spec, ok := b.kernels[h]; ok {
		return spec, nil
	}
	if _, err := Kernel(b.kbuf, h); err != nil {
		return nil, err
	}
	spec := b.engine.Spectrum(nil, b.kbuf)
	b.kernels[h] = spec
	return spec, nil
}

// Fractional builds the tilted process on the unit-step grid,
//
//	W~_i = sqrt(2H) * (W^_i + (G*W1)_i),
//	W^_i = W1_i/(H+1/2) + sqrt(1/(2H) - 1/(H+1/2)^2) * W1perp_i,
//
// where W^_i is the exact kernel integral over the most recent step. W~_i is the
// value at time i+1 and has variance close to (i+1)^(2H). w1 must be the
// increments passed to the last Load.
func (b *VarianceBuilder) Fractional(dst FractionalPath, w1, w1perp Increments, h float64) (FractionalPath, error) {
	b.checkLen(len(w1))
	b.checkLen(len(w1perp))
	if !b.loaded {
		panic("models: Fractional called before Load")
	}
	spec, err := b.kernel(h)
	if err != nil {
		return nil, err
	}
	if dst == nil {
		dst = make(FractionalPath, b.n)
	}
	b.checkLen(len(dst))

	b.engine.ConvolveSpectra(b.conv, b.w1Spec, spec)
	a := h + 0.5
	local := math.Sqrt(1/(2*h) - 1/(a*a))
	norm := math.Sqrt(2 * h)
	for i := range dst {
		dst[i] = norm * (w1[i]/a + local*w1perp[i] + b.conv[i])
	}
	return dst, nil
}

// Scale maps the unit-step process onto a window of length t split into n
// steps. Self-similarity of order H gives the factor (t/n)^H.
func (b *VarianceBuilder) Scale(dst, wt FractionalPath, t, h float64) FractionalPath {
	b.checkLen(len(wt))
	if dst == nil {
		dst = make(FractionalPath, b.n)
	}
	b.checkLen(len(dst))
	f := math.Pow(t/float64(b.n), h)
	for i, v := range wt {
		dst[i] = f * v
	}
	return dst
}

// Variance builds v_0 = xi0 and
//
//	v_i = xi0 * exp(eta*W~_{i-1} - eta^2/2 * (i*dt)^(2H)),  dt = t/n,
//
// from the scaled tilted process.
func (b *VarianceBuilder) Variance(dst VariancePath, scaled FractionalPath, xi0, h, eta, t float64) (VariancePath, error) {
	b.checkLen(len(scaled))
	if dst == nil {
		dst = make(VariancePath, b.n)
	}
	b.checkLen(len(dst))
	dt := t / float64(b.n)
	dst[0] = xi0
	for i := 1; i < b.n; i++ {
		v := xi0 * math.Exp(eta*scaled[i-1]-0.5*eta*eta*math.Pow(float64(i)*dt, 2*h))
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return dst, fmt.Errorf("variance at step %d is %v: %w", i, v, errdefs.ErrNumericalDegeneracy)
		}
		dst[i] = v
	}
	return dst, nil
}

// Correlate writes the price driver Z = rho*W1 + sqrt(1-rho^2)*W2. W2 must be
// independent of both W1 and the W1perp used by Fractional, so that the price
// noise orthogonal to W1 is independent of the whole variance path.
func Correlate(dst, w1, w2 Increments, rho float64) Increments {
	if len(w1) != len(w2) {
		panic("models: increment length mismatch")
	}
	if dst == nil {
		dst = make(Increments, len(w1))
	}
	if len(dst) != len(w1) {
		panic("models: increment length mismatch")
	}
	c := math.Sqrt(1 - rho*rho)
	for i := range dst {
		dst[i] = rho*w1[i] + c*w2[i]
	}
	return dst
}

func (b *VarianceBuilder) checkLen(n int) {
	if n != b.n {
		panic(fmt.Sprintf("models: path length %d, builder length %d", n, b.n))
	}
}
