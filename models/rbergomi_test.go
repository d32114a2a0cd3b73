package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"github.com/bcdannyboy/rbergomi/errdefs"
	"github.com/bcdannyboy/rbergomi/gaussian"
)

func TestKernel(t *testing.T) {
	g, err := Kernel(make([]float64, 4), 0.1)
	require.NoError(t, err)
	assert.Equal(t, 0.0, g[0])
	assert.InDelta(t, (math.Pow(2, 0.6)-1)/0.6, g[1], 1e-15)
	assert.InDelta(t, (math.Pow(4, 0.6)-math.Pow(3, 0.6))/0.6, g[3], 1e-15)
	// Weights decay like m^(H-1/2).
	assert.Greater(t, g[1], g[2])
	assert.Greater(t, g[2], g[3])

	for _, h := range []float64{0, 0.5, -0.1, 0.7, math.NaN()} {
		_, err := Kernel(make([]float64, 4), h)
		assert.ErrorIs(t, err, errdefs.ErrInvalidParameter, "h=%v", h)
	}
}

func directFractional(w1, w1perp []float64, h float64) []float64 {
	g, _ := Kernel(make([]float64, len(w1)), h)
	a := h + 0.5
	out := make([]float64, len(w1))
	for i := range w1 {
		conv := 0.0
		for m := 1; m <= i; m++ {
			conv += g[m] * w1[i-m]
		}
		out[i] = math.Sqrt(2*h) * (w1[i]/a + math.Sqrt(1/(2*h)-1/(a*a))*w1perp[i] + conv)
	}
	return out
}

func TestFractionalMatchesDirectSum(t *testing.T) {
	const n = 64
	b, err := NewVarianceBuilder(n)
	require.NoError(t, err)
	src := gaussian.NewPseudoStream(gaussian.StreamKeys([]uint64{5}, 0, 0), n)
	w1, w1perp := make(Increments, n), make(Increments, n)
	src.Fill(w1)
	src.Fill(w1perp)

	b.Load(w1)
	for _, h := range []float64{0.07, 0.25, 0.45} {
		got, err := b.Fractional(nil, w1, w1perp, h)
		require.NoError(t, err)
		want := directFractional(w1, w1perp, h)
		for i := range want {
			assert.InDelta(t, want[i], got[i], 1e-9, "h=%v i=%d", h, i)
		}
	}
	assert.Len(t, b.kernels, 3)
}

func TestFractionalVarianceScaling(t *testing.T) {
	const (
		n     = 32
		draws = 20000
		h     = 0.1
		mat   = 0.5
	)
	b, err := NewVarianceBuilder(n)
	require.NoError(t, err)
	p, err := gaussian.NewFactors(gaussian.PseudoRandom, []uint64{11}, 0, n)
	require.NoError(t, err)

	w1, w1perp, w2 := make(Increments, n), make(Increments, n), make(Increments, n)
	wt, scaled := make(FractionalPath, n), make(FractionalPath, n)
	probe := []int{0, 7, 31}
	samples := make([][]float64, len(probe))
	for d := 0; d < draws; d++ {
		p.Next(w1, w1perp, w2)
		b.Load(w1)
		_, err := b.Fractional(wt, w1, w1perp, h)
		require.NoError(t, err)
		b.Scale(scaled, wt, mat, h)
		for k, i := range probe {
			samples[k] = append(samples[k], scaled[i])
		}
	}
	// Var W~(t) = t^(2H) on the maturity window.
	dt := mat / n
	for k, i := range probe {
		want := math.Pow(float64(i+1)*dt, 2*h)
		assert.InEpsilon(t, want, stat.Variance(samples[k], nil), 0.05, "step %d", i)
	}
}

func TestVarianceMartingale(t *testing.T) {
	const (
		n     = 16
		draws = 20000
		h     = 0.2
		eta   = 1.0
		xi0   = 0.04
		mat   = 1.0
	)
	b, err := NewVarianceBuilder(n)
	require.NoError(t, err)
	p, err := gaussian.NewFactors(gaussian.PseudoRandom, []uint64{3}, 1, n)
	require.NoError(t, err)

	w1, w1perp, w2 := make(Increments, n), make(Increments, n), make(Increments, n)
	wt := make(FractionalPath, n)
	v := make(VariancePath, n)
	last := make([]float64, 0, draws)
	for d := 0; d < draws; d++ {
		p.Next(w1, w1perp, w2)
		b.Load(w1)
		_, err := b.Fractional(wt, w1, w1perp, h)
		require.NoError(t, err)
		b.Scale(wt, wt, mat, h)
		_, err = b.Variance(v, wt, xi0, h, eta, mat)
		require.NoError(t, err)
		require.Equal(t, xi0, v[0])
		last = append(last, v[n-1])
	}
	assert.InEpsilon(t, xi0, stat.Mean(last, nil), 0.04)
}

func TestVarianceDegenerate(t *testing.T) {
	b, err := NewVarianceBuilder(4)
	require.NoError(t, err)
	scaled := FractionalPath{1e6, 0, 0, 0}
	_, err = b.Variance(nil, scaled, 0.04, 0.1, 10, 1)
	assert.ErrorIs(t, err, errdefs.ErrNumericalDegeneracy)
}

func TestCorrelate(t *testing.T) {
	z := Correlate(nil, Increments{1, 2}, Increments{3, 4}, -0.6)
	assert.InDelta(t, -0.6+0.8*3, z[0], 1e-15)
	assert.InDelta(t, -1.2+0.8*4, z[1], 1e-15)
	assert.Panics(t, func() { Correlate(nil, Increments{1}, Increments{1, 2}, 0) })
}

func TestBuilderLengthChecks(t *testing.T) {
	b, err := NewVarianceBuilder(8)
	require.NoError(t, err)
	assert.Panics(t, func() { b.Load(make(Increments, 7)) })
	assert.Panics(t, func() { b.Scale(nil, make(FractionalPath, 9), 1, 0.1) })
	_, err = NewVarianceBuilder(0)
	assert.ErrorIs(t, err, errdefs.ErrInvalidDiscretization)
}
