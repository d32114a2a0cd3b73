package bridge

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/bcdannyboy/rbergomi/errdefs"
	"github.com/bcdannyboy/rbergomi/gaussian"
)

func TestNewRejectsNonPowerOfTwo(t *testing.T) {
	for _, n := range []int{0, -4, 3, 6, 100, 255} {
		_, err := New(n)
		assert.ErrorIs(t, err, errdefs.ErrInvalidDiscretization, "n=%d", n)
	}
	for _, n := range []int{1, 2, 64, 256} {
		tr, err := New(n)
		require.NoError(t, err, "n=%d", n)
		assert.Equal(t, n, tr.Len())
	}
}

func TestPathEndPoint(t *testing.T) {
	tr, err := New(8)
	require.NoError(t, err)
	z := []float64{1.5, -0.3, 0.2, 0.9, -1.1, 0.4, 0.0, 2.0}
	p := tr.Path(nil, z, 4)
	assert.Equal(t, 0.0, p[0])
	assert.InDelta(t, 2*1.5, p[8], 1e-15)

	inc := tr.Increments(nil, z, 4)
	assert.InDelta(t, p[8], floats.Sum(inc), 1e-12)
}

func TestIncrementVariance(t *testing.T) {
	const (
		n       = 16
		draws   = 10000
		horizon = 0.5
	)
	tr, err := New(n)
	require.NoError(t, err)
	src := gaussian.NewPseudoStream(gaussian.StreamKeys([]uint64{42}, 0, 0), n)

	z := make([]float64, n)
	inc := make([]float64, n)
	cols := make([][]float64, n)
	ends := make([]float64, 0, draws)
	for d := 0; d < draws; d++ {
		src.Fill(z)
		tr.Increments(inc, z, horizon)
		for i, v := range inc {
			cols[i] = append(cols[i], v)
		}
		ends = append(ends, floats.Sum(inc))
	}

	dt := horizon / n
	for i, c := range cols {
		assert.InEpsilon(t, dt, stat.Variance(c, nil), 0.07, "step %d", i)
		assert.InDelta(t, 0, stat.Mean(c, nil), 4*math.Sqrt(dt/draws), "step %d", i)
	}
	// Neighbouring increments of a Brownian path are uncorrelated.
	assert.InDelta(t, 0, stat.Correlation(cols[3], cols[4], nil), 0.05)
	assert.InEpsilon(t, horizon, stat.Variance(ends, nil), 0.07)
}
