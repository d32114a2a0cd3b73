package gaussian

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"github.com/bcdannyboy/rbergomi/errdefs"
)

var testSeed = []uint64{123, 452, 567, 248, 9436, 675, 194, 6702}

func TestPseudoStreamReproducible(t *testing.T) {
	a := NewPseudoStream(StreamKeys(testSeed, 3, 0), 64)
	b := NewPseudoStream(StreamKeys(testSeed, 3, 0), 64)

	x := make([]float64, 64)
	y := make([]float64, 64)
	for i := 0; i < 10; i++ {
		a.Fill(x)
		b.Fill(y)
		require.Equal(t, x, y, "draw %d", i)
	}
}

func TestPseudoStreamSkip(t *testing.T) {
	full := NewPseudoStream(StreamKeys(testSeed, 0, 0), 16)
	skipped := NewPseudoStream(StreamKeys(testSeed, 0, 0), 16)

	want := make([]float64, 16)
	for i := 0; i < 5; i++ {
		full.Fill(want)
	}
	skipped.Skip(4)
	got := make([]float64, 16)
	skipped.Fill(got)
	assert.Equal(t, want, got)
}

func TestStreamsAreDistinct(t *testing.T) {
	keys := [][]uint64{
		StreamKeys(testSeed, 0, 0),
		StreamKeys(testSeed, 0, 1),
		StreamKeys(testSeed, 1, 0),
		StreamKeys(testSeed, 1, 1),
	}
	first := make([][]float64, len(keys))
	for i, k := range keys {
		first[i] = make([]float64, 8)
		NewPseudoStream(k, 8).Fill(first[i])
	}
	for i := range first {
		for j := i + 1; j < len(first); j++ {
			assert.NotEqual(t, first[i], first[j], "streams %d and %d coincide", i, j)
		}
	}
}

func TestPseudoStreamMoments(t *testing.T) {
	s := NewPseudoStream(StreamKeys(testSeed, 7, 0), 1000)
	x := make([]float64, 1000)
	all := make([]float64, 0, 50000)
	for i := 0; i < 50; i++ {
		s.Fill(x)
		all = append(all, x...)
	}
	mean, std := stat.MeanStdDev(all, nil)
	assert.InDelta(t, 0, mean, 0.02)
	assert.InDelta(t, 1, std, 0.02)
}

func TestHaltonStream(t *testing.T) {
	_, err := NewHaltonStream(testSeed, MaxHaltonDim+1)
	require.ErrorIs(t, err, errdefs.ErrInvalidDiscretization)

	a, err := NewHaltonStream(testSeed, 8)
	require.NoError(t, err)
	b, err := NewHaltonStream(testSeed, 8)
	require.NoError(t, err)

	x := make([]float64, 8)
	y := make([]float64, 8)
	cols := make([][]float64, 8)
	for i := 0; i < 2*haltonBlock; i++ {
		a.Fill(x)
		b.Fill(y)
		require.Equal(t, x, y)
		for j, v := range x {
			cols[j] = append(cols[j], v)
		}
	}
	for j, c := range cols {
		mean, std := stat.MeanStdDev(c, nil)
		assert.InDelta(t, 0, mean, 0.05, "dimension %d", j)
		assert.InDelta(t, 1, std, 0.05, "dimension %d", j)
	}
}

func TestHaltonSkipCrossesBlocks(t *testing.T) {
	full, err := NewHaltonStream(testSeed, 4)
	require.NoError(t, err)
	skipped, err := NewHaltonStream(testSeed, 4)
	require.NoError(t, err)

	want := make([]float64, 4)
	for i := 0; i <= haltonBlock+3; i++ {
		full.Fill(want)
	}
	skipped.Skip(haltonBlock + 3)
	got := make([]float64, 4)
	skipped.Fill(got)
	assert.Equal(t, want, got)
}

func TestNewFactors(t *testing.T) {
	for _, kind := range []Kind{PseudoRandom, QuasiRandom} {
		t.Run(string(kind), func(t *testing.T) {
			p, err := NewFactors(kind, testSeed, 2, 32)
			require.NoError(t, err)
			q, err := NewFactors(kind, testSeed, 2, 32)
			require.NoError(t, err)

			w1, w1perp, w2 := make([]float64, 32), make([]float64, 32), make([]float64, 32)
			v1, v1perp, v2 := make([]float64, 32), make([]float64, 32), make([]float64, 32)
			p.Next(w1, w1perp, w2)
			q.Next(v1, v1perp, v2)
			assert.Equal(t, w1, v1)
			assert.Equal(t, w1perp, v1perp)
			assert.Equal(t, w2, v2)
			assert.NotEqual(t, w1, w1perp)
			assert.NotEqual(t, w1, w2)
			assert.NotEqual(t, w1perp, w2)

			p.Skip(3)
			q.Skip(2)
			q.Next(v1, v1perp, v2)
			p.Next(w1, w1perp, w2)
			q.Next(v1, v1perp, v2)
			assert.Equal(t, w1, v1)
			assert.Equal(t, w2, v2)
		})
	}

	_, err := NewFactors(QuasiRandom, testSeed, 0, MaxQuasiRandomSteps)
	assert.NoError(t, err)
	_, err = NewFactors(QuasiRandom, testSeed, 0, MaxQuasiRandomSteps+1)
	assert.ErrorIs(t, err, errdefs.ErrInvalidDiscretization)
	_, err = NewFactors(PseudoRandom, testSeed, 0, 0)
	assert.ErrorIs(t, err, errdefs.ErrInvalidDiscretization)
}

// The factors of one sample must be uncorrelated across all three vectors.
func TestFactorsUncorrelated(t *testing.T) {
	const n, draws = 4, 20000
	f, err := NewFactors(PseudoRandom, testSeed, 5, n)
	require.NoError(t, err)
	w1, w1perp, w2 := make([]float64, n), make([]float64, n), make([]float64, n)
	a, b, c := make([]float64, draws), make([]float64, draws), make([]float64, draws)
	for d := 0; d < draws; d++ {
		f.Next(w1, w1perp, w2)
		a[d], b[d], c[d] = w1[1], w1perp[1], w2[1]
	}
	assert.InDelta(t, 0, stat.Correlation(a, b, nil), 0.03)
	assert.InDelta(t, 0, stat.Correlation(a, c, nil), 0.03)
	assert.InDelta(t, 0, stat.Correlation(b, c, nil), 0.03)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("Halton")
	require.NoError(t, err)
	assert.Equal(t, QuasiRandom, k)
	k, err = ParseKind("")
	require.NoError(t, err)
	assert.Equal(t, PseudoRandom, k)
	_, err = ParseKind("sobol")
	assert.ErrorIs(t, err, errdefs.ErrInvalidParameter)
}
