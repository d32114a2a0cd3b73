// Package gaussian produces deterministic, seekable streams of standard normal
// draws for the Monte-Carlo engine.
package gaussian

import (
	"fmt"
	"strings"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mathext/prng"

	"github.com/bcdannyboy/rbergomi/errdefs"
)

// Kind selects the generator behind a stream.
type Kind string

const (
	PseudoRandom Kind = "mt19937"
	QuasiRandom  Kind = "halton"
)

// ParseKind maps a configuration string onto a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "mt19937", "mt", "pseudo", "prng":
		return PseudoRandom, nil
	case "halton", "qmc", "quasi":
		return QuasiRandom, nil
	}
	return "", fmt.Errorf("unknown gaussian source %q: %w", s, errdefs.ErrInvalidParameter)
}

// Stream yields draws of Dim() independent standard normals.
type Stream interface {
	Dim() int
	// Fill writes the next draw into dst, which must have length Dim().
	Fill(dst []float64)
	// Skip advances the stream by n draws.
	Skip(n int)
}

// StreamKeys derives the seed keys of one stream from the run seed. Distinct
// (stream, factor) pairs give distinct key vectors, which seed the generators
// into unrelated states.
func StreamKeys(seed []uint64, stream, factor uint64) []uint64 {
	keys := make([]uint64, 0, len(seed)+2)
	keys = append(keys, seed...)
	return append(keys, stream, factor)
}

// PseudoStream draws normals from a 64-bit Mersenne Twister.
type PseudoStream struct {
	dim int
	rng *rand.Rand
}

// NewPseudoStream returns a stream seeded from keys.
func NewPseudoStream(keys []uint64, dim int) *PseudoStream {
	if dim <= 0 {
		panic("gaussian: non-positive dimension")
	}
	src := prng.NewMT19937_64()
	src.SeedFromKeys(keys)
	return &PseudoStream{dim: dim, rng: rand.New(src)}
}

func (s *PseudoStream) Dim() int { return s.dim }

func (s *PseudoStream) Fill(dst []float64) {
	if len(dst) != s.dim {
		panic("gaussian: draw length mismatch")
	}
	for i := range dst {
		dst[i] = s.rng.NormFloat64()
	}
}

func (s *PseudoStream) Skip(n int) {
	for i := 0; i < n*s.dim; i++ {
		s.rng.NormFloat64()
	}
}

// Factors draws the three driving vectors of one Monte-Carlo sample: W1 and
// W1perp build the volatility, and W2 is the orthogonal part of the price
// driver. The three are mutually independent.
type Factors interface {
	Next(w1, w1perp, w2 []float64)
	Skip(n int)
}

const factorCount = 3

// NewFactors builds the factors of stream index stream for paths of n steps.
func NewFactors(kind Kind, seed []uint64, stream uint64, n int) (Factors, error) {
	if n <= 0 {
		return nil, fmt.Errorf("step count %d: %w", n, errdefs.ErrInvalidDiscretization)
	}
	switch kind {
	case PseudoRandom, "":
		f := &pseudoFactors{}
		for i := range f.s {
			f.s[i] = NewPseudoStream(StreamKeys(seed, stream, uint64(i)), n)
		}
		return f, nil
	case QuasiRandom:
		hs, err := NewHaltonStream(StreamKeys(seed, stream, 0), factorCount*n)
		if err != nil {
			return nil, err
		}
		return &splitFactors{s: hs, buf: make([]float64, factorCount*n), n: n}, nil
	}
	return nil, fmt.Errorf("unknown gaussian source %q: %w", kind, errdefs.ErrInvalidParameter)
}

type pseudoFactors struct {
	s [factorCount]*PseudoStream
}

func (f *pseudoFactors) Next(w1, w1perp, w2 []float64) {
	f.s[0].Fill(w1)
	f.s[1].Fill(w1perp)
	f.s[2].Fill(w2)
}

func (f *pseudoFactors) Skip(n int) {
	for _, s := range f.s {
		s.Skip(n)
	}
}

// splitFactors takes all factors from one point of a 3n-dimensional stream so
// that quasi-random coordinates are never reused across factors.
type splitFactors struct {
	s   Stream
	buf []float64
	n   int
}

func (f *splitFactors) Next(w1, w1perp, w2 []float64) {
	f.s.Fill(f.buf)
	copy(w1, f.buf[:f.n])
	copy(w1perp, f.buf[f.n:2*f.n])
	copy(w2, f.buf[2*f.n:])
}

func (f *splitFactors) Skip(n int) { f.s.Skip(n) }

// MaxQuasiRandomSteps is the longest path NewFactors supports for QuasiRandom.
const MaxQuasiRandomSteps = MaxHaltonDim / factorCount
