// Package bridge builds Brownian paths by dyadic midpoint refinement.
package bridge

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/bcdannyboy/rbergomi/errdefs"
)

// Transform maps n i.i.d. standard normals onto the n increments of a Brownian
// path. The first normal fixes the end point; each further level of the
// refinement bisects every interval and draws the midpoint from its bridge law.
type Transform struct {
	n      int
	levels int
	path   []float64
}

// New returns a transform for n steps. n must be a power of two.
func New(n int) (*Transform, error) {
	if n <= 0 || n&(n-1) != 0 {
		return nil, fmt.Errorf("bridge needs a power-of-two step count, got %d: %w", n, errdefs.ErrInvalidDiscretization)
	}
	return &Transform{
		n:      n,
		levels: bits.TrailingZeros(uint(n)),
		path:   make([]float64, n+1),
	}, nil
}

// Len returns the number of steps.
func (t *Transform) Len() int { return t.n }

// Path writes the n+1 points W(0), W(horizon/n), ..., W(horizon) driven by z.
// If dst is nil a new slice is allocated.
func (t *Transform) Path(dst, z []float64, horizon float64) []float64 {
	if len(z) != t.n {
		panic("bridge: normal count mismatch")
	}
	if dst == nil {
		dst = make([]float64, t.n+1)
	}
	if len(dst) != t.n+1 {
		panic("bridge: path length mismatch")
	}

	dst[0] = 0
	dst[t.n] = math.Sqrt(horizon) * z[0]
	for l := 1; l <= t.levels; l++ {
		half := t.n >> l
		count := 1 << (l - 1)
		// Interval length at this level is 2*half steps of horizon/n each.
		sd := math.Sqrt(float64(2*half) * horizon / float64(t.n) / 4)
		for j := 0; j < count; j++ {
			left := 2 * j * half
			right := left + 2*half
			dst[left+half] = 0.5*(dst[left]+dst[right]) + sd*z[count+j]
		}
	}
	return dst
}

// Increments writes the n path increments driven by z, each with variance
// horizon/n. If dst is nil a new slice is allocated.
func (t *Transform) Increments(dst, z []float64, horizon float64) []float64 {
	if dst == nil {
		dst = make([]float64, t.n)
	}
	if len(dst) != t.n {
		panic("bridge: increment length mismatch")
	}
	p := t.Path(t.path, z, horizon)
	for i := range dst {
		dst[i] = p[i+1] - p[i]
	}
	return dst
}
