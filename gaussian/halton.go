package gaussian

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/mathext/prng"
	"gonum.org/v1/gonum/stat/distmv"
	"gonum.org/v1/gonum/stat/distuv"
	"gonum.org/v1/gonum/stat/samplemv"

	"github.com/bcdannyboy/rbergomi/errdefs"
)

const (
	// MaxHaltonDim is the largest dimension gonum's scrambled Halton supports.
	MaxHaltonDim = 1000

	haltonBlock = 512
	minUniform  = 1e-12
)

// HaltonStream draws quasi-random normals from Owen-scrambled Halton points.
//
// Points come in blocks of haltonBlock; block b is the first haltonBlock Halton
// points under a scrambling seeded from (keys, b). Seeking is index arithmetic,
// and the block estimates are independent randomized QMC replicates.
type HaltonStream struct {
	keys  []uint64
	dim   int
	index int

	block  int
	batch  *mat.Dense
	unit   *distmv.Uniform
	src    *prng.MT19937_64
	normal []float64
}

// NewHaltonStream returns a quasi-random stream of the given dimension.
func NewHaltonStream(keys []uint64, dim int) (*HaltonStream, error) {
	if dim <= 0 || dim > MaxHaltonDim {
		return nil, fmt.Errorf("halton dimension %d outside [1, %d]: %w", dim, MaxHaltonDim, errdefs.ErrInvalidDiscretization)
	}
	return &HaltonStream{
		keys:   append([]uint64(nil), keys...),
		dim:    dim,
		block:  -1,
		batch:  mat.NewDense(haltonBlock, dim, nil),
		unit:   distmv.NewUnitUniform(dim, nil),
		src:    prng.NewMT19937_64(),
		normal: make([]float64, haltonBlock*dim),
	}, nil
}

func (s *HaltonStream) Dim() int { return s.dim }

func (s *HaltonStream) Fill(dst []float64) {
	if len(dst) != s.dim {
		panic("gaussian: draw length mismatch")
	}
	b, row := s.index/haltonBlock, s.index%haltonBlock
	if b != s.block {
		s.generate(b)
	}
	copy(dst, s.normal[row*s.dim:(row+1)*s.dim])
	s.index++
}

func (s *HaltonStream) Skip(n int) { s.index += n }

func (s *HaltonStream) generate(b int) {
	s.src.SeedFromKeys(append(append([]uint64(nil), s.keys...), uint64(b)))
	// The Owen construction accumulates digits into the batch.
	s.batch.Zero()
	samplemv.Halton{Kind: samplemv.Owen, Q: s.unit, Src: s.src}.Sample(s.batch)
	for i := 0; i < haltonBlock; i++ {
		row := s.batch.RawRowView(i)
		out := s.normal[i*s.dim : (i+1)*s.dim]
		for j, u := range row {
			out[j] = distuv.UnitNormal.Quantile(math.Min(math.Max(u, minUniform), 1-minUniform))
		}
	}
	s.block = b
}
