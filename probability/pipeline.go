package probability

import (
	"fmt"
	"math"

	"github.com/bcdannyboy/rbergomi/bridge"
	"github.com/bcdannyboy/rbergomi/errdefs"
	"github.com/bcdannyboy/rbergomi/models"
	"github.com/bcdannyboy/rbergomi/payoff"
)

// pipeline owns every buffer one goroutine needs to turn the factor draws of
// one sample into payoffs. It is allocated once per goroutine and reused for every
// draw.
type pipeline struct {
	n          int
	xi0        float64
	grid       *models.Grid
	instances  []models.Model
	maturities []models.Maturity
	strikes    [][]float64

	bridge  *bridge.Transform
	builder *models.VarianceBuilder

	z1, z2, z3     []float64
	w1, w1perp, w2 models.Increments
	z              models.Increments
	wt, scaled     models.FractionalPath
	v              models.VariancePath

	rt, direct, adj []float64
}

func newPipeline(cfg *Config) (*pipeline, error) {
	n := cfg.Steps
	builder, err := models.NewVarianceBuilder(n)
	if err != nil {
		return nil, err
	}
	p := &pipeline{
		n:          n,
		xi0:        cfg.Xi0,
		grid:       cfg.Grid,
		instances:  cfg.Grid.Instances(),
		maturities: cfg.Grid.Maturities(),
		builder:    builder,
		z1:         make([]float64, n),
		z2:         make([]float64, n),
		z3:         make([]float64, n),
		w1:         make(models.Increments, n),
		w1perp:     make(models.Increments, n),
		w2:         make(models.Increments, n),
		z:          make(models.Increments, n),
		wt:         make(models.FractionalPath, n),
		scaled:     make(models.FractionalPath, n),
		v:          make(models.VariancePath, n),
	}
	if cfg.Hierarchical {
		if p.bridge, err = bridge.New(n); err != nil {
			return nil, err
		}
	}
	widest := 0
	for _, m := range p.maturities {
		p.strikes = append(p.strikes, cfg.Grid.Strikes(m))
		widest = max(widest, m.Last-m.First)
	}
	p.rt = make([]float64, widest)
	p.direct = make([]float64, widest)
	p.adj = make([]float64, widest)
	return p, nil
}

// load installs the driving increments of one draw from the raw normals in
// z1, z2 and z3.
func (p *pipeline) load() {
	if p.bridge != nil {
		// Horizon n keeps unit variance per step.
		p.bridge.Increments(p.w1, p.z1, float64(p.n))
		p.bridge.Increments(p.w1perp, p.z2, float64(p.n))
		p.bridge.Increments(p.w2, p.z3, float64(p.n))
	} else {
		copy(p.w1, p.z1)
		copy(p.w1perp, p.z2)
		copy(p.w2, p.z3)
	}
	p.builder.Load(p.w1)
}

// instance prepares the maturity-independent paths of model m. W1perp only
// enters the variance path; the price driver takes its orthogonal part from
// W2.
func (p *pipeline) instance(m models.Model) error {
	if _, err := p.builder.Fractional(p.wt, p.w1, p.w1perp, m.H); err != nil {
		return err
	}
	models.Correlate(p.z, p.w1, p.w2, m.Rho)
	return nil
}

// payoffs evaluates the contracts of maturity k under model m. The returned
// slices alias pipeline scratch. A non-finite path or payoff yields
// ErrNumericalDegeneracy.
func (p *pipeline) payoffs(m models.Model, k int, wantRT, wantDirect bool) (rt, direct []float64, err error) {
	mat := p.maturities[k]
	p.builder.Scale(p.scaled, p.wt, mat.T, m.H)
	if _, err := p.builder.Variance(p.v, p.scaled, p.xi0, m.H, m.Eta, mat.T); err != nil {
		return nil, nil, err
	}
	path := payoff.Path{
		V:   p.v,
		W1:  p.w1,
		Z:   p.z,
		Dt:  mat.T / float64(p.n),
		T:   mat.T,
		Rho: m.Rho,
	}
	width := mat.Last - mat.First
	if wantRT {
		rt = payoff.RomanoTouzi(p.rt[:width], path, p.strikes[k])
		if err := checkFinite(rt); err != nil {
			return nil, nil, err
		}
	}
	if wantDirect {
		direct = payoff.Direct(p.direct[:width], path, p.strikes[k])
		if err := checkFinite(direct); err != nil {
			return nil, nil, err
		}
	}
	return rt, direct, nil
}

func checkFinite(xs []float64) error {
	for j, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("payoff %d is %v: %w", j, x, errdefs.ErrNumericalDegeneracy)
		}
	}
	return nil
}
