package probability

import (
	"errors"

	"github.com/bcdannyboy/rbergomi/errdefs"
	"github.com/bcdannyboy/rbergomi/gaussian"
	"github.com/bcdannyboy/rbergomi/payoff"
)

const progressStride = 256

// accumulator keeps running moments per cell.
type accumulator struct {
	sum, sumSq          []float64
	accepted, discarded []int
}

func newAccumulator(cells int) *accumulator {
	return &accumulator{
		sum:       make([]float64, cells),
		sumSq:     make([]float64, cells),
		accepted:  make([]int, cells),
		discarded: make([]int, cells),
	}
}

func (a *accumulator) add(base int, values []float64) {
	for j, x := range values {
		a.sum[base+j] += x
		a.sumSq[base+j] += x * x
		a.accepted[base+j]++
	}
}

func (a *accumulator) discard(base, width int) {
	for j := 0; j < width; j++ {
		a.discarded[base+j]++
	}
}

func (a *accumulator) merge(b *accumulator) {
	for c := range a.sum {
		a.sum[c] += b.sum[c]
		a.sumSq[c] += b.sumSq[c]
		a.accepted[c] += b.accepted[c]
		a.discarded[c] += b.discarded[c]
	}
}

func (a *accumulator) totalDiscarded() int {
	n := 0
	for _, d := range a.discarded {
		n += d
	}
	return n
}

// worker runs one contiguous block of draws.
type worker struct {
	id     int
	scheme Scheme
	cv     *payoff.ControlVariate
	src    gaussian.Factors
	p      *pipeline
	acc    *accumulator

	progress func(int)
	metrics  *Metrics
}

func (w *worker) run(draws int) error {
	nContracts := len(w.p.grid.Contracts)
	wantRT := w.scheme != Direct
	wantDirect := w.scheme != RomanoTouzi
	pending := 0

	for d := 0; d < draws; d++ {
		w.src.Next(w.p.z1, w.p.z2, w.p.z3)
		w.p.load()
		for i, m := range w.p.instances {
			if err := w.p.instance(m); err != nil {
				return err
			}
			for k, mat := range w.p.maturities {
				base := i*nContracts + mat.First
				rt, direct, err := w.p.payoffs(m, k, wantRT, wantDirect)
				if errors.Is(err, errdefs.ErrNumericalDegeneracy) {
					w.acc.discard(base, mat.Last-mat.First)
					w.metrics.discard(mat.Last - mat.First)
					continue
				}
				if err != nil {
					return err
				}
				switch w.scheme {
				case Direct:
					w.acc.add(base, direct)
				case RomanoTouzi:
					w.acc.add(base, rt)
				case RomanoTouziCV:
					w.acc.add(base, w.cv.Adjust(w.p.adj[:len(rt)], rt, direct, base))
				}
			}
		}
		if pending++; pending == progressStride {
			w.report(pending)
			pending = 0
		}
	}
	w.report(pending)
	return nil
}

func (w *worker) report(draws int) {
	if draws == 0 {
		return
	}
	w.metrics.draw(draws)
	if w.progress != nil {
		w.progress(draws)
	}
}

// pilot draws samples of both estimators for the control-variate regression.
// Degenerate groups are left out of the regression.
func pilot(p *pipeline, src gaussian.Factors, draws, cells int) (rt, direct [][]float64, discarded int, err error) {
	rt = make([][]float64, cells)
	direct = make([][]float64, cells)
	nContracts := len(p.grid.Contracts)
	for d := 0; d < draws; d++ {
		src.Next(p.z1, p.z2, p.z3)
		p.load()
		for i, m := range p.instances {
			if err := p.instance(m); err != nil {
				return nil, nil, 0, err
			}
			for k, mat := range p.maturities {
				base := i*nContracts + mat.First
				r, dir, err := p.payoffs(m, k, true, true)
				if errors.Is(err, errdefs.ErrNumericalDegeneracy) {
					discarded += mat.Last - mat.First
					continue
				}
				if err != nil {
					return nil, nil, 0, err
				}
				for j := range r {
					rt[base+j] = append(rt[base+j], r[j])
					direct[base+j] = append(direct[base+j], dir[j])
				}
			}
		}
	}
	return rt, direct, discarded, nil
}
