// Package probability runs the Monte-Carlo pricing of a rough Bergomi grid
// across a fixed pool of workers and reduces their statistics.
package probability

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bcdannyboy/rbergomi/errdefs"
	"github.com/bcdannyboy/rbergomi/gaussian"
	"github.com/bcdannyboy/rbergomi/options"
	"github.com/bcdannyboy/rbergomi/payoff"
)

// State is the lifecycle stage of a Driver.
type State int32

const (
	Idle State = iota
	Running
	Reducing
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Reducing:
		return "reducing"
	case Done:
		return "done"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// ErrAlreadyRun is returned by a second call to Run.
var ErrAlreadyRun = errors.New("driver already run")

// pilotStream is the stream index reserved for the control-variate pilot.
const pilotStream = 1 << 62

type factorSource func(kind gaussian.Kind, seed []uint64, stream uint64, n int) (gaussian.Factors, error)

// Driver prices a grid once.
type Driver struct {
	cfg        Config
	state      atomic.Int32
	newFactors factorSource
}

// NewDriver validates cfg. No goroutine is started before Run.
func NewDriver(cfg Config) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Seed = append([]uint64(nil), cfg.Seed...)
	rate := *cfg.MaxDiscardRate
	cfg.MaxDiscardRate = &rate
	return &Driver{cfg: cfg, newFactors: gaussian.NewFactors}, nil
}

// Price runs a fresh driver on cfg.
func Price(cfg Config) (*Result, error) {
	d, err := NewDriver(cfg)
	if err != nil {
		return nil, err
	}
	return d.Run()
}

func (d *Driver) State() State { return State(d.state.Load()) }

// Config returns the validated configuration, defaults filled in.
func (d *Driver) Config() Config { return d.cfg }

func (d *Driver) setState(s State) {
	d.state.Store(int32(s))
	d.cfg.Logger.Debug("driver state", zap.Stringer("state", s))
}

// Run simulates all samples and returns the per-cell estimates. It may be
// called once.
func (d *Driver) Run() (*Result, error) {
	if !d.state.CompareAndSwap(int32(Idle), int32(Running)) {
		return nil, ErrAlreadyRun
	}
	d.cfg.Logger.Debug("driver state", zap.Stringer("state", Running))
	res, err := d.run()
	if err != nil {
		d.setState(Failed)
		d.cfg.Logger.Error("run failed", zap.Error(err))
		return nil, err
	}
	d.setState(Done)
	return res, nil
}

func (d *Driver) run() (*Result, error) {
	start := time.Now()
	cfg := &d.cfg
	log := cfg.Logger
	cells := cfg.Grid.Cells()

	log.Info("run started",
		zap.Int("steps", cfg.Steps),
		zap.Int("samples", cfg.Samples),
		zap.Int("workers", cfg.Workers),
		zap.String("scheme", string(cfg.Scheme)),
		zap.String("source", string(cfg.Source)),
		zap.Bool("hierarchical", cfg.Hierarchical),
		zap.Int("cells", cells),
	)

	var cv *payoff.ControlVariate
	if cfg.Scheme == RomanoTouziCV {
		est, err := d.pilot(cells)
		if err != nil {
			return nil, err
		}
		cv = &est
	}

	workers := make([]*worker, cfg.Workers)
	for w := range workers {
		stream, skip := workerStream(cfg.Source, cfg.Samples, len(workers), w)
		src, err := d.newFactors(cfg.Source, cfg.Seed, stream, cfg.Steps)
		if err != nil {
			return nil, err
		}
		src.Skip(skip)
		p, err := newPipeline(cfg)
		if err != nil {
			return nil, err
		}
		workers[w] = &worker{
			id:       w,
			scheme:   cfg.Scheme,
			cv:       cv,
			src:      src,
			p:        p,
			acc:      newAccumulator(cells),
			progress: cfg.Progress,
			metrics:  cfg.Metrics,
		}
	}
	cfg.Metrics.workers(len(workers))

	var g errgroup.Group
	for _, wk := range workers {
		wk := wk
		draws := blockSize(cfg.Samples, len(workers), wk.id)
		g.Go(func() error {
			if err := wk.run(draws); err != nil {
				return fmt.Errorf("worker %d: %w", wk.id, err)
			}
			log.Debug("worker finished", zap.Int("worker", wk.id), zap.Int("draws", draws))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	d.setState(Reducing)
	total := newAccumulator(cells)
	for _, wk := range workers {
		total.merge(wk.acc)
	}
	res := d.reduce(total)
	res.ControlVariate = cv
	res.Elapsed = time.Since(start)
	cfg.Metrics.observe(res.Elapsed)

	if res.Discarded > 0 {
		log.Warn("discarded degenerate samples",
			zap.Int("discarded", res.Discarded),
			zap.Int("attempted", res.Attempted),
			zap.Float64("rate", res.DiscardRate()),
		)
	}
	if limit := *cfg.MaxDiscardRate; res.DiscardRate() > limit {
		return nil, fmt.Errorf("discarded %d of %d cell samples, rate %.4g above %.4g: %w",
			res.Discarded, res.Attempted, res.DiscardRate(), limit, errdefs.ErrNumericalDegeneracy)
	}
	log.Info("run finished", zap.Duration("elapsed", res.Elapsed))
	return res, nil
}

func (d *Driver) pilot(cells int) (payoff.ControlVariate, error) {
	cfg := &d.cfg
	src, err := d.newFactors(cfg.Source, cfg.Seed, pilotStream, cfg.Steps)
	if err != nil {
		return payoff.ControlVariate{}, err
	}
	p, err := newPipeline(cfg)
	if err != nil {
		return payoff.ControlVariate{}, err
	}
	rt, direct, discarded, err := pilot(p, src, cfg.PilotSamples, cells)
	if err != nil {
		return payoff.ControlVariate{}, fmt.Errorf("control variate pilot: %w", err)
	}
	cv := payoff.EstimateControlVariate(rt, direct)
	cfg.Logger.Info("control variate estimated",
		zap.Int("pilotSamples", cfg.PilotSamples),
		zap.Int("discarded", discarded),
		zap.Float64s("alpha", cv.Alpha),
		zap.Float64s("q", cv.Q),
	)
	return cv, nil
}

// workerStream returns the stream index of worker w and the draws it skips
// before its block. Quasi-random workers share stream 0 and seek to their
// block, so the run covers the same point set for any worker count.
// Pseudo-random workers own a stream each.
func workerStream(kind gaussian.Kind, samples, workers, w int) (stream uint64, skip int) {
	if kind != gaussian.QuasiRandom {
		return uint64(w), 0
	}
	for i := 0; i < w; i++ {
		skip += blockSize(samples, workers, i)
	}
	return 0, skip
}

// blockSize returns the draws of worker w when total draws are split into
// contiguous blocks differing by at most one.
func blockSize(total, workers, w int) int {
	n := total / workers
	if w < total%workers {
		n++
	}
	return n
}

func (d *Driver) reduce(acc *accumulator) *Result {
	cfg := &d.cfg
	g := cfg.Grid
	res := &Result{
		Instances:    len(g.H),
		Contracts:    len(g.Contracts),
		Steps:        cfg.Steps,
		Samples:      cfg.Samples,
		Workers:      cfg.Workers,
		Scheme:       cfg.Scheme,
		Source:       cfg.Source,
		Hierarchical: cfg.Hierarchical,
		Cells:        make([]Cell, 0, g.Cells()),
	}
	if cfg.Scheme == RomanoTouziCV {
		res.PilotSamples = cfg.PilotSamples
	}

	for i, m := range g.Instances() {
		for k, ct := range g.Contracts {
			idx := i*len(g.Contracts) + k
			cell := Cell{
				Instance:  i,
				Contract:  k,
				H:         m.H,
				Eta:       m.Eta,
				Rho:       m.Rho,
				T:         ct.T,
				K:         ct.K,
				Accepted:  acc.accepted[idx],
				Discarded: acc.discarded[idx],
			}
			cell.Price, cell.StdErr = moments(acc.sum[idx], acc.sumSq[idx], cell.Accepted)
			if cfg.ImpliedVol {
				impliedVol(&cell)
			}
			res.Cells = append(res.Cells, cell)
			res.Attempted += cell.Accepted + cell.Discarded
			res.Discarded += cell.Discarded
		}
	}
	return res
}

// moments returns the sample mean and its standard error. The error uses the
// unbiased variance and is zero for fewer than two samples.
func moments(sum, sumSq float64, n int) (mean, stdErr float64) {
	if n == 0 {
		return 0, 0
	}
	mean = sum / float64(n)
	if n < 2 {
		return mean, 0
	}
	v := (sumSq - sum*mean) / float64(n-1)
	if v < 0 {
		v = 0
	}
	return mean, math.Sqrt(v / float64(n))
}

func impliedVol(c *Cell) {
	if c.Accepted == 0 {
		c.IVError = "no accepted samples"
		return
	}
	iv, err := options.ImpliedVol(c.Price, 1, c.K, c.T)
	if err != nil {
		c.IVError = err.Error()
		return
	}
	c.ImpliedVol = iv
}
