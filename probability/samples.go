package probability

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/bcdannyboy/rbergomi/errdefs"
)

// PayoffSamples evaluates the Romano-Touzi payoff of every cell for normals
// supplied by the caller, one row per sample. Row s of the result holds the
// payoffs of sample s in cell order. With cfg.Hierarchical set the rows are
// passed through the Brownian bridge first, as in a regular run.
//
// A sample whose path is not finite fails the call.
func PayoffSamples(cfg Config, w1, w1perp [][]float64) ([][]float64, error) {
	if len(w1) != len(w1perp) {
		return nil, fmt.Errorf("%d W1 rows but %d W1perp rows: %w", len(w1), len(w1perp), errdefs.ErrInvalidParameter)
	}
	if len(w1) == 0 {
		return nil, nil
	}
	cfg.Samples = len(w1)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for s := range w1 {
		if len(w1[s]) != cfg.Steps || len(w1perp[s]) != cfg.Steps {
			return nil, fmt.Errorf("sample %d has %d/%d normals, want %d: %w",
				s, len(w1[s]), len(w1perp[s]), cfg.Steps, errdefs.ErrInvalidDiscretization)
		}
	}

	cells := cfg.Grid.Cells()
	nContracts := len(cfg.Grid.Contracts)
	out := make([][]float64, len(w1))
	var g errgroup.Group
	first := 0
	for w := 0; w < cfg.Workers; w++ {
		lo := first
		hi := lo + blockSize(len(w1), cfg.Workers, w)
		first = hi
		g.Go(func() error {
			p, err := newPipeline(&cfg)
			if err != nil {
				return err
			}
			for s := lo; s < hi; s++ {
				copy(p.z1, w1[s])
				copy(p.z2, w1perp[s])
				p.load()
				row := make([]float64, cells)
				for i, m := range p.instances {
					if err := p.instance(m); err != nil {
						return err
					}
					for k, mat := range p.maturities {
						rt, _, err := p.payoffs(m, k, true, false)
						if err != nil {
							return fmt.Errorf("sample %d: %w", s, err)
						}
						copy(row[i*nContracts+mat.First:], rt)
					}
				}
				out[s] = row
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
