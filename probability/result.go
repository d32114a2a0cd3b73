package probability

import (
	"time"

	"github.com/bcdannyboy/rbergomi/gaussian"
	"github.com/bcdannyboy/rbergomi/payoff"
)

// Cell is the estimate for one (model instance, contract) pair.
type Cell struct {
	Instance int     `json:"instance"`
	Contract int     `json:"contract"`
	H        float64 `json:"H"`
	Eta      float64 `json:"eta"`
	Rho      float64 `json:"rho"`
	T        float64 `json:"T"`
	K        float64 `json:"K"`

	Price  float64 `json:"price"`
	StdErr float64 `json:"stdErr"`
	// ImpliedVol is set when requested and the inversion succeeded; IVError
	// holds the reason otherwise.
	ImpliedVol float64 `json:"impliedVol,omitempty"`
	IVError    string  `json:"ivError,omitempty"`

	Accepted  int `json:"accepted"`
	Discarded int `json:"discarded"`
}

// Result is the outcome of one run. It is not modified after Run returns.
type Result struct {
	Cells     []Cell `json:"cells"`
	Instances int    `json:"instances"`
	Contracts int    `json:"contracts"`

	Steps        int           `json:"steps"`
	Samples      int           `json:"samples"`
	Workers      int           `json:"workers"`
	Scheme       Scheme        `json:"scheme"`
	Source       gaussian.Kind `json:"source"`
	Hierarchical bool          `json:"hierarchical"`
	PilotSamples int           `json:"pilotSamples,omitempty"`

	Attempted int           `json:"attempted"`
	Discarded int           `json:"discarded"`
	Elapsed   time.Duration `json:"elapsed"`

	ControlVariate *payoff.ControlVariate `json:"controlVariate,omitempty"`
}

// Cell returns the estimate of contract c under model instance i.
func (r *Result) Cell(i, c int) Cell {
	return r.Cells[i*r.Contracts+c]
}

// DiscardRate is the share of attempted cell samples that were discarded.
func (r *Result) DiscardRate() float64 {
	if r.Attempted == 0 {
		return 0
	}
	return float64(r.Discarded) / float64(r.Attempted)
}
