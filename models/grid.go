package models

import (
	"fmt"
	"math"

	"github.com/bcdannyboy/rbergomi/errdefs"
)

// Model is one rough Bergomi instance.
type Model struct {
	H   float64 // Hurst exponent of the volatility driver
	Eta float64 // Volatility of variance
	Rho float64 // Correlation between the price and volatility drivers
}

// Contract is a European call with maturity T and strike K on a unit spot.
type Contract struct {
	T float64
	K float64
}

// Maturity groups the contracts sharing one expiry. Contracts[First:Last] all
// have maturity T.
type Maturity struct {
	T           float64
	First, Last int
}

// Grid holds index-aligned model parameters and the contracts priced under each
// of them.
type Grid struct {
	H         []float64
	Eta       []float64
	Rho       []float64
	Contracts []Contract
}

func NewGrid(h, eta, rho []float64, contracts []Contract) (*Grid, error) {
	g := &Grid{H: h, Eta: eta, Rho: rho, Contracts: contracts}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// Validate checks the grid invariants.
func (g *Grid) Validate() error {
	if len(g.H) != len(g.Eta) || len(g.H) != len(g.Rho) {
		return fmt.Errorf("parameter lengths differ (H=%d, eta=%d, rho=%d): %w",
			len(g.H), len(g.Eta), len(g.Rho), errdefs.ErrInvalidParameter)
	}
	if len(g.H) == 0 {
		return fmt.Errorf("no model instances: %w", errdefs.ErrInvalidParameter)
	}
	if len(g.Contracts) == 0 {
		return fmt.Errorf("no contracts: %w", errdefs.ErrInvalidParameter)
	}
	for i := range g.H {
		if err := CheckHurst(g.H[i]); err != nil {
			return fmt.Errorf("instance %d: %w", i, err)
		}
		if !(g.Rho[i] >= -1 && g.Rho[i] <= 1) {
			return fmt.Errorf("instance %d: rho %v outside [-1, 1]: %w", i, g.Rho[i], errdefs.ErrInvalidParameter)
		}
		if !(g.Eta[i] >= 0) || math.IsInf(g.Eta[i], 0) {
			return fmt.Errorf("instance %d: eta %v must be finite and non-negative: %w", i, g.Eta[i], errdefs.ErrInvalidParameter)
		}
	}
	prev := 0.0
	for i, c := range g.Contracts {
		if !(c.T > 0) || math.IsInf(c.T, 0) {
			return fmt.Errorf("contract %d: maturity %v: %w", i, c.T, errdefs.ErrInvalidParameter)
		}
		if !(c.K > 0) || math.IsInf(c.K, 0) {
			return fmt.Errorf("contract %d: strike %v: %w", i, c.K, errdefs.ErrInvalidParameter)
		}
		if c.T < prev {
			return fmt.Errorf("contract %d: maturities not sorted: %w", i, errdefs.ErrInvalidParameter)
		}
		prev = c.T
	}
	return nil
}

// CheckHurst reports whether h lies in (0, 0.5).
func CheckHurst(h float64) error {
	if !(h > 0 && h < 0.5) {
		return fmt.Errorf("hurst exponent %v outside (0, 0.5): %w", h, errdefs.ErrInvalidParameter)
	}
	return nil
}

func (g *Grid) Instances() []Model {
	out := make([]Model, len(g.H))
	for i := range g.H {
		out[i] = Model{H: g.H[i], Eta: g.Eta[i], Rho: g.Rho[i]}
	}
	return out
}

// Maturities returns the distinct maturities in contract order.
func (g *Grid) Maturities() []Maturity {
	var out []Maturity
	for i, c := range g.Contracts {
		if len(out) > 0 && out[len(out)-1].T == c.T {
			out[len(out)-1].Last = i + 1
			continue
		}
		out = append(out, Maturity{T: c.T, First: i, Last: i + 1})
	}
	return out
}

// Strikes returns the strikes of the contracts in m.
func (g *Grid) Strikes(m Maturity) []float64 {
	out := make([]float64, 0, m.Last-m.First)
	for _, c := range g.Contracts[m.First:m.Last] {
		out = append(out, c.K)
	}
	return out
}

// Cells is the number of (instance, contract) pairs.
func (g *Grid) Cells() int { return len(g.H) * len(g.Contracts) }
