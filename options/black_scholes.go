// Package options prices European calls on a forward under Black-Scholes and
// inverts those prices to implied volatilities.
package options

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/bcdannyboy/rbergomi/errdefs"
)

const (
	maxIterations = 100
	epsilon       = 1e-10

	minVol = 1e-8
	maxVol = 10.0
)

// Call returns the undiscounted Black-Scholes price of a call with the given
// forward, strike, maturity and volatility. A zero total volatility gives the
// intrinsic value.
func Call(forward, strike, t, vol float64) float64 {
	sd := vol * math.Sqrt(t)
	if !(sd > 0) {
		return math.Max(forward-strike, 0)
	}
	d1 := (math.Log(forward/strike) + 0.5*sd*sd) / sd
	d2 := d1 - sd
	return forward*distuv.UnitNormal.CDF(d1) - strike*distuv.UnitNormal.CDF(d2)
}

// Vega is the sensitivity of Call to vol.
func Vega(forward, strike, t, vol float64) float64 {
	sd := vol * math.Sqrt(t)
	if !(sd > 0) {
		return 0
	}
	d1 := (math.Log(forward/strike) + 0.5*sd*sd) / sd
	return forward * distuv.UnitNormal.Prob(d1) * math.Sqrt(t)
}

// ImpliedVol inverts Call. Newton steps are taken while they stay inside the
// current bracket; otherwise the bracket is bisected.
func ImpliedVol(price, forward, strike, t float64) (float64, error) {
	if !(t > 0) || !(forward > 0) || !(strike > 0) {
		return 0, fmt.Errorf("implied vol needs positive forward, strike and maturity: %w", errdefs.ErrInvalidParameter)
	}
	intrinsic := math.Max(forward-strike, 0)
	if math.IsNaN(price) || price <= intrinsic || price >= forward {
		return 0, fmt.Errorf("price %v outside no-arbitrage bounds (%v, %v): %w", price, intrinsic, forward, errdefs.ErrInvalidParameter)
	}

	lo, hi := minVol, maxVol
	if Call(forward, strike, t, hi) < price {
		return 0, fmt.Errorf("price %v needs volatility above %v: %w", price, maxVol, errdefs.ErrNumericalDegeneracy)
	}
	sigma := math.Sqrt(2 * math.Abs(math.Log(forward/strike)) / t)
	if sigma < 0.1 || sigma > 2 {
		sigma = 0.5
	}
	for i := 0; i < maxIterations; i++ {
		diff := Call(forward, strike, t, sigma) - price
		if math.Abs(diff) < epsilon {
			return sigma, nil
		}
		if diff > 0 {
			hi = sigma
		} else {
			lo = sigma
		}
		next := sigma - diff/Vega(forward, strike, t, sigma)
		if !(next > lo && next < hi) {
			next = 0.5 * (lo + hi)
		}
		if hi-lo < epsilon {
			return next, nil
		}
		sigma = next
	}
	return 0, fmt.Errorf("implied vol did not converge after %d iterations: %w", maxIterations, errdefs.ErrNumericalDegeneracy)
}
