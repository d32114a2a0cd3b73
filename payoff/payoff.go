// Package payoff turns one simulated variance path into call payoffs.
//
// Every estimator is a pure function of its inputs; all randomness enters
// through the increments held by Path.
package payoff

import (
	"math"

	"github.com/bcdannyboy/rbergomi/models"
	"github.com/bcdannyboy/rbergomi/options"
)

// Path is one draw on the grid of a single maturity.
type Path struct {
	V   models.VariancePath
	W1  models.Increments // volatility driver, unit variance per step
	Z   models.Increments // price driver, unit variance per step
	Dt  float64
	T   float64
	Rho float64
}

// IntegratedVariance is the left-point sum of v*dt.
func IntegratedVariance(v models.VariancePath, dt float64) float64 {
	s := 0.0
	for _, x := range v {
		s += x
	}
	return s * dt
}

// IntegratedVolIncrement approximates the Ito integral of sqrt(v) against the
// volatility driver, whose increments are sqrt(dt)*w1.
func IntegratedVolIncrement(v models.VariancePath, w1 models.Increments, dt float64) float64 {
	if len(v) != len(w1) {
		panic("payoff: path length mismatch")
	}
	s := 0.0
	for i, x := range v {
		s += math.Sqrt(x) * w1[i]
	}
	return s * math.Sqrt(dt)
}

// LogPrice is the Euler log-price at maturity on a unit spot.
func LogPrice(v models.VariancePath, z models.Increments, dt float64) float64 {
	if len(v) != len(z) {
		panic("payoff: path length mismatch")
	}
	s := 0.0
	for i, x := range v {
		s += math.Sqrt(x*dt)*z[i] - 0.5*x*dt
	}
	return s
}

// Direct writes max(S_T - K, 0) for each strike, with S_T simulated along the
// path.
func Direct(dst []float64, p Path, strikes []float64) []float64 {
	dst = sized(dst, len(strikes))
	s := math.Exp(LogPrice(p.V, p.Z, p.Dt))
	for j, k := range strikes {
		dst[j] = math.Max(s-k, 0)
	}
	return dst
}

// RomanoTouzi writes the call price conditional on the volatility driver. Given
// that path the log-price is Gaussian with forward exp(rho*Iw - rho^2*Iv/2) and
// total variance (1-rho^2)*Iv, so the conditional price is Black-Scholes.
func RomanoTouzi(dst []float64, p Path, strikes []float64) []float64 {
	dst = sized(dst, len(strikes))
	iv := IntegratedVariance(p.V, p.Dt)
	iw := IntegratedVolIncrement(p.V, p.W1, p.Dt)
	forward := math.Exp(p.Rho*iw - 0.5*p.Rho*p.Rho*iv)
	vol := math.Sqrt((1 - p.Rho*p.Rho) * iv / p.T)
	for j, k := range strikes {
		dst[j] = options.Call(forward, k, p.T, vol)
	}
	return dst
}

func sized(dst []float64, n int) []float64 {
	if dst == nil {
		return make([]float64, n)
	}
	if len(dst) != n {
		panic("payoff: destination length mismatch")
	}
	return dst
}
