package probability

import (
	"fmt"
	"math"
	"runtime"
	"strings"

	"go.uber.org/zap"

	"github.com/bcdannyboy/rbergomi/errdefs"
	"github.com/bcdannyboy/rbergomi/gaussian"
	"github.com/bcdannyboy/rbergomi/models"
)

// Scheme selects the payoff estimator.
type Scheme string

const (
	Direct        Scheme = "direct"
	RomanoTouzi   Scheme = "rt"
	RomanoTouziCV Scheme = "rt-cv"
)

// ParseScheme maps a configuration string onto a Scheme.
func ParseScheme(s string) (Scheme, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "direct", "euler":
		return Direct, nil
	case "", "rt", "romano-touzi", "romanotouzi":
		return RomanoTouzi, nil
	case "rt-cv", "cv", "control-variate":
		return RomanoTouziCV, nil
	}
	return "", fmt.Errorf("unknown scheme %q: %w", s, errdefs.ErrInvalidParameter)
}

const (
	// DefaultMaxDiscardRate is the largest tolerated share of discarded
	// (sample, instance, maturity) groups.
	DefaultMaxDiscardRate = 0.01

	minPilotSamples = 100
)

// DiscardRate returns r as a Config.MaxDiscardRate value.
func DiscardRate(r float64) *float64 { return &r }

// Config describes one pricing run.
type Config struct {
	Grid    *models.Grid
	Xi0     float64  // Flat forward variance
	Steps   int      // Time steps per maturity
	Samples int      // Monte-Carlo draws
	Workers int      // Zero means GOMAXPROCS
	Seed    []uint64 // Root seed vector

	Scheme       Scheme
	Source       gaussian.Kind
	Hierarchical bool // Build increments by Brownian bridge

	// PilotSamples sizes the control-variate pilot; zero picks
	// max(100, Samples/100).
	PilotSamples int
	// MaxDiscardRate bounds the share of discarded groups; nil means
	// DefaultMaxDiscardRate and zero aborts on the first discard.
	MaxDiscardRate *float64
	ImpliedVol     bool

	Logger  *zap.Logger
	Metrics *Metrics
	// Progress receives the number of draws completed since its last call. It
	// is called from worker goroutines and must be safe for concurrent use.
	Progress func(draws int)
}

// Validate checks the configuration and fills in defaults. It never starts a
// goroutine.
func (c *Config) Validate() error {
	if c.Grid == nil {
		return fmt.Errorf("missing parameter grid: %w", errdefs.ErrInvalidParameter)
	}
	if err := c.Grid.Validate(); err != nil {
		return err
	}
	if !(c.Xi0 > 0) || math.IsInf(c.Xi0, 0) {
		return fmt.Errorf("xi0 %v must be positive and finite: %w", c.Xi0, errdefs.ErrInvalidParameter)
	}
	if c.Steps <= 0 {
		return fmt.Errorf("step count %d: %w", c.Steps, errdefs.ErrInvalidDiscretization)
	}
	if c.Samples < 1 {
		return fmt.Errorf("sample count %d: %w", c.Samples, errdefs.ErrInvalidParameter)
	}
	if c.Workers < 0 {
		return fmt.Errorf("worker count %d: %w", c.Workers, errdefs.ErrInvalidParameter)
	}
	if len(c.Seed) == 0 {
		return fmt.Errorf("empty seed: %w", errdefs.ErrInvalidParameter)
	}

	var err error
	if c.Scheme, err = ParseScheme(string(c.Scheme)); err != nil {
		return err
	}
	if c.Source, err = gaussian.ParseKind(string(c.Source)); err != nil {
		return err
	}
	pow2 := c.Steps&(c.Steps-1) == 0
	if c.Hierarchical && !pow2 {
		return fmt.Errorf("hierarchical increments need a power-of-two step count, got %d: %w", c.Steps, errdefs.ErrInvalidDiscretization)
	}
	if c.Source == gaussian.QuasiRandom {
		if !pow2 {
			return fmt.Errorf("quasi-random draws need a power-of-two step count, got %d: %w", c.Steps, errdefs.ErrInvalidDiscretization)
		}
		if c.Steps > gaussian.MaxQuasiRandomSteps {
			return fmt.Errorf("quasi-random draws support at most %d steps, got %d: %w", gaussian.MaxQuasiRandomSteps, c.Steps, errdefs.ErrInvalidDiscretization)
		}
	}

	if c.PilotSamples < 0 {
		return fmt.Errorf("pilot sample count %d: %w", c.PilotSamples, errdefs.ErrInvalidParameter)
	}
	if c.PilotSamples == 0 {
		c.PilotSamples = max(minPilotSamples, c.Samples/100)
	}
	if c.MaxDiscardRate == nil {
		c.MaxDiscardRate = DiscardRate(DefaultMaxDiscardRate)
	}
	if r := *c.MaxDiscardRate; !(r >= 0 && r <= 1) {
		return fmt.Errorf("discard rate %v outside [0, 1]: %w", r, errdefs.ErrInvalidParameter)
	}

	if c.Workers == 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if c.Workers > c.Samples {
		c.Workers = c.Samples
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return nil
}
