// Package config loads run settings from flags, RBERGOMI_* environment
// variables, an optional .env file and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shirou/gopsutil/cpu"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/bcdannyboy/rbergomi/errdefs"
	"github.com/bcdannyboy/rbergomi/gaussian"
	"github.com/bcdannyboy/rbergomi/models"
	"github.com/bcdannyboy/rbergomi/probability"
)

const envPrefix = "RBERGOMI"

// DefaultSeed is the seed vector of the reference scenario.
var DefaultSeed = []uint64{123, 452, 567, 248, 9436, 675, 194, 6702}

type Config struct {
	H   []float64
	Eta []float64
	Rho []float64

	Maturities []float64
	Strikes    []float64

	Xi0     float64
	Steps   int
	Samples int
	Workers int
	Seed    []uint64

	Scheme         string
	Source         string
	Hierarchical   bool
	PilotSamples   int
	MaxDiscardRate float64
	ImpliedVol     bool

	LogLevel    string
	Development bool
	Progress    bool
	Output      string
	MetricsFile string
}

func newFlagSet() *pflag.FlagSet {
	f := pflag.NewFlagSet("rbergomi", pflag.ContinueOnError)
	f.String("config", "", "optional YAML settings file")

	f.StringSlice("hurst", []string{"0.07"}, "Hurst exponents, one per model instance")
	f.StringSlice("eta", []string{"2.2"}, "vol-of-vol values, one per model instance")
	f.StringSlice("rho", []string{"-0.9"}, "correlations, one per model instance")
	f.StringSlice("maturities", []string{"0.5"}, "contract maturities; a single value applies to every strike")
	f.StringSlice("strikes", []string{"0.8"}, "contract strikes as moneyness")
	f.Float64("xi0", 0.07, "flat forward variance")

	f.Int("steps", 256, "time steps per maturity")
	f.Int("samples", 40*256*256, "Monte-Carlo draws")
	f.Int("workers", 0, "worker goroutines (0 = logical CPUs)")
	f.StringSlice("seed", formatSeed(DefaultSeed), "seed vector")

	f.String("scheme", string(probability.RomanoTouzi), "payoff estimator: direct, rt or rt-cv")
	f.String("source", string(gaussian.PseudoRandom), "normal source: mt19937 or halton")
	f.Bool("hierarchical", false, "build increments with a Brownian bridge")
	f.Int("pilot-samples", 0, "control-variate pilot draws (0 = max(100, samples/100))")
	f.Float64("max-discard-rate", probability.DefaultMaxDiscardRate, "largest tolerated share of degenerate samples; 0 aborts on the first")
	f.Bool("implied-vol", true, "invert prices to implied volatilities")

	f.String("log-level", "info", "log level")
	f.Bool("development", false, "console logging")
	f.Bool("progress", true, "show a progress bar")
	f.String("output", "", "write the result as JSON to this file")
	f.String("metrics-file", "", "write Prometheus metrics to this file")
	return f
}

// Load resolves the settings. Precedence is flags, then environment, then the
// YAML file, then defaults.
func Load(args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	flags := newFlagSet()
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		return nil, fmt.Errorf("binding flags: %w", err)
	}
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Xi0:            v.GetFloat64("xi0"),
		Steps:          v.GetInt("steps"),
		Samples:        v.GetInt("samples"),
		Workers:        v.GetInt("workers"),
		Scheme:         v.GetString("scheme"),
		Source:         v.GetString("source"),
		Hierarchical:   v.GetBool("hierarchical"),
		PilotSamples:   v.GetInt("pilot-samples"),
		MaxDiscardRate: v.GetFloat64("max-discard-rate"),
		ImpliedVol:     v.GetBool("implied-vol"),
		LogLevel:       v.GetString("log-level"),
		Development:    v.GetBool("development"),
		Progress:       v.GetBool("progress"),
		Output:         v.GetString("output"),
		MetricsFile:    v.GetString("metrics-file"),
	}

	var err error
	for _, l := range []struct {
		key string
		dst *[]float64
	}{
		{"hurst", &cfg.H},
		{"eta", &cfg.Eta},
		{"rho", &cfg.Rho},
		{"maturities", &cfg.Maturities},
		{"strikes", &cfg.Strikes},
	} {
		if *l.dst, err = floatList(v.GetStringSlice(l.key)); err != nil {
			return nil, fmt.Errorf("%s: %w", l.key, err)
		}
	}
	if cfg.Seed, err = seedList(v.GetStringSlice("seed")); err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}
	if cfg.Workers == 0 {
		cfg.Workers = DefaultWorkers()
	}
	return cfg, nil
}

// DefaultWorkers is the number of logical CPUs.
func DefaultWorkers() int {
	n, err := cpu.Counts(true)
	if err != nil || n < 1 {
		return runtime.NumCPU()
	}
	return n
}

// Grid builds the parameter grid. Contracts are ordered by maturity.
func (c *Config) Grid() (*models.Grid, error) {
	mats := c.Maturities
	if len(mats) == 1 && len(c.Strikes) > 1 {
		mats = make([]float64, len(c.Strikes))
		for i := range mats {
			mats[i] = c.Maturities[0]
		}
	}
	if len(mats) != len(c.Strikes) {
		return nil, fmt.Errorf("%d maturities for %d strikes: %w", len(mats), len(c.Strikes), errdefs.ErrInvalidParameter)
	}
	contracts := make([]models.Contract, len(mats))
	for i := range mats {
		contracts[i] = models.Contract{T: mats[i], K: c.Strikes[i]}
	}
	sort.SliceStable(contracts, func(i, j int) bool { return contracts[i].T < contracts[j].T })
	return models.NewGrid(c.H, c.Eta, c.Rho, contracts)
}

// Driver builds the pricing configuration. Metrics and progress are left to the
// caller.
func (c *Config) Driver(logger *zap.Logger) (probability.Config, error) {
	grid, err := c.Grid()
	if err != nil {
		return probability.Config{}, err
	}
	scheme, err := probability.ParseScheme(c.Scheme)
	if err != nil {
		return probability.Config{}, err
	}
	source, err := gaussian.ParseKind(c.Source)
	if err != nil {
		return probability.Config{}, err
	}
	return probability.Config{
		Grid:           grid,
		Xi0:            c.Xi0,
		Steps:          c.Steps,
		Samples:        c.Samples,
		Workers:        c.Workers,
		Seed:           c.Seed,
		Scheme:         scheme,
		Source:         source,
		Hierarchical:   c.Hierarchical,
		PilotSamples:   c.PilotSamples,
		MaxDiscardRate: probability.DiscardRate(c.MaxDiscardRate),
		ImpliedVol:     c.ImpliedVol,
		Logger:         logger,
	}, nil
}

// splitList flattens values that may themselves be comma separated, as they
// are when read from the environment.
func splitList(values []string) []string {
	var out []string
	for _, s := range values {
		for _, f := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' }) {
			out = append(out, f)
		}
	}
	return out
}

func floatList(values []string) ([]float64, error) {
	fields := splitList(values)
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		x, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", f, errdefs.ErrInvalidParameter)
		}
		out = append(out, x)
	}
	return out, nil
}

func seedList(values []string) ([]uint64, error) {
	fields := splitList(values)
	out := make([]uint64, 0, len(fields))
	for _, f := range fields {
		x, err := strconv.ParseUint(f, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", f, errdefs.ErrInvalidParameter)
		}
		out = append(out, x)
	}
	return out, nil
}

func formatSeed(seed []uint64) []string {
	out := make([]string, len(seed))
	for i, s := range seed {
		out[i] = strconv.FormatUint(s, 10)
	}
	return out
}
