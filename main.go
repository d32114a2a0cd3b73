package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	mpb "github.com/vbauerster/mpb/v7"
	"github.com/vbauerster/mpb/v7/decor"
	"go.uber.org/zap"

	"github.com/bcdannyboy/rbergomi/config"
	"github.com/bcdannyboy/rbergomi/logging"
	"github.com/bcdannyboy/rbergomi/probability"
	"github.com/bcdannyboy/rbergomi/report"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "rbergomi: %s\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load(args)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.Development)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	pc, err := cfg.Driver(logger)
	if err != nil {
		return err
	}
	reg := prometheus.NewRegistry()
	pc.Metrics = probability.NewMetrics(reg)

	var p *mpb.Progress
	var bar *mpb.Bar
	if cfg.Progress {
		p = mpb.New(mpb.WithWidth(64), mpb.WithOutput(os.Stderr))
		bar = p.AddBar(int64(pc.Samples),
			mpb.PrependDecorators(
				decor.Name("Paths"),
				decor.Percentage(decor.WCSyncSpace),
			),
			mpb.AppendDecorators(
				decor.CountersNoUnit("(%d / %d)", decor.WCSyncSpace),
				decor.Name(" "),
				decor.AverageETA(decor.ET_STYLE_GO),
			),
		)
		pc.Progress = func(n int) { bar.IncrBy(n) }
	}

	d, err := probability.NewDriver(pc)
	if err != nil {
		return err
	}
	res, err := d.Run()
	if p != nil {
		if err != nil {
			bar.Abort(false)
		}
		p.Wait()
	}
	if err != nil {
		return err
	}

	if err := report.Table(os.Stdout, res); err != nil {
		return err
	}
	if cfg.Output != "" {
		if err := report.WriteFile(cfg.Output, res); err != nil {
			return err
		}
		logger.Info("result written", zap.String("path", cfg.Output))
	}
	if cfg.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(cfg.MetricsFile, reg); err != nil {
			return fmt.Errorf("writing metrics: %w", err)
		}
		logger.Info("metrics written", zap.String("path", cfg.MetricsFile))
	}
	return nil
}
