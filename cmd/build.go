package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sambabib/depcheck/pkg/advisory"
	"github.com/sambabib/depcheck/pkg/cache"
	"github.com/sambabib/depcheck/pkg/config"
	"github.com/sambabib/depcheck/pkg/engine"
	"github.com/sambabib/depcheck/pkg/fetch"
	"github.com/sambabib/depcheck/pkg/filter"
	"github.com/sambabib/depcheck/pkg/logger"
	"github.com/sambabib/depcheck/pkg/manifest"
	"github.com/sambabib/depcheck/pkg/metrics"
	"github.com/sambabib/depcheck/pkg/output"
	"github.com/sambabib/depcheck/pkg/registry"
)

// ErrThresholdExceeded is returned when a vulnerability at or above the
// configured failOn severity is reported.
var ErrThresholdExceeded = errors.New("vulnerability severity threshold exceeded")

// loadConfig reads the config file for target (or --config) and applies
// environment and flag overrides on top.
func loadConfig(target string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if cfgFile != "" {
		cfg, err = config.LoadConfig(cfgFile)
	} else {
		cfg, err = config.FindAndLoadConfig(target)
	}
	if err != nil {
		return nil, err
	}
	cfg.ApplyOverrides(env)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newEngine wires the advisory sources, registry resolver and caches
// described by cfg into an engine sharing one HTTP client.
func newEngine(cfg *config.Config, m *metrics.Metrics) *engine.Engine {
	client := fetch.NewClient("depcheck/"+Version, m)
	client.Timeout = cfg.HTTP.Timeout
	client.MaxRetries = cfg.HTTP.Retries
	client.Backoff = cfg.HTTP.Backoff

	var sources []advisory.Source
	if cfg.SourceEnabled(advisory.SourceOSV) {
		sources = append(sources, advisory.NewOSV(client, cfg.Sources.OSV))
	}
	if cfg.SourceEnabled(advisory.SourceGitHub) {
		if cfg.Sources.GitHubToken == "" {
			logger.Debugf("no GitHub token set, advisory queries are rate limited")
		}
		sources = append(sources, advisory.NewGitHub(client, cfg.Sources.GitHub, cfg.Sources.GitHubToken))
	}

	cacheOpts := cache.Options{Size: cfg.Cache.Size, TTL: cfg.Cache.TTL}
	return engine.New(engine.Options{
		Sources:     sources,
		Resolver:    registry.NewResolver(client, cfg.Registries, m),
		Filter:      filter.New(cache.NewMemo(cacheOpts), m, cfg.DevPackages...),
		Results:     cache.NewResults[[]engine.VulnerabilityRecord](cacheOpts, m),
		Metrics:     m,
		Concurrency: cfg.Concurrency,
		Ignore:      cfg.IsPackageIgnored,
	})
}

// runAnalysis loads the manifests under target, analyses them and writes the
// report to cfg.Output.File, or to stdout when no file is configured.
func runAnalysis(ctx context.Context, eng *engine.Engine, cfg *config.Config, target string, stdout io.Writer) (engine.Report, error) {
	deps, err := manifest.Load(target)
	if err != nil {
		return engine.Report{}, err
	}
	logger.Infof("Loaded %d dependencies from %s", len(deps), target)

	report := eng.Analyze(ctx, deps)

	w := stdout
	if cfg.Output.File != "" {
		f, err := os.Create(cfg.Output.File)
		if err != nil {
			return report, fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}
	if err := output.Write(w, cfg.Output.Format, report, target); err != nil {
		return report, err
	}
	if cfg.Output.File != "" {
		logger.Infof("Report written to %s", cfg.Output.File)
	}

	if cfg.FailOn != "" {
		threshold, err := cfg.FailOnSeverity()
		if err != nil {
			return report, err
		}
		for _, v := range report.Vulnerabilities {
			if v.Finding.Severity.Rank() >= threshold.Rank() {
				return report, fmt.Errorf("%w: %s %s has %s advisory %s",
					ErrThresholdExceeded, v.PackageName, v.Version, v.Finding.Severity, v.Finding.ID)
			}
		}
	}
	return report, nil
}
