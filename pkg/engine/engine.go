// Package engine runs the full analysis of a dependency list: advisory
// lookups, affected-version confirmation, false-positive filtering, staleness
// and the health score.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sambabib/depcheck/pkg/advisory"
	"github.com/sambabib/depcheck/pkg/cache"
	"github.com/sambabib/depcheck/pkg/ecosystem"
	"github.com/sambabib/depcheck/pkg/filter"
	"github.com/sambabib/depcheck/pkg/logger"
	"github.com/sambabib/depcheck/pkg/manifest"
	"github.com/sambabib/depcheck/pkg/metrics"
	"github.com/sambabib/depcheck/pkg/registry"
	"github.com/sambabib/depcheck/pkg/version"
)

const DefaultConcurrency = 8

// LatestResolver finds the newest published version of a package.
type LatestResolver interface {
	Latest(ctx context.Context, name string, eco ecosystem.Ecosystem) (version.Version, error)
}

// Options configures an Engine. Only Sources is required.
type Options struct {
	Sources []advisory.Source
	// Resolver may be nil, in which case staleness is not computed.
	Resolver LatestResolver
	Filter   *filter.Filter
	Results  *cache.Results[[]VulnerabilityRecord]
	Metrics  *metrics.Metrics
	// Concurrency caps how many dependencies are analysed at once.
	Concurrency int
	// Ignore reports packages to skip entirely. Nil skips nothing.
	Ignore func(name string) bool
}

// Engine is safe for concurrent use. Its caches persist across Analyze calls.
type Engine struct {
	sources     []advisory.Source
	resolver    LatestResolver
	filter      *filter.Filter
	results     *cache.Results[[]VulnerabilityRecord]
	metrics     *metrics.Metrics
	concurrency int
	ignore      func(name string) bool
}

// New creates an Engine, filling in a filter and result cache when none are given.
func New(opts Options) *Engine {
	e := &Engine{
		sources:     opts.Sources,
		resolver:    opts.Resolver,
		filter:      opts.Filter,
		results:     opts.Results,
		metrics:     opts.Metrics,
		concurrency: opts.Concurrency,
		ignore:      opts.Ignore,
	}
	if e.filter == nil {
		e.filter = filter.New(cache.NewMemo(cache.Options{}), opts.Metrics)
	}
	if e.results == nil {
		e.results = cache.NewResults[[]VulnerabilityRecord](cache.Options{}, opts.Metrics)
	}
	if e.concurrency <= 0 {
		e.concurrency = DefaultConcurrency
	}
	return e
}

// dependencyResult is what one dependency contributes to the report.
type dependencyResult struct {
	vulns    []VulnerabilityRecord
	stale    *registry.StalenessRecord
	degraded []string
}

// Analyze checks every dependency and returns the merged report. It never
// fails: sources or registries that cannot be reached are listed in
// Report.Degraded and contribute nothing. Output follows input order.
func (e *Engine) Analyze(ctx context.Context, deps []manifest.Dependency) Report {
	start := time.Now()
	runID := uuid.NewString()
	log := logger.With("run_id", runID)
	log.Debug("analysis started", "dependencies", len(deps))

	results := make([]dependencyResult, len(deps))
	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, dep := range deps {
		g.Go(func() error {
			results[i] = e.analyzeDependency(ctx, log, dep)
			// failures are carried in the result, never returned, so one
			// dependency cannot cancel the others
			return nil
		})
	}
	_ = g.Wait()

	report := Report{
		RunID:           runID,
		StartedAt:       start,
		Dependencies:    len(deps),
		Vulnerabilities: []VulnerabilityRecord{},
		Staleness:       []registry.StalenessRecord{},
	}
	for _, r := range results {
		report.Vulnerabilities = append(report.Vulnerabilities, r.vulns...)
		if r.stale != nil {
			report.Staleness = append(report.Staleness, *r.stale)
		}
		report.Degraded = append(report.Degraded, r.degraded...)
	}
	report.HealthScore = HealthScore(report.Vulnerabilities, report.Staleness)
	report.Duration = time.Since(start)
	e.metrics.ObserveRun(report.Duration, report.HealthScore)

	log.Info("analysis finished",
		"dependencies", len(deps),
		"vulnerabilities", len(report.Vulnerabilities),
		"outdated", len(report.Staleness),
		"degraded", len(report.Degraded),
		"health_score", report.HealthScore,
		"duration", report.Duration)
	return report
}

func (e *Engine) analyzeDependency(ctx context.Context, log *slog.Logger, dep manifest.Dependency) dependencyResult {
	if e.ignore != nil && e.ignore(dep.Name) {
		log.Debug("ignoring package", "package", dep.Name)
		return dependencyResult{}
	}
	current := version.Normalize(dep.Specifier)
	if !current.Valid {
		// nothing can be confirmed or compared without a concrete version
		log.Debug("unparsable version, skipping", "package", dep.Name, "specifier", dep.Specifier)
		return dependencyResult{}
	}

	var (
		res dependencyResult
		wg  sync.WaitGroup
		mu  sync.Mutex
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		vulns, degraded := e.vulnerabilities(ctx, dep, current)
		mu.Lock()
		res.vulns = withProvenance(vulns, dep)
		res.degraded = append(res.degraded, degraded...)
		mu.Unlock()
	}()

	if e.resolver != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			latest, err := e.resolver.Latest(ctx, dep.Name, dep.Ecosystem)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.degraded = append(res.degraded, "registry:"+dep.Name)
				return
			}
			if rec, outdated := registry.Staleness(dep.Name, current, latest); outdated {
				rec.Manifest = dep.Source
				res.stale = &rec
			}
		}()
	}
	wg.Wait()
	return res
}

// withProvenance copies records, which may be shared through the result cache,
// stamping them with the manifest that declared dep.
func withProvenance(records []VulnerabilityRecord, dep manifest.Dependency) []VulnerabilityRecord {
	if len(records) == 0 {
		return records
	}
	out := make([]VulnerabilityRecord, len(records))
	for i, r := range records {
		r.Manifest = dep.Source
		r.Dev = dep.Dev
		out[i] = r
	}
	return out
}

// vulnerabilities returns the confirmed, filtered records for dep, consulting
// the result cache first. Results from a run where any source degraded are not
// cached, so a transient outage is retried on the next run.
func (e *Engine) vulnerabilities(ctx context.Context, dep manifest.Dependency, current version.Version) ([]VulnerabilityRecord, []string) {
	key := cache.Key{Ecosystem: dep.Ecosystem.String(), Package: dep.Name, Version: current.String()}
	if cached, ok := e.results.Get(key); ok {
		return cached, nil
	}

	results := make([]advisory.Result, len(e.sources))
	var wg sync.WaitGroup
	for i, src := range e.sources {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = src.Query(ctx, dep.Name, dep.Ecosystem, current.String())
		}()
	}
	wg.Wait()

	var (
		findings []advisory.Finding
		degraded []string
	)
	for i, r := range results {
		name := string(e.sources[i].Name())
		if r.Degraded() {
			e.metrics.AdvisoryQuery(name, "degraded")
			degraded = append(degraded, name+":"+dep.Name)
			continue
		}
		e.metrics.AdvisoryQuery(name, "ok")
		findings = append(findings, r.Findings...)
	}

	confirmed := make([]advisory.Finding, 0, len(findings))
	for _, f := range findings {
		if advisory.IsAffected(f, dep.Specifier) {
			confirmed = append(confirmed, f)
		}
	}
	kept := filter.Deduplicate(e.filter.Apply(confirmed, dep.Name, current.String()))

	records := make([]VulnerabilityRecord, 0, len(kept))
	for _, f := range kept {
		records = append(records, VulnerabilityRecord{
			PackageName:       dep.Name,
			Version:           current.String(),
			Ecosystem:         dep.Ecosystem,
			Finding:           f,
			ConfirmedAffected: true,
		})
	}
	if len(degraded) == 0 {
		e.results.Put(key, records)
	}
	return records, degraded
}
