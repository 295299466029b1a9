package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sambabib/depcheck/pkg/advisory"
	"github.com/sambabib/depcheck/pkg/config"
	"github.com/sambabib/depcheck/pkg/ecosystem"
	"github.com/sambabib/depcheck/pkg/fetch"
	"github.com/sambabib/depcheck/pkg/manifest"
	"github.com/sambabib/depcheck/pkg/metrics"
	"github.com/sambabib/depcheck/pkg/registry"
	"github.com/sambabib/depcheck/pkg/version"
)

// stubSource returns canned findings per package.
type stubSource struct {
	name     advisory.SourceName
	findings map[string][]advisory.Finding
	fail     map[string]bool
	delay    time.Duration
	calls    atomic.Int32
}

func (s *stubSource) Name() advisory.SourceName { return s.name }

func (s *stubSource) Query(ctx context.Context, name string, eco ecosystem.Ecosystem, ver string) advisory.Result {
	s.calls.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.fail[name] {
		return advisory.Result{Err: errors.New("unreachable")}
	}
	return advisory.Result{Findings: s.findings[name]}
}

type stubResolver struct {
	latest map[string]string
}

func (r stubResolver) Latest(ctx context.Context, name string, eco ecosystem.Ecosystem) (version.Version, error) {
	v, ok := r.latest[name]
	if !ok {
		return version.Sentinel(""), registry.ErrNotFound
	}
	return version.Normalize(v), nil
}

func lodashAdvisory(source advisory.SourceName) advisory.Finding {
	return advisory.Finding{
		ID:       "GHSA-35jh-r3h4-6jhm",
		Source:   source,
		Package:  "lodash",
		Summary:  "Command Injection in lodash",
		Severity: advisory.SeverityHigh,
		Affected: []advisory.AffectedRange{{Kind: advisory.Expression, Expression: "< 4.17.21"}},
	}
}

func TestAnalyze_LodashAndJest(t *testing.T) {
	osv := &stubSource{name: advisory.SourceOSV, findings: map[string][]advisory.Finding{
		"lodash": {lodashAdvisory(advisory.SourceOSV)},
		"jest": {{
			ID: "GHSA-jest", Package: "jest", Severity: advisory.SeverityCritical, Summary: "RCE",
			Affected: []advisory.AffectedRange{{Kind: advisory.Expression, Expression: "< 30.0.0"}},
		}},
	}}
	github := &stubSource{name: advisory.SourceGitHub}

	e := New(Options{
		Sources:  []advisory.Source{osv, github},
		Resolver: stubResolver{latest: map[string]string{"lodash": "4.17.21", "jest": "29.0.0"}},
	})
	report := e.Analyze(t.Context(), []manifest.Dependency{
		manifest.New("lodash", "4.17.0"),
		manifest.New("jest", "29.0.0"),
	})

	require.Len(t, report.Vulnerabilities, 1)
	rec := report.Vulnerabilities[0]
	assert.Equal(t, "lodash", rec.PackageName)
	assert.Equal(t, "4.17.0", rec.Version)
	assert.True(t, rec.ConfirmedAffected)

	require.Len(t, report.Staleness, 1)
	assert.Equal(t, "lodash", report.Staleness[0].PackageName)
	assert.False(t, report.Staleness[0].IsMajorBump)

	assert.Less(t, report.HealthScore, 100)
	assert.Equal(t, 100-15-2, report.HealthScore)
	assert.Empty(t, report.Degraded)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 2, report.Dependencies)
}

func TestAnalyze_UnconfirmedFindingsAreDropped(t *testing.T) {
	osv := &stubSource{name: advisory.SourceOSV, findings: map[string][]advisory.Finding{
		"lodash": {
			lodashAdvisory(advisory.SourceOSV),
			{ID: "NO-RANGE", Package: "lodash", Severity: advisory.SeverityCritical},
		},
	}}
	e := New(Options{Sources: []advisory.Source{osv}})

	report := e.Analyze(t.Context(), []manifest.Dependency{manifest.New("lodash", "4.17.21")})
	assert.Empty(t, report.Vulnerabilities)
	assert.Equal(t, 100, report.HealthScore)
}

func TestAnalyze_DeduplicatesAcrossSources(t *testing.T) {
	osv := &stubSource{name: advisory.SourceOSV, findings: map[string][]advisory.Finding{
		"lodash": {lodashAdvisory(advisory.SourceOSV)},
	}}
	github := &stubSource{name: advisory.SourceGitHub, findings: map[string][]advisory.Finding{
		"lodash": {lodashAdvisory(advisory.SourceGitHub)},
	}}
	e := New(Options{Sources: []advisory.Source{osv, github}})

	report := e.Analyze(t.Context(), []manifest.Dependency{manifest.New("lodash", "4.17.0")})
	require.Len(t, report.Vulnerabilities, 1)
	assert.Equal(t, advisory.SourceOSV, report.Vulnerabilities[0].Finding.Source)
}

func TestAnalyze_SourceFailureIsIsolated(t *testing.T) {
	osv := &stubSource{name: advisory.SourceOSV, fail: map[string]bool{"lodash": true}}
	github := &stubSource{name: advisory.SourceGitHub, findings: map[string][]advisory.Finding{
		"lodash": {lodashAdvisory(advisory.SourceGitHub)},
	}}
	m := metrics.New()
	e := New(Options{Sources: []advisory.Source{osv, github}, Metrics: m})

	report := e.Analyze(t.Context(), []manifest.Dependency{manifest.New("lodash", "4.17.0")})
	require.Len(t, report.Vulnerabilities, 1)
	assert.Equal(t, advisory.SourceGitHub, report.Vulnerabilities[0].Finding.Source)
	assert.Equal(t, []string{"osv:lodash"}, report.Degraded)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AdvisoryQueries.WithLabelValues("osv", "degraded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AdvisoryQueries.WithLabelValues("github", "ok")))
}

func TestAnalyze_OneFailingDependencyDoesNotAffectOthers(t *testing.T) {
	const n = 10
	findings := map[string][]advisory.Finding{}
	var deps []manifest.Dependency
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("pkg-%d", i)
		findings[name] = []advisory.Finding{{
			ID: "ADV-" + name, Package: name, Severity: advisory.SeverityMedium,
			Affected: []advisory.AffectedRange{{Kind: advisory.ExplicitVersions, Versions: []string{"1.0.0"}}},
		}}
		deps = append(deps, manifest.New(name, "1.0.0"))
	}
	src := &stubSource{
		name:     advisory.SourceOSV,
		findings: findings,
		fail:     map[string]bool{"pkg-3": true},
	}
	e := New(Options{Sources: []advisory.Source{src}, Concurrency: 4})

	report := e.Analyze(t.Context(), deps)
	require.Len(t, report.Vulnerabilities, n-1)
	assert.Equal(t, []string{"osv:pkg-3"}, report.Degraded)
	for _, v := range report.Vulnerabilities {
		assert.NotEqual(t, "pkg-3", v.PackageName)
	}
}

func TestAnalyze_PreservesInputOrder(t *testing.T) {
	findings := map[string][]advisory.Finding{}
	var deps []manifest.Dependency
	for i := 0; i < 20; i++ {
		name := fmt.Sprintf("pkg-%02d", i)
		findings[name] = []advisory.Finding{{
			ID: "ADV-" + name, Package: name, Severity: advisory.SeverityHigh,
			Affected: []advisory.AffectedRange{{Kind: advisory.Expression, Expression: "< 2.0.0"}},
		}}
		deps = append(deps, manifest.New(name, "1.0.0"))
	}
	src := &stubSource{name: advisory.SourceOSV, findings: findings, delay: 2 * time.Millisecond}
	e := New(Options{Sources: []advisory.Source{src}, Concurrency: 8})

	report := e.Analyze(t.Context(), deps)
	require.Len(t, report.Vulnerabilities, 20)
	for i, v := range report.Vulnerabilities {
		assert.Equal(t, deps[i].Name, v.PackageName)
	}
	assert.Equal(t, 0, report.HealthScore, "score is clamped at zero")
}

func TestAnalyze_UsesResultCache(t *testing.T) {
	src := &stubSource{name: advisory.SourceOSV, findings: map[string][]advisory.Finding{
		"lodash": {lodashAdvisory(advisory.SourceOSV)},
	}}
	e := New(Options{Sources: []advisory.Source{src}})

	first := e.Analyze(t.Context(), []manifest.Dependency{manifest.New("lodash", "4.17.0")})
	second := e.Analyze(t.Context(), []manifest.Dependency{manifest.New("lodash", "^4.17.0")})

	assert.Equal(t, int32(1), src.calls.Load(), "normalized versions share a cache entry")
	assert.Equal(t, first.Vulnerabilities, second.Vulnerabilities)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestAnalyze_RecordsCarryDeclaringManifest(t *testing.T) {
	src := &stubSource{name: advisory.SourceOSV, findings: map[string][]advisory.Finding{
		"lodash": {lodashAdvisory(advisory.SourceOSV)},
	}}
	e := New(Options{
		Sources:  []advisory.Source{src},
		Resolver: stubResolver{latest: map[string]string{"lodash": "4.17.21"}},
	})

	report := e.Analyze(t.Context(), []manifest.Dependency{
		{Name: "lodash", Specifier: "4.17.0", Ecosystem: ecosystem.NPM, Source: "web/package.json"},
		{Name: "lodash", Specifier: "4.17.0", Ecosystem: ecosystem.NPM, Dev: true, Source: "tools/package.json"},
	})
	require.Len(t, report.Vulnerabilities, 2)
	assert.Equal(t, "web/package.json", report.Vulnerabilities[0].Manifest)
	assert.False(t, report.Vulnerabilities[0].Dev)
	assert.Equal(t, "tools/package.json", report.Vulnerabilities[1].Manifest, "cached records are not shared")
	assert.True(t, report.Vulnerabilities[1].Dev)
	require.Len(t, report.Staleness, 2)
	assert.Equal(t, "tools/package.json", report.Staleness[1].Manifest)
}

func TestAnalyze_CacheIsPerEcosystem(t *testing.T) {
	src := &stubSource{name: advisory.SourceOSV}
	e := New(Options{Sources: []advisory.Source{src}})

	e.Analyze(t.Context(), []manifest.Dependency{
		{Name: "requests", Specifier: "2.31.0", Ecosystem: ecosystem.NPM},
	})
	e.Analyze(t.Context(), []manifest.Dependency{
		{Name: "requests", Specifier: "==2.31.0", Ecosystem: ecosystem.PyPI},
	})
	assert.Equal(t, int32(2), src.calls.Load(), "same name in another registry is a separate lookup")
}

func TestAnalyze_DegradedResultsAreNotCached(t *testing.T) {
	src := &stubSource{name: advisory.SourceOSV, fail: map[string]bool{"lodash": true}}
	e := New(Options{Sources: []advisory.Source{src}})

	e.Analyze(t.Context(), []manifest.Dependency{manifest.New("lodash", "4.17.0")})
	e.Analyze(t.Context(), []manifest.Dependency{manifest.New("lodash", "4.17.0")})
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestAnalyze_IgnoredAndUnparsableDependencies(t *testing.T) {
	src := &stubSource{name: advisory.SourceOSV}
	cfg := config.DefaultConfig()
	cfg.IgnorePackages = []string{"Internal-Lib"}
	e := New(Options{Sources: []advisory.Source{src}, Ignore: cfg.IsPackageIgnored})

	report := e.Analyze(t.Context(), []manifest.Dependency{
		manifest.New("internal-lib", "1.0.0"),
		manifest.New("workspace-pkg", "workspace:*"),
	})
	assert.Equal(t, int32(0), src.calls.Load())
	assert.Empty(t, report.Vulnerabilities)
	assert.Equal(t, 100, report.HealthScore)
}

func TestAnalyze_RegistryFailureDegradesStaleness(t *testing.T) {
	e := New(Options{
		Sources:  []advisory.Source{&stubSource{name: advisory.SourceOSV}},
		Resolver: stubResolver{latest: map[string]string{"react": "19.0.0"}},
	})
	report := e.Analyze(t.Context(), []manifest.Dependency{
		manifest.New("react", "18.2.0"),
		manifest.New("unpublished", "1.0.0"),
	})
	require.Len(t, report.Staleness, 1)
	assert.True(t, report.Staleness[0].IsMajorBump)
	assert.Equal(t, []string{"registry:unpublished"}, report.Degraded)
	assert.Equal(t, 95, report.HealthScore)
}

func TestAnalyze_ConcurrentCalls(t *testing.T) {
	src := &stubSource{name: advisory.SourceOSV, findings: map[string][]advisory.Finding{
		"lodash": {lodashAdvisory(advisory.SourceOSV)},
	}}
	e := New(Options{Sources: []advisory.Source{src}})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := e.Analyze(context.Background(), []manifest.Dependency{manifest.New("lodash", "4.17.0")})
			assert.Len(t, r.Vulnerabilities, 1)
		}()
	}
	wg.Wait()
}

func TestAnalyze_EndToEndWithHTTPSources(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/osv/v1/query", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Package struct{ Name string } `json:"package"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Package.Name != "lodash" {
			fmt.Fprint(w, `{}`)
			return
		}
		fmt.Fprint(w, `{"vulns":[{"id":"GHSA-35jh-r3h4-6jhm","summary":"Command Injection in lodash",
			"database_specific":{"severity":"HIGH"},
			"affected":[{"package":{"name":"lodash","ecosystem":"npm"},
			"ranges":[{"type":"SEMVER","events":[{"introduced":"0"},{"fixed":"4.17.21"}]}]}]}]}`)
	})
	mux.HandleFunc("/gh/advisories", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	})
	mux.HandleFunc("/npm/lodash", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"dist-tags":{"latest":"4.17.21"}}`)
	})
	mux.HandleFunc("/npm/jest", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"dist-tags":{"latest":"29.7.0"}}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := fetch.NewClient("depcheck-test", nil)
	client.MaxRetries = 0
	e := New(Options{
		Sources: []advisory.Source{
			advisory.NewOSV(client, server.URL+"/osv"),
			advisory.NewGitHub(client, server.URL+"/gh", ""),
		},
		Resolver: registry.NewResolver(client, registry.Endpoints{NPM: server.URL + "/npm"}, nil),
	})

	report := e.Analyze(t.Context(), []manifest.Dependency{
		manifest.New("lodash", "4.17.0"),
		manifest.New("jest", "29.0.0"),
	})
	require.Len(t, report.Vulnerabilities, 1)
	assert.Equal(t, "lodash", report.Vulnerabilities[0].PackageName)
	assert.Equal(t, advisory.SeverityHigh, report.Vulnerabilities[0].Finding.Severity)
	assert.Len(t, report.Staleness, 2)
	assert.Empty(t, report.Degraded)
	assert.Less(t, report.HealthScore, 100)
}

func TestHealthScore(t *testing.T) {
	rec := func(s advisory.Severity) VulnerabilityRecord {
		return VulnerabilityRecord{ConfirmedAffected: true, Finding: advisory.Finding{Severity: s}}
	}
	assert.Equal(t, 100, HealthScore(nil, nil))
	assert.Equal(t, 75, HealthScore([]VulnerabilityRecord{rec(advisory.SeverityCritical)}, nil))
	assert.Equal(t, 100-8-3, HealthScore([]VulnerabilityRecord{rec(advisory.SeverityMedium), rec(advisory.SeverityLow)}, nil))
	assert.Equal(t, 100, HealthScore([]VulnerabilityRecord{{Finding: advisory.Finding{Severity: advisory.SeverityCritical}}}, nil))
	assert.Equal(t, 93, HealthScore(nil, []registry.StalenessRecord{{IsMajorBump: true}, {IsMajorBump: false}}))

	many := make([]VulnerabilityRecord, 10)
	for i := range many {
		many[i] = rec(advisory.SeverityCritical)
	}
	assert.Equal(t, 0, HealthScore(many, nil))
}

func TestCountBySeverity(t *testing.T) {
	r := Report{Vulnerabilities: []VulnerabilityRecord{
		{Finding: advisory.Finding{Severity: advisory.SeverityHigh}},
		{Finding: advisory.Finding{Severity: advisory.SeverityHigh}},
		{Finding: advisory.Finding{Severity: advisory.SeverityLow}},
	}}
	counts := r.CountBySeverity()
	assert.Equal(t, 2, counts[advisory.SeverityHigh])
	assert.Equal(t, 1, counts[advisory.SeverityLow])
	assert.Equal(t, 0, counts[advisory.SeverityCritical])
}
