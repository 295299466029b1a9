// Package registry looks up the newest published version of a package in its
// ecosystem's registry and decides whether a declared version is stale.
package registry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/sambabib/depcheck/pkg/ecosystem"
	"github.com/sambabib/depcheck/pkg/fetch"
	"github.com/sambabib/depcheck/pkg/logger"
	"github.com/sambabib/depcheck/pkg/metrics"
	"github.com/sambabib/depcheck/pkg/version"
)

const (
	DefaultNpmURL         = "https://registry.npmjs.org"
	DefaultPyPIURL        = "https://pypi.org/pypi"
	DefaultNuGetURL       = "https://api.nuget.org/v3-flatcontainer"
	DefaultMavenSearchURL = "https://search.maven.org"
	DefaultMavenRepoURL   = "https://repo.maven.apache.org/maven2"
	DefaultGoProxyURL     = "https://proxy.golang.org"
	DefaultRubyGemsURL    = "https://rubygems.org"
)

var (
	// ErrNotFound means the registry has no such package.
	ErrNotFound = errors.New("package not found in registry")
	// ErrNoStableVersion means the registry lists the package but no usable release.
	ErrNoStableVersion = errors.New("no stable version published")
)

// Endpoints holds the base URL of each registry. Empty fields use the public default.
type Endpoints struct {
	NPM         string `yaml:"npm" json:"npm"`
	PyPI        string `yaml:"pypi" json:"pypi"`
	NuGet       string `yaml:"nuget" json:"nuget"`
	MavenSearch string `yaml:"mavenSearch" json:"mavenSearch"`
	MavenRepo   string `yaml:"mavenRepo" json:"mavenRepo"`
	GoProxy     string `yaml:"goProxy" json:"goProxy"`
	RubyGems    string `yaml:"rubygems" json:"rubygems"`
}

func (e Endpoints) withDefaults() Endpoints {
	set := func(field *string, def string) {
		if *field == "" {
			*field = def
		}
		*field = strings.TrimSuffix(*field, "/")
	}
	set(&e.NPM, DefaultNpmURL)
	set(&e.PyPI, DefaultPyPIURL)
	set(&e.NuGet, DefaultNuGetURL)
	set(&e.MavenSearch, DefaultMavenSearchURL)
	set(&e.MavenRepo, DefaultMavenRepoURL)
	set(&e.GoProxy, DefaultGoProxyURL)
	set(&e.RubyGems, DefaultRubyGemsURL)
	return e
}

// Resolver finds the latest published version of a package.
type Resolver struct {
	Client    *fetch.Client
	Endpoints Endpoints
	Metrics   *metrics.Metrics
}

// NewResolver creates a Resolver; m may be nil.
func NewResolver(client *fetch.Client, endpoints Endpoints, m *metrics.Metrics) *Resolver {
	return &Resolver{Client: client, Endpoints: endpoints.withDefaults(), Metrics: m}
}

// Latest returns the newest stable version of name in eco. Any failure is
// returned as an error and means "unknown"; callers degrade rather than abort.
func (r *Resolver) Latest(ctx context.Context, name string, eco ecosystem.Ecosystem) (version.Version, error) {
	raw, err := r.latest(ctx, name, eco)
	if err == nil {
		v := version.Normalize(raw)
		if v.Valid {
			r.Metrics.RegistryLookup(eco.String(), "ok")
			logger.Debugf("registry: latest %s %s is %s", eco, name, raw)
			return v, nil
		}
		err = fmt.Errorf("unparsable latest version %q", raw)
	}
	r.Metrics.RegistryLookup(eco.String(), "unknown")
	logger.Debugf("registry: latest version of %s (%s) unknown: %v", name, eco, err)
	return version.Sentinel(raw), fmt.Errorf("%s %s: %w", eco, name, err)
}

func (r *Resolver) latest(ctx context.Context, name string, eco ecosystem.Ecosystem) (string, error) {
	switch eco {
	case ecosystem.NPM:
		return r.npmLatest(ctx, name)
	case ecosystem.PyPI:
		return r.pypiLatest(ctx, name)
	case ecosystem.NuGet:
		return r.nugetLatest(ctx, name)
	case ecosystem.Maven:
		return r.mavenLatest(ctx, name)
	case ecosystem.Go:
		return r.goLatest(ctx, name)
	case ecosystem.RubyGems:
		return r.rubygemsLatest(ctx, name)
	default:
		return "", fmt.Errorf("unsupported ecosystem %v", eco)
	}
}

// getJSON fetches url and decodes a 200 response into v.
func (r *Resolver) getJSON(ctx context.Context, url string, header http.Header, v any) error {
	resp, err := r.get(ctx, url, header)
	if err != nil {
		return err
	}
	return resp.DecodeJSON(v)
}

func (r *Resolver) get(ctx context.Context, url string, header http.Header) (*fetch.Response, error) {
	resp, err := r.Client.Get(ctx, url, header)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if !resp.OK() {
		return nil, fmt.Errorf("registry returned status %s for %s", resp.Status, url)
	}
	return resp, nil
}

// latestStable picks the highest non-prerelease version. Entries that are not
// valid semver are skipped, as are those rejected by skip.
func latestStable(versions []string, skip func(string) bool) (string, error) {
	var best *semver.Version
	var bestRaw string
	for _, raw := range versions {
		if skip != nil && skip(raw) {
			continue
		}
		v, err := semver.NewVersion(raw)
		if err != nil {
			logger.Debugf("registry: skipping invalid version %q: %v", raw, err)
			continue
		}
		if v.Prerelease() != "" {
			continue
		}
		if best == nil || v.GreaterThan(best) {
			best = v
			bestRaw = raw
		}
	}
	if best == nil {
		return "", ErrNoStableVersion
	}
	return bestRaw, nil
}
