// Package filter removes advisory findings that are known not to matter for a
// production dependency tree, and collapses duplicates reported by more than
// one source.
package filter

import (
	"regexp"
	"strings"

	"github.com/sambabib/depcheck/pkg/advisory"
	"github.com/sambabib/depcheck/pkg/cache"
	"github.com/sambabib/depcheck/pkg/logger"
	"github.com/sambabib/depcheck/pkg/metrics"
)

// Drop reasons, also used as metric labels.
const (
	ReasonMemo       = "memo"
	ReasonDevPackage = "dev_package"
	ReasonLowNoScore = "low_without_score"
	ReasonSummary    = "summary_term"
)

var defaultDevPackages = []string{
	"jest", "mocha", "chai", "jasmine", "karma", "vitest", "sinon", "nyc",
	"supertest", "eslint", "prettier", "typescript", "ts-node", "tslint",
	"webpack", "webpack-cli", "rollup", "vite", "parcel", "esbuild",
	"husky", "lint-staged", "nodemon", "ts-jest", "@babel/core",
	"pytest", "tox", "flake8", "black", "mypy", "pylint",
	"rspec", "rubocop",
}

var defaultDevPrefixes = []string{
	"@types/", "@babel/", "babel-", "eslint-", "@typescript-eslint/",
	"jest-", "karma-", "@testing-library/", "@vitest/",
}

// whole words only, so "latest" or "attestation" never match "test"
var summaryDenylist = regexp.MustCompile(`(?i)\b(placeholder|test|demo|example|sample|dummy|documentation)\b`)

// Filter drops false positives and remembers them in a memo so repeat
// analyses skip re-evaluation.
type Filter struct {
	memo     *cache.Memo
	metrics  *metrics.Metrics
	exact    map[string]struct{}
	prefixes []string
}

// New creates a Filter. extraDev adds package names to the built-in dev
// allowlist; an entry ending in "/" or "-" or "*" is treated as a prefix.
// memo and m may be nil.
func New(memo *cache.Memo, m *metrics.Metrics, extraDev ...string) *Filter {
	f := &Filter{
		memo:     memo,
		metrics:  m,
		exact:    make(map[string]struct{}, len(defaultDevPackages)+len(extraDev)),
		prefixes: append([]string(nil), defaultDevPrefixes...),
	}
	for _, name := range defaultDevPackages {
		f.exact[name] = struct{}{}
	}
	for _, name := range extraDev {
		name = strings.ToLower(strings.TrimSpace(name))
		switch {
		case name == "":
		case strings.HasSuffix(name, "*"):
			f.prefixes = append(f.prefixes, strings.TrimSuffix(name, "*"))
		case strings.HasSuffix(name, "/"), strings.HasSuffix(name, "-"):
			f.prefixes = append(f.prefixes, name)
		default:
			f.exact[name] = struct{}{}
		}
	}
	return f
}

// IsDevPackage reports whether name is a development, build or test tool.
func (f *Filter) IsDevPackage(name string) bool {
	name = strings.ToLower(name)
	if _, ok := f.exact[name]; ok {
		return true
	}
	for _, p := range f.prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// Apply returns the findings for name@version that survive the filter, in
// their original order.
func (f *Filter) Apply(findings []advisory.Finding, name, version string) []advisory.Finding {
	kept := make([]advisory.Finding, 0, len(findings))
	for _, finding := range findings {
		if f.memo != nil && f.memo.Contains(finding.ID, name, version) {
			f.metrics.FalsePositive(ReasonMemo)
			continue
		}
		if reason, drop := f.reason(finding, name); drop {
			logger.Debugf("filter: dropping %s for %s@%s (%s)", finding.ID, name, version, reason)
			f.metrics.FalsePositive(reason)
			if f.memo != nil {
				f.memo.Add(finding.ID, name, version)
			}
			continue
		}
		kept = append(kept, finding)
	}
	return kept
}

func (f *Filter) reason(finding advisory.Finding, name string) (string, bool) {
	switch {
	case f.IsDevPackage(name):
		return ReasonDevPackage, true
	case finding.Severity == advisory.SeverityLow && finding.Score == nil:
		return ReasonLowNoScore, true
	case summaryDenylist.MatchString(finding.Summary):
		return ReasonSummary, true
	}
	return "", false
}

// Deduplicate keeps the first finding for each (ID, package) pair and
// preserves the order of first appearance. It is applied to the findings of a
// single dependency, so the ecosystem is the same for every entry.
func Deduplicate(findings []advisory.Finding) []advisory.Finding {
	type key struct{ id, pkg string }
	seen := make(map[key]struct{}, len(findings))
	out := make([]advisory.Finding, 0, len(findings))
	for _, f := range findings {
		k := key{f.ID, f.Package}
		if _, exists := seen[k]; exists {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, f)
	}
	return out
}
