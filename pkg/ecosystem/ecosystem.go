// Package ecosystem maps package names to the registry namespace they live in.
package ecosystem

import (
	"fmt"
	"regexp"
	"strings"
)

// Ecosystem identifies a package registry.
type Ecosystem int

const (
	NPM Ecosystem = iota
	PyPI
	Maven
	NuGet
	Go
	RubyGems
)

// All lists every supported ecosystem in declaration order.
var All = []Ecosystem{NPM, PyPI, Maven, NuGet, Go, RubyGems}

// PascalCase dot-separated segments, e.g. Newtonsoft.Json or Microsoft.Extensions.Logging
var nugetPattern = regexp.MustCompile(`^[A-Z][A-Za-z0-9]*(\.[A-Z][A-Za-z0-9]*)+$`)

var knownGems = map[string]struct{}{
	"rails": {}, "rake": {}, "rack": {}, "bundler": {}, "nokogiri": {}, "devise": {},
	"sinatra": {}, "puma": {}, "rspec": {}, "sidekiq": {}, "activerecord": {},
	"activesupport": {}, "actionpack": {}, "railties": {}, "thor": {}, "capybara": {},
	"rubocop": {}, "pg": {}, "unicorn": {}, "jbuilder": {}, "sprockets": {}, "faraday": {},
}

// Classify guesses the ecosystem from the shape of a package name.
// Rules apply in order: a colon means Maven (group:artifact), a slash outside
// an npm scope means a Go module path, PascalCase dot segments mean NuGet,
// known gem names mean RubyGems, and everything else is npm.
//
// PyPI names are indistinguishable from npm names, so Classify never returns
// PyPI; callers with manifest context pass the ecosystem explicitly instead.
func Classify(name string) Ecosystem {
	switch {
	case strings.Contains(name, ":"):
		return Maven
	case strings.Contains(name, "/") && !strings.HasPrefix(name, "@"):
		return Go
	case nugetPattern.MatchString(name):
		return NuGet
	}
	if _, ok := knownGems[strings.ToLower(name)]; ok {
		return RubyGems
	}
	return NPM
}

// String returns the display name, which is also the OSV ecosystem name.
func (e Ecosystem) String() string {
	switch e {
	case NPM:
		return "npm"
	case PyPI:
		return "PyPI"
	case Maven:
		return "Maven"
	case NuGet:
		return "NuGet"
	case Go:
		return "Go"
	case RubyGems:
		return "RubyGems"
	default:
		return fmt.Sprintf("Ecosystem(%d)", int(e))
	}
}

// OSVName returns the ecosystem identifier used in OSV queries.
func (e Ecosystem) OSVName() string {
	return e.String()
}

// GitHubName returns the ecosystem identifier used by the GitHub advisory API.
func (e Ecosystem) GitHubName() string {
	switch e {
	case NPM:
		return "npm"
	case PyPI:
		return "pip"
	case Maven:
		return "maven"
	case NuGet:
		return "nuget"
	case Go:
		return "go"
	case RubyGems:
		return "rubygems"
	default:
		return ""
	}
}

// Parse accepts any of the display, OSV or GitHub spellings, case-insensitively.
func Parse(s string) (Ecosystem, error) {
	for _, e := range All {
		if strings.EqualFold(s, e.String()) || strings.EqualFold(s, e.GitHubName()) {
			return e, nil
		}
	}
	switch strings.ToLower(s) {
	case "golang":
		return Go, nil
	case "python", "pypi":
		return PyPI, nil
	case "gem", "ruby":
		return RubyGems, nil
	}
	return NPM, fmt.Errorf("unknown ecosystem: %q", s)
}

// MarshalText lets Ecosystem values appear as strings in JSON and YAML.
func (e Ecosystem) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText is the inverse of MarshalText.
func (e *Ecosystem) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}
