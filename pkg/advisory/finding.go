// Package advisory queries vulnerability databases and decides whether a
// concrete version falls inside an advisory's affected ranges.
package advisory

import (
	"context"
	"strings"
	"time"

	"github.com/sambabib/depcheck/pkg/ecosystem"
)

// SourceName identifies the database a finding came from.
type SourceName string

const (
	SourceOSV    SourceName = "osv"
	SourceGitHub SourceName = "github"
)

// Severity is the fixed four-level vocabulary used in every report.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities for sorting and scoring (Low=1, Critical=4).
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

func (s Severity) String() string {
	return string(s)
}

// ParseSeverity maps free-form severity text to the vocabulary. Matching is by
// substring in priority order critical > high > moderate|medium > low, so
// "HIGH", "severity: high" and "High (7.5)" all map to high. Text that matches
// nothing maps to medium.
func ParseSeverity(text string) Severity {
	t := strings.ToLower(text)
	switch {
	case strings.Contains(t, "critical"):
		return SeverityCritical
	case strings.Contains(t, "high"):
		return SeverityHigh
	case strings.Contains(t, "moderate"), strings.Contains(t, "medium"):
		return SeverityMedium
	case strings.Contains(t, "low"):
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// RangeKind tags which form an AffectedRange takes.
type RangeKind int

const (
	// ExplicitVersions lists every affected version.
	ExplicitVersions RangeKind = iota
	// IntroducedFixed is an ordered sequence of introduced/fixed events.
	IntroducedFixed
	// Expression is a comparison expression such as ">= 4.0.0, < 4.17.21".
	Expression
)

func (k RangeKind) String() string {
	switch k {
	case ExplicitVersions:
		return "versions"
	case IntroducedFixed:
		return "events"
	case Expression:
		return "expression"
	default:
		return "unknown"
	}
}

// Event is one step of an introduced/fixed timeline. Exactly one field is set.
type Event struct {
	Introduced   string `json:"introduced,omitempty"`
	Fixed        string `json:"fixed,omitempty"`
	LastAffected string `json:"last_affected,omitempty"`
}

// AffectedRange is one affected-version description from an advisory.
type AffectedRange struct {
	Kind       RangeKind `json:"kind"`
	Versions   []string  `json:"versions,omitempty"`
	Events     []Event   `json:"events,omitempty"`
	Expression string    `json:"expression,omitempty"`
}

// Finding is the source-independent shape of one advisory row.
type Finding struct {
	ID          string          `json:"id"`
	Source      SourceName      `json:"source"`
	Package     string          `json:"package"`
	Summary     string          `json:"summary"`
	Severity    Severity        `json:"severity"`
	Score       *float64        `json:"score,omitempty"`
	Affected    []AffectedRange `json:"affected,omitempty"`
	Aliases     []string        `json:"aliases,omitempty"`
	References  []string        `json:"references,omitempty"`
	PublishedAt time.Time       `json:"published_at,omitempty"`
}

// Result is what a source returns. Findings is always usable; Err is set when
// the source could not be consulted and Findings is therefore empty.
type Result struct {
	Findings []Finding
	Err      error
}

// Degraded reports whether the source fell back to an empty result.
func (r Result) Degraded() bool {
	return r.Err != nil
}

// Source is one vulnerability database.
type Source interface {
	Name() SourceName
	Query(ctx context.Context, name string, eco ecosystem.Ecosystem, version string) Result
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
