package engine

import (
	"time"

	"github.com/sambabib/depcheck/pkg/advisory"
	"github.com/sambabib/depcheck/pkg/ecosystem"
	"github.com/sambabib/depcheck/pkg/registry"
)

// VulnerabilityRecord is a finding confirmed to affect a declared version.
type VulnerabilityRecord struct {
	PackageName       string              `json:"package"`
	Version           string              `json:"version"`
	Ecosystem         ecosystem.Ecosystem `json:"ecosystem"`
	Finding           advisory.Finding    `json:"advisory"`
	ConfirmedAffected bool                `json:"confirmed_affected"`
	// Manifest is the file that declared the dependency, when known.
	Manifest string `json:"manifest,omitempty"`
	Dev      bool   `json:"dev,omitempty"`
}

// Report is the outcome of one Analyze call.
type Report struct {
	RunID           string                     `json:"run_id"`
	StartedAt       time.Time                  `json:"started_at"`
	Duration        time.Duration              `json:"duration_ns"`
	Dependencies    int                        `json:"dependencies"`
	Vulnerabilities []VulnerabilityRecord      `json:"vulnerabilities"`
	Staleness       []registry.StalenessRecord `json:"staleness"`
	HealthScore     int                        `json:"health_score"`
	// Degraded lists "source:package" pairs whose lookup fell back to an
	// empty result, so a clean report can be told apart from an unreachable one.
	Degraded []string `json:"degraded,omitempty"`
}

// CountBySeverity tallies confirmed vulnerabilities per severity.
func (r Report) CountBySeverity() map[advisory.Severity]int {
	counts := make(map[advisory.Severity]int, 4)
	for _, v := range r.Vulnerabilities {
		counts[v.Finding.Severity]++
	}
	return counts
}

const (
	penaltyCritical = 25
	penaltyHigh     = 15
	penaltyMedium   = 8
	penaltyLow      = 3
	penaltyMajor    = 5
	penaltyMinor    = 2
)

// HealthScore starts at 100 and subtracts a fixed penalty per confirmed
// vulnerability (by severity) and per outdated dependency (more for a major
// bump). The result is clamped to [0, 100].
func HealthScore(vulns []VulnerabilityRecord, stale []registry.StalenessRecord) int {
	score := 100
	for _, v := range vulns {
		if !v.ConfirmedAffected {
			continue
		}
		switch v.Finding.Severity {
		case advisory.SeverityCritical:
			score -= penaltyCritical
		case advisory.SeverityHigh:
			score -= penaltyHigh
		case advisory.SeverityMedium:
			score -= penaltyMedium
		case advisory.SeverityLow:
			score -= penaltyLow
		}
	}
	for _, s := range stale {
		if s.IsMajorBump {
			score -= penaltyMajor
		} else {
			score -= penaltyMinor
		}
	}
	return max(0, min(100, score))
}
