package output

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/sambabib/depcheck/pkg/advisory"
	"github.com/sambabib/depcheck/pkg/engine"
)

// SARIF format specification: https://docs.oasis-open.org/sarif/sarif/v2.1.0/sarif-v2.1.0.html

const sarifSchema = "https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json"

// ToolVersion is reported in the SARIF driver block.
var ToolVersion = "dev"

// SarifReport represents the top-level SARIF report structure
type SarifReport struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []SarifRun `json:"runs"`
}

// SarifRun represents a single run of the analysis tool
type SarifRun struct {
	Tool        SarifTool         `json:"tool"`
	Results     []SarifResult     `json:"results"`
	Invocations []SarifInvocation `json:"invocations"`
	Properties  map[string]any    `json:"properties,omitempty"`
}

type SarifTool struct {
	Driver SarifDriver `json:"driver"`
}

type SarifDriver struct {
	Name           string      `json:"name"`
	Version        string      `json:"version"`
	InformationURI string      `json:"informationUri"`
	Rules          []SarifRule `json:"rules"`
}

// SarifRule is one kind of result: a vulnerability severity or an update type.
type SarifRule struct {
	ID               string            `json:"id"`
	ShortDescription SarifMessage      `json:"shortDescription"`
	FullDescription  SarifMessage      `json:"fullDescription"`
	Help             SarifMessage      `json:"help"`
	Properties       map[string]string `json:"properties,omitempty"`
}

type SarifResult struct {
	RuleID     string            `json:"ruleId"`
	Level      string            `json:"level"`
	Message    SarifMessage      `json:"message"`
	Locations  []SarifLocation   `json:"locations"`
	Properties map[string]string `json:"properties,omitempty"`
}

type SarifMessage struct {
	Text string `json:"text"`
}

type SarifLocation struct {
	PhysicalLocation SarifPhysicalLocation `json:"physicalLocation"`
}

type SarifPhysicalLocation struct {
	ArtifactLocation SarifArtifactLocation `json:"artifactLocation"`
}

type SarifArtifactLocation struct {
	URI string `json:"uri"`
}

type SarifInvocation struct {
	ExecutionSuccessful bool   `json:"executionSuccessful"`
	StartTimeUtc        string `json:"startTimeUtc"`
	EndTimeUtc          string `json:"endTimeUtc"`
}

var sarifRules = []SarifRule{
	vulnRule(advisory.SeverityCritical),
	vulnRule(advisory.SeverityHigh),
	vulnRule(advisory.SeverityMedium),
	vulnRule(advisory.SeverityLow),
	{
		ID:               "outdated-major",
		ShortDescription: SarifMessage{Text: "Major version update available"},
		FullDescription:  SarifMessage{Text: "A major version update is available for this dependency, which may include breaking changes."},
		Help:             SarifMessage{Text: "Consider updating with caution and review the changelog for breaking changes."},
	},
	{
		ID:               "outdated-minor",
		ShortDescription: SarifMessage{Text: "Minor or patch update available"},
		FullDescription:  SarifMessage{Text: "A newer release within the same major version is available for this dependency."},
		Help:             SarifMessage{Text: "Consider updating to get fixes and new features."},
	},
}

func vulnRule(s advisory.Severity) SarifRule {
	return SarifRule{
		ID:               "vulnerability-" + s.String(),
		ShortDescription: SarifMessage{Text: fmt.Sprintf("Dependency with a %s severity vulnerability", s)},
		FullDescription:  SarifMessage{Text: fmt.Sprintf("The declared version of this dependency is affected by a known %s severity advisory.", s)},
		Help:             SarifMessage{Text: "Upgrade to a version outside the advisory's affected range."},
		Properties:       map[string]string{"severity": s.String()},
	}
}

func vulnLevel(s advisory.Severity) string {
	switch s {
	case advisory.SeverityCritical, advisory.SeverityHigh:
		return "error"
	case advisory.SeverityMedium:
		return "warning"
	default:
		return "note"
	}
}

// GenerateSarifReport converts a report to SARIF 2.1.0. Each result points at
// the manifest that declared the dependency, or at manifestPath when that is
// unknown; dependencies have no line-level location.
func GenerateSarifReport(report engine.Report, manifestPath string) ([]byte, error) {
	location := func(manifest string) []SarifLocation {
		if manifest == "" {
			manifest = manifestPath
		}
		return []SarifLocation{{
			PhysicalLocation: SarifPhysicalLocation{ArtifactLocation: SarifArtifactLocation{URI: filepath.ToSlash(manifest)}},
		}}
	}

	results := make([]SarifResult, 0, len(report.Vulnerabilities)+len(report.Staleness))
	for _, v := range report.Vulnerabilities {
		text := fmt.Sprintf("%s@%s is affected by %s: %s", v.PackageName, v.Version, v.Finding.ID, v.Finding.Summary)
		props := map[string]string{"advisory": v.Finding.ID, "source": string(v.Finding.Source)}
		if len(v.Finding.References) > 0 {
			props["reference"] = v.Finding.References[0]
		}
		if v.Dev {
			props["scope"] = "development"
		}
		results = append(results, SarifResult{
			RuleID:     "vulnerability-" + v.Finding.Severity.String(),
			Level:      vulnLevel(v.Finding.Severity),
			Message:    SarifMessage{Text: text},
			Locations:  location(v.Manifest),
			Properties: props,
		})
	}
	for _, s := range report.Staleness {
		ruleID, level := "outdated-minor", "note"
		if s.IsMajorBump {
			ruleID, level = "outdated-major", "warning"
		}
		results = append(results, SarifResult{
			RuleID:    ruleID,
			Level:     level,
			Message:   SarifMessage{Text: fmt.Sprintf("%s: current version %s, latest version %s", s.PackageName, s.CurrentVersion, s.LatestVersion)},
			Locations: location(s.Manifest),
		})
	}

	end := report.StartedAt.Add(report.Duration)
	sarifReport := SarifReport{
		Schema:  sarifSchema,
		Version: "2.1.0",
		Runs: []SarifRun{
			{
				Tool: SarifTool{
					Driver: SarifDriver{
						Name:           "depcheck",
						Version:        ToolVersion,
						InformationURI: "https://github.com/sambabib/depcheck",
						Rules:          sarifRules,
					},
				},
				Results: results,
				Invocations: []SarifInvocation{
					{
						ExecutionSuccessful: len(report.Degraded) == 0,
						StartTimeUtc:        report.StartedAt.UTC().Format(time.RFC3339),
						EndTimeUtc:          end.UTC().Format(time.RFC3339),
					},
				},
				Properties: map[string]any{
					"runId":       report.RunID,
					"healthScore": report.HealthScore,
				},
			},
		},
	}

	return json.MarshalIndent(sarifReport, "", "  ")
}
