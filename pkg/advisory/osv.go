package advisory

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sambabib/depcheck/pkg/ecosystem"
	"github.com/sambabib/depcheck/pkg/fetch"
	"github.com/sambabib/depcheck/pkg/logger"
)

const DefaultOSVURL = "https://api.osv.dev"

// OSV queries the OSV.dev database, one package at a time.
type OSV struct {
	Client  *fetch.Client
	BaseURL string // Allow overriding the API URL for testing
}

// NewOSV creates an OSV source. An empty baseURL uses api.osv.dev.
func NewOSV(client *fetch.Client, baseURL string) *OSV {
	if baseURL == "" {
		baseURL = DefaultOSVURL
	}
	return &OSV{Client: client, BaseURL: strings.TrimSuffix(baseURL, "/")}
}

type osvQuery struct {
	Version string     `json:"version,omitempty"`
	Package osvPackage `json:"package"`
}

type osvPackage struct {
	Name      string `json:"name"`
	Ecosystem string `json:"ecosystem"`
}

type osvResponse struct {
	Vulns []osvVuln `json:"vulns"`
}

type osvVuln struct {
	ID               string        `json:"id"`
	Summary          string        `json:"summary"`
	Details          string        `json:"details"`
	Aliases          []string      `json:"aliases"`
	Severity         []osvSeverity `json:"severity"`
	DatabaseSpecific struct {
		Severity string `json:"severity"`
	} `json:"database_specific"`
	Affected   []osvAffected `json:"affected"`
	References []osvRef      `json:"references"`
	Published  string        `json:"published"`
	Modified   string        `json:"modified"`
}

type osvSeverity struct {
	Type  string `json:"type"`
	Score string `json:"score"`
}

type osvAffected struct {
	Package  osvPackage `json:"package"`
	Versions []string   `json:"versions"`
	Ranges   []osvRange `json:"ranges"`
}

type osvRange struct {
	Type   string  `json:"type"`
	Events []Event `json:"events"`
}

type osvRef struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

func (o *OSV) Name() SourceName { return SourceOSV }

// Query never fails outright: transport and decode problems come back as a
// degraded Result with no findings.
func (o *OSV) Query(ctx context.Context, name string, eco ecosystem.Ecosystem, version string) Result {
	findings, err := o.query(ctx, name, eco, version)
	if err != nil {
		logger.Debugf("OSV: query for %s@%s degraded: %v", name, version, err)
		return Result{Err: fmt.Errorf("osv: %w", err)}
	}
	return Result{Findings: findings}
}

func (o *OSV) query(ctx context.Context, name string, eco ecosystem.Ecosystem, version string) ([]Finding, error) {
	req := osvQuery{
		Version: version,
		Package: osvPackage{Name: name, Ecosystem: eco.OSVName()},
	}
	url := o.BaseURL + "/v1/query"
	logger.Debugf("OSV: querying %s for %s@%s (%s)", url, name, version, eco)

	resp, err := o.Client.PostJSON(ctx, url, req)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("OSV API returned status %s", resp.Status)
	}

	var parsed osvResponse
	if err := resp.DecodeJSON(&parsed); err != nil {
		return nil, err
	}

	findings := make([]Finding, 0, len(parsed.Vulns))
	for _, v := range parsed.Vulns {
		findings = append(findings, v.toFinding(name))
	}
	return findings, nil
}

func (v osvVuln) toFinding(pkg string) Finding {
	f := Finding{
		ID:          v.ID,
		Source:      SourceOSV,
		Package:     pkg,
		Summary:     v.Summary,
		Severity:    ParseSeverity(v.severityText()),
		Score:       v.numericScore(),
		Aliases:     v.Aliases,
		PublishedAt: parseTime(v.Published),
	}
	if f.Summary == "" {
		f.Summary = firstLine(v.Details)
	}
	for _, ref := range v.References {
		f.References = append(f.References, ref.URL)
	}

	for _, a := range v.Affected {
		if a.Package.Name != "" && !strings.EqualFold(a.Package.Name, pkg) {
			continue
		}
		if len(a.Versions) > 0 {
			f.Affected = append(f.Affected, AffectedRange{Kind: ExplicitVersions, Versions: a.Versions})
		}
		for _, r := range a.Ranges {
			// commit hashes are not comparable with release versions
			if strings.EqualFold(r.Type, "GIT") || len(r.Events) == 0 {
				continue
			}
			f.Affected = append(f.Affected, AffectedRange{Kind: IntroducedFixed, Events: r.Events})
		}
	}
	return f
}

func (v osvVuln) severityText() string {
	parts := []string{v.DatabaseSpecific.Severity}
	for _, s := range v.Severity {
		parts = append(parts, s.Score)
	}
	return strings.Join(parts, " ")
}

func (v osvVuln) numericScore() *float64 {
	for _, s := range v.Severity {
		if score, err := strconv.ParseFloat(strings.TrimSpace(s.Score), 64); err == nil {
			return &score
		}
	}
	return nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
