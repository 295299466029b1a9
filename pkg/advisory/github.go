package advisory

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sambabib/depcheck/pkg/ecosystem"
	"github.com/sambabib/depcheck/pkg/fetch"
	"github.com/sambabib/depcheck/pkg/logger"
)

const (
	DefaultGitHubURL = "https://api.github.com"
	githubMediaType  = "application/vnd.github+json"
	githubAPIVersion = "2022-11-28"
)

// GitHub queries the GitHub global security advisory database.
type GitHub struct {
	Client  *fetch.Client
	BaseURL string
	Token   string // optional; unauthenticated requests are heavily rate limited
}

// NewGitHub creates a GitHub advisory source. An empty baseURL uses api.github.com.
func NewGitHub(client *fetch.Client, baseURL, token string) *GitHub {
	if baseURL == "" {
		baseURL = DefaultGitHubURL
	}
	return &GitHub{Client: client, BaseURL: strings.TrimSuffix(baseURL, "/"), Token: token}
}

type ghAdvisory struct {
	GHSAID      string  `json:"ghsa_id"`
	CVEID       *string `json:"cve_id"`
	Summary     string  `json:"summary"`
	Severity    string  `json:"severity"`
	HTMLURL     string  `json:"html_url"`
	PublishedAt string  `json:"published_at"`
	UpdatedAt   string  `json:"updated_at"`
	CVSS        *struct {
		Score *float64 `json:"score"`
	} `json:"cvss"`
	Vulnerabilities []ghVulnerability `json:"vulnerabilities"`
}

type ghVulnerability struct {
	Package struct {
		Ecosystem string `json:"ecosystem"`
		Name      string `json:"name"`
	} `json:"package"`
	VulnerableVersionRange string `json:"vulnerable_version_range"`
}

func (g *GitHub) Name() SourceName { return SourceGitHub }

// Query never fails outright: transport and decode problems come back as a
// degraded Result with no findings.
func (g *GitHub) Query(ctx context.Context, name string, eco ecosystem.Ecosystem, version string) Result {
	findings, err := g.query(ctx, name, eco)
	if err != nil {
		logger.Debugf("GitHub: advisory lookup for %s degraded: %v", name, err)
		return Result{Err: fmt.Errorf("github: %w", err)}
	}
	return Result{Findings: findings}
}

func (g *GitHub) query(ctx context.Context, name string, eco ecosystem.Ecosystem) ([]Finding, error) {
	endpoint := fmt.Sprintf("%s/advisories?package=%s&ecosystem=%s",
		g.BaseURL, url.QueryEscape(name), url.QueryEscape(eco.GitHubName()))

	header := http.Header{}
	header.Set("Accept", githubMediaType)
	header.Set("X-GitHub-Api-Version", githubAPIVersion)
	if g.Token != "" {
		header.Set("Authorization", "Bearer "+g.Token)
	}

	logger.Debugf("GitHub: fetching %s", endpoint)
	resp, err := g.Client.Get(ctx, endpoint, header)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("GitHub API returned status %s", resp.Status)
	}

	var advisories []ghAdvisory
	if err := resp.DecodeJSON(&advisories); err != nil {
		return nil, err
	}

	findings := make([]Finding, 0, len(advisories))
	for _, a := range advisories {
		findings = append(findings, a.toFinding(name))
	}
	return findings, nil
}

func (a ghAdvisory) toFinding(pkg string) Finding {
	f := Finding{
		ID:          a.GHSAID,
		Source:      SourceGitHub,
		Package:     pkg,
		Summary:     a.Summary,
		Severity:    ParseSeverity(a.Severity),
		PublishedAt: parseTime(a.PublishedAt),
	}
	if a.CVEID != nil && *a.CVEID != "" {
		f.Aliases = []string{*a.CVEID}
	}
	if a.HTMLURL != "" {
		f.References = []string{a.HTMLURL}
	}
	if a.CVSS != nil && a.CVSS.Score != nil && *a.CVSS.Score > 0 {
		score := *a.CVSS.Score
		f.Score = &score
	}
	for _, v := range a.Vulnerabilities {
		if v.Package.Name != "" && !strings.EqualFold(v.Package.Name, pkg) {
			continue
		}
		if strings.TrimSpace(v.VulnerableVersionRange) == "" {
			continue
		}
		f.Affected = append(f.Affected, AffectedRange{Kind: Expression, Expression: v.VulnerableVersionRange})
	}
	return f
}
