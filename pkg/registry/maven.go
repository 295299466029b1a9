package registry

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"

	"github.com/sambabib/depcheck/pkg/logger"
)

type mavenSearchResult struct {
	Response struct {
		NumFound int `json:"numFound"`
		Docs     []struct {
			ID            string `json:"id"`
			LatestVersion string `json:"latestVersion"`
		} `json:"docs"`
	} `json:"response"`
}

// mavenMetadata is the repository-level maven-metadata.xml document.
type mavenMetadata struct {
	XMLName    xml.Name `xml:"metadata"`
	GroupID    string   `xml:"groupId"`
	ArtifactID string   `xml:"artifactId"`
	Versioning struct {
		Latest   string `xml:"latest"`
		Release  string `xml:"release"`
		Versions struct {
			Version []string `xml:"version"`
		} `xml:"versions"`
	} `xml:"versioning"`
}

// splitCoordinates splits "group:artifact" (an optional third ":version"
// part is ignored).
func splitCoordinates(name string) (group, artifact string, err error) {
	parts := strings.Split(name, ":")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("maven coordinates must be group:artifact, got %q", name)
	}
	return parts[0], parts[1], nil
}

// mavenLatest asks the search index first and falls back to the repository
// metadata when search is unavailable or has no document.
func (r *Resolver) mavenLatest(ctx context.Context, name string) (string, error) {
	group, artifact, err := splitCoordinates(name)
	if err != nil {
		return "", err
	}

	latest, err := r.mavenSearch(ctx, group, artifact)
	if err == nil {
		return latest, nil
	}
	logger.Debugf("registry: maven search for %s failed, trying repository metadata: %v", name, err)
	return r.mavenRepoMetadata(ctx, group, artifact)
}

func (r *Resolver) mavenSearch(ctx context.Context, group, artifact string) (string, error) {
	q := fmt.Sprintf(`g:"%s" AND a:"%s"`, group, artifact)
	endpoint := fmt.Sprintf("%s/solrsearch/select?q=%s&rows=1&wt=json", r.Endpoints.MavenSearch, url.QueryEscape(q))

	var result mavenSearchResult
	if err := r.getJSON(ctx, endpoint, nil, &result); err != nil {
		return "", err
	}
	if len(result.Response.Docs) == 0 || result.Response.Docs[0].LatestVersion == "" {
		return "", ErrNotFound
	}
	return result.Response.Docs[0].LatestVersion, nil
}

func (r *Resolver) mavenRepoMetadata(ctx context.Context, group, artifact string) (string, error) {
	groupPath := strings.ReplaceAll(group, ".", "/")
	endpoint := fmt.Sprintf("%s/%s/%s/maven-metadata.xml", r.Endpoints.MavenRepo, groupPath, artifact)

	resp, err := r.get(ctx, endpoint, nil)
	if err != nil {
		return "", err
	}
	var metadata mavenMetadata
	if err := xml.Unmarshal(resp.Body, &metadata); err != nil {
		return "", fmt.Errorf("parse maven metadata: %w", err)
	}

	latest, err := latestStable(metadata.Versioning.Versions.Version, isMavenQualified)
	if err == nil {
		return latest, nil
	}
	if metadata.Versioning.Release != "" {
		return metadata.Versioning.Release, nil
	}
	return "", err
}

var mavenQualifiers = []string{"-snapshot", "-alpha", "-beta", "-rc", "-m", ".rc", ".cr", ".beta", ".alpha", ".m"}

// isMavenQualified reports non-release versions such as 2.0-SNAPSHOT, 1.0-beta1
// or 6.0.0.RC1, which semver would otherwise not always see as prereleases.
func isMavenQualified(v string) bool {
	lower := strings.ToLower(v)
	for _, q := range mavenQualifiers {
		if strings.Contains(lower, q) {
			return true
		}
	}
	return false
}
