package registry

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// npmAbbreviatedMetadata selects the install document, which keeps dist-tags
// but drops per-version readmes and manifests.
const npmAbbreviatedMetadata = "application/vnd.npm.install-v1+json"

type npmPackument struct {
	DistTags struct {
		Latest string `json:"latest"`
	} `json:"dist-tags"`
}

// npmLatest reads the dist-tags.latest field of the package document.
func (r *Resolver) npmLatest(ctx context.Context, name string) (string, error) {
	// scoped packages keep the "@" but the separator must be escaped
	escaped := strings.Replace(name, "/", "%2F", 1)
	url := fmt.Sprintf("%s/%s", r.Endpoints.NPM, escaped)

	var doc npmPackument
	header := http.Header{"Accept": []string{npmAbbreviatedMetadata + "; q=1.0, application/json; q=0.8"}}
	if err := r.getJSON(ctx, url, header, &doc); err != nil {
		return "", err
	}
	if doc.DistTags.Latest == "" {
		return "", ErrNoStableVersion
	}
	return doc.DistTags.Latest, nil
}
