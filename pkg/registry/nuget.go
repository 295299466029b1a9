package registry

import (
	"context"
	"fmt"
	"strings"
)

type nugetVersionIndex struct {
	Versions []string `json:"versions"`
}

// nugetLatest reads the flat container version list. Package IDs are
// case-insensitive and the container only serves lowercase paths.
func (r *Resolver) nugetLatest(ctx context.Context, name string) (string, error) {
	id := strings.ToLower(name)
	url := fmt.Sprintf("%s/%s/index.json", r.Endpoints.NuGet, id)

	var index nugetVersionIndex
	if err := r.getJSON(ctx, url, nil, &index); err != nil {
		return "", err
	}
	return latestStable(index.Versions, nil)
}
