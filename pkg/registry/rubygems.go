package registry

import (
	"context"
	"fmt"
	"net/url"
)

type gemInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

func (r *Resolver) rubygemsLatest(ctx context.Context, name string) (string, error) {
	endpoint := fmt.Sprintf("%s/api/v1/gems/%s.json", r.Endpoints.RubyGems, url.PathEscape(name))

	var gem gemInfo
	if err := r.getJSON(ctx, endpoint, nil, &gem); err != nil {
		return "", err
	}
	if gem.Version == "" {
		return "", ErrNoStableVersion
	}
	return gem.Version, nil
}
