package registry

import (
	"context"
	"fmt"

	"golang.org/x/mod/module"
)

type goProxyInfo struct {
	Version string `json:"Version"`
	Time    string `json:"Time"`
}

// goLatest asks the module proxy for the @latest document. Upper-case letters
// in the module path are escaped as "!" plus the lower-case letter.
func (r *Resolver) goLatest(ctx context.Context, name string) (string, error) {
	escaped, err := module.EscapePath(name)
	if err != nil {
		return "", fmt.Errorf("invalid module path: %w", err)
	}
	url := fmt.Sprintf("%s/%s/@latest", r.Endpoints.GoProxy, escaped)

	var info goProxyInfo
	if err := r.getJSON(ctx, url, nil, &info); err != nil {
		return "", err
	}
	if info.Version == "" {
		return "", ErrNoStableVersion
	}
	return info.Version, nil
}
