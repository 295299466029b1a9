package registry

import (
	"context"
	"fmt"
	"sort"
)

type pypiProject struct {
	Info struct {
		Version string `json:"version"`
		Yanked  bool   `json:"yanked"`
	} `json:"info"`
	Releases map[string][]pypiFile `json:"releases"`
}

type pypiFile struct {
	Yanked       bool   `json:"yanked"`
	YankedReason string `json:"yanked_reason"`
}

// pypiLatest picks the newest stable release that still has at least one
// non-yanked file, falling back to info.version when releases are absent.
func (r *Resolver) pypiLatest(ctx context.Context, name string) (string, error) {
	url := fmt.Sprintf("%s/%s/json", r.Endpoints.PyPI, name)

	var project pypiProject
	if err := r.getJSON(ctx, url, nil, &project); err != nil {
		return "", err
	}

	if len(project.Releases) > 0 {
		candidates := make([]string, 0, len(project.Releases))
		for v := range project.Releases {
			candidates = append(candidates, v)
		}
		sort.Strings(candidates)
		latest, err := latestStable(candidates, func(v string) bool {
			return allYanked(project.Releases[v])
		})
		if err == nil {
			return latest, nil
		}
	}
	if project.Info.Version == "" || project.Info.Yanked {
		return "", ErrNoStableVersion
	}
	return project.Info.Version, nil
}

// allYanked treats a release with no files as unusable.
func allYanked(files []pypiFile) bool {
	for _, f := range files {
		if !f.Yanked {
			return false
		}
	}
	return true
}
