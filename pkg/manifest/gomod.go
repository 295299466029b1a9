package manifest

import (
	"golang.org/x/mod/modfile"

	"github.com/sambabib/depcheck/pkg/ecosystem"
)

// parseGoMod lists every required module, indirect ones included, with
// replace directives applied when they point at another module version.
func parseGoMod(path string, data []byte) ([]Dependency, error) {
	f, err := modfile.Parse(path, data, nil)
	if err != nil {
		return nil, err
	}

	replaced := make(map[string]string, len(f.Replace))
	for _, r := range f.Replace {
		// local directory replacements have no version
		if r.New.Version != "" && r.New.Path == r.Old.Path {
			replaced[r.Old.Path] = r.New.Version
		}
	}

	deps := make([]Dependency, 0, len(f.Require))
	for _, req := range f.Require {
		v := req.Mod.Version
		if r, ok := replaced[req.Mod.Path]; ok {
			v = r
		}
		deps = append(deps, Dependency{
			Name:      req.Mod.Path,
			Specifier: v,
			Ecosystem: ecosystem.Go,
			Source:    path,
		})
	}
	return deps, nil
}
