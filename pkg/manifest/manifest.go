// Package manifest reads declared dependencies from project manifest files.
package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sambabib/depcheck/pkg/ecosystem"
	"github.com/sambabib/depcheck/pkg/logger"
)

// Dependency is one declared dependency: a name and the version specifier
// exactly as written in the manifest.
type Dependency struct {
	Name      string              `json:"name"`
	Specifier string              `json:"specifier"`
	Ecosystem ecosystem.Ecosystem `json:"ecosystem"`
	Dev       bool                `json:"dev,omitempty"`
	Source    string              `json:"source,omitempty"`
}

// New builds a Dependency whose ecosystem is guessed from the name. Use it
// when no manifest says which registry the package belongs to.
func New(name, specifier string) Dependency {
	return Dependency{Name: name, Specifier: specifier, Ecosystem: ecosystem.Classify(name)}
}

// ErrNoManifest is returned when a directory holds no supported manifest.
var ErrNoManifest = errors.New("no supported manifest found")

type parser func(path string, data []byte) ([]Dependency, error)

// root-level manifests, in the order they are reported
var rootManifests = []struct {
	file  string
	parse parser
}{
	{"package.json", parsePackageJSON},
	{"requirements.txt", parseRequirements},
	{"go.mod", parseGoMod},
	{"Gemfile.lock", parseGemfileLock},
}

// directories never searched for nested pom.xml or *.csproj files
var skipDirs = map[string]struct{}{
	".git": {}, "node_modules": {}, "vendor": {}, "target": {}, "bin": {}, "obj": {},
}

// Load reads dependencies from path. A file is parsed according to its name;
// a directory is searched for every supported manifest.
func Load(path string) ([]Dependency, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to access %s: %w", path, err)
	}
	if !info.IsDir() {
		return LoadFile(path)
	}

	var deps []Dependency
	found := false
	for _, m := range rootManifests {
		file := filepath.Join(path, m.file)
		if _, err := os.Stat(file); err != nil {
			continue
		}
		found = true
		parsed, err := parseFile(file, m.parse)
		if err != nil {
			return nil, err
		}
		deps = append(deps, parsed...)
	}

	nested, err := findNested(path)
	if err != nil {
		return nil, err
	}
	for _, file := range nested {
		found = true
		parsed, err := LoadFile(file)
		if err != nil {
			// one broken project file should not hide the rest of the tree
			logger.Errorf("manifest: skipping %s: %v", file, err)
			continue
		}
		deps = append(deps, parsed...)
	}

	if !found {
		return nil, fmt.Errorf("%w in %s", ErrNoManifest, path)
	}
	return deps, nil
}

// LoadFile parses a single manifest file.
func LoadFile(file string) ([]Dependency, error) {
	p := parserFor(file)
	if p == nil {
		return nil, fmt.Errorf("%w: unrecognised file %s", ErrNoManifest, filepath.Base(file))
	}
	return parseFile(file, p)
}

func parserFor(file string) parser {
	base := filepath.Base(file)
	for _, m := range rootManifests {
		if base == m.file {
			return m.parse
		}
	}
	switch {
	case base == "pom.xml":
		return parsePom
	case strings.EqualFold(filepath.Ext(base), ".csproj"):
		return parseCsproj
	}
	return nil
}

func parseFile(file string, p parser) ([]Dependency, error) {
	logger.Debugf("manifest: reading %s", file)
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", file, err)
	}
	deps, err := p(file, data)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", filepath.Base(file), err)
	}
	return deps, nil
}

// findNested walks the tree for pom.xml and *.csproj files, which multi-module
// projects keep below the root.
func findNested(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Debugf("manifest: error accessing %s: %v", p, err)
			return nil
		}
		if d.IsDir() {
			if _, skip := skipDirs[d.Name()]; skip && p != root {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() == "pom.xml" || strings.EqualFold(filepath.Ext(d.Name()), ".csproj") {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error walking directory %s: %w", root, err)
	}
	return files, nil
}
