package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/sambabib/depcheck/pkg/ecosystem"
)

// parsePackageJSON returns dependencies followed by devDependencies, each in
// the order written. A devDependency never overrides a runtime dependency of
// the same name.
func parsePackageJSON(path string, data []byte) ([]Dependency, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}

	var runtime, dev []Dependency
	for dec.More() {
		key, err := readKey(dec)
		if err != nil {
			return nil, err
		}
		switch key {
		case "dependencies":
			if runtime, err = readDeps(dec, path, false); err != nil {
				return nil, fmt.Errorf("dependencies: %w", err)
			}
		case "devDependencies":
			if dev, err = readDeps(dec, path, true); err != nil {
				return nil, fmt.Errorf("devDependencies: %w", err)
			}
		default:
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, err
			}
		}
	}

	seen := make(map[string]struct{}, len(runtime))
	deps := make([]Dependency, 0, len(runtime)+len(dev))
	for _, d := range runtime {
		seen[d.Name] = struct{}{}
		deps = append(deps, d)
	}
	for _, d := range dev {
		if _, ok := seen[d.Name]; ok {
			continue
		}
		deps = append(deps, d)
	}
	return deps, nil
}

func readDeps(dec *json.Decoder, path string, dev bool) ([]Dependency, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if tok == nil {
		return nil, nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}

	var deps []Dependency
	index := map[string]int{}
	for dec.More() {
		name, err := readKey(dec)
		if err != nil {
			return nil, err
		}
		var spec string
		if err := dec.Decode(&spec); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		d := Dependency{Name: name, Specifier: spec, Ecosystem: ecosystem.NPM, Dev: dev, Source: path}
		// a repeated key keeps its first position but takes the later value
		if i, ok := index[name]; ok {
			deps[i] = d
			continue
		}
		index[name] = len(deps)
		deps = append(deps, d)
	}
	return deps, expectDelim(dec, '}')
}

func readKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("expected object key, got %v", tok)
	}
	return key, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}
