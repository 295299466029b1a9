package manifest

import (
	"bufio"
	"bytes"
	"regexp"
	"strings"

	"github.com/sambabib/depcheck/pkg/ecosystem"
)

// "    rails (7.1.3)" or "    nokogiri (1.16.0-x86_64-linux)"
var gemSpecPattern = regexp.MustCompile(`^ {4}([A-Za-z0-9._-]+) \(([^)]+)\)$`)

// parseGemfileLock reads the resolved specs of the GEM section. Nested lines
// (six spaces) are a gem's own requirements and are ignored.
func parseGemfileLock(path string, data []byte) ([]Dependency, error) {
	var deps []Dependency
	seen := map[string]struct{}{}
	inGem := false
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \r")
		switch {
		case line == "GEM":
			inGem = true
			continue
		case line != "" && line[0] != ' ':
			inGem = false
			continue
		}
		if !inGem {
			continue
		}
		m := gemSpecPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if _, dup := seen[m[1]]; dup {
			continue
		}
		seen[m[1]] = struct{}{}
		// drop the platform suffix; versions themselves use dots, not dashes
		ver, _, _ := strings.Cut(m[2], "-")
		deps = append(deps, Dependency{Name: m[1], Specifier: ver, Ecosystem: ecosystem.RubyGems, Source: path})
	}
	return deps, scanner.Err()
}
