package manifest

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/sambabib/depcheck/pkg/ecosystem"
	"github.com/sambabib/depcheck/pkg/logger"
)

// name, optional [extras], then whatever specifier precedes an environment marker
var requirementPattern = regexp.MustCompile(`^([A-Za-z0-9][A-Za-z0-9._-]*)\s*(?:\[[^\]]*\])?\s*([^;]*?)\s*(?:;.*)?$`)

// parseRequirements reads a pip requirements file. Options (-r, -e, --index-url),
// VCS and URL requirements are skipped since they name no registry version.
func parseRequirements(path string, data []byte) ([]Dependency, error) {
	var deps []Dependency
	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if i := strings.Index(line, " #"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "-") || strings.Contains(line, "://") {
			logger.Debugf("Pip: skipping unsupported requirement on line %d: %s", lineNum, line)
			continue
		}

		name, spec, err := parseRequirementLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		deps = append(deps, Dependency{Name: name, Specifier: spec, Ecosystem: ecosystem.PyPI, Source: path})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading requirements: %w", err)
	}
	return deps, nil
}

func parseRequirementLine(line string) (name, spec string, err error) {
	m := requirementPattern.FindStringSubmatch(line)
	if m == nil {
		return "", "", fmt.Errorf("unsupported requirement format: %s", line)
	}
	spec = strings.ReplaceAll(m[2], " ", "")
	if spec != "" && !strings.ContainsAny(spec[:1], "=<>!~") {
		return "", "", fmt.Errorf("unsupported requirement format: %s", line)
	}
	return m[1], spec, nil
}
