package manifest

import (
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/sambabib/depcheck/pkg/ecosystem"
	"github.com/sambabib/depcheck/pkg/logger"
)

// pomXML is the subset of a Maven pom.xml needed to list dependencies.
type pomXML struct {
	XMLName      xml.Name        `xml:"project"`
	GroupID      string          `xml:"groupId"`
	ArtifactID   string          `xml:"artifactId"`
	Version      string          `xml:"version"`
	Parent       pomParent       `xml:"parent"`
	Properties   pomProperties   `xml:"properties"`
	Dependencies []pomDependency `xml:"dependencies>dependency"`
}

type pomParent struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Version    string `xml:"version"`
}

type pomDependency struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Version    string `xml:"version"`
	Scope      string `xml:"scope"`
	Optional   string `xml:"optional"`
}

// pomProperties collects <properties> children as name -> value.
type pomProperties map[string]string

func (p *pomProperties) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	props := pomProperties{}
	for {
		tok, err := d.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			var value string
			if err := d.DecodeElement(&value, &t); err != nil {
				return err
			}
			props[t.Name.Local] = strings.TrimSpace(value)
		case xml.EndElement:
			*p = props
			return nil
		}
	}
	*p = props
	return nil
}

var propertyRef = regexp.MustCompile(`\$\{([^}]+)\}`)

// parsePom lists compile and runtime dependencies. Test-scoped and optional
// dependencies are skipped, as are versions left to a parent or BOM.
func parsePom(path string, data []byte) ([]Dependency, error) {
	var pom pomXML
	if err := xml.Unmarshal(data, &pom); err != nil {
		return nil, err
	}

	var deps []Dependency
	for _, dep := range pom.Dependencies {
		name := fmt.Sprintf("%s:%s", dep.GroupID, dep.ArtifactID)
		switch {
		case dep.Version == "":
			logger.Debugf("Maven: skipping %s with no version", name)
			continue
		case strings.EqualFold(dep.Scope, "test"):
			logger.Debugf("Maven: skipping test dependency %s", name)
			continue
		case strings.EqualFold(dep.Optional, "true"):
			logger.Debugf("Maven: skipping optional dependency %s", name)
			continue
		}

		resolved, ok := pom.resolve(dep.Version)
		if !ok {
			logger.Debugf("Maven: could not resolve version %s for %s", dep.Version, name)
			continue
		}
		deps = append(deps, Dependency{Name: name, Specifier: resolved, Ecosystem: ecosystem.Maven, Source: path})
	}
	return deps, nil
}

// resolve expands ${project.version}, ${project.parent.version} and
// <properties> references, up to a small nesting depth.
func (p pomXML) resolve(raw string) (string, bool) {
	value := raw
	for depth := 0; depth < 5 && strings.Contains(value, "${"); depth++ {
		failed := false
		value = propertyRef.ReplaceAllStringFunc(value, func(ref string) string {
			v, ok := p.property(ref[2 : len(ref)-1])
			if !ok {
				failed = true
				return ref
			}
			return v
		})
		if failed {
			return "", false
		}
	}
	if strings.Contains(value, "${") {
		return "", false
	}
	return value, true
}

func (p pomXML) property(name string) (string, bool) {
	switch name {
	case "project.version", "pom.version", "version":
		if p.Version != "" {
			return p.Version, true
		}
		return p.Parent.Version, p.Parent.Version != ""
	case "project.parent.version", "parent.version":
		return p.Parent.Version, p.Parent.Version != ""
	}
	v, ok := p.Properties[name]
	return v, ok && v != ""
}
