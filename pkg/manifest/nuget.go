package manifest

import (
	"encoding/xml"

	"github.com/sambabib/depcheck/pkg/ecosystem"
)

// csprojProject is the root of an SDK-style .csproj file.
type csprojProject struct {
	XMLName    xml.Name          `xml:"Project"`
	ItemGroups []csprojItemGroup `xml:"ItemGroup"`
}

type csprojItemGroup struct {
	PackageReferences []packageReference `xml:"PackageReference"`
	Condition         string             `xml:"Condition,attr"`
}

// packageReference carries its version either as an attribute or as a child
// <Version> element.
type packageReference struct {
	Include        string `xml:"Include,attr"`
	Update         string `xml:"Update,attr"`
	Version        string `xml:"Version,attr"`
	VersionElement string `xml:"Version"`
	PrivateAssets  string `xml:"PrivateAssets,attr"`
}

func parseCsproj(path string, data []byte) ([]Dependency, error) {
	var project csprojProject
	if err := xml.Unmarshal(data, &project); err != nil {
		return nil, err
	}

	var deps []Dependency
	for _, group := range project.ItemGroups {
		for _, ref := range group.PackageReferences {
			id := ref.Include
			if id == "" {
				id = ref.Update
			}
			v := ref.Version
			if v == "" {
				v = ref.VersionElement
			}
			if id == "" || v == "" {
				continue
			}
			deps = append(deps, Dependency{
				Name:      id,
				Specifier: v,
				Ecosystem: ecosystem.NuGet,
				// analyzers and build tools are marked PrivateAssets="all"
				Dev:    ref.PrivateAssets == "all" || ref.PrivateAssets == "All",
				Source: path,
			})
		}
	}
	return deps, nil
}
