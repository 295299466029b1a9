package registry

import "github.com/sambabib/depcheck/pkg/version"

// StalenessRecord describes a dependency that has a newer release.
type StalenessRecord struct {
	PackageName    string `json:"package"`
	CurrentVersion string `json:"current_version"`
	LatestVersion  string `json:"latest_version"`
	IsMajorBump    bool   `json:"is_major_bump"`
	Manifest       string `json:"manifest,omitempty"`
}

// Staleness reports whether current is behind latest. Nothing is emitted when
// either version is unknown or the dependency is up to date (or ahead).
func Staleness(name string, current, latest version.Version) (StalenessRecord, bool) {
	if !current.Valid || !latest.Valid {
		return StalenessRecord{}, false
	}
	if !latest.GreaterThan(current) {
		return StalenessRecord{}, false
	}
	return StalenessRecord{
		PackageName:    name,
		CurrentVersion: current.String(),
		LatestVersion:  latest.String(),
		IsMajorBump:    latest.Major != current.Major,
	}, true
}
