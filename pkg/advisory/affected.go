package advisory

import (
	"github.com/sambabib/depcheck/pkg/version"
)

// IsAffected reports whether ver falls inside any of f's affected ranges.
// A finding without range data never matches, and neither does a version
// that cannot be parsed: nothing is reported vulnerable without a concrete
// version match.
func IsAffected(f Finding, ver string) bool {
	if !version.Normalize(ver).Valid {
		return false
	}
	for _, r := range f.Affected {
		if r.matches(ver) {
			return true
		}
	}
	return false
}

func (r AffectedRange) matches(raw string) bool {
	switch r.Kind {
	case ExplicitVersions:
		for _, entry := range r.Versions {
			if version.SatisfiesRange(raw, entry) {
				return true
			}
		}
		return false
	case IntroducedFixed:
		return replay(r.Events, raw)
	case Expression:
		return version.SatisfiesRange(raw, r.Expression)
	default:
		return false
	}
}

// replay walks the events in order. An introduced event at or before v turns
// the state on, a fixed event at or before v turns it off, and a last_affected
// event before v turns it off. Events whose version does not parse are skipped.
// Pre-release tags take part in the ordering: 2.0.0-rc.1 sorts before a fix
// released in 2.0.0.
func replay(events []Event, v string) bool {
	affected := false
	for _, e := range events {
		switch {
		case e.Introduced != "":
			if e.Introduced == "0" {
				affected = true
				continue
			}
			if cmp, ok := version.ComparePrecise(e.Introduced, v); ok && cmp <= 0 {
				affected = true
			}
		case e.Fixed != "":
			if cmp, ok := version.ComparePrecise(e.Fixed, v); ok && cmp <= 0 {
				affected = false
			}
		case e.LastAffected != "":
			if cmp, ok := version.ComparePrecise(e.LastAffected, v); ok && cmp < 0 {
				affected = false
			}
		}
	}
	return affected
}
