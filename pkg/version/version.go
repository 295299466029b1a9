package version

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Version is a version string reduced to a comparable major.minor.patch triple.
// A Version that could not be parsed has Valid set to false and compares as 0.0.0.
type Version struct {
	Major    uint64
	Minor    uint64
	Patch    uint64
	Original string
	Valid    bool
}

var (
	// first run of up to three dot-separated numbers, e.g. "^4.17.21-beta" -> 4, 17, 21
	coercePattern    = regexp.MustCompile(`(\d+)(?:\.(\d+))?(?:\.(\d+))?`)
	nonVersionChars  = regexp.MustCompile(`[^0-9.\-]`)
	leadingOperators = []string{">=", "<=", "==", "^", "~", ">", "<", "="}
)

// Sentinel returns the zero version used for anything that does not parse.
func Sentinel(raw string) Version {
	return Version{Original: raw}
}

// Normalize converts any string into a Version. It never fails: input that
// cannot be read as a version yields the sentinel.
func Normalize(raw string) Version {
	if v, ok := coerce(raw); ok {
		return v
	}
	if v, ok := stripAndParse(raw); ok {
		return v
	}
	return Sentinel(raw)
}

func coerce(raw string) (Version, bool) {
	m := coercePattern.FindStringSubmatch(raw)
	if m == nil {
		return Version{}, false
	}
	parts := [3]uint64{}
	for i := 0; i < 3; i++ {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.ParseUint(m[i+1], 10, 64)
		if err != nil {
			return Version{}, false
		}
		parts[i] = n
	}
	return Version{Major: parts[0], Minor: parts[1], Patch: parts[2], Original: raw, Valid: true}, true
}

func trimOperators(s string) string {
	s = strings.TrimSpace(s)
	for trimmed := true; trimmed; {
		trimmed = false
		for _, op := range leadingOperators {
			if strings.HasPrefix(s, op) {
				s = strings.TrimSpace(strings.TrimPrefix(s, op))
				trimmed = true
			}
		}
	}
	return s
}

func stripAndParse(raw string) (Version, bool) {
	s := trimOperators(raw)
	s = nonVersionChars.ReplaceAllString(s, "")
	if s == "" {
		return Version{}, false
	}
	// drop any pre-release tail before padding
	if i := strings.Index(s, "-"); i >= 0 {
		s = s[:i]
	}
	fields := strings.Split(s, ".")
	for len(fields) < 3 {
		fields = append(fields, "0")
	}
	sv, err := semver.NewVersion(strings.Join(fields[:3], "."))
	if err != nil {
		return Version{}, false
	}
	return Version{Major: sv.Major(), Minor: sv.Minor(), Patch: sv.Patch(), Original: raw, Valid: true}, true
}

// String renders the canonical triple.
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

func (v Version) semver() *semver.Version {
	return semver.New(v.Major, v.Minor, v.Patch, "", "")
}

// Compare returns -1, 0 or 1 comparing the triples of a and b.
func Compare(a, b Version) int {
	return a.semver().Compare(b.semver())
}

// precise parses raw with its pre-release tag intact. Strings semver cannot
// read fall back to the normalized triple.
func precise(raw string, v Version) *semver.Version {
	if sv, err := semver.NewVersion(trimOperators(raw)); err == nil &&
		sv.Major() == v.Major && sv.Minor() == v.Minor && sv.Patch() == v.Patch {
		return sv
	}
	return v.semver()
}

// ComparePrecise compares two raw version strings. The triples decide unless
// either side carries a pre-release tag, in which case full semver precedence
// applies and 2.0.0-rc.1 sorts before 2.0.0. ok is false when either side
// does not parse.
func ComparePrecise(a, b string) (cmp int, ok bool) {
	va, vb := Normalize(a), Normalize(b)
	if !va.Valid || !vb.Valid {
		return 0, false
	}
	pa, pb := precise(a, va), precise(b, vb)
	if pa.Prerelease() == "" && pb.Prerelease() == "" {
		return Compare(va, vb), true
	}
	return pa.Compare(pb), true
}

// LessThan reports whether v sorts before o.
func (v Version) LessThan(o Version) bool {
	return Compare(v, o) < 0
}

// GreaterThan reports whether v sorts after o.
func (v Version) GreaterThan(o Version) bool {
	return Compare(v, o) > 0
}

type comparison struct {
	op    string
	bound string
}

var rangeOperators = []string{"<=", ">=", "==", "!=", "<", ">", "="}

// SatisfiesRange reports whether version falls inside expr. expr is either an
// exact version, a single operator-prefixed comparison such as "<4.17.21", or a
// comma-separated conjunction like ">= 4.0.0, < 4.17.21". Malformed expressions
// and unparsable versions never match.
func SatisfiesRange(version, expr string) bool {
	if !Normalize(version).Valid {
		return false
	}
	clauses, ok := parseRange(expr)
	if !ok {
		return false
	}
	for _, c := range clauses {
		if !c.holds(version) {
			return false
		}
	}
	return true
}

func parseRange(expr string) ([]comparison, bool) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, false
	}
	var clauses []comparison
	for _, part := range strings.Split(expr, ",") {
		part = strings.TrimSpace(part)
		op := "="
		for _, candidate := range rangeOperators {
			if strings.HasPrefix(part, candidate) {
				op = candidate
				part = strings.TrimSpace(strings.TrimPrefix(part, candidate))
				break
			}
		}
		bound, ok := parseBound(part)
		if !ok {
			return nil, false
		}
		clauses = append(clauses, comparison{op: op, bound: bound})
	}
	return clauses, true
}

func parseBound(s string) (string, bool) {
	s = strings.TrimPrefix(s, "v")
	if s == "" || s[0] < '0' || s[0] > '9' {
		return "", false
	}
	return s, Normalize(s).Valid
}

func (c comparison) holds(version string) bool {
	cmp, ok := ComparePrecise(version, c.bound)
	if !ok {
		return false
	}
	switch c.op {
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	case "!=":
		return cmp != 0
	default:
		return cmp == 0
	}
}
