package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		raw                 string
		major, minor, patch uint64
		valid               bool
	}{
		{"^4.17.21", 4, 17, 21, true},
		{"~1.2.3", 1, 2, 3, true},
		{">=2.0.0", 2, 0, 0, true},
		{"v2", 2, 0, 0, true},
		{"1.2", 1, 2, 0, true},
		{"1.2.3-beta.1", 1, 2, 3, true},
		{"1.2.3+build.5", 1, 2, 3, true},
		{"2.9.10.1", 2, 9, 10, true},
		{">=1.0.0 <2.0.0", 1, 0, 0, true},
		{"not-a-version", 0, 0, 0, false},
		{"", 0, 0, 0, false},
		{"latest", 0, 0, 0, false},
		{"*", 0, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			v := Normalize(tt.raw)
			assert.Equal(t, tt.major, v.Major)
			assert.Equal(t, tt.minor, v.Minor)
			assert.Equal(t, tt.patch, v.Patch)
			assert.Equal(t, tt.valid, v.Valid)
			assert.Equal(t, tt.raw, v.Original)
		})
	}
}

func TestNormalize_NeverPanics(t *testing.T) {
	inputs := []string{"\x00", "....", "-", "^", ">=", "99999999999999999999999.1.1", "🙂1.0", "1..2", "v", "=="}
	for _, in := range inputs {
		assert.NotPanics(t, func() { Normalize(in) }, in)
	}
}

func TestCompare(t *testing.T) {
	assert.Equal(t, -1, Compare(Normalize("4.17.0"), Normalize("4.17.21")))
	assert.Equal(t, 1, Compare(Normalize("2.0.0"), Normalize("1.9.9")))
	assert.Equal(t, 0, Compare(Normalize("^1.2.3"), Normalize("1.2.3")))
	assert.Equal(t, 0, Compare(Normalize("garbage"), Normalize("also garbage")), "sentinels compare equal")
	assert.True(t, Normalize("1.10.0").GreaterThan(Normalize("1.9.0")))
	assert.True(t, Normalize("0.9.0").LessThan(Normalize("1.0.0")))
}

func TestString(t *testing.T) {
	assert.Equal(t, "4.17.21", Normalize("^4.17.21").String())
	assert.Equal(t, "0.0.0", Normalize("nope").String())
}

func TestComparePrecise(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.2.3", "1.2.3", 0},
		{"^1.2.3", "1.2.3", 0},
		{"2.0.0-rc.1", "2.0.0", -1},
		{"2.0.0", "2.0.0-rc.2", 1},
		{"2.0.0-alpha", "2.0.0-beta", -1},
		{"v2.0.0-rc.1", "2.0.0-rc.1", 0},
		{"1.2", "1.2.0", 0},
		{"2.0.0.RC1", "2.0.0", 0},
	}
	for _, tt := range tests {
		got, ok := ComparePrecise(tt.a, tt.b)
		assert.True(t, ok, "%s vs %s", tt.a, tt.b)
		assert.Equal(t, tt.want, got, "%s vs %s", tt.a, tt.b)
	}

	_, ok := ComparePrecise("banana", "1.0.0")
	assert.False(t, ok)
}

func TestSatisfiesRange(t *testing.T) {
	tests := []struct {
		name    string
		version string
		expr    string
		want    bool
	}{
		{"exact match", "4.17.0", "4.17.0", true},
		{"exact mismatch", "4.17.21", "4.17.0", false},
		{"less than", "4.17.0", "<4.17.21", true},
		{"less than boundary", "4.17.21", "<4.17.21", false},
		{"less or equal boundary", "4.17.21", "<=4.17.21", true},
		{"greater or equal with space", "5.0.0", ">= 4.0.0", true},
		{"equality operator", "1.0.0", "= 1.0.0", true},
		{"not equal", "1.0.1", "!= 1.0.0", true},
		{"conjunction inside", "4.5.0", ">= 4.0.0, < 4.17.21", true},
		{"conjunction above", "4.18.0", ">= 4.0.0, < 4.17.21", false},
		{"conjunction below", "3.9.9", ">= 4.0.0, < 4.17.21", false},
		{"prefixed version", "^4.17.0", "<4.17.21", true},
		{"v prefixed bound", "1.0.0", "<v2.0.0", true},
		{"empty expression", "1.0.0", "", false},
		{"garbage expression", "1.0.0", "not a range", false},
		{"dangling operator", "1.0.0", ">=", false},
		{"empty clause", "1.0.0", ">= 1.0.0,", false},
		{"unparsable version", "banana", "<9.9.9", false},
		{"stable above pre-release bound", "2.0.0", "<= 2.0.0-rc.2", false},
		{"pre-release below bound", "2.0.0-rc.1", "<= 2.0.0-rc.2", true},
		{"stable is not its pre-release", "2.0.0", "2.0.0-beta.1", false},
		{"pre-release below stable bound", "2.0.0-beta.1", "< 2.0.0", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SatisfiesRange(tt.version, tt.expr))
		})
	}
}
