package ecosystem

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := map[string]Ecosystem{
		"org.apache.commons:commons-lang3": Maven,
		"github.com/stretchr/testify":      Go,
		"golang.org/x/text":                Go,
		"@babel/core":                      NPM,
		"Newtonsoft.Json":                  NuGet,
		"Microsoft.Extensions.Logging":     NuGet,
		"rails":                            RubyGems,
		"Nokogiri":                         RubyGems,
		"lodash":                           NPM,
		"requests":                         NPM,
		"":                                 NPM,
	}
	for name, want := range tests {
		assert.Equal(t, want, Classify(name), name)
	}
}

func TestClassify_ColonBeatsSlash(t *testing.T) {
	assert.Equal(t, Maven, Classify("com.example/odd:artifact"))
}

func TestNames(t *testing.T) {
	assert.Equal(t, "PyPI", PyPI.OSVName())
	assert.Equal(t, "pip", PyPI.GitHubName())
	assert.Equal(t, "Go", Go.OSVName())
	assert.Equal(t, "go", Go.GitHubName())
	assert.Equal(t, "rubygems", RubyGems.GitHubName())
	assert.Equal(t, "NuGet", NuGet.String())
}

func TestParse(t *testing.T) {
	for _, e := range All {
		got, err := Parse(e.String())
		require.NoError(t, err)
		assert.Equal(t, e, got)

		got, err = Parse(e.GitHubName())
		require.NoError(t, err)
		assert.Equal(t, e, got)
	}

	_, err := Parse("cargo")
	assert.Error(t, err)
}

func TestTextRoundTripInJSON(t *testing.T) {
	out, err := json.Marshal(map[string]Ecosystem{"eco": Maven})
	require.NoError(t, err)
	assert.JSONEq(t, `{"eco":"Maven"}`, string(out))

	var back struct {
		Eco Ecosystem `json:"eco"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"eco":"pip"}`), &back))
	assert.Equal(t, PyPI, back.Eco)
}
