package advisory

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sambabib/depcheck/pkg/ecosystem"
	"github.com/sambabib/depcheck/pkg/fetch"
)

func testClient() *fetch.Client {
	c := fetch.NewClient("depcheck-test", nil)
	c.MaxRetries = 0
	c.Timeout = 2 * time.Second
	c.Backoff = time.Millisecond
	return c
}

const lodashOSV = `{
  "vulns": [
    {
      "id": "GHSA-p6mc-m468-83gw",
      "summary": "Prototype Pollution in lodash",
      "aliases": ["CVE-2020-8203"],
      "database_specific": {"severity": "HIGH"},
      "severity": [{"type": "CVSS_V3", "score": "CVSS:3.1/AV:N/AC:H/PR:N/UI:N/S:U/C:N/I:H/A:H"}],
      "affected": [
        {
          "package": {"name": "lodash", "ecosystem": "npm"},
          "ranges": [
            {"type": "SEMVER", "events": [{"introduced": "3.7.0"}, {"fixed": "4.17.19"}]},
            {"type": "GIT", "events": [{"introduced": "0"}, {"fixed": "abcdef1"}]}
          ]
        },
        {
          "package": {"name": "lodash-es", "ecosystem": "npm"},
          "versions": ["4.17.0"]
        }
      ],
      "references": [{"type": "ADVISORY", "url": "https://example.test/advisory"}],
      "published": "2020-07-15T19:15:00Z"
    },
    {
      "id": "OSV-2",
      "details": "Second line ignored\nmore detail",
      "affected": [{"package": {"name": "lodash", "ecosystem": "npm"}, "versions": ["4.17.0", "4.17.1"]}]
    }
  ]
}`

func TestOSVQuery(t *testing.T) {
	var gotBody osvQuery
	var gotPath, gotMethod, gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, lodashOSV)
	}))
	defer server.Close()

	src := NewOSV(testClient(), server.URL+"/")
	res := src.Query(t.Context(), "lodash", ecosystem.NPM, "4.17.0")

	require.False(t, res.Degraded())
	assert.Equal(t, "/v1/query", gotPath)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "lodash", gotBody.Package.Name)
	assert.Equal(t, "npm", gotBody.Package.Ecosystem)
	assert.Equal(t, "4.17.0", gotBody.Version)

	require.Len(t, res.Findings, 2)
	first := res.Findings[0]
	assert.Equal(t, "GHSA-p6mc-m468-83gw", first.ID)
	assert.Equal(t, SourceOSV, first.Source)
	assert.Equal(t, "lodash", first.Package)
	assert.Equal(t, SeverityHigh, first.Severity)
	assert.Nil(t, first.Score, "CVSS vectors are not numeric scores")
	assert.Equal(t, []string{"CVE-2020-8203"}, first.Aliases)
	assert.Equal(t, []string{"https://example.test/advisory"}, first.References)
	assert.Equal(t, 2020, first.PublishedAt.Year())
	require.Len(t, first.Affected, 1, "GIT ranges and other packages are dropped")
	assert.Equal(t, IntroducedFixed, first.Affected[0].Kind)
	assert.True(t, IsAffected(first, "4.17.0"))
	assert.False(t, IsAffected(first, "4.17.19"))

	second := res.Findings[1]
	assert.Equal(t, "Second line ignored", second.Summary)
	assert.Equal(t, SeverityMedium, second.Severity)
	require.Len(t, second.Affected, 1)
	assert.Equal(t, ExplicitVersions, second.Affected[0].Kind)
}

func TestOSVQuery_NumericScore(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"vulns":[{"id":"X-1","summary":"s","severity":[{"type":"CVSS_V3","score":"9.8"}]}]}`)
	}))
	defer server.Close()

	res := NewOSV(testClient(), server.URL).Query(t.Context(), "pkg", ecosystem.PyPI, "1.0.0")
	require.Len(t, res.Findings, 1)
	require.NotNil(t, res.Findings[0].Score)
	assert.InDelta(t, 9.8, *res.Findings[0].Score, 0.0001)
}

func TestOSVQuery_NoVulns(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	res := NewOSV(testClient(), server.URL).Query(t.Context(), "left-pad", ecosystem.NPM, "1.3.0")
	assert.False(t, res.Degraded())
	assert.Empty(t, res.Findings)
}

func TestOSVQuery_Degraded(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"bad json", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"vulns": [`)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			res := NewOSV(testClient(), server.URL).Query(t.Context(), "lodash", ecosystem.NPM, "4.17.0")
			assert.True(t, res.Degraded())
			assert.Empty(t, res.Findings)
			assert.Contains(t, res.Err.Error(), "osv:")
		})
	}
}

func TestNewOSV_DefaultURL(t *testing.T) {
	assert.Equal(t, DefaultOSVURL, NewOSV(testClient(), "").BaseURL)
	assert.Equal(t, SourceOSV, NewOSV(testClient(), "").Name())
}
