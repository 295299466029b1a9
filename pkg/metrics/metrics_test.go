package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.FetchAttempt("ok")
		m.AdvisoryQuery("osv", "ok")
		m.RegistryLookup("npm", "unknown")
		m.CacheLookup(true)
		m.FalsePositive("dev_package")
		m.ObserveRun(time.Second, 90)
	})
}

func TestCounters(t *testing.T) {
	m := New()

	m.AdvisoryQuery("osv", "ok")
	m.AdvisoryQuery("osv", "ok")
	m.AdvisoryQuery("github", "degraded")
	m.CacheLookup(false)
	m.ObserveRun(250*time.Millisecond, 72)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AdvisoryQueries.WithLabelValues("osv", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AdvisoryQueries.WithLabelValues("github", "degraded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 72.0, testutil.ToFloat64(m.HealthScore))
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.RegistryLookup("Go", "ok")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `depcheck_registry_lookups_total{ecosystem="Go",outcome="ok"} 1`)
}
