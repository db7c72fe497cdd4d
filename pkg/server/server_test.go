package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/objectHuang/jenkube/pkg/pipeline"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s := New(DefaultConfig())
	ts := httptest.NewServer(s.routes())
	t.Cleanup(ts.Close)
	return s, ts
}

func TestHealthz(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health healthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "healthy", health.Status)
}

func TestReadyzBeforeAndAfterFirstRun(t *testing.T) {
	s, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	s.SetReport(&pipeline.RunReport{Status: "succeeded", StartedAt: time.Now()})

	resp, err = http.Get(ts.URL + "/readyz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health healthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ready", health.Status)
}

func TestStatusNoRun(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/v1/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))

	var errResp errorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
	assert.Equal(t, "NO_RUN", errResp.Code)
	assert.False(t, errResp.Retryable)
	assert.NotEmpty(t, errResp.RequestID)
}

func TestStatusReturnsLastReport(t *testing.T) {
	s, ts := newTestServer(t)

	s.SetReport(&pipeline.RunReport{
		RunID:          "9f1c2a34-0000-0000-0000-000000000000",
		Status:         "succeeded",
		ClusterVersion: "v1.31.2",
		CredentialID:   "jenkube-jenkins-jenkins",
	})

	resp, err := http.Get(ts.URL + "/v1/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var report pipeline.RunReport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.Equal(t, "succeeded", report.Status)
	assert.Equal(t, "v1.31.2", report.ClusterVersion)
	assert.Equal(t, "jenkube-jenkins-jenkins", report.CredentialID)
}

func TestStatusMethodNotAllowed(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/v1/status", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestRateLimitExceeded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimit = 1
	cfg.RateLimitBurst = 2

	s := New(cfg)
	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	var limited bool
	for i := 0; i < 10; i++ {
		resp, err := http.Get(ts.URL + "/v1/status")
		require.NoError(t, err)
		if resp.StatusCode == http.StatusTooManyRequests {
			var errResp errorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
			assert.Equal(t, "RATE_LIMIT_EXCEEDED", errResp.Code)
			assert.True(t, errResp.Retryable)
			limited = true
		}
		resp.Body.Close()
	}
	assert.True(t, limited, "expected at least one rate limited response")

	// Health probes bypass the limiter.
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
