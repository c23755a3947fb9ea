package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Counters(t *testing.T) {
	c := NewCollector("agentmatch")

	c.RecordSwipe("like")
	c.RecordSwipe("like")
	c.RecordMatch("created")
	c.ObserveRateLimit("swipe", false)
	c.RecordJob("karma", time.Second, errors.New("x"))

	assert.Equal(t, 2.0, testutil.ToFloat64(c.swipesTotal.WithLabelValues("like")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.matchesTotal.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.rateLimitDecisions.WithLabelValues("swipe", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.jobRuns.WithLabelValues("karma", "error")))
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.RecordSwipe("like")
		c.RecordHTTPRequest("GET", "/", 200, time.Millisecond)
		c.ObserveRateLimit("swipe", true)
		c.RecordCacheLookup("likes", true)
	})
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector("agentmatch")
	c.RecordHTTPRequest("GET", "/api/v1/karma", 200, 20*time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, _ := io.ReadAll(rec.Body)
	assert.True(t, strings.Contains(string(body), `agentmatch_http_requests_total{method="GET",path="/api/v1/karma",status="200"} 1`))
}
