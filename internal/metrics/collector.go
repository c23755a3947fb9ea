// Package metrics exposes Prometheus collectors for the matching service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds every metric. A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	// HTTP
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Matching
	swipesTotal   *prometheus.CounterVec
	matchesTotal  *prometheus.CounterVec
	breakupsTotal *prometheus.CounterVec
	messagesTotal prometheus.Counter

	// Rate limiting
	rateLimitDecisions *prometheus.CounterVec

	// Cache
	cacheLookups *prometheus.CounterVec

	// Jobs
	jobRuns     *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
}

// NewCollector registers all metrics on a private registry.
func NewCollector(namespace string) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Collector{
		registry: reg,

		httpRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),

		httpRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),

		swipesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swipes_total",
			Help:      "Swipes recorded in the ledger",
		}, []string{"direction"}),

		matchesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_total",
			Help:      "Reciprocal likes by outcome (created, skipped_busy, skipped_race)",
		}, []string{"outcome"}),

		breakupsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breakups_total",
			Help:      "Matches ended, by initiator kind",
		}, []string{"initiator"}),

		messagesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Messages sent",
		}),

		rateLimitDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_decisions_total",
			Help:      "Rate limiter decisions",
		}, []string{"action", "allowed"}),

		cacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by result",
		}, []string{"cache", "result"}),

		jobRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Background job runs",
		}, []string{"job", "status"}),

		jobDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Background job duration in seconds",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 30, 120},
		}, []string{"job"}),
	}
}

// Registry exposes the private registry (tests, extra collectors).
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) RecordHTTPRequest(method, path string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

func (c *Collector) RecordSwipe(direction string) {
	if c == nil {
		return
	}
	c.swipesTotal.WithLabelValues(direction).Inc()
}

// RecordMatch counts the outcome of a reciprocal like.
func (c *Collector) RecordMatch(outcome string) {
	if c == nil {
		return
	}
	c.matchesTotal.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordBreakup(initiator string) {
	if c == nil {
		return
	}
	c.breakupsTotal.WithLabelValues(initiator).Inc()
}

func (c *Collector) RecordMessage() {
	if c == nil {
		return
	}
	c.messagesTotal.Inc()
}

// ObserveRateLimit satisfies ratelimit.Observer.
func (c *Collector) ObserveRateLimit(action string, allowed bool) {
	if c == nil {
		return
	}
	c.rateLimitDecisions.WithLabelValues(action, strconv.FormatBool(allowed)).Inc()
}

func (c *Collector) RecordCacheLookup(cache string, hit bool) {
	if c == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookups.WithLabelValues(cache, result).Inc()
}

func (c *Collector) RecordJob(job string, d time.Duration, err error) {
	if c == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.jobRuns.WithLabelValues(job, status).Inc()
	c.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}
