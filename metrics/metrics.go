package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/seo-optimizer/metachecker/analyzer"
	"github.com/seo-optimizer/metachecker/fetcher"
)

const DefaultNamespace = "metachecker"

// Collector records analysis and HTTP metrics on its own registry
type Collector struct {
	registry *prometheus.Registry

	// Analysis metrics
	analysesTotal    *prometheus.CounterVec
	analysisDuration prometheus.Histogram
	scores           prometheus.Histogram
	recommendations  *prometheus.CounterVec

	// Fetch metrics
	fetchFailures *prometheus.CounterVec

	// HTTP metrics
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	logger *zap.Logger
}

// New creates a collector with Go runtime and process metrics included
func New(namespace string, logger *zap.Logger) *Collector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(namespace, registry, logger)
}

// NewWithRegistry creates a collector registered on registry
func NewWithRegistry(namespace string, registry *prometheus.Registry, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		registry: registry,
		logger:   logger.With(zap.String("component", "metrics")),
	}

	c.analysesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "analyses_total",
		Help:      "Total number of page analyses",
	}, []string{"outcome"}) // outcome: success, failure

	c.analysisDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "analysis_duration_seconds",
		Help:      "Time spent fetching and analyzing a page",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
	})

	c.scores = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "score",
		Help:      "Distribution of page scores",
		Buckets:   prometheus.LinearBuckets(10, 10, 10),
	})

	c.recommendations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "recommendations_total",
		Help:      "Recommendations issued by severity",
	}, []string{"severity"})

	c.fetchFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fetch_failures_total",
		Help:      "Page fetch failures by reason",
	}, []string{"reason"})

	c.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by route and status",
	}, []string{"method", "route", "status"})

	c.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	registry.MustRegister(
		c.analysesTotal,
		c.analysisDuration,
		c.scores,
		c.recommendations,
		c.fetchFailures,
		c.httpRequests,
		c.httpDuration,
	)

	return c
}

// ObserveAnalysis records a successful analysis
func (c *Collector) ObserveAnalysis(result *analyzer.AnalysisResult, elapsed time.Duration) {
	c.analysesTotal.WithLabelValues("success").Inc()
	c.analysisDuration.Observe(elapsed.Seconds())
	c.scores.Observe(float64(result.Score))
	for _, rec := range result.Recommendations {
		c.recommendations.WithLabelValues(string(rec.Severity)).Inc()
	}
}

// ObserveFailure records an analysis whose fetch failed
func (c *Collector) ObserveFailure(err error, elapsed time.Duration) {
	c.analysesTotal.WithLabelValues("failure").Inc()
	c.analysisDuration.Observe(elapsed.Seconds())
	c.fetchFailures.WithLabelValues(FailureReason(err)).Inc()
}

// FailureReason maps a fetch error to a low-cardinality label
func FailureReason(err error) string {
	var statusErr *fetcher.StatusError
	switch {
	case errors.Is(err, fetcher.ErrTimeout):
		return "timeout"
	case errors.As(err, &statusErr):
		return "http_status"
	case errors.Is(err, fetcher.ErrTooLarge):
		return "too_large"
	case errors.Is(err, fetcher.ErrNotHTML):
		return "not_html"
	case errors.Is(err, fetcher.ErrBlockedHost):
		return "blocked_host"
	case errors.Is(err, fetcher.ErrUnsupportedScheme):
		return "unsupported_scheme"
	default:
		return "network"
	}
}

// Middleware counts requests per matched route
func (c *Collector) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		route := ctx.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := ctx.Request.Method

		c.httpRequests.WithLabelValues(method, route, strconv.Itoa(ctx.Writer.Status())).Inc()
		c.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		Registry: c.registry,
		ErrorLog: zap.NewStdLog(c.logger),
	})
}

// Registry exposes the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
