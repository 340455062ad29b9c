package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "todoapi"

// Collector is a prometheus.Collector for the todo service. A nil
// *Collector is valid and records nothing.
type Collector struct {
	todosCreated     prometheus.Counter
	commentsAdded    prometheus.Counter
	uploadURLsIssued prometheus.Counter
	listCache        *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
}

// NewMetricsCollector returns a new Collector.
func NewMetricsCollector() *Collector {
	return &Collector{
		todosCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "todos_created_total",
				Help:      "The number of todo items created.",
			},
		),
		commentsAdded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "comments_added_total",
				Help:      "The number of comments appended to todo items.",
			},
		),
		uploadURLsIssued: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "upload_urls_issued_total",
				Help:      "The number of signed attachment upload URLs issued.",
			},
		),
		listCache: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "list_cache_requests_total",
				Help:      "Todo list cache lookups by result.",
			}, []string{"result"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency by route and status.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method", "route", "status"},
		),
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.todosCreated.Describe(ch)
	c.commentsAdded.Describe(ch)
	c.uploadURLsIssued.Describe(ch)
	c.listCache.Describe(ch)
	c.requestDuration.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.todosCreated.Collect(ch)
	c.commentsAdded.Collect(ch)
	c.uploadURLsIssued.Collect(ch)
	c.listCache.Collect(ch)
	c.requestDuration.Collect(ch)
}

func (c *Collector) TodoCreated() {
	if c != nil {
		c.todosCreated.Inc()
	}
}

func (c *Collector) CommentAdded() {
	if c != nil {
		c.commentsAdded.Inc()
	}
}

func (c *Collector) UploadURLIssued() {
	if c != nil {
		c.uploadURLsIssued.Inc()
	}
}

// ListCacheResult records a cache lookup; hit is false on a miss.
func (c *Collector) ListCacheResult(hit bool) {
	if c == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.listCache.WithLabelValues(result).Inc()
}

// Middleware observes the latency of every request by its route pattern.
func (c *Collector) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()
		if c == nil {
			return
		}
		route := ctx.FullPath()
		if route == "" {
			route = "unmatched"
		}
		c.requestDuration.
			WithLabelValues(ctx.Request.Method, route, strconv.Itoa(ctx.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
