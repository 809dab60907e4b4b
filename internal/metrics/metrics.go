// Package metrics exposes Prometheus collectors for the collector service.
// Every method is safe on a nil *Metrics, which records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JakeFAU/keyword-news-collector/internal/news"
	"github.com/JakeFAU/keyword-news-collector/internal/pool"
)

// Metrics holds the service collectors registered on one registry.
type Metrics struct {
	reg prometheus.Registerer

	platformFetches      *prometheus.CounterVec
	platformItems        *prometheus.CounterVec
	platformFetchSeconds *prometheus.HistogramVec
	rateLimitDelay       *prometheus.HistogramVec

	keywordOutcomes      *prometheus.CounterVec
	keywordCycleSeconds  *prometheus.HistogramVec
	collectionRuns       prometheus.Counter
	collectionRunSeconds prometheus.Histogram
	collectionLastRun    prometheus.Gauge

	handlerFailures *prometheus.CounterVec
	eventsDropped   prometheus.Counter
	poolRejections  *prometheus.CounterVec

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		platformFetches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "newsfeed_platform_fetches_total",
			Help: "Platform fetches, labeled by platform and result (ok, empty, error, timeout).",
		}, []string{"platform", "result"}),
		platformItems: f.NewCounterVec(prometheus.CounterOpts{
			Name: "newsfeed_platform_items_total",
			Help: "Items returned by platform fetches.",
		}, []string{"platform"}),
		platformFetchSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "newsfeed_platform_fetch_duration_seconds",
			Help:    "Platform fetch latency.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"platform"}),
		rateLimitDelay: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "newsfeed_rate_limit_delay_seconds",
			Help:    "Time spent waiting on a platform rate limiter.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
		}, []string{"platform"}),
		keywordOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "newsfeed_keyword_outcomes_total",
			Help: "Keyword collection outcomes, labeled by status.",
		}, []string{"status"}),
		keywordCycleSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "newsfeed_keyword_cycle_duration_seconds",
			Help:    "Wall time of one keyword collection cycle.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"status"}),
		collectionRuns: f.NewCounter(prometheus.CounterOpts{
			Name: "newsfeed_collection_runs_total",
			Help: "Completed full collection runs.",
		}),
		collectionRunSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "newsfeed_collection_run_duration_seconds",
			Help:    "Wall time of a full collection run.",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		}),
		collectionLastRun: f.NewGauge(prometheus.GaugeOpts{
			Name: "newsfeed_collection_last_run_timestamp_seconds",
			Help: "Unix time the last full collection run finished.",
		}),
		handlerFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "newsfeed_event_handler_failures_total",
			Help: "Event handler invocations that returned an error or panicked.",
		}, []string{"event_type", "handler"}),
		eventsDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "newsfeed_events_dropped_total",
			Help: "Committed events dropped because the event pool was saturated.",
		}),
		poolRejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "newsfeed_pool_rejections_total",
			Help: "Task submissions rejected by a saturated pool.",
		}, []string{"pool"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		}, []string{"method", "code"}),
		httpRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"method", "route"}),
	}
}

// Handler returns an http.Handler exposing g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// ObserveFetch records one platform fetch.
func (m *Metrics) ObserveFetch(platform news.Platform, result string, items int, d time.Duration) {
	if m == nil {
		return
	}
	p := string(platform)
	m.platformFetches.WithLabelValues(p, result).Inc()
	if items > 0 {
		m.platformItems.WithLabelValues(p).Add(float64(items))
	}
	m.platformFetchSeconds.WithLabelValues(p).Observe(d.Seconds())
}

// ObserveRateLimitDelay records a rate limiter wait.
func (m *Metrics) ObserveRateLimitDelay(platform string, d time.Duration) {
	if m == nil {
		return
	}
	m.rateLimitDelay.WithLabelValues(platform).Observe(d.Seconds())
}

// ObserveOutcome records one keyword cycle.
func (m *Metrics) ObserveOutcome(status news.Status, d time.Duration) {
	if m == nil {
		return
	}
	m.keywordOutcomes.WithLabelValues(string(status)).Inc()
	m.keywordCycleSeconds.WithLabelValues(string(status)).Observe(d.Seconds())
}

// ObserveSummary records a finished full run.
func (m *Metrics) ObserveSummary(summary news.Summary) {
	if m == nil {
		return
	}
	m.collectionRuns.Inc()
	m.collectionRunSeconds.Observe(summary.Duration().Seconds())
	if !summary.FinishedAt.IsZero() {
		m.collectionLastRun.Set(float64(summary.FinishedAt.Unix()))
	}
}

// HandlerFailed implements events.Observer.
func (m *Metrics) HandlerFailed(eventType string, handler string) {
	if m == nil {
		return
	}
	m.handlerFailures.WithLabelValues(eventType, handler).Inc()
}

// EventsDropped implements events.Observer.
func (m *Metrics) EventsDropped(count int) {
	if m == nil {
		return
	}
	m.eventsDropped.Add(float64(count))
}

// PoolRejected counts one rejected submission; it matches pool.Config.OnReject.
func (m *Metrics) PoolRejected(name string) {
	if m == nil {
		return
	}
	m.poolRejections.WithLabelValues(name).Inc()
}

// RegisterPool exports live worker, busy and queue gauges for p.
func (m *Metrics) RegisterPool(p *pool.Pool) error {
	if m == nil || p == nil {
		return nil
	}
	labels := prometheus.Labels{"pool": p.Name()}
	gauges := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "newsfeed_pool_workers",
			Help:        "Live workers in the pool.",
			ConstLabels: labels,
		}, func() float64 { return float64(p.Stats().Workers) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "newsfeed_pool_busy_workers",
			Help:        "Workers currently running a task.",
			ConstLabels: labels,
		}, func() float64 { return float64(p.Stats().Busy) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "newsfeed_pool_queued_tasks",
			Help:        "Tasks waiting in the pool queue.",
			ConstLabels: labels,
		}, func() float64 { return float64(p.Stats().Queued) }),
	}
	for _, g := range gauges {
		if err := m.reg.Register(g); err != nil {
			return err
		}
	}
	return nil
}

// ObserveHTTPRequest records one served request.
func (m *Metrics) ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, strconv.Itoa(code)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
