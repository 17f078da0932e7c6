package observability

import (
	"context"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/F-O-T/contentagen-nx-sub000/internal/domain/jobs"
	"github.com/F-O-T/contentagen-nx-sub000/internal/platform/logger"
)

const metricsNamespace = "contentagen"

type MetricsConfig struct {
	Enabled        bool          `yaml:"enabled"`
	ScrapeInterval time.Duration `yaml:"scrape_interval"`
}

// Metrics holds the process's Prometheus collectors. Every method is safe on
// a nil receiver, so callers never check whether metrics are enabled.
type Metrics struct {
	registry *prometheus.Registry
	interval time.Duration

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge
	llmRequests *prometheus.CounterVec
	llmLatency  *prometheus.HistogramVec
	stageRuns   *prometheus.CounterVec
	stageTime   *prometheus.HistogramVec
	queueDepth  *prometheus.GaugeVec
}

var current atomic.Pointer[Metrics]

// Current returns the metrics installed by Init, or nil.
func Current() *Metrics {
	return current.Load()
}

// Init builds the collectors and installs them as Current. It returns nil
// when metrics are disabled.
func Init(log *logger.Logger, cfg MetricsConfig) *Metrics {
	m := NewMetrics(cfg)
	current.Store(m)
	if m != nil && log != nil {
		log.Info("Metrics enabled", "scrape_interval", m.interval.String())
	}
	return m
}

// NewMetrics builds a registry of its own; nothing is registered globally.
func NewMetrics(cfg MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return nil
	}
	interval := cfg.ScrapeInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		interval: interval,
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "api_requests_total",
			Help:      "Total API requests by method/route/status.",
		}, []string{"method", "route", "status"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "api_request_duration_seconds",
			Help:      "API request latency in seconds by method/route/status.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"method", "route", "status"}),
		apiInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "api_inflight_requests",
			Help:      "In-flight API requests.",
		}),
		llmRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "llm_requests_total",
			Help:      "LLM provider requests by model/endpoint/status.",
		}, []string{"model", "endpoint", "status"}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "llm_request_duration_seconds",
			Help:      "LLM provider latency in seconds, retries included.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 45, 90, 180},
		}, []string{"model", "endpoint", "status"}),
		stageRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "pipeline_stage_runs_total",
			Help:      "Stage executions by pipeline/stage/outcome.",
		}, []string{"pipeline", "stage", "status"}),
		stageTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "pipeline_stage_duration_seconds",
			Help:      "Stage execution time in seconds by pipeline/stage/outcome.",
			Buckets:   []float64{0.05, 0.25, 1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"pipeline", "stage", "status"}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "pipeline_jobs",
			Help:      "Pipeline jobs by queue/status as of the last scrape.",
		}, []string{"queue", "status"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.llmRequests, m.llmLatency,
		m.stageRuns, m.stageTime,
		m.queueDepth,
	)
	return m
}

// Registry exposes the collectors, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	m.Handler().ServeHTTP(w, r)
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	method = orUnknown(strings.ToUpper(method))
	route = orUnknown(route)
	if status == "" {
		status = "0"
	}
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiLatency.WithLabelValues(method, route, status).Observe(dur.Seconds())
}

func (m *Metrics) APIInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) APIInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

// ObserveStage records one stage execution and the outcome it ended with.
func (m *Metrics) ObserveStage(pipeline, stage, status string, dur time.Duration) {
	if m == nil {
		return
	}
	pipeline, stage, status = orUnknown(pipeline), orUnknown(stage), orUnknown(status)
	m.stageRuns.WithLabelValues(pipeline, stage, status).Inc()
	if dur > 0 {
		m.stageTime.WithLabelValues(pipeline, stage, status).Observe(dur.Seconds())
	}
}

func (m *Metrics) ObserveLLMRequest(model, endpoint, status string, dur time.Duration) {
	if m == nil {
		return
	}
	model = orUnknown(strings.TrimSpace(model))
	endpoint = orUnknown(strings.TrimSpace(endpoint))
	if status = strings.TrimSpace(status); status == "" {
		status = "0"
	}
	m.llmRequests.WithLabelValues(model, endpoint, status).Inc()
	if dur > 0 {
		m.llmLatency.WithLabelValues(model, endpoint, status).Observe(dur.Seconds())
	}
}

// StartJobQueueCollector refreshes the pipeline_jobs gauge from the job table
// every scrape interval until ctx ends.
func (m *Metrics) StartJobQueueCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := m.CollectJobQueue(ctx, db); err != nil && log != nil {
					log.Warn("metrics: job queue depth query failed", "error", err)
				}
			}
		}
	}()
}

// CollectJobQueue runs one scrape of the job table.
func (m *Metrics) CollectJobQueue(ctx context.Context, db *gorm.DB) error {
	if m == nil || db == nil {
		return nil
	}
	var rows []struct {
		Queue  string
		Status string
		Count  int64
	}
	err := db.WithContext(ctx).
		Model(&jobs.PipelineJob{}).
		Select("queue, status, count(*) as count").
		Group("queue, status").
		Scan(&rows).Error
	if err != nil {
		return err
	}
	m.queueDepth.Reset()
	for _, row := range rows {
		m.queueDepth.WithLabelValues(orUnknown(row.Queue), orUnknown(row.Status)).Set(float64(row.Count))
	}
	return nil
}

func orUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
