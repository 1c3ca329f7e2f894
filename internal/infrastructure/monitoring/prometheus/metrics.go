package prometheus

import (
	"fmt"
	"time"
)

// AppMetrics holds every metric the serving process exposes.
type AppMetrics struct {
	// HTTP Layer
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec

	// Model lifecycle (C5 Model Manager / C6 Repository Watcher)
	ModelVersionsLoadedTotal   CounterVec
	ModelVersionsUnloadedTotal CounterVec
	ModelLoadDuration          HistogramVec
	ModelUnloadDuration        HistogramVec
	ModelLoadFailuresTotal     CounterVec
	ModelVersionsServing       GaugeVec
	WatcherTickDuration        HistogramVec
	WatcherTickErrorsTotal     CounterVec

	// Serving requests (C7 Request Mediator)
	PredictRequestsTotal   CounterVec
	PredictDuration        HistogramVec
	PredictEnginesBusy     GaugeVec
	MetadataRequestsTotal  CounterVec
	StatusRequestsTotal    CounterVec
	RequestErrorsTotal     CounterVec

	// Infrastructure
	CacheHitsTotal    CounterVec
	CacheMissesTotal  CounterVec
	AuditWritesTotal  CounterVec
	EventPublishTotal CounterVec

	// System Health
	HealthCheckStatus GaugeVec
}

// Default Buckets
var (
	DefaultHTTPDurationBuckets  = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultInferDurationBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5}
	DefaultLoadDurationBuckets  = []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120}
)

// NewAppMetrics registers all metrics with collector and returns the struct
// used throughout the serving process to record observations.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	// HTTP
	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")
	m.HTTPActiveRequests = collector.RegisterGauge("http_active_requests", "Active HTTP requests", "method", "path")

	// Model lifecycle
	m.ModelVersionsLoadedTotal = collector.RegisterCounter("model_versions_loaded_total", "Model versions that reached AVAILABLE", "model")
	m.ModelVersionsUnloadedTotal = collector.RegisterCounter("model_versions_unloaded_total", "Model versions that reached END", "model")
	m.ModelLoadDuration = collector.RegisterHistogram("model_load_duration_seconds", "Model version load duration", DefaultLoadDurationBuckets, "model")
	m.ModelUnloadDuration = collector.RegisterHistogram("model_unload_duration_seconds", "Model version unload (drain) duration", DefaultLoadDurationBuckets, "model")
	m.ModelLoadFailuresTotal = collector.RegisterCounter("model_load_failures_total", "Model version loads that ended in FAILED", "model")
	m.ModelVersionsServing = collector.RegisterGauge("model_versions_serving", "Model versions currently AVAILABLE", "model")
	m.WatcherTickDuration = collector.RegisterHistogram("watcher_tick_duration_seconds", "Repository watcher tick duration", DefaultHTTPDurationBuckets, "model")
	m.WatcherTickErrorsTotal = collector.RegisterCounter("watcher_tick_errors_total", "Repository watcher ticks skipped due to a storage error", "model")

	// Serving requests
	m.PredictRequestsTotal = collector.RegisterCounter("predict_requests_total", "Total Predict requests", "model", "status")
	m.PredictDuration = collector.RegisterHistogram("predict_duration_seconds", "Predict request duration", DefaultInferDurationBuckets, "model")
	m.PredictEnginesBusy = collector.RegisterGauge("predict_engines_busy", "Engine handles currently acquired for an in-flight Predict", "model", "version")
	m.MetadataRequestsTotal = collector.RegisterCounter("metadata_requests_total", "Total GetModelMetadata requests", "model", "status")
	m.StatusRequestsTotal = collector.RegisterCounter("status_requests_total", "Total GetModelStatus requests", "model", "status")
	m.RequestErrorsTotal = collector.RegisterCounter("request_errors_total", "Requests that returned an AppError", "model", "error_code")

	// Infrastructure
	m.CacheHitsTotal = collector.RegisterCounter("cache_hits_total", "Status cache hits", "model")
	m.CacheMissesTotal = collector.RegisterCounter("cache_misses_total", "Status cache misses", "model")
	m.AuditWritesTotal = collector.RegisterCounter("audit_writes_total", "Lifecycle transitions written to the audit sink", "model", "status")
	m.EventPublishTotal = collector.RegisterCounter("event_publish_total", "Lifecycle transitions published to the event sink", "model", "status")

	// System Health
	m.HealthCheckStatus = collector.RegisterGauge("health_check_status", "Health check status (1=up, 0=down)", "component")

	return m
}

// RegisterAppMetrics is an alias for NewAppMetrics.
func RegisterAppMetrics(collector MetricsCollector) *AppMetrics {
	return NewAppMetrics(collector)
}

// Helpers

// RecordHTTPRequest records one completed HTTP request.
func RecordHTTPRequest(metrics *AppMetrics, method, path string, statusCode int, duration time.Duration) {
	status := fmt.Sprintf("%d", statusCode)
	metrics.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordModelLoad records the outcome of one version load attempt.
func RecordModelLoad(metrics *AppMetrics, model string, success bool, duration time.Duration) {
	metrics.ModelLoadDuration.WithLabelValues(model).Observe(duration.Seconds())
	if success {
		metrics.ModelVersionsLoadedTotal.WithLabelValues(model).Inc()
	} else {
		metrics.ModelLoadFailuresTotal.WithLabelValues(model).Inc()
	}
}

// RecordModelUnload records the completion of one version drain-and-unload.
func RecordModelUnload(metrics *AppMetrics, model string, duration time.Duration) {
	metrics.ModelUnloadDuration.WithLabelValues(model).Observe(duration.Seconds())
	metrics.ModelVersionsUnloadedTotal.WithLabelValues(model).Inc()
}

// RecordPredict records one completed Predict request.
func RecordPredict(metrics *AppMetrics, model string, err error, duration time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.PredictRequestsTotal.WithLabelValues(model, status).Inc()
	metrics.PredictDuration.WithLabelValues(model).Observe(duration.Seconds())
}

// RecordCacheAccess records a status-cache hit or miss.
func RecordCacheAccess(metrics *AppMetrics, model string, hit bool) {
	if hit {
		metrics.CacheHitsTotal.WithLabelValues(model).Inc()
	} else {
		metrics.CacheMissesTotal.WithLabelValues(model).Inc()
	}
}

// RecordRequestError records an AppError surfaced by the mediator.
func RecordRequestError(metrics *AppMetrics, model, errorCode string) {
	metrics.RequestErrorsTotal.WithLabelValues(model, errorCode).Inc()
}

// GRPCMetrics holds the metrics recorded by the gRPC server's interceptor
// chain, keyed by service and method rather than by model — the binary RPC
// surface is transport plumbing, not a serving-domain concern.
type GRPCMetrics struct {
	requestsTotal   CounterVec
	requestDuration HistogramVec
}

// NewGRPCMetrics registers the gRPC transport metrics with collector.
func NewGRPCMetrics(collector MetricsCollector) *GRPCMetrics {
	return &GRPCMetrics{
		requestsTotal:   collector.RegisterCounter("grpc_requests_total", "Total gRPC requests", "service", "method", "code"),
		requestDuration: collector.RegisterHistogram("grpc_request_duration_seconds", "gRPC request duration", DefaultHTTPDurationBuckets, "service", "method"),
	}
}

// RecordUnaryRequest records one completed unary gRPC call.
func (m *GRPCMetrics) RecordUnaryRequest(service, method, code string, duration time.Duration) {
	m.requestsTotal.WithLabelValues(service, method, code).Inc()
	m.requestDuration.WithLabelValues(service, method).Observe(duration.Seconds())
}

// RecordStreamRequest records one completed streaming gRPC call.
func (m *GRPCMetrics) RecordStreamRequest(service, method, code string, duration time.Duration) {
	m.requestsTotal.WithLabelValues(service, method, code).Inc()
	m.requestDuration.WithLabelValues(service, method).Observe(duration.Seconds())
}
