package workflow

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics records pipeline metrics, namespaced "research_team":
//
//   - workflows_total (counter, label status): runs that reached a terminal status.
//   - inflight_workflows (gauge): runs currently executing.
//   - stage_latency_ms (histogram, labels stage, status): worker invocation time.
//   - stage_failures_total (counter, label stage): stages that ended the run.
//   - quality_score (histogram): overall quality score of completed runs.
//
// A nil *PrometheusMetrics is valid and records nothing.
//
//	registry := prometheus.NewRegistry()
//	metrics := workflow.NewPrometheusMetrics(registry)
//	engine, _ := workflow.New(team, workflow.WithMetrics(metrics))
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
type PrometheusMetrics struct {
	workflows     *prometheus.CounterVec
	inflight      prometheus.Gauge
	stageLatency  *prometheus.HistogramVec
	stageFailures *prometheus.CounterVec
	qualityScore  prometheus.Histogram

	mu      sync.RWMutex
	enabled bool
}

// NewPrometheusMetrics creates and registers the metrics with registry. A
// nil registry uses prometheus.DefaultRegisterer.
func NewPrometheusMetrics(registry prometheus.Registerer) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &PrometheusMetrics{
		enabled: true,
		workflows: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "research_team",
			Name:      "workflows_total",
			Help:      "Workflow runs that reached a terminal status",
		}, []string{"status"}),
		inflight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "research_team",
			Name:      "inflight_workflows",
			Help:      "Workflow runs currently executing",
		}),
		stageLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "research_team",
			Name:      "stage_latency_ms",
			Help:      "Worker invocation duration in milliseconds",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000, 30000, 60000},
		}, []string{"stage", "status"}),
		stageFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "research_team",
			Name:      "stage_failures_total",
			Help:      "Stages whose failure ended a workflow run",
		}, []string{"stage"}),
		qualityScore: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "research_team",
			Name:      "quality_score",
			Help:      "Overall quality score of completed workflow runs",
			Buckets:   prometheus.LinearBuckets(50, 10, 6),
		}),
	}
}

func (pm *PrometheusMetrics) on() bool {
	if pm == nil {
		return false
	}
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.enabled
}

// RecordWorkflow counts a run that ended with status.
func (pm *PrometheusMetrics) RecordWorkflow(status Status) {
	if !pm.on() {
		return
	}
	pm.workflows.WithLabelValues(string(status)).Inc()
}

// WorkflowStarted increments the in-flight gauge.
func (pm *PrometheusMetrics) WorkflowStarted() {
	if !pm.on() {
		return
	}
	pm.inflight.Inc()
}

// WorkflowFinished decrements the in-flight gauge.
func (pm *PrometheusMetrics) WorkflowFinished() {
	if !pm.on() {
		return
	}
	pm.inflight.Dec()
}

// RecordStageLatency observes one worker invocation.
func (pm *PrometheusMetrics) RecordStageLatency(stage Stage, latency time.Duration, status WorkerStatus) {
	if !pm.on() {
		return
	}
	pm.stageLatency.WithLabelValues(string(stage), string(status)).Observe(float64(latency.Milliseconds()))
}

// IncrementStageFailures counts a stage failure.
func (pm *PrometheusMetrics) IncrementStageFailures(stage Stage) {
	if !pm.on() {
		return
	}
	pm.stageFailures.WithLabelValues(string(stage)).Inc()
}

// ObserveQualityScore records the overall score of a completed run.
func (pm *PrometheusMetrics) ObserveQualityScore(score float64) {
	if !pm.on() {
		return
	}
	pm.qualityScore.Observe(score)
}

// Disable stops recording until Enable is called.
func (pm *PrometheusMetrics) Disable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = false
}

// Enable resumes recording.
func (pm *PrometheusMetrics) Enable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = true
}
