// Package monitor - prometheus metrics for detection and translation.
package monitor

import (
	"context"
	"math"
	"net/http"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

const namespace = "lingolens"

// Detect request outcomes used as the status label.
const (
	StatusOK       = "ok"
	StatusBadInput = "bad_input"
	StatusError    = "error"
)

// Metrics holds the collectors of one process on a private registry.
//
// All methods are safe on a nil *Metrics, which records nothing.
type Metrics struct {
	registry        *prometheus.Registry
	detectRequests  *prometheus.CounterVec
	detections      prometheus.Counter
	candidates      prometheus.Histogram
	detectDuration  prometheus.Histogram
	translateErrors prometheus.Counter
	memUsage        prometheus.Gauge
	cpuUsage        prometheus.Gauge
	proc            *process.Process
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		detectRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detect_requests_total",
			Help:      "Total number of detect calls by outcome.",
		}, []string{"status"}),
		detections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detections_total",
			Help:      "Total number of detections returned after suppression.",
		}),
		candidates: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "candidates",
			Help:      "Number of candidates above the confidence threshold per detect call.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		detectDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "detect_duration_seconds",
			Help:      "Time spent decoding and suppressing one output tensor.",
			Buckets:   prometheus.DefBuckets,
		}),
		translateErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "translate_errors_total",
			Help:      "Total number of failed translation lookups.",
		}),
		memUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "memory_usage_megabytes",
			Help:      "Resident memory of the process in megabytes.",
		}),
		cpuUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cpu_usage_percent",
			Help:      "CPU usage of the process in percent.",
		}),
	}

	m.registry.MustRegister(
		m.detectRequests,
		m.detections,
		m.candidates,
		m.detectDuration,
		m.translateErrors,
		m.memUsage,
		m.cpuUsage,
	)
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveDetect records one successful decode and suppress pass.
func (m *Metrics) ObserveDetect(candidates, kept int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.detectRequests.WithLabelValues(StatusOK).Inc()
	m.candidates.Observe(float64(candidates))
	m.detections.Add(float64(kept))
	m.detectDuration.Observe(elapsed.Seconds())
}

// ObserveDetectFailure records a failed detect call.
func (m *Metrics) ObserveDetectFailure(status string) {
	if m == nil {
		return
	}
	m.detectRequests.WithLabelValues(status).Inc()
}

// ObserveTranslateError records a failed translation.
func (m *Metrics) ObserveTranslateError() {
	if m == nil {
		return
	}
	m.translateErrors.Inc()
}

// SampleProcess updates the memory and CPU gauges from the current process.
func (m *Metrics) SampleProcess() error {
	if m == nil {
		return nil
	}
	if m.proc == nil {
		p, err := process.NewProcess(int32(os.Getpid()))
		if err != nil {
			return errors.Wrap(err, "open process")
		}
		m.proc = p
	}

	mem, err := m.proc.MemoryInfo()
	if err != nil {
		return errors.Wrap(err, "read memory info")
	}
	cpu, err := m.proc.CPUPercent()
	if err != nil {
		return errors.Wrap(err, "read cpu percent")
	}

	m.memUsage.Set(float64(mem.RSS / 1024 / 1024))
	m.cpuUsage.Set(math.Round(cpu*100) / 100)
	return nil
}

// StartProcessSampler samples the process gauges every interval until ctx is done.
func (m *Metrics) StartProcessSampler(ctx context.Context, interval time.Duration) {
	if m == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := m.SampleProcess(); err != nil {
					zap.L().Warn("process sample failed", zap.Error(err))
				}
			}
		}
	}()
}
