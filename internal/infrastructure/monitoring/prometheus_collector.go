package monitoring

import (
	"strconv"
	"time"

	"interviewroom/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "interviewroom"

// PrometheusCollector implements ports.CallMetrics and the HTTP request metrics.
type PrometheusCollector struct {
	callsStarted      prometheus.Counter
	callsActive       prometheus.Gauge
	callDuration      prometheus.Histogram
	joinDuration      prometheus.Histogram
	joinFailures      *prometheus.CounterVec
	captureFailures   *prometheus.CounterVec
	remotes           prometheus.Gauge
	leaveNotifyFailed prometheus.Counter

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewPrometheusCollector registers the collectors with reg. Tests pass a fresh registry.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	factory := promauto.With(reg)

	return &PrometheusCollector{
		callsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_started_total",
			Help:      "Calls joined",
		}),
		callsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "calls_active",
			Help:      "Calls currently joined",
		}),
		callDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "call_duration_seconds",
			Help:      "Time between a successful join and leaving the call",
			Buckets:   []float64{30, 60, 300, 600, 1200, 1800, 2700, 3600, 7200},
		}),
		joinDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "join_duration_seconds",
			Help:      "Time from join request to a joined channel",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 9),
		}),
		joinFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "join_failures_total",
			Help:      "Failed joins by reason",
		}, []string{"reason"}),
		captureFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_failures_total",
			Help:      "Local track acquisition failures by media kind",
		}, []string{"kind"}),
		remotes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "remote_participants",
			Help:      "Remote participants in the active call",
		}),
		leaveNotifyFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "leave_notify_failures_total",
			Help:      "Departure notices the backend never acknowledged",
		}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func (p *PrometheusCollector) CallStarted() {
	p.callsStarted.Inc()
	p.callsActive.Inc()
}

func (p *PrometheusCollector) JoinSucceeded(duration time.Duration) {
	p.joinDuration.Observe(duration.Seconds())
}

func (p *PrometheusCollector) JoinFailed(reason string) {
	p.joinFailures.WithLabelValues(reason).Inc()
}

func (p *PrometheusCollector) CallEnded(duration time.Duration) {
	p.callsActive.Dec()
	p.callDuration.Observe(duration.Seconds())
	p.remotes.Set(0)
}

func (p *PrometheusCollector) CaptureFailed(kind domain.MediaKind) {
	p.captureFailures.WithLabelValues(string(kind)).Inc()
}

func (p *PrometheusCollector) RemoteParticipants(count int) {
	p.remotes.Set(float64(count))
}

func (p *PrometheusCollector) LeaveNotifyFailed() {
	p.leaveNotifyFailed.Inc()
}

func (p *PrometheusCollector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	p.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	p.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
