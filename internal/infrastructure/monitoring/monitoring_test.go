package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"interviewroom/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPrometheusCollector_CallLifecycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheusCollector(reg)

	p.JoinSucceeded(1500 * time.Millisecond)
	p.CallStarted()
	p.RemoteParticipants(2)
	p.CaptureFailed(domain.MediaVideo)
	p.JoinFailed("timeout")
	p.JoinFailed("timeout")
	p.LeaveNotifyFailed()

	assert.Equal(t, 1.0, testutil.ToFloat64(p.callsStarted))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.callsActive))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.remotes))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.captureFailures.WithLabelValues("video")))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.joinFailures.WithLabelValues("timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.leaveNotifyFailed))

	p.CallEnded(10 * time.Minute)
	assert.Equal(t, 0.0, testutil.ToFloat64(p.callsActive))
	assert.Equal(t, 0.0, testutil.ToFloat64(p.remotes))

	assert.Equal(t, 1, testutil.CollectAndCount(p.callDuration))
}

func TestPrometheusCollector_HTTPRequests(t *testing.T) {
	p := NewPrometheusCollector(prometheus.NewRegistry())

	p.RecordHTTPRequest("GET", "/api/v1/call", 200, 5*time.Millisecond)
	p.RecordHTTPRequest("GET", "", 404, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(p.httpRequests.WithLabelValues("GET", "/api/v1/call", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.httpRequests.WithLabelValues("GET", "unmatched", "404")))
}

func TestHealthChecker(t *testing.T) {
	h := NewHealthChecker()
	h.AddCheck("ok", func(context.Context) error { return nil }, time.Second)
	assert.True(t, h.IsReady(context.Background()))

	h.AddCheck("backend", func(context.Context) error { return errors.New("circuit breaker open") }, time.Second)
	h.AddCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, 10*time.Millisecond)

	status := h.CheckAll(context.Background())
	assert.Equal(t, StatusUnhealthy, status.Status)
	assert.Equal(t, StatusHealthy, status.Checks["ok"])
	assert.Equal(t, "circuit breaker open", status.Checks["backend"])
	assert.Equal(t, context.DeadlineExceeded.Error(), status.Checks["slow"])
	assert.False(t, h.IsReady(context.Background()))
}
