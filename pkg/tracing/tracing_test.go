package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(tracesdk.NewTracerProvider(tracesdk.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(previous) })
	return recorder
}

func attrValue(attrs []attribute.KeyValue, key attribute.Key) string {
	for _, kv := range attrs {
		if kv.Key == key {
			return kv.Value.Emit()
		}
	}
	return ""
}

func TestInit_Disabled(t *testing.T) {
	p, err := Init(DefaultConfig())
	require.NoError(t, err)
	assert.NoError(t, p.Shutdown(context.Background()))

	var nilProvider *Provider
	assert.NoError(t, nilProvider.Shutdown(context.Background()))
}

func TestInit_RejectsSampleRate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.SampleRate = 1.5
	_, err := Init(cfg)
	assert.ErrorContains(t, err, "sample rate")
}

func TestTraceCall_RecordsStateAndError(t *testing.T) {
	recorder := recordSpans(t)

	_, span := TraceCall(context.Background(), "join", "m-1", "meeting-m-1")
	MarkCallState(span, "error")
	EndSpan(span, errors.New("join timed out"))

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	got := ended[0]
	assert.Equal(t, "call.join", got.Name())
	assert.Equal(t, codes.Error, got.Status().Code)
	assert.Equal(t, "m-1", attrValue(got.Attributes(), MeetingIDKey))
	assert.Equal(t, "meeting-m-1", attrValue(got.Attributes(), ChannelKey))
	assert.Equal(t, "error", attrValue(got.Attributes(), CallStateKey))
}

func TestSpanNames(t *testing.T) {
	recorder := recordSpans(t)
	ctx := context.Background()

	_, span := TraceHTTPRequest(ctx, "GET", "/api/v1/meetings/:id")
	EndSpan(span, nil)
	_, span = TraceHTTPRequest(ctx, "GET", "")
	EndSpan(span, nil)
	_, span = TraceBackendRequest(ctx, "POST", "/meetings/m-1/leave")
	EndSpan(span, nil)
	_, span = TraceStoreOperation(ctx, "Get", "redis")
	EndSpan(span, nil)

	var names []string
	for _, s := range recorder.Ended() {
		names = append(names, s.Name())
		assert.Equal(t, codes.Unset, s.Status().Code)
	}
	assert.Equal(t, []string{
		"GET /api/v1/meetings/:id",
		"GET unmatched",
		"backend POST /meetings/m-1/leave",
		"redis.get",
	}, names)
}
