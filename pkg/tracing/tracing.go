package tracing

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "interviewroom"

// Span attribute keys shared by the coordinator's spans.
var (
	MeetingIDKey = attribute.Key("meeting.id")
	ChannelKey   = attribute.Key("call.channel")
	CallStateKey = attribute.Key("call.state")
)

type Config struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"`
	JaegerURL   string  `yaml:"jaeger_url"`
	Environment string  `yaml:"-"`
	Version     string  `yaml:"-"`
	SampleRate  float64 `yaml:"sample_rate"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "interviewroom",
		JaegerURL:   "http://localhost:14268/api/traces",
		Environment: "development",
		Version:     "dev",
		SampleRate:  1.0,
	}
}

// Provider owns the SDK tracer provider. The zero value is a disabled provider.
type Provider struct {
	sdk *tracesdk.TracerProvider
}

// Init installs the global tracer provider and W3C propagators. When tracing is disabled
// the otel no-op tracer stays in place and Shutdown does nothing.
func Init(cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{}, nil
	}
	if cfg.SampleRate < 0 || cfg.SampleRate > 1 {
		return nil, fmt.Errorf("tracing sample rate must be in [0, 1], got %v", cfg.SampleRate)
	}

	exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.JaegerURL)))
	if err != nil {
		return nil, fmt.Errorf("jaeger exporter: %w", err)
	}

	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	res := resource.NewWithAttributes("",
		semconv.ServiceNameKey.String(cfg.ServiceName),
		semconv.ServiceVersionKey.String(version),
		semconv.DeploymentEnvironmentKey.String(cfg.Environment),
	)

	sdk := tracesdk.NewTracerProvider(
		tracesdk.WithBatcher(exporter),
		tracesdk.WithResource(res),
		tracesdk.WithSampler(tracesdk.ParentBased(tracesdk.TraceIDRatioBased(cfg.SampleRate))),
	)
	otel.SetTracerProvider(sdk)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return &Provider{sdk: sdk}, nil
}

// Shutdown flushes pending spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.sdk == nil {
		return nil
	}
	return p.sdk.Shutdown(ctx)
}

func start(ctx context.Context, name string, kind trace.SpanKind, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithSpanKind(kind), trace.WithAttributes(attrs...))
}

// EndSpan marks the span failed when err is set, then ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// TraceHTTPRequest starts the server span of an API request. route is the gin route
// template, so spans group by endpoint rather than by meeting id.
func TraceHTTPRequest(ctx context.Context, method, route string) (context.Context, trace.Span) {
	if route == "" {
		route = "unmatched"
	}
	return start(ctx, method+" "+route, trace.SpanKindServer,
		semconv.HTTPMethodKey.String(method),
		semconv.HTTPRouteKey.String(route),
	)
}

func TraceBackendRequest(ctx context.Context, method, path string) (context.Context, trace.Span) {
	return start(ctx, "backend "+method+" "+path, trace.SpanKindClient,
		semconv.HTTPMethodKey.String(method),
		semconv.HTTPTargetKey.String(path),
	)
}

// TraceCall spans a media session step such as join or leave.
func TraceCall(ctx context.Context, step, meetingID, channel string) (context.Context, trace.Span) {
	return start(ctx, "call."+step, trace.SpanKindInternal,
		MeetingIDKey.String(meetingID),
		ChannelKey.String(channel),
	)
}

// TraceStoreOperation spans a key-value command. system names the store, e.g. "redis".
func TraceStoreOperation(ctx context.Context, op, system string) (context.Context, trace.Span) {
	return start(ctx, system+"."+strings.ToLower(op), trace.SpanKindClient,
		semconv.DBSystemKey.String(system),
		semconv.DBOperationKey.String(strings.ToUpper(op)),
	)
}

// MarkCallState tags the span with the state the call settled in.
func MarkCallState(span trace.Span, state string) {
	span.SetAttributes(CallStateKey.String(state))
}
