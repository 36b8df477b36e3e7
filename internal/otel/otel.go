// Package otel turns pipeline events into OpenTelemetry spans.
package otel

import (
	"context"
	"sync"
	"time"

	eventbus "github.com/hanpama/graphproxy/internal/eventbus"
	events "github.com/hanpama/graphproxy/internal/events"
	reqid "github.com/hanpama/graphproxy/internal/reqid"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const instrumentationName = "github.com/hanpama/graphproxy"

// Setup configures OpenTelemetry and attaches eventbus subscribers.
// If endpoint is empty, no telemetry is configured.
func Setup(endpoint, service string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
		)),
	)
	otel.SetTracerProvider(tp)

	unsubscribe := Register(nil, tp.Tracer(instrumentationName))
	return func(ctx context.Context) error {
		unsubscribe()
		return tp.Shutdown(ctx)
	}, nil
}

// Register subscribes span-producing handlers to b, or to the global bus
// when b is nil. The returned function removes them.
func Register(b *eventbus.Bus, tracer trace.Tracer) (unsubscribe func()) {
	s := &subscriber{tracer: tracer}
	return s.register(b)
}

type subscriber struct {
	tracer     trace.Tracer
	httpSpans  sync.Map // rid -> trace.Span
	gqlSpans   sync.Map // rid -> trace.Span
	fetchSpans sync.Map // rid -> trace.Span
}

func subscribe[T any](b *eventbus.Bus, h eventbus.Handler[T]) func() {
	if b == nil {
		return eventbus.Subscribe(h)
	}
	return eventbus.SubscribeTo(b, h)
}

// parent returns ctx carrying the innermost open span of the request.
func (s *subscriber) parent(ctx context.Context, rid int64) context.Context {
	if v, ok := s.gqlSpans.Load(rid); ok {
		return trace.ContextWithSpan(ctx, v.(trace.Span))
	}
	if v, ok := s.httpSpans.Load(rid); ok {
		return trace.ContextWithSpan(ctx, v.(trace.Span))
	}
	return ctx
}

func endSpan(m *sync.Map, rid int64, err error, attrs ...attribute.KeyValue) {
	v, ok := m.LoadAndDelete(rid)
	if !ok {
		return
	}
	span := v.(trace.Span)
	span.SetAttributes(attrs...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *subscriber) register(b *eventbus.Bus) func() {
	unsubs := []func(){
		subscribe(b, func(ctx context.Context, e events.HTTPStart) {
			rid, _ := reqid.FromContext(ctx)
			_, span := s.tracer.Start(ctx, "http.request")
			span.SetAttributes(
				semconv.HTTPMethodKey.String(e.Request.Method),
				attribute.String("http.target", e.Request.URL.Path),
			)
			s.httpSpans.Store(rid, span)
		}),
		subscribe(b, func(ctx context.Context, e events.HTTPFinish) {
			rid, _ := reqid.FromContext(ctx)
			endSpan(&s.httpSpans, rid, nil,
				semconv.HTTPStatusCodeKey.Int(e.Status),
				attribute.String("http.route", e.Route),
			)
		}),
		subscribe(b, func(ctx context.Context, e events.PipelineFailure) {
			rid, _ := reqid.FromContext(ctx)
			if v, ok := s.httpSpans.Load(rid); ok {
				span := v.(trace.Span)
				span.SetAttributes(
					attribute.String("graphproxy.failure.kind", e.Kind),
					attribute.Bool("graphproxy.failure.retryable", e.Retryable),
				)
				span.SetStatus(codes.Error, e.Message)
			}
		}),
		subscribe(b, func(ctx context.Context, e events.RegistryFetchStart) {
			rid, _ := reqid.FromContext(ctx)
			_, span := s.tracer.Start(s.parent(ctx, rid), "registry.fetch")
			span.SetAttributes(
				attribute.String("graphproxy.graph", e.Graph),
				attribute.String("graphproxy.specifier", e.Specifier),
				attribute.String("graphproxy.registry.mode", e.Mode),
			)
			s.fetchSpans.Store(rid, span)
		}),
		subscribe(b, func(ctx context.Context, e events.RegistryFetchFinish) {
			rid, _ := reqid.FromContext(ctx)
			endSpan(&s.fetchSpans, rid, e.Err, semconv.HTTPStatusCodeKey.Int(e.Status))
		}),
		subscribe(b, func(ctx context.Context, e events.SchemaBuildFinish) {
			// no start event; backdate the span to cover the build
			rid, _ := reqid.FromContext(ctx)
			end := time.Now()
			_, span := s.tracer.Start(s.parent(ctx, rid), "schema.build", trace.WithTimestamp(end.Add(-e.Duration)))
			span.SetAttributes(
				attribute.String("graphproxy.registry.mode", e.Mode),
				attribute.Int("graphproxy.schema.types", e.Types),
			)
			if e.Err != nil {
				span.RecordError(e.Err)
				span.SetStatus(codes.Error, e.Err.Error())
			}
			span.End(trace.WithTimestamp(end))
		}),
		subscribe(b, func(ctx context.Context, e events.GraphQLStart) {
			rid, _ := reqid.FromContext(ctx)
			_, span := s.tracer.Start(s.parent(ctx, rid), "graphql.operation")
			span.SetAttributes(
				attribute.String("graphql.operation.name", e.OperationName),
				attribute.String("graphproxy.graph", e.Graph),
			)
			s.gqlSpans.Store(rid, span)
		}),
		subscribe(b, func(ctx context.Context, e events.GraphQLFinish) {
			rid, _ := reqid.FromContext(ctx)
			endSpan(&s.gqlSpans, rid, nil, attribute.Int("graphql.error_count", len(e.Errors)))
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
