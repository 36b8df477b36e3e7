package otel

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/hanpama/graphproxy/internal/eventbus"
	"github.com/hanpama/graphproxy/internal/events"
	"github.com/hanpama/graphproxy/internal/reqid"
)

func TestRequestSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	b := eventbus.New()
	unsubscribe := Register(b, tp.Tracer("test"))
	defer unsubscribe()

	ctx, _ := reqid.NewContext(context.Background())
	req := httptest.NewRequest("POST", "/catalog", nil)

	eventbus.PublishTo(b, ctx, events.HTTPStart{Request: req})
	eventbus.PublishTo(b, ctx, events.RegistryFetchStart{Graph: "catalog", Specifier: "current", Mode: "document"})
	eventbus.PublishTo(b, ctx, events.RegistryFetchFinish{Graph: "catalog", Status: 200})
	eventbus.PublishTo(b, ctx, events.SchemaBuildFinish{Mode: "document", Types: 7, Duration: time.Millisecond})
	eventbus.PublishTo(b, ctx, events.GraphQLStart{Graph: "catalog", Query: "{ a }"})
	eventbus.PublishTo(b, ctx, events.GraphQLFinish{Graph: "catalog", Errors: []error{errors.New("x")}})
	eventbus.PublishTo(b, ctx, events.HTTPFinish{Request: req, Route: "execute", Status: 200})

	ended := rec.Ended()
	names := make([]string, len(ended))
	for i, s := range ended {
		names[i] = s.Name()
	}
	require.Equal(t, []string{"registry.fetch", "schema.build", "graphql.operation", "http.request"}, names)

	root := ended[3]
	for _, s := range ended[:3] {
		require.Equal(t, root.SpanContext().SpanID(), s.Parent().SpanID(), s.Name())
	}
}

func TestFailedFetchMarksSpan(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	b := eventbus.New()
	defer Register(b, tp.Tracer("test"))()

	ctx, _ := reqid.NewContext(context.Background())
	eventbus.PublishTo(b, ctx, events.RegistryFetchStart{Graph: "catalog"})
	eventbus.PublishTo(b, ctx, events.RegistryFetchFinish{Graph: "catalog", Status: 500, Err: errors.New("boom")})

	ended := rec.Ended()
	require.Len(t, ended, 1)
	require.Equal(t, "boom", ended[0].Status().Description)
	require.Len(t, ended[0].Events(), 1, "error recorded")
}

func TestPipelineFailureMarksRequestSpan(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	b := eventbus.New()
	defer Register(b, tp.Tracer("test"))()

	ctx, _ := reqid.NewContext(context.Background())
	req := httptest.NewRequest("POST", "/catalog", nil)
	eventbus.PublishTo(b, ctx, events.HTTPStart{Request: req})
	eventbus.PublishTo(b, ctx, events.PipelineFailure{Kind: "UpstreamError", Message: "bad gateway", Retryable: true})
	eventbus.PublishTo(b, ctx, events.HTTPFinish{Request: req, Route: "execute", Status: 200})

	ended := rec.Ended()
	require.Len(t, ended, 1)
	require.Equal(t, "bad gateway", ended[0].Status().Description)
	attrs := map[string]any{}
	for _, kv := range ended[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	require.Equal(t, "UpstreamError", attrs["graphproxy.failure.kind"])
	require.Equal(t, true, attrs["graphproxy.failure.retryable"])
}

func TestSetupWithoutEndpoint(t *testing.T) {
	shutdown, err := Setup("", "graphproxy")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
