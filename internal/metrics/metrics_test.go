package metrics

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/graphproxy/internal/eventbus"
	"github.com/hanpama/graphproxy/internal/events"
)

func TestSubscribe(t *testing.T) {
	m := New()
	b := eventbus.New()
	defer m.Subscribe(b)()
	ctx := context.Background()

	req := httptest.NewRequest("POST", "/catalog", nil)
	eventbus.PublishTo(b, ctx, events.HTTPFinish{Request: req, Route: "execute", Status: 200, Duration: time.Millisecond})
	eventbus.PublishTo(b, ctx, events.HTTPFinish{Request: req, Route: "execute", Status: 200})
	eventbus.PublishTo(b, ctx, events.RegistryFetchFinish{Mode: "document", Err: errors.New("boom")})
	eventbus.PublishTo(b, ctx, events.GraphQLFinish{Errors: []error{errors.New("a"), errors.New("b")}})
	eventbus.PublishTo(b, ctx, events.PipelineFailure{Kind: "UpstreamError"})

	require.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("POST", "execute", "200")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.graphqlErrors))
	require.Equal(t, 1.0, testutil.ToFloat64(m.pipelineFailures.WithLabelValues("UpstreamError")))
	require.Equal(t, 1, testutil.CollectAndCount(m.registryFetch))
}

func TestHandler(t *testing.T) {
	m := New()
	m.pipelineFailures.WithLabelValues("RegistryError").Inc()

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(w.Body)
	require.Equal(t, 200, w.Code)
	require.True(t, strings.Contains(string(body), `graphproxy_pipeline_failures_total{kind="RegistryError"} 1`), string(body))
}
