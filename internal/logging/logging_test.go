package logging

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hanpama/graphproxy/internal/eventbus"
	"github.com/hanpama/graphproxy/internal/events"
	"github.com/hanpama/graphproxy/internal/reqid"
)

func TestNew(t *testing.T) {
	l, err := New("debug", "console")
	require.NoError(t, err)
	require.True(t, l.Core().Enabled(zapcore.DebugLevel))

	l, err = New("warn", "json")
	require.NoError(t, err)
	require.False(t, l.Core().Enabled(zapcore.InfoLevel))

	_, err = New("loud", "json")
	require.Error(t, err)
	_, err = New("info", "xml")
	require.Error(t, err)
}

func TestSubscribe(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	b := eventbus.New()
	defer Subscribe(b, zap.New(core))()

	ctx, id := reqid.NewContext(context.Background())
	eventbus.PublishTo(b, ctx, events.RegistryFetchFinish{Graph: "catalog", Status: 500, Err: errors.New("boom")})
	eventbus.PublishTo(b, ctx, events.HTTPFinish{Request: httptest.NewRequest("POST", "/catalog", nil), Route: "execute", Status: 200})

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)

	require.Equal(t, "registry fetch failed", entries[0].Message)
	require.Equal(t, zapcore.WarnLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	require.Equal(t, reqid.Format(id), fields["request_id"])
	require.Equal(t, "catalog", fields["graph"])
	require.Equal(t, "boom", fields["error"])

	require.Equal(t, "request", entries[1].Message)
	require.Equal(t, "/catalog", entries[1].ContextMap()["path"])
	require.Equal(t, int64(200), entries[1].ContextMap()["status"])
}

func TestPipelineFailureFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	b := eventbus.New()
	defer Subscribe(b, zap.New(core))()

	eventbus.PublishTo(b, context.Background(), events.PipelineFailure{Kind: "UpstreamError", Message: "HTTP request failed", Retryable: true})

	entries := logs.FilterMessage("pipeline failure").AllUntimed()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "UpstreamError", fields["kind"])
	require.Equal(t, true, fields["retryable"])
}
