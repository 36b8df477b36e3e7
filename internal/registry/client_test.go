package registry

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hanpama/graphproxy/internal/eventbus"
	"github.com/hanpama/graphproxy/internal/events"
	"github.com/hanpama/graphproxy/internal/proxyerr"
	"github.com/hanpama/graphproxy/internal/target"
)

type captured struct {
	mu          sync.Mutex
	apiKey      string
	contentType string
	body        map[string]any
}

func registryServer(t *testing.T, status int, reply string) (*httptest.Server, *captured) {
	t.Helper()
	c := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.apiKey = r.Header.Get("X-API-Key")
		c.contentType = r.Header.Get("Content-Type")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &c.body)
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

var catalog = target.Target{GraphID: "catalog", Variant: "current", APIKey: "service:catalog:secret"}

const introspectionReply = `{"data":{"service":{"schema":{"introspection":{
  "queryType":{"name":"Query"},"mutationType":null,"subscriptionType":null,
  "types":[{"kind":"OBJECT","name":"Query","fields":[{"name":"hello","args":[],
    "type":{"kind":"SCALAR","name":"String","ofType":null},"isDeprecated":false,"deprecationReason":null}],
    "inputFields":null,"interfaces":[],"enumValues":null,"possibleTypes":null}],
  "directives":[]}}}}}`

func TestFetchIntrospection(t *testing.T) {
	srv, got := registryServer(t, http.StatusOK, introspectionReply)
	c := New(WithEndpoint(srv.URL))

	p, err := c.Fetch(context.Background(), catalog)
	require.NoError(t, err)
	require.Equal(t, ModeIntrospection, p.Mode)
	require.NotNil(t, p.Introspection)
	require.Equal(t, "Query", p.Introspection.QueryType.Name)
	require.Len(t, p.Introspection.Types, 1)
	require.Empty(t, p.Document)

	got.mu.Lock()
	defer got.mu.Unlock()
	require.Equal(t, "service:catalog:secret", got.apiKey)
	require.Equal(t, "application/json", got.contentType)
	require.Contains(t, got.body["query"], "introspection")
	require.Equal(t, map[string]any{"graph": "catalog", "variant": "current", "hash": nil}, got.body["variables"])
}

func TestFetchByHashSendsNullVariant(t *testing.T) {
	srv, got := registryServer(t, http.StatusOK, `{"data":{"service":{"schema":{"document":"type Query { a: Int }"}}}}`)
	c := New(WithEndpoint(srv.URL), WithMode(ModeDocument))
	hash := strings.Repeat("ab", 64)

	p, err := c.Fetch(context.Background(), target.Target{GraphID: "catalog", Hash: hash, APIKey: "k"})
	require.NoError(t, err)
	require.Equal(t, ModeDocument, p.Mode)
	require.Equal(t, "type Query { a: Int }", p.Document)
	require.Nil(t, p.Introspection)
	got.mu.Lock()
	defer got.mu.Unlock()
	require.Equal(t, map[string]any{"graph": "catalog", "variant": nil, "hash": hash}, got.body["variables"])
	require.Contains(t, got.body["query"], "document")
	require.NotContains(t, got.body["query"], "introspection")
}

func TestFetchNon200IsUpstreamError(t *testing.T) {
	srv, _ := registryServer(t, http.StatusInternalServerError, `{"message":"boom"}`)
	_, err := New(WithEndpoint(srv.URL)).Fetch(context.Background(), catalog)
	require.Error(t, err)
	require.True(t, errors.Is(err, proxyerr.ErrUpstream))

	var pe *proxyerr.Error
	require.True(t, errors.As(err, &pe))
	require.Equal(t, 500, pe.Status)
	require.Equal(t, "Internal Server Error", pe.StatusText)
	require.Equal(t, `{"message":"boom"}`, pe.Body)
	require.Contains(t, pe.Message, "500 Internal Server Error")
	require.True(t, proxyerr.Retryable(err))
}

func TestFetchRegistryErrors(t *testing.T) {
	cases := []struct {
		name  string
		reply string
		msg   string
	}{
		{"errors with data", `{"data":{"service":null},"errors":[{"message":"invalid api key"}]}`, "invalid api key"},
		{"errors only", `{"errors":[{"message":"a"},{"message":"b"}]}`, "a; b"},
		{"no data", `{}`, "registry returned no data"},
		{"null data", `{"data":null}`, "registry returned no data"},
		{"missing graph", `{"data":{"service":null}}`, "could not find graph catalog"},
		{"missing schema", `{"data":{"service":{"schema":null}}}`, "could not find schema catalog:current"},
		{"not json", `<html>`, "registry response is not valid JSON"},
		{"wrong shape", `{"data":{"service":[1,2]}}`, "registry response is not valid JSON"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv, _ := registryServer(t, http.StatusOK, tc.reply)
			_, err := New(WithEndpoint(srv.URL)).Fetch(context.Background(), catalog)
			require.Error(t, err)
			require.Equal(t, proxyerr.KindRegistry, proxyerr.KindOf(err))
			require.Contains(t, err.Error(), tc.msg)
			require.False(t, proxyerr.Retryable(err))
		})
	}
}

func TestFetchErrorsKeepRegistryMessages(t *testing.T) {
	srv, _ := registryServer(t, http.StatusOK, `{"errors":[{"message":"nope","path":["service"]}]}`)
	_, err := New(WithEndpoint(srv.URL)).Fetch(context.Background(), catalog)
	var pe *proxyerr.Error
	require.True(t, errors.As(err, &pe))
	require.Len(t, pe.Errors, 1)
	require.Equal(t, "nope", pe.Errors[0].Message)
	require.Equal(t, []any{"service"}, pe.Errors[0].Path)
}

type failingDoer struct{}

func (failingDoer) Do(*http.Request) (*http.Response, error) {
	return nil, errors.New("connection refused")
}

func TestFetchTransportFailure(t *testing.T) {
	_, err := New(WithHTTPDoer(failingDoer{})).Fetch(context.Background(), catalog)
	require.True(t, errors.Is(err, proxyerr.ErrUpstream))
	require.Equal(t, []string{
		"UpstreamError: registry request failed",
		"caused by: connection refused",
	}, proxyerr.Stack(err))
}

func TestFetchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	_, err := New(WithEndpoint(srv.URL), WithTimeout(20*time.Millisecond)).Fetch(context.Background(), catalog)
	require.Error(t, err)
	require.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestFetchPublishesEvents(t *testing.T) {
	srv, _ := registryServer(t, http.StatusNotFound, "missing")
	b := eventbus.New()
	eventbus.Use(b)
	defer eventbus.Use(nil)

	var started []events.RegistryFetchStart
	var finished []events.RegistryFetchFinish
	eventbus.SubscribeTo(b, func(_ context.Context, e events.RegistryFetchStart) { started = append(started, e) })
	eventbus.SubscribeTo(b, func(_ context.Context, e events.RegistryFetchFinish) { finished = append(finished, e) })

	_, err := New(WithEndpoint(srv.URL)).Fetch(context.Background(), catalog)
	require.Error(t, err)
	require.Equal(t, []events.RegistryFetchStart{{Graph: "catalog", Specifier: "current", Mode: "introspection"}}, started)
	require.Len(t, finished, 1)
	require.Equal(t, 404, finished[0].Status)
	require.Equal(t, err, finished[0].Err)
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeIntrospection, "introspection": ModeIntrospection, "Document": ModeDocument, "sdl": ModeDocument} {
		got, err := ParseMode(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
	_, err := ParseMode("graphql")
	require.Error(t, err)
	require.Equal(t, "document", ModeDocument.String())
}
