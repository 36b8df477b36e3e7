package main

import (
	"bytes"
	"context"
	"flag"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hanpama/graphproxy/internal/config"
	"github.com/hanpama/graphproxy/internal/eventbus"
	"github.com/hanpama/graphproxy/internal/metrics"
)

func runCmd(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestHelp(t *testing.T) {
	out, _, err := runCmd(t, "help")
	require.NoError(t, err)
	require.Contains(t, out, "print-schema")

	out, _, err = runCmd(t, "help", "serve")
	require.NoError(t, err)
	require.Contains(t, out, "-registry.mode")

	_, _, err = runCmd(t, "help", "nope")
	require.Error(t, err)
}

func TestUnknownCommand(t *testing.T) {
	_, stderr, err := runCmd(t, "frobnicate")
	require.EqualError(t, err, `unknown command "frobnicate"`)
	require.Contains(t, stderr, "USAGE")

	_, _, err = runCmd(t)
	require.EqualError(t, err, "missing command")
}

func fakeRegistry(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPrintSchemaDocument(t *testing.T) {
	srv := fakeRegistry(t, `{"data":{"service":{"schema":{"document":"type Query { hello: String }\n"}}}}`)
	out, _, err := runCmd(t, "print-schema", "-graph", "demo", "-api-key", "secret",
		"-registry.endpoint", srv.URL, "-registry.mode", "document")
	require.NoError(t, err)
	require.Equal(t, "type Query { hello: String }\n", out)
}

func TestPrintSchemaIntrospection(t *testing.T) {
	srv := fakeRegistry(t, `{"data":{"service":{"schema":{"introspection":{
		"queryType":{"name":"Query"},
		"types":[{"kind":"OBJECT","name":"Query","fields":[
			{"name":"hello","args":[],"type":{"kind":"SCALAR","name":"String","ofType":null},"isDeprecated":false,"deprecationReason":null}]}],
		"directives":[]}}}}}`)
	path := filepath.Join(t.TempDir(), "schema.graphql")

	_, _, err := runCmd(t, "print-schema", "-graph", "demo", "-api-key", "secret",
		"-registry.endpoint", srv.URL, "-out", path)
	require.NoError(t, err)
	sdl, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(sdl), "type Query {\n  hello: String\n}")
}

func TestPrintSchemaFailures(t *testing.T) {
	srv := fakeRegistry(t, `{}`)
	t.Setenv("GRAPHPROXY_API_KEY", "")

	_, _, err := runCmd(t, "print-schema", "-api-key", "secret")
	require.EqualError(t, err, "-graph is required")

	_, _, err = runCmd(t, "print-schema", "-graph", "demo")
	require.Error(t, err)

	_, _, err = runCmd(t, "print-schema", "-graph", "demo", "-api-key", "secret", "-hash", "abc")
	require.Error(t, err)

	_, _, err = runCmd(t, "print-schema", "-graph", "demo", "-api-key", "wrong", "-registry.endpoint", srv.URL)
	require.Error(t, err)
	require.Contains(t, err.Error(), "401")
}

func TestServeRejectsBadConfig(t *testing.T) {
	_, stderr, err := runCmd(t, "serve", "-registry.mode", "rest")
	require.Error(t, err)
	require.Contains(t, err.Error(), "registry.mode")
	require.Contains(t, stderr, "serve FLAGS")

	_, _, err = runCmd(t, "serve", "-no-such-flag")
	require.Error(t, err)
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graphproxy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":9000\"\n  pretty: true\nregistry:\n  mode: document\n"), 0o644))

	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	cf := bindConfigFlags(fs, true)
	require.NoError(t, fs.Parse([]string{"-config", path, "-server.addr", ":7000"}))
	cfg, err := cf.resolve()
	require.NoError(t, err)

	require.Equal(t, ":7000", cfg.Server.Addr)
	require.True(t, cfg.Server.Pretty)
	require.Equal(t, "document", cfg.Registry.Mode)
}

func TestMux(t *testing.T) {
	cfg := config.Default()
	proxied := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = io.WriteString(w, "proxied") })
	mux := newMux(cfg, proxied, metrics.New())

	for path, want := range map[string]string{"/healthz": "ok", "/my-graph": "proxied", "/metrics": "# HELP"} {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		require.True(t, strings.HasPrefix(w.Body.String(), want), "%s: %q", path, w.Body.String())
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	defer eventbus.Use(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var stderr bytes.Buffer
	err := run(ctx, []string{"serve", "-server.addr", "127.0.0.1:0", "-log.level", "error", "-metrics.enabled"}, io.Discard, &stderr)
	require.NoError(t, err)
}
