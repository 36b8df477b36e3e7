package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hanpama/graphproxy/internal/registry"
)

func TestDefaultIsValid(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
	require.NoError(t, cfg.Validate())
	require.Zero(t, cfg.Server.Timeout, "no deadline beyond the transport's")
	require.Zero(t, cfg.Registry.Timeout)

	mode, err := cfg.RegistryMode()
	require.NoError(t, err)
	require.Equal(t, registry.ModeIntrospection, mode)
}

func TestLoadFileOverDefaults(t *testing.T) {
	t.Setenv("GRAPHPROXY_TEST_ENDPOINT", "https://registry.example.com/graphql")
	path := filepath.Join(t.TempDir(), "graphproxy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
  max_body_bytes: 1048576
registry:
  endpoint: ${GRAPHPROXY_TEST_ENDPOINT}
  mode: document
  timeout: 5s
log:
  format: console
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, ":9090", cfg.Server.Addr)
	require.Equal(t, int64(1<<20), cfg.Server.MaxBodyBytes)
	require.Zero(t, cfg.Server.Timeout, "unset keys keep defaults")
	require.Equal(t, "https://registry.example.com/graphql", cfg.Registry.Endpoint)
	require.Equal(t, 5*time.Second, cfg.Registry.Timeout)
	require.Equal(t, "console", cfg.Log.Format)
	require.Equal(t, "info", cfg.Log.Level)

	mode, err := cfg.RegistryMode()
	require.NoError(t, err)
	require.Equal(t, registry.ModeDocument, mode)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = Parse(Default(), []byte("server: [1, 2"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Server.Addr = ""
	cfg.Registry.Mode = "rest"
	cfg.Log.Level = "loud"
	cfg.Log.Format = "xml"
	cfg.Metrics.Enabled = true
	cfg.Metrics.Path = "metrics"

	err := cfg.Validate()
	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))

	fields := make([]string, len(verrs))
	for i, e := range verrs {
		fields[i] = e.Field
	}
	require.Equal(t, []string{"server.addr", "registry.mode", "log.level", "log.format", "metrics.path"}, fields)
	require.Contains(t, err.Error(), "registry.mode: must be introspection or document")
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("GRAPHPROXY_DOTENV_TEST=from-file\n"), 0o644))
	t.Setenv("GRAPHPROXY_DOTENV_TEST", "")
	os.Unsetenv("GRAPHPROXY_DOTENV_TEST")

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "absent.env"), path))
	require.Equal(t, "from-file", os.Getenv("GRAPHPROXY_DOTENV_TEST"))
}
