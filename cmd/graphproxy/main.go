package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hanpama/graphproxy/internal/builder"
	"github.com/hanpama/graphproxy/internal/config"
	"github.com/hanpama/graphproxy/internal/eventbus"
	"github.com/hanpama/graphproxy/internal/logging"
	"github.com/hanpama/graphproxy/internal/metrics"
	"github.com/hanpama/graphproxy/internal/otel"
	"github.com/hanpama/graphproxy/internal/proxy"
	"github.com/hanpama/graphproxy/internal/registry"
	"github.com/hanpama/graphproxy/internal/server"
	"github.com/hanpama/graphproxy/internal/target"
)

const rootUsage = `graphproxy — GraphQL proxy for registry-hosted schemas

USAGE:
  graphproxy <command> [flags]

COMMANDS:
  serve            Run the HTTP GraphQL proxy
  print-schema     Fetch a graph's schema from the registry and print it as SDL
  help             Show help for any command
`

const serveUsage = `serve FLAGS:
  -config <file>                  YAML config file (values below override it)
  -server.addr <addr>             HTTP listen address (default: :8080)
  -server.pretty                  Pretty-print JSON responses
  -server.timeout <duration>      Per-request timeout; 0 inherits the transport deadline (default: 0)
  -server.max-body-bytes N        Request body limit in bytes; 0 disables (default: 0)
  -registry.endpoint <url>        Schema registry GraphQL endpoint
  -registry.mode <mode>           introspection | document (default: introspection)
  -registry.timeout <duration>    Registry call timeout; 0 inherits the request deadline
  -log.level <level>              debug | info | warn | error (default: info)
  -log.format <format>            json | console (default: json)
  -otel.endpoint <addr>           OTLP collector endpoint
  -otel.service <name>            OpenTelemetry service name (default: graphproxy)
  -metrics.enabled                Expose Prometheus metrics
  -metrics.path <path>            Metrics endpoint path (default: /metrics)
`

const printSchemaUsage = `print-schema FLAGS:
  -graph <id>                 Graph identifier (required)
  -variant <name>             Schema variant (default: current)
  -hash <hash>                Schema content hash; overrides -variant
  -api-key <key>              Registry API key (default: $GRAPHPROXY_API_KEY)
  -config <file>              YAML config file
  -registry.endpoint <url>    Schema registry GraphQL endpoint
  -registry.mode <mode>       introspection | document (default: introspection)
  -out <file>                 Write SDL to file (default: stdout)
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, rootUsage)
		return fmt.Errorf("missing command")
	}

	cmd := args[0]
	cmdArgs := args[1:]
	switch cmd {
	case "serve":
		return cmdServe(ctx, cmdArgs, stderr)
	case "print-schema":
		return cmdPrintSchema(ctx, cmdArgs, stdout, stderr)
	case "help", "-h", "-help", "--help":
		return cmdHelp(cmdArgs, stdout)
	default:
		fmt.Fprint(stderr, rootUsage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdHelp(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stdout, rootUsage)
		return nil
	}
	switch args[0] {
	case "serve":
		fmt.Fprint(stdout, serveUsage)
	case "print-schema":
		fmt.Fprint(stdout, printSchemaUsage)
	default:
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	return nil
}

// configFlags binds the config flags shared by commands. Values given on
// the command line override the config file.
type configFlags struct {
	path string
	vals config.Config
	fs   *flag.FlagSet
}

func bindConfigFlags(fs *flag.FlagSet, server bool) *configFlags {
	c := &configFlags{vals: config.Default(), fs: fs}
	v := &c.vals
	fs.StringVar(&c.path, "config", "", "YAML config file")
	fs.StringVar(&v.Registry.Endpoint, "registry.endpoint", v.Registry.Endpoint, "Schema registry endpoint")
	fs.StringVar(&v.Registry.Mode, "registry.mode", v.Registry.Mode, "introspection or document")
	fs.DurationVar(&v.Registry.Timeout, "registry.timeout", v.Registry.Timeout, "Registry call timeout")
	if !server {
		return c
	}
	fs.StringVar(&v.Server.Addr, "server.addr", v.Server.Addr, "HTTP listen address")
	fs.BoolVar(&v.Server.Pretty, "server.pretty", v.Server.Pretty, "Pretty-print JSON responses")
	fs.DurationVar(&v.Server.Timeout, "server.timeout", v.Server.Timeout, "Per-request timeout")
	fs.Int64Var(&v.Server.MaxBodyBytes, "server.max-body-bytes", v.Server.MaxBodyBytes, "Request body limit")
	fs.StringVar(&v.Log.Level, "log.level", v.Log.Level, "Log level")
	fs.StringVar(&v.Log.Format, "log.format", v.Log.Format, "Log format")
	fs.StringVar(&v.Otel.Endpoint, "otel.endpoint", v.Otel.Endpoint, "OTLP collector endpoint")
	fs.StringVar(&v.Otel.Service, "otel.service", v.Otel.Service, "OpenTelemetry service name")
	fs.BoolVar(&v.Metrics.Enabled, "metrics.enabled", v.Metrics.Enabled, "Expose Prometheus metrics")
	fs.StringVar(&v.Metrics.Path, "metrics.path", v.Metrics.Path, "Metrics endpoint path")
	return c
}

// resolve loads the config file and applies explicitly set flags on top.
func (c *configFlags) resolve() (config.Config, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(c.path)
	if err != nil {
		return cfg, err
	}
	v := c.vals
	c.fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "registry.endpoint":
			cfg.Registry.Endpoint = v.Registry.Endpoint
		case "registry.mode":
			cfg.Registry.Mode = v.Registry.Mode
		case "registry.timeout":
			cfg.Registry.Timeout = v.Registry.Timeout
		case "server.addr":
			cfg.Server.Addr = v.Server.Addr
		case "server.pretty":
			cfg.Server.Pretty = v.Server.Pretty
		case "server.timeout":
			cfg.Server.Timeout = v.Server.Timeout
		case "server.max-body-bytes":
			cfg.Server.MaxBodyBytes = v.Server.MaxBodyBytes
		case "log.level":
			cfg.Log.Level = v.Log.Level
		case "log.format":
			cfg.Log.Format = v.Log.Format
		case "otel.endpoint":
			cfg.Otel.Endpoint = v.Otel.Endpoint
		case "otel.service":
			cfg.Otel.Service = v.Otel.Service
		case "metrics.enabled":
			cfg.Metrics.Enabled = v.Metrics.Enabled
		case "metrics.path":
			cfg.Metrics.Path = v.Metrics.Path
		}
	})
	return cfg, cfg.Validate()
}

func newRegistryClient(cfg config.Config) (*registry.Client, error) {
	mode, err := cfg.RegistryMode()
	if err != nil {
		return nil, err
	}
	return registry.New(
		registry.WithEndpoint(cfg.Registry.Endpoint),
		registry.WithMode(mode),
		registry.WithTimeout(cfg.Registry.Timeout),
		registry.WithHTTPDoer(&http.Client{}),
	), nil
}

// newMux routes operational endpoints and hands everything else to h.
func newMux(cfg config.Config, h http.Handler, m *metrics.Metrics) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "ok")
	})
	if m != nil {
		mux.Handle(cfg.Metrics.Path, m.Handler())
	}
	mux.Handle("/", h)
	return mux
}

func cmdServe(ctx context.Context, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	cf := bindConfigFlags(fs, true)
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(stderr, serveUsage)
		return err
	}
	cfg, err := cf.resolve()
	if err != nil {
		fmt.Fprint(stderr, serveUsage)
		return err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	eventbus.Use(eventbus.New())
	defer logging.Subscribe(nil, logger)()

	shutdownTracing, err := otel.Setup(cfg.Otel.Endpoint, cfg.Otel.Service)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		defer m.Subscribe(nil)()
	}

	client, err := newRegistryClient(cfg)
	if err != nil {
		return err
	}
	var sopts []server.Option
	if cfg.Server.Pretty {
		sopts = append(sopts, server.WithPretty())
	}
	if cfg.Server.Timeout > 0 {
		sopts = append(sopts, server.WithTimeout(cfg.Server.Timeout))
	}
	if cfg.Server.MaxBodyBytes > 0 {
		sopts = append(sopts, server.WithMaxBodyBytes(cfg.Server.MaxBodyBytes))
	}
	h := server.New(proxy.NewPipeline(client), sopts...)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           newMux(cfg, h, m),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	logger.Info("graphproxy listening",
		zap.String("addr", cfg.Server.Addr),
		zap.String("registry", client.String()),
		zap.Bool("metrics", cfg.Metrics.Enabled),
	)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func cmdPrintSchema(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var t target.Target
	outFile := ""
	fs := flag.NewFlagSet("print-schema", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&t.GraphID, "graph", "", "Graph identifier")
	fs.StringVar(&t.Variant, "variant", "", "Schema variant")
	fs.StringVar(&t.Hash, "hash", "", "Schema content hash")
	fs.StringVar(&t.APIKey, "api-key", os.Getenv("GRAPHPROXY_API_KEY"), "Registry API key")
	fs.StringVar(&outFile, "out", outFile, "Write SDL to file")
	cf := bindConfigFlags(fs, false)
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(stderr, printSchemaUsage)
		return err
	}
	if t.GraphID == "" {
		fmt.Fprint(stderr, printSchemaUsage)
		return fmt.Errorf("-graph is required")
	}
	if t.APIKey == "" {
		return fmt.Errorf("-api-key or $GRAPHPROXY_API_KEY is required")
	}
	if t.Hash != "" {
		if !target.IsHash(t.Hash) {
			return fmt.Errorf("-hash must be 128 lowercase hex characters")
		}
		t.Variant = ""
	} else if t.Variant == "" {
		t.Variant = target.DefaultVariant
	}

	cfg, err := cf.resolve()
	if err != nil {
		return err
	}
	client, err := newRegistryClient(cfg)
	if err != nil {
		return err
	}
	payload, err := client.Fetch(ctx, t)
	if err != nil {
		return fmt.Errorf("fetch schema: %w", err)
	}
	sdl, err := builder.SDL(payload)
	if err != nil {
		return err
	}
	if outFile == "" {
		_, err = io.WriteString(stdout, sdl)
		return err
	}
	return os.WriteFile(outFile, []byte(sdl), 0644)
}
