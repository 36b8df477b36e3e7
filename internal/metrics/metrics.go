// Package metrics exports pipeline events as Prometheus metrics.
package metrics

import (
	"context"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hanpama/graphproxy/internal/eventbus"
	"github.com/hanpama/graphproxy/internal/events"
)

const namespace = "graphproxy"

type Metrics struct {
	registry *prometheus.Registry

	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	registryFetch    *prometheus.HistogramVec
	schemaBuild      *prometheus.HistogramVec
	graphqlErrors    prometheus.Counter
	pipelineFailures *prometheus.CounterVec
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		registryFetch: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "registry_fetch_duration_seconds",
			Help:      "Schema registry round trips by mode and outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode", "outcome"}),
		schemaBuild: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "schema_build_duration_seconds",
			Help:      "Executable schema construction time.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}, []string{"mode", "outcome"}),
		graphqlErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "graphql_errors_total",
			Help:      "GraphQL errors returned in query results.",
		}),
		pipelineFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_failures_total",
			Help:      "Requests answered with an error envelope, by failure kind.",
		}, []string{"kind"}),
	}
	m.registry.MustRegister(
		m.httpRequests, m.httpDuration, m.registryFetch, m.schemaBuild,
		m.graphqlErrors, m.pipelineFailures,
	)
	return m
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Subscribe records events from b, or from the global bus when b is nil.
func (m *Metrics) Subscribe(b *eventbus.Bus) (unsubscribe func()) {
	unsubs := []func(){
		subscribe(b, func(_ context.Context, e events.HTTPFinish) {
			m.httpRequests.WithLabelValues(e.Request.Method, e.Route, strconv.Itoa(e.Status)).Inc()
			m.httpDuration.WithLabelValues(e.Route).Observe(e.Duration.Seconds())
		}),
		subscribe(b, func(_ context.Context, e events.RegistryFetchFinish) {
			m.registryFetch.WithLabelValues(e.Mode, outcome(e.Err)).Observe(e.Duration.Seconds())
		}),
		subscribe(b, func(_ context.Context, e events.SchemaBuildFinish) {
			m.schemaBuild.WithLabelValues(e.Mode, outcome(e.Err)).Observe(e.Duration.Seconds())
		}),
		subscribe(b, func(_ context.Context, e events.GraphQLFinish) {
			m.graphqlErrors.Add(float64(len(e.Errors)))
		}),
		subscribe(b, func(_ context.Context, e events.PipelineFailure) {
			m.pipelineFailures.WithLabelValues(e.Kind).Inc()
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func subscribe[T any](b *eventbus.Bus, h eventbus.Handler[T]) func() {
	if b == nil {
		return eventbus.Subscribe(h)
	}
	return eventbus.SubscribeTo(b, h)
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
