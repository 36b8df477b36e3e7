// Package logging builds the process logger and logs pipeline events.
package logging

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hanpama/graphproxy/internal/eventbus"
	"github.com/hanpama/graphproxy/internal/events"
	"github.com/hanpama/graphproxy/internal/reqid"
)

// New returns a logger writing to stderr. format is "json" or "console".
func New(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	var cfg zap.Config
	switch strings.ToLower(format) {
	case "", "json":
		cfg = zap.NewProductionConfig()
	case "console":
		cfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true
	return cfg.Build()
}

// Subscribe logs pipeline events to l. b may be nil to use the global bus.
func Subscribe(b *eventbus.Bus, l *zap.Logger) (unsubscribe func()) {
	unsubs := []func(){
		subscribe(b, func(ctx context.Context, e events.HTTPFinish) {
			l.Info("request",
				withRequestID(ctx,
					zap.String("method", e.Request.Method),
					zap.String("path", e.Request.URL.Path),
					zap.String("route", e.Route),
					zap.Int("status", e.Status),
					zap.Duration("duration", e.Duration),
				)...)
		}),
		subscribe(b, func(ctx context.Context, e events.RegistryFetchFinish) {
			fields := withRequestID(ctx,
				zap.String("graph", e.Graph),
				zap.String("specifier", e.Specifier),
				zap.String("mode", e.Mode),
				zap.Int("status", e.Status),
				zap.Duration("duration", e.Duration),
			)
			if e.Err != nil {
				l.Warn("registry fetch failed", append(fields, zap.Error(e.Err))...)
				return
			}
			l.Debug("registry fetch", fields...)
		}),
		subscribe(b, func(ctx context.Context, e events.SchemaBuildFinish) {
			fields := withRequestID(ctx,
				zap.String("mode", e.Mode),
				zap.Int("types", e.Types),
				zap.Duration("duration", e.Duration),
			)
			if e.Err != nil {
				l.Warn("schema build failed", append(fields, zap.Error(e.Err))...)
				return
			}
			l.Debug("schema built", fields...)
		}),
		subscribe(b, func(ctx context.Context, e events.GraphQLFinish) {
			l.Debug("graphql",
				withRequestID(ctx,
					zap.String("graph", e.Graph),
					zap.String("operation", e.OperationName),
					zap.Int("errors", len(e.Errors)),
					zap.Duration("duration", e.Duration),
				)...)
		}),
		subscribe(b, func(ctx context.Context, e events.PipelineFailure) {
			l.Info("pipeline failure",
				withRequestID(ctx,
					zap.String("kind", e.Kind),
					zap.String("message", e.Message),
					zap.Bool("retryable", e.Retryable),
				)...)
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

func withRequestID(ctx context.Context, fields ...zap.Field) []zap.Field {
	if id, ok := reqid.FromContext(ctx); ok {
		return append([]zap.Field{zap.String("request_id", reqid.Format(id))}, fields...)
	}
	return fields
}
