// Package proxy runs the per-request pipeline: resolve the target, fetch its
// schema from the registry, build an executable schema and execute the query.
//
// Nothing is cached between requests; every call rebuilds the schema.
package proxy

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/hanpama/graphproxy/internal/builder"
	"github.com/hanpama/graphproxy/internal/eventbus"
	"github.com/hanpama/graphproxy/internal/events"
	"github.com/hanpama/graphproxy/internal/executor"
	"github.com/hanpama/graphproxy/internal/registry"
	"github.com/hanpama/graphproxy/internal/target"
)

// Fetcher retrieves a schema payload for a target.
type Fetcher interface {
	Fetch(ctx context.Context, t target.Target) (registry.Payload, error)
	Mode() registry.Mode
}

type Pipeline struct {
	fetcher Fetcher
}

func NewPipeline(f Fetcher) *Pipeline { return &Pipeline{fetcher: f} }

// Mode reports the registry mode the pipeline fetches in.
func (p *Pipeline) Mode() registry.Mode { return p.fetcher.Mode() }

// Prepare resolves the target addressed by u and h, fetches its schema and
// builds it.
func (p *Pipeline) Prepare(ctx context.Context, u *url.URL, h http.Header) (target.Target, *builder.Executable, error) {
	t, payload, err := p.fetch(ctx, u, h)
	if err != nil {
		return t, nil, err
	}
	exe, err := builder.Build(ctx, payload)
	return t, exe, err
}

// Document returns the raw schema document of the addressed target.
// It is only available when fetching in document mode.
func (p *Pipeline) Document(ctx context.Context, u *url.URL, h http.Header) (string, error) {
	if p.fetcher.Mode() != registry.ModeDocument {
		return "", errors.New("schema documents are only served in document mode")
	}
	_, payload, err := p.fetch(ctx, u, h)
	if err != nil {
		return "", err
	}
	return payload.Document, nil
}

// Query executes req against exe, built for t.
func (p *Pipeline) Query(ctx context.Context, t target.Target, exe *builder.Executable, req QueryRequest) *executor.ExecutionResult {
	start := time.Now()
	eventbus.Publish(ctx, events.GraphQLStart{Graph: t.GraphID, Query: req.Query, OperationName: req.OperationName})
	res := Execute(ctx, exe, req)
	var errs []error
	for _, e := range res.Errors {
		errs = append(errs, e)
	}
	eventbus.Publish(ctx, events.GraphQLFinish{
		Graph:         t.GraphID,
		Query:         req.Query,
		OperationName: req.OperationName,
		Errors:        errs,
		Duration:      time.Since(start),
	})
	return res
}

func (p *Pipeline) fetch(ctx context.Context, u *url.URL, h http.Header) (target.Target, registry.Payload, error) {
	t, err := target.Resolve(u, h)
	if err != nil {
		return t, registry.Payload{}, err
	}
	payload, err := p.fetcher.Fetch(ctx, t)
	return t, payload, err
}
