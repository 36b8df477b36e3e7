// Package builder turns a registry payload into an executable schema.
package builder

import (
	"context"
	"strings"
	"time"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/hanpama/graphproxy/internal/eventbus"
	"github.com/hanpama/graphproxy/internal/events"
	"github.com/hanpama/graphproxy/internal/executor"
	"github.com/hanpama/graphproxy/internal/introspection"
	"github.com/hanpama/graphproxy/internal/proxyerr"
	"github.com/hanpama/graphproxy/internal/registry"
	"github.com/hanpama/graphproxy/internal/schema"
)

// Executable is a schema ready to run queries against. It is built for one
// request and discarded afterwards.
type Executable struct {
	// Schema is the executor's model, introspection types included.
	Schema *schema.Schema
	// AST is the validated gqlparser schema used to validate queries.
	AST     *ast.Schema
	Runtime executor.Runtime
}

// Build validates p and constructs its executable schema.
func Build(ctx context.Context, p registry.Payload) (exe *Executable, err error) {
	start := time.Now()
	defer func() {
		finish := events.SchemaBuildFinish{Mode: p.Mode.String(), Err: err, Duration: time.Since(start)}
		if exe != nil {
			finish.Types = len(exe.Schema.Types)
		}
		eventbus.Publish(ctx, finish)
	}()

	var src *ast.Schema
	switch p.Mode {
	case registry.ModeDocument:
		src, err = fromDocument(p.Document)
	default:
		src, err = fromIntrospection(p.Introspection)
	}
	if err != nil {
		return nil, err
	}

	sch, err := schema.FromAST(src)
	if err != nil {
		return nil, proxyerr.Wrap(proxyerr.KindSchemaBuild, err, "convert schema")
	}
	return &Executable{
		Schema:  sch,
		AST:     src,
		Runtime: introspection.Wrap(executor.DefaultRuntime{}, sch),
	}, nil
}

func fromDocument(doc string) (*ast.Schema, error) {
	if strings.TrimSpace(doc) == "" {
		return nil, proxyerr.SchemaBuild("schema document is empty")
	}
	src, err := schema.Load("schema.graphql", doc)
	if err != nil {
		return nil, proxyerr.Wrap(proxyerr.KindSchemaBuild, err, "invalid schema document")
	}
	return src, nil
}

// fromIntrospection renders the introspection result as SDL and loads it, so
// both modes pass the same structural validation.
func fromIntrospection(in *schema.IntrospectionSchema) (*ast.Schema, error) {
	if in == nil || len(in.Types) == 0 {
		return nil, proxyerr.SchemaBuild("introspection payload is empty")
	}
	sch, err := schema.FromIntrospection(in)
	if err != nil {
		return nil, proxyerr.Wrap(proxyerr.KindSchemaBuild, err, "invalid introspection payload")
	}
	src, err := schema.Load("introspection.graphql", schema.Render(sch))
	if err != nil {
		return nil, proxyerr.Wrap(proxyerr.KindSchemaBuild, err, "introspection payload does not describe a valid schema")
	}
	return src, nil
}

// SDL returns the schema text a payload describes without building it.
func SDL(p registry.Payload) (string, error) {
	if p.Mode == registry.ModeDocument {
		if strings.TrimSpace(p.Document) == "" {
			return "", proxyerr.SchemaBuild("schema document is empty")
		}
		return p.Document, nil
	}
	if p.Introspection == nil || len(p.Introspection.Types) == 0 {
		return "", proxyerr.SchemaBuild("introspection payload is empty")
	}
	sch, err := schema.FromIntrospection(p.Introspection)
	if err != nil {
		return "", proxyerr.Wrap(proxyerr.KindSchemaBuild, err, "invalid introspection payload")
	}
	return schema.Render(sch), nil
}
