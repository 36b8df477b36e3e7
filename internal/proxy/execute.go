package proxy

import (
	"context"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/hanpama/graphproxy/internal/builder"
	"github.com/hanpama/graphproxy/internal/executor"
	"github.com/hanpama/graphproxy/internal/language"
)

// QueryRequest is a decoded GraphQL-over-HTTP request body.
type QueryRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

// Execute validates req against exe and runs it. Parse and validation
// failures are reported in the result with no data; they are never
// returned as Go errors.
func Execute(ctx context.Context, exe *builder.Executable, req QueryRequest) *executor.ExecutionResult {
	doc, errs := language.LoadQuery(exe.AST, req.Query)
	if len(errs) > 0 {
		return &executor.ExecutionResult{Errors: fromGQLErrors(errs)}
	}
	return executor.New(exe.Runtime, exe.Schema, exe.AST).Execute(ctx, doc, req.OperationName, req.Variables)
}

func fromGQLErrors(list gqlerror.List) []executor.GraphQLError {
	out := make([]executor.GraphQLError, 0, len(list))
	for _, e := range list {
		ge := executor.GraphQLError{Message: e.Message, Extensions: e.Extensions}
		for _, loc := range e.Locations {
			ge.Locations = append(ge.Locations, executor.Location{Line: loc.Line, Column: loc.Column})
		}
		for _, p := range e.Path {
			switch el := p.(type) {
			case ast.PathName:
				ge.Path = append(ge.Path, string(el))
			case ast.PathIndex:
				ge.Path = append(ge.Path, int(el))
			}
		}
		out = append(out, ge)
	}
	return out
}
