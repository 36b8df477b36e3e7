package executor

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/validator"

	"github.com/hanpama/graphproxy/internal/language"
	"github.com/hanpama/graphproxy/internal/schema"
)

// Meta fields every query type answers without declaring them.
var (
	schemaMetaField = schema.NewField("__schema", "", schema.NonNullType(schema.NamedType("__Schema")))
	typeMetaField   = schema.NewField("__type", "", schema.NamedType("__Type"))
)

// Executor runs operations against one schema.
type Executor struct {
	runtime Runtime
	schema  *schema.Schema
	source  *ast.Schema
}

// New returns an Executor for sch. source is the gqlparser schema sch was
// built from; documents are validated and variables coerced against it.
func New(rt Runtime, sch *schema.Schema, source *ast.Schema) *Executor {
	return &Executor{runtime: rt, schema: sch, source: source}
}

// Execute runs the operation of doc named operationName, or its only
// operation when the name is empty. doc must be validated against the
// executor's schema. Failures before execution starts are reported as
// errors with no data.
func (e *Executor) Execute(ctx context.Context, doc *language.QueryDocument, operationName string, variables map[string]any) *ExecutionResult {
	op, err := selectOperation(doc, operationName)
	if err != nil {
		return requestError(err.Error())
	}
	vars, err := validator.VariableValues(e.source, op, variables)
	if err != nil {
		return requestError(variableMessage(err))
	}
	root := e.rootType(op.Operation)
	if root == nil {
		return requestError(fmt.Sprintf("Schema is not configured for %s operations.", op.Operation))
	}

	x := &execution{ctx: ctx, runtime: e.runtime, schema: e.schema, doc: doc, vars: vars}
	data := x.selectionSet(root, op.SelectionSet, nil, nil)
	return &ExecutionResult{Data: data, Errors: x.errors, Executed: true}
}

func (e *Executor) rootType(op language.Operation) *schema.Type {
	switch op {
	case language.Query:
		return e.schema.GetQueryType()
	case language.Mutation:
		return e.schema.GetMutationType()
	case language.Subscription:
		return e.schema.GetSubscriptionType()
	}
	return nil
}

func selectOperation(doc *language.QueryDocument, name string) (*language.OperationDefinition, error) {
	if name != "" {
		if op := doc.Operations.ForName(name); op != nil {
			return op, nil
		}
		return nil, fmt.Errorf("Unknown operation named %q.", name)
	}
	switch len(doc.Operations) {
	case 0:
		return nil, errors.New("Must provide an operation.")
	case 1:
		return doc.Operations[0], nil
	}
	return nil, errors.New("Must provide operation name if query contains multiple operations.")
}

func variableMessage(err error) string {
	var gerr *gqlerror.Error
	if !errors.As(err, &gerr) || len(gerr.Path) < 2 {
		return err.Error()
	}
	// paths read variable.<name>[.<field or index>...]
	msg := fmt.Sprintf("Variable \"$%s\"", gerr.Path[1])
	if len(gerr.Path) > 2 {
		msg += " at " + gerr.Path[2:].String()
	}
	return msg + " " + gerr.Message + "."
}

func requestError(msg string) *ExecutionResult {
	return &ExecutionResult{Errors: []GraphQLError{{Message: msg}}}
}

// execution is the state of one running operation.
type execution struct {
	ctx     context.Context
	runtime Runtime
	schema  *schema.Schema
	doc     *language.QueryDocument
	vars    map[string]any
	errors  []GraphQLError
}

// selectionSet runs set against an object of type parent whose value is
// source. It returns nil when a non-null field failed, which nulls the
// object itself.
func (x *execution) selectionSet(parent *schema.Type, set language.SelectionSet, source any, path Path) Object {
	groups := x.collect(parent, set)
	out := make(Object, 0, len(groups))
	for _, g := range groups {
		value, nonNull := x.field(parent, g, source, path.with(g.key))
		if value == nil && nonNull {
			return nil
		}
		out = append(out, Entry{Key: g.key, Value: value})
	}
	return out
}

// field resolves and completes one response key. nonNull reports whether
// the field's type is Non-Null, in which case a nil value must propagate.
func (x *execution) field(parent *schema.Type, g *fieldGroup, source any, path Path) (value any, nonNull bool) {
	node := g.nodes[0]
	if node.Name == "__typename" {
		return parent.Name, true
	}
	def := x.fieldDef(parent, node.Name)
	if def == nil {
		x.fail(fmt.Sprintf("Cannot query field %q on type %q.", node.Name, parent.Name), g.nodes, path)
		return nil, false
	}
	nonNull = def.Type.IsNonNull()

	var args map[string]any
	if node.Definition != nil {
		args = node.ArgumentMap(x.vars)
	}
	raw, err := x.runtime.Resolve(x.ctx, parent.Name, node.Name, source, args)
	if err != nil {
		x.fail(err.Error(), g.nodes, path)
		return nil, nonNull
	}
	value, _ = x.complete(site{parent: parent.Name, nodes: g.nodes}, def.Type, raw, path)
	return value, nonNull
}

func (x *execution) fieldDef(parent *schema.Type, name string) *schema.Field {
	if parent.Name == x.schema.QueryType {
		switch name {
		case schemaMetaField.Name:
			return schemaMetaField
		case typeMetaField.Name:
			return typeMetaField
		}
	}
	return parent.Field(name)
}

// site identifies the field a value is completed for.
type site struct {
	parent string
	nodes  []*language.Field
}

func (s site) String() string { return s.parent + "." + s.nodes[0].Name }

// complete shapes value by t. failed reports that the result is null
// because an error was already recorded at or below path.
func (x *execution) complete(at site, t *schema.TypeRef, value any, path Path) (result any, failed bool) {
	if t.Kind == schema.TypeRefKindNonNull {
		result, failed = x.complete(at, t.OfType, value, path)
		if result == nil && !failed {
			x.fail(fmt.Sprintf("Cannot return null for non-nullable field %s.", at), at.nodes, path)
		}
		return result, result == nil
	}
	if isNull(value) {
		return nil, false
	}
	if t.Kind == schema.TypeRefKindList {
		return x.completeList(at, t.OfType, value, path)
	}

	def := x.schema.Types[t.Named]
	if def == nil {
		x.fail(fmt.Sprintf("Unknown type %q for field %s.", t.Named, at), at.nodes, path)
		return nil, true
	}
	switch def.Kind {
	case schema.TypeKindScalar, schema.TypeKindEnum:
		v, err := x.runtime.Serialize(x.ctx, def.Name, value)
		if err != nil {
			x.fail(err.Error(), at.nodes, path)
			return nil, true
		}
		return v, false
	case schema.TypeKindObject:
		return x.completeObject(at, def, value, path)
	case schema.TypeKindInterface, schema.TypeKindUnion:
		name, err := x.runtime.ResolveType(x.ctx, def.Name, value)
		if err != nil {
			x.fail(err.Error(), at.nodes, path)
			return nil, true
		}
		obj := x.schema.Types[name]
		if obj == nil || obj.Kind != schema.TypeKindObject || !x.schema.IsPossibleType(def.Name, name) {
			x.fail(fmt.Sprintf("Abstract type %q must resolve to an object type at runtime for field %s. Got %q.", def.Name, at, name), at.nodes, path)
			return nil, true
		}
		return x.completeObject(at, obj, value, path)
	}
	x.fail(fmt.Sprintf("Field %s has output type %s of kind %s.", at, def.Name, def.Kind), at.nodes, path)
	return nil, true
}

func (x *execution) completeList(at site, item *schema.TypeRef, value any, path Path) (any, bool) {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		x.fail(fmt.Sprintf("Expected a list for field %s, got %T.", at, value), at.nodes, path)
		return nil, true
	}
	out := make([]any, rv.Len())
	for i := range out {
		v, _ := x.complete(at, item, rv.Index(i).Interface(), path.with(i))
		if v == nil && item.IsNonNull() {
			return nil, true
		}
		out[i] = v
	}
	return out, false
}

func (x *execution) completeObject(at site, def *schema.Type, value any, path Path) (any, bool) {
	var set language.SelectionSet
	for _, n := range at.nodes {
		set = append(set, n.SelectionSet...)
	}
	obj := x.selectionSet(def, set, value, path)
	if obj == nil {
		return nil, true
	}
	return obj, false
}

func (x *execution) fail(msg string, nodes []*language.Field, path Path) {
	e := GraphQLError{Message: msg, Path: path}
	if len(nodes) > 0 && nodes[0].Position != nil {
		e.Locations = []Location{{Line: nodes[0].Position.Line, Column: nodes[0].Position.Column}}
	}
	x.errors = append(x.errors, e)
}
