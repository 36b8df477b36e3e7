// Package introspection answers the __schema and __type meta fields and
// every field selected below them.
package introspection

import (
	"context"
	"sort"

	"github.com/hanpama/graphproxy/internal/executor"
	"github.com/hanpama/graphproxy/internal/schema"
)

// Wrap returns a Runtime that serves introspection of sch and hands every
// other field to base. sch must carry the introspection types.
func Wrap(base executor.Runtime, sch *schema.Schema) executor.Runtime {
	return &runtime{Runtime: base, schema: sch}
}

type runtime struct {
	executor.Runtime
	schema *schema.Schema
}

// object is implemented by the values introspection fields resolve to.
type object interface {
	field(name string, args map[string]any) any
}

func (r *runtime) Resolve(ctx context.Context, parent, field string, source any, args map[string]any) (any, error) {
	if source == nil && parent == r.schema.QueryType {
		switch field {
		case "__schema":
			return schemaObject{r.schema}, nil
		case "__type":
			name, _ := args["name"].(string)
			if def := r.schema.Types[name]; def != nil {
				return typeObject{s: r.schema, def: def}, nil
			}
			return nil, nil
		}
	}
	if obj, ok := source.(object); ok {
		return obj.field(field, args), nil
	}
	return r.Runtime.Resolve(ctx, parent, field, source, args)
}

type schemaObject struct{ s *schema.Schema }

func (o schemaObject) field(name string, _ map[string]any) any {
	switch name {
	case "description":
		return optional(o.s.Description)
	case "types":
		names := make([]string, 0, len(o.s.Types))
		for n := range o.s.Types {
			names = append(names, n)
		}
		return o.types(names)
	case "queryType":
		return o.named(o.s.QueryType)
	case "mutationType":
		return o.named(o.s.MutationType)
	case "subscriptionType":
		return o.named(o.s.SubscriptionType)
	case "directives":
		names := make([]string, 0, len(o.s.Directives))
		for n := range o.s.Directives {
			names = append(names, n)
		}
		sort.Strings(names)
		out := make([]any, 0, len(names))
		for _, n := range names {
			out = append(out, directiveObject{o.s, o.s.Directives[n]})
		}
		return out
	}
	return nil
}

// named returns the __Type of a named type, or nil when it is not defined.
func (o schemaObject) named(name string) any {
	if def := o.s.Types[name]; def != nil {
		return typeObject{s: o.s, def: def}
	}
	return nil
}

// types returns the named types sorted by name, skipping undefined ones.
func (o schemaObject) types(names []string) []any {
	sort.Strings(names)
	out := make([]any, 0, len(names))
	for _, n := range names {
		if t := o.named(n); t != nil {
			out = append(out, t)
		}
	}
	return out
}

// typeObject is a __Type. Wrapping types (LIST, NON_NULL) carry ref and
// leave def nil.
type typeObject struct {
	s   *schema.Schema
	ref *schema.TypeRef
	def *schema.Type
}

// refObject returns the __Type for a type reference.
func refObject(s *schema.Schema, ref *schema.TypeRef) any {
	if ref == nil {
		return nil
	}
	if ref.Kind != schema.TypeRefKindNamed {
		return typeObject{s: s, ref: ref}
	}
	return schemaObject{s}.named(ref.Named)
}

func (o typeObject) field(name string, args map[string]any) any {
	if o.def == nil {
		switch name {
		case "kind":
			return string(o.ref.Kind)
		case "ofType":
			return refObject(o.s, o.ref.OfType)
		}
		return nil
	}

	t := o.def
	switch name {
	case "kind":
		return string(t.Kind)
	case "name":
		return t.Name
	case "description":
		return optional(t.Description)
	case "specifiedByURL":
		return t.SpecifiedByURL
	case "isOneOf":
		if t.Kind == schema.TypeKindInputObject {
			return t.OneOf
		}
	case "fields":
		if t.Kind != schema.TypeKindObject && t.Kind != schema.TypeKindInterface {
			return nil
		}
		out := []any{}
		for _, f := range t.Fields {
			if keep(args, f.IsDeprecated) && !schema.IsIntrospectionName(f.Name) {
				out = append(out, fieldObject{o.s, f})
			}
		}
		return out
	case "interfaces":
		if t.Kind != schema.TypeKindObject && t.Kind != schema.TypeKindInterface {
			return nil
		}
		out := []any{}
		for _, n := range t.Interfaces {
			if i := (schemaObject{o.s}).named(n); i != nil {
				out = append(out, i)
			}
		}
		return out
	case "possibleTypes":
		if t.Kind != schema.TypeKindInterface && t.Kind != schema.TypeKindUnion {
			return nil
		}
		return schemaObject{o.s}.types(append([]string(nil), t.PossibleTypes...))
	case "enumValues":
		if t.Kind != schema.TypeKindEnum {
			return nil
		}
		out := []any{}
		for _, v := range t.EnumValues {
			if keep(args, v.IsDeprecated) {
				out = append(out, enumValueObject{v})
			}
		}
		return out
	case "inputFields":
		if t.Kind != schema.TypeKindInputObject {
			return nil
		}
		return inputValues(o.s, t.InputFields, args)
	}
	return nil
}

type fieldObject struct {
	s *schema.Schema
	f *schema.Field
}

func (o fieldObject) field(name string, args map[string]any) any {
	switch name {
	case "name":
		return o.f.Name
	case "description":
		return optional(o.f.Description)
	case "args":
		return inputValues(o.s, o.f.Arguments, args)
	case "type":
		return refObject(o.s, o.f.Type)
	case "isDeprecated":
		return o.f.IsDeprecated
	case "deprecationReason":
		return reason(o.f.IsDeprecated, o.f.DeprecationReason)
	}
	return nil
}

type inputValueObject struct {
	s *schema.Schema
	v *schema.InputValue
}

func inputValues(s *schema.Schema, in []*schema.InputValue, args map[string]any) []any {
	out := []any{}
	for _, v := range in {
		if keep(args, v.IsDeprecated) {
			out = append(out, inputValueObject{s, v})
		}
	}
	return out
}

func (o inputValueObject) field(name string, _ map[string]any) any {
	switch name {
	case "name":
		return o.v.Name
	case "description":
		return optional(o.v.Description)
	case "type":
		return refObject(o.s, o.v.Type)
	case "defaultValue":
		if o.v.HasDefault() {
			return o.v.DefaultSource()
		}
	case "isDeprecated":
		return o.v.IsDeprecated
	case "deprecationReason":
		return reason(o.v.IsDeprecated, o.v.DeprecationReason)
	}
	return nil
}

type enumValueObject struct{ v *schema.EnumValue }

func (o enumValueObject) field(name string, _ map[string]any) any {
	switch name {
	case "name":
		return o.v.Name
	case "description":
		return optional(o.v.Description)
	case "isDeprecated":
		return o.v.IsDeprecated
	case "deprecationReason":
		return reason(o.v.IsDeprecated, o.v.DeprecationReason)
	}
	return nil
}

type directiveObject struct {
	s *schema.Schema
	d *schema.Directive
}

func (o directiveObject) field(name string, args map[string]any) any {
	switch name {
	case "name":
		return o.d.Name
	case "description":
		return optional(o.d.Description)
	case "isRepeatable":
		return o.d.IsRepeatable
	case "locations":
		out := make([]any, len(o.d.Locations))
		for i, l := range o.d.Locations {
			out[i] = l
		}
		return out
	case "args":
		return inputValues(o.s, o.d.Arguments, args)
	}
	return nil
}

// keep applies the includeDeprecated argument, false by default.
func keep(args map[string]any, deprecated bool) bool {
	include, _ := args["includeDeprecated"].(bool)
	return include || !deprecated
}

func optional(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func reason(deprecated bool, r string) any {
	if deprecated {
		return r
	}
	return nil
}
