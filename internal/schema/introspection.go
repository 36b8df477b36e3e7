package schema

import (
	"fmt"
)

// IntrospectionSchema is the "__schema" object of a standard introspection
// result, as delivered by the schema registry.
type IntrospectionSchema struct {
	Description      *string                  `json:"description,omitempty"`
	QueryType        *IntrospectionNamedRef   `json:"queryType"`
	MutationType     *IntrospectionNamedRef   `json:"mutationType"`
	SubscriptionType *IntrospectionNamedRef   `json:"subscriptionType"`
	Types            []IntrospectionType      `json:"types"`
	Directives       []IntrospectionDirective `json:"directives"`
}

type IntrospectionNamedRef struct {
	Name string `json:"name"`
}

type IntrospectionType struct {
	Kind           string                    `json:"kind"`
	Name           string                    `json:"name"`
	Description    *string                   `json:"description,omitempty"`
	Fields         []IntrospectionField      `json:"fields"`
	InputFields    []IntrospectionInputValue `json:"inputFields"`
	Interfaces     []IntrospectionTypeRef    `json:"interfaces"`
	EnumValues     []IntrospectionEnumValue  `json:"enumValues"`
	PossibleTypes  []IntrospectionTypeRef    `json:"possibleTypes"`
	SpecifiedByURL *string                   `json:"specifiedByURL,omitempty"`
	IsOneOf        *bool                     `json:"isOneOf,omitempty"`
}

type IntrospectionField struct {
	Name              string                    `json:"name"`
	Description       *string                   `json:"description,omitempty"`
	Args              []IntrospectionInputValue `json:"args"`
	Type              *IntrospectionTypeRef     `json:"type"`
	IsDeprecated      bool                      `json:"isDeprecated"`
	DeprecationReason *string                   `json:"deprecationReason"`
}

type IntrospectionInputValue struct {
	Name              string                `json:"name"`
	Description       *string               `json:"description,omitempty"`
	Type              *IntrospectionTypeRef `json:"type"`
	DefaultValue      *string               `json:"defaultValue"`
	IsDeprecated      bool                  `json:"isDeprecated,omitempty"`
	DeprecationReason *string               `json:"deprecationReason,omitempty"`
}

type IntrospectionEnumValue struct {
	Name              string  `json:"name"`
	Description       *string `json:"description,omitempty"`
	IsDeprecated      bool    `json:"isDeprecated"`
	DeprecationReason *string `json:"deprecationReason"`
}

type IntrospectionDirective struct {
	Name         string                    `json:"name"`
	Description  *string                   `json:"description,omitempty"`
	Locations    []string                  `json:"locations"`
	Args         []IntrospectionInputValue `json:"args"`
	IsRepeatable bool                      `json:"isRepeatable,omitempty"`
}

// IntrospectionTypeRef is a possibly wrapped type reference. The registry
// reports at most eight levels (the reference plus seven ofType hops).
type IntrospectionTypeRef struct {
	Kind   string                `json:"kind"`
	Name   *string               `json:"name"`
	OfType *IntrospectionTypeRef `json:"ofType"`
}

// FromIntrospection converts an introspection result into a Schema.
// Introspection-only types (names starting with "__") are skipped; the
// introspection layer provides its own.
func FromIntrospection(in *IntrospectionSchema) (*Schema, error) {
	if in == nil {
		return nil, fmt.Errorf("introspection result is empty")
	}
	if in.QueryType == nil || in.QueryType.Name == "" {
		return nil, fmt.Errorf("introspection result has no query type")
	}
	s := NewSchema(deref(in.Description))
	s.SetQueryType(in.QueryType.Name)
	if in.MutationType != nil {
		s.SetMutationType(in.MutationType.Name)
	}
	if in.SubscriptionType != nil {
		s.SetSubscriptionType(in.SubscriptionType.Name)
	}

	for i := range in.Types {
		it := &in.Types[i]
		if it.Name == "" {
			return nil, fmt.Errorf("introspection type #%d has no name", i)
		}
		if IsIntrospectionName(it.Name) {
			continue
		}
		t, err := typeFromIntrospection(it)
		if err != nil {
			return nil, fmt.Errorf("type %s: %w", it.Name, err)
		}
		s.AddType(t)
	}
	if s.GetQueryType() == nil {
		return nil, fmt.Errorf("query type %s is not defined", s.QueryType)
	}

	for i := range in.Directives {
		d, err := directiveFromIntrospection(&in.Directives[i])
		if err != nil {
			return nil, fmt.Errorf("directive @%s: %w", in.Directives[i].Name, err)
		}
		s.AddDirective(d)
	}
	addBuiltins(s)
	return s, nil
}

func typeFromIntrospection(it *IntrospectionType) (*Type, error) {
	kind := TypeKind(it.Kind)
	switch kind {
	case TypeKindScalar, TypeKindObject, TypeKindInterface, TypeKindUnion, TypeKindEnum, TypeKindInputObject:
	default:
		return nil, fmt.Errorf("unknown kind %q", it.Kind)
	}
	t := NewType(it.Name, kind, deref(it.Description))
	if it.SpecifiedByURL != nil {
		t.SetSpecifiedByURL(*it.SpecifiedByURL)
	}
	if it.IsOneOf != nil {
		t.SetOneOf(*it.IsOneOf)
	}

	for i := range it.Fields {
		f, err := fieldFromIntrospection(&it.Fields[i])
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", it.Fields[i].Name, err)
		}
		t.AddField(f)
	}
	for i := range it.InputFields {
		v, err := inputValueFromIntrospection(&it.InputFields[i])
		if err != nil {
			return nil, fmt.Errorf("input field %s: %w", it.InputFields[i].Name, err)
		}
		t.AddInputField(v)
	}
	for _, ref := range it.Interfaces {
		if ref.Name == nil || *ref.Name == "" {
			return nil, fmt.Errorf("interface reference without a name")
		}
		t.AddInterface(*ref.Name)
	}
	for _, ref := range it.PossibleTypes {
		if ref.Name == nil || *ref.Name == "" {
			return nil, fmt.Errorf("possible type reference without a name")
		}
		t.AddPossibleType(*ref.Name)
	}
	for _, ev := range it.EnumValues {
		v := NewEnumValue(ev.Name, deref(ev.Description))
		if ev.IsDeprecated {
			v.Deprecate(deref(ev.DeprecationReason))
		}
		t.AddEnumValue(v)
	}
	return t, nil
}

func fieldFromIntrospection(in *IntrospectionField) (*Field, error) {
	ref, err := typeRefFromIntrospection(in.Type)
	if err != nil {
		return nil, err
	}
	f := NewField(in.Name, deref(in.Description), ref)
	if in.IsDeprecated {
		f.Deprecate(deref(in.DeprecationReason))
	}
	for i := range in.Args {
		a, err := inputValueFromIntrospection(&in.Args[i])
		if err != nil {
			return nil, fmt.Errorf("argument %s: %w", in.Args[i].Name, err)
		}
		f.AddArgument(a)
	}
	return f, nil
}

func inputValueFromIntrospection(in *IntrospectionInputValue) (*InputValue, error) {
	ref, err := typeRefFromIntrospection(in.Type)
	if err != nil {
		return nil, err
	}
	v := NewInputValue(in.Name, deref(in.Description), ref)
	if in.DefaultValue != nil {
		v.SetDefaultLiteral(*in.DefaultValue)
	}
	if in.IsDeprecated {
		v.Deprecate(deref(in.DeprecationReason))
	}
	return v, nil
}

func directiveFromIntrospection(in *IntrospectionDirective) (*Directive, error) {
	if in.Name == "" {
		return nil, fmt.Errorf("directive without a name")
	}
	d := NewDirective(in.Name, deref(in.Description)).SetRepeatable(in.IsRepeatable)
	for _, loc := range in.Locations {
		d.AddLocation(loc)
	}
	for i := range in.Args {
		a, err := inputValueFromIntrospection(&in.Args[i])
		if err != nil {
			return nil, fmt.Errorf("argument %s: %w", in.Args[i].Name, err)
		}
		d.AddArgument(a)
	}
	return d, nil
}

func typeRefFromIntrospection(ref *IntrospectionTypeRef) (*TypeRef, error) {
	if ref == nil {
		return nil, fmt.Errorf("missing type reference")
	}
	switch ref.Kind {
	case "LIST", "NON_NULL":
		if ref.OfType == nil {
			return nil, fmt.Errorf("%s reference is missing ofType (nesting too deep?)", ref.Kind)
		}
		inner, err := typeRefFromIntrospection(ref.OfType)
		if err != nil {
			return nil, err
		}
		if ref.Kind == "LIST" {
			return ListType(inner), nil
		}
		if inner.Kind == TypeRefKindNonNull {
			return nil, fmt.Errorf("NON_NULL cannot wrap NON_NULL")
		}
		return NonNullType(inner), nil
	default:
		if ref.Name == nil || *ref.Name == "" {
			return nil, fmt.Errorf("named %s reference without a name", ref.Kind)
		}
		return NamedType(*ref.Name), nil
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
