package executor

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"strconv"
)

// Runtime supplies the values the executor shapes into a response.
// Implementations must be safe for concurrent use; one Runtime serves every
// request built on the same schema.
type Runtime interface {
	// Resolve returns the raw value of field on an object of type parent.
	// source is the parent's value and is nil for root fields. args holds
	// the coerced arguments, defaults included.
	Resolve(ctx context.Context, parent, field string, source any, args map[string]any) (any, error)

	// ResolveType names the object type of value, found where the interface
	// or union abstract is expected.
	ResolveType(ctx context.Context, abstract string, value any) (string, error)

	// Serialize converts a scalar or enum value for the response.
	Serialize(ctx context.Context, typ string, value any) (any, error)
}

// DefaultRuntime answers fields without resolvers: a field on a map value is
// the entry under the field name, anything else is null. Abstract values
// name their type in a "__typename" entry.
type DefaultRuntime struct{}

var _ Runtime = DefaultRuntime{}

func (DefaultRuntime) Resolve(_ context.Context, _, field string, source any, _ map[string]any) (any, error) {
	if m, ok := source.(map[string]any); ok {
		return m[field], nil
	}
	return nil, nil
}

func (DefaultRuntime) ResolveType(_ context.Context, abstract string, value any) (string, error) {
	if m, ok := value.(map[string]any); ok {
		if name, ok := m["__typename"].(string); ok && name != "" {
			return name, nil
		}
	}
	return "", fmt.Errorf("cannot determine the object type of a %s value", abstract)
}

func (DefaultRuntime) Serialize(_ context.Context, typ string, value any) (any, error) {
	value = deref(value)
	if value == nil {
		return nil, nil
	}
	switch typ {
	case "Int":
		return serializeInt(value)
	case "Float":
		return serializeFloat(value)
	case "String":
		if s, ok := stringKind(value); ok {
			return s, nil
		}
	case "Boolean":
		if b, ok := value.(bool); ok {
			return b, nil
		}
	case "ID":
		return serializeID(value)
	default:
		// enums and custom scalars
		if s, ok := stringKind(value); ok {
			return s, nil
		}
		return value, nil
	}
	return nil, fmt.Errorf("%s cannot represent %v (%T)", typ, value, value)
}

func serializeInt(v any) (any, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if n := rv.Int(); n >= math.MinInt32 && n <= math.MaxInt32 {
			return int(n), nil
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if n := rv.Uint(); n <= math.MaxInt32 {
			return int(n), nil
		}
	case reflect.Float32, reflect.Float64:
		if f := rv.Float(); f == math.Trunc(f) && f >= math.MinInt32 && f <= math.MaxInt32 {
			return int(f), nil
		}
	}
	return nil, fmt.Errorf("Int cannot represent %v (%T)", v, v)
}

func serializeFloat(v any) (any, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		if f := rv.Float(); !math.IsInf(f, 0) && !math.IsNaN(f) {
			return f, nil
		}
	}
	return nil, fmt.Errorf("Float cannot represent %v (%T)", v, v)
}

func serializeID(v any) (any, error) {
	if s, ok := stringKind(v); ok {
		return s, nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32, reflect.Float64:
		if f := rv.Float(); f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return strconv.FormatInt(int64(f), 10), nil
		}
	}
	return nil, fmt.Errorf("ID cannot represent %v (%T)", v, v)
}

func stringKind(v any) (string, bool) {
	if s, ok := v.(string); ok {
		return s, true
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.String {
		return rv.String(), true
	}
	return "", false
}

// deref follows pointers; nil pointers become nil.
func deref(v any) any {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil
	}
	return rv.Interface()
}

// isNull reports untyped nil and nil pointers, maps, slices and interfaces.
func isNull(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
