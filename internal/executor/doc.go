// Package executor runs validated GraphQL operations against a schema whose
// fields have no backing data.
//
// Execution is synchronous and depth-first. Every field is handed to a
// Runtime, which supplies the raw value; the executor then shapes that value
// by the field's type:
//
//   - Non-Null: a null result is recorded as an error and the null moves up
//     to the nearest nullable parent. When that parent is the operation
//     itself, the whole data object becomes null.
//   - List: each item is completed on its own, with its index in the path.
//   - Scalar and Enum: Runtime.Serialize converts the value for the response.
//   - Interface and Union: Runtime.ResolveType names the concrete object type.
//   - Object: the merged sub-selections run against the object's value.
//
// The proxy runs with DefaultRuntime, which projects fields out of map
// values and answers null otherwise. Root fields have no source value, so
// a proxied query returns null for every field that introspection and
// __typename do not answer.
//
// Documents must already be validated by gqlparser against the same schema:
// argument and directive values are read through the definitions the
// validator attached to the AST, and variables are coerced with
// validator.VariableValues.
//
// Results are ordered. Object keeps response keys in selection order and
// ExecutionResult encodes itself with jsoniter, writing "errors" before
// "data" and "data": null when execution started but a non-null root field
// failed.
package executor
