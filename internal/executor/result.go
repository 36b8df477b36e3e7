package executor

import (
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Location is a 1-based line/column position in the query document.
type Location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Path addresses a value in the response: response keys are strings, list
// indices are ints.
type Path []any

func (p Path) with(elem any) Path {
	out := make(Path, len(p)+1)
	copy(out, p)
	out[len(p)] = elem
	return out
}

// GraphQLError is a request or field error as it appears in the response.
type GraphQLError struct {
	Message    string         `json:"message"`
	Locations  []Location     `json:"locations,omitempty"`
	Path       Path           `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

func (e GraphQLError) Error() string { return e.Message }

// Entry is one response key of an Object.
type Entry struct {
	Key   string
	Value any
}

// Object is a response object. Keys stay in the order they were selected.
type Object []Entry

func (o Object) MarshalJSON() ([]byte, error) {
	return marshal(func(s *jsoniter.Stream) { encodeValue(s, o) })
}

// ExecutionResult is the outcome of one operation.
type ExecutionResult struct {
	Data   Object
	Errors []GraphQLError
	// Executed is set once field execution started. Data is only written
	// when it is; a nil Data is then encoded as null.
	Executed bool
}

func (r *ExecutionResult) MarshalJSON() ([]byte, error) {
	return marshal(r.Encode)
}

// Encode writes r to s using the stream's indentation settings.
func (r *ExecutionResult) Encode(s *jsoniter.Stream) {
	s.WriteObjectStart()
	if len(r.Errors) > 0 {
		s.WriteObjectField("errors")
		s.WriteVal(r.Errors)
		if r.Executed {
			s.WriteMore()
		}
	}
	if r.Executed {
		s.WriteObjectField("data")
		if r.Data == nil {
			s.WriteNil()
		} else {
			encodeValue(s, r.Data)
		}
	}
	s.WriteObjectEnd()
}

func encodeValue(s *jsoniter.Stream, v any) {
	switch v := v.(type) {
	case Object:
		if len(v) == 0 {
			s.WriteEmptyObject()
			return
		}
		s.WriteObjectStart()
		for i, e := range v {
			if i > 0 {
				s.WriteMore()
			}
			s.WriteObjectField(e.Key)
			encodeValue(s, e.Value)
		}
		s.WriteObjectEnd()
	case []any:
		if len(v) == 0 {
			s.WriteEmptyArray()
			return
		}
		s.WriteArrayStart()
		for i, item := range v {
			if i > 0 {
				s.WriteMore()
			}
			encodeValue(s, item)
		}
		s.WriteArrayEnd()
	default:
		s.WriteVal(v)
	}
}

func marshal(write func(*jsoniter.Stream)) ([]byte, error) {
	s := json.BorrowStream(nil)
	defer json.ReturnStream(s)
	write(s)
	if s.Error != nil {
		return nil, s.Error
	}
	return append([]byte(nil), s.Buffer()...), nil
}
