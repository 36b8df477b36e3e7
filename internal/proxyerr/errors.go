// Package proxyerr defines the failure taxonomy of the request pipeline.
//
// Every stage of the pipeline (target resolution, registry fetch, schema
// build, request decoding) reports failures as *Error values carrying a Kind.
// Query-level GraphQL errors are not represented here; they travel inside the
// execution result.
package proxyerr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a pipeline failure.
type Kind int

const (
	KindUnknown Kind = iota
	// KindConfiguration: required routing input (graph id, api key) is missing.
	KindConfiguration
	// KindUpstream: the registry transport returned a non-200 status or failed.
	KindUpstream
	// KindRegistry: the registry answered with GraphQL errors or no schema.
	KindRegistry
	// KindSchemaBuild: the payload could not be turned into an executable schema.
	KindSchemaBuild
	// KindRequest: the inbound request body could not be decoded.
	KindRequest
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "ConfigurationError"
	case KindUpstream:
		return "UpstreamError"
	case KindRegistry:
		return "RegistryError"
	case KindSchemaBuild:
		return "SchemaBuildError"
	case KindRequest:
		return "RequestError"
	default:
		return "Error"
	}
}

// Sentinels usable with errors.Is.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrUpstream      = errors.New("upstream error")
	ErrRegistry      = errors.New("registry error")
	ErrSchemaBuild   = errors.New("schema build error")
	ErrRequest       = errors.New("request error")
)

func (k Kind) sentinel() error {
	switch k {
	case KindConfiguration:
		return ErrConfiguration
	case KindUpstream:
		return ErrUpstream
	case KindRegistry:
		return ErrRegistry
	case KindSchemaBuild:
		return ErrSchemaBuild
	case KindRequest:
		return ErrRequest
	}
	return nil
}

// RegistryMessage is one entry of the registry's top-level "errors" array.
type RegistryMessage struct {
	Message string         `json:"message"`
	Path    []any          `json:"path,omitempty"`
	Ext     map[string]any `json:"extensions,omitempty"`
}

// Error is a pipeline failure.
type Error struct {
	Kind    Kind
	Message string

	// Status, StatusText and Body are set for KindUpstream.
	Status     int
	StatusText string
	Body       string

	// Errors holds the registry-reported errors for KindRegistry.
	Errors []RegistryMessage

	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches the kind sentinels so callers can write errors.Is(err, ErrRegistry).
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && s == target
}

// Configuration returns a KindConfiguration error.
func Configuration(msg string) *Error {
	return &Error{Kind: KindConfiguration, Message: msg}
}

// Upstream returns a KindUpstream error describing a non-200 registry response.
func Upstream(status int, statusText, body string) *Error {
	return &Error{
		Kind:       KindUpstream,
		Message:    fmt.Sprintf("registry HTTP request failed (%d %s, %q)", status, statusText, body),
		Status:     status,
		StatusText: statusText,
		Body:       body,
	}
}

// Registry returns a KindRegistry error.
func Registry(format string, args ...any) *Error {
	return &Error{Kind: KindRegistry, Message: fmt.Sprintf(format, args...)}
}

// RegistryErrors returns a KindRegistry error carrying the registry's error list.
func RegistryErrors(errs []RegistryMessage) *Error {
	msgs := make([]string, len(errs))
	for i, m := range errs {
		msgs[i] = m.Message
	}
	return &Error{
		Kind:    KindRegistry,
		Message: fmt.Sprintf("registry GraphQL errors (%s)", strings.Join(msgs, "; ")),
		Errors:  errs,
	}
}

// SchemaBuild returns a KindSchemaBuild error.
func SchemaBuild(msg string) *Error {
	return &Error{Kind: KindSchemaBuild, Message: msg}
}

// Wrap attaches cause to a new error of the given kind.
func Wrap(kind Kind, cause error, msg string) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// KindOf reports the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnknown
}

// Retryable reports whether a client may retry the request that produced err.
// Only transport-level registry failures are transient.
func Retryable(err error) bool {
	return KindOf(err) == KindUpstream
}

// Stack renders err as a diagnostic list: the outermost failure first, then
// each wrapped cause.
func Stack(err error) []string {
	if err == nil {
		return nil
	}
	var out []string
	first := true
	for cur := err; cur != nil; cur = errors.Unwrap(cur) {
		var line string
		if pe, ok := cur.(*Error); ok {
			line = pe.Kind.String() + ": " + pe.Message
		} else {
			line = cur.Error()
		}
		if !first {
			line = "caused by: " + line
		}
		out = append(out, line)
		first = false
	}
	return out
}
