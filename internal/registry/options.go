package registry

import (
	"net/http"
	"time"
)

// DefaultEndpoint is the public schema registry GraphQL endpoint.
const DefaultEndpoint = "https://engine-graphql.apollographql.com/api/graphql"

// HTTPDoer is the subset of *http.Client the fetcher needs.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Options configures the registry client.
//
// Defaults:
// - Endpoint: DefaultEndpoint
// - Mode:     ModeIntrospection
// - Doer:     http.DefaultClient
// - Timeout:  0 (the caller's context deadline applies)
type Options struct {
	Endpoint string
	Mode     Mode
	Doer     HTTPDoer
	Timeout  time.Duration
}

// Option mutates Options.
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		Endpoint: DefaultEndpoint,
		Mode:     ModeIntrospection,
		Doer:     http.DefaultClient,
	}
}

func WithEndpoint(url string) Option { return func(o *Options) { o.Endpoint = url } }
func WithMode(m Mode) Option { return func(o *Options) { o.Mode = m } }
func WithHTTPDoer(d HTTPDoer) Option { return func(o *Options) { o.Doer = d } }
func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }
