// Package target resolves which graph schema a request addresses.
package target

import (
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/hanpama/graphproxy/internal/proxyerr"
)

// DefaultVariant is used when a request names neither a variant nor a hash.
const DefaultVariant = "current"

// APIKeyHeader carries the registry credential.
const APIKeyHeader = "X-API-Key"

var hashPattern = regexp.MustCompile(`^[0-9a-f]{128}$`)

// Target identifies one schema in the registry plus the credential to read it.
// Empty Variant or Hash means unset.
type Target struct {
	GraphID string
	Variant string
	Hash    string
	APIKey  string
}

// Specifier returns the hash if set, otherwise the variant.
func (t Target) Specifier() string {
	if t.Hash != "" {
		return t.Hash
	}
	return t.Variant
}

// IsHash reports whether s is a schema content hash.
func IsHash(s string) bool { return hashPattern.MatchString(s) }

// Resolve derives a Target from the request URL and headers.
//
// Path segments take precedence over query parameters: /<graph>[/<variant-or-hash>].
// h may be nil when the transport exposes no headers.
func Resolve(u *url.URL, h http.Header) (Target, error) {
	var t Target
	q := u.Query()

	segments := strings.Split(u.Path, "/")
	var specifier string
	if len(segments) > 1 {
		t.GraphID = segments[1]
	}
	if len(segments) > 2 {
		specifier = segments[2]
	}

	t.GraphID = firstNonEmpty(t.GraphID, q.Get("graph"), q.Get("service"))

	if specifier != "" {
		if IsHash(specifier) {
			t.Hash = specifier
		} else {
			t.Variant = specifier
		}
	}
	t.Hash = firstNonEmpty(t.Hash, q.Get("hash"))
	t.Variant = firstNonEmpty(t.Variant, q.Get("variant"), q.Get("tag"))
	if t.Hash == "" && t.Variant == "" {
		t.Variant = DefaultVariant
	}

	if t.GraphID == "" {
		return Target{}, proxyerr.Configuration("graph identifier required")
	}

	if h != nil {
		t.APIKey = h.Get(APIKeyHeader)
	}
	t.APIKey = firstNonEmpty(t.APIKey, q.Get("apiKey"))
	if t.APIKey == "" {
		return Target{}, proxyerr.Configuration("api key required")
	}
	return t, nil
}

// FromRequest is Resolve applied to an inbound HTTP request.
func FromRequest(r *http.Request) (Target, error) {
	return Resolve(r.URL, r.Header)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
