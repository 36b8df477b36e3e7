package target

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/hanpama/graphproxy/internal/proxyerr"
)

var testHash = strings.Repeat("0123456789abcdef", 8)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		header http.Header
		want   Target
	}{
		{
			name: "graph only defaults variant",
			url:  "/my-graph?apiKey=KEY",
			want: Target{GraphID: "my-graph", Variant: "current", APIKey: "KEY"},
		},
		{
			name: "variant segment",
			url:  "/my-graph/staging?apiKey=KEY",
			want: Target{GraphID: "my-graph", Variant: "staging", APIKey: "KEY"},
		},
		{
			name: "hash segment",
			url:  "/my-graph/" + testHash + "?apiKey=KEY",
			want: Target{GraphID: "my-graph", Hash: testHash, APIKey: "KEY"},
		},
		{
			name: "uppercase hex is a variant",
			url:  "/my-graph/" + strings.ToUpper(testHash) + "?apiKey=KEY",
			want: Target{GraphID: "my-graph", Variant: strings.ToUpper(testHash), APIKey: "KEY"},
		},
		{
			name: "127 chars is a variant",
			url:  "/my-graph/" + testHash[1:] + "?apiKey=KEY",
			want: Target{GraphID: "my-graph", Variant: testHash[1:], APIKey: "KEY"},
		},
		{
			name: "graph parameter",
			url:  "/?graph=g1&apiKey=KEY",
			want: Target{GraphID: "g1", Variant: "current", APIKey: "KEY"},
		},
		{
			name: "service parameter",
			url:  "/?service=s1&apiKey=KEY",
			want: Target{GraphID: "s1", Variant: "current", APIKey: "KEY"},
		},
		{
			name: "path wins over parameter",
			url:  "/from-path?graph=from-query&apiKey=KEY",
			want: Target{GraphID: "from-path", Variant: "current", APIKey: "KEY"},
		},
		{
			name: "graph wins over service",
			url:  "/?graph=g&service=s&apiKey=KEY",
			want: Target{GraphID: "g", Variant: "current", APIKey: "KEY"},
		},
		{
			name: "variant parameter wins over tag",
			url:  "/g?variant=v&tag=t&apiKey=KEY",
			want: Target{GraphID: "g", Variant: "v", APIKey: "KEY"},
		},
		{
			name: "tag parameter",
			url:  "/g?tag=t&apiKey=KEY",
			want: Target{GraphID: "g", Variant: "t", APIKey: "KEY"},
		},
		{
			name: "specifier wins over variant parameter",
			url:  "/g/seg?variant=v&apiKey=KEY",
			want: Target{GraphID: "g", Variant: "seg", APIKey: "KEY"},
		},
		{
			name: "hash parameter suppresses default",
			url:  "/g?hash=abc&apiKey=KEY",
			want: Target{GraphID: "g", Hash: "abc", APIKey: "KEY"},
		},
		{
			name:   "header api key",
			url:    "/g",
			header: http.Header{"X-Api-Key": []string{"H"}},
			want:   Target{GraphID: "g", Variant: "current", APIKey: "H"},
		},
		{
			name:   "header wins over parameter",
			url:    "/g?apiKey=Q",
			header: http.Header{"X-Api-Key": []string{"H"}},
			want:   Target{GraphID: "g", Variant: "current", APIKey: "H"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewWithT(t)
			got, err := Resolve(mustURL(t, tt.url), tt.header)
			g.Expect(err).NotTo(HaveOccurred())
			g.Expect(got).To(Equal(tt.want))
		})
	}
}

func TestResolveMissingInputs(t *testing.T) {
	g := NewWithT(t)

	_, err := Resolve(mustURL(t, "/?apiKey=KEY"), nil)
	g.Expect(err).To(MatchError(ContainSubstring("graph identifier required")))
	g.Expect(errors.Is(err, proxyerr.ErrConfiguration)).To(BeTrue())

	_, err = Resolve(mustURL(t, "/my-graph"), http.Header{})
	g.Expect(err).To(MatchError(ContainSubstring("api key required")))
	g.Expect(proxyerr.KindOf(err)).To(Equal(proxyerr.KindConfiguration))
}

func TestResolveHashOrVariantProperty(t *testing.T) {
	g := NewWithT(t)
	specifiers := []string{testHash, "current", "prod", "a", testHash + "0", strings.Repeat("g", 128)}
	for _, s := range specifiers {
		got, err := Resolve(mustURL(t, "/graph/"+s+"?apiKey=k"), nil)
		g.Expect(err).NotTo(HaveOccurred())
		if IsHash(s) {
			g.Expect(got.Hash).To(Equal(s))
			g.Expect(got.Variant).To(BeEmpty())
		} else {
			g.Expect(got.Variant).To(Equal(s))
			g.Expect(got.Hash).To(BeEmpty())
		}
		g.Expect(got.Specifier()).To(Equal(s))
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	g := NewWithT(t)
	u := mustURL(t, "/graph/"+testHash+"?apiKey=k&variant=x")
	h := http.Header{"X-Api-Key": []string{"hk"}}
	a, errA := Resolve(u, h)
	b, errB := Resolve(u, h)
	g.Expect(errA).NotTo(HaveOccurred())
	g.Expect(errB).NotTo(HaveOccurred())
	g.Expect(a).To(Equal(b))
	g.Expect(u.String()).To(Equal("/graph/" + testHash + "?apiKey=k&variant=x"))
}
