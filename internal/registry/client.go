// Package registry fetches schemas from the remote schema registry.
//
// A Client issues exactly one POST per Fetch; it keeps no state between
// calls and never retries.
package registry

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/hanpama/graphproxy/internal/eventbus"
	"github.com/hanpama/graphproxy/internal/events"
	"github.com/hanpama/graphproxy/internal/proxyerr"
	"github.com/hanpama/graphproxy/internal/schema"
	"github.com/hanpama/graphproxy/internal/target"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Payload is what the registry returned for one target. Introspection is set
// in ModeIntrospection, Document in ModeDocument.
type Payload struct {
	Mode          Mode
	Introspection *schema.IntrospectionSchema
	Document      string
}

type Client struct {
	opts *Options
}

func New(opts ...Option) *Client {
	o := defaultOptions()
	for _, f := range opts {
		f(o)
	}
	if o.Doer == nil {
		o.Doer = http.DefaultClient
	}
	return &Client{opts: o}
}

// Mode reports which payload kind this client fetches.
func (c *Client) Mode() Mode { return c.opts.Mode }

type request struct {
	Query     string            `json:"query"`
	Variables requestVariables `json:"variables"`
}

type requestVariables struct {
	Graph   string  `json:"graph"`
	Variant *string `json:"variant"`
	Hash    *string `json:"hash"`
}

type response struct {
	Data   *responseData              `json:"data"`
	Errors []proxyerr.RegistryMessage `json:"errors"`
}

type responseData struct {
	Service *struct {
		Schema *struct {
			Introspection *schema.IntrospectionSchema `json:"introspection"`
			Document      *string                     `json:"document"`
		} `json:"schema"`
	} `json:"service"`
}

// Fetch retrieves the schema t addresses.
func (c *Client) Fetch(ctx context.Context, t target.Target) (p Payload, err error) {
	mode := c.opts.Mode
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	status := 0
	eventbus.Publish(ctx, events.RegistryFetchStart{Graph: t.GraphID, Specifier: t.Specifier(), Mode: mode.String()})
	defer func() {
		eventbus.Publish(ctx, events.RegistryFetchFinish{
			Graph:     t.GraphID,
			Specifier: t.Specifier(),
			Mode:      mode.String(),
			Status:    status,
			Err:       err,
			Duration:  time.Since(start),
		})
	}()

	body, err := json.Marshal(request{Query: mode.query(), Variables: variablesFor(t)})
	if err != nil {
		return Payload{}, proxyerr.Wrap(proxyerr.KindRegistry, err, "encode registry request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.Endpoint, bytes.NewReader(body))
	if err != nil {
		return Payload{}, proxyerr.Wrap(proxyerr.KindUpstream, err, "build registry request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(target.APIKeyHeader, t.APIKey)

	resp, err := c.opts.Doer.Do(req)
	if err != nil {
		return Payload{}, proxyerr.Wrap(proxyerr.KindUpstream, err, "registry request failed")
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Payload{}, proxyerr.Wrap(proxyerr.KindUpstream, err, "read registry response")
	}
	if resp.StatusCode != http.StatusOK {
		return Payload{}, proxyerr.Upstream(resp.StatusCode, statusText(resp), string(raw))
	}
	return decode(raw, mode, t)
}

func decode(raw []byte, mode Mode, t target.Target) (Payload, error) {
	var r response
	if err := json.Unmarshal(raw, &r); err != nil {
		return Payload{}, proxyerr.Wrap(proxyerr.KindRegistry, err, "registry response is not valid JSON")
	}
	if len(r.Errors) > 0 {
		return Payload{}, proxyerr.RegistryErrors(r.Errors)
	}
	if r.Data == nil {
		return Payload{}, proxyerr.Registry("registry returned no data")
	}
	if r.Data.Service == nil {
		return Payload{}, proxyerr.Registry("could not find graph %s", t.GraphID)
	}
	sch := r.Data.Service.Schema
	if sch == nil {
		return Payload{}, proxyerr.Registry("could not find schema %s:%s", t.GraphID, t.Specifier())
	}
	p := Payload{Mode: mode}
	switch mode {
	case ModeDocument:
		if sch.Document != nil {
			p.Document = *sch.Document
		}
	default:
		p.Introspection = sch.Introspection
	}
	return p, nil
}

func variablesFor(t target.Target) requestVariables {
	v := requestVariables{Graph: t.GraphID}
	if t.Variant != "" {
		variant := t.Variant
		v.Variant = &variant
	}
	if t.Hash != "" {
		hash := t.Hash
		v.Hash = &hash
	}
	return v
}

// statusText strips the numeric code from resp.Status ("404 Not Found").
func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}

// String describes the client for logs.
func (c *Client) String() string {
	return fmt.Sprintf("registry(%s, %s)", c.opts.Endpoint, c.opts.Mode)
}
