// Package server exposes the proxy pipeline over HTTP.
//
// POST executes a GraphQL request against the addressed graph. GET serves a
// query editor, or the raw schema document when "?sdl" is present and the
// registry is read in document mode. Pipeline failures are answered with an
// error envelope and status 200.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/hanpama/graphproxy/internal/builder"
	"github.com/hanpama/graphproxy/internal/eventbus"
	"github.com/hanpama/graphproxy/internal/events"
	"github.com/hanpama/graphproxy/internal/executor"
	"github.com/hanpama/graphproxy/internal/proxy"
	"github.com/hanpama/graphproxy/internal/proxyerr"
	"github.com/hanpama/graphproxy/internal/registry"
	"github.com/hanpama/graphproxy/internal/reqid"
	"github.com/hanpama/graphproxy/internal/target"
)

var (
	json       = jsoniter.ConfigCompatibleWithStandardLibrary
	prettyJSON = jsoniter.Config{
		EscapeHTML:             true,
		SortMapKeys:            true,
		ValidateJsonRawMessage: true,
		IndentionStep:          2,
	}.Froze()
)

// Pipeline is the request pipeline the handler drives.
type Pipeline interface {
	Mode() registry.Mode
	Prepare(ctx context.Context, u *url.URL, h http.Header) (target.Target, *builder.Executable, error)
	Query(ctx context.Context, t target.Target, exe *builder.Executable, req proxy.QueryRequest) *executor.ExecutionResult
	Document(ctx context.Context, u *url.URL, h http.Header) (string, error)
}

type Handler struct {
	pipeline Pipeline
	opt      Options
}

type Options struct {
	// Timeout sets a default timeout if the incoming request context has none.
	// 0 means no default timeout.
	Timeout time.Duration

	// Pretty enables indented JSON responses (useful for dev).
	Pretty bool

	// MaxBodyBytes limits the size of the request body. 0 means unlimited.
	MaxBodyBytes int64
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }
func WithPretty() Option                 { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option    { return func(o *Options) { o.MaxBodyBytes = n } }

// New creates a handler serving p.
func New(p Pipeline, opts ...Option) *Handler {
	var op Options
	for _, f := range opts {
		f(&op)
	}
	return &Handler{pipeline: p, opt: op}
}

const (
	RouteExecute   = "execute"
	RouteEditor    = "editor"
	RouteDocument  = "document"
	RoutePreflight = "preflight"
)

// Headers set on every response.
var uniformHeaders = map[string]string{
	"Access-Control-Allow-Origin": "*",
	"Cache-Control":               "no-cache, no-store, must-revalidate",
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := ctx.Deadline(); !ok && h.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opt.Timeout)
		defer cancel()
	}

	ctx, rid := reqid.NewContext(ctx)
	for k, v := range uniformHeaders {
		w.Header().Set(k, v)
	}
	w.Header().Set(reqid.Header, reqid.Format(rid))

	status := http.StatusOK
	route := RouteEditor
	start := time.Now()
	eventbus.Publish(ctx, events.HTTPStart{Request: r})
	defer func() {
		eventbus.Publish(ctx, events.HTTPFinish{Request: r, Route: route, Status: status, Duration: time.Since(start)})
	}()

	switch {
	case r.Method == http.MethodOptions:
		route, status = RoutePreflight, http.StatusNoContent
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if hdr := r.Header.Get("Access-Control-Request-Headers"); hdr != "" {
			w.Header().Set("Access-Control-Allow-Headers", hdr)
		}
		w.WriteHeader(status)
	case r.Method == http.MethodPost:
		route = RouteExecute
		h.serveExecute(ctx, w, r)
	case r.URL.Query().Has("sdl") && h.pipeline.Mode() == registry.ModeDocument:
		route = RouteDocument
		h.serveDocument(ctx, w, r)
	default:
		// any other verb gets the editor
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, editorPage)
	}
}

func (h *Handler) serveExecute(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	t, exe, err := h.pipeline.Prepare(ctx, r.URL, r.Header)
	if err != nil {
		h.writeFailure(ctx, w, err)
		return
	}
	req, err := decodeRequest(r.Body, h.opt.MaxBodyBytes)
	if err != nil {
		h.writeFailure(ctx, w, err)
		return
	}
	h.writeJSON(w, h.pipeline.Query(ctx, t, exe, req))
}

func (h *Handler) serveDocument(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	doc, err := h.pipeline.Document(ctx, r.URL, r.Header)
	if err != nil {
		h.writeFailure(ctx, w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, doc)
}

func decodeRequest(body io.Reader, maxBody int64) (proxy.QueryRequest, error) {
	var req proxy.QueryRequest
	if body == nil {
		return req, proxyerr.Wrap(proxyerr.KindRequest, io.ErrUnexpectedEOF, "request body is empty")
	}
	reader := body
	if maxBody > 0 {
		reader = io.LimitReader(body, maxBody+1)
	}
	raw, err := io.ReadAll(reader)
	if err != nil {
		return req, proxyerr.Wrap(proxyerr.KindRequest, err, "read request body")
	}
	if maxBody > 0 && int64(len(raw)) > maxBody {
		return req, &proxyerr.Error{Kind: proxyerr.KindRequest, Message: fmt.Sprintf("request body exceeds %d bytes", maxBody)}
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, proxyerr.Wrap(proxyerr.KindRequest, err, "request body is not valid JSON")
	}
	if req.Query == "" {
		return req, &proxyerr.Error{Kind: proxyerr.KindRequest, Message: "request body has no query"}
	}
	return req, nil
}

// envelopeError is one entry of the error envelope.
type envelopeError struct {
	Message string   `json:"message"`
	Stack   []string `json:"stack"`
}

type envelope struct {
	Errors []envelopeError `json:"errors"`
}

func (h *Handler) writeFailure(ctx context.Context, w http.ResponseWriter, err error) {
	eventbus.Publish(ctx, events.PipelineFailure{
		Kind:      proxyerr.KindOf(err).String(),
		Message:   err.Error(),
		Retryable: proxyerr.Retryable(err),
	})
	h.writeJSON(w, envelope{Errors: []envelopeError{{Message: err.Error(), Stack: proxyerr.Stack(err)}}})
}

func (h *Handler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	api := json
	if h.opt.Pretty {
		api = prettyJSON
	}
	s := api.BorrowStream(w)
	defer api.ReturnStream(s)
	// results carry ordered objects, which are encoded through the stream
	// so indentation applies to them too
	if res, ok := v.(*executor.ExecutionResult); ok {
		res.Encode(s)
	} else {
		s.WriteVal(v)
	}
	s.WriteRaw("\n")
	_ = s.Flush()
}
