// Copyright 2021 FerretDB Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package server provides the HTTP request router and handlers.
//
// The router holds no mutable state. Every request is handled by its own goroutine
// with the same shared template registry and record store.
// Handler failures are converted to responses at the handler boundary;
// they never stop the listener or affect other requests.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/schema"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/hellopost/hellopost/internal/store"
	"github.com/hellopost/hellopost/internal/templates"
	"github.com/hellopost/hellopost/internal/util/observability"
)

// DefaultMaxBodySize is the default limit of request body size.
const DefaultMaxBodySize = 1 << 20

// Renderer renders named templates.
//
// Implementations must be safe for concurrent use.
type Renderer interface {
	Render(name string, ctx templates.RenderContext) (string, error)
}

// Records stores and finds Post records.
//
// Implementations must be safe for concurrent use.
type Records interface {
	Insert(ctx context.Context, title, content string) (uuid.UUID, error)
	FindByID(ctx context.Context, id uuid.UUID) (*store.Post, error)
}

// Response represents a handler result.
type Response struct {
	Status int
	Body   string

	// Category is empty for successful responses.
	Category Category
}

// Server routes requests to handlers.
//
//nolint:vet // for readability
type Server struct {
	l           *zap.Logger
	templates   Renderer
	records     Records
	metrics     *Metrics
	maxBodySize int64

	decoder  *schema.Decoder
	exact    map[routeKey]*route
	prefixes []*route
}

// NewOpts represents [New] options.
type NewOpts struct {
	L           *zap.Logger
	Templates   Renderer
	Records     Records
	Metrics     *Metrics // if nil, new metrics are created
	MaxBodySize int64    // if zero, DefaultMaxBodySize is used
}

// New creates a new Server.
func New(opts *NewOpts) *Server {
	l := opts.L
	if l == nil {
		l = zap.NewNop()
	}

	metrics := opts.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}

	maxBodySize := opts.MaxBodySize
	if maxBodySize <= 0 {
		maxBodySize = DefaultMaxBodySize
	}

	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)

	s := &Server{
		l:           l,
		templates:   opts.Templates,
		records:     opts.Records,
		metrics:     metrics,
		maxBodySize: maxBodySize,
		decoder:     decoder,
	}

	s.exact, s.prefixes = s.routes()

	return s
}

// request represents an incoming request as seen by handlers.
type request struct {
	method string
	path   string
	body   []byte

	// bodyErr is set when the body could not be read.
	bodyErr error

	// param is the rest of the path after a prefix route match.
	param string
}

// ServeHTTP implements [http.Handler].
func (s *Server) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	req := &request{
		method: r.Method,
		path:   r.URL.Path,
	}

	req.body, req.bodyErr = io.ReadAll(http.MaxBytesReader(rw, r.Body, s.maxBodySize))

	res := s.dispatch(r.Context(), req)

	h := rw.Header()
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("X-Content-Type-Options", "nosniff")

	if res.Category != "" {
		h.Set(categoryHeader, string(res.Category))
	}

	rw.WriteHeader(res.Status)

	if _, err := io.WriteString(rw, res.Body); err != nil {
		s.l.Debug("Failed to write response.", zap.Error(err))
	}
}

// Route handles a request with the given method, path, and body.
func (s *Server) Route(ctx context.Context, method, path string, body []byte) *Response {
	return s.dispatch(ctx, &request{
		method: method,
		path:   path,
		body:   body,
	})
}

// dispatch finds a route for the request and calls its handler.
//
// It never panics and always returns a response.
func (s *Server) dispatch(ctx context.Context, req *request) (res *Response) {
	start := time.Now()

	rt := s.match(req)

	routeName := "unmatched"
	if rt != nil {
		routeName = rt.name
	}

	ctx, span := observability.Tracer().Start(ctx, routeName)
	span.SetAttributes(
		attribute.String("http.method", req.method),
		attribute.String("http.route", routeName),
	)

	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("handler panic: %v", p)
			s.l.Error("Handler panicked.", zap.String("route", routeName), zap.Error(err), zap.Stack("stack"))
			res = errorResponse(err)
		}

		span.SetAttributes(attribute.Int("http.status_code", res.Status))
		if res.Status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, string(res.Category))
		}
		span.End()

		d := time.Since(start)
		s.metrics.observe(routeName, res, d.Seconds())

		s.l.Debug(
			"Request handled.",
			zap.String("method", req.method), zap.String("path", req.path), zap.String("route", routeName),
			zap.Int("status", res.Status), zap.Duration("duration", d),
		)
	}()

	if rt == nil {
		return errorResponse(notFound())
	}

	res, err := rt.h(ctx, req)
	if err != nil {
		res = errorResponse(err)

		if res.Status >= http.StatusInternalServerError {
			s.l.Error(
				"Request failed.",
				zap.String("route", routeName), zap.String("category", string(res.Category)), zap.Error(err),
			)
		}
	}

	return res
}

// decodeForm decodes form-encoded request body into dst.
//
// All required keys must be present, but their values may be empty.
func (s *Server) decodeForm(req *request, dst any, required ...string) error {
	if req.bodyErr != nil {
		return badRequest(req.bodyErr)
	}

	values, err := parseForm(req.body)
	if err != nil {
		return badRequest(err)
	}

	for _, k := range required {
		if !values.Has(k) {
			return badRequest(fmt.Errorf("missing field %q", k))
		}
	}

	if err = s.decoder.Decode(dst, values); err != nil {
		return badRequest(err)
	}

	return nil
}

// ok returns a successful response with the given body.
func ok(body string) *Response {
	return &Response{
		Status: http.StatusOK,
		Body:   body,
	}
}

// check interfaces
var (
	_ http.Handler = (*Server)(nil)
	_ Renderer     = (*templates.Registry)(nil)
	_ Records      = (*store.Store)(nil)
)
