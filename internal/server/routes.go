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

package server

import (
	"context"
	"net/http"
	"strings"
)

// handlerFunc handles a matched request.
//
// It returns either a response or an error that is converted to a response by the caller.
type handlerFunc func(ctx context.Context, req *request) (*Response, error)

// routeKey is a key of exact routes.
type routeKey struct {
	method string
	path   string
}

// route represents a single dispatch table entry.
type route struct {
	method string
	path   string // exact path, or prefix for prefix routes
	name   string // used for metrics, tracing, and logging
	h      handlerFunc
}

// routes returns the dispatch table: exact routes and prefix routes in priority order.
func (s *Server) routes() (map[routeKey]*route, []*route) {
	exact := []*route{
		{method: http.MethodGet, path: "/", name: "hello", h: s.handleHello},
		{method: http.MethodPost, path: "/", name: "greet", h: s.handleGreet},
		{method: http.MethodPost, path: "/posts", name: "create_post", h: s.handleCreatePost},
		{method: http.MethodGet, path: "/posts", name: "find_post_legacy", h: s.handleFindPostBody},
	}

	prefixes := []*route{
		{method: http.MethodGet, path: "/posts/", name: "find_post", h: s.handleFindPost},
	}

	m := make(map[routeKey]*route, len(exact))
	for _, rt := range exact {
		m[routeKey{method: rt.method, path: rt.path}] = rt
	}

	return m, prefixes
}

// match returns the route for the request, or nil.
//
// Exact method and path matches take priority over prefix matches.
// For prefix matches, the rest of the path is stored in req.param.
func (s *Server) match(req *request) *route {
	if rt := s.exact[routeKey{method: req.method, path: req.path}]; rt != nil {
		return rt
	}

	for _, rt := range s.prefixes {
		if rt.method != req.method {
			continue
		}

		if param, found := strings.CutPrefix(req.path, rt.path); found {
			req.param = param
			return rt
		}
	}

	return nil
}
