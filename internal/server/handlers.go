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
	"errors"
	"net/url"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hellopost/hellopost/internal/templates"
)

// greetRequest is a body of templated greeting request.
type greetRequest struct {
	Name string `schema:"name"`
}

// createPostRequest is a body of create post request.
type createPostRequest struct {
	Title   string `schema:"title"`
	Content string `schema:"content"`
}

// findPostRequest is a body of legacy find post request.
type findPostRequest struct {
	PostID string `schema:"post_id"`
}

// parseForm parses form-encoded body.
func parseForm(body []byte) (url.Values, error) {
	if !utf8.Valid(body) {
		return nil, errors.New("body is not valid UTF-8")
	}

	return url.ParseQuery(string(body))
}

// handleHello returns a fixed greeting; the body is ignored.
func (s *Server) handleHello(context.Context, *request) (*Response, error) {
	return ok("Hello World"), nil
}

// handleGreet renders the greeting template for the name in the body.
func (s *Server) handleGreet(_ context.Context, req *request) (*Response, error) {
	var dto greetRequest
	if err := s.decodeForm(req, &dto, "name"); err != nil {
		return nil, err
	}

	text, err := s.templates.Render(templates.Hello, templates.RenderContext{"name": dto.Name})
	if err != nil {
		return nil, err
	}

	return ok(text), nil
}

// handleCreatePost stores a new post and returns its identifier.
func (s *Server) handleCreatePost(ctx context.Context, req *request) (*Response, error) {
	var dto createPostRequest
	if err := s.decodeForm(req, &dto, "title", "content"); err != nil {
		return nil, err
	}

	id, err := s.records.Insert(ctx, dto.Title, dto.Content)
	if err != nil {
		return nil, err
	}

	return ok(id.String()), nil
}

// handleFindPost renders the post with the identifier in the path.
func (s *Server) handleFindPost(ctx context.Context, req *request) (*Response, error) {
	id, err := uuid.Parse(req.param)
	if err != nil {
		return nil, badRequest(err)
	}

	return s.findPost(ctx, id)
}

// handleFindPostBody renders the post with the identifier in the body (`post_id=<uuid>`).
func (s *Server) handleFindPostBody(ctx context.Context, req *request) (*Response, error) {
	var dto findPostRequest
	if err := s.decodeForm(req, &dto, "post_id"); err != nil {
		return nil, err
	}

	id, err := uuid.Parse(dto.PostID)
	if err != nil {
		return nil, badRequest(err)
	}

	return s.findPost(ctx, id)
}

// findPost looks up and renders a post.
//
// The store lock is released before rendering.
func (s *Server) findPost(ctx context.Context, id uuid.UUID) (*Response, error) {
	p, err := s.records.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if p == nil {
		return nil, notFound()
	}

	text, err := s.templates.Render(templates.Post, templates.RenderContext{
		"id":      p.ID.String(),
		"title":   p.Title,
		"content": p.Content,
	})
	if err != nil {
		return nil, err
	}

	return ok(text), nil
}
