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
	"errors"
	"net/http"

	"github.com/hellopost/hellopost/internal/store"
	"github.com/hellopost/hellopost/internal/templates"
)

// Category is a stable error category reported to clients.
type Category string

// Error categories.
const (
	CategoryBadRequest  Category = "bad_request"
	CategoryNotFound    Category = "not_found"
	CategoryStoreError  Category = "store_error"
	CategoryRenderError Category = "render_error"
	CategoryInternal    Category = "internal_error"
)

// categoryHeader is a response header that carries the error category.
const categoryHeader = "X-Error-Category"

// handlerError is an error returned by a handler with a known category.
type handlerError struct {
	category Category
	err      error
}

// Error implements error interface.
func (e *handlerError) Error() string {
	if e.err == nil {
		return string(e.category)
	}

	return string(e.category) + ": " + e.err.Error()
}

// Unwrap returns the underlying error.
func (e *handlerError) Unwrap() error {
	return e.err
}

// badRequest returns an error for malformed or incomplete requests.
func badRequest(err error) error {
	return &handlerError{category: CategoryBadRequest, err: err}
}

// notFound returns an error for missing records.
func notFound() error {
	return &handlerError{category: CategoryNotFound}
}

// classify returns the category and HTTP status code for the given handler error.
func classify(err error) (Category, int) {
	var he *handlerError
	if errors.As(err, &he) {
		return he.category, statusCode(he.category)
	}

	var se *store.Error
	if errors.As(err, &se) {
		return CategoryStoreError, http.StatusInternalServerError
	}

	var re *templates.RenderError
	if errors.As(err, &re) {
		return CategoryRenderError, http.StatusInternalServerError
	}

	return CategoryInternal, http.StatusInternalServerError
}

// statusCode returns HTTP status code for the given category.
func statusCode(c Category) int {
	switch c {
	case CategoryBadRequest:
		return http.StatusBadRequest
	case CategoryNotFound:
		return http.StatusNotFound
	case CategoryStoreError, CategoryRenderError, CategoryInternal:
		return http.StatusInternalServerError
	default:
		panic("unknown category " + string(c))
	}
}

// errorResponse converts a handler error to a response.
//
// Not found responses have an empty body; other bodies contain only the category,
// never internal details.
func errorResponse(err error) *Response {
	c, code := classify(err)

	res := &Response{
		Status:   code,
		Category: c,
	}

	if c != CategoryNotFound {
		res.Body = string(c)
	}

	return res
}
