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

package templates

import "fmt"

// ParseError is returned when a template can't be registered.
//
// It is fatal at startup.
type ParseError struct {
	Name string
	Err  error
}

// Error implements error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("template %q: %s", e.Name, e.Err)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// RenderError is returned when a template can't be rendered:
// it does not exist, or the render context lacks a referenced key.
type RenderError struct {
	Name string
	Err  error
}

// Error implements error interface.
func (e *RenderError) Error() string {
	return fmt.Sprintf("render %q: %s", e.Name, e.Err)
}

// Unwrap returns the underlying error.
func (e *RenderError) Unwrap() error {
	return e.Err
}
