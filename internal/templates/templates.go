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

// Package templates provides the registry of named response templates.
//
// Templates are registered and parsed once at startup, then the registry is frozen.
// A frozen registry is never mutated, so it can be rendered from any number of goroutines
// without locking.
package templates

import (
	"bytes"
	"errors"
	"fmt"
	"sync/atomic"
	"text/template"

	"go.uber.org/zap"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/hellopost/hellopost/internal/util/lazyerrors"
)

// Names of built-in templates used by request handlers.
const (
	Hello = "hello"
	Post  = "post"
)

// RenderContext holds per-request template bindings.
//
// It is created for a single request and never shared.
type RenderContext map[string]any

// Registry maps template names to parsed templates.
//
//nolint:vet // for readability
type Registry struct {
	l *zap.Logger

	frozen atomic.Bool
	t      map[string]*template.Template
}

// NewOpts represents [New] options.
type NewOpts struct {
	L *zap.Logger
}

// New creates an empty registry in the registration phase.
func New(opts *NewOpts) *Registry {
	l := opts.L
	if l == nil {
		l = zap.NewNop()
	}

	return &Registry{
		l: l,
		t: make(map[string]*template.Template),
	}
}

// Register parses source and stores it under the given name.
//
// It returns *ParseError if the source is invalid or the name is already registered.
// It panics if called after [Registry.Freeze].
func (r *Registry) Register(name, source string) error {
	if r.frozen.Load() {
		panic(fmt.Sprintf("templates: Register(%q) called on frozen registry", name))
	}

	if name == "" {
		return &ParseError{Name: name, Err: errors.New("empty template name")}
	}

	if _, ok := r.t[name]; ok {
		return &ParseError{Name: name, Err: errors.New("template already registered")}
	}

	t, err := template.New(name).Option("missingkey=error").Parse(source)
	if err != nil {
		return &ParseError{Name: name, Err: err}
	}

	r.t[name] = t

	r.l.Debug("Template registered.", zap.String("name", name))

	return nil
}

// Freeze ends the registration phase.
func (r *Registry) Freeze() {
	r.frozen.Store(true)
}

// Names returns a sorted list of registered template names.
func (r *Registry) Names() []string {
	res := maps.Keys(r.t)
	slices.Sort(res)

	return res
}

// Render executes the named template with the given context.
//
// It returns *RenderError if the template does not exist
// or the context lacks a key that the template references.
// Partial output is never returned.
func (r *Registry) Render(name string, ctx RenderContext) (string, error) {
	if !r.frozen.Load() {
		return "", lazyerrors.Errorf("templates: Render(%q) called before Freeze", name)
	}

	t := r.t[name]
	if t == nil {
		return "", &RenderError{Name: name, Err: errors.New("no such template")}
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, map[string]any(ctx)); err != nil {
		return "", &RenderError{Name: name, Err: err}
	}

	return buf.String(), nil
}
