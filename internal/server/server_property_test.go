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
	"net/http"
	"net/url"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	hptestutil "github.com/hellopost/hellopost/internal/util/testutil"
)

func TestProperties(t *testing.T) {
	t.Parallel()

	s := setup(t)
	ctx := hptestutil.Ctx(t)

	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 200

	properties := gopter.NewProperties(params)

	validString := gen.AnyString().SuchThat(func(v string) bool {
		return utf8.ValidString(v) && !strings.ContainsRune(v, 0)
	})

	// Property: any name is substituted verbatim into the greeting
	properties.Property("greeting renders name", prop.ForAll(
		func(name string) bool {
			body := url.Values{"name": {name}}.Encode()

			res := s.Route(ctx, http.MethodPost, "/", []byte(body))

			return res.Status == http.StatusOK && res.Body == "Hello, "+name+"!"
		},
		validString,
	))

	// Property: GET / ignores the body
	properties.Property("static greeting", prop.ForAll(
		func(body string) bool {
			res := s.Route(ctx, http.MethodGet, "/", []byte(body))

			return res.Status == http.StatusOK && res.Body == "Hello World"
		},
		gen.AnyString(),
	))

	// Property: created posts can be found with the same title and content
	properties.Property("create and find round-trip", prop.ForAll(
		func(title, content string) bool {
			body := url.Values{"title": {title}, "content": {content}}.Encode()

			res := s.Route(ctx, http.MethodPost, "/posts", []byte(body))
			if res.Status != http.StatusOK {
				return false
			}

			if _, err := uuid.Parse(res.Body); err != nil {
				return false
			}

			res = s.Route(ctx, http.MethodGet, "/posts/"+res.Body, nil)

			return res.Status == http.StatusOK && res.Body == "Title: "+title+"\nContent: "+content+"\n"
		},
		validString,
		validString,
	))

	// Property: bodies without a name field are rejected, never failing with 500
	properties.Property("greeting without name", prop.ForAll(
		func(key, value string) bool {
			if key == "name" {
				return true
			}

			body := url.Values{key: {value}}.Encode()

			res := s.Route(ctx, http.MethodPost, "/", []byte(body))

			return res.Status == http.StatusBadRequest && res.Category == CategoryBadRequest
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	// Property: unknown paths are not found
	properties.Property("unknown paths", prop.ForAll(
		func(path string) bool {
			res := s.Route(ctx, http.MethodGet, "/unknown/"+path, nil)

			return res.Status == http.StatusNotFound && res.Body == ""
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
