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

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hellopost/hellopost/internal/util/testutil"
)

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := New(&NewOpts{L: testutil.Logger(t)})

	require.NoError(t, r.Register("greet", "Hi, {{.name}}."))

	var pe *ParseError

	err := r.Register("greet", "again")
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "greet", pe.Name)

	err = r.Register("broken", "{{.name")
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "broken", pe.Name)

	err = r.Register("", "empty name")
	require.ErrorAs(t, err, &pe)

	_, err = r.Render("greet", RenderContext{"name": "early"})
	require.Error(t, err)

	r.Freeze()

	assert.Equal(t, []string{"greet"}, r.Names())
	assert.Panics(t, func() { _ = r.Register("late", "late") })

	for name, tc := range map[string]struct {
		template string
		ctx      RenderContext
		expected string
		err      bool
	}{
		"OK": {
			template: "greet",
			ctx:      RenderContext{"name": "World"},
			expected: "Hi, World.",
		},
		"ExtraKey": {
			template: "greet",
			ctx:      RenderContext{"name": "World", "extra": 1},
			expected: "Hi, World.",
		},
		"MissingKey": {
			template: "greet",
			ctx:      RenderContext{},
			err:      true,
		},
		"NilContext": {
			template: "greet",
			err:      true,
		},
		"MissingTemplate": {
			template: "nope",
			ctx:      RenderContext{"name": "World"},
			err:      true,
		},
	} {
		name, tc := name, tc

		t.Run(name, func(t *testing.T) {
			t.Parallel()

			actual, err := r.Render(tc.template, tc.ctx)
			if tc.err {
				var re *RenderError
				require.ErrorAs(t, err, &re)
				assert.Equal(t, tc.template, re.Name)
				assert.Empty(t, actual)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.expected, actual)
		})
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("Builtin", func(t *testing.T) {
		t.Parallel()

		r, err := Load(&LoadOpts{L: testutil.Logger(t)})
		require.NoError(t, err)

		assert.Equal(t, []string{Hello, Post}, r.Names())

		actual, err := r.Render(Hello, RenderContext{"name": "World"})
		require.NoError(t, err)
		assert.Equal(t, "Hello, World!", actual)

		actual, err = r.Render(Post, RenderContext{"title": "T", "content": "C"})
		require.NoError(t, err)
		assert.Equal(t, "Title: T\nContent: C\n", actual)
	})

	t.Run("Dir", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.tmpl"), []byte("Hey {{.name}}"), 0o666))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "bye.tmpl"), []byte("Bye {{.name}}"), 0o666))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("{{"), 0o666))

		r, err := Load(&LoadOpts{L: testutil.Logger(t), Dir: dir})
		require.NoError(t, err)

		assert.Equal(t, []string{"bye", Hello, Post}, r.Names())

		actual, err := r.Render(Hello, RenderContext{"name": "you"})
		require.NoError(t, err)
		assert.Equal(t, "Hey you", actual)
	})

	t.Run("ParseError", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.tmpl"), []byte("{{if}}"), 0o666))

		r, err := Load(&LoadOpts{L: testutil.Logger(t), Dir: dir})

		var pe *ParseError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "bad", pe.Name)
		assert.Nil(t, r)
	})
}

func TestConcurrentRender(t *testing.T) {
	t.Parallel()

	r, err := Load(&LoadOpts{L: testutil.Logger(t)})
	require.NoError(t, err)

	const n = 64

	var wg sync.WaitGroup
	results := make([]string, n)

	for i := 0; i < n; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			results[i], _ = r.Render(Hello, RenderContext{"name": "World"})
		}(i)
	}

	wg.Wait()

	for _, res := range results {
		assert.Equal(t, "Hello, World!", res)
	}
}
