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

package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hptestutil "github.com/hellopost/hellopost/internal/util/testutil"
	"github.com/hellopost/hellopost/internal/util/testutil/teststress"
)

// setup returns a new store backed by a database file in a temporary directory.
func setup(t *testing.T) *Store {
	t.Helper()

	uri := "file:" + filepath.ToSlash(filepath.Join(t.TempDir(), "posts.sqlite"))

	s, err := New(hptestutil.Ctx(t), &NewOpts{
		URI: uri,
		L:   hptestutil.Logger(t),
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)

	return s
}

func TestInsertFind(t *testing.T) {
	t.Parallel()

	ctx := hptestutil.Ctx(t)
	s := setup(t)

	assert.NotEmpty(t, s.Version())
	require.NoError(t, s.Ping(ctx))

	id, err := s.Insert(ctx, "title", "content")
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(4), id.Version())

	p, err := s.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, &Post{ID: id, Title: "title", Content: "content"}, p)

	p, err = s.FindByID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, p)

	// empty fields are valid
	id, err = s.Insert(ctx, "", "")
	require.NoError(t, err)

	p, err = s.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, &Post{ID: id}, p)
}

func TestMemory(t *testing.T) {
	t.Parallel()

	ctx := hptestutil.Ctx(t)

	s, err := New(ctx, &NewOpts{
		URI: "file:" + t.Name() + "?mode=memory",
		L:   hptestutil.Logger(t),
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)

	id, err := s.Insert(ctx, "t", "c")
	require.NoError(t, err)

	p, err := s.FindByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, p)
}

func TestReopen(t *testing.T) {
	t.Parallel()

	ctx := hptestutil.Ctx(t)
	uri := "file:" + filepath.ToSlash(filepath.Join(t.TempDir(), "posts.sqlite"))

	s, err := New(ctx, &NewOpts{URI: uri, L: hptestutil.Logger(t)})
	require.NoError(t, err)

	id, err := s.Insert(ctx, "persisted", "yes")
	require.NoError(t, err)

	s.Close()

	s, err = New(ctx, &NewOpts{URI: uri, L: hptestutil.Logger(t)})
	require.NoError(t, err)
	t.Cleanup(s.Close)

	p, err := s.FindByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "persisted", p.Title)
}

func TestInvalidURI(t *testing.T) {
	t.Parallel()

	_, err := New(hptestutil.Ctx(t), &NewOpts{URI: "postgres://localhost/db"})
	require.Error(t, err)
}

func TestErrors(t *testing.T) {
	t.Parallel()

	ctx := hptestutil.Ctx(t)
	s := setup(t)

	fixed := uuid.MustParse("6f1c2a8e-4c1b-4c7e-9a56-3d2a1f0e9b7c")
	s.newID = func() (uuid.UUID, error) { return fixed, nil }

	id, err := s.Insert(ctx, "first", "")
	require.NoError(t, err)
	assert.Equal(t, fixed, id)

	// constraint violation
	_, err = s.Insert(ctx, "second", "")

	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "insert", se.Op)
	assert.ErrorIs(t, err, ErrStore)

	s.newID = func() (uuid.UUID, error) { return uuid.Nil, fmt.Errorf("no entropy") }

	_, err = s.Insert(ctx, "third", "")
	require.ErrorAs(t, err, &se)

	s.Close()

	_, err = s.FindByID(ctx, fixed)
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "find", se.Op)

	require.ErrorAs(t, s.Ping(ctx), &se)
}

func TestCanceledContext(t *testing.T) {
	t.Parallel()

	s := setup(t)

	ctx, cancel := context.WithCancel(hptestutil.Ctx(t))
	cancel()

	id, err := s.Insert(ctx, "canceled", "still stored")
	require.NoError(t, err)

	p, err := s.FindByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "still stored", p.Content)
}

func TestConcurrentInserts(t *testing.T) {
	t.Parallel()

	ctx := hptestutil.Ctx(t)
	s := setup(t)

	var i atomic.Int32
	var ids sync.Map

	teststress.Stress(t, func(ready chan<- struct{}, start <-chan struct{}) {
		n := i.Add(1)
		title := fmt.Sprintf("title %d", n)
		content := fmt.Sprintf("content %d", n)

		ready <- struct{}{}
		<-start

		id, err := s.Insert(ctx, title, content)
		require.NoError(t, err)

		_, loaded := ids.LoadOrStore(id, n)
		require.False(t, loaded, "duplicate id %s", id)

		p, err := s.FindByID(ctx, id)
		require.NoError(t, err)
		require.Equal(t, &Post{ID: id, Title: title, Content: content}, p)
	})

	var count int
	ids.Range(func(_, _ any) bool {
		count++
		return true
	})

	assert.Equal(t, teststress.NumGoroutines, count)

	assert.Equal(t, float64(teststress.NumGoroutines), testutil.ToFloat64(s.ops.WithLabelValues("insert", "ok")))
	assert.Positive(t, testutil.CollectAndCount(s))
}
