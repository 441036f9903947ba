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

package debug

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hellopost/hellopost/internal/util/testutil"
)

func TestHandler(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hellopost_debug_test_total",
		Help: "Test counter.",
	}))

	var ready atomic.Bool

	h, err := Handler(&Opts{
		L: testutil.Logger(t),
		R: reg,
		G: reg,
		Readyz: []Probe{
			func(context.Context) bool { return ready.Load() },
		},
	})
	require.NoError(t, err)

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	get := func(path string) (int, string) {
		res, err := srv.Client().Get(srv.URL + path)
		require.NoError(t, err)

		defer res.Body.Close()

		b, err := io.ReadAll(res.Body)
		require.NoError(t, err)

		return res.StatusCode, string(b)
	}

	code, body := get("/debug/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "hellopost_debug_test_total")

	code, body = get("/debug")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "/debug/readyz")

	code, _ = get("/debug/livez")
	assert.Equal(t, http.StatusOK, code)

	code, _ = get("/debug/readyz")
	assert.Equal(t, http.StatusInternalServerError, code)

	ready.Store(true)

	code, _ = get("/debug/readyz")
	assert.Equal(t, http.StatusOK, code)

	code, _ = get("/debug/log")
	assert.Equal(t, http.StatusOK, code)
}
