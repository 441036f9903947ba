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

package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider(t *testing.T) {
	t.Parallel()

	filename := filepath.Join(t.TempDir(), "sub", "state.json")

	p, err := NewProvider(filename)
	require.NoError(t, err)

	s := p.Get()
	_, err = uuid.Parse(s.UUID)
	require.NoError(t, err)

	// state is persisted and reused
	p2, err := NewProvider(filename)
	require.NoError(t, err)
	assert.Equal(t, s.UUID, p2.Get().UUID)

	// invalid state is regenerated
	require.NoError(t, os.WriteFile(filename, []byte("{"), 0o666))

	p3, err := NewProvider(filename)
	require.NoError(t, err)
	assert.NotEqual(t, s.UUID, p3.Get().UUID)
}

func TestProviderMemory(t *testing.T) {
	t.Parallel()

	p, err := NewProvider("")
	require.NoError(t, err)
	assert.NotEmpty(t, p.Get().UUID)
}

func TestMetrics(t *testing.T) {
	t.Parallel()

	p, err := NewProvider("")
	require.NoError(t, err)

	mc := p.MetricsCollector(true)
	assert.Equal(t, 1, testutil.CollectAndCount(mc, "hellopost_up"))
}
