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

package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLogRAM(t *testing.T) {
	t.Parallel()

	for name, tc := range map[string]struct {
		size     int
		entries  []string
		expected []string
	}{
		"Empty": {
			size:     2,
			expected: nil,
		},
		"Partial": {
			size:     3,
			entries:  []string{"a", "b"},
			expected: []string{"a", "b"},
		},
		"Overwrite": {
			size:     2,
			entries:  []string{"a", "b", "c"},
			expected: []string{"b", "c"},
		},
	} {
		name, tc := name, tc

		t.Run(name, func(t *testing.T) {
			t.Parallel()

			l := NewLogRAM(tc.size)
			for _, m := range tc.entries {
				l.append(&zapcore.Entry{Message: m})
			}

			var actual []string
			for _, e := range l.Get() {
				actual = append(actual, e.Message)
			}

			assert.Equal(t, tc.expected, actual)
		})
	}

	require.Panics(t, func() { NewLogRAM(0) })
}
