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

package lazyerrors

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errSentinel = errors.New("sentinel")

func TestErrors(t *testing.T) {
	t.Parallel()

	err := Error(errSentinel)
	assert.True(t, strings.HasPrefix(err.Error(), "[lazyerrors_test.go:"), err.Error())
	assert.True(t, strings.HasSuffix(err.Error(), "lazyerrors.TestErrors] sentinel"), err.Error())
	assert.ErrorIs(t, err, errSentinel)

	wrapped := Errorf("insert: %w", err)
	assert.ErrorIs(t, wrapped, errSentinel)
	assert.Contains(t, wrapped.Error(), "insert: [lazyerrors_test.go:")
	assert.Equal(t, err, errors.Unwrap(errors.Unwrap(wrapped)))

	assert.Contains(t, New("boom").Error(), "] boom")
}

func TestErrorNil(t *testing.T) {
	t.Parallel()

	require.Panics(t, func() {
		_ = Error(nil)
	})
}

func TestZeroPC(t *testing.T) {
	t.Parallel()

	err := withStack{error: errSentinel}
	assert.Equal(t, "sentinel", err.Error())
}
