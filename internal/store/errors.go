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
	"errors"
	"fmt"
)

// ErrStore matches every [*Error] with errors.Is.
var ErrStore = errors.New("store error")

// Error is returned when the underlying database operation fails.
//
// Its message may contain internal details and must not be shown to clients.
type Error struct {
	Op  string
	Err error
}

// Error implements error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("store: %s: %s", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is [ErrStore].
func (e *Error) Is(target error) bool {
	return target == ErrStore
}
