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
	"fmt"
	"net/url"
	"os"
	"path/filepath"
)

// defaultPragmas are added to SQLite URI if not set explicitly.
var defaultPragmas = []string{"busy_timeout(10000)", "journal_mode(wal)"}

// parseURI checks given SQLite URI and returns it with default pragmas set.
//
// The URI path is a database file; its directory is created if needed.
func parseURI(u string) (*url.URL, error) {
	uri, err := url.Parse(u)
	if err != nil {
		return nil, err
	}

	if uri.Scheme != "file" {
		return nil, fmt.Errorf(`expected "file:" schema, got %q`, uri.Scheme)
	}

	if uri.User != nil {
		return nil, fmt.Errorf(`expected empty user info, got %q`, uri.User)
	}

	if uri.Host != "" {
		return nil, fmt.Errorf(`expected empty host, got %q`, uri.Host)
	}

	// handle both "file:data/db.sqlite" and "file:/data/db.sqlite"
	if uri.Path == "" && uri.Opaque != "" {
		uri.Path = uri.Opaque
	}

	uri.Opaque = uri.Path
	uri.OmitHost = true

	if uri.Path == "" || uri.Path[len(uri.Path)-1] == '/' {
		return nil, fmt.Errorf(`expected database file path, got %q`, uri.Path)
	}

	q := uri.Query()

	if q.Get("mode") != "memory" {
		dir := filepath.Dir(filepath.FromSlash(uri.Path))
		if err = os.MkdirAll(dir, 0o777); err != nil {
			return nil, fmt.Errorf("failed to create database directory %q: %w", dir, err)
		}
	}

	if !q.Has("_pragma") {
		q["_pragma"] = append([]string(nil), defaultPragmas...)
	}

	uri.RawQuery = q.Encode()

	return uri, nil
}
