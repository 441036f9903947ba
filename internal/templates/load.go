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
	"embed"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/hellopost/hellopost/internal/util/lazyerrors"
)

// fileExtension represents template filename extension.
const fileExtension = ".tmpl"

//go:embed builtin/*.tmpl
var builtin embed.FS

// Builtin returns sources of built-in templates by name.
func Builtin() (map[string]string, error) {
	return readSources(builtin, "builtin")
}

// Dir returns sources of templates in the given directory by name.
//
// Only files with .tmpl extension are read; subdirectories are ignored.
func Dir(dir string) (map[string]string, error) {
	return readSources(os.DirFS(dir), ".")
}

// readSources reads all template files from the given directory of fsys.
func readSources(fsys fs.FS, dir string) (map[string]string, error) {
	matches, err := fs.Glob(fsys, filepath.ToSlash(filepath.Join(dir, "*"+fileExtension)))
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	res := make(map[string]string, len(matches))

	for _, m := range matches {
		b, err := fs.ReadFile(fsys, m)
		if err != nil {
			return nil, lazyerrors.Error(err)
		}

		res[strings.TrimSuffix(filepath.Base(m), fileExtension)] = string(b)
	}

	return res, nil
}

// LoadOpts represents [Load] options.
type LoadOpts struct {
	L *zap.Logger

	// Dir, if set, is a directory with templates that override or extend built-in ones.
	Dir string
}

// Load registers built-in templates and templates from the directory, then freezes the registry.
//
// Templates are registered in name order.
// On the first failure it returns that error and no registry.
func Load(opts *LoadOpts) (*Registry, error) {
	sources, err := Builtin()
	if err != nil {
		return nil, err
	}

	if opts.Dir != "" {
		var dirSources map[string]string

		if dirSources, err = Dir(opts.Dir); err != nil {
			return nil, err
		}

		maps.Copy(sources, dirSources)
	}

	r := New(&NewOpts{L: opts.L})

	names := maps.Keys(sources)
	slices.Sort(names)

	for _, name := range names {
		if err = r.Register(name, sources[name]); err != nil {
			return nil, err
		}
	}

	r.Freeze()

	if opts.L != nil {
		opts.L.Info("Templates loaded.", zap.Strings("names", r.Names()))
	}

	return r, nil
}
