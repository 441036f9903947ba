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

// Package version provides information about hellopost version and build configuration.
//
// # Extra files
//
// The following generated text files may be present in this (`build/version`) directory during building:
//   - version.txt (required) contains information about the hellopost version in a format
//     similar to `git describe` output: `v<major>.<minor>.<patch>`;
//   - commit.txt (optional) contains information about the source git commit;
//   - branch.txt (optional) contains information about the source git branch;
//   - package.txt (optional) contains package type (e.g. "deb", "docker", etc).
//
// # Go build tags
//
// The following Go build tags (also known as build constraints) affect builds of hellopost:
//
//	hellopost_dev - enables development build (implied by builds with race detector)
//
// Development builds log at debug level by default, collect stack traces for leaked resources,
// and dump metrics to stderr on exit.
package version

import (
	"embed"
	"runtime"
	runtimedebug "runtime/debug"
	"strconv"
	"strings"

	"github.com/hellopost/hellopost/internal/util/devbuild"
)

//go:embed *.txt
var gen embed.FS

// Info provides details about the current build.
//
//nolint:vet // for readability
type Info struct {
	Version          string
	Commit           string
	Branch           string
	Dirty            bool
	Package          string
	DevBuild         bool
	BuildEnvironment map[string]string
}

// info singleton instance set by init().
var info *Info

// unknown is a placeholder for unknown version, commit, and branch values.
const unknown = "unknown"

// module path from go.mod.
const module = "github.com/hellopost/hellopost"

// Get returns current build's info.
//
// It returns a shared instance without any synchronization.
// If caller needs to modify the instance, it should make sure there is no concurrent accesses.
func Get() *Info {
	return info
}

// initFromFiles initializes info from txt files (that might be absent).
func initFromFiles() {
	info = &Info{
		Version:  unknown,
		Commit:   unknown,
		Branch:   unknown,
		Package:  unknown,
		DevBuild: devbuild.Enabled,
		BuildEnvironment: map[string]string{
			"go.runtime": runtime.Version(),
		},
	}

	for f, sp := range map[string]*string{
		"version.txt": &info.Version,
		"commit.txt":  &info.Commit,
		"branch.txt":  &info.Branch,
		"package.txt": &info.Package,
	} {
		b, _ := gen.ReadFile(f)
		if s := strings.TrimSpace(string(b)); s != "" {
			*sp = s
		}
	}
}

// readBuildInfo updates info from the Go build information when we are building hellopost itself.
func readBuildInfo() {
	buildInfo, ok := runtimedebug.ReadBuildInfo()
	if !ok {
		return
	}

	info.BuildEnvironment["go.version"] = buildInfo.GoVersion

	if buildInfo.Main.Path != module {
		return
	}

	if v := buildInfo.Main.Version; v != "" && v != "(devel)" && info.Version == unknown {
		info.Version = v
	}

	for _, s := range buildInfo.Settings {
		if s.Value != "" {
			info.BuildEnvironment[s.Key] = s.Value
		}

		switch s.Key {
		case "vcs.revision":
			if info.Commit == unknown {
				info.Commit = s.Value
			}
		case "vcs.modified":
			info.Dirty, _ = strconv.ParseBool(s.Value)
		}
	}
}

func init() {
	initFromFiles()
	readBuildInfo()
}
