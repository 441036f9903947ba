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

// Package state stores hellopost process state.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/hellopost/hellopost/internal/util/must"
)

// State represents hellopost process state.
type State struct {
	UUID string `json:"uuid"`
}

// Provider provides access to hellopost process state.
type Provider struct {
	filename string

	rw sync.RWMutex
	s  State
}

// NewProvider creates a new Provider that stores state in the given file.
//
// If filename is empty, state is not persisted.
func NewProvider(filename string) (*Provider, error) {
	p := &Provider{
		filename: filename,
	}

	if err := p.load(); err != nil {
		return nil, err
	}

	return p, nil
}

// Get returns a copy of the current process state.
func (p *Provider) Get() *State {
	p.rw.RLock()
	defer p.rw.RUnlock()

	s := p.s

	return &s
}

// load reads the state file, regenerating and storing state if it is missing or invalid.
func (p *Provider) load() error {
	var s State

	if p.filename != "" {
		b, _ := os.ReadFile(p.filename)
		_ = json.Unmarshal(b, &s)
	}

	if _, err := uuid.Parse(s.UUID); err == nil {
		p.s = s
		return nil
	}

	// all errors (missing file, invalid file permission, invalid JSON, etc)
	// are handled in the same way - by regenerating state

	s.UUID = must.NotFail(uuid.NewRandom()).String()
	p.s = s

	if p.filename == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(p.filename), 0o777); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	if err := os.WriteFile(p.filename, must.NotFail(json.Marshal(s)), 0o666); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}

	return nil
}

// MetricsCollector returns Prometheus metrics collector for that provider.
//
// If addUUIDToMetric is true, then the UUID is added to the Prometheus metric.
func (p *Provider) MetricsCollector(addUUIDToMetric bool) *metricsCollector {
	return newMetricsCollector(p, addUUIDToMetric)
}
