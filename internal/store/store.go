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

// Package store provides the Post record store.
//
// The store is a single logical connection to an embedded SQLite database
// guarded by a mutex: at most one statement runs at any instant,
// and all other callers block until it is released.
package store

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // register database/sql driver

	"github.com/hellopost/hellopost/internal/util/fsql"
	"github.com/hellopost/hellopost/internal/util/lazyerrors"
	"github.com/hellopost/hellopost/internal/util/observability"
	"github.com/hellopost/hellopost/internal/util/resource"
)

// Parts of Prometheus metric names.
const (
	namespace = "hellopost"
	subsystem = "store"
)

// Post represents a stored record.
type Post struct {
	ID      uuid.UUID
	Title   string
	Content string
}

// Store provides access to Post records.
//
//nolint:vet // for readability
type Store struct {
	l *zap.Logger

	// mu guards db; it is held for the full duration of each operation.
	mu sync.Mutex
	db *fsql.DB

	version string
	newID   func() (uuid.UUID, error)

	lockWait *prometheus.HistogramVec
	ops      *prometheus.CounterVec

	token *resource.Token
}

// NewOpts represents [New] options.
type NewOpts struct {
	URI string
	L   *zap.Logger
}

// New opens the SQLite database and ensures the posts table exists.
func New(ctx context.Context, opts *NewOpts) (*Store, error) {
	uri, err := parseURI(opts.URI)
	if err != nil {
		return nil, lazyerrors.Errorf("failed to parse SQLite URI %q: %w", opts.URI, err)
	}

	l := opts.L
	if l == nil {
		l = zap.NewNop()
	}

	sqlDB, err := sql.Open("sqlite", uri.String())
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	// a single connection keeps in-memory databases alive and makes SQLite's single writer explicit
	sqlDB.SetConnMaxIdleTime(0)
	sqlDB.SetConnMaxLifetime(0)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetMaxOpenConns(1)

	s := &Store{
		l:     l,
		db:    fsql.WrapDB(sqlDB, "posts", l),
		newID: uuid.NewRandom,
		lockWait: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "lock_wait_seconds",
				Help:      "Time spent waiting for the store lock.",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
			[]string{"op"},
		),
		ops: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "operations_total",
				Help:      "Total number of store operations.",
			},
			[]string{"op", "result"},
		),
		token: resource.NewToken(),
	}

	resource.Track(s, s.token)

	if err = s.setup(ctx); err != nil {
		s.Close()
		return nil, err
	}

	s.l.Info(
		"Store opened.",
		zap.String("uri", uri.String()), zap.String("sqlite", s.version),
	)

	return s, nil
}

// setup checks the connection and creates the schema.
func (s *Store) setup(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.PingContext(ctx); err != nil {
		return lazyerrors.Error(err)
	}

	if err := s.db.QueryRowContext(ctx, "SELECT sqlite_version()").Scan(&s.version); err != nil {
		return lazyerrors.Error(err)
	}

	q := `CREATE TABLE IF NOT EXISTS posts (` +
		`id TEXT PRIMARY KEY NOT NULL, ` +
		`title TEXT NOT NULL, ` +
		`content TEXT NOT NULL` +
		`)`

	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return lazyerrors.Error(err)
	}

	return nil
}

// lock acquires the store lock and records the time spent waiting for it.
// The caller must call the returned function to release it.
func (s *Store) lock(op string) func() {
	start := time.Now()

	s.mu.Lock()

	s.lockWait.WithLabelValues(op).Observe(time.Since(start).Seconds())

	return s.mu.Unlock
}

// Insert stores a new Post with a generated identifier and returns that identifier.
//
// The operation is not canceled when ctx is; a started write always completes.
func (s *Store) Insert(ctx context.Context, title, content string) (uuid.UUID, error) {
	defer observability.FuncCall(ctx)()

	ctx = context.WithoutCancel(ctx)

	id, err := s.newID()
	if err != nil {
		s.ops.WithLabelValues("insert", "error").Inc()
		return uuid.Nil, &Error{Op: "insert", Err: lazyerrors.Error(err)}
	}

	unlock := s.lock("insert")
	defer unlock()

	q := `INSERT INTO posts (id, title, content) VALUES (?, ?, ?)`

	if _, err = s.db.ExecContext(ctx, q, id.String(), title, content); err != nil {
		s.ops.WithLabelValues("insert", "error").Inc()
		return uuid.Nil, &Error{Op: "insert", Err: lazyerrors.Error(err)}
	}

	s.ops.WithLabelValues("insert", "ok").Inc()

	return id, nil
}

// FindByID returns the Post with the given identifier.
//
// It returns nil without error if there is no such Post.
func (s *Store) FindByID(ctx context.Context, id uuid.UUID) (*Post, error) {
	defer observability.FuncCall(ctx)()

	ctx = context.WithoutCancel(ctx)

	unlock := s.lock("find")
	defer unlock()

	q := `SELECT title, content FROM posts WHERE id = ?`

	p := Post{ID: id}

	err := s.db.QueryRowContext(ctx, q, id.String()).Scan(&p.Title, &p.Content)

	switch {
	case err == nil:
		s.ops.WithLabelValues("find", "ok").Inc()
		return &p, nil

	case errors.Is(err, sql.ErrNoRows):
		s.ops.WithLabelValues("find", "not_found").Inc()
		return nil, nil

	default:
		s.ops.WithLabelValues("find", "error").Inc()
		return nil, &Error{Op: "find", Err: lazyerrors.Error(err)}
	}
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	defer observability.FuncCall(ctx)()

	unlock := s.lock("ping")
	defer unlock()

	if err := s.db.PingContext(ctx); err != nil {
		return &Error{Op: "ping", Err: lazyerrors.Error(err)}
	}

	return nil
}

// Version returns SQLite version.
func (s *Store) Version() string {
	return s.version
}

// Close closes the database.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Close(); err != nil {
		s.l.Warn("Failed to close database.", zap.Error(err))
	}

	resource.Untrack(s, s.token)
}

// Describe implements prometheus.Collector.
func (s *Store) Describe(ch chan<- *prometheus.Desc) {
	s.db.Describe(ch)
	s.lockWait.Describe(ch)
	s.ops.Describe(ch)
}

// Collect implements prometheus.Collector.
func (s *Store) Collect(ch chan<- prometheus.Metric) {
	s.db.Collect(ch)
	s.lockWait.Collect(ch)
	s.ops.Collect(ch)
}

// check interfaces
var (
	_ prometheus.Collector = (*Store)(nil)
)
