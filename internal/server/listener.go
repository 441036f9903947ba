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

package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hellopost/hellopost/internal/util/ctxutil"
	"github.com/hellopost/hellopost/internal/util/lazyerrors"
	"github.com/hellopost/hellopost/internal/util/must"
)

// Listener accepts HTTP connections and serves them with a [Server].
type Listener struct {
	opts *ListenOpts
	lis  net.Listener
}

// ListenOpts represents [Listen] options.
type ListenOpts struct {
	L       *zap.Logger
	Handler http.Handler
	TCPAddr string

	// ShutdownTimeout is the time given to in-flight requests after ctx is canceled.
	ShutdownTimeout time.Duration
}

// Listen starts listening on the given TCP address.
func Listen(opts *ListenOpts) (*Listener, error) {
	lis, err := net.Listen("tcp", opts.TCPAddr)
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	return &Listener{
		opts: opts,
		lis:  lis,
	}, nil
}

// Addr returns the listener's network address.
func (lis *Listener) Addr() net.Addr {
	return lis.lis.Addr()
}

// Run serves requests until ctx is canceled.
//
// It waits for in-flight requests for up to ShutdownTimeout before exiting.
func (lis *Listener) Run(ctx context.Context) error {
	l := lis.opts.L

	srv := &http.Server{
		Handler:           lis.opts.Handler,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          must.NotFail(zap.NewStdLogAt(l, zap.WarnLevel)),
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	serveErr := make(chan error, 1)

	go func() {
		serveErr <- srv.Serve(lis.lis)
	}()

	l.Info("Listening.", zap.String("addr", "http://"+lis.Addr().String()))

	select {
	case err := <-serveErr:
		return lazyerrors.Error(err)
	case <-ctx.Done():
	}

	stopCtx, stopCancel := ctxutil.WithDelay(ctx.Done(), lis.opts.ShutdownTimeout)
	defer stopCancel()

	if err := srv.Shutdown(stopCtx); err != nil {
		l.Warn("Graceful shutdown failed.", zap.Error(err))
		_ = srv.Close()
	}

	if err := <-serveErr; !errors.Is(err, http.ErrServerClosed) {
		return lazyerrors.Error(err)
	}

	l.Info("Listener stopped.")

	return nil
}
