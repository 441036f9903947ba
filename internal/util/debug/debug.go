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

// Package debug provides debug facilities.
package debug

import (
	"bytes"
	"context"
	_ "expvar" // for metrics
	"fmt"
	"net"
	"net/http"
	_ "net/http/pprof" // for profiling
	"text/template"
	"time"

	"github.com/arl/statsviz"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/hellopost/hellopost/internal/util/logging"
	"github.com/hellopost/hellopost/internal/util/lazyerrors"
	"github.com/hellopost/hellopost/internal/util/must"
)

// Probe checks a readiness condition.
//
// It should return quickly and be safe for concurrent use.
type Probe func(ctx context.Context) bool

// Opts represents [Handler] and [RunHandler] options.
type Opts struct {
	L *zap.Logger
	R prometheus.Registerer
	G prometheus.Gatherer

	// Readyz probes; all of them must pass.
	Readyz []Probe
}

// Handler returns an HTTP handler for debug endpoints.
func Handler(opts *Opts) (http.Handler, error) {
	stdL, err := zap.NewStdLogAt(opts.L, zap.WarnLevel)
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	mux := http.NewServeMux()

	mux.Handle("/debug/metrics", promhttp.InstrumentMetricHandler(
		opts.R, promhttp.HandlerFor(opts.G, promhttp.HandlerOpts{
			ErrorLog:          stdL,
			ErrorHandling:     promhttp.ContinueOnError,
			Registry:          opts.R,
			EnableOpenMetrics: true,
		}),
	))

	if err = statsviz.Register(mux, statsviz.Root("/debug/graphs")); err != nil {
		return nil, lazyerrors.Error(err)
	}

	// registered on the default mux by imports above
	mux.Handle("/debug/vars", http.DefaultServeMux)
	mux.Handle("/debug/pprof/", http.DefaultServeMux)

	mux.HandleFunc("/debug/log", func(rw http.ResponseWriter, _ *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; charset=utf-8")

		for _, e := range logging.RecentEntries.Get() {
			fmt.Fprintf(rw, "%s\t%s\t%s\t%s\n", e.Time.Format(time.RFC3339Nano), e.Level.CapitalString(), e.LoggerName, e.Message)
		}
	})

	mux.HandleFunc("/debug/livez", func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("/debug/readyz", func(rw http.ResponseWriter, req *http.Request) {
		for _, p := range opts.Readyz {
			if !p(req.Context()) {
				rw.WriteHeader(http.StatusInternalServerError)
				return
			}
		}

		rw.WriteHeader(http.StatusOK)
	})

	handlers := map[string]string{
		// custom handlers registered above
		"/debug/graphs":  "Visualize metrics",
		"/debug/metrics": "Metrics in Prometheus format",
		"/debug/log":     "Recent log entries",
		"/debug/livez":   "Liveness probe",
		"/debug/readyz":  "Readiness probe",

		// stdlib handlers
		"/debug/vars":  "Expvar package metrics",
		"/debug/pprof": "Runtime profiling data for pprof",
	}

	var page bytes.Buffer
	must.NoError(template.Must(template.New("debug").Parse(`
	<html>
	<body>
	<ul>
	{{range $path, $desc := .}}
		<li><a href="{{$path}}">{{$path}}</a>: {{$desc}}</li>
	{{end}}
	</ul>
	</body>
	</html>
	`)).Execute(&page, handlers))

	mux.HandleFunc("/debug", func(rw http.ResponseWriter, _ *http.Request) {
		_, _ = rw.Write(page.Bytes())
	})

	mux.HandleFunc("/", func(rw http.ResponseWriter, req *http.Request) {
		http.Redirect(rw, req, "/debug", http.StatusSeeOther)
	})

	paths := maps.Keys(handlers)
	slices.Sort(paths)

	for _, path := range paths {
		opts.L.Debug("Debug handler registered.", zap.String("path", path), zap.String("desc", handlers[path]))
	}

	return mux, nil
}

// RunHandler runs debug handler on the given address until ctx is canceled.
func RunHandler(ctx context.Context, addr string, opts *Opts) {
	l := opts.L

	h, err := Handler(opts)
	if err != nil {
		l.Error("Failed to create debug handler.", zap.Error(err))
		return
	}

	s := http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          must.NotFail(zap.NewStdLogAt(l, zap.WarnLevel)),
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		l.Error("Failed to start debug server.", zap.Error(err))
		return
	}

	go func() {
		l.Sugar().Infof("Starting debug server on http://%s/debug ...", lis.Addr())

		if err := s.Serve(lis); err != http.ErrServerClosed {
			l.Error("Debug server exited with unexpected error.", zap.Error(err))
		}
	}()

	<-ctx.Done()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()

	_ = s.Shutdown(stopCtx) //nolint:contextcheck // use new context for cancellation

	_ = s.Close()

	l.Info("Debug server stopped.")
}
