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

// Package main contains hellopost entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hellopost/hellopost/build/version"
	"github.com/hellopost/hellopost/internal/server"
	"github.com/hellopost/hellopost/internal/store"
	"github.com/hellopost/hellopost/internal/templates"
	"github.com/hellopost/hellopost/internal/util/ctxutil"
	"github.com/hellopost/hellopost/internal/util/debug"
	"github.com/hellopost/hellopost/internal/util/devbuild"
	"github.com/hellopost/hellopost/internal/util/logging"
	"github.com/hellopost/hellopost/internal/util/must"
	"github.com/hellopost/hellopost/internal/util/observability"
	"github.com/hellopost/hellopost/internal/util/state"
)

// The cli struct represents all command-line commands, fields and flags.
// It's used for parsing the user input.
//
//nolint:lll // some tags are long
var cli struct {
	Version  bool   `default:"false" help:"Print version to stdout and exit." env:"-"`
	StateDir string `default:"."     help:"Process state directory."`

	Listen struct {
		Addr string `default:"127.0.0.1:3000" help:"Listen TCP address."`
	} `embed:"" prefix:"listen-"`

	SQLiteURL    string `name:"sqlite-url" default:"file:data/hellopost.sqlite" help:"SQLite URI (file) for posts."`
	TemplatesDir string `default:""                                            help:"Directory with *.tmpl files overriding built-in templates."`
	MaxBodySize  int64  `default:"${default_max_body_size}"                    help:"Maximum request body size in bytes."`

	DebugAddr string `default:"127.0.0.1:8089" help:"Listen address for HTTP handlers for metrics, pprof, etc."`

	Log struct {
		Level  string `default:"${default_log_level}" help:"${help_log_level}"`
		Format string `default:"console"              help:"${help_log_format}"                     enum:"${enum_log_format}"`
		UUID   bool   `default:"false"                help:"Add instance UUID to all log messages." negatable:""`
	} `embed:"" prefix:"log-"`

	MetricsUUID bool `default:"false" help:"Add instance UUID to all metrics." negatable:""`

	OTelEndpoint string `name:"otel-endpoint" default:"" help:"OTLP/HTTP endpoint for traces; empty disables tracing."`
}

// Additional variables for the kong parsers.
var kongOptions = []kong.Option{
	kong.Vars{
		"default_log_level":     defaultLogLevel().String(),
		"default_max_body_size": fmt.Sprint(server.DefaultMaxBodySize),

		"enum_log_format": strings.Join(logging.Formats, ","),

		"help_log_format": fmt.Sprintf("Log format: '%s'.", strings.Join(logging.Formats, "', '")),
		"help_log_level":  fmt.Sprintf("Log level: '%s'.", strings.Join(logging.Levels, "', '")),
	},
	kong.DefaultEnvars("HELLOPOST"),
}

func main() {
	// environment variables take precedence over .env file
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("Failed to load .env file: %s.", err)
	}

	kong.Parse(&cli, kongOptions...)

	run()
}

// defaultLogLevel returns the default log level.
func defaultLogLevel() zapcore.Level {
	if version.Get().DevBuild {
		return zap.DebugLevel
	}

	return zap.InfoLevel
}

// setupState setups state provider.
func setupState() *state.Provider {
	var f string

	// https://github.com/alecthomas/kong/issues/389
	if cli.StateDir != "" && cli.StateDir != "-" {
		var err error
		if f, err = filepath.Abs(filepath.Join(cli.StateDir, "state.json")); err != nil {
			log.Fatalf("Failed to get path for state file: %s.", err)
		}
	}

	sp, err := state.NewProvider(f)
	if err != nil {
		log.Fatalf("Failed to create state provider: %s.", err)
	}

	return sp
}

// setupMetrics setups Prometheus metrics registerer with some metrics.
func setupMetrics(stateProvider *state.Provider) prometheus.Registerer {
	r := prometheus.DefaultRegisterer
	m := stateProvider.MetricsCollector(true)

	// we don't do it by default due to
	// https://prometheus.io/docs/instrumenting/writing_exporters/#target-labels-not-static-scraped-labels
	if cli.MetricsUUID {
		r = prometheus.WrapRegistererWith(
			prometheus.Labels{"uuid": stateProvider.Get().UUID},
			prometheus.DefaultRegisterer,
		)
		m = stateProvider.MetricsCollector(false)
	}

	r.MustRegister(m)

	return r
}

// setupLogger setups zap logger.
func setupLogger(stateProvider *state.Provider) *zap.Logger {
	info := version.Get()

	startupFields := []zap.Field{
		zap.String("version", info.Version),
		zap.String("commit", info.Commit),
		zap.String("branch", info.Branch),
		zap.Bool("dirty", info.Dirty),
		zap.String("package", info.Package),
		zap.Bool("devBuild", info.DevBuild),
		zap.Any("buildEnvironment", info.BuildEnvironment),
	}
	logUUID := stateProvider.Get().UUID

	// Similarly to Prometheus, unless requested, don't add UUID to all messages, but log it once at startup.
	if !cli.Log.UUID {
		startupFields = append(startupFields, zap.String("uuid", logUUID))
		logUUID = ""
	}

	level, err := zapcore.ParseLevel(cli.Log.Level)
	if err != nil {
		log.Fatal(err)
	}

	logging.Setup(level, cli.Log.Format, logUUID)
	l := zap.L()

	l.Info("Starting hellopost "+info.Version+"...", startupFields...)

	if devbuild.Enabled {
		l.Info("This is development build. The performance will be affected.")
	}

	return l
}

// dumpMetrics dumps all Prometheus metrics to stderr.
func dumpMetrics() {
	mfs := must.NotFail(prometheus.DefaultGatherer.Gather())

	for _, mf := range mfs {
		must.NotFail(expfmt.MetricFamilyToText(os.Stderr, mf))
	}
}

// run sets up environment based on provided flags and runs hellopost.
func run() {
	// to increase a chance of resource finalizers to spot problems
	if devbuild.Enabled {
		defer func() {
			runtime.GC()
			runtime.GC()
		}()
	}

	info := version.Get()

	if cli.Version {
		fmt.Fprintln(os.Stdout, "version:", info.Version)
		fmt.Fprintln(os.Stdout, "commit:", info.Commit)
		fmt.Fprintln(os.Stdout, "branch:", info.Branch)
		fmt.Fprintln(os.Stdout, "dirty:", info.Dirty)
		fmt.Fprintln(os.Stdout, "package:", info.Package)
		fmt.Fprintln(os.Stdout, "devBuild:", info.DevBuild)

		return
	}

	// safe to always enable
	runtime.SetBlockProfileRate(10000)

	stateProvider := setupState()

	metricsRegisterer := setupMetrics(stateProvider)

	logger := setupLogger(stateProvider)

	if _, err := maxprocs.Set(maxprocs.Logger(logger.Sugar().Debugf)); err != nil {
		logger.Sugar().Warnf("Failed to set GOMAXPROCS: %s.", err)
	}

	ctx, stop := ctxutil.SigTerm(context.Background())

	go func() {
		<-ctx.Done()
		logger.Info("Stopping...")
		stop()
	}()

	shutdownOtel, err := observability.SetupOtel("hellopost", cli.OTelEndpoint)
	if err != nil {
		logger.Sugar().Fatalf("Failed to setup OpenTelemetry: %s.", err)
	}

	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if err := shutdownOtel(shutdownCtx); err != nil {
			logger.Warn("Failed to shutdown OpenTelemetry.", zap.Error(err))
		}
	}()

	reg, err := templates.Load(&templates.LoadOpts{
		L:   logger.Named("templates"),
		Dir: cli.TemplatesDir,
	})
	if err != nil {
		logger.Sugar().Fatalf("Failed to load templates: %s.", err)
	}

	st, err := store.New(ctx, &store.NewOpts{
		URI: cli.SQLiteURL,
		L:   logger.Named("store"),
	})
	if err != nil {
		logger.Sugar().Fatalf("Failed to open store: %s.", err)
	}

	defer st.Close()

	metricsRegisterer.MustRegister(st)

	var wg sync.WaitGroup

	// https://github.com/alecthomas/kong/issues/389
	if cli.DebugAddr != "" && cli.DebugAddr != "-" {
		wg.Add(1)

		go func() {
			defer wg.Done()

			debug.RunHandler(ctx, cli.DebugAddr, &debug.Opts{
				L: logger.Named("debug"),
				R: metricsRegisterer,
				G: prometheus.DefaultGatherer,
				Readyz: []debug.Probe{
					func(ctx context.Context) bool {
						return st.Ping(ctx) == nil
					},
				},
			})
		}()
	}

	metrics := server.NewMetrics()
	metricsRegisterer.MustRegister(metrics)

	srv := server.New(&server.NewOpts{
		L:           logger.Named("server"),
		Templates:   reg,
		Records:     st,
		Metrics:     metrics,
		MaxBodySize: cli.MaxBodySize,
	})

	lis, err := server.Listen(&server.ListenOpts{
		L:               logger.Named("listener"),
		Handler:         srv,
		TCPAddr:         cli.Listen.Addr,
		ShutdownTimeout: 3 * time.Second,
	})
	if err != nil {
		logger.Sugar().Fatalf("Failed to listen: %s.", err)
	}

	if err = lis.Run(ctx); err != nil {
		logger.Error("Listener stopped", zap.Error(err))
	}

	stop()

	wg.Wait()

	if info.DevBuild {
		dumpMetrics()
	}
}
