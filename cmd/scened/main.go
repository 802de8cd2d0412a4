/*
 * Copyright 2025 SREDiag Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Command scened runs the scene manager against the in-memory provider:
// it loads the configuration, starts the lifecycle engine, serves the
// health and metrics endpoints and drives the bootstrap pipeline until it
// receives a termination signal.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/srediag/scene-manager/adapter"
	"github.com/srediag/scene-manager/pkg/bootstrap"
	"github.com/srediag/scene-manager/pkg/config"
	"github.com/srediag/scene-manager/pkg/events"
	"github.com/srediag/scene-manager/pkg/health"
	"github.com/srediag/scene-manager/pkg/lifecycle"
	"github.com/srediag/scene-manager/pkg/provider"
	"github.com/srediag/scene-manager/pkg/registry"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to the configuration file (default $SCENES_CONFIG or ./scenes.yaml)")
		latency    = flag.Duration("latency", 100*time.Millisecond, "Simulated provider latency per load or unload")
		watch      = flag.Bool("watch", true, "Reload the log level when the configuration file changes")
		once       = flag.Bool("once", false, "Exit after the bootstrap pipeline terminates")
	)
	flag.Parse()

	if err := run(*configPath, *latency, *watch, *once); err != nil {
		fmt.Fprintf(os.Stderr, "scened: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, latency time.Duration, watch, once bool) (err error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, level, err := cfg.NewLogger()
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	events.SetLogger(log.Named("events"))
	lifecycle.SetLogger(log.Named("lifecycle"))
	bootstrap.SetLogger(log.Named("bootstrap"))

	ctx, stop := notifyContext(context.Background())
	defer stop()

	catalog, err := cfg.Catalog()
	if err != nil {
		return err
	}
	catalog.Reset()
	bus := events.NewBus()
	defer bus.Close()

	tracker := registry.NewTracker()
	tracker.Attach(bus)
	defer tracker.Detach()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	lc, err := cfg.EngineConfig(catalog)
	if err != nil {
		return fmt.Errorf("lifecycle config: %w", err)
	}
	lc.Registerer = reg

	mem := provider.NewMemory(provider.WithLatency(latency))
	engine, err := lifecycle.New(mem, mem, bus, tracker, catalog, lc)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, engine.Close()) }()
	if err := engine.Start(ctx); err != nil {
		return err
	}

	audit := adapter.NewAuditAdapter(log)
	audit.Attach(bus)
	defer audit.Detach()

	otelAdapter, err := adapter.NewOTelAdapter(nil)
	if err != nil {
		return err
	}
	otelAdapter.Attach(bus)
	defer otelAdapter.Detach()

	handlers, err := cfg.Handlers(catalog, bus)
	if err != nil {
		return err
	}
	pipeline, err := bootstrap.NewPipeline(engine, bus, handlers, cfg.PipelineConfig())
	if err != nil {
		return err
	}

	hc := adapter.NewHealthAdapter(cfg.Health.Listen, reg, engine, log.Named("health"))
	health.Register(hc.Checks(), cfg.HealthConfig(), catalog, pipeline.Done())
	serveErr := make(chan error, 1)
	go func() { serveErr <- hc.Serve(ctx) }()

	if watch && configPath != "" {
		reload := adapter.NewHotReloadAdapter(configPath, level, log.Named("config"))
		reload.OnReload(func(c config.Config) {
			log.Info("configuration reloaded", zap.Int("scenes", len(c.Scenes)))
		})
		if err := reload.Watch(); err != nil {
			log.Warn("configuration watch disabled", zap.Error(err))
		}
	}

	startup, err := cfg.StartupLoader(catalog)
	if err != nil {
		return err
	}
	log.Info("scene manager started",
		zap.String("run_id", pipeline.RunID()),
		zap.Int("scenes", catalog.Len()),
		zap.Int("handlers", len(handlers)))

	if n := startup.Run(bus); n > 0 {
		log.Info("startup scenes requested", zap.Int("count", n))
	}

	if err := pipeline.Run(ctx); err != nil {
		log.Error("bootstrap finished with errors", zap.Error(err))
		if once {
			return err
		}
	} else {
		log.Info("bootstrap finished", zap.Strings("triggered", pipeline.Triggered()))
	}
	if once {
		stop()
	}

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		if err := <-serveErr; err != nil {
			return err
		}
		return nil
	case err := <-serveErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("health endpoint: %w", err)
		}
		return nil
	}
}
