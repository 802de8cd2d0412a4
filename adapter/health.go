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

// Package adapter connects the scene manager to external systems: HTTP
// health and metrics endpoints, OpenTelemetry, audit logging and
// configuration reloads.
package adapter

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// DebugDumper writes a human readable state dump.
type DebugDumper interface {
	DebugScenes(w io.Writer) error
}

// HealthAdapter serves /live, /ready, /metrics and /debug/scenes.
type HealthAdapter struct {
	health healthcheck.Handler
	mux    *http.ServeMux
	server *http.Server
	log    *zap.Logger
}

// NewHealthAdapter builds the HTTP handler tree. The healthcheck handler also
// exports its check results as Prometheus gauges on reg.
func NewHealthAdapter(addr string, reg *prometheus.Registry, dump DebugDumper, log *zap.Logger) *HealthAdapter {
	if log == nil {
		log = zap.NewNop()
	}
	var health healthcheck.Handler
	if reg != nil {
		health = healthcheck.NewMetricsHandler(reg, "scenes")
	} else {
		health = healthcheck.NewHandler()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/live", health.LiveEndpoint)
	mux.HandleFunc("/ready", health.ReadyEndpoint)
	if reg != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	}
	if dump != nil {
		mux.HandleFunc("/debug/scenes", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			if err := dump.DebugScenes(w); err != nil {
				log.Warn("debug dump failed", zap.Error(err))
			}
		})
	}

	return &HealthAdapter{
		health: health,
		mux:    mux,
		server: &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		log:    log,
	}
}

// Checks is where liveness and readiness checks get registered.
func (a *HealthAdapter) Checks() healthcheck.Handler { return a.health }

func (a *HealthAdapter) Handler() http.Handler { return a.mux }

// Serve listens until ctx is done, then shuts the server down.
func (a *HealthAdapter) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.log.Info("health endpoint listening", zap.String("addr", a.server.Addr))
		errCh <- a.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	}
}
