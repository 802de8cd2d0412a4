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

// Package lifecycle loads and unloads scenes through an api.Provider while
// enforcing the per-descriptor guard, and composes those primitives into the
// environment and menu switch flows.
package lifecycle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/srediag/scene-manager/api"
	"github.com/srediag/scene-manager/internal/wait"
	"github.com/srediag/scene-manager/internal/workgroup"
	"github.com/srediag/scene-manager/pkg/events"
	"github.com/srediag/scene-manager/pkg/registry"
	"github.com/srediag/scene-manager/pkg/scene"
)

const instrumentationName = "github.com/srediag/scene-manager/pkg/lifecycle"

var errNoInstance = errors.New("provider returned no instance")

// Engine owns every scene load and unload of the process.
type Engine struct {
	provider api.Provider
	runtime  api.Runtime
	bus      *events.Bus
	tracker  *registry.Tracker
	catalog  *scene.Catalog
	cfg      Config

	pool     *workgroup.Pool
	metrics  *Metrics
	tracer   trace.Tracer
	inFlight metric.Int64UpDownCounter
	loading  atomic.Int64

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	subs    events.Subscriptions
	flows   sync.WaitGroup
}

// New builds an engine. The provider and tracker are required; a nil runtime
// leaves the active render context untouched, a nil bus or a bus with unwired
// channels drops the matching notifications, and a nil catalog disables
// lookups by name.
func New(provider api.Provider, runtime api.Runtime, bus *events.Bus, tracker *registry.Tracker, catalog *scene.Catalog, cfg Config) (*Engine, error) {
	if provider == nil {
		return nil, &MissingDependencyError{Dependency: "provider"}
	}
	if tracker == nil {
		return nil, &MissingDependencyError{Dependency: "tracker"}
	}
	if err := VerifyConfig(cfg); err != nil {
		return nil, err
	}
	if bus == nil {
		bus = &events.Bus{}
	}

	pool, err := workgroup.NewPool(cfg.WorkerPoolSize)
	if err != nil {
		return nil, err
	}
	m, err := NewMetrics(cfg.Registerer)
	if err != nil {
		pool.Release()
		return nil, err
	}

	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer(instrumentationName)
	}
	meter := cfg.Meter
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}
	inFlight, err := meter.Int64UpDownCounter("scenes.in_flight",
		metric.WithDescription("Scene operations currently holding a guard."))
	if err != nil {
		pool.Release()
		return nil, err
	}

	e := &Engine{
		provider: provider,
		runtime:  runtime,
		bus:      bus,
		tracker:  tracker,
		catalog:  catalog,
		cfg:      cfg,
		pool:     pool,
		metrics:  m,
		tracer:   tracer,
		inFlight: inFlight,
	}
	tracker.OnChange(m.setActive)
	m.setActive(tracker.Len())
	return e, nil
}

func (e *Engine) Bus() *events.Bus           { return e.bus }
func (e *Engine) Tracker() *registry.Tracker { return e.tracker }
func (e *Engine) Catalog() *scene.Catalog    { return e.catalog }
func (e *Engine) Metrics() *Metrics          { return e.metrics }

// Loading reports whether any load or unload is in progress.
func (e *Engine) Loading() bool {
	return e.loading.Load() > 0
}

// IsSceneLoaded reports whether d is in the active set. The set follows the
// scene-loaded notifications, so it can trail d.Loaded() for a moment while
// another goroutine is still delivering them.
func (e *Engine) IsSceneLoaded(d *scene.Descriptor) bool {
	return d != nil && e.tracker.Contains(d)
}

// Load loads d. ErrAlreadyInFlight and ErrAlreadyLoaded come back without
// any side effect. On success the guard is released before the transition
// and loading toggles are lowered, and both happen before the ready
// notifications are published.
func (e *Engine) Load(ctx context.Context, d *scene.Descriptor, showTransition, showLoading bool) (api.Instance, error) {
	if d == nil {
		return nil, ErrNilScene
	}
	g, err := d.TryBeginLoad()
	if err != nil {
		e.metrics.observe(opLoad, d, outcomeOf(err), 0)
		Logger().Debug("load skipped", zap.Stringer("scene", d), zap.Error(err))
		return nil, err
	}
	defer g.Release()

	ctx, span := e.tracer.Start(ctx, "scene.load", trace.WithAttributes(sceneAttrs(d)...))
	defer span.End()
	done := e.begin(ctx, d)
	defer done()

	start := time.Now()
	var loadingRaised bool
	finish := func(err error) error {
		g.Release()
		if showTransition {
			e.toggleTransition(false)
		}
		if loadingRaised {
			e.toggleLoading(false)
		}
		e.metrics.observe(opLoad, d, outcomeOf(err), time.Since(start).Seconds())
		record(span, err)
		return err
	}

	if showTransition {
		e.toggleTransition(true)
		if err := wait.Sleep(ctx, e.cfg.RenderDelay); err != nil {
			return nil, finish(err)
		}
	}
	if showLoading {
		e.toggleLoading(true)
		loadingRaised = true
	}

	inst, err := e.provider.LoadAsync(ctx, d.Ref, api.LoadAdditive, true)
	switch {
	case err != nil && ctx.Err() != nil:
		Logger().Debug("load canceled", zap.Stringer("scene", d), zap.Error(err))
		return nil, finish(ctx.Err())
	case err == nil && inst == nil:
		err = errNoInstance
		fallthrough
	case err != nil:
		err = &OperationError{Op: opLoad, Scene: d.Name, Err: err}
		Logger().Error("load failed", zap.Stringer("scene", d), zap.Error(err))
		return nil, finish(err)
	}

	g.Commit(inst)
	_ = finish(nil)
	Logger().Debug("scene loaded", zap.Stringer("scene", d), zap.String("instance", inst.ID()))
	e.bus.SceneReady.Publish(events.Signal{})
	e.bus.SceneLoaded.Publish(events.SceneEvent{Scene: d, ShowTransition: showTransition, ShowLoading: showLoading})
	return inst, nil
}

// Unload unloads d. ErrAlreadyInFlight and ErrNotLoaded come back without
// any side effect. A provider failure keeps the instance so the unload can be
// retried.
func (e *Engine) Unload(ctx context.Context, d *scene.Descriptor) error {
	if d == nil {
		return ErrNilScene
	}
	g, err := d.TryBeginUnload()
	if err != nil {
		e.metrics.observe(opUnload, d, outcomeOf(err), 0)
		Logger().Debug("unload skipped", zap.Stringer("scene", d), zap.Error(err))
		return err
	}
	defer g.Release()

	ctx, span := e.tracer.Start(ctx, "scene.unload", trace.WithAttributes(sceneAttrs(d)...))
	defer span.End()
	done := e.begin(ctx, d)
	defer done()

	start := time.Now()
	err = e.provider.UnloadAsync(ctx, d.Instance())
	switch {
	case err != nil && ctx.Err() != nil:
		err = ctx.Err()
	case err != nil:
		err = &OperationError{Op: opUnload, Scene: d.Name, Err: err}
		Logger().Error("unload failed", zap.Stringer("scene", d), zap.Error(err))
	default:
		g.Clear()
	}
	g.Release()
	e.metrics.observe(opUnload, d, outcomeOf(err), time.Since(start).Seconds())
	record(span, err)
	if err != nil {
		return err
	}

	Logger().Debug("scene unloaded", zap.Stringer("scene", d))
	e.bus.SceneUnloaded.Publish(events.SceneEvent{Scene: d})
	return nil
}

func (e *Engine) begin(ctx context.Context, d *scene.Descriptor) func() {
	attrs := metric.WithAttributes(attribute.String("category", d.Category.String()))
	e.loading.Add(1)
	e.metrics.inFlight.Inc()
	e.inFlight.Add(ctx, 1, attrs)
	return func() {
		e.inFlight.Add(context.WithoutCancel(ctx), -1, attrs)
		e.metrics.inFlight.Dec()
		e.loading.Add(-1)
	}
}

func (e *Engine) setActive(inst api.Instance) {
	if e.runtime == nil || inst == nil {
		return
	}
	if err := e.runtime.SetActive(inst); err != nil {
		Logger().Warn("set active scene", zap.String("instance", inst.ID()), zap.Error(err))
	}
}

func (e *Engine) toggleTransition(on bool) { e.bus.ToggleTransition.Publish(on) }
func (e *Engine) toggleLoading(on bool)    { e.bus.ToggleLoading.Publish(on) }

func sceneAttrs(d *scene.Descriptor) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("scene.name", d.Name),
		attribute.String("scene.category", d.Category.String()),
	}
}

func record(span trace.Span, err error) {
	if failure(err) == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
