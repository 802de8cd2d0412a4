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

// Package bootstrap runs the one-time startup pipeline: it brings up the
// baseline managers scene, then drives a list of handlers through the
// initialize, trigger and unload phases.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/srediag/scene-manager/api"
	"github.com/srediag/scene-manager/internal/workgroup"
	"github.com/srediag/scene-manager/pkg/events"
	"github.com/srediag/scene-manager/pkg/lifecycle"
)

// ErrAlreadyRun is returned by Run on every call after the first.
var ErrAlreadyRun = errors.New("bootstrap: pipeline already run")

// Config names the scenes the pipeline owns.
type Config struct {
	// ManagersScene is loaded before the trigger and stays loaded.
	ManagersScene string
	// InitScene is the bootstrap-only scene unloaded once the handlers
	// are done. Empty skips the unload.
	InitScene string
	// ExternalTrigger makes the pipeline wait for someone else to publish
	// bootstrap-begin instead of publishing it after the baseline loads.
	ExternalTrigger bool

	Pool   *workgroup.Pool
	Tracer trace.Tracer
}

// Pipeline is the bootstrap state machine. It runs at most once.
type Pipeline struct {
	loader   api.SceneLoader
	bus      *events.Bus
	handlers []api.Handler
	cfg      Config
	tracer   trace.Tracer
	runID    string

	state atomic.Int32
	done  chan struct{}

	mu       sync.Mutex
	triggers []string
}

func NewPipeline(loader api.SceneLoader, bus *events.Bus, handlers []api.Handler, cfg Config) (*Pipeline, error) {
	if loader == nil {
		return nil, &lifecycle.MissingDependencyError{Dependency: "scene loader"}
	}
	if cfg.ManagersScene == "" {
		return nil, errors.New("bootstrap: managers scene not configured")
	}
	for i, h := range handlers {
		if h == nil {
			return nil, fmt.Errorf("bootstrap: handler %d is nil", i)
		}
	}
	if bus == nil {
		bus = &events.Bus{}
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer("github.com/srediag/scene-manager/pkg/bootstrap")
	}
	return &Pipeline{
		loader:   loader,
		bus:      bus,
		handlers: handlers,
		cfg:      cfg,
		tracer:   tracer,
		runID:    uuid.NewString(),
		done:     make(chan struct{}),
	}, nil
}

func (p *Pipeline) State() State { return State(p.state.Load()) }

// RunID identifies this pipeline in logs and traces.
func (p *Pipeline) RunID() string { return p.runID }

// Done is closed once the pipeline reaches Terminated.
func (p *Pipeline) Done() <-chan struct{} { return p.done }

// Triggered returns the names of the handlers whose trigger ran, in
// completion order.
func (p *Pipeline) Triggered() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.triggers))
	copy(out, p.triggers)
	return out
}

// Run executes the whole pipeline and returns once it is Terminated.
// Cancellation of ctx is never reported: the remaining phases observe the
// canceled context and the pipeline still terminates. Handler and scene
// failures are combined into the returned error.
func (p *Pipeline) Run(ctx context.Context) error {
	if !p.state.CompareAndSwap(int32(Idle), int32(LoadingBaseline)) {
		return ErrAlreadyRun
	}
	log := Logger().With(zap.String("run", p.runID))
	ctx, span := p.tracer.Start(ctx, "bootstrap.run", trace.WithAttributes(
		attribute.String("bootstrap.run_id", p.runID),
		attribute.Int("bootstrap.handlers", len(p.handlers)),
	))
	defer span.End()
	defer p.terminate(log)

	if _, err := p.loader.LoadScene(ctx, api.SceneRequest{Scene: p.cfg.ManagersScene}); err != nil {
		if ctx.Err() != nil {
			log.Debug("bootstrap canceled while loading baseline")
			return nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("baseline scene failed", zap.String("scene", p.cfg.ManagersScene), zap.Error(err))
		return fmt.Errorf("bootstrap: load %s: %w", p.cfg.ManagersScene, err)
	}

	if !p.waitForTrigger(ctx, log) {
		return nil
	}

	var errs error
	p.enter(Initializing, log)
	errs = multierr.Append(errs, p.initialize(ctx, log))

	p.enter(Triggering, log)
	errs = multierr.Append(errs, p.trigger(ctx, log))

	p.enter(Unloading, log)
	errs = multierr.Append(errs, p.unload(ctx, log))

	if p.cfg.InitScene != "" {
		if err := p.loader.UnloadScene(ctx, p.cfg.InitScene); err != nil && !lifecycle.IsBenign(err) {
			log.Error("init scene unload failed", zap.String("scene", p.cfg.InitScene), zap.Error(err))
			errs = multierr.Append(errs, err)
		}
	}
	if errs != nil {
		span.RecordError(errs)
		span.SetStatus(codes.Error, errs.Error())
	}
	return errs
}

func (p *Pipeline) waitForTrigger(ctx context.Context, log *zap.Logger) bool {
	triggered := make(chan struct{}, 1)
	sub := p.bus.BootstrapBegin.Subscribe(func(events.Signal) {
		select {
		case triggered <- struct{}{}:
		default:
		}
	})
	defer sub.Close()

	p.enter(WaitingForTrigger, log)
	if !p.cfg.ExternalTrigger {
		if p.bus.BootstrapBegin == nil {
			log.Warn("bootstrap-begin not wired, starting immediately",
				zap.Error(&lifecycle.MissingDependencyError{Dependency: "bootstrap-begin"}))
			return true
		}
		p.bus.BootstrapBegin.Publish(events.Signal{})
	}
	select {
	case <-triggered:
		return true
	case <-ctx.Done():
		log.Debug("bootstrap canceled while waiting for trigger")
		return false
	}
}

func (p *Pipeline) initialize(ctx context.Context, log *zap.Logger) error {
	for _, h := range p.handlers {
		if r, ok := h.(api.ActiveResetter); ok {
			r.ResetActive()
		}
	}
	err := p.fanOut(ctx, "initialize", p.handlers, func(ctx context.Context, h api.Handler) error {
		if err := h.Initialize(ctx); err != nil {
			h.SetActive(false)
			return err
		}
		return nil
	})

	active := 0
	for _, h := range p.handlers {
		if h.Active() {
			active++
		}
	}
	if active == 0 {
		log.Warn("no active bootstrap handlers", zap.Int("handlers", len(p.handlers)))
	}
	return err
}

func (p *Pipeline) trigger(ctx context.Context, log *zap.Logger) error {
	var active []api.Handler
	for _, h := range p.handlers {
		if h.Active() {
			active = append(active, h)
		} else {
			log.Debug("handler inactive, skipping trigger", zap.String("handler", h.Name()))
		}
	}
	return p.fanOut(ctx, "trigger", active, func(ctx context.Context, h api.Handler) error {
		err := h.Trigger(ctx)
		p.mu.Lock()
		p.triggers = append(p.triggers, h.Name())
		p.mu.Unlock()
		return err
	})
}

func (p *Pipeline) unload(ctx context.Context, _ *zap.Logger) error {
	return p.fanOut(ctx, "unload", p.handlers, func(ctx context.Context, h api.Handler) error {
		return h.Unload(ctx)
	})
}

// fanOut runs fn for every handler concurrently and joins them. Canceled
// handlers are dropped from the result.
func (p *Pipeline) fanOut(ctx context.Context, phase string, handlers []api.Handler, fn func(context.Context, api.Handler) error) error {
	ctx, span := p.tracer.Start(ctx, "bootstrap."+phase, trace.WithAttributes(
		attribute.Int("bootstrap.handlers", len(handlers)),
	))
	defer span.End()

	g := p.cfg.Pool.Group()
	for _, h := range handlers {
		g.Go(func() error {
			err := fn(ctx, h)
			if err == nil || lifecycle.IsBenign(err) {
				return nil
			}
			Logger().Error("bootstrap handler failed",
				zap.String("run", p.runID),
				zap.String("phase", phase),
				zap.String("handler", h.Name()),
				zap.Error(err))
			return fmt.Errorf("%s %s: %w", phase, h.Name(), err)
		})
	}
	err := g.Wait()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (p *Pipeline) enter(s State, log *zap.Logger) {
	p.state.Store(int32(s))
	log.Debug("bootstrap state", zap.Stringer("state", s))
}

func (p *Pipeline) terminate(log *zap.Logger) {
	p.enter(Terminated, log)
	close(p.done)
	log.Info("bootstrap finished", zap.Strings("triggered", p.Triggered()))
}
