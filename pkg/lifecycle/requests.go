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

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/srediag/scene-manager/api"
	"github.com/srediag/scene-manager/internal/wait"
	"github.com/srediag/scene-manager/pkg/events"
	"github.com/srediag/scene-manager/pkg/scene"
)

var _ api.SceneLoader = (*Engine)(nil)

// Start subscribes the engine to the request channels of its bus. Requests
// run asynchronously under a context that Stop cancels.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return errors.New("lifecycle: engine already started")
	}
	for _, name := range e.bus.Missing() {
		Logger().Warn("bus channel not wired", zap.Error(&MissingDependencyError{Dependency: name}))
	}

	e.ctx, e.cancel = context.WithCancel(ctx)
	e.running = true
	e.rebuildTracker()

	load := func(ev events.SceneEvent, transition, loading bool) func(context.Context) error {
		return func(ctx context.Context) error {
			_, err := e.Load(ctx, ev.Scene, transition, loading)
			return err
		}
	}
	e.subs.Add(e.bus.LoadScene.Subscribe(func(ev events.SceneEvent) {
		e.spawn("load-scene", ev, load(ev, ev.ShowTransition, ev.ShowLoading))
	}))
	e.subs.Add(e.bus.LoadCamera.Subscribe(func(ev events.SceneEvent) {
		e.spawn("load-camera", ev, load(ev, false, false))
	}))
	e.subs.Add(e.bus.LoadPlayer.Subscribe(func(ev events.SceneEvent) {
		e.spawn("load-player", ev, load(ev, false, false))
	}))
	e.subs.Add(e.bus.LoadEnvironment.Subscribe(func(ev events.SceneEvent) {
		e.spawn("load-environment", ev, func(ctx context.Context) error {
			return e.LoadEnvironment(ctx, ev.Scene, ev.ShowTransition, ev.ShowLoading)
		})
	}))
	e.subs.Add(e.bus.LoadMenu.Subscribe(func(ev events.SceneEvent) {
		e.spawn("load-menu", ev, func(ctx context.Context) error {
			return e.LoadMenu(ctx, ev.Scene)
		})
	}))
	e.subs.Add(e.bus.UnloadScene.Subscribe(func(ev events.SceneEvent) {
		e.spawn("unload-scene", ev, func(ctx context.Context) error {
			return e.Unload(ctx, ev.Scene)
		})
	}))
	Logger().Info("scene engine started", zap.Int("catalog", e.catalogLen()))
	return nil
}

// rebuildTracker seeds the active set from the catalog. When the runtime can
// validate instances, scenes whose instance it no longer knows are left out.
func (e *Engine) rebuildTracker() {
	if e.catalog == nil {
		return
	}
	validator, _ := e.runtime.(api.InstanceValidator)
	e.tracker.Rebuild(e.catalog.All(), validator)
	Logger().Debug("active scenes rebuilt", zap.Int("active", e.tracker.Len()))
}

// Stop unsubscribes from the bus, cancels running requests and waits for
// them to return.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.subs.Close()
	e.cancel()
	e.mu.Unlock()

	e.flows.Wait()
	Logger().Info("scene engine stopped")
}

// Close stops the engine and releases its worker pool.
func (e *Engine) Close() error {
	e.Stop()
	e.pool.Release()
	return nil
}

func (e *Engine) spawn(kind string, ev events.SceneEvent, fn func(context.Context) error) {
	if ev.Scene == nil {
		Logger().Warn("request without scene", zap.String("request", kind))
		return
	}
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	ctx := e.ctx
	e.flows.Add(1)
	e.mu.Unlock()

	e.pool.Go(func() {
		defer e.flows.Done()
		if err := failure(fn(ctx)); err != nil {
			Logger().Error("scene request failed",
				zap.String("request", kind),
				zap.Stringer("scene", ev.Scene),
				zap.Error(err))
		}
	})
}

// LoadScene loads a catalog scene by name. A scene that is already loaded
// returns its instance; a scene held by another operation is waited for.
func (e *Engine) LoadScene(ctx context.Context, req api.SceneRequest) (api.Instance, error) {
	d, err := e.lookup(req.Scene)
	if err != nil {
		return nil, err
	}
	inst, err := e.Load(ctx, d, req.ShowTransition, req.ShowLoading)
	switch {
	case err == nil:
		return inst, nil
	case errors.Is(err, ErrAlreadyLoaded):
		return d.Instance(), nil
	case errors.Is(err, ErrAlreadyInFlight):
		if err := wait.Until(ctx, e.pollInterval(), func() bool { return !d.Processing() }); err != nil {
			return nil, err
		}
		if inst := d.Instance(); inst != nil {
			return inst, nil
		}
		return nil, &OperationError{Op: opLoad, Scene: d.Name, Err: errors.New("concurrent operation left the scene unloaded")}
	default:
		return nil, err
	}
}

// UnloadScene unloads a catalog scene by name. Benign outcomes return nil.
func (e *Engine) UnloadScene(ctx context.Context, name string) error {
	d, err := e.lookup(name)
	if err != nil {
		return err
	}
	return failure(e.Unload(ctx, d))
}

// IsLoaded reports whether the named scene is in the active set.
func (e *Engine) IsLoaded(name string) bool {
	d, err := e.lookup(name)
	return err == nil && e.IsSceneLoaded(d)
}

func (e *Engine) lookup(name string) (*scene.Descriptor, error) {
	if e.catalog != nil {
		if d, ok := e.catalog.Lookup(name); ok {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownScene, name)
}

func (e *Engine) catalogLen() int {
	if e.catalog == nil {
		return 0
	}
	return e.catalog.Len()
}

func (e *Engine) pollInterval() time.Duration {
	if e.cfg.PollInterval > 0 {
		return e.cfg.PollInterval
	}
	return defaultPollInterval
}
