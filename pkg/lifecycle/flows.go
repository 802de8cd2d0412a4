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

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/srediag/scene-manager/api"
	"github.com/srediag/scene-manager/internal/wait"
	"github.com/srediag/scene-manager/pkg/events"
	"github.com/srediag/scene-manager/pkg/scene"
)

// gameplayCategories are unloaded by the menu switch.
var gameplayCategories = []scene.Category{
	scene.Environment,
	scene.Gameplay,
	scene.TransitionScene,
	scene.Player,
}

// LoadEnvironment switches to env. The gameplay scene and, when a transition
// is shown, the transition scene load next to the environment; the overlay
// comes down and gameplay input is enabled once those two joined. The
// environment becomes the active scene when its own load completes.
// Benign outcomes return nil.
func (e *Engine) LoadEnvironment(ctx context.Context, env *scene.Descriptor, showTransition, showLoading bool) error {
	if env == nil {
		return ErrNilScene
	}
	if env.Loaded() || env.Processing() {
		Logger().Debug("environment switch skipped", zap.Stringer("scene", env))
		return nil
	}

	ctx, span := e.tracer.Start(ctx, "scene.load_environment", trace.WithAttributes(sceneAttrs(env)...))
	defer span.End()

	if showTransition {
		e.toggleTransition(true)
		if err := wait.Sleep(ctx, e.cfg.RenderDelay); err != nil {
			e.toggleTransition(false)
			return nil
		}
	}
	if showLoading {
		e.toggleLoading(true)
	}

	support := e.pool.Group()
	if gp := e.gameplayScene(); gp != nil {
		support.Go(func() error {
			_, err := e.Load(ctx, gp, false, false)
			return failure(err)
		})
	}
	if showTransition {
		e.bus.DisableAllInput.Publish(events.Signal{})
		if ts := e.transitionScene(); ts != nil {
			support.Go(func() error {
				_, err := e.Load(ctx, ts, false, false)
				return failure(err)
			})
		}
	}

	var inst api.Instance
	envGroup := e.pool.Group()
	envGroup.Go(func() error {
		var err error
		inst, err = e.Load(ctx, env, false, false)
		return failure(err)
	})

	supportErr := support.Wait()
	if showTransition {
		e.toggleTransition(false)
		_ = wait.Sleep(ctx, e.cfg.RenderDelay)
	}
	e.bus.EnableGameplayInput.Publish(events.Signal{})

	envErr := envGroup.Wait()
	e.setActive(inst)
	if showLoading {
		e.toggleLoading(false)
	}

	err := multierr.Append(supportErr, envErr)
	record(span, err)
	if err != nil {
		Logger().Error("environment switch", zap.Stringer("scene", env), zap.Error(err))
		return err
	}
	if ctx.Err() == nil {
		e.bus.EnvironmentReady.Publish(events.Signal{})
	}
	return nil
}

// LoadMenu switches to menu: input is disabled, the gameplay scenes are
// unloaded while the menu loads, then the menu becomes active and input is
// re-enabled for its category. Categories other than Menu and VRMenu enable
// no input.
func (e *Engine) LoadMenu(ctx context.Context, menu *scene.Descriptor) error {
	if menu == nil {
		return ErrNilScene
	}

	ctx, span := e.tracer.Start(ctx, "scene.load_menu", trace.WithAttributes(sceneAttrs(menu)...))
	defer span.End()

	e.bus.DisableAllInput.Publish(events.Signal{})
	e.toggleTransition(true)
	e.toggleLoading(true)
	lower := func() {
		e.toggleLoading(false)
		e.toggleTransition(false)
	}
	if err := wait.Sleep(ctx, e.cfg.RenderDelay); err != nil {
		lower()
		return nil
	}

	var inst api.Instance
	g := e.pool.Group()
	g.Go(func() error { return e.UnloadGameplayScenes(ctx) })
	g.Go(func() error {
		var err error
		inst, err = e.Load(ctx, menu, false, false)
		return failure(err)
	})
	err := g.Wait()
	record(span, err)

	e.setActive(inst)
	lower()
	if serr := wait.Sleep(ctx, e.cfg.RenderDelay); serr != nil {
		return err
	}

	switch menu.Category {
	case scene.Menu:
		e.bus.EnableUIInput.Publish(events.Signal{})
	case scene.VRMenu:
		e.bus.EnableVRInput.Publish(events.Signal{})
	default:
		Logger().Debug("no input mode for menu category", zap.Stringer("scene", menu))
	}

	if err != nil {
		Logger().Error("menu switch", zap.Stringer("scene", menu), zap.Error(err))
	}
	return err
}

// UnloadGameplayScenes unloads every tracked environment, gameplay,
// transition and player scene concurrently. Catalog scenes that are already
// loaded but not yet tracked are included too.
func (e *Engine) UnloadGameplayScenes(ctx context.Context) error {
	g := e.pool.Group()
	for _, d := range e.gameplayLoaded() {
		g.Go(func() error { return failure(e.Unload(ctx, d)) })
	}
	return g.Wait()
}

// gameplayLoaded merges the tracker's view with the catalog's loaded flags.
// The tracker is updated from scene-loaded notifications and may briefly
// trail a load that has already returned.
func (e *Engine) gameplayLoaded() []*scene.Descriptor {
	out := e.tracker.ByCategory(gameplayCategories...)
	if e.catalog == nil {
		return out
	}
	seen := make(map[*scene.Descriptor]struct{}, len(out))
	for _, d := range out {
		seen[d] = struct{}{}
	}
	for _, d := range e.catalog.ByCategory(gameplayCategories...) {
		if _, ok := seen[d]; ok || !d.Loaded() {
			continue
		}
		out = append(out, d)
	}
	return out
}

func (e *Engine) gameplayScene() *scene.Descriptor {
	if e.cfg.UseVRGameplay {
		return e.cfg.VRGameplayScene
	}
	return e.cfg.GameplayScene
}

func (e *Engine) transitionScene() *scene.Descriptor {
	if !e.cfg.UseTransitionScene {
		return nil
	}
	return e.cfg.TransitionScene
}
