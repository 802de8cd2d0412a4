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

package config

import (
	"fmt"
	"os"

	"github.com/srediag/scene-manager/api"
	"github.com/srediag/scene-manager/pkg/bootstrap"
	"github.com/srediag/scene-manager/pkg/events"
	"github.com/srediag/scene-manager/pkg/health"
	"github.com/srediag/scene-manager/pkg/lifecycle"
	"github.com/srediag/scene-manager/pkg/scene"
)

// EngineConfig resolves the lifecycle section against cat.
func (c Config) EngineConfig(cat *scene.Catalog) (lifecycle.Config, error) {
	lc := lifecycle.DefaultConfig()
	lc.RenderDelay = c.Lifecycle.RenderDelay
	if c.Lifecycle.PollInterval > 0 {
		lc.PollInterval = c.Lifecycle.PollInterval
	}
	lc.UseVRGameplay = c.Lifecycle.UseVRGameplay
	lc.UseTransitionScene = c.Lifecycle.UseTransitionScene
	lc.WorkerPoolSize = c.Lifecycle.WorkerPoolSize

	var err error
	if lc.GameplayScene, err = optional(cat, c.Lifecycle.GameplayScene); err != nil {
		return lc, err
	}
	if lc.VRGameplayScene, err = optional(cat, c.Lifecycle.VRGameplayScene); err != nil {
		return lc, err
	}
	if lc.TransitionScene, err = optional(cat, c.Lifecycle.TransitionScene); err != nil {
		return lc, err
	}
	return lc, lifecycle.VerifyConfig(lc)
}

// Handlers builds the bootstrap handlers in declaration order.
func (c Config) Handlers(cat *scene.Catalog, bus *events.Bus) ([]api.Handler, error) {
	out := make([]api.Handler, 0, len(c.Bootstrap.Handlers))
	for _, hc := range c.Bootstrap.Handlers {
		menu, err := lookup(cat, hc.Menu)
		if err != nil {
			return nil, fmt.Errorf("handler %s: %w", hc.Name, err)
		}
		opts := []bootstrap.HandlerOption{bootstrap.WithActive(!hc.Inactive)}
		if hc.PollInterval > 0 {
			opts = append(opts, bootstrap.WithPollInterval(hc.PollInterval))
		}
		if env := hc.RequireEnv; env != "" {
			opts = append(opts, bootstrap.WithEnabled(func() bool { return os.Getenv(env) != "" }))
		}

		switch hc.Kind {
		case KindMenu:
			out = append(out, bootstrap.NewMenuHandler(hc.Name, menu, bus, opts...))
		case KindDesktop:
			additional := make([]*scene.Descriptor, 0, len(hc.Additional))
			for _, name := range hc.Additional {
				d, err := lookup(cat, name)
				if err != nil {
					return nil, fmt.Errorf("handler %s: %w", hc.Name, err)
				}
				additional = append(additional, d)
			}
			out = append(out, bootstrap.NewDesktopHandler(hc.Name, menu, additional, bus, opts...))
		default:
			return nil, fmt.Errorf("handler %s: unknown kind %q", hc.Name, hc.Kind)
		}
	}
	return out, nil
}

func (c Config) PipelineConfig() bootstrap.Config {
	return bootstrap.Config{
		ManagersScene:   c.Bootstrap.ManagersScene,
		InitScene:       c.Bootstrap.InitScene,
		ExternalTrigger: c.Bootstrap.ExternalTrigger,
	}
}

func (c Config) StartupLoader(cat *scene.Catalog) (*bootstrap.StartupLoader, error) {
	sc := c.Bootstrap.Startup
	l := &bootstrap.StartupLoader{
		ShowTransition: sc.ShowTransition,
		ShowLoading:    sc.ShowLoading,
		Disabled:       sc.Disabled,
	}
	for _, name := range sc.Scenes {
		d, err := lookup(cat, name)
		if err != nil {
			return nil, fmt.Errorf("startup: %w", err)
		}
		l.Scenes = append(l.Scenes, d)
	}
	return l, nil
}

func (c Config) HealthConfig() health.Config {
	hc := health.DefaultConfig()
	if c.Health.GoroutineThreshold > 0 {
		hc.GoroutineThreshold = c.Health.GoroutineThreshold
	}
	if c.Health.StuckAfter > 0 {
		hc.StuckAfter = c.Health.StuckAfter
	}
	hc.MaxRSS = c.Health.MaxRSS
	return hc
}

func lookup(cat *scene.Catalog, name string) (*scene.Descriptor, error) {
	if d, ok := cat.Lookup(name); ok {
		return d, nil
	}
	return nil, fmt.Errorf("%w: %q", lifecycle.ErrUnknownScene, name)
}

func optional(cat *scene.Catalog, name string) (*scene.Descriptor, error) {
	if name == "" {
		return nil, nil
	}
	return lookup(cat, name)
}
