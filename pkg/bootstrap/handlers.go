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

package bootstrap

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/srediag/scene-manager/api"
	"github.com/srediag/scene-manager/internal/wait"
	"github.com/srediag/scene-manager/pkg/events"
	"github.com/srediag/scene-manager/pkg/lifecycle"
	"github.com/srediag/scene-manager/pkg/scene"
)

const defaultPollInterval = 20 * time.Millisecond

var (
	_ api.Handler        = (*MenuHandler)(nil)
	_ api.Handler        = (*DesktopHandler)(nil)
	_ api.ActiveResetter = (*BaseHandler)(nil)
)

// HandlerOption configures the built-in handlers.
type HandlerOption func(*handlerOptions)

type handlerOptions struct {
	active  bool
	enabled func() bool
	poll    time.Duration
}

// WithActive sets the configured active flag. Handlers are active by default.
func WithActive(active bool) HandlerOption {
	return func(o *handlerOptions) { o.active = active }
}

// WithEnabled installs a predicate checked during initialize; a handler
// whose predicate reports false switches itself off for the run.
func WithEnabled(fn func() bool) HandlerOption {
	return func(o *handlerOptions) { o.enabled = fn }
}

// WithPollInterval paces the wait for the menu to be loaded.
func WithPollInterval(d time.Duration) HandlerOption {
	return func(o *handlerOptions) { o.poll = d }
}

func buildOptions(opts []HandlerOption) handlerOptions {
	o := handlerOptions{active: true, poll: defaultPollInterval}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// BaseHandler carries the name and active flag shared by handlers. Embed it
// and implement Trigger.
type BaseHandler struct {
	name       string
	configured bool
	active     atomic.Bool
	enabled    func() bool
}

func NewBaseHandler(name string, opts ...HandlerOption) *BaseHandler {
	o := buildOptions(opts)
	h := &BaseHandler{name: name, configured: o.active, enabled: o.enabled}
	h.active.Store(o.active)
	return h
}

func (h *BaseHandler) Name() string          { return h.name }
func (h *BaseHandler) Active() bool          { return h.active.Load() }
func (h *BaseHandler) SetActive(active bool) { h.active.Store(active) }

// ResetActive restores the configured flag.
func (h *BaseHandler) ResetActive() { h.active.Store(h.configured) }

// Initialize applies the enable predicate.
func (h *BaseHandler) Initialize(context.Context) error {
	if h.enabled != nil && !h.enabled() {
		h.SetActive(false)
	}
	return nil
}

func (h *BaseHandler) Unload(context.Context) error { return nil }

// MenuHandler requests the menu scene and waits until it is loaded.
type MenuHandler struct {
	*BaseHandler

	menu   *scene.Descriptor
	bus    *events.Bus
	poll   time.Duration
	target atomic.Pointer[scene.Descriptor]
}

func NewMenuHandler(name string, menu *scene.Descriptor, bus *events.Bus, opts ...HandlerOption) *MenuHandler {
	o := buildOptions(opts)
	return &MenuHandler{
		BaseHandler: NewBaseHandler(name, opts...),
		menu:        menu,
		bus:         bus,
		poll:        o.poll,
	}
}

// Trigger publishes a menu load request with a transition and waits for the
// menu to be loaded. Cancellation ends the wait without an error.
func (h *MenuHandler) Trigger(ctx context.Context) error {
	if err := h.requestMenu(); err != nil {
		return err
	}
	h.waitForMenu(ctx)
	return nil
}

// Unload forgets the requested menu.
func (h *MenuHandler) Unload(context.Context) error {
	h.target.Store(nil)
	return nil
}

// MenuLoaded reports whether the requested menu is loaded.
func (h *MenuHandler) MenuLoaded() bool {
	m := h.target.Load()
	return m != nil && m.Loaded() && m.Instance() != nil
}

func (h *MenuHandler) requestMenu() error {
	if h.menu == nil {
		return errors.New("menu scene not configured")
	}
	if h.bus == nil || h.bus.LoadMenu == nil {
		err := &lifecycle.MissingDependencyError{Dependency: "load-menu"}
		Logger().Error("cannot request menu", zap.String("handler", h.Name()), zap.Error(err))
		return err
	}
	h.target.Store(h.menu)
	h.bus.LoadMenu.Publish(events.SceneEvent{Scene: h.menu, ShowTransition: true})
	return nil
}

func (h *MenuHandler) waitForMenu(ctx context.Context) bool {
	if err := wait.Until(ctx, h.poll, h.MenuLoaded); err != nil {
		Logger().Debug("menu wait ended", zap.String("handler", h.Name()), zap.Error(err))
		return false
	}
	return true
}

// DesktopHandler loads the menu like MenuHandler, then requests the
// additional scenes without waiting for them.
type DesktopHandler struct {
	*MenuHandler

	additional []*scene.Descriptor
}

func NewDesktopHandler(name string, menu *scene.Descriptor, additional []*scene.Descriptor, bus *events.Bus, opts ...HandlerOption) *DesktopHandler {
	return &DesktopHandler{
		MenuHandler: NewMenuHandler(name, menu, bus, opts...),
		additional:  additional,
	}
}

func (h *DesktopHandler) Trigger(ctx context.Context) error {
	if err := h.requestMenu(); err != nil {
		return err
	}
	if !h.waitForMenu(ctx) {
		return nil
	}
	if len(h.additional) == 0 {
		return nil
	}
	if h.bus.LoadScene == nil {
		err := &lifecycle.MissingDependencyError{Dependency: "load-scene"}
		Logger().Error("cannot request additional scenes", zap.String("handler", h.Name()), zap.Error(err))
		return err
	}
	for _, d := range h.additional {
		if d == nil {
			continue
		}
		h.bus.LoadScene.Publish(events.SceneEvent{Scene: d, ShowTransition: true})
	}
	return nil
}
