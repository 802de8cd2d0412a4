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

package events

import "github.com/srediag/scene-manager/pkg/scene"

// SceneEvent carries a scene together with the presentation flags of the
// request that produced it.
type SceneEvent struct {
	Scene          *scene.Descriptor
	ShowTransition bool
	ShowLoading    bool
}

// Signal is the payload of channels that carry no data.
type Signal struct{}

// Bus groups every channel the scene manager listens or broadcasts on.
// A nil field is an unwired channel: publishing on it does nothing.
type Bus struct {
	// Requests.
	LoadScene       *Channel[SceneEvent]
	LoadEnvironment *Channel[SceneEvent]
	LoadMenu        *Channel[SceneEvent]
	LoadCamera      *Channel[SceneEvent]
	LoadPlayer      *Channel[SceneEvent]
	UnloadScene     *Channel[SceneEvent]

	// Presentation side effects.
	ToggleTransition *Channel[bool]
	ToggleLoading    *Channel[bool]

	// Input gating.
	DisableAllInput     *Channel[Signal]
	EnableUIInput       *Channel[Signal]
	EnableGameplayInput *Channel[Signal]
	EnableVRInput       *Channel[Signal]

	// Completion notifications.
	SceneReady       *Channel[Signal]
	SceneLoaded      *Channel[SceneEvent]
	SceneUnloaded    *Channel[SceneEvent]
	EnvironmentReady *Channel[Signal]

	BootstrapBegin *Channel[Signal]
}

// NewBus returns a bus with every channel wired.
func NewBus() *Bus {
	return &Bus{
		LoadScene:       NewChannel[SceneEvent]("load-scene"),
		LoadEnvironment: NewChannel[SceneEvent]("load-environment"),
		LoadMenu:        NewChannel[SceneEvent]("load-menu"),
		LoadCamera:      NewChannel[SceneEvent]("load-camera"),
		LoadPlayer:      NewChannel[SceneEvent]("load-player"),
		UnloadScene:     NewChannel[SceneEvent]("unload-scene"),

		ToggleTransition: NewChannel[bool]("toggle-transition"),
		ToggleLoading:    NewChannel[bool]("toggle-loading"),

		DisableAllInput:     NewChannel[Signal]("disable-all-input"),
		EnableUIInput:       NewChannel[Signal]("enable-ui-input"),
		EnableGameplayInput: NewChannel[Signal]("enable-gameplay-input"),
		EnableVRInput:       NewChannel[Signal]("enable-vr-input"),

		SceneReady:       NewChannel[Signal]("scene-ready"),
		SceneLoaded:      NewChannel[SceneEvent]("scene-loaded"),
		SceneUnloaded:    NewChannel[SceneEvent]("scene-unloaded"),
		EnvironmentReady: NewChannel[Signal]("environment-ready"),

		BootstrapBegin: NewChannel[Signal]("bootstrap-begin"),
	}
}

// Missing lists the names of unwired channels.
func (b *Bus) Missing() []string {
	if b == nil {
		return []string{"bus"}
	}
	var out []string
	check := func(name string, wired bool) {
		if !wired {
			out = append(out, name)
		}
	}
	check("load-scene", b.LoadScene != nil)
	check("load-environment", b.LoadEnvironment != nil)
	check("load-menu", b.LoadMenu != nil)
	check("load-camera", b.LoadCamera != nil)
	check("load-player", b.LoadPlayer != nil)
	check("unload-scene", b.UnloadScene != nil)
	check("toggle-transition", b.ToggleTransition != nil)
	check("toggle-loading", b.ToggleLoading != nil)
	check("disable-all-input", b.DisableAllInput != nil)
	check("enable-ui-input", b.EnableUIInput != nil)
	check("enable-gameplay-input", b.EnableGameplayInput != nil)
	check("enable-vr-input", b.EnableVRInput != nil)
	check("scene-ready", b.SceneReady != nil)
	check("scene-loaded", b.SceneLoaded != nil)
	check("scene-unloaded", b.SceneUnloaded != nil)
	check("environment-ready", b.EnvironmentReady != nil)
	check("bootstrap-begin", b.BootstrapBegin != nil)
	return out
}

// Close disposes every channel.
func (b *Bus) Close() {
	if b == nil {
		return
	}
	b.LoadScene.Close()
	b.LoadEnvironment.Close()
	b.LoadMenu.Close()
	b.LoadCamera.Close()
	b.LoadPlayer.Close()
	b.UnloadScene.Close()
	b.ToggleTransition.Close()
	b.ToggleLoading.Close()
	b.DisableAllInput.Close()
	b.EnableUIInput.Close()
	b.EnableGameplayInput.Close()
	b.EnableVRInput.Close()
	b.SceneReady.Close()
	b.SceneLoaded.Close()
	b.SceneUnloaded.Close()
	b.EnvironmentReady.Close()
	b.BootstrapBegin.Close()
}
