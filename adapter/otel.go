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

package adapter

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/srediag/scene-manager/pkg/events"
)

// OTelAdapter counts bus traffic with OpenTelemetry instruments.
type OTelAdapter struct {
	events metric.Int64Counter
	scenes metric.Int64Counter
	subs   events.Subscriptions
}

// NewOTelAdapter creates the instruments on meter, or on the global meter
// provider when meter is nil.
func NewOTelAdapter(meter metric.Meter) (*OTelAdapter, error) {
	if meter == nil {
		meter = otel.Meter("github.com/srediag/scene-manager/adapter")
	}
	ev, err := meter.Int64Counter("scenes.bus.events",
		metric.WithDescription("Events published on the scene bus, by channel."))
	if err != nil {
		return nil, err
	}
	sc, err := meter.Int64Counter("scenes.transitions",
		metric.WithDescription("Scene load and unload completions, by scene and category."))
	if err != nil {
		return nil, err
	}
	return &OTelAdapter{events: ev, scenes: sc}, nil
}

// Attach subscribes to every wired channel of bus.
func (a *OTelAdapter) Attach(bus *events.Bus) {
	if bus == nil {
		return
	}
	countScene := func(ch *events.Channel[events.SceneEvent], op string) {
		a.subs.Add(ch.Subscribe(func(ev events.SceneEvent) {
			a.inc(ch.Name())
			if op == "" || ev.Scene == nil {
				return
			}
			a.scenes.Add(context.Background(), 1, metric.WithAttributes(
				attribute.String("op", op),
				attribute.String("scene", ev.Scene.Name),
				attribute.String("category", ev.Scene.Category.String()),
			))
		}))
	}
	countSignal := func(ch *events.Channel[events.Signal]) {
		a.subs.Add(ch.Subscribe(func(events.Signal) { a.inc(ch.Name()) }))
	}
	countToggle := func(ch *events.Channel[bool]) {
		a.subs.Add(ch.Subscribe(func(bool) { a.inc(ch.Name()) }))
	}

	for _, ch := range []*events.Channel[events.SceneEvent]{
		bus.LoadScene, bus.LoadEnvironment, bus.LoadMenu, bus.LoadCamera, bus.LoadPlayer, bus.UnloadScene,
	} {
		if ch != nil {
			countScene(ch, "")
		}
	}
	if bus.SceneLoaded != nil {
		countScene(bus.SceneLoaded, "loaded")
	}
	if bus.SceneUnloaded != nil {
		countScene(bus.SceneUnloaded, "unloaded")
	}
	for _, ch := range []*events.Channel[bool]{bus.ToggleTransition, bus.ToggleLoading} {
		if ch != nil {
			countToggle(ch)
		}
	}
	for _, ch := range []*events.Channel[events.Signal]{
		bus.DisableAllInput, bus.EnableUIInput, bus.EnableGameplayInput, bus.EnableVRInput,
		bus.SceneReady, bus.EnvironmentReady, bus.BootstrapBegin,
	} {
		if ch != nil {
			countSignal(ch)
		}
	}
}

func (a *OTelAdapter) Detach() { a.subs.Close() }

func (a *OTelAdapter) inc(channel string) {
	a.events.Add(context.Background(), 1, metric.WithAttributes(attribute.String("channel", channel)))
}
