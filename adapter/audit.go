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
	"go.uber.org/zap"

	"github.com/srediag/scene-manager/pkg/events"
)

// AuditAdapter writes an audit trail of scene requests and completions.
type AuditAdapter struct {
	log  *zap.Logger
	subs events.Subscriptions
}

func NewAuditAdapter(log *zap.Logger) *AuditAdapter {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuditAdapter{log: log.Named("audit")}
}

// Attach subscribes to the request and completion channels of bus.
func (a *AuditAdapter) Attach(bus *events.Bus) {
	if bus == nil {
		return
	}
	for _, ch := range []*events.Channel[events.SceneEvent]{
		bus.LoadScene, bus.LoadEnvironment, bus.LoadMenu, bus.LoadCamera, bus.LoadPlayer, bus.UnloadScene,
		bus.SceneLoaded, bus.SceneUnloaded,
	} {
		if ch == nil {
			continue
		}
		name := ch.Name()
		a.subs.Add(ch.Subscribe(func(ev events.SceneEvent) {
			if ev.Scene == nil {
				a.log.Warn("scene event without scene", zap.String("channel", name))
				return
			}
			a.log.Info(name,
				zap.String("scene", ev.Scene.Name),
				zap.Stringer("category", ev.Scene.Category),
				zap.Bool("transition", ev.ShowTransition),
				zap.Bool("loading", ev.ShowLoading))
		}))
	}
	if bus.BootstrapBegin != nil {
		a.subs.Add(bus.BootstrapBegin.Subscribe(func(events.Signal) {
			a.log.Info(bus.BootstrapBegin.Name())
		}))
	}
}

func (a *AuditAdapter) Detach() { a.subs.Close() }
