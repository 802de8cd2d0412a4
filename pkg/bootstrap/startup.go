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
	"go.uber.org/zap"

	"github.com/srediag/scene-manager/pkg/events"
	"github.com/srediag/scene-manager/pkg/lifecycle"
	"github.com/srediag/scene-manager/pkg/scene"
)

// StartupLoader requests a fixed set of scenes once at startup.
type StartupLoader struct {
	Scenes         []*scene.Descriptor
	ShowTransition bool
	ShowLoading    bool
	// Disabled turns Run into a no-op.
	Disabled bool
}

// Run publishes a load request for every scene that is neither loaded nor
// being processed and returns how many were requested.
func (l *StartupLoader) Run(bus *events.Bus) int {
	if l.Disabled {
		return 0
	}
	if bus == nil || bus.LoadScene == nil {
		Logger().Warn("startup loader has no load-scene channel",
			zap.Error(&lifecycle.MissingDependencyError{Dependency: "load-scene"}))
		return 0
	}
	n := 0
	for _, d := range l.Scenes {
		if d == nil {
			continue
		}
		st := d.Snapshot()
		if st.Processing || st.Loaded {
			continue
		}
		bus.LoadScene.Publish(events.SceneEvent{Scene: d, ShowTransition: l.ShowTransition, ShowLoading: l.ShowLoading})
		n++
	}
	return n
}
