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

// Package registry tracks which scenes are currently active.
package registry

import (
	"sort"
	"sync/atomic"

	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/srediag/scene-manager/api"
	"github.com/srediag/scene-manager/pkg/events"
	"github.com/srediag/scene-manager/pkg/scene"
)

// Tracker is the live set of active scenes. It is written only from the
// scene-loaded and scene-unloaded notifications and may be read from any
// goroutine.
//
// Notifications for one scene travel on two channels with no ordering between
// them, so the tracker never trusts the event kind alone: on every
// notification it reconciles the entry with the descriptor's loaded flag,
// which is always updated before the notification is published.
type Tracker struct {
	active cmap.ConcurrentMap[string, *scene.Descriptor]
	subs   events.Subscriptions

	onChange atomic.Pointer[func(active int)]
}

func NewTracker() *Tracker {
	return &Tracker{active: cmap.New[*scene.Descriptor]()}
}

// OnChange registers a callback invoked with the new size after every
// effective add or remove.
func (t *Tracker) OnChange(fn func(active int)) {
	t.onChange.Store(&fn)
}

// Attach subscribes the tracker to the bus. Call Detach to undo.
func (t *Tracker) Attach(bus *events.Bus) {
	if bus == nil {
		return
	}
	t.subs.Add(bus.SceneLoaded.Subscribe(func(ev events.SceneEvent) { t.Sync(ev.Scene) }))
	t.subs.Add(bus.SceneUnloaded.Subscribe(func(ev events.SceneEvent) { t.Sync(ev.Scene) }))
}

func (t *Tracker) Detach() {
	t.subs.Close()
}

// Add marks d active. It returns false if d was already present.
func (t *Tracker) Add(d *scene.Descriptor) bool {
	if d == nil {
		return false
	}
	added := t.active.SetIfAbsent(d.Name, d)
	if added {
		t.changed()
	}
	return added
}

// Remove drops d. It returns false if d was not present.
func (t *Tracker) Remove(d *scene.Descriptor) bool {
	if d == nil {
		return false
	}
	removed := t.active.RemoveCb(d.Name, func(_ string, _ *scene.Descriptor, exists bool) bool {
		return exists
	})
	if removed {
		t.changed()
	}
	return removed
}

// Sync makes d's membership match its loaded flag.
func (t *Tracker) Sync(d *scene.Descriptor) {
	if d == nil {
		return
	}
	for {
		want := d.Loaded()
		if want {
			t.Add(d)
		} else {
			t.Remove(d)
		}
		if d.Loaded() == want {
			return
		}
	}
}

func (t *Tracker) changed() {
	if fn := t.onChange.Load(); fn != nil && *fn != nil {
		(*fn)(t.active.Count())
	}
}

func (t *Tracker) Contains(d *scene.Descriptor) bool {
	if d == nil {
		return false
	}
	return t.active.Has(d.Name)
}

func (t *Tracker) Len() int {
	return t.active.Count()
}

// Scenes returns the active scenes sorted by name.
func (t *Tracker) Scenes() []*scene.Descriptor {
	items := t.active.Items()
	out := make([]*scene.Descriptor, 0, len(items))
	for _, d := range items {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ByCategory returns the active scenes in any of cats, sorted by name.
func (t *Tracker) ByCategory(cats ...scene.Category) []*scene.Descriptor {
	var out []*scene.Descriptor
	for _, d := range t.Scenes() {
		if d.Category.In(cats...) {
			out = append(out, d)
		}
	}
	return out
}

// Rebuild replaces the active set with every descriptor that is loaded and
// whose instance the runtime still recognizes. A nil validator accepts every
// loaded instance.
func (t *Tracker) Rebuild(descs []*scene.Descriptor, validator api.InstanceValidator) {
	t.active.Clear()
	for _, d := range descs {
		s := d.Snapshot()
		if !s.Loaded || s.Instance == nil {
			continue
		}
		if validator != nil && !validator.IsValid(s.Instance) {
			continue
		}
		t.active.Set(d.Name, d)
	}
	t.changed()
}
