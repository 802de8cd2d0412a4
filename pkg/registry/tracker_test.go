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

package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/srediag/scene-manager/api"
	"github.com/srediag/scene-manager/pkg/events"
	"github.com/srediag/scene-manager/pkg/scene"
)

type instance string

func (i instance) ID() string  { return string(i) }
func (i instance) Ref() string { return string(i) }

type validator map[string]bool

func (v validator) IsValid(inst api.Instance) bool { return v[inst.ID()] }

func TestTracker_FollowsBus(t *testing.T) {
	bus := events.NewBus()
	tr := NewTracker()
	var sizes []int
	tr.OnChange(func(n int) { sizes = append(sizes, n) })
	tr.Attach(bus)

	menu := scene.New("menu", scene.Menu, "")
	env := scene.New("forest", scene.Environment, "")
	menu.SetInstance(instance("m"))
	env.SetInstance(instance("f"))

	bus.SceneLoaded.Publish(events.SceneEvent{Scene: menu})
	bus.SceneLoaded.Publish(events.SceneEvent{Scene: env})
	bus.SceneLoaded.Publish(events.SceneEvent{Scene: env})
	assert.True(t, tr.Contains(menu))
	assert.Equal(t, []*scene.Descriptor{env, menu}, tr.Scenes())
	assert.Equal(t, []*scene.Descriptor{env}, tr.ByCategory(scene.Environment, scene.Player))

	env.SetInstance(nil)
	bus.SceneUnloaded.Publish(events.SceneEvent{Scene: env})
	bus.SceneUnloaded.Publish(events.SceneEvent{Scene: env})
	assert.False(t, tr.Contains(env))
	assert.Equal(t, 1, tr.Len())
	assert.Equal(t, []int{1, 2, 1}, sizes)

	tr.Detach()
	menu.SetInstance(nil)
	bus.SceneUnloaded.Publish(events.SceneEvent{Scene: menu})
	assert.True(t, tr.Contains(menu))
}

func TestTracker_Idempotent(t *testing.T) {
	tr := NewTracker()
	d := scene.New("cam", scene.Camera, "")
	assert.True(t, tr.Add(d))
	assert.False(t, tr.Add(d))
	assert.True(t, tr.Remove(d))
	assert.False(t, tr.Remove(d))
	assert.False(t, tr.Add(nil))
	assert.False(t, tr.Remove(nil))
	assert.False(t, tr.Contains(nil))
}

func TestTracker_ConcurrentAddRemove(t *testing.T) {
	tr := NewTracker()
	descs := make([]*scene.Descriptor, 32)
	for i := range descs {
		descs[i] = scene.New(string(rune('a'+i)), scene.UI, "")
	}

	var wg sync.WaitGroup
	for _, d := range descs {
		for k := 0; k < 4; k++ {
			wg.Add(1)
			go func(d *scene.Descriptor) {
				defer wg.Done()
				tr.Add(d)
			}(d)
		}
	}
	wg.Wait()
	assert.Equal(t, len(descs), tr.Len())

	for _, d := range descs[:16] {
		wg.Add(1)
		go func(d *scene.Descriptor) {
			defer wg.Done()
			tr.Remove(d)
		}(d)
	}
	wg.Wait()
	assert.Equal(t, 16, tr.Len())
}

func TestTracker_Rebuild(t *testing.T) {
	a := scene.New("a", scene.UI, "")
	b := scene.New("b", scene.UI, "")
	c := scene.New("c", scene.UI, "")
	a.SetInstance(instance("ia"))
	b.SetInstance(instance("ib"))

	tr := NewTracker()
	tr.Add(c)
	tr.Rebuild([]*scene.Descriptor{a, b, c}, validator{"ia": true})
	assert.Equal(t, []*scene.Descriptor{a}, tr.Scenes())

	tr.Rebuild([]*scene.Descriptor{a, b, c}, nil)
	assert.Equal(t, []*scene.Descriptor{a, b}, tr.Scenes())
}

func TestTracker_SyncIgnoresStaleNotifications(t *testing.T) {
	bus := events.NewBus()
	tr := NewTracker()
	tr.Attach(bus)
	defer tr.Detach()

	d := scene.New("env", scene.Environment, "")

	// A scene-loaded notification that arrives after the scene was unloaded
	// again must not resurrect the entry.
	bus.SceneLoaded.Publish(events.SceneEvent{Scene: d})
	assert.False(t, tr.Contains(d))

	d.SetInstance(instance("e"))
	bus.SceneLoaded.Publish(events.SceneEvent{Scene: d})
	// A stale scene-unloaded notification must not drop a loaded scene.
	bus.SceneUnloaded.Publish(events.SceneEvent{Scene: d})
	assert.True(t, tr.Contains(d))
}
