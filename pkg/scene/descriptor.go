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

// Package scene holds scene descriptors and the per-descriptor guard that
// serializes load and unload operations on them.
package scene

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/srediag/scene-manager/api"
)

var (
	ErrInFlight  = errors.New("scene operation already in flight")
	ErrLoaded    = errors.New("scene already loaded")
	ErrNotLoaded = errors.New("scene not loaded")
)

// Descriptor is the identity and runtime state of one loadable scene.
//
// The runtime fields are guarded by a mutex owned by the descriptor itself,
// so operations on two descriptors never contend.
type Descriptor struct {
	Name     string
	Category Category
	// Ref is the asset reference handed to the provider.
	Ref string

	mu         sync.Mutex
	processing bool
	loaded     bool
	instance   api.Instance
	since      time.Time
}

// State is a consistent snapshot of a descriptor's runtime fields.
type State struct {
	Processing bool
	Loaded     bool
	Instance   api.Instance
	// Since is when the current guard was acquired; zero when idle.
	Since time.Time
}

func New(name string, category Category, ref string) *Descriptor {
	if ref == "" {
		ref = name
	}
	return &Descriptor{Name: name, Category: category, Ref: ref}
}

func (d *Descriptor) String() string {
	return fmt.Sprintf("%s(%s)", d.Name, d.Category)
}

func (d *Descriptor) Snapshot() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return State{
		Processing: d.processing,
		Loaded:     d.loaded,
		Instance:   d.instance,
		Since:      d.since,
	}
}

func (d *Descriptor) Processing() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.processing
}

func (d *Descriptor) Loaded() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loaded
}

func (d *Descriptor) Instance() api.Instance {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.instance
}

// BeginProcessing marks the descriptor in flight. It returns false if
// another operation already holds it.
func (d *Descriptor) BeginProcessing() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.beginLocked()
}

// EndProcessing clears the in-flight mark.
func (d *Descriptor) EndProcessing() {
	d.mu.Lock()
	d.processing = false
	d.since = time.Time{}
	d.mu.Unlock()
}

// SetInstance stores the loaded instance; loaded follows instance != nil.
func (d *Descriptor) SetInstance(instance api.Instance) {
	d.mu.Lock()
	d.instance = instance
	d.loaded = instance != nil
	d.mu.Unlock()
}

// SetLoaded(false) drops the instance together with the flag. SetLoaded(true)
// is only honoured when an instance is already stored.
func (d *Descriptor) SetLoaded(loaded bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !loaded {
		d.loaded = false
		d.instance = nil
		return
	}
	d.loaded = d.instance != nil
}

// Reset returns the descriptor to its boot state.
func (d *Descriptor) Reset() {
	d.mu.Lock()
	d.processing = false
	d.loaded = false
	d.instance = nil
	d.since = time.Time{}
	d.mu.Unlock()
}

func (d *Descriptor) beginLocked() bool {
	if d.processing {
		return false
	}
	d.processing = true
	d.since = time.Now()
	return true
}

// TryBeginLoad acquires the guard for a load. It fails with ErrInFlight when
// another operation holds the descriptor and ErrLoaded when it is already
// loaded; in both cases nothing changes.
func (d *Descriptor) TryBeginLoad() (*Guard, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.processing {
		return nil, ErrInFlight
	}
	if d.loaded {
		return nil, ErrLoaded
	}
	d.beginLocked()
	return &Guard{d: d}, nil
}

// TryBeginUnload acquires the guard for an unload.
func (d *Descriptor) TryBeginUnload() (*Guard, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.processing {
		return nil, ErrInFlight
	}
	if !d.loaded {
		return nil, ErrNotLoaded
	}
	d.beginLocked()
	return &Guard{d: d}, nil
}

// Guard is the scoped ownership of one descriptor's in-flight mark. Release
// must run on every exit path; it is safe to call more than once.
type Guard struct {
	d        *Descriptor
	released atomic.Bool
}

func (g *Guard) Descriptor() *Descriptor { return g.d }

// Commit records a finished load.
func (g *Guard) Commit(instance api.Instance) {
	g.d.SetInstance(instance)
}

// Clear records a finished unload.
func (g *Guard) Clear() {
	g.d.SetLoaded(false)
}

func (g *Guard) Release() {
	if g == nil || !g.released.CompareAndSwap(false, true) {
		return
	}
	g.d.EndProcessing()
}
