// Package provider contains an in-memory scene provider and runtime used by
// the daemon's demo mode and by tests.
package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/srediag/scene-manager/api"
	"github.com/srediag/scene-manager/internal/wait"
)

var ErrUnknownInstance = errors.New("provider: unknown instance")

type memoryInstance struct {
	id  string
	ref string
}

func (i *memoryInstance) ID() string  { return i.id }
func (i *memoryInstance) Ref() string { return i.ref }

// Memory simulates an asset provider with a fixed latency per operation.
// It implements api.Provider, api.Runtime and api.InstanceValidator.
type Memory struct {
	latency time.Duration
	hook    func(ctx context.Context, ref string) error

	mu           sync.Mutex
	live         map[string]*memoryInstance
	active       api.Instance
	loadFails    map[string]error
	unloadFails  map[string]error
	loads        map[string]int
	unloads      map[string]int
	activeChange []string
}

type Option func(*Memory)

// WithLatency delays every load and unload by d.
func WithLatency(d time.Duration) Option {
	return func(m *Memory) { m.latency = d }
}

// WithLoadHook runs fn at the start of every load; a non-nil error fails it.
func WithLoadHook(fn func(ctx context.Context, ref string) error) Option {
	return func(m *Memory) { m.hook = fn }
}

func NewMemory(opts ...Option) *Memory {
	m := &Memory{
		live:        make(map[string]*memoryInstance),
		loadFails:   make(map[string]error),
		unloadFails: make(map[string]error),
		loads:       make(map[string]int),
		unloads:     make(map[string]int),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) LoadAsync(ctx context.Context, ref string, mode api.LoadMode, activateOnLoad bool) (api.Instance, error) {
	m.mu.Lock()
	m.loads[ref]++
	m.mu.Unlock()

	if m.hook != nil {
		if err := m.hook(ctx, ref); err != nil {
			return nil, err
		}
	}
	if err := wait.Sleep(ctx, m.latency); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.loadFails[ref]; err != nil {
		return nil, fmt.Errorf("load %s: %w", ref, err)
	}
	if mode == api.LoadSingle {
		m.live = make(map[string]*memoryInstance)
		m.active = nil
	}
	inst := &memoryInstance{id: uuid.NewString(), ref: ref}
	m.live[inst.id] = inst
	if activateOnLoad && m.active == nil {
		m.active = inst
	}
	return inst, nil
}

func (m *Memory) UnloadAsync(ctx context.Context, instance api.Instance) error {
	if instance == nil {
		return ErrUnknownInstance
	}
	m.mu.Lock()
	m.unloads[instance.Ref()]++
	m.mu.Unlock()

	if err := wait.Sleep(ctx, m.latency); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.unloadFails[instance.Ref()]; err != nil {
		return fmt.Errorf("unload %s: %w", instance.Ref(), err)
	}
	if _, ok := m.live[instance.ID()]; !ok {
		return ErrUnknownInstance
	}
	delete(m.live, instance.ID())
	if m.active != nil && m.active.ID() == instance.ID() {
		m.active = nil
	}
	return nil
}

func (m *Memory) SetActive(instance api.Instance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if instance == nil {
		return nil
	}
	if _, ok := m.live[instance.ID()]; !ok {
		return nil
	}
	m.active = instance
	m.activeChange = append(m.activeChange, instance.Ref())
	return nil
}

func (m *Memory) IsValid(instance api.Instance) bool {
	if instance == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.live[instance.ID()]
	return ok
}

// Active returns the current active render context, or nil.
func (m *Memory) Active() api.Instance {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// ActiveHistory returns the refs passed to SetActive, oldest first.
func (m *Memory) ActiveHistory() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.activeChange))
	copy(out, m.activeChange)
	return out
}

// FailLoads makes loads of ref fail with err; a nil err clears it.
func (m *Memory) FailLoads(ref string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.loadFails, ref)
		return
	}
	m.loadFails[ref] = err
}

// FailUnloads makes unloads of ref fail with err; a nil err clears it.
func (m *Memory) FailUnloads(ref string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.unloadFails, ref)
		return
	}
	m.unloadFails[ref] = err
}

// Loads returns how many times ref was requested.
func (m *Memory) Loads(ref string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loads[ref]
}

func (m *Memory) Unloads(ref string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unloads[ref]
}

// Live returns the number of loaded instances.
func (m *Memory) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}
