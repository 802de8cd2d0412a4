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
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/srediag/scene-manager/api"
	"github.com/srediag/scene-manager/pkg/events"
)

type mockLoader struct {
	mock.Mock
}

func (m *mockLoader) LoadScene(ctx context.Context, req api.SceneRequest) (api.Instance, error) {
	args := m.Called(ctx, req)
	inst, _ := args.Get(0).(api.Instance)
	return inst, args.Error(1)
}

func (m *mockLoader) UnloadScene(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *mockLoader) IsLoaded(name string) bool {
	return m.Called(name).Bool(0)
}

type instance string

func (i instance) ID() string  { return string(i) }
func (i instance) Ref() string { return string(i) }

func newLoader() *mockLoader {
	l := &mockLoader{}
	l.On("LoadScene", mock.Anything, api.SceneRequest{Scene: "managers"}).Return(instance("managers"), nil).Once()
	l.On("UnloadScene", mock.Anything, "init").Return(nil).Once()
	return l
}

// journal records handler calls in the order they happened.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(e string) {
	j.mu.Lock()
	j.entries = append(j.entries, e)
	j.mu.Unlock()
}

func (j *journal) all() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

func (j *journal) indexes(prefix string) []int {
	var out []int
	for i, e := range j.all() {
		if strings.HasPrefix(e, prefix) {
			out = append(out, i)
		}
	}
	return out
}

type fakeHandler struct {
	*BaseHandler
	log        *journal
	deactivate bool
	initErr    error
	trigger    func(ctx context.Context) error
}

func newFake(name string, log *journal) *fakeHandler {
	return &fakeHandler{BaseHandler: NewBaseHandler(name), log: log}
}

func (h *fakeHandler) Initialize(ctx context.Context) error {
	time.Sleep(time.Millisecond)
	h.log.add("init:" + h.Name())
	if h.deactivate {
		h.SetActive(false)
	}
	return h.initErr
}

func (h *fakeHandler) Trigger(ctx context.Context) error {
	h.log.add("trigger:" + h.Name())
	if h.trigger != nil {
		return h.trigger(ctx)
	}
	time.Sleep(2 * time.Millisecond)
	return nil
}

func (h *fakeHandler) Unload(ctx context.Context) error {
	h.log.add("unload:" + h.Name())
	return nil
}

func handlers(hs ...*fakeHandler) []api.Handler {
	out := make([]api.Handler, len(hs))
	for i, h := range hs {
		out[i] = h
	}
	return out
}

func TestPipeline_SelfDeactivatingHandlerSkipsTrigger(t *testing.T) {
	log := &journal{}
	h1, h2, h3 := newFake("one", log), newFake("two", log), newFake("three", log)
	h2.deactivate = true
	loader := newLoader()

	p, err := NewPipeline(loader, events.NewBus(), handlers(h1, h2, h3), Config{ManagersScene: "managers", InitScene: "init"})
	require.NoError(t, err)
	assert.Equal(t, Idle, p.State())

	require.NoError(t, p.Run(context.Background()))
	assert.Equal(t, Terminated, p.State())
	assert.ElementsMatch(t, []string{"one", "three"}, p.Triggered())
	assert.Len(t, log.indexes("init:"), 3)
	assert.Len(t, log.indexes("trigger:"), 2)
	assert.Len(t, log.indexes("unload:"), 3)
	assert.NotContains(t, log.all(), "trigger:two")
	loader.AssertExpectations(t)

	select {
	case <-p.Done():
	default:
		t.Fatal("done not closed")
	}
}

func TestPipeline_PhaseOrdering(t *testing.T) {
	log := &journal{}
	hs := []*fakeHandler{newFake("a", log), newFake("b", log), newFake("c", log), newFake("d", log)}
	p, err := NewPipeline(newLoader(), events.NewBus(), handlers(hs...), Config{ManagersScene: "managers", InitScene: "init"})
	require.NoError(t, err)
	require.NoError(t, p.Run(context.Background()))

	entries := log.all()
	index := func(e string) int {
		for i, got := range entries {
			if got == e {
				return i
			}
		}
		return -1
	}
	for _, h := range hs {
		assert.Less(t, index("init:"+h.Name()), index("trigger:"+h.Name()), h.Name())
	}
	triggers, unloads := log.indexes("trigger:"), log.indexes("unload:")
	require.NotEmpty(t, triggers)
	require.NotEmpty(t, unloads)
	assert.Less(t, triggers[len(triggers)-1], unloads[0])
}

func TestPipeline_RunsOnce(t *testing.T) {
	p, err := NewPipeline(newLoader(), events.NewBus(), nil, Config{ManagersScene: "managers", InitScene: "init"})
	require.NoError(t, err)
	require.NoError(t, p.Run(context.Background()))
	assert.ErrorIs(t, p.Run(context.Background()), ErrAlreadyRun)
	assert.Equal(t, Terminated, p.State())
}

func TestPipeline_CancellationIsSwallowed(t *testing.T) {
	log := &journal{}
	blocked := newFake("blocked", log)
	started := make(chan struct{})
	blocked.trigger = func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}
	other := newFake("other", log)

	loader := &mockLoader{}
	loader.On("LoadScene", mock.Anything, mock.Anything).Return(instance("managers"), nil)
	loader.On("UnloadScene", mock.Anything, "init").Return(context.Canceled)

	p, err := NewPipeline(loader, events.NewBus(), handlers(blocked, other), Config{ManagersScene: "managers", InitScene: "init"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()
	assert.NoError(t, p.Run(ctx))
	assert.Equal(t, Terminated, p.State())
	assert.Len(t, log.indexes("unload:"), 2)
}

func TestPipeline_CanceledWhileWaitingForTrigger(t *testing.T) {
	log := &journal{}
	loader := &mockLoader{}
	loader.On("LoadScene", mock.Anything, mock.Anything).Return(instance("managers"), nil)

	p, err := NewPipeline(loader, events.NewBus(), handlers(newFake("a", log)),
		Config{ManagersScene: "managers", ExternalTrigger: true})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	assert.Eventually(t, func() bool { return p.State() == WaitingForTrigger }, time.Second, time.Millisecond)
	cancel()

	assert.NoError(t, <-done)
	assert.Equal(t, Terminated, p.State())
	assert.Empty(t, log.all())
	loader.AssertNotCalled(t, "UnloadScene", mock.Anything, mock.Anything)
}

func TestPipeline_ExternalTrigger(t *testing.T) {
	log := &journal{}
	bus := events.NewBus()
	p, err := NewPipeline(newLoader(), bus, handlers(newFake("a", log)),
		Config{ManagersScene: "managers", InitScene: "init", ExternalTrigger: true})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()
	assert.Eventually(t, func() bool { return p.State() == WaitingForTrigger }, time.Second, time.Millisecond)
	assert.Empty(t, log.all())

	bus.BootstrapBegin.Publish(events.Signal{})
	assert.NoError(t, <-done)
	assert.Equal(t, []string{"a"}, p.Triggered())
}

func TestPipeline_BaselineFailure(t *testing.T) {
	log := &journal{}
	boom := errors.New("no managers")
	loader := &mockLoader{}
	loader.On("LoadScene", mock.Anything, mock.Anything).Return(nil, boom)

	p, err := NewPipeline(loader, events.NewBus(), handlers(newFake("a", log)), Config{ManagersScene: "managers"})
	require.NoError(t, err)

	err = p.Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, Terminated, p.State())
	assert.Empty(t, log.all())
}

func TestPipeline_HandlerFailuresAreCombined(t *testing.T) {
	log := &journal{}
	broken := newFake("broken", log)
	broken.initErr = errors.New("bad init")
	failing := newFake("failing", log)
	failing.trigger = func(context.Context) error { return errors.New("bad trigger") }
	fine := newFake("fine", log)

	p, err := NewPipeline(newLoader(), events.NewBus(), handlers(broken, failing, fine), Config{ManagersScene: "managers", InitScene: "init"})
	require.NoError(t, err)

	err = p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initialize broken: bad init")
	assert.Contains(t, err.Error(), "trigger failing: bad trigger")
	assert.ElementsMatch(t, []string{"failing", "fine"}, p.Triggered())
	assert.Len(t, log.indexes("unload:"), 3)
}

func TestPipeline_WarnsWithoutActiveHandlers(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	SetLogger(zap.New(core))
	defer SetLogger(zap.NewNop())

	log := &journal{}
	h := newFake("only", log)
	h.deactivate = true
	p, err := NewPipeline(newLoader(), events.NewBus(), handlers(h), Config{ManagersScene: "managers", InitScene: "init"})
	require.NoError(t, err)
	require.NoError(t, p.Run(context.Background()))

	assert.Equal(t, 1, logs.FilterMessage("no active bootstrap handlers").Len())
	assert.Empty(t, p.Triggered())
	assert.Len(t, log.indexes("unload:"), 1)
}

func TestPipeline_ResetsActiveEachRun(t *testing.T) {
	log := &journal{}
	h := newFake("a", log)
	h.SetActive(false)
	p, err := NewPipeline(newLoader(), events.NewBus(), handlers(h), Config{ManagersScene: "managers", InitScene: "init"})
	require.NoError(t, err)
	require.NoError(t, p.Run(context.Background()))
	assert.Equal(t, []string{"a"}, p.Triggered())
}

func TestNewPipeline_Validation(t *testing.T) {
	_, err := NewPipeline(nil, nil, nil, Config{ManagersScene: "managers"})
	assert.Error(t, err)
	_, err = NewPipeline(newLoader(), nil, nil, Config{})
	assert.Error(t, err)
	_, err = NewPipeline(newLoader(), nil, []api.Handler{nil}, Config{ManagersScene: "managers"})
	assert.Error(t, err)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "WaitingForTrigger", WaitingForTrigger.String())
	assert.Equal(t, "State(42)", State(42).String())
}
