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

package lifecycle

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/srediag/scene-manager/pkg/events"
	"github.com/srediag/scene-manager/pkg/provider"
	"github.com/srediag/scene-manager/pkg/scene"
)

func (s *EngineTestSuite) slowEnvironment() {
	s.TearDownTest()
	s.setup(provider.WithLoadHook(func(ctx context.Context, ref string) error {
		if ref != "forest" {
			return nil
		}
		select {
		case <-time.After(50 * time.Millisecond):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}))
}

func (s *EngineTestSuite) TestEnvironmentSwitchWithTransition() {
	s.slowEnvironment()

	s.Require().NoError(s.engine.LoadEnvironment(context.Background(), s.env, true, true))

	t := s.T()
	s.Equal("transition:on", s.rec.all()[0])
	s.rec.before(t, "transition:on", "loading:on")
	s.rec.before(t, "loading:on", "input:disable")
	s.rec.before(t, "loaded:gameplay", "transition:off")
	s.rec.before(t, "loaded:elevator", "transition:off")
	s.rec.before(t, "transition:off", "input:gameplay")
	s.rec.before(t, "loaded:forest", "loading:off")
	s.rec.before(t, "loading:off", "environment-ready")

	s.True(s.env.Loaded())
	s.True(s.gameplay.Loaded())
	s.True(s.transition.Loaded())
	s.Equal(1, s.rec.count("environment-ready"))
	s.Equal([]string{"forest"}, s.provider.ActiveHistory())
	s.Equal(s.env.Instance(), s.provider.Active())
}

func (s *EngineTestSuite) TestEnvironmentSwitchWithoutTransition() {
	s.Require().NoError(s.engine.LoadEnvironment(context.Background(), s.env, false, false))

	s.True(s.env.Loaded())
	s.True(s.gameplay.Loaded())
	s.False(s.transition.Loaded())
	s.Zero(s.rec.count("transition"))
	s.Zero(s.rec.count("loading"))
	s.Zero(s.rec.count("input:disable"))
	s.Equal(1, s.rec.count("input:gameplay"))
	s.Equal(1, s.rec.count("environment-ready"))
}

func (s *EngineTestSuite) TestEnvironmentSwitchKeepsLoadedGameplay() {
	inst, err := s.engine.Load(context.Background(), s.gameplay, false, false)
	s.Require().NoError(err)

	s.Require().NoError(s.engine.LoadEnvironment(context.Background(), s.env, false, false))
	s.Equal(1, s.provider.Loads("gameplay"))
	s.Equal(inst, s.gameplay.Instance())
}

func (s *EngineTestSuite) TestEnvironmentSwitchSkipsLoadedEnvironment() {
	_, err := s.engine.Load(context.Background(), s.env, false, false)
	s.Require().NoError(err)

	s.Require().NoError(s.engine.LoadEnvironment(context.Background(), s.env, true, true))
	s.Zero(s.rec.count("transition"))
	s.False(s.gameplay.Loaded())
}

func (s *EngineTestSuite) TestEnvironmentSwitchUsesVRGameplay() {
	vr := scene.New("vr-gameplay", scene.Gameplay, "")
	s.engine.cfg.VRGameplayScene = vr
	s.engine.cfg.UseVRGameplay = true
	s.engine.cfg.UseTransitionScene = false

	s.Require().NoError(s.engine.LoadEnvironment(context.Background(), s.env, true, false))
	s.True(vr.Loaded())
	s.False(s.gameplay.Loaded())
	s.False(s.transition.Loaded())
}

func (s *EngineTestSuite) TestEnvironmentSwitchReportsFailure() {
	s.provider.FailLoads("gameplay", errors.New("missing asset"))

	err := s.engine.LoadEnvironment(context.Background(), s.env, true, true)
	s.ErrorIs(err, ErrLoadFailed)
	s.True(s.env.Loaded())
	s.Zero(s.rec.count("environment-ready"))
	s.Equal(1, s.rec.count("transition:off"))
	s.Equal(1, s.rec.count("loading:off"))
}

func (s *EngineTestSuite) TestEnvironmentSwitchCanceled() {
	s.slowEnvironment()
	ctx, cancel := context.WithCancel(context.Background())
	sub := s.bus.SceneLoaded.Subscribe(func(ev events.SceneEvent) {
		if ev.Scene == s.gameplay {
			cancel()
		}
	})
	defer sub.Close()

	s.NoError(s.engine.LoadEnvironment(ctx, s.env, false, true))
	s.False(s.env.Loaded())
	s.False(s.env.Processing())
	s.Zero(s.rec.count("environment-ready"))
	s.Equal(1, s.rec.count("loading:off"))
}

func (s *EngineTestSuite) TestMenuSwitch() {
	for _, d := range []*scene.Descriptor{s.env, s.gameplay, s.player, s.camera} {
		_, err := s.engine.Load(context.Background(), d, false, false)
		s.Require().NoError(err)
	}

	s.Require().NoError(s.engine.LoadMenu(context.Background(), s.menu))

	t := s.T()
	s.rec.before(t, "input:disable", "transition:on")
	s.rec.before(t, "transition:on", "unloaded:forest")
	s.rec.before(t, "unloaded:forest", "loading:off")
	s.rec.before(t, "loaded:menu", "loading:off")
	s.rec.before(t, "loading:off", "transition:off")
	s.rec.before(t, "transition:off", "input:ui")

	s.False(s.env.Loaded())
	s.False(s.gameplay.Loaded())
	s.False(s.player.Loaded())
	s.True(s.camera.Loaded())
	s.True(s.menu.Loaded())
	s.ElementsMatch([]*scene.Descriptor{s.camera, s.menu}, s.tracker.Scenes())
	s.Equal("menu", s.provider.ActiveHistory()[len(s.provider.ActiveHistory())-1])
	s.Zero(s.rec.count("input:vr"))
}

func (s *EngineTestSuite) TestMenuSwitchVRMenu() {
	s.Require().NoError(s.engine.LoadMenu(context.Background(), s.vrMenu))
	s.Equal(1, s.rec.count("input:vr"))
	s.Zero(s.rec.count("input:ui"))
}

func (s *EngineTestSuite) TestMenuSwitchUnknownCategoryEnablesNoInput() {
	s.Require().NoError(s.engine.LoadMenu(context.Background(), s.camera))
	s.True(s.camera.Loaded())
	s.Zero(s.rec.count("input:ui"))
	s.Zero(s.rec.count("input:vr"))
	s.Zero(s.rec.count("input:gameplay"))
}

func (s *EngineTestSuite) TestRequestsFromBus() {
	s.Require().NoError(s.engine.Start(context.Background()))
	s.Error(s.engine.Start(context.Background()))

	s.bus.LoadCamera.Publish(events.SceneEvent{Scene: s.camera})
	s.bus.LoadPlayer.Publish(events.SceneEvent{Scene: s.player})
	s.bus.LoadScene.Publish(events.SceneEvent{Scene: s.menu, ShowLoading: true})
	s.bus.LoadScene.Publish(events.SceneEvent{})
	s.Eventually(func() bool {
		return s.camera.Loaded() && s.player.Loaded() && s.menu.Loaded()
	}, time.Second, time.Millisecond)

	s.bus.UnloadScene.Publish(events.SceneEvent{Scene: s.player})
	s.Eventually(func() bool { return !s.player.Loaded() }, time.Second, time.Millisecond)

	s.bus.LoadEnvironment.Publish(events.SceneEvent{Scene: s.env})
	s.Eventually(func() bool { return s.rec.count("environment-ready") == 1 }, time.Second, time.Millisecond)

	s.bus.LoadMenu.Publish(events.SceneEvent{Scene: s.vrMenu})
	s.Eventually(func() bool { return s.rec.count("input:vr") == 1 }, time.Second, time.Millisecond)
	s.False(s.env.Loaded())

	s.engine.Stop()
	s.bus.LoadPlayer.Publish(events.SceneEvent{Scene: s.player})
	time.Sleep(4 * testDelay)
	s.False(s.player.Loaded())
	s.Equal(1, s.provider.Loads("player"))
}

func (s *EngineTestSuite) TestStopCancelsRunningRequests() {
	started := make(chan struct{})
	var once sync.Once
	s.TearDownTest()
	s.setup(provider.WithLoadHook(func(ctx context.Context, ref string) error {
		once.Do(func() { close(started) })
		<-ctx.Done()
		return ctx.Err()
	}))

	s.Require().NoError(s.engine.Start(context.Background()))
	s.bus.LoadScene.Publish(events.SceneEvent{Scene: s.env})
	<-started
	s.engine.Stop()

	s.False(s.env.Processing())
	s.False(s.env.Loaded())
	s.False(s.engine.Loading())
}
