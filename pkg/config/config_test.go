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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/srediag/scene-manager/pkg/bootstrap"
	"github.com/srediag/scene-manager/pkg/events"
	"github.com/srediag/scene-manager/pkg/scene"
)

const sample = `
log:
  level: debug
lifecycle:
  render_delay: 20ms
  gameplay_scene: gameplay
  transition_scene: elevator
scenes:
  - {name: managers, category: PersistentManagers}
  - {name: init, category: Initialization}
  - {name: menu, category: Menu, ref: scenes/menu}
  - {name: forest, category: Environment}
  - {name: gameplay, category: Gameplay}
  - {name: elevator, category: TransitionScene}
  - {name: hud, category: ui}
bootstrap:
  managers_scene: managers
  init_scene: init
  handlers:
    - {name: main-menu, kind: menu, menu: menu, require_env: SCENES_TEST_VR}
    - {name: desktop, kind: desktop, menu: menu, additional: [hud], poll_interval: 5ms}
  startup:
    scenes: [hud]
    show_loading: true
health:
  listen: 127.0.0.1:9000
  stuck_after: 1m
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_FileAndDefaults(t *testing.T) {
	c, err := Load(writeConfig(t, sample))
	require.NoError(t, err)

	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, 20*time.Millisecond, c.Lifecycle.RenderDelay)
	assert.Equal(t, 50*time.Millisecond, c.Lifecycle.PollInterval)
	assert.True(t, c.Lifecycle.UseTransitionScene)
	assert.Len(t, c.Scenes, 7)
	assert.Equal(t, "scenes/menu", c.Scenes[2].Ref)
	assert.Equal(t, []string{"hud"}, c.Bootstrap.Handlers[1].Additional)
	assert.Equal(t, 5*time.Millisecond, c.Bootstrap.Handlers[1].PollInterval)
	assert.Equal(t, "127.0.0.1:9000", c.Health.Listen)
	assert.Equal(t, 10000, c.Health.GoroutineThreshold)
	assert.Equal(t, time.Minute, c.Health.StuckAfter)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SCENES_LIFECYCLE_RENDER_DELAY", "1s")
	t.Setenv("SCENES_HEALTH_LISTEN", ":7000")
	c, err := Load(writeConfig(t, sample))
	require.NoError(t, err)
	assert.Equal(t, time.Second, c.Lifecycle.RenderDelay)
	assert.Equal(t, ":7000", c.Health.Listen)
}

func TestLoad_ConfigFromEnvPath(t *testing.T) {
	t.Setenv(EnvFile, writeConfig(t, sample))
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "managers", c.Bootstrap.ManagersScene)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestVerify(t *testing.T) {
	c, err := Load(writeConfig(t, sample))
	require.NoError(t, err)
	require.NoError(t, c.Verify())

	bad := c
	bad.Scenes = append(append([]SceneConfig(nil), c.Scenes...),
		SceneConfig{Name: "menu", Category: "Menu"},
		SceneConfig{Name: "odd", Category: "Hologram"})
	bad.Lifecycle.GameplayScene = "forest"
	bad.Bootstrap.Handlers = append(append([]HandlerConfig(nil), c.Bootstrap.Handlers...),
		HandlerConfig{Name: "vr", Kind: "vr", Menu: "nowhere"})
	bad.Log.Level = "loud"

	err = bad.Verify()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, `duplicate name "menu"`)
	assert.Contains(t, msg, "Hologram")
	assert.Contains(t, msg, `lifecycle.gameplay_scene: scene "forest" has category Environment`)
	assert.Contains(t, msg, `unknown kind "vr"`)
	assert.Contains(t, msg, `unknown scene "nowhere"`)
	assert.Contains(t, msg, "log.level")
}

func TestBuilders(t *testing.T) {
	c, err := Load(writeConfig(t, sample))
	require.NoError(t, err)
	cat, err := c.Catalog()
	require.NoError(t, err)
	assert.Equal(t, 7, cat.Len())
	menu, _ := cat.Lookup("menu")
	assert.Equal(t, "scenes/menu", menu.Ref)
	hud, _ := cat.Lookup("hud")
	assert.Equal(t, scene.UI, hud.Category)

	ec, err := c.EngineConfig(cat)
	require.NoError(t, err)
	assert.Equal(t, 20*time.Millisecond, ec.RenderDelay)
	assert.Equal(t, "gameplay", ec.GameplayScene.Name)
	assert.Equal(t, "elevator", ec.TransitionScene.Name)
	assert.Nil(t, ec.VRGameplayScene)

	hs, err := c.Handlers(cat, events.NewBus())
	require.NoError(t, err)
	require.Len(t, hs, 2)
	assert.IsType(t, &bootstrap.MenuHandler{}, hs[0])
	assert.IsType(t, &bootstrap.DesktopHandler{}, hs[1])
	assert.Equal(t, "desktop", hs[1].Name())

	t.Setenv("SCENES_TEST_VR", "")
	require.NoError(t, hs[0].Initialize(t.Context()))
	assert.False(t, hs[0].Active())

	sl, err := c.StartupLoader(cat)
	require.NoError(t, err)
	assert.Equal(t, []*scene.Descriptor{hud}, sl.Scenes)
	assert.True(t, sl.ShowLoading)

	pc := c.PipelineConfig()
	assert.Equal(t, "managers", pc.ManagersScene)
	assert.Equal(t, "init", pc.InitScene)

	assert.Equal(t, time.Minute, c.HealthConfig().StuckAfter)

	logger, level, err := c.NewLogger()
	require.NoError(t, err)
	assert.NotNil(t, logger)
	assert.Equal(t, zapcore.DebugLevel, level.Level())
}
