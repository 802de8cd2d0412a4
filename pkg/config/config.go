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

// Package config loads the scene manager configuration with viper: defaults,
// then an optional YAML/TOML/JSON file, then SCENES_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/srediag/scene-manager/pkg/scene"
)

const (
	EnvPrefix  = "SCENES"
	EnvFile    = "SCENES_CONFIG"
	configName = "scenes"
)

// Handler kinds.
const (
	KindMenu    = "menu"
	KindDesktop = "desktop"
)

type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Lifecycle LifecycleConfig `mapstructure:"lifecycle"`
	Scenes    []SceneConfig   `mapstructure:"scenes"`
	Bootstrap BootstrapConfig `mapstructure:"bootstrap"`
	Health    HealthConfig    `mapstructure:"health"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type LifecycleConfig struct {
	RenderDelay        time.Duration `mapstructure:"render_delay"`
	PollInterval       time.Duration `mapstructure:"poll_interval"`
	GameplayScene      string        `mapstructure:"gameplay_scene"`
	VRGameplayScene    string        `mapstructure:"vr_gameplay_scene"`
	UseVRGameplay      bool          `mapstructure:"use_vr_gameplay"`
	TransitionScene    string        `mapstructure:"transition_scene"`
	UseTransitionScene bool          `mapstructure:"use_transition_scene"`
	WorkerPoolSize     int           `mapstructure:"worker_pool_size"`
}

// SceneConfig declares one catalog scene. Ref defaults to Name.
type SceneConfig struct {
	Name     string `mapstructure:"name"`
	Category string `mapstructure:"category"`
	Ref      string `mapstructure:"ref"`
}

type BootstrapConfig struct {
	ManagersScene   string          `mapstructure:"managers_scene"`
	InitScene       string          `mapstructure:"init_scene"`
	ExternalTrigger bool            `mapstructure:"external_trigger"`
	Handlers        []HandlerConfig `mapstructure:"handlers"`
	Startup         StartupConfig   `mapstructure:"startup"`
}

// HandlerConfig declares one bootstrap handler.
type HandlerConfig struct {
	Name string `mapstructure:"name"`
	Kind string `mapstructure:"kind"`
	// Inactive handlers only take part in initialize and unload.
	Inactive     bool          `mapstructure:"inactive"`
	Menu         string        `mapstructure:"menu"`
	Additional   []string      `mapstructure:"additional"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	// RequireEnv switches the handler off for the run unless the named
	// environment variable is set to a non-empty value.
	RequireEnv string `mapstructure:"require_env"`
}

type StartupConfig struct {
	Disabled       bool     `mapstructure:"disabled"`
	Scenes         []string `mapstructure:"scenes"`
	ShowTransition bool     `mapstructure:"show_transition"`
	ShowLoading    bool     `mapstructure:"show_loading"`
}

type HealthConfig struct {
	Listen             string        `mapstructure:"listen"`
	GoroutineThreshold int           `mapstructure:"goroutine_threshold"`
	MaxRSS             uint64        `mapstructure:"max_rss"`
	StuckAfter         time.Duration `mapstructure:"stuck_after"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("lifecycle.render_delay", "750ms")
	v.SetDefault("lifecycle.poll_interval", "50ms")
	v.SetDefault("lifecycle.gameplay_scene", "")
	v.SetDefault("lifecycle.vr_gameplay_scene", "")
	v.SetDefault("lifecycle.use_vr_gameplay", false)
	v.SetDefault("lifecycle.transition_scene", "")
	v.SetDefault("lifecycle.use_transition_scene", true)
	v.SetDefault("lifecycle.worker_pool_size", 0)
	v.SetDefault("bootstrap.managers_scene", "")
	v.SetDefault("bootstrap.init_scene", "")
	v.SetDefault("bootstrap.external_trigger", false)
	v.SetDefault("bootstrap.startup.disabled", false)
	v.SetDefault("health.listen", ":8086")
	v.SetDefault("health.goroutine_threshold", 10000)
	v.SetDefault("health.max_rss", 0)
	v.SetDefault("health.stuck_after", "30s")
}

// Load reads the configuration. An empty path falls back to $SCENES_CONFIG
// and then to an optional scenes.{yaml,toml,json} in the working directory.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		path = os.Getenv(EnvFile)
	}
	explicit := path != ""
	if explicit {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(configName)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Verify(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Verify reports every inconsistency in c.
func (c Config) Verify() error {
	var errs error
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Lifecycle.RenderDelay < 0 {
		errs = multierr.Append(errs, errors.New("lifecycle.render_delay must not be negative"))
	}

	known := make(map[string]scene.Category, len(c.Scenes))
	for i, s := range c.Scenes {
		if s.Name == "" {
			errs = multierr.Append(errs, fmt.Errorf("scenes[%d]: empty name", i))
			continue
		}
		if _, dup := known[s.Name]; dup {
			errs = multierr.Append(errs, fmt.Errorf("scenes[%d]: duplicate name %q", i, s.Name))
			continue
		}
		cat, err := scene.ParseCategory(s.Category)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("scenes[%d] %s: %w", i, s.Name, err))
			continue
		}
		known[s.Name] = cat
	}

	ref := func(field, name string, want ...scene.Category) {
		if name == "" {
			return
		}
		cat, ok := known[name]
		if !ok {
			errs = multierr.Append(errs, fmt.Errorf("%s: unknown scene %q", field, name))
			return
		}
		if len(want) > 0 && !cat.In(want...) {
			errs = multierr.Append(errs, fmt.Errorf("%s: scene %q has category %s", field, name, cat))
		}
	}
	ref("lifecycle.gameplay_scene", c.Lifecycle.GameplayScene, scene.Gameplay)
	ref("lifecycle.vr_gameplay_scene", c.Lifecycle.VRGameplayScene, scene.Gameplay)
	ref("lifecycle.transition_scene", c.Lifecycle.TransitionScene, scene.TransitionScene)
	if c.Lifecycle.UseVRGameplay && c.Lifecycle.VRGameplayScene == "" {
		errs = multierr.Append(errs, errors.New("lifecycle.use_vr_gameplay set without lifecycle.vr_gameplay_scene"))
	}
	ref("bootstrap.managers_scene", c.Bootstrap.ManagersScene)
	ref("bootstrap.init_scene", c.Bootstrap.InitScene)
	for i, name := range c.Bootstrap.Startup.Scenes {
		ref(fmt.Sprintf("bootstrap.startup.scenes[%d]", i), name)
	}

	handlers := make(map[string]bool, len(c.Bootstrap.Handlers))
	for i, h := range c.Bootstrap.Handlers {
		field := fmt.Sprintf("bootstrap.handlers[%d]", i)
		if h.Name == "" || handlers[h.Name] {
			errs = multierr.Append(errs, fmt.Errorf("%s: missing or duplicate name %q", field, h.Name))
		}
		handlers[h.Name] = true
		switch h.Kind {
		case KindMenu, KindDesktop:
		default:
			errs = multierr.Append(errs, fmt.Errorf("%s: unknown kind %q", field, h.Kind))
		}
		if h.Menu == "" {
			errs = multierr.Append(errs, fmt.Errorf("%s: menu not set", field))
		}
		ref(field+".menu", h.Menu, scene.Menu, scene.VRMenu)
		for j, name := range h.Additional {
			ref(fmt.Sprintf("%s.additional[%d]", field, j), name)
		}
	}
	return errs
}

// Catalog builds the descriptor catalog from the scene list.
func (c Config) Catalog() (*scene.Catalog, error) {
	descs := make([]*scene.Descriptor, 0, len(c.Scenes))
	for _, s := range c.Scenes {
		cat, err := scene.ParseCategory(s.Category)
		if err != nil {
			return nil, fmt.Errorf("scene %s: %w", s.Name, err)
		}
		descs = append(descs, scene.New(s.Name, cat, s.Ref))
	}
	return scene.NewCatalog(descs...)
}

// NewLogger builds the process logger from the log section. The returned
// level can be changed while the logger is in use.
func (c Config) NewLogger() (*zap.Logger, zap.AtomicLevel, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, zap.AtomicLevel{}, err
	}
	zc := zap.NewProductionConfig()
	if c.Log.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	logger, err := zc.Build()
	return logger, zc.Level, err
}
