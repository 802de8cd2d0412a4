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
	"errors"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/srediag/scene-manager/pkg/config"
)

// HotReloadAdapter watches the configuration file and applies the settings
// that may change at runtime. Today that is the log level; other changes are
// handed to the OnReload callback.
type HotReloadAdapter struct {
	path  string
	level zap.AtomicLevel
	log   *zap.Logger

	mu       sync.Mutex
	onReload func(config.Config)
}

func NewHotReloadAdapter(path string, level zap.AtomicLevel, log *zap.Logger) *HotReloadAdapter {
	if log == nil {
		log = zap.NewNop()
	}
	return &HotReloadAdapter{path: path, level: level, log: log}
}

// OnReload registers fn to receive every successfully reloaded configuration.
func (a *HotReloadAdapter) OnReload(fn func(config.Config)) {
	a.mu.Lock()
	a.onReload = fn
	a.mu.Unlock()
}

// Watch starts watching the file. The watch lasts for the life of the process.
func (a *HotReloadAdapter) Watch() error {
	if a.path == "" {
		return errors.New("hot reload needs a configuration file")
	}
	v := viper.New()
	v.SetConfigFile(a.path)
	if err := v.ReadInConfig(); err != nil {
		return err
	}
	v.OnConfigChange(func(ev fsnotify.Event) {
		a.log.Debug("configuration changed", zap.String("file", ev.Name), zap.Stringer("op", ev.Op))
		a.Reload()
	})
	v.WatchConfig()
	return nil
}

// Reload re-reads the file now. An invalid file keeps the current settings.
func (a *HotReloadAdapter) Reload() {
	c, err := config.Load(a.path)
	if err != nil {
		a.log.Warn("configuration reload rejected", zap.Error(err))
		return
	}
	if lvl, err := zapcore.ParseLevel(c.Log.Level); err == nil && lvl != a.level.Level() {
		a.log.Info("log level changed", zap.Stringer("from", a.level.Level()), zap.Stringer("to", lvl))
		a.level.SetLevel(lvl)
	}
	a.mu.Lock()
	fn := a.onReload
	a.mu.Unlock()
	if fn != nil {
		fn(c)
	}
}
