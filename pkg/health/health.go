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

// Package health provides the liveness and readiness checks of the scene
// manager, in the shape expected by github.com/heptiolabs/healthcheck.
package health

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/heptiolabs/healthcheck"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/srediag/scene-manager/pkg/scene"
)

const (
	defaultGoroutineThreshold = 10000
	defaultStuckAfter         = 30 * time.Second
	defaultRSSInterval        = 5 * time.Second
)

// Config holds the check thresholds. Zero values fall back to defaults;
// a zero MaxRSS disables the memory check.
type Config struct {
	GoroutineThreshold int
	StuckAfter         time.Duration
	MaxRSS             uint64
	RSSInterval        time.Duration
}

func DefaultConfig() Config {
	return Config{
		GoroutineThreshold: defaultGoroutineThreshold,
		StuckAfter:         defaultStuckAfter,
		RSSInterval:        defaultRSSInterval,
	}
}

// StuckGuards fails while any catalog scene has been processing for longer
// than limit. A guard that never releases wedges its scene for good.
func StuckGuards(catalog *scene.Catalog, limit time.Duration) healthcheck.Check {
	return func() error {
		if catalog == nil {
			return nil
		}
		stuck := catalog.Stuck(limit)
		if len(stuck) == 0 {
			return nil
		}
		names := make([]string, len(stuck))
		for i, d := range stuck {
			names[i] = d.Name
		}
		return fmt.Errorf("scenes processing longer than %s: %s", limit, strings.Join(names, ", "))
	}
}

// Closed fails until done is closed.
func Closed(what string, done <-chan struct{}) healthcheck.Check {
	return func() error {
		select {
		case <-done:
			return nil
		default:
			return errors.New(what + " not finished")
		}
	}
}

// RSSBelow fails when the resident set size of this process exceeds limit.
func RSSBelow(limit uint64) healthcheck.Check {
	return func() error {
		p, err := process.NewProcess(int32(os.Getpid()))
		if err != nil {
			return err
		}
		mem, err := p.MemoryInfo()
		if err != nil {
			return err
		}
		if mem.RSS > limit {
			return fmt.Errorf("rss %d exceeds %d bytes", mem.RSS, limit)
		}
		return nil
	}
}

// Register adds the liveness checks and, when bootstrapDone is not nil,
// the readiness check to h.
func Register(h healthcheck.Handler, cfg Config, catalog *scene.Catalog, bootstrapDone <-chan struct{}) {
	if cfg.GoroutineThreshold <= 0 {
		cfg.GoroutineThreshold = defaultGoroutineThreshold
	}
	if cfg.StuckAfter <= 0 {
		cfg.StuckAfter = defaultStuckAfter
	}
	if cfg.RSSInterval <= 0 {
		cfg.RSSInterval = defaultRSSInterval
	}

	h.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(cfg.GoroutineThreshold))
	h.AddLivenessCheck("stuck-guards", StuckGuards(catalog, cfg.StuckAfter))
	if cfg.MaxRSS > 0 {
		h.AddLivenessCheck("rss", healthcheck.Async(RSSBelow(cfg.MaxRSS), cfg.RSSInterval))
	}
	if bootstrapDone != nil {
		h.AddReadinessCheck("bootstrap", Closed("bootstrap", bootstrapDone))
	}
}
