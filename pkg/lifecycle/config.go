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
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/srediag/scene-manager/pkg/scene"
)

const (
	defaultRenderDelay  = 750 * time.Millisecond
	defaultPollInterval = 50 * time.Millisecond
)

// Config holds the engine's tunables and utility scene references.
type Config struct {
	// RenderDelay is how long a flow waits after raising or lowering the
	// transition overlay so it has time to render.
	RenderDelay time.Duration

	// GameplayScene is loaded together with every environment.
	GameplayScene *scene.Descriptor
	// VRGameplayScene replaces GameplayScene when UseVRGameplay is set.
	VRGameplayScene *scene.Descriptor
	UseVRGameplay   bool

	// TransitionScene is loaded during environment switches that show a
	// transition, when UseTransitionScene is set.
	TransitionScene    *scene.Descriptor
	UseTransitionScene bool

	// PollInterval paces waits for a scene held by another operation.
	PollInterval time.Duration

	// WorkerPoolSize caps the shared worker pool; <= 0 means unbounded.
	WorkerPoolSize int

	Registerer prometheus.Registerer
	Meter      metric.Meter
	Tracer     trace.Tracer
}

func DefaultConfig() Config {
	return Config{
		RenderDelay:        defaultRenderDelay,
		PollInterval:       defaultPollInterval,
		UseTransitionScene: true,
	}
}

// VerifyConfig checks cfg for inconsistent settings.
func VerifyConfig(cfg Config) error {
	if cfg.RenderDelay < 0 {
		return errors.New("render delay must not be negative")
	}
	if cfg.UseVRGameplay && cfg.VRGameplayScene == nil {
		return errors.New("vr gameplay enabled without a vr gameplay scene")
	}
	if d := cfg.GameplayScene; d != nil && d.Category != scene.Gameplay {
		return fmt.Errorf("gameplay scene %s has category %s", d.Name, d.Category)
	}
	if d := cfg.VRGameplayScene; d != nil && d.Category != scene.Gameplay {
		return fmt.Errorf("vr gameplay scene %s has category %s", d.Name, d.Category)
	}
	if d := cfg.TransitionScene; d != nil && d.Category != scene.TransitionScene {
		return fmt.Errorf("transition scene %s has category %s", d.Name, d.Category)
	}
	return nil
}
