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

	"github.com/prometheus/client_golang/prometheus"

	"github.com/srediag/scene-manager/pkg/scene"
)

const metricsNamespace = "scenes"

const (
	outcomeOK            = "ok"
	outcomeInFlight      = "in_flight"
	outcomeAlreadyLoaded = "already_loaded"
	outcomeNotLoaded     = "not_loaded"
	outcomeFailed        = "failed"
	outcomeCanceled      = "canceled"
)

// Metrics are the engine's Prometheus collectors.
type Metrics struct {
	ops      *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
	active   prometheus.Gauge
}

// NewMetrics builds the collectors and registers them on reg when it is not nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "operations_total",
			Help:      "Scene load and unload requests by outcome.",
		}, []string{"op", "category", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "operation_duration_seconds",
			Help:      "Time spent in the provider for completed scene operations.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"op", "category"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "in_flight",
			Help:      "Scene operations currently holding a guard.",
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "active",
			Help:      "Scenes currently tracked as active.",
		}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.ops, m.duration, m.inFlight, m.active} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observe(op string, d *scene.Descriptor, outcome string, seconds float64) {
	m.ops.WithLabelValues(op, d.Category.String(), outcome).Inc()
	if outcome == outcomeOK {
		m.duration.WithLabelValues(op, d.Category.String()).Observe(seconds)
	}
}

func (m *Metrics) setActive(n int) {
	m.active.Set(float64(n))
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, ErrAlreadyInFlight):
		return outcomeInFlight
	case errors.Is(err, ErrAlreadyLoaded):
		return outcomeAlreadyLoaded
	case errors.Is(err, ErrNotLoaded):
		return outcomeNotLoaded
	case IsBenign(err):
		return outcomeCanceled
	default:
		return outcomeFailed
	}
}
