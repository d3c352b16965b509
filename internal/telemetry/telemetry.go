// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// PairView - 双路视频同步对比播放工具

// Package telemetry exports scheduler events as Prometheus metrics
package telemetry

import (
	"errors"
	"fmt"
	"time"

	"github.com/ZSC714725/pairview/internal/engine"

	prom "github.com/prometheus/client_golang/prometheus"
)

// Exporter implements engine.Observer. A nil *Exporter records nothing.
type Exporter struct {
	commandsTotal   *prom.CounterVec
	coalescedTotal  *prom.CounterVec
	executionsTotal *prom.CounterVec
	sideFailures    *prom.CounterVec
	executeDuration *prom.HistogramVec
	pending         prom.Gauge
}

var _ engine.Observer = (*Exporter)(nil)

// New creates the collectors and registers them with reg, reusing
// collectors that are already registered there.
func New(namespace string, reg prom.Registerer) (*Exporter, error) {
	if namespace == "" {
		namespace = "pairview"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}

	commands := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "commands_total",
		Help:      "Commands dispatched to the supervisor.",
	}, []string{"name", "mode"})
	coalesced := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "coalesced_total",
		Help:      "Pending commands replaced by a newer one of the same name.",
	}, []string{"name"})
	executions := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "executions_total",
		Help:      "Commands executed against the workers.",
	}, []string{"name"})
	failures := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "side_failures_total",
		Help:      "Failed or lost replies per side.",
	}, []string{"side", "name"})
	duration := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "execute_duration_seconds",
		Help:      "Time to run one command on both workers.",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 10},
	}, []string{"name"})
	pending := prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "pending_commands",
		Help:      "Coalesced commands waiting in the scheduler.",
	})

	var err error
	if commands, err = registerCollector(reg, commands); err != nil {
		return nil, err
	}
	if coalesced, err = registerCollector(reg, coalesced); err != nil {
		return nil, err
	}
	if executions, err = registerCollector(reg, executions); err != nil {
		return nil, err
	}
	if failures, err = registerCollector(reg, failures); err != nil {
		return nil, err
	}
	if duration, err = registerCollector(reg, duration); err != nil {
		return nil, err
	}
	if pending, err = registerCollector(reg, pending); err != nil {
		return nil, err
	}

	return &Exporter{
		commandsTotal:   commands,
		coalescedTotal:  coalesced,
		executionsTotal: executions,
		sideFailures:    failures,
		executeDuration: duration,
		pending:         pending,
	}, nil
}

func (e *Exporter) CommandQueued(name string, coalesce bool) {
	if e == nil {
		return
	}
	mode := "immediate"
	if coalesce {
		mode = "coalesce"
	}
	e.commandsTotal.WithLabelValues(name, mode).Inc()
}

func (e *Exporter) CommandCoalesced(name string) {
	if e == nil {
		return
	}
	e.coalescedTotal.WithLabelValues(name).Inc()
}

func (e *Exporter) CommandExecuted(name string, d time.Duration) {
	if e == nil {
		return
	}
	e.executionsTotal.WithLabelValues(name).Inc()
	e.executeDuration.WithLabelValues(name).Observe(d.Seconds())
}

func (e *Exporter) SideFailed(side, name string) {
	if e == nil {
		return
	}
	e.sideFailures.WithLabelValues(side, name).Inc()
}

func (e *Exporter) PendingChanged(n int) {
	if e == nil {
		return
	}
	e.pending.Set(float64(n))
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var already prom.AlreadyRegisteredError
	if errors.As(err, &already) {
		existing, ok := already.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}
	return collector, err
}
