// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package stats is the statistics collector: rows
// scanned, rule applications, and per-operator timing, exported through a
// per-query prometheus.Registry rather than the global default registry
// (spec §5's "no module-level mutable state in the core").
package stats

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector owns one query's metrics, scoped to its own Registry so
// concurrent queries (each with its own QueryContext) never collide on
// label values or leak into a process-wide /metrics endpoint unless the
// host explicitly gathers from Collector.Registry.
type Collector struct {
	Registry *prometheus.Registry

	rowsScanned   *prometheus.CounterVec
	rowsEmitted   *prometheus.CounterVec
	ruleApplied   *prometheus.CounterVec
	operatorTime  *prometheus.HistogramVec
	operatorOpens *prometheus.CounterVec
}

// New constructs a Collector with a fresh registry and registers its
// vectors, mirroring the teacher's registration-at-construction pattern in
// internal/ratelimiter/telemetry/churn/prom_counters.go, adapted from
// package-level init() + global vars to an instance owned by one query.
func New() *Collector {
	c := &Collector{
		Registry: prometheus.NewRegistry(),
		rowsScanned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coreql_rows_scanned_total",
			Help: "Rows read from a Scan operator, by relation.",
		}, []string{"relation"}),
		rowsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coreql_rows_emitted_total",
			Help: "Rows emitted by a physical operator, by operator kind.",
		}, []string{"operator"}),
		ruleApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coreql_optimizer_rule_applications_total",
			Help: "Optimizer rewrite-strategy applications, by strategy name.",
		}, []string{"strategy"}),
		operatorTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "coreql_operator_next_seconds",
			Help:    "Wall-clock time spent in one operator's Open or Next call.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operator"}),
		operatorOpens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coreql_operator_opens_total",
			Help: "Open() calls, by operator kind.",
		}, []string{"operator"}),
	}
	c.Registry.MustRegister(c.rowsScanned, c.rowsEmitted, c.ruleApplied, c.operatorTime, c.operatorOpens)
	return c
}

// ScannedRows records n rows read from relation's Scan operator.
func (c *Collector) ScannedRows(relation string, n int) {
	if c == nil || n == 0 {
		return
	}
	c.rowsScanned.WithLabelValues(relation).Add(float64(n))
}

// EmittedRows records n rows emitted by operator's Next.
func (c *Collector) EmittedRows(operator string, n int) {
	if c == nil || n == 0 {
		return
	}
	c.rowsEmitted.WithLabelValues(operator).Add(float64(n))
}

// RecordRules copies the optimizer's rule-application counters (keyed by
// strategy name) into the per-strategy counter vector, so EXPLAIN output
// and a scraped /metrics endpoint agree on the same numbers.
func (c *Collector) RecordRules(counters map[string]int) {
	if c == nil {
		return
	}
	for name, n := range counters {
		c.ruleApplied.WithLabelValues(name).Add(float64(n))
	}
}

// Open records one Open() call against operator.
func (c *Collector) Open(operator string) {
	if c == nil {
		return
	}
	c.operatorOpens.WithLabelValues(operator).Inc()
}

// Timer returns a stop function that records the elapsed time against
// operator's histogram when called; use as `defer stats.Timer(c, "Scan")()`.
func Timer(c *Collector, operator string) func() {
	if c == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		c.operatorTime.WithLabelValues(operator).Observe(time.Since(start).Seconds())
	}
}
