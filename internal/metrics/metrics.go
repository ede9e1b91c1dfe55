// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package metrics exposes Prometheus metrics for the check-in flow.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Outcome labels shared by validation and redemption counters.
const (
	OutcomeOK          = "ok"
	OutcomeInvalid     = "invalid_format"
	OutcomeRateLimited = "rate_limited"
	OutcomeUsed        = "already_used"
	OutcomeNotFound    = "not_found"
	OutcomeError       = "error"
)

// PoolStats reports pool sizes for the gauges.
type PoolStats interface {
	Remaining() int
	Redeemed() int
}

// Metrics holds the check-in collectors.
type Metrics struct {
	Registry    *prometheus.Registry
	Validations *prometheus.CounterVec
	Redemptions *prometheus.CounterVec
}

// New creates a registry with Go/process collectors and the check-in metrics.
// Pool gauges are read from stats on every scrape.
func New(stats PoolStats) *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		Validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "checkin",
			Name:      "validations_total",
			Help:      "Token validation attempts by outcome.",
		}, []string{"outcome"}),
		Redemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "checkin",
			Name:      "redemptions_total",
			Help:      "Confirm attempts by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Validations,
		m.Redemptions,
	)

	if stats != nil {
		reg.MustRegister(
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: "checkin",
				Name:      "tokens_remaining",
				Help:      "Issued tokens not yet redeemed.",
			}, func() float64 { return float64(stats.Remaining()) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: "checkin",
				Name:      "tokens_redeemed",
				Help:      "Tokens redeemed since start.",
			}, func() float64 { return float64(stats.Redeemed()) }),
		)
	}

	return m
}

// Validation counts one step-one outcome. Safe on a nil receiver.
func (m *Metrics) Validation(outcome string) {
	if m == nil {
		return
	}
	m.Validations.WithLabelValues(outcome).Inc()
}

// Redemption counts one confirm outcome. Safe on a nil receiver.
func (m *Metrics) Redemption(outcome string) {
	if m == nil {
		return
	}
	m.Redemptions.WithLabelValues(outcome).Inc()
}
